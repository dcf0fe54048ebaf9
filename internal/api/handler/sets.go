package handler

import (
	"flagwatch/backend/internal/storage"
	"net/http"

	"github.com/gin-gonic/gin"
)

type setValue struct {
	Value string `json:"value" binding:"required"`
}

// registerSet exposes GET, POST and DELETE for one persisted set.
func (h *Handler) registerSet(g *gin.RouterGroup, path string, store func() storage.SetStore) {
	g.GET(path, func(c *gin.Context) {
		values, err := store().List()
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"values": values})
	})

	g.POST(path, func(c *gin.Context) {
		var req setValue
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		added, err := store().Add(req.Value)
		if err != nil {
			h.fail(c, err)
			return
		}
		status := http.StatusCreated
		if !added {
			status = http.StatusOK
		}
		c.JSON(status, gin.H{"added": added})
	})

	g.DELETE(path+"/*value", func(c *gin.Context) {
		value := c.Param("value")
		if len(value) > 0 && value[0] == '/' {
			value = value[1:]
		}
		removed, err := store().Remove(value)
		if err != nil {
			h.fail(c, err)
			return
		}
		if !removed {
			c.JSON(http.StatusNotFound, gin.H{"error": "value not present"})
			return
		}
		c.Status(http.StatusNoContent)
	})
}
