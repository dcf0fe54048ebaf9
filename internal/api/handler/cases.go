package handler

import (
	"flagwatch/backend/internal/config"
	"flagwatch/backend/internal/models"
	"flagwatch/backend/internal/storage"
	"net/http"

	"github.com/gin-gonic/gin"
)

type caseResponse struct {
	AuthorID string                   `json:"userId"`
	Archived bool                     `json:"archived"`
	Events   []models.ClassifiedEvent `json:"events"`
}

// ListCases returns one summary per author. ?archived=true includes archived records,
// ?top=N keeps the N authors with the most events.
func (h *Handler) ListCases(c *gin.Context) {
	var q struct {
		Archived bool `form:"archived"`
		Top      int  `form:"top" binding:"gte=0"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	summaries, err := h.Cases.Summaries(q.Archived)
	if err != nil {
		h.fail(c, err)
		return
	}
	if q.Top > 0 {
		summaries = storage.TopByCount(summaries, min(q.Top, config.TopFlagsLimit))
	}
	c.JSON(http.StatusOK, summaries)
}

// GetCase returns the active record filtered by ?risk, ?match, ?after, ?before and ?limit.
func (h *Handler) GetCase(c *gin.Context) {
	id := c.Param("id")
	var f storage.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if f.Risk != "" {
		tier, err := models.ParseRiskTier(string(f.Risk))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f.Risk = tier
	}

	events, err := h.Cases.Query(id, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, caseResponse{AuthorID: id, Events: events})
}

// LookupCase falls back to the archive when there is no active record.
func (h *Handler) LookupCase(c *gin.Context) {
	id := c.Param("id")
	events, archived, err := h.Cases.Lookup(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, caseResponse{AuthorID: id, Archived: archived, Events: events})
}

func (h *Handler) DeleteCase(c *gin.Context) {
	id := c.Param("id")
	if err := h.Cases.Delete(id); err != nil {
		h.fail(c, err)
		return
	}
	h.logger.WithField("author_id", id).WithField("operator", c.GetString(operatorKey)).Info("Case deleted")
	c.Status(http.StatusNoContent)
}

func (h *Handler) ArchiveCase(c *gin.Context) {
	id := c.Param("id")
	if err := h.Cases.Archive(id); err != nil {
		h.fail(c, err)
		return
	}
	h.logger.WithField("author_id", id).WithField("operator", c.GetString(operatorKey)).Info("Case archived")
	c.Status(http.StatusNoContent)
}
