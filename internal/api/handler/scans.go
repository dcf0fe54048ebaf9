package handler

import (
	"flagwatch/backend/internal/models"
	"flagwatch/backend/internal/scanner"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
)

type scanRequest struct {
	Kind    string   `json:"kind" binding:"required,oneof=cases watchlist users"`
	UserIDs []string `json:"user_ids" binding:"required_if=Kind users"`
}

// userIDs validates and de-duplicates an explicit scan list, keeping the given order.
func userIDs(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, errors.Wrap(models.ErrInvalidID, "no user IDs")
	}
	seen := make(map[string]struct{}, len(raw))
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if err := models.ValidateID(id); err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// StartScan launches a mutual-community scan over the flagged authors, the watchlist,
// or an explicit list of user IDs.
func (h *Handler) StartScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		ids []string
		err error
	)
	switch req.Kind {
	case scanner.KindCases:
		ids, err = h.Cases.Authors()
	case scanner.KindWatchlist:
		ids, err = h.Watchlist.List()
	default:
		ids, err = userIDs(req.UserIDs)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	job, err := h.Scans.Start(req.Kind, ids)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger.WithField("job_id", job.ID()).WithField("operator", c.GetString(operatorKey)).Info("Scan started over HTTP")
	c.JSON(http.StatusAccepted, job.Status())
}

func (h *Handler) GetScan(c *gin.Context) {
	st, err := h.Scans.Status(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// CancelScan stops a running scan. Cancelling a finished scan is a no-op.
func (h *Handler) CancelScan(c *gin.Context) {
	if err := h.Scans.Cancel(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
