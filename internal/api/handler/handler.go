// Package handler is the operator HTTP API.
package handler

import (
	"flagwatch/backend/internal/alerthub"
	"flagwatch/backend/internal/analysis"
	"flagwatch/backend/internal/metrics"
	"flagwatch/backend/internal/models"
	"flagwatch/backend/internal/scanner"
	"flagwatch/backend/internal/storage"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Classifier is satisfied by *analysis.Classifier.
type Classifier interface {
	Classify(text string) analysis.Verdict
}

// RuleReloader is satisfied by *rules.Store.
type RuleReloader interface {
	Reload() error
}

// Scans is satisfied by *scanner.Manager.
type Scans interface {
	Start(kind string, userIDs []string) (*scanner.Job, error)
	Status(id string) (scanner.Status, error)
	Cancel(id string) error
	Subscribe(id string) (<-chan scanner.Status, func(), error)
}

// Handler holds the stores and services the API exposes.
type Handler struct {
	Classifier Classifier
	Rules      RuleReloader
	Cases      storage.CaseLedger
	Watchlist  storage.SetStore
	Blacklist  storage.SetStore
	Ignored    storage.SetStore
	Scans      Scans
	Feed       *alerthub.Hub

	secret   []byte
	tokenTTL time.Duration
	logger   *logrus.Logger
}

// NewHandler Constructor. An empty secret disables token issuance, so every protected
// route answers 401.
func NewHandler(secret string, tokenTTL time.Duration, logger *logrus.Logger) *Handler {
	return &Handler{secret: []byte(secret), tokenTTL: tokenTTL, logger: logger}
}

// Router registers every route on a new gin engine.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.POST("/token", h.IssueToken)

	api := r.Group("/", h.RequireToken())
	api.POST("/classify", h.Classify)
	api.POST("/rules/reload", h.ReloadRules)

	api.GET("/cases", h.ListCases)
	api.GET("/cases/:id", h.GetCase)
	api.DELETE("/cases/:id", h.DeleteCase)
	api.POST("/cases/:id/archive", h.ArchiveCase)
	api.GET("/cases/:id/lookup", h.LookupCase)

	h.registerSet(api, "/watchlist", func() storage.SetStore { return h.Watchlist })
	h.registerSet(api, "/blacklist", func() storage.SetStore { return h.Blacklist })
	h.registerSet(api, "/ignored", func() storage.SetStore { return h.Ignored })

	api.POST("/scans", h.StartScan)
	api.GET("/scans/:id", h.GetScan)
	api.DELETE("/scans/:id", h.CancelScan)
	api.GET("/scans/:id/ws", h.StreamScan)

	api.GET("/alerts/ws", h.StreamAlerts)
	return r
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("HTTP request")
	}
}

// statusFor maps domain errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, scanner.ErrUnknownJob):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidID), errors.Is(err, models.ErrUnknownRiskTier), errors.Is(err, storage.ErrEmptyValue):
		return http.StatusBadRequest
	case errors.Is(err, scanner.ErrScanRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

type classifyRequest struct {
	Text string `json:"text" binding:"required"`
}

// Classify runs the classifier on arbitrary text without recording anything.
func (h *Handler) Classify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Classifier.Classify(req.Text))
}

// ReloadRules rereads the rules file. The previous rules stay active on failure.
func (h *Handler) ReloadRules(c *gin.Context) {
	if err := h.Rules.Reload(); err != nil {
		h.logger.WithError(err).Warn("Rules reload failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
