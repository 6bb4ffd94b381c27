// Package handlers registers the HTTP surface: POST /webhook, POST /approve,
// GET /health, and GET /metrics.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gdevlabs/triage-agent/internal/agent"
	"github.com/gdevlabs/triage-agent/internal/classify"
	"github.com/gdevlabs/triage-agent/internal/coord"
	"github.com/gdevlabs/triage-agent/internal/dedup"
	"github.com/gdevlabs/triage-agent/internal/guard"
	"github.com/gdevlabs/triage-agent/internal/metrics"
	"github.com/gdevlabs/triage-agent/internal/tools"
	"github.com/gdevlabs/triage-agent/internal/validation"
)

// HandlerConfig groups the dependencies of the triage endpoints.
type HandlerConfig struct {
	AppName string
	Service *agent.Service
	Dedup   *dedup.Cache
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// RegisterRoutes wires the endpoints onto the router.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "app": cfg.AppName})
	})

	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	r.POST("/webhook", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.WebhookRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400.
			return
		}

		// Replay path. A cached body is returned byte-identical, so retries
		// of the same message_id observe exactly the first response.
		cached, ok, err := cfg.Dedup.Check(ctx, req.MessageID)
		if err != nil {
			cfg.countWebhook("store_error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store_unavailable"})
			return
		}
		if ok {
			cfg.countWebhook("replayed")
			c.Data(http.StatusOK, "application/json", cached)
			return
		}

		resp, err := cfg.Service.ProcessWebhook(ctx, agent.WebhookInput{
			MessageID: req.MessageID,
			UserID:    req.UserID,
			Text:      req.Text,
			Metadata:  req.Metadata,
		})
		if err != nil {
			writeWebhookError(c, cfg, err)
			return
		}

		body, err := json.Marshal(resp)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "encode_failed"})
			return
		}
		// Recording is part of the idempotency contract: if the cache write
		// fails the request fails, since a silent miss here would let a retry
		// process (and side-effect) the same message twice.
		if err := cfg.Dedup.Record(ctx, req.MessageID, body); err != nil {
			cfg.countWebhook("store_error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store_unavailable"})
			return
		}

		cfg.countWebhook(resp.Status)
		c.Data(http.StatusOK, "application/json", body)
	})

	r.POST("/approve", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.ApproveRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		resp, err := cfg.Service.Resolve(ctx, req.PendingID, req.IsApproved(), req.Reviewer)
		switch {
		case errors.Is(err, agent.ErrPendingNotFound):
			cfg.countApproval("not_found")
			c.JSON(http.StatusNotFound, gin.H{"error": "pending_not_found"})
			return
		case errors.Is(err, tools.ErrUnknownTool):
			cfg.countApproval("error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_tool"})
			return
		case errors.Is(err, coord.ErrUnavailable):
			cfg.countApproval("error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store_unavailable"})
			return
		case err != nil:
			cfg.countApproval("error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}

		cfg.countApproval(resp.Status)
		c.JSON(http.StatusOK, resp)
	})
}

// writeWebhookError maps the error taxonomy onto stable HTTP signals so the
// external caller's retry logic can branch on them.
func writeWebhookError(c *gin.Context, cfg HandlerConfig, err error) {
	switch {
	case errors.Is(err, guard.ErrInputTooLong), errors.Is(err, guard.ErrUnsafeInput):
		cfg.countGuard("input")
		cfg.countWebhook("guard_violation")
		c.JSON(http.StatusBadRequest, gin.H{"error": "guard_violation", "detail": err.Error()})
	case errors.Is(err, agent.ErrOutputBlocked):
		cfg.countGuard("output")
		cfg.countWebhook("output_blocked")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "output_guard_blocked"})
	case errors.Is(err, classify.ErrClassification):
		cfg.countWebhook("classification_failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "classification_failed"})
	case errors.Is(err, tools.ErrUnknownTool):
		cfg.countWebhook("unknown_tool")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_tool"})
	case errors.Is(err, coord.ErrUnavailable):
		cfg.countWebhook("store_error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_unavailable"})
	default:
		cfg.countWebhook("internal_error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func (cfg HandlerConfig) countWebhook(status string) {
	if cfg.Metrics != nil {
		cfg.Metrics.WebhookTotal.WithLabelValues(status).Inc()
	}
}

func (cfg HandlerConfig) countApproval(outcome string) {
	if cfg.Metrics != nil {
		cfg.Metrics.ApprovalsTotal.WithLabelValues(outcome).Inc()
	}
}

func (cfg HandlerConfig) countGuard(which string) {
	if cfg.Metrics != nil {
		cfg.Metrics.GuardBlocks.WithLabelValues(which).Inc()
	}
}
