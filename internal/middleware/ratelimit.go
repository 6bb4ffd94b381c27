package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gdevlabs/triage-agent/internal/coord"
)

const (
	minuteWindow = 60 * time.Second
	burstWindow  = 10 * time.Second
)

// RateLimit caps per-user webhook requests: rpm over a minute window plus a
// short burst cap. The limiter is best-effort traffic shaping, not a
// correctness guard, so a store error here fails open (unlike the dedup and
// approval paths, which fail closed).
func RateLimit(store *coord.Store, rpm, burst int, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		if c.Request.URL.Path != "/webhook" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		var probe struct {
			UserID string `json:"user_id"`
		}
		if err := json.Unmarshal(body, &probe); err != nil || probe.UserID == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		minuteCount, err := store.IncrWithExpiry(ctx, "ratelimit:"+probe.UserID, minuteWindow)
		if err != nil {
			logger.WarnContext(ctx, "rate limiter unavailable",
				slog.String("event", "rate_limit_bypass"))
			c.Next()
			return
		}
		burstCount, err := store.IncrWithExpiry(ctx, "ratelimit_burst:"+probe.UserID, burstWindow)
		if err != nil {
			logger.WarnContext(ctx, "rate limiter unavailable",
				slog.String("event", "rate_limit_bypass"))
			c.Next()
			return
		}

		if minuteCount > int64(rpm) || burstCount > int64(burst) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limit_exceeded"})
			return
		}
		c.Next()
	}
}
