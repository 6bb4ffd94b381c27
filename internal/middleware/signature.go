package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Signature verifies the HMAC-SHA256 webhook signature when a secret is
// configured. Only POST /webhook is checked; the body is restored for the
// handler after reading.
func Signature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || c.Request.URL.Path != "/webhook" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

		received := c.GetHeader("X-Webhook-Signature")
		if !hmac.Equal([]byte(expected), []byte(received)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
			return
		}
		c.Next()
	}
}
