package middlewares

import (
	"net/http"
	"time"

	"github.com/douxbatter/storefront/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// MaxWebhookBody caps what the payment provider may post to us.
const MaxWebhookBody = 64 << 10

// WebhookBodyLimit rejects oversized webhook bodies before they are read.
func WebhookBodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			utils.AbortWithMessage(c, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// LogWebhookRequest records every delivery attempt, including rejected ones.
func LogWebhookRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		utils.InfoLogger.WithFields(logrus.Fields{
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"ip":       c.ClientIP(),
		}).Info("Payment webhook delivery")
	}
}
