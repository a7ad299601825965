package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/darrentmorgan/singura-sub007/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestLoggingMiddleware assigns a request ID and logs every request
// with its latency and status.
func RequestLoggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requestID := ctx.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx.Header(requestIDHeader, requestID)
		ctx.Set("request_id", requestID)

		start := time.Now()
		ctx.Next()

		log.WithFields(map[string]interface{}{
			"request_id": requestID,
			"method":     ctx.Request.Method,
			"path":       ctx.Request.URL.Path,
			"status":     ctx.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  ctx.ClientIP(),
		}).Info("Request completed")
	}
}

// RecoveryMiddleware converts panics into 500 responses.
func RecoveryMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(map[string]interface{}{
					"panic": r,
					"path":  ctx.Request.URL.Path,
				}).Error("Recovered from panic")
				ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		ctx.Next()
	}
}
