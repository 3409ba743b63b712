package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/invoiceworks/billing-core/pkg/logger"
)

// RequestLogger logs every HTTP request with its principal, when resolved.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		userID := "anonymous"
		if param.Keys != nil {
			if p, exists := param.Keys[principalKey]; exists {
				if principal := asPrincipal(p); principal != nil {
					userID = principal.UserID
				}
			}
		}

		fields := []interface{}{
			"method", param.Method,
			"path", param.Path,
			"status", param.StatusCode,
			"latency", param.Latency,
			"client_ip", param.ClientIP,
			"user_agent", param.Request.UserAgent(),
			"user_id", userID,
			"request_id", param.Request.Header.Get("X-Request-ID"),
		}
		if param.ErrorMessage != "" {
			fields = append(fields, "error", param.ErrorMessage)
		}

		switch {
		case param.StatusCode >= 500:
			log.Error("http request", fields...)
		case param.StatusCode >= 400:
			log.Warn("http request", fields...)
		default:
			log.Info("http request", fields...)
		}

		return ""
	})
}
