package middlewares

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/contextbridge/internal/actorctx"
	"github.com/gin-gonic/gin"
)

func abortWithError(c *gin.Context, status int, code, message string, details any) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if id, ok := actorctx.RequestIDFrom(c.Request.Context()); ok {
		body["requestId"] = id
	}
	if details != nil {
		body["details"] = details
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

// ErrorHandler turns errors attached with ctx.Error into a 500 response when
// the handler did not write one itself.
func ErrorHandler(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		log.ErrorContext(c.Request.Context(), "unhandled_error",
			"route", c.FullPath(),
			"error", err.Error(),
		)

		if c.Writer.Written() {
			return
		}
		abortWithError(c, http.StatusInternalServerError, "internal_error", "Something went wrong.", gin.H{"reason": err.Error()})
	}
}

// Recovery answers panics with the JSON error envelope.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.ErrorContext(c.Request.Context(), "panic_recovered",
			"route", c.FullPath(),
			"panic", recovered,
		)
		abortWithError(c, http.StatusInternalServerError, "internal_error", "Something went wrong.", nil)
	})
}
