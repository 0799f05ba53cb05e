package handlers

import (
	"net/http"
	"time"

	"github.com/geocoder89/contextbridge/internal/actorctx"
	"github.com/gin-gonic/gin"
)

// store calls made on behalf of a request
const storeTimeout = 3 * time.Second

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

func requestID(ctx *gin.Context) string {
	if id, ok := actorctx.RequestIDFrom(ctx.Request.Context()); ok {
		return id
	}
	return ctx.Writer.Header().Get("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details any) {
	ctx.JSON(status, errorEnvelope{Error: APIError{
		Code:      code,
		Message:   message,
		RequestID: requestID(ctx),
		Details:   details,
	}})
}

func RespondBadRequest(ctx *gin.Context, message string, details any) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

// RespondMissingField reports one absent required field in the same shape as
// a binding failure.
func RespondMissingField(ctx *gin.Context, field, message string) {
	RespondBadRequest(ctx, message, gin.H{
		"fields": []FieldError{{Field: field, Rule: "required", Message: validationMessage("required", "")}},
	})
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

// respondUnhandled defers to the ErrorHandler middleware, which renders a 500
// carrying the raw error.
func respondUnhandled(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	ctx.Abort()
}

func RespondDeleted(ctx *gin.Context, id string) {
	ctx.JSON(http.StatusOK, gin.H{"message": id + " has been deleted"})
}
