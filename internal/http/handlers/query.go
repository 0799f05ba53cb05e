package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/contextbridge/internal/http/middlewares"
	"github.com/geocoder89/contextbridge/internal/profile"
	"github.com/geocoder89/contextbridge/internal/query"
	"github.com/gin-gonic/gin"
)

type Asker interface {
	Ask(ctx context.Context, userID, q string) (json.RawMessage, error)
	Traces(ctx context.Context) (json.RawMessage, error)
}

type QueryHandler struct {
	svc Asker
}

func NewQueryHandler(svc Asker) *QueryHandler {
	return &QueryHandler{svc: svc}
}

// QueryRequest names the asking user by id; the session user is used when it
// is omitted.
type QueryRequest struct {
	ID    string `json:"id"`
	Query string `json:"query" binding:"required"`
}

func (h *QueryHandler) Ask(ctx *gin.Context) {
	var req QueryRequest

	if !BindJSON(ctx, &req) {
		return
	}

	userID := strings.TrimSpace(req.ID)
	if userID == "" {
		userID, _ = middlewares.UserIDFromContext(ctx)
	}
	if userID == "" {
		RespondMissingField(ctx, "id", "User id is required.")
		return
	}

	// the gateway call is bounded by its own timeout
	answer, err := h.svc.Ask(ctx.Request.Context(), userID, req.Query)
	if err != nil {
		respondQueryErr(ctx, err)
		return
	}

	ctx.Data(http.StatusOK, "application/json; charset=utf-8", answer)
}

func (h *QueryHandler) Traces(ctx *gin.Context) {
	raw, err := h.svc.Traces(ctx.Request.Context())
	if err != nil {
		respondQueryErr(ctx, err)
		return
	}

	RespondRawJSONWithETag(ctx, http.StatusOK, raw)
}

func respondQueryErr(ctx *gin.Context, err error) {
	var upstream *query.UpstreamError

	switch {
	case errors.Is(err, profile.ErrUserNotFound):
		RespondNotFound(ctx, "User not found")
	case errors.As(err, &upstream):
		details := gin.H{"reason": upstream.Err.Error()}
		if upstream.Payload.Connectors != nil {
			details["model_payload"] = upstream.Payload
		}
		RespondError(ctx, http.StatusInternalServerError, "upstream_error", "Model gateway request failed.", details)
	default:
		respondUnhandled(ctx, err)
	}
}
