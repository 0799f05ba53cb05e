package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/contextbridge/internal/config"
	"github.com/geocoder89/contextbridge/internal/domain/connector"
	"github.com/geocoder89/contextbridge/internal/domain/contexts"
	"github.com/gin-gonic/gin"
)

type ContextsStore interface {
	Create(ctx context.Context, req contexts.CreateRequest) (contexts.Context, error)
	GetByID(ctx context.Context, id string) (contexts.Context, error)
	List(ctx context.Context) ([]contexts.Context, error)
	Update(ctx context.Context, id string, req contexts.UpdateRequest) (contexts.Context, error)
	Delete(ctx context.Context, id string) error
}

type ConnectorsReader interface {
	GetMany(ctx context.Context, ids []string) ([]connector.Connector, error)
}

type ContextsHandler struct {
	repo       ContextsStore
	connectors ConnectorsReader
}

func NewContextsHandler(repo ContextsStore, connectors ConnectorsReader) *ContextsHandler {
	return &ContextsHandler{repo: repo, connectors: connectors}
}

type ExpandedContext struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	DataConnectors []connector.Connector `json:"data_connector"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

func (h *ContextsHandler) expand(ctx context.Context, items []contexts.Context) ([]ExpandedContext, error) {
	var ids []string
	for _, c := range items {
		ids = append(ids, c.DataConnectors...)
	}

	byID, err := expandRefs(ctx, ids, h.connectors.GetMany, func(c connector.Connector) string { return c.ID })
	if err != nil {
		return nil, err
	}

	out := make([]ExpandedContext, 0, len(items))
	for _, c := range items {
		out = append(out, ExpandedContext{
			ID:             c.ID,
			Name:           c.Name,
			DataConnectors: resolveOrdered(c.DataConnectors, byID),
			CreatedAt:      c.CreatedAt,
			UpdatedAt:      c.UpdatedAt,
		})
	}
	return out, nil
}

func (h *ContextsHandler) CreateContext(ctx *gin.Context) {
	var req contexts.CreateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	c, err := h.repo.Create(cctx, req)
	if err != nil {
		respondUnhandled(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "New context added",
		"context": c,
	})
}

func (h *ContextsHandler) ListContexts(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	items, err := h.repo.List(cctx)
	if err != nil {
		respondUnhandled(ctx, err)
		return
	}

	if !wantsExpand(ctx) {
		ctx.JSON(http.StatusOK, items)
		return
	}

	expanded, err := h.expand(cctx, items)
	if err != nil {
		respondUnhandled(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, expanded)
}

func (h *ContextsHandler) GetContextByID(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	c, err := h.repo.GetByID(cctx, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, contexts.ErrNotFound) {
			RespondNotFound(ctx, "Context not found")
			return
		}
		respondUnhandled(ctx, err)
		return
	}

	if !wantsExpand(ctx) {
		ctx.JSON(http.StatusOK, c)
		return
	}

	expanded, err := h.expand(cctx, []contexts.Context{c})
	if err != nil {
		respondUnhandled(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, expanded[0])
}

func (h *ContextsHandler) UpdateContext(ctx *gin.Context) {
	var req contexts.UpdateRequest

	if !BindOptionalJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	c, err := h.repo.Update(cctx, ctx.Param("id"), req)
	if err != nil {
		if errors.Is(err, contexts.ErrNotFound) {
			RespondNotFound(ctx, "Context not found")
			return
		}
		respondUnhandled(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, c)
}

func (h *ContextsHandler) DeleteContext(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.repo.Delete(cctx, id); err != nil {
		respondUnhandled(ctx, err)
		return
	}

	RespondDeleted(ctx, id)
}
