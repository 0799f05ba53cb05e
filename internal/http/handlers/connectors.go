package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/contextbridge/internal/config"
	"github.com/geocoder89/contextbridge/internal/domain/connector"
	"github.com/gin-gonic/gin"
)

type ConnectorsStore interface {
	Create(ctx context.Context, req connector.CreateRequest) (connector.Connector, error)
	GetByID(ctx context.Context, id string) (connector.Connector, error)
	List(ctx context.Context) ([]connector.Connector, error)
	Update(ctx context.Context, id string, req connector.UpdateRequest) (connector.Connector, error)
	Delete(ctx context.Context, id string) error
}

// ConnectorsHandler serves both /dataconnector and /llmconnector; kind only
// changes messages.
type ConnectorsHandler struct {
	repo ConnectorsStore
	kind connector.Kind
}

func NewConnectorsHandler(repo ConnectorsStore, kind connector.Kind) *ConnectorsHandler {
	return &ConnectorsHandler{repo: repo, kind: kind}
}

func (h *ConnectorsHandler) notFound(ctx *gin.Context) {
	RespondNotFound(ctx, h.kind.Label()+" not found")
}

func (h *ConnectorsHandler) Create(ctx *gin.Context) {
	var req connector.CreateRequest

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
		"message":   "New " + strings.ToLower(h.kind.Label()) + " added",
		"connector": c,
	})
}

func (h *ConnectorsHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	items, err := h.repo.List(cctx)
	if err != nil {
		respondUnhandled(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, items)
}

func (h *ConnectorsHandler) GetByID(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	c, err := h.repo.GetByID(cctx, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, connector.ErrNotFound) {
			h.notFound(ctx)
			return
		}
		respondUnhandled(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, c)
}

func (h *ConnectorsHandler) Update(ctx *gin.Context) {
	var req connector.UpdateRequest

	if !BindOptionalJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	c, err := h.repo.Update(cctx, ctx.Param("id"), req)
	if err != nil {
		if errors.Is(err, connector.ErrNotFound) {
			h.notFound(ctx)
			return
		}
		respondUnhandled(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, c)
}

func (h *ConnectorsHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.repo.Delete(cctx, id); err != nil {
		respondUnhandled(ctx, err)
		return
	}

	RespondDeleted(ctx, id)
}
