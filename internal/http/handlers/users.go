package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/contextbridge/internal/config"
	"github.com/geocoder89/contextbridge/internal/domain/contexts"
	"github.com/geocoder89/contextbridge/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type UsersStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	Update(ctx context.Context, id string, req user.UpdateRequest) (user.User, error)
	Delete(ctx context.Context, id string) error
}

type ContextsReader interface {
	GetMany(ctx context.Context, ids []string) ([]contexts.Context, error)
}

type UsersHandler struct {
	users    UsersStore
	contexts ContextsReader
	auth     Authenticator
}

func NewUsersHandler(users UsersStore, ctxs ContextsReader, auth Authenticator) *UsersHandler {
	return &UsersHandler{users: users, contexts: ctxs, auth: auth}
}

// ExpandedUser is a user with its role ids replaced by the context documents.
type ExpandedUser struct {
	ID        string             `json:"id"`
	Email     string             `json:"email"`
	Name      string             `json:"name"`
	Roles     []contexts.Context `json:"roles"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func (h *UsersHandler) expand(ctx context.Context, users []user.User) ([]ExpandedUser, error) {
	var ids []string
	for _, u := range users {
		ids = append(ids, u.Roles...)
	}

	byID, err := expandRefs(ctx, ids, h.contexts.GetMany, func(c contexts.Context) string { return c.ID })
	if err != nil {
		return nil, err
	}

	out := make([]ExpandedUser, 0, len(users))
	for _, u := range users {
		out = append(out, ExpandedUser{
			ID:        u.ID,
			Email:     u.Email,
			Name:      u.Name,
			Roles:     resolveOrdered(u.Roles, byID),
			CreatedAt: u.CreatedAt,
			UpdatedAt: u.UpdatedAt,
		})
	}
	return out, nil
}

// CreateUser is the admin path to add an account; it shares registration rules.
func (h *UsersHandler) CreateUser(ctx *gin.Context) {
	var req user.CreateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	reg, err := h.auth.Register(cctx, registerInput(req))
	if err != nil {
		respondRegisterErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "New user added",
		"user":    reg,
	})
}

func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	users, err := h.users.List(cctx)
	if err != nil {
		respondUnhandled(ctx, err)
		return
	}

	if !wantsExpand(ctx) {
		ctx.JSON(http.StatusOK, users)
		return
	}

	expanded, err := h.expand(cctx, users)
	if err != nil {
		respondUnhandled(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, expanded)
}

func (h *UsersHandler) GetUserByID(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.users.GetByID(cctx, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		respondUnhandled(ctx, err)
		return
	}

	if !wantsExpand(ctx) {
		ctx.JSON(http.StatusOK, u)
		return
	}

	expanded, err := h.expand(cctx, []user.User{u})
	if err != nil {
		respondUnhandled(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, expanded[0])
}

// UpdateUser merges name, email and roles. An empty body returns the user unchanged.
func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	var req user.UpdateRequest

	if !BindOptionalJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.users.Update(cctx, ctx.Param("id"), req)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		case errors.Is(err, user.ErrEmailTaken):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		default:
			respondUnhandled(ctx, err)
		}
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.users.Delete(cctx, id); err != nil {
		respondUnhandled(ctx, err)
		return
	}

	RespondDeleted(ctx, id)
}
