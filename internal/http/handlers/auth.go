package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/contextbridge/internal/config"
	"github.com/geocoder89/contextbridge/internal/domain/user"
	"github.com/geocoder89/contextbridge/internal/http/middlewares"
	"github.com/geocoder89/contextbridge/internal/identity"
	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	Register(ctx context.Context, in identity.RegisterInput) (user.Registered, error)
	Authenticate(ctx context.Context, email, password string) (identity.LoginResult, error)
	Session(ctx context.Context, u user.User) (user.Session, error)
}

// AuthHandler serves register, login, current user and logout. Sessions are
// JWTs returned in the body and set as an HttpOnly cookie.
type AuthHandler struct {
	identity Authenticator
	cookie   sessionCookie
}

func NewAuthHandler(identity Authenticator, cfg config.Config) *AuthHandler {
	name := cfg.CookieName
	if name == "" {
		name = "jwt"
	}
	return &AuthHandler{
		identity: identity,
		cookie:   sessionCookie{name: name, secure: cfg.Env == "prod"},
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest = user.CreateRequest

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	reg, err := h.identity.Register(cctx, registerInput(req))
	if err != nil {
		respondRegisterErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    reg,
	})
}

func registerInput(req user.CreateRequest) identity.RegisterInput {
	return identity.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Roles:    req.Roles,
	}
}

func respondRegisterErr(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrEmailTaken):
		RespondConflict(ctx, "email_taken", "Email is already in use.")
	case respondMissingCredential(ctx, err):
	default:
		respondUnhandled(ctx, err)
	}
}

// respondMissingCredential answers for an absent email or password and
// reports whether it did.
func respondMissingCredential(ctx *gin.Context, err error) bool {
	switch {
	case errors.Is(err, identity.ErrMissingEmail):
		RespondMissingField(ctx, "email", "Email is required.")
	case errors.Is(err, identity.ErrMissingPassword):
		RespondMissingField(ctx, "password", "Password is required.")
	default:
		return false
	}
	return true
}

// Login binds optionally: a bodiless request falls through to the same
// missing email answer as {}.
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest
	if !BindOptionalJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	res, err := h.identity.Authenticate(cctx, req.Email, req.Password)
	switch {
	case err == nil:
	case respondMissingCredential(ctx, err):
		return
	case errors.Is(err, identity.ErrUnknownEmail), errors.Is(err, identity.ErrWrongPassword):
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	default:
		respondUnhandled(ctx, err)
		return
	}

	h.cookie.set(ctx, res.Token, res.ExpiresAt)
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   res.Token,
		"data":    gin.H{"user": res.User},
	})
}

// CurrentUser answers {"currentUser": null} for anonymous callers. Invalid
// tokens never get here: the auth middleware rejects them.
func (h *AuthHandler) CurrentUser(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)
	if !ok {
		ctx.JSON(http.StatusOK, gin.H{"currentUser": nil})
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	session, err := h.identity.Session(cctx, u)
	if err != nil {
		respondUnhandled(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"currentUser": session})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	h.cookie.clear(ctx)
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User is logged out",
	})
}

type sessionCookie struct {
	name   string
	secure bool
}

func (c sessionCookie) write(ctx *gin.Context, value string, maxAge int, expires time.Time) {
	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c sessionCookie) set(ctx *gin.Context, token string, expiresAt time.Time) {
	c.write(ctx, token, max(0, int(time.Until(expiresAt).Seconds())), expiresAt)
}

// clear expires the cookie immediately.
func (c sessionCookie) clear(ctx *gin.Context) {
	c.write(ctx, "", -1, time.Unix(0, 0))
}
