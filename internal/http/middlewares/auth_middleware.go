package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/contextbridge/internal/actorctx"
	"github.com/geocoder89/contextbridge/internal/domain/user"
	"github.com/geocoder89/contextbridge/internal/identity"
	"github.com/gin-gonic/gin"
)

const ctxUserKey = "auth.user"

type SessionVerifier interface {
	VerifyToken(ctx context.Context, token string) (user.User, error)
}

// AuthMiddleware resolves the caller from a bearer token or, failing that,
// the session cookie.
type AuthMiddleware struct {
	verifier   SessionVerifier
	cookieName string
}

func NewAuthMiddleware(verifier SessionVerifier, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, cookieName: cookieName}
}

// TokenFrom returns the session token carried by the request, or "".
func (m *AuthMiddleware) TokenFrom(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}

	if m.cookieName == "" {
		return ""
	}
	cookie, err := c.Cookie(m.cookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie)
}

type authMode int

const (
	authRequired authMode = iota
	authOptional
	authIfPresent
)

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return m.authenticate(authRequired)
}

// OptionalAuth attaches the caller when the token verifies. Missing and
// unverifiable tokens both continue as anonymous, so a stale cookie never
// locks a browser out of open routes.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return m.authenticate(authOptional)
}

// SessionAuth lets anonymous requests through but rejects a token that does
// not verify. It guards the session lookup itself.
func (m *AuthMiddleware) SessionAuth() gin.HandlerFunc {
	return m.authenticate(authIfPresent)
}

func (m *AuthMiddleware) authenticate(mode authMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.TokenFrom(c)
		if token == "" && mode != authRequired {
			c.Next()
			return
		}
		if token == "" {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing session token", nil)
			return
		}

		u, err := m.verifier.VerifyToken(c.Request.Context(), token)
		switch {
		case errors.Is(err, identity.ErrUnauthenticated) && mode == authOptional:
			c.Next()
			return
		case errors.Is(err, identity.ErrUnauthenticated):
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired session token", nil)
			return
		case err != nil:
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(ctxUserKey, u)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), u.ID))
		c.Next()
	}
}

func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	u, ok := UserFromContext(c)
	if !ok || u.ID == "" {
		return "", false
	}
	return u.ID, true
}
