// Package identity implements registration, login and session-token checks on
// top of the user store, bcrypt hashing and JWT issuance.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/contextbridge/internal/auth"
	"github.com/geocoder89/contextbridge/internal/domain/contexts"
	"github.com/geocoder89/contextbridge/internal/domain/user"
	"github.com/geocoder89/contextbridge/internal/security"
)

var (
	ErrEmailTaken      = user.ErrEmailTaken
	ErrMissingEmail    = errors.New("email is required")
	ErrMissingPassword = errors.New("password is required")
	ErrUnknownEmail    = errors.New("no user with that email")
	ErrWrongPassword   = errors.New("wrong password")
	ErrUnauthenticated = errors.New("unauthenticated")
)

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type ContextReader interface {
	GetMany(ctx context.Context, ids []string) ([]contexts.Context, error)
}

type Service struct {
	users      UserStore
	contexts   ContextReader
	tokens     *auth.Manager
	bcryptCost int
}

func NewService(users UserStore, ctxs ContextReader, tokens *auth.Manager, bcryptCost int) *Service {
	return &Service{
		users:      users,
		contexts:   ctxs,
		tokens:     tokens,
		bcryptCost: bcryptCost,
	}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Roles    []string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (user.Registered, error) {
	email := user.NormalizeEmail(in.Email)
	if email == "" {
		return user.Registered{}, ErrMissingEmail
	}
	if in.Password == "" {
		return user.Registered{}, ErrMissingPassword
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user.Registered{}, ErrEmailTaken
	}
	if !errors.Is(err, user.ErrNotFound) {
		return user.Registered{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := security.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return user.Registered{}, fmt.Errorf("hash password: %w", err)
	}

	// the store's unique constraint still guards concurrent registrations
	u, err := s.users.Create(ctx, user.New(email, hash, in.Name, in.Roles))
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return user.Registered{}, ErrEmailTaken
		}
		return user.Registered{}, fmt.Errorf("create user: %w", err)
	}

	return user.Registered{ID: u.ID, Email: u.Email}, nil
}

type LoginResult struct {
	Token     string
	User      user.Session
	ExpiresAt time.Time
}

// Authenticate checks the credentials and issues a session token. Unknown
// email and wrong password are reported as distinct errors.
func (s *Service) Authenticate(ctx context.Context, email, password string) (LoginResult, error) {
	if strings.TrimSpace(email) == "" {
		return LoginResult{}, ErrMissingEmail
	}
	if password == "" {
		return LoginResult{}, ErrMissingPassword
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return LoginResult{}, ErrUnknownEmail
		}
		return LoginResult{}, fmt.Errorf("lookup email: %w", err)
	}

	if err := security.CheckPassword(u.PasswordHash, password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return LoginResult{}, ErrWrongPassword
		}
		return LoginResult{}, fmt.Errorf("check password: %w", err)
	}

	session, err := s.Session(ctx, u)
	if err != nil {
		return LoginResult{}, err
	}

	token, exp, err := s.tokens.Issue(u.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	return LoginResult{Token: token, User: session, ExpiresAt: exp}, nil
}

// Session builds the login projection: role ids replaced by the names of the
// contexts that still exist, in stored order.
func (s *Service) Session(ctx context.Context, u user.User) (user.Session, error) {
	found, err := s.contexts.GetMany(ctx, u.Roles)
	if err != nil {
		return user.Session{}, fmt.Errorf("load contexts: %w", err)
	}

	byID := make(map[string]string, len(found))
	for _, c := range found {
		byID[c.ID] = c.Name
	}

	names := make([]string, 0, len(u.Roles))
	for _, id := range u.Roles {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		}
	}

	return user.Session{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Roles:     names,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}, nil
}

// VerifyToken resolves a session token to its user. Any failure, including a
// deleted user, is ErrUnauthenticated; store errors are returned as is.
func (s *Service) VerifyToken(ctx context.Context, token string) (user.User, error) {
	if strings.TrimSpace(token) == "" {
		return user.User{}, ErrUnauthenticated
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return user.User{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrUnauthenticated
		}
		return user.User{}, err
	}
	return u, nil
}
