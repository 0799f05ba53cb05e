package db

import (
	"context"
	"errors"

	"github.com/geocoder89/contextbridge/internal/config"
	"github.com/geocoder89/contextbridge/internal/domain/user"
	"github.com/geocoder89/contextbridge/internal/security"
)

type AdminUserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

// EnsureAdminUser creates the bootstrap account from ADMIN_EMAIL and
// ADMIN_PASSWORD if it does not exist yet. It reports whether a user was created.
func EnsureAdminUser(ctx context.Context, users AdminUserStore, cfg config.Config) (bool, error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}

	// check if the user exists
	_, err := users.GetByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	hash, err := security.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		return false, err
	}

	_, err = users.Create(ctx, user.New(cfg.AdminEmail, hash, cfg.AdminName, nil))
	if errors.Is(err, user.ErrEmailTaken) {
		// lost a race with another instance
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
