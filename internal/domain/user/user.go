package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // never expose hash in JSON
	Name         string `json:"name"`
	// ordered Context ids, duplicates allowed
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateRequest struct {
	Email    string   `json:"email" binding:"required,email"`
	Password string   `json:"password" binding:"required,min=8,max=72"`
	Name     string   `json:"name" binding:"required,max=120"`
	Roles    []string `json:"roles" binding:"omitempty,dive,uuid"`
}

// UpdateRequest is a partial update: nil fields are left untouched.
type UpdateRequest struct {
	Name  *string   `json:"name" binding:"omitempty,min=1,max=120"`
	Email *string   `json:"email" binding:"omitempty,email"`
	Roles *[]string `json:"roles" binding:"omitempty,dive,uuid"`
}

func (r UpdateRequest) IsEmpty() bool {
	return r.Name == nil && r.Email == nil && r.Roles == nil
}

// Normalize lower-cases the email in place so uniqueness checks are case-insensitive.
func (r *UpdateRequest) Normalize() {
	if r.Email != nil {
		e := NormalizeEmail(*r.Email)
		r.Email = &e
	}
	if r.Roles != nil && *r.Roles == nil {
		empty := []string{}
		r.Roles = &empty
	}
}

// Apply merges the recognized fields of req into u. It does not touch UpdatedAt.
func (u User) Apply(req UpdateRequest) User {
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.Roles != nil {
		u.Roles = append([]string{}, (*req.Roles)...)
	}
	return u
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func New(email, passwordHash, name string, roles []string) User {
	now := time.Now().UTC()

	if roles == nil {
		roles = []string{}
	}

	return User{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(name),
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Registered is the reduced projection returned by registration.
type Registered struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the projection returned on login: role names instead of ids, no hash.
type Session struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
