package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/contextbridge/internal/domain/user"
)

type UsersRepo struct {
	mu      sync.RWMutex
	items   map[string]user.User
	byEmail map[string]string // email -> id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func cloneUser(u user.User) user.User {
	u.Roles = cloneStrings(u.Roles)
	return u
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	u.Email = user.NormalizeEmail(u.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return user.User{}, user.ErrEmailTaken
	}

	stored := cloneUser(u)
	r.items[u.ID] = stored
	r.byEmail[u.Email] = u.ID

	return cloneUser(stored), nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return cloneUser(r.items[id]), nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	r.mu.RLock()
	out := make([]user.User, 0, len(r.items))
	for _, u := range r.items {
		out = append(out, cloneUser(u))
	}
	r.mu.RUnlock()

	sortByCreated(out, func(u user.User) time.Time { return u.CreatedAt }, func(u user.User) string { return u.ID })
	return out, nil
}

func (r *UsersRepo) Update(ctx context.Context, id string, req user.UpdateRequest) (user.User, error) {
	req.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if req.IsEmpty() {
		return cloneUser(current), nil
	}

	if req.Email != nil && *req.Email != current.Email {
		if _, taken := r.byEmail[*req.Email]; taken {
			return user.User{}, user.ErrEmailTaken
		}
	}

	updated := current.Apply(req)
	updated.UpdatedAt = time.Now().UTC()

	delete(r.byEmail, current.Email)
	r.byEmail[updated.Email] = id
	r.items[id] = updated

	return cloneUser(updated), nil
}

// Delete is idempotent: removing an unknown id is not an error.
func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.items[id]; ok {
		delete(r.byEmail, u.Email)
		delete(r.items, id)
	}
	return nil
}

func (r *UsersRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
