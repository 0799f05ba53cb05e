package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/contextbridge/internal/domain/contexts"
)

type ContextsRepo struct {
	mu    sync.RWMutex
	items map[string]contexts.Context
}

func NewContextsRepo() *ContextsRepo {
	return &ContextsRepo{items: make(map[string]contexts.Context)}
}

func cloneContext(c contexts.Context) contexts.Context {
	c.DataConnectors = cloneStrings(c.DataConnectors)
	return c
}

func (r *ContextsRepo) Create(ctx context.Context, req contexts.CreateRequest) (contexts.Context, error) {
	c := contexts.NewFromCreateRequest(req)

	r.mu.Lock()
	r.items[c.ID] = cloneContext(c)
	r.mu.Unlock()

	return c, nil
}

func (r *ContextsRepo) GetByID(ctx context.Context, id string) (contexts.Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.items[id]
	if !ok {
		return contexts.Context{}, contexts.ErrNotFound
	}
	return cloneContext(c), nil
}

// GetMany returns the contexts that exist among ids, each at most once, in no
// particular order. Unknown ids are skipped.
func (r *ContextsRepo) GetMany(ctx context.Context, ids []string) ([]contexts.Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(ids))
	out := make([]contexts.Context, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if c, ok := r.items[id]; ok {
			out = append(out, cloneContext(c))
		}
	}
	return out, nil
}

func (r *ContextsRepo) List(ctx context.Context) ([]contexts.Context, error) {
	r.mu.RLock()
	out := make([]contexts.Context, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, cloneContext(c))
	}
	r.mu.RUnlock()

	sortByCreated(out, func(c contexts.Context) time.Time { return c.CreatedAt }, func(c contexts.Context) string { return c.ID })
	return out, nil
}

func (r *ContextsRepo) Update(ctx context.Context, id string, req contexts.UpdateRequest) (contexts.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[id]
	if !ok {
		return contexts.Context{}, contexts.ErrNotFound
	}
	if req.IsEmpty() {
		return cloneContext(current), nil
	}

	updated := current.Apply(req)
	updated.UpdatedAt = time.Now().UTC()
	r.items[id] = updated

	return cloneContext(updated), nil
}

func (r *ContextsRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
	return nil
}
