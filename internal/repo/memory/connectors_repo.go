package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/contextbridge/internal/domain/connector"
)

// ConnectorsRepo stores one kind of connector (data or llm).
type ConnectorsRepo struct {
	kind  connector.Kind
	mu    sync.RWMutex
	items map[string]connector.Connector
}

func NewConnectorsRepo(kind connector.Kind) *ConnectorsRepo {
	return &ConnectorsRepo{
		kind:  kind,
		items: make(map[string]connector.Connector),
	}
}

func cloneConnector(c connector.Connector) connector.Connector {
	c.Config = cloneMap(c.Config)
	return c
}

func (r *ConnectorsRepo) Kind() connector.Kind {
	return r.kind
}

func (r *ConnectorsRepo) Create(ctx context.Context, req connector.CreateRequest) (connector.Connector, error) {
	c := connector.NewFromCreateRequest(req)

	r.mu.Lock()
	r.items[c.ID] = cloneConnector(c)
	r.mu.Unlock()

	return c, nil
}

func (r *ConnectorsRepo) GetByID(ctx context.Context, id string) (connector.Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.items[id]
	if !ok {
		return connector.Connector{}, connector.ErrNotFound
	}
	return cloneConnector(c), nil
}

func (r *ConnectorsRepo) GetMany(ctx context.Context, ids []string) ([]connector.Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(ids))
	out := make([]connector.Connector, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if c, ok := r.items[id]; ok {
			out = append(out, cloneConnector(c))
		}
	}
	return out, nil
}

func (r *ConnectorsRepo) List(ctx context.Context) ([]connector.Connector, error) {
	r.mu.RLock()
	out := make([]connector.Connector, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, cloneConnector(c))
	}
	r.mu.RUnlock()

	sortByCreated(out, func(c connector.Connector) time.Time { return c.CreatedAt }, func(c connector.Connector) string { return c.ID })
	return out, nil
}

func (r *ConnectorsRepo) Update(ctx context.Context, id string, req connector.UpdateRequest) (connector.Connector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[id]
	if !ok {
		return connector.Connector{}, connector.ErrNotFound
	}
	if req.IsEmpty() {
		return cloneConnector(current), nil
	}

	updated := current.Apply(req)
	updated.Config = cloneMap(updated.Config)
	updated.UpdatedAt = time.Now().UTC()
	r.items[id] = updated

	return cloneConnector(updated), nil
}

func (r *ConnectorsRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
	return nil
}
