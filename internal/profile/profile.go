// Package profile resolves a user's roles into the ordered list of context
// names and data connectors the user is entitled to.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/contextbridge/internal/domain/connector"
	"github.com/geocoder89/contextbridge/internal/domain/contexts"
	"github.com/geocoder89/contextbridge/internal/domain/user"
)

var ErrUserNotFound = errors.New("user not found")

type UserReader interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type ContextReader interface {
	GetMany(ctx context.Context, ids []string) ([]contexts.Context, error)
}

type ConnectorReader interface {
	GetMany(ctx context.Context, ids []string) ([]connector.Connector, error)
}

type Profile struct {
	// context names in role order, duplicates kept
	Names      []string
	Connectors []connector.Connector
}

type Resolver struct {
	users      UserReader
	contexts   ContextReader
	connectors ConnectorReader
}

func NewResolver(users UserReader, ctxs ContextReader, connectors ConnectorReader) *Resolver {
	return &Resolver{users: users, contexts: ctxs, connectors: connectors}
}

// ResolveProfile walks user -> contexts -> data connectors. Dangling references
// are skipped. A connector shared by several contexts appears once per context.
func (r *Resolver) ResolveProfile(ctx context.Context, userID string) (Profile, error) {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, fmt.Errorf("load user: %w", err)
	}

	found, err := r.contexts.GetMany(ctx, u.Roles)
	if err != nil {
		return Profile{}, fmt.Errorf("load contexts: %w", err)
	}
	ctxByID := make(map[string]contexts.Context, len(found))
	for _, c := range found {
		ctxByID[c.ID] = c
	}

	ordered := make([]contexts.Context, 0, len(u.Roles))
	var connectorIDs []string
	for _, id := range u.Roles {
		c, ok := ctxByID[id]
		if !ok {
			continue
		}
		ordered = append(ordered, c)
		connectorIDs = append(connectorIDs, c.DataConnectors...)
	}

	conns, err := r.connectors.GetMany(ctx, connectorIDs)
	if err != nil {
		return Profile{}, fmt.Errorf("load data connectors: %w", err)
	}
	connByID := make(map[string]connector.Connector, len(conns))
	for _, c := range conns {
		connByID[c.ID] = c
	}

	p := Profile{
		Names:      make([]string, 0, len(ordered)),
		Connectors: make([]connector.Connector, 0, len(connectorIDs)),
	}
	for _, c := range ordered {
		p.Names = append(p.Names, c.Name)
		for _, id := range c.DataConnectors {
			if conn, ok := connByID[id]; ok {
				p.Connectors = append(p.Connectors, conn)
			}
		}
	}
	return p, nil
}
