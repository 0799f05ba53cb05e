// Package seed loads connectors, contexts and users from a YAML file. Contexts
// and users refer to their connectors and contexts by name.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/geocoder89/contextbridge/internal/domain/connector"
	"github.com/geocoder89/contextbridge/internal/domain/contexts"
	"github.com/geocoder89/contextbridge/internal/domain/user"
	"github.com/geocoder89/contextbridge/internal/identity"
	"gopkg.in/yaml.v3"
)

type File struct {
	DataConnectors []Connector `yaml:"data_connectors"`
	LLMConnectors  []Connector `yaml:"llm_connectors"`
	Contexts       []Context   `yaml:"contexts"`
	Users          []User      `yaml:"users"`
}

type Connector struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

type Context struct {
	Name           string   `yaml:"name"`
	DataConnectors []string `yaml:"data_connectors"`
}

type User struct {
	Email    string   `yaml:"email"`
	Password string   `yaml:"password"`
	Name     string   `yaml:"name"`
	Roles    []string `yaml:"roles"`
}

// Load decodes a seed file. Unknown keys are rejected.
func Load(r io.Reader) (File, error) {
	var f File

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("decode seed: %w", err)
	}

	for i, c := range append(append([]Connector{}, f.DataConnectors...), f.LLMConnectors...) {
		if c.Name == "" || c.Type == "" {
			return File{}, fmt.Errorf("connector #%d: name and type are required", i+1)
		}
	}
	for i, c := range f.Contexts {
		if c.Name == "" {
			return File{}, fmt.Errorf("context #%d: name is required", i+1)
		}
	}
	return f, nil
}

type ConnectorStore interface {
	Create(ctx context.Context, req connector.CreateRequest) (connector.Connector, error)
	List(ctx context.Context) ([]connector.Connector, error)
}

type ContextStore interface {
	Create(ctx context.Context, req contexts.CreateRequest) (contexts.Context, error)
	List(ctx context.Context) ([]contexts.Context, error)
}

type Registrar interface {
	Register(ctx context.Context, in identity.RegisterInput) (user.Registered, error)
}

type Targets struct {
	DataConnectors ConnectorStore
	LLMConnectors  ConnectorStore
	Contexts       ContextStore
	// Users may be nil when the file has no users.
	Users Registrar
}

// Result counts what was created; entries whose name (or email) already
// exists are skipped.
type Result struct {
	Created int
	Skipped int
}

// Apply writes f into t. It can be run repeatedly against the same store.
func Apply(ctx context.Context, t Targets, f File, log *slog.Logger) (Result, error) {
	if log == nil {
		log = slog.Default()
	}
	var res Result

	dataIDs, err := applyConnectors(ctx, t.DataConnectors, f.DataConnectors, &res)
	if err != nil {
		return res, fmt.Errorf("data connectors: %w", err)
	}
	if _, err := applyConnectors(ctx, t.LLMConnectors, f.LLMConnectors, &res); err != nil {
		return res, fmt.Errorf("llm connectors: %w", err)
	}

	contextIDs, err := applyContexts(ctx, t.Contexts, f.Contexts, dataIDs, &res)
	if err != nil {
		return res, fmt.Errorf("contexts: %w", err)
	}

	if len(f.Users) > 0 && t.Users == nil {
		return res, errors.New("users: no registrar configured")
	}
	for _, u := range f.Users {
		roles, err := lookupAll(u.Roles, contextIDs, "context")
		if err != nil {
			return res, fmt.Errorf("user %s: %w", u.Email, err)
		}

		_, err = t.Users.Register(ctx, identity.RegisterInput{
			Email:    u.Email,
			Password: u.Password,
			Name:     u.Name,
			Roles:    roles,
		})
		switch {
		case errors.Is(err, identity.ErrEmailTaken):
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("user %s: %w", u.Email, err)
		default:
			res.Created++
		}
	}

	log.Info("seed applied", "created", res.Created, "skipped", res.Skipped)
	return res, nil
}

func applyConnectors(ctx context.Context, s ConnectorStore, items []Connector, res *Result) (map[string]string, error) {
	ids := map[string]string{}

	existing, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		if _, dup := ids[c.Name]; !dup {
			ids[c.Name] = c.ID
		}
	}

	for _, item := range items {
		if _, ok := ids[item.Name]; ok {
			res.Skipped++
			continue
		}

		cfg := item.Config
		if cfg == nil {
			cfg = map[string]any{}
		}
		c, err := s.Create(ctx, connector.CreateRequest{Name: item.Name, Type: item.Type, Config: cfg})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", item.Name, err)
		}
		ids[c.Name] = c.ID
		res.Created++
	}
	return ids, nil
}

func applyContexts(ctx context.Context, s ContextStore, items []Context, connectorIDs map[string]string, res *Result) (map[string]string, error) {
	ids := map[string]string{}

	existing, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		if _, dup := ids[c.Name]; !dup {
			ids[c.Name] = c.ID
		}
	}

	for _, item := range items {
		if _, ok := ids[item.Name]; ok {
			res.Skipped++
			continue
		}

		refs, err := lookupAll(item.DataConnectors, connectorIDs, "data connector")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", item.Name, err)
		}

		c, err := s.Create(ctx, contexts.CreateRequest{Name: item.Name, DataConnectors: refs})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", item.Name, err)
		}
		ids[c.Name] = c.ID
		res.Created++
	}
	return ids, nil
}

// lookupAll maps names to ids keeping order and duplicates.
func lookupAll(names []string, ids map[string]string, what string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		id, ok := ids[n]
		if !ok {
			return nil, fmt.Errorf("unknown %s %q", what, n)
		}
		out = append(out, id)
	}
	return out, nil
}
