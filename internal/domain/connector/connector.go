package connector

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("connector not found")

// Kind separates data source connectors from model backend connectors. Both
// share one shape but live in different collections.
type Kind string

const (
	KindData Kind = "data"
	KindLLM  Kind = "llm"
)

func (k Kind) Label() string {
	switch k {
	case KindLLM:
		return "LLM connector"
	default:
		return "Data connector"
	}
}

type Connector struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// free-form tag, e.g. "sql", "rest", "files"
	Type string `json:"type"`
	// connector specific connection details, treated as opaque
	Config    map[string]any `json:"config"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type CreateRequest struct {
	Name   string         `json:"name" binding:"required,max=120"`
	Type   string         `json:"type" binding:"required,max=40"`
	Config map[string]any `json:"config" binding:"required"`
}

type UpdateRequest struct {
	Name   *string        `json:"name" binding:"omitempty,min=1,max=120"`
	Type   *string        `json:"type" binding:"omitempty,min=1,max=40"`
	Config map[string]any `json:"config"`
}

func (r UpdateRequest) IsEmpty() bool {
	return r.Name == nil && r.Type == nil && r.Config == nil
}

func (c Connector) Apply(req UpdateRequest) Connector {
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Type != nil {
		c.Type = *req.Type
	}
	if req.Config != nil {
		c.Config = req.Config
	}
	return c
}

func NewFromCreateRequest(req CreateRequest) Connector {
	now := time.Now().UTC()

	cfg := req.Config
	if cfg == nil {
		cfg = map[string]any{}
	}

	return Connector{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Type:      strings.TrimSpace(req.Type),
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
