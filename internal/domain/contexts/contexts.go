// Package contexts holds the Context entity: a named bundle of data connector
// permissions that can be assigned to users as a role.
package contexts

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("context not found")

type Context struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// ordered DataConnector ids
	DataConnectors []string  `json:"data_connector"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type CreateRequest struct {
	Name           string   `json:"name" binding:"required,max=120"`
	DataConnectors []string `json:"data_connector" binding:"omitempty,dive,uuid"`
}

type UpdateRequest struct {
	Name           *string   `json:"name" binding:"omitempty,min=1,max=120"`
	DataConnectors *[]string `json:"data_connector" binding:"omitempty,dive,uuid"`
}

func (r UpdateRequest) IsEmpty() bool {
	return r.Name == nil && r.DataConnectors == nil
}

func (c Context) Apply(req UpdateRequest) Context {
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.DataConnectors != nil {
		c.DataConnectors = append([]string{}, (*req.DataConnectors)...)
	}
	return c
}

func NewFromCreateRequest(req CreateRequest) Context {
	now := time.Now().UTC()

	ids := req.DataConnectors
	if ids == nil {
		ids = []string{}
	}

	return Context{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(req.Name),
		DataConnectors: ids,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
