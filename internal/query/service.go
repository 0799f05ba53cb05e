// Package query assembles the gateway payload for a user's question and relays
// the gateway's answers.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/geocoder89/contextbridge/internal/cache"
	"github.com/geocoder89/contextbridge/internal/gateway"
	"github.com/geocoder89/contextbridge/internal/profile"
)

const tracesKey = "traces"

// UpstreamError carries the payload that was sent when the gateway call failed.
type UpstreamError struct {
	Payload Payload
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("model gateway: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

type ProfileResolver interface {
	ResolveProfile(ctx context.Context, userID string) (profile.Profile, error)
}

type Service struct {
	resolver ProfileResolver
	gateway  gateway.Gateway
	traces   *cache.Cache[json.RawMessage]
	log      *slog.Logger
}

func NewService(resolver ProfileResolver, gw gateway.Gateway, traces *cache.Cache[json.RawMessage], log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{resolver: resolver, gateway: gw, traces: traces, log: log}
}

// Ask resolves the user's profile, forwards the assembled payload and returns
// the gateway's answer untouched. profile.ErrUserNotFound is returned as is.
func (s *Service) Ask(ctx context.Context, userID, q string) (json.RawMessage, error) {
	p, err := s.resolver.ResolveProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	payload := BuildPayload(p.Connectors, p.Names, q)

	s.log.DebugContext(ctx, "query_forward",
		"target_user", userID,
		"connectors", len(payload.Connectors),
		"profile", payload.Profile,
	)

	answer, err := s.gateway.Query(ctx, payload)
	if err != nil {
		return nil, &UpstreamError{Payload: payload, Err: err}
	}
	return answer, nil
}

// Traces relays the gateway's trace log, served from a short-lived cache when set.
func (s *Service) Traces(ctx context.Context) (json.RawMessage, error) {
	fetch := func(ctx context.Context) (json.RawMessage, error) {
		raw, err := s.gateway.Traces(ctx)
		if err != nil {
			return nil, &UpstreamError{Err: err}
		}
		return raw, nil
	}

	if s.traces == nil {
		return fetch(ctx)
	}
	return s.traces.GetOrLoad(ctx, tracesKey, fetch)
}
