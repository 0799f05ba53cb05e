package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/contextbridge/internal/gateway"
	"github.com/geocoder89/contextbridge/internal/http/handlers"
	"github.com/geocoder89/contextbridge/internal/profile"
	"github.com/geocoder89/contextbridge/internal/query"
)

func TestAskHandler(t *testing.T) {
	userID := newUUID()

	tests := []struct {
		name       string
		body       string
		askFn      func(ctx context.Context, id, q string) (json.RawMessage, error)
		wantStatus int
		wantCode   string
	}{
		{
			name: "relays_answer",
			body: `{"id":"` + userID + `","query":"revenue?"}`,
			askFn: func(ctx context.Context, id, q string) (json.RawMessage, error) {
				if id != userID || q != "revenue?" {
					t.Errorf("unexpected ask(%q, %q)", id, q)
				}
				return json.RawMessage(`{"answer":42}`), nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing_query",
			body:       `{"id":"` + userID + `"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "missing_user",
			body:       `{"query":"revenue?"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name: "unknown_user",
			body: `{"id":"` + userID + `","query":"revenue?"}`,
			askFn: func(ctx context.Context, id, q string) (json.RawMessage, error) {
				return nil, profile.ErrUserNotFound
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name: "gateway_failure",
			body: `{"id":"` + userID + `","query":"revenue?"}`,
			askFn: func(ctx context.Context, id, q string) (json.RawMessage, error) {
				return nil, &query.UpstreamError{
					Payload: query.Payload{Connectors: []query.ConnectorView{}, Query: q, Profile: []string{}},
					Err:     &gateway.StatusError{StatusCode: http.StatusBadGateway, Body: "bad"},
				}
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "upstream_error",
		},
		{
			name: "circuit_open",
			body: `{"id":"` + userID + `","query":"revenue?"}`,
			askFn: func(ctx context.Context, id, q string) (json.RawMessage, error) {
				return nil, &query.UpstreamError{Err: gateway.ErrCircuitOpen}
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "upstream_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewQueryHandler(&fakeAsker{askFn: tt.askFn})
			r := setupRouter(http.MethodPost, "/query", h.Ask)

			req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantCode == "" {
				if w.Body.String() != `{"answer":42}` {
					t.Fatalf("answer should be relayed untouched, got %s", w.Body.String())
				}
				return
			}

			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Fatalf("got code %q, want %q", body.Error.Code, tt.wantCode)
			}
			if tt.name == "gateway_failure" && !bytes.Contains(body.Error.Details, []byte(`"model_payload"`)) {
				t.Fatalf("expected the sent payload in details, got %s", body.Error.Details)
			}
		})
	}
}

func TestTracesHandler(t *testing.T) {
	calls := 0
	asker := &fakeAsker{
		tracesFn: func(ctx context.Context) (json.RawMessage, error) {
			calls++
			if calls > 1 {
				return nil, &query.UpstreamError{Err: errors.New("down")}
			}
			return json.RawMessage(`[{"id":"t1"}]`), nil
		},
	}

	h := handlers.NewQueryHandler(asker)
	r := setupRouter(http.MethodGet, "/traces", h.Traces)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/traces", nil))
	if w.Code != http.StatusOK || w.Body.String() != `[{"id":"t1"}]` {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") == "" {
		t.Fatalf("expected an ETag")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/traces", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want 500", w.Code)
	}
}
