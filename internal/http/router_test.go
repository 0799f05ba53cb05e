package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/contextbridge/internal/auth"
	"github.com/geocoder89/contextbridge/internal/cache"
	"github.com/geocoder89/contextbridge/internal/config"
	"github.com/geocoder89/contextbridge/internal/domain/connector"
	apphttp "github.com/geocoder89/contextbridge/internal/http"
	"github.com/geocoder89/contextbridge/internal/http/handlers"
	"github.com/geocoder89/contextbridge/internal/identity"
	"github.com/geocoder89/contextbridge/internal/observability"
	"github.com/geocoder89/contextbridge/internal/profile"
	"github.com/geocoder89/contextbridge/internal/query"
	"github.com/geocoder89/contextbridge/internal/repo/memory"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGateway struct {
	mu       sync.Mutex
	payloads []query.Payload
	err      error
	traces   json.RawMessage
}

func (f *fakeGateway) Query(ctx context.Context, payload any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := payload.(query.Payload); ok {
		f.payloads = append(f.payloads, p)
	}
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"answer":"42","citations":[],"trace_id":"t-1","elapsed_ms":7}`), nil
}

func (f *fakeGateway) Traces(ctx context.Context) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.traces, nil
}

type testApp struct {
	router *gin.Engine
	users  *memory.UsersRepo
	gw     *fakeGateway
}

func newTestApp(t *testing.T) testApp {
	t.Helper()

	cfg := config.Config{
		Env:                    "test",
		CookieName:             "jwt",
		BcryptCost:             4,
		RateLimitRequests:      100,
		RateLimitWindowSeconds: 60,
		MaxBodyBytes:           1 << 20,
	}

	users := memory.NewUsersRepo()
	ctxs := memory.NewContextsRepo()
	data := memory.NewConnectorsRepo(connector.KindData)
	llm := memory.NewConnectorsRepo(connector.KindLLM)

	gw := &fakeGateway{traces: json.RawMessage(`[{"trace_id":"t-1"}]`)}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	idSvc := identity.NewService(users, ctxs, auth.NewManager("test-secret", time.Hour), cfg.BcryptCost)
	querySvc := query.NewService(profile.NewResolver(users, ctxs, data), gw, cache.New[json.RawMessage](time.Minute), log)

	r := apphttp.NewRouter(apphttp.Deps{
		Log:            log,
		Cfg:            cfg,
		Users:          users,
		Contexts:       ctxs,
		DataConnectors: data,
		LLMConnectors:  llm,
		Identity:       idSvc,
		Query:          querySvc,
	})

	return testApp{router: r, users: users, gw: gw}
}

func (a testApp) do(t *testing.T, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutate {
		m(req)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body=%s", w.Body.String())
	return v
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestRegister_DuplicateEmailConflict(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/register", `{"email":"a@x.io","password":"password1","name":"A"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode[struct {
		Message string `json:"message"`
		User    struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}](t, w)
	require.Equal(t, "User registered successfully", created.Message)
	require.Equal(t, "a@x.io", created.User.Email)
	require.NotContains(t, w.Body.String(), "password")

	w = app.do(t, http.MethodPost, "/api/register", `{"email":"A@X.io","password":"password2","name":"B"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "email_taken", decode[errorEnvelope](t, w).Error.Code)
	require.Equal(t, 1, app.users.Count())
}

func TestLogin_Flows(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/register", `{"email":"a@x.io","password":"password1","name":"A"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	// unknown email and wrong password look identical
	unknown := app.do(t, http.MethodPost, "/api/login", `{"email":"b@x.io","password":"password1"}`)
	wrong := app.do(t, http.MethodPost, "/api/login", `{"email":"a@x.io","password":"nope-nope"}`)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, decode[errorEnvelope](t, unknown).Error, decode[errorEnvelope](t, wrong).Error)

	bodiless := app.do(t, http.MethodPost, "/api/login", "")
	require.Equal(t, http.StatusBadRequest, bodiless.Code)
	require.Equal(t, "Email is required.", decode[errorEnvelope](t, bodiless).Error.Message)
	require.Contains(t, bodiless.Body.String(), `"field":"email"`)

	missing := app.do(t, http.MethodPost, "/api/login", `{"email":"a@x.io"}`)
	require.Equal(t, http.StatusBadRequest, missing.Code)
	require.Contains(t, missing.Body.String(), `"field":"password"`)

	ok := app.do(t, http.MethodPost, "/api/login", `{"email":"A@x.io","password":"password1"}`)
	require.Equal(t, http.StatusOK, ok.Code, ok.Body.String())

	session := decode[struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		Data    struct {
			User struct {
				ID    string   `json:"id"`
				Roles []string `json:"roles"`
			} `json:"user"`
		} `json:"data"`
	}](t, ok)
	require.True(t, session.Success)
	require.NotEmpty(t, session.Token)
	require.NotContains(t, ok.Body.String(), "password")

	var cookie *http.Cookie
	for _, c := range ok.Result().Cookies() {
		if c.Name == "jwt" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	// current user via cookie
	me := app.do(t, http.MethodGet, "/api/user", "", func(r *http.Request) { r.AddCookie(cookie) })
	require.Equal(t, http.StatusOK, me.Code)
	require.Contains(t, me.Body.String(), session.Data.User.ID)

	// no session
	anon := app.do(t, http.MethodGet, "/api/user", "")
	require.Equal(t, http.StatusOK, anon.Code)
	require.JSONEq(t, `{"currentUser":null}`, anon.Body.String())

	// tampered token
	bad := app.do(t, http.MethodGet, "/api/user", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+session.Token+"x")
	})
	require.Equal(t, http.StatusUnauthorized, bad.Code)

	out := app.do(t, http.MethodGet, "/api/logout", "")
	require.Equal(t, http.StatusOK, out.Code)
	cleared := out.Result().Cookies()
	require.Len(t, cleared, 1)
	require.Equal(t, "jwt", cleared[0].Name)
	require.Empty(t, cleared[0].Value)
	require.Less(t, cleared[0].MaxAge, 0)
}

func createID(t *testing.T, app testApp, path, body, key string) string {
	t.Helper()
	w := app.do(t, http.MethodPost, path, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	var doc struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp[key], &doc))
	require.NotEmpty(t, doc.ID)
	return doc.ID
}

func TestQuery_SharedConnectorAndDangling(t *testing.T) {
	app := newTestApp(t)

	x := createID(t, app, "/api/dataconnector", `{"name":"X","type":"sql","config":{"dsn":"pg://x"}}`, "connector")
	gone := createID(t, app, "/api/dataconnector", `{"name":"Gone","type":"rest","config":{}}`, "connector")
	a := createID(t, app, "/api/context", `{"name":"A","data_connector":["`+x+`","`+gone+`"]}`, "context")
	b := createID(t, app, "/api/context", `{"name":"B","data_connector":["`+x+`"]}`, "context")
	u := createID(t, app, "/api/register", `{"email":"u@x.io","password":"password1","name":"U","roles":["`+a+`","`+b+`"]}`, "user")

	del := app.do(t, http.MethodDelete, "/api/dataconnector/"+gone, "")
	require.Equal(t, http.StatusOK, del.Code)

	w := app.do(t, http.MethodPost, "/api/query", `{"id":"`+u+`","query":"revenue by region"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.JSONEq(t, `{"answer":"42","citations":[],"trace_id":"t-1","elapsed_ms":7}`, w.Body.String())

	require.Len(t, app.gw.payloads, 1)
	sent := app.gw.payloads[0]
	require.Equal(t, []string{"A", "B"}, sent.Profile)
	require.Equal(t, "revenue by region", sent.Query)
	require.Len(t, sent.Connectors, 2)
	for _, c := range sent.Connectors {
		require.Equal(t, "X", c.Name)
	}

	raw, err := json.Marshal(sent)
	require.NoError(t, err)
	require.NotContains(t, string(raw), `"id"`)
}

func TestQuery_Errors(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/query", `{"id":"nobody","query":"hi"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	u := createID(t, app, "/api/register", `{"email":"u@x.io","password":"password1","name":"U"}`, "user")

	app.gw.err = errors.New("connection refused")
	w = app.do(t, http.MethodPost, "/api/query", `{"id":"`+u+`","query":"hi"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	env := decode[errorEnvelope](t, w)
	require.Equal(t, "upstream_error", env.Error.Code)
	payload, ok := env.Error.Details["model_payload"].(map[string]any)
	require.True(t, ok, "body=%s", w.Body.String())
	require.Equal(t, "hi", payload["query"])
	require.Equal(t, []any{}, payload["connectors"])
}

func TestOpenRoutes_IgnoreUnverifiableSession(t *testing.T) {
	app := newTestApp(t)
	u := createID(t, app, "/api/register", `{"email":"u@x.io","password":"password1","name":"U"}`, "user")

	stale := func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "jwt", Value: "eyJhbGciOiJIUzI1NiJ9.e30.bogus"})
	}

	for _, path := range []string{"/api/users", "/api/context", "/api/dataconnector", "/api/llmconnector", "/api/traces"} {
		w := app.do(t, http.MethodGet, path, "", stale)
		require.Equal(t, http.StatusOK, w.Code, "%s: %s", path, w.Body.String())
	}

	w := app.do(t, http.MethodPost, "/api/query", `{"id":"`+u+`","query":"hi"}`, stale)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// the session lookup itself still reports the bad token
	me := app.do(t, http.MethodGet, "/api/user", "", stale)
	require.Equal(t, http.StatusUnauthorized, me.Code)
}

func TestTraces_ETag(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/traces", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[{"trace_id":"t-1"}]`, w.Body.String())

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = app.do(t, http.MethodGet, "/api/traces", "", func(r *http.Request) { r.Header.Set("If-None-Match", etag) })
	require.Equal(t, http.StatusNotModified, w.Code)
}

func TestPatch_EmptyBodyReturnsUnchanged(t *testing.T) {
	app := newTestApp(t)

	id := createID(t, app, "/api/context", `{"name":"A"}`, "context")
	before := app.do(t, http.MethodGet, "/api/context/"+id, "")
	require.Equal(t, http.StatusOK, before.Code)

	for _, body := range []string{"", "{}"} {
		w := app.do(t, http.MethodPatch, "/api/context/"+id, body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.JSONEq(t, before.Body.String(), w.Body.String())
	}

	w := app.do(t, http.MethodPatch, "/api/context/"+id, `{"name":"Renamed","unknown":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"name":"Renamed"`)

	w = app.do(t, http.MethodPatch, "/api/context/missing", `{"name":"x"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDelete_UnknownIDSucceeds(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/api/users/", "/api/context/", "/api/dataconnector/", "/api/llmconnector/"} {
		w := app.do(t, http.MethodDelete, path+"nope", "")
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"message":"nope has been deleted"}`, w.Body.String())
	}
}

func TestUsers_ExpandRoles(t *testing.T) {
	app := newTestApp(t)

	a := createID(t, app, "/api/context", `{"name":"A"}`, "context")
	u := createID(t, app, "/api/register", `{"email":"u@x.io","password":"password1","name":"U","roles":["`+a+`"]}`, "user")

	w := app.do(t, http.MethodGet, "/api/users/"+u+"?expand=true", "")
	require.Equal(t, http.StatusOK, w.Code)

	got := decode[struct {
		Roles []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"roles"`
	}](t, w)
	require.Len(t, got.Roles, 1)
	require.Equal(t, "A", got.Roles[0].Name)

	w = app.do(t, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"roles":["`+a+`"]`)
	require.NotContains(t, w.Body.String(), "password")
}

func TestUnsupportedMediaType(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/context", `name=A`, func(r *http.Request) {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	})
	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestLLMConnector_Patch(t *testing.T) {
	app := newTestApp(t)

	id := createID(t, app, "/api/llmconnector", `{"name":"gpt","type":"openai","config":{"model":"m1"}}`, "connector")

	w := app.do(t, http.MethodPatch, "/api/llmconnector/"+id, `{"config":{"model":"m2"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"model":"m2"`)
	require.Contains(t, w.Body.String(), `"name":"gpt"`)

	w = app.do(t, http.MethodGet, "/api/dataconnector/"+id, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestOperationalRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	var dbDown bool
	r := apphttp.NewRouter(apphttp.Deps{
		Log:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		Cfg:            config.Config{Env: "test", MaxBodyBytes: 1 << 20},
		Prom:           prom,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadyChecks: map[string]handlers.Pinger{
			"db": pingFunc(func(ctx context.Context) error {
				if dbDown {
					return errors.New("connection refused")
				}
				return nil
			}),
			"redis": nil,
		},
	})
	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	require.Equal(t, http.StatusOK, get("/healthz").Code)

	w := get("/readyz")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.JSONEq(t, `{"status":"ready","checks":{"db":"ok"}}`, w.Body.String())

	dbDown = true
	w = get("/readyz")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "connection refused")

	w = get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `contextbridge_http_requests_total{method="GET",route="/readyz",status="503"} 1`)

	w = get("/docs/openapi.yaml")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ContextBridge")

	require.Equal(t, http.StatusNotFound, get("/nope").Code)
}
