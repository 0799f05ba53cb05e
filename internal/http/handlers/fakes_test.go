package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/geocoder89/contextbridge/internal/domain/connector"
	"github.com/geocoder89/contextbridge/internal/domain/contexts"
	"github.com/geocoder89/contextbridge/internal/domain/user"
	"github.com/geocoder89/contextbridge/internal/http/middlewares"
	"github.com/geocoder89/contextbridge/internal/identity"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Make sure Gin does not spam the console during the test
func init() {
	gin.SetMode(gin.TestMode)
}

func newUUID() string {
	return uuid.NewString()
}

// setupRouter mounts one handler behind the error middleware so unhandled
// errors render as they do in production.
func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.ErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil))))
	r.Handle(method, path, h)
	return r
}

type errorBody struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// Fake repository implementations of the handler store interfaces

type fakeUsersRepo struct {
	getFn    func(ctx context.Context, id string) (user.User, error)
	listFn   func(ctx context.Context) ([]user.User, error)
	updateFn func(ctx context.Context, id string, req user.UpdateRequest) (user.User, error)
	deleteFn func(ctx context.Context, id string) error
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return user.User{}, nil
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]user.User, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return []user.User{}, nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, id string, req user.UpdateRequest) (user.User, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, req)
	}
	return user.User{}, nil
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeContextsRepo struct {
	createFn  func(ctx context.Context, req contexts.CreateRequest) (contexts.Context, error)
	getFn     func(ctx context.Context, id string) (contexts.Context, error)
	getManyFn func(ctx context.Context, ids []string) ([]contexts.Context, error)
	listFn    func(ctx context.Context) ([]contexts.Context, error)
	updateFn  func(ctx context.Context, id string, req contexts.UpdateRequest) (contexts.Context, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (f *fakeContextsRepo) Create(ctx context.Context, req contexts.CreateRequest) (contexts.Context, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return contexts.Context{}, nil
}

func (f *fakeContextsRepo) GetByID(ctx context.Context, id string) (contexts.Context, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return contexts.Context{}, nil
}

func (f *fakeContextsRepo) GetMany(ctx context.Context, ids []string) ([]contexts.Context, error) {
	if f.getManyFn != nil {
		return f.getManyFn(ctx, ids)
	}
	return nil, nil
}

func (f *fakeContextsRepo) List(ctx context.Context) ([]contexts.Context, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return []contexts.Context{}, nil
}

func (f *fakeContextsRepo) Update(ctx context.Context, id string, req contexts.UpdateRequest) (contexts.Context, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, req)
	}
	return contexts.Context{}, nil
}

func (f *fakeContextsRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeConnectorsRepo struct {
	createFn  func(ctx context.Context, req connector.CreateRequest) (connector.Connector, error)
	getFn     func(ctx context.Context, id string) (connector.Connector, error)
	getManyFn func(ctx context.Context, ids []string) ([]connector.Connector, error)
	listFn    func(ctx context.Context) ([]connector.Connector, error)
	updateFn  func(ctx context.Context, id string, req connector.UpdateRequest) (connector.Connector, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (f *fakeConnectorsRepo) Create(ctx context.Context, req connector.CreateRequest) (connector.Connector, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return connector.Connector{}, nil
}

func (f *fakeConnectorsRepo) GetByID(ctx context.Context, id string) (connector.Connector, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return connector.Connector{}, nil
}

func (f *fakeConnectorsRepo) GetMany(ctx context.Context, ids []string) ([]connector.Connector, error) {
	if f.getManyFn != nil {
		return f.getManyFn(ctx, ids)
	}
	return nil, nil
}

func (f *fakeConnectorsRepo) List(ctx context.Context) ([]connector.Connector, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return []connector.Connector{}, nil
}

func (f *fakeConnectorsRepo) Update(ctx context.Context, id string, req connector.UpdateRequest) (connector.Connector, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, req)
	}
	return connector.Connector{}, nil
}

func (f *fakeConnectorsRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeAuthenticator struct {
	registerFn     func(ctx context.Context, in identity.RegisterInput) (user.Registered, error)
	authenticateFn func(ctx context.Context, email, password string) (identity.LoginResult, error)
	sessionFn      func(ctx context.Context, u user.User) (user.Session, error)
}

func (f *fakeAuthenticator) Register(ctx context.Context, in identity.RegisterInput) (user.Registered, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, in)
	}
	return user.Registered{}, nil
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, email, password string) (identity.LoginResult, error) {
	if f.authenticateFn != nil {
		return f.authenticateFn(ctx, email, password)
	}
	return identity.LoginResult{}, nil
}

func (f *fakeAuthenticator) Session(ctx context.Context, u user.User) (user.Session, error) {
	if f.sessionFn != nil {
		return f.sessionFn(ctx, u)
	}
	return user.Session{}, nil
}

type fakeAsker struct {
	askFn    func(ctx context.Context, userID, q string) (json.RawMessage, error)
	tracesFn func(ctx context.Context) (json.RawMessage, error)
}

func (f *fakeAsker) Ask(ctx context.Context, userID, q string) (json.RawMessage, error) {
	if f.askFn != nil {
		return f.askFn(ctx, userID, q)
	}
	return json.RawMessage(`{}`), nil
}

func (f *fakeAsker) Traces(ctx context.Context) (json.RawMessage, error) {
	if f.tracesFn != nil {
		return f.tracesFn(ctx)
	}
	return json.RawMessage(`[]`), nil
}
