package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/contextbridge/internal/config"
	"github.com/geocoder89/contextbridge/internal/domain/user"
	"github.com/geocoder89/contextbridge/internal/http/handlers"
	"github.com/geocoder89/contextbridge/internal/http/middlewares"
	"github.com/geocoder89/contextbridge/internal/identity"
	"github.com/gin-gonic/gin"
)

type fakeVerifier struct {
	u   user.User
	err error
}

func (f fakeVerifier) VerifyToken(ctx context.Context, token string) (user.User, error) {
	return f.u, f.err
}

func TestLoginHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		authFn     func(ctx context.Context, email, password string) (identity.LoginResult, error)
		wantStatus int
		wantCode   string
	}{
		{
			name: "ok",
			body: `{"email":"a@example.com","password":"password1"}`,
			authFn: func(ctx context.Context, email, password string) (identity.LoginResult, error) {
				return identity.LoginResult{
					Token:     "tok",
					User:      user.Session{ID: "1", Email: email, Roles: []string{"Sales"}},
					ExpiresAt: time.Now().Add(time.Hour),
				}, nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "unknown_email",
			body: `{"email":"nobody@example.com","password":"password1"}`,
			authFn: func(ctx context.Context, email, password string) (identity.LoginResult, error) {
				return identity.LoginResult{}, identity.ErrUnknownEmail
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_credentials",
		},
		{
			name: "wrong_password",
			body: `{"email":"a@example.com","password":"nope"}`,
			authFn: func(ctx context.Context, email, password string) (identity.LoginResult, error) {
				return identity.LoginResult{}, identity.ErrWrongPassword
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_credentials",
		},
		{
			name: "missing_password",
			body: `{"email":"a@example.com"}`,
			authFn: func(ctx context.Context, email, password string) (identity.LoginResult, error) {
				return identity.LoginResult{}, identity.ErrMissingPassword
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewAuthHandler(&fakeAuthenticator{authenticateFn: tt.authFn}, config.Config{CookieName: "jwt"})
			r := setupRouter(http.MethodPost, "/api/login", h.Login)

			req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantCode != "" {
				var body errorBody
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if body.Error.Code != tt.wantCode {
					t.Fatalf("got code %q, want %q", body.Error.Code, tt.wantCode)
				}
				return
			}

			var resp struct {
				Success bool   `json:"success"`
				Token   string `json:"token"`
				Data    struct {
					User user.Session `json:"user"`
				} `json:"data"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !resp.Success || resp.Token != "tok" || resp.Data.User.Roles[0] != "Sales" {
				t.Fatalf("unexpected response %+v", resp)
			}

			cookies := w.Result().Cookies()
			if len(cookies) != 1 || cookies[0].Name != "jwt" || cookies[0].Value != "tok" || !cookies[0].HttpOnly {
				t.Fatalf("unexpected cookies %+v", cookies)
			}
			if cookies[0].Secure {
				t.Fatalf("cookie must not be Secure outside prod")
			}
		})
	}
}

func TestRegisterHandler(t *testing.T) {
	var got identity.RegisterInput
	auth := &fakeAuthenticator{
		registerFn: func(ctx context.Context, in identity.RegisterInput) (user.Registered, error) {
			got = in
			return user.Registered{ID: "1", Email: in.Email}, nil
		},
	}

	h := handlers.NewAuthHandler(auth, config.Config{})
	r := setupRouter(http.MethodPost, "/api/register", h.Register)

	body := `{"email":"a@example.com","password":"password1","name":"A"}`
	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if got.Email != "a@example.com" || got.Password != "password1" || got.Name != "A" {
		t.Fatalf("unexpected register input %+v", got)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("password")) {
		t.Fatalf("response must not echo the password: %s", w.Body.String())
	}
}

func TestCurrentUserHandler(t *testing.T) {
	session := user.Session{ID: "1", Email: "a@example.com", Roles: []string{}}
	auth := &fakeAuthenticator{
		sessionFn: func(ctx context.Context, u user.User) (user.Session, error) {
			return session, nil
		},
	}

	tests := []struct {
		name       string
		token      string
		verifier   fakeVerifier
		wantStatus int
		wantNull   bool
	}{
		{"anonymous", "", fakeVerifier{}, http.StatusOK, true},
		{"session", "tok", fakeVerifier{u: user.User{ID: "1"}}, http.StatusOK, false},
		{"bad_token", "tok", fakeVerifier{err: identity.ErrUnauthenticated}, http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewAuthHandler(auth, config.Config{})
			am := middlewares.NewAuthMiddleware(tt.verifier, "jwt")

			r := gin.New()
			r.GET("/api/user", am.SessionAuth(), h.CurrentUser)

			req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp struct {
				CurrentUser *user.Session `json:"currentUser"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if tt.wantNull != (resp.CurrentUser == nil) {
				t.Fatalf("unexpected currentUser %+v", resp.CurrentUser)
			}
		})
	}
}

func TestLogoutHandler_ClearsCookie(t *testing.T) {
	h := handlers.NewAuthHandler(&fakeAuthenticator{}, config.Config{CookieName: "jwt"})
	r := setupRouter(http.MethodPost, "/api/logout", h.Logout)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/logout", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 || cookies[0].Value != "" {
		t.Fatalf("expected an expired cookie, got %+v", cookies)
	}
}
