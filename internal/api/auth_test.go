package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oseayemenre/novelnest/internal/auth"
	"github.com/oseayemenre/novelnest/internal/models"
)

func hasCookie(rr *httptest.ResponseRecorder, name string) bool {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name && c.Value != "" {
			return true
		}
	}
	return false
}

func TestHandleRegister(t *testing.T) {
	tests := []struct {
		name         string
		body         any
		registerFunc func(ctx context.Context, email, displayName, password string) (*models.User, error)
		expectedCode int
	}{
		{
			name:         "should return 400 if json could not be decoded",
			body:         &struct{ Email int }{Email: 1},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "should return 400 if fields could not be validated",
			body: &models.HandleRegisterParams{
				Email:       "fail_email",
				DisplayName: "test",
				Password:    "12345678",
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "should return 400 if password is too short",
			body: &models.HandleRegisterParams{
				Email:       "test@test.com",
				DisplayName: "test",
				Password:    "1234",
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "should return 409 if email is already registered",
			body: &models.HandleRegisterParams{
				Email:       "test@test.com",
				DisplayName: "test",
				Password:    "12345678",
			},
			registerFunc: func(ctx context.Context, email, displayName, password string) (*models.User, error) {
				return nil, auth.ErrEmailTaken
			},
			expectedCode: http.StatusConflict,
		},
		{
			name: "should return 500 if something went wrong while registering",
			body: &models.HandleRegisterParams{
				Email:       "test@test.com",
				DisplayName: "test",
				Password:    "12345678",
			},
			registerFunc: func(ctx context.Context, email, displayName, password string) (*models.User, error) {
				return nil, errors.New("something went wrong")
			},
			expectedCode: http.StatusInternalServerError,
		},
		{
			name: "should register user and set token cookies",
			body: &models.HandleRegisterParams{
				Email:       "test@test.com",
				DisplayName: "test",
				Password:    "12345678",
			},
			expectedCode: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, registry := newTestApi(t)
			a.auth = &testAuthService{registerFunc: tt.registerFunc}

			body, _ := json.Marshal(tt.body)
			req := withReader(t, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBuffer(body)), registry, "device", "")
			rr := httptest.NewRecorder()

			a.HandleRegister(rr, req)

			if rr.Code != tt.expectedCode {
				t.Fatalf("expected %d, got %d", tt.expectedCode, rr.Code)
			}

			if tt.expectedCode == http.StatusCreated {
				if !hasCookie(rr, auth.AccessTokenCookie) || !hasCookie(rr, auth.RefreshTokenCookie) {
					t.Fatalf("expected token cookies to be set")
				}
				if got := readerFrom(req).UserID(); got != "user-id" {
					t.Fatalf("expected session to be attached to user-id, got %q", got)
				}
			}
		})
	}
}

func TestHandleLogin(t *testing.T) {
	tests := []struct {
		name         string
		body         any
		loginFunc    func(ctx context.Context, email, password string) (*models.User, error)
		expectedCode int
	}{
		{
			name:         "should return 400 if json could not be decoded",
			body:         "not an object",
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "should return 400 if password is missing",
			body:         &models.HandleLoginParams{Email: "test@test.com"},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "should return 401 if credentials are wrong",
			body: &models.HandleLoginParams{Email: "test@test.com", Password: "12345678"},
			loginFunc: func(ctx context.Context, email, password string) (*models.User, error) {
				return nil, auth.ErrInvalidCredentials
			},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "should return 500 if something went wrong while logging in",
			body: &models.HandleLoginParams{Email: "test@test.com", Password: "12345678"},
			loginFunc: func(ctx context.Context, email, password string) (*models.User, error) {
				return nil, errors.New("something went wrong")
			},
			expectedCode: http.StatusInternalServerError,
		},
		{
			name:         "should log user in",
			body:         &models.HandleLoginParams{Email: "test@test.com", Password: "12345678"},
			expectedCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, registry := newTestApi(t)
			a.auth = &testAuthService{loginFunc: tt.loginFunc}

			body, _ := json.Marshal(tt.body)
			req := withReader(t, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBuffer(body)), registry, "device", "")
			rr := httptest.NewRecorder()

			a.HandleLogin(rr, req)

			if rr.Code != tt.expectedCode {
				t.Fatalf("expected %d, got %d", tt.expectedCode, rr.Code)
			}

			if tt.expectedCode == http.StatusOK && !hasCookie(rr, auth.AccessTokenCookie) {
				t.Fatalf("expected access token cookie to be set")
			}
		})
	}
}

func TestHandleLogout(t *testing.T) {
	a, _, registry := newTestApi(t)

	req := withReader(t, httptest.NewRequest(http.MethodPost, "/auth/logout", nil), registry, "device", "user-id")
	rr := httptest.NewRecorder()

	a.HandleLogout(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rr.Code)
	}

	if got := readerFrom(req).UserID(); got != "" {
		t.Fatalf("expected session to be signed out, got %q", got)
	}

	for _, c := range rr.Result().Cookies() {
		if c.MaxAge >= 0 {
			t.Fatalf("expected cookie %s to be cleared", c.Name)
		}
	}
}

func TestHandleRefreshToken(t *testing.T) {
	refresh, err := auth.CreateJWTToken("user-id", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	forged, err := auth.CreateJWTToken("user-id", "other-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		cookie       *http.Cookie
		expectedCode int
	}{
		{
			name:         "should return 401 if refresh token cookie is missing",
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "should return 401 if refresh token is signed with another secret",
			cookie:       &http.Cookie{Name: auth.RefreshTokenCookie, Value: forged},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "should issue new tokens",
			cookie:       &http.Cookie{Name: auth.RefreshTokenCookie, Value: refresh},
			expectedCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, registry := newTestApi(t)

			req := httptest.NewRequest(http.MethodPost, "/auth/refresh-token", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			req = withReader(t, req, registry, "device", "")
			rr := httptest.NewRecorder()

			a.HandleRefreshToken(rr, req)

			if rr.Code != tt.expectedCode {
				t.Fatalf("expected %d, got %d", tt.expectedCode, rr.Code)
			}
			if tt.expectedCode == http.StatusOK && !hasCookie(rr, auth.RefreshTokenCookie) {
				t.Fatalf("expected refresh token cookie to be set")
			}
		})
	}
}

func TestHandleGetProfile(t *testing.T) {
	a, _, registry := newTestApi(t)
	a.auth = &testAuthService{getUserFunc: func(ctx context.Context, id string) (*models.User, error) {
		if id != "user-id" {
			return nil, auth.ErrUserNotFound
		}
		return &models.User{ID: id, Email: "test@test.com", DisplayName: "test"}, nil
	}}

	rr := httptest.NewRecorder()
	a.HandleGetProfile(rr, withReader(t, httptest.NewRequest(http.MethodGet, "/users/me", nil), registry, "a", "user-id"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rr.Code)
	}

	var user models.User
	if err := json.NewDecoder(rr.Body).Decode(&user); err != nil {
		t.Fatal(err)
	}
	if user.DisplayName != "test" {
		t.Fatalf("expected display name test, got %q", user.DisplayName)
	}

	rr = httptest.NewRecorder()
	a.HandleGetProfile(rr, withReader(t, httptest.NewRequest(http.MethodGet, "/users/me", nil), registry, "b", "missing"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected %d, got %d", http.StatusNotFound, rr.Code)
	}
}
