package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/reconhub/auth-service/internal/http/middleware"
	"github.com/reconhub/auth-service/internal/security"
	"github.com/reconhub/auth-service/internal/service"
)

type authErrorEnvelope struct {
	Success bool `json:"success"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type stubAuthService struct {
	loginLocalFn   func(email, password, ua, ip string) (*service.LoginResult, error)
	registerFn     func(email, name, password, ua, ip string) (*service.LoginResult, error)
	changePassFn   func(userID uint, currentPassword, newPassword string) error
	forgotFn       func(email string) error
	resetFn        func(token, newPassword string) error
	refreshFn      func(refreshToken, ua, ip string) (*service.LoginResult, error)
	logoutFn       func(userID uint) error
	evaluateFn     func(candidate string) service.PasswordCheck
	googleCodeFn   func(code, ua, ip string) (*service.LoginResult, error)
	googleLoginURL string
}

func (s *stubAuthService) GoogleLoginURL(state string) string { return s.googleLoginURL + state }

func (s *stubAuthService) LoginWithGoogleCode(ctx context.Context, code, ua, ip string) (*service.LoginResult, error) {
	if s.googleCodeFn != nil {
		return s.googleCodeFn(code, ua, ip)
	}
	return nil, errors.New("not implemented")
}

func (s *stubAuthService) RegisterLocal(ctx context.Context, email, name, password, ua, ip string) (*service.LoginResult, error) {
	if s.registerFn != nil {
		return s.registerFn(email, name, password, ua, ip)
	}
	return nil, errors.New("not implemented")
}

func (s *stubAuthService) LoginWithLocalPassword(ctx context.Context, email, password, ua, ip string) (*service.LoginResult, error) {
	if s.loginLocalFn != nil {
		return s.loginLocalFn(email, password, ua, ip)
	}
	return nil, errors.New("not implemented")
}

func (s *stubAuthService) ChangeLocalPassword(ctx context.Context, userID uint, currentPassword, newPassword string) error {
	if s.changePassFn != nil {
		return s.changePassFn(userID, currentPassword, newPassword)
	}
	return nil
}

func (s *stubAuthService) ForgotLocalPassword(ctx context.Context, email string) error {
	if s.forgotFn != nil {
		return s.forgotFn(email)
	}
	return nil
}

func (s *stubAuthService) ResetLocalPassword(ctx context.Context, token, newPassword, ip string) error {
	if s.resetFn != nil {
		return s.resetFn(token, newPassword)
	}
	return nil
}

func (s *stubAuthService) Refresh(ctx context.Context, refreshToken, ua, ip string) (*service.LoginResult, error) {
	if s.refreshFn != nil {
		return s.refreshFn(refreshToken, ua, ip)
	}
	return nil, errors.New("not implemented")
}

func (s *stubAuthService) Logout(ctx context.Context, userID uint) error {
	if s.logoutFn != nil {
		return s.logoutFn(userID)
	}
	return nil
}

func (s *stubAuthService) EvaluatePassword(ctx context.Context, candidate string) service.PasswordCheck {
	if s.evaluateFn != nil {
		return s.evaluateFn(candidate)
	}
	return service.PasswordCheck{Valid: true, Strength: "strong"}
}

func withClaims(r *http.Request, sub string) *http.Request {
	claims := &security.Claims{}
	claims.Subject = sub
	ctx := context.WithValue(r.Context(), middleware.ClaimsContextKey, claims)
	return r.WithContext(ctx)
}

func decodeAuthErrorEnvelope(t *testing.T, rr *httptest.ResponseRecorder) authErrorEnvelope {
	t.Helper()
	var env authErrorEnvelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env
}

func hasCookie(cookies []*http.Cookie, name string) bool {
	for _, c := range cookies {
		if c.Name == name {
			return true
		}
	}
	return false
}

func isClearedCookie(cookies []*http.Cookie, name string) bool {
	for _, c := range cookies {
		if c.Name == name && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

func okLoginResult() *service.LoginResult {
	return &service.LoginResult{
		User:         &service.SessionUser{ID: 1, Email: "u@example.com", Name: "U"},
		AccessToken:  "access",
		RefreshToken: "refresh",
		CSRFToken:    "csrf",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func TestAuthHandlerLocalLogin(t *testing.T) {
	cookieMgr := security.NewCookieManager("", false, "lax")

	t.Run("success sets auth cookies", func(t *testing.T) {
		authSvc := &stubAuthService{loginLocalFn: func(email, password, ua, ip string) (*service.LoginResult, error) {
			if email != "u@example.com" {
				t.Fatalf("unexpected email %q", email)
			}
			return okLoginResult(), nil
		}}
		h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/login", strings.NewReader(`{"email":"u@example.com","password":"StrongPass123!"}`))
		rr := httptest.NewRecorder()

		h.LocalLogin(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		cookies := rr.Result().Cookies()
		for _, name := range []string{"access_token", "refresh_token", "csrf_token"} {
			if !hasCookie(cookies, name) {
				t.Fatalf("expected cookie %q", name)
			}
		}
	})

	t.Run("invalid payload", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{}, cookieMgr, "state", 24*time.Hour)
		rr := httptest.NewRecorder()
		h.LocalLogin(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/login", bytes.NewBufferString(`{"email":`)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("cooldown maps to 429 with retry-after", func(t *testing.T) {
		authSvc := &stubAuthService{loginLocalFn: func(email, password, ua, ip string) (*service.LoginResult, error) {
			return nil, &service.CooldownError{RetryAfter: 5 * time.Second}
		}}
		h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
		rr := httptest.NewRecorder()
		h.LocalLogin(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/login", strings.NewReader(`{"email":"u@example.com","password":"bad"}`)))

		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rr.Code)
		}
		if got := rr.Header().Get("Retry-After"); got != "5" {
			t.Fatalf("expected Retry-After 5, got %q", got)
		}
		env := decodeAuthErrorEnvelope(t, rr)
		if env.Error == nil || env.Error.Code != "RATE_LIMITED" {
			t.Fatalf("expected RATE_LIMITED, got %+v", env.Error)
		}
	})

	t.Run("service error mappings", func(t *testing.T) {
		cases := []struct {
			name     string
			err      error
			wantCode int
			wantErr  string
		}{
			{name: "not enabled", err: service.ErrLocalAuthDisabled, wantCode: http.StatusNotFound, wantErr: "NOT_ENABLED"},
			{name: "invalid credentials", err: service.ErrInvalidCredentials, wantCode: http.StatusUnauthorized, wantErr: "UNAUTHORIZED"},
			{name: "malformed input", err: &service.ValidationError{Message: "invalid email"}, wantCode: http.StatusBadRequest, wantErr: "BAD_REQUEST"},
			{name: "unrecognized error", err: errors.New("pq: connection refused"), wantCode: http.StatusInternalServerError, wantErr: "INTERNAL"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				authSvc := &stubAuthService{loginLocalFn: func(email, password, ua, ip string) (*service.LoginResult, error) {
					return nil, tc.err
				}}
				h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
				rr := httptest.NewRecorder()
				h.LocalLogin(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/login", strings.NewReader(`{"email":"u@example.com","password":"x"}`)))
				if rr.Code != tc.wantCode {
					t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
				}
				env := decodeAuthErrorEnvelope(t, rr)
				if env.Error == nil || env.Error.Code != tc.wantErr {
					t.Fatalf("expected error code %q, got %+v", tc.wantErr, env.Error)
				}
			})
		}
	})

	t.Run("persistence error text never reaches the client", func(t *testing.T) {
		authSvc := &stubAuthService{loginLocalFn: func(email, password, ua, ip string) (*service.LoginResult, error) {
			return nil, errors.New("pq: duplicate key value violates unique constraint")
		}}
		h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
		rr := httptest.NewRecorder()
		h.LocalLogin(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/login", strings.NewReader(`{"email":"u@example.com","password":"x"}`)))
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rr.Code)
		}
		if body := rr.Body.String(); strings.Contains(body, "pq:") || strings.Contains(body, "unique constraint") {
			t.Fatalf("database error text leaked to client: %s", body)
		}
	})
}

func TestAuthHandlerLocalRegister(t *testing.T) {
	cookieMgr := security.NewCookieManager("", false, "lax")

	t.Run("weak password carries feedback details", func(t *testing.T) {
		authSvc := &stubAuthService{registerFn: func(email, name, password, ua, ip string) (*service.LoginResult, error) {
			return nil, &service.PolicyViolationError{
				Feedback: []string{"password must be at least 12 characters"},
				Rules:    []string{"min_length"},
			}
		}}
		h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
		rr := httptest.NewRecorder()
		h.LocalRegister(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/register", strings.NewReader(`{"email":"u@example.com","name":"U","password":"short"}`)))

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
		env := decodeAuthErrorEnvelope(t, rr)
		if env.Error == nil || env.Error.Code != "WEAK_PASSWORD" {
			t.Fatalf("expected WEAK_PASSWORD, got %+v", env.Error)
		}
		rules, ok := env.Error.Details["rules"].([]any)
		if !ok || len(rules) != 1 || rules[0] != "min_length" {
			t.Fatalf("expected min_length rule in details, got %+v", env.Error.Details)
		}
	})

	t.Run("duplicate email maps to conflict", func(t *testing.T) {
		authSvc := &stubAuthService{registerFn: func(email, name, password, ua, ip string) (*service.LoginResult, error) {
			return nil, service.ErrEmailTaken
		}}
		h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
		rr := httptest.NewRecorder()
		h.LocalRegister(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/register", strings.NewReader(`{"email":"u@example.com","name":"U","password":"StrongPass123!"}`)))
		if rr.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rr.Code)
		}
	})

	t.Run("success returns 201 with cookies", func(t *testing.T) {
		authSvc := &stubAuthService{registerFn: func(email, name, password, ua, ip string) (*service.LoginResult, error) {
			return okLoginResult(), nil
		}}
		h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
		rr := httptest.NewRecorder()
		h.LocalRegister(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/register", strings.NewReader(`{"email":"u@example.com","name":"U","password":"StrongPass123!"}`)))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rr.Code)
		}
		if !hasCookie(rr.Result().Cookies(), "refresh_token") {
			t.Fatal("expected refresh_token cookie")
		}
	})
}

func TestAuthHandlerLocalChangePassword(t *testing.T) {
	cookieMgr := security.NewCookieManager("", false, "lax")

	t.Run("missing auth context", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{}, cookieMgr, "state", 24*time.Hour)
		rr := httptest.NewRecorder()
		h.LocalChangePassword(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/change-password", strings.NewReader(`{"current_password":"a","new_password":"b"}`)))
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("invalid subject", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{}, cookieMgr, "state", 24*time.Hour)
		req := withClaims(httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/change-password", strings.NewReader(`{"current_password":"a","new_password":"b"}`)), "bad")
		rr := httptest.NewRecorder()
		h.LocalChangePassword(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("wrong current password maps to 401", func(t *testing.T) {
		authSvc := &stubAuthService{changePassFn: func(userID uint, currentPassword, newPassword string) error {
			return service.ErrInvalidCredentials
		}}
		h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
		req := withClaims(httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/change-password", strings.NewReader(`{"current_password":"old","new_password":"new"}`)), "77")
		rr := httptest.NewRecorder()
		h.LocalChangePassword(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("success clears auth cookies", func(t *testing.T) {
		var gotUserID uint
		authSvc := &stubAuthService{changePassFn: func(userID uint, currentPassword, newPassword string) error {
			gotUserID = userID
			return nil
		}}
		h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
		req := withClaims(httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/change-password", strings.NewReader(`{"current_password":"old","new_password":"new"}`)), "42")
		rr := httptest.NewRecorder()

		h.LocalChangePassword(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if gotUserID != 42 {
			t.Fatalf("expected user 42, got %d", gotUserID)
		}
		cookies := rr.Result().Cookies()
		for _, name := range []string{"access_token", "refresh_token", "csrf_token"} {
			if !isClearedCookie(cookies, name) {
				t.Fatalf("expected cleared cookie %q", name)
			}
		}
	})
}

func TestAuthHandlerForgotAndReset(t *testing.T) {
	cookieMgr := security.NewCookieManager("", false, "lax")

	t.Run("forgot always answers accepted", func(t *testing.T) {
		for name, forgotErr := range map[string]error{
			"known email":      nil,
			"internal failure": errors.New("smtp down"),
		} {
			t.Run(name, func(t *testing.T) {
				authSvc := &stubAuthService{forgotFn: func(email string) error { return forgotErr }}
				h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
				rr := httptest.NewRecorder()
				h.LocalPasswordForgot(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/password/forgot", strings.NewReader(`{"email":"u@example.com"}`)))
				if rr.Code != http.StatusAccepted {
					t.Fatalf("expected 202, got %d", rr.Code)
				}
			})
		}
	})

	t.Run("forgot cooldown still surfaces 429", func(t *testing.T) {
		authSvc := &stubAuthService{forgotFn: func(email string) error {
			return &service.CooldownError{RetryAfter: 8 * time.Second}
		}}
		h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
		rr := httptest.NewRecorder()
		h.LocalPasswordForgot(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/password/forgot", strings.NewReader(`{"email":"u@example.com"}`)))
		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rr.Code)
		}
		if got := rr.Header().Get("Retry-After"); got != "8" {
			t.Fatalf("expected Retry-After 8, got %q", got)
		}
	})

	t.Run("reset maps invalid token", func(t *testing.T) {
		authSvc := &stubAuthService{resetFn: func(token, newPassword string) error {
			return service.ErrInvalidResetToken
		}}
		h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
		rr := httptest.NewRecorder()
		h.LocalPasswordReset(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/password/reset", strings.NewReader(`{"token":"bogus","new_password":"StrongPass123!"}`)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
		env := decodeAuthErrorEnvelope(t, rr)
		if env.Error == nil || env.Error.Code != "INVALID_TOKEN" {
			t.Fatalf("expected INVALID_TOKEN, got %+v", env.Error)
		}
	})

	t.Run("reset rejects weak replacement", func(t *testing.T) {
		authSvc := &stubAuthService{resetFn: func(token, newPassword string) error {
			return &service.PolicyViolationError{Feedback: []string{"password was used recently"}, Rules: []string{"reuse"}}
		}}
		h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
		rr := httptest.NewRecorder()
		h.LocalPasswordReset(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/password/reset", strings.NewReader(`{"token":"tok","new_password":"ReusedPass123!"}`)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
		env := decodeAuthErrorEnvelope(t, rr)
		if env.Error == nil || env.Error.Code != "WEAK_PASSWORD" {
			t.Fatalf("expected WEAK_PASSWORD, got %+v", env.Error)
		}
	})
}

func TestAuthHandlerRefreshAndLogout(t *testing.T) {
	cookieMgr := security.NewCookieManager("", false, "lax")

	t.Run("refresh without cookie", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{}, cookieMgr, "state", 24*time.Hour)
		rr := httptest.NewRecorder()
		h.Refresh(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil))
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("refresh rotates cookies", func(t *testing.T) {
		authSvc := &stubAuthService{refreshFn: func(refreshToken, ua, ip string) (*service.LoginResult, error) {
			if refreshToken != "old-refresh" {
				t.Fatalf("unexpected refresh token %q", refreshToken)
			}
			return okLoginResult(), nil
		}}
		h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "old-refresh"})
		rr := httptest.NewRecorder()

		h.Refresh(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if !hasCookie(rr.Result().Cookies(), "refresh_token") {
			t.Fatal("expected rotated refresh_token cookie")
		}
	})

	t.Run("refresh with revoked token", func(t *testing.T) {
		authSvc := &stubAuthService{refreshFn: func(refreshToken, ua, ip string) (*service.LoginResult, error) {
			return nil, errors.New("session revoked")
		}}
		h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "stolen"})
		rr := httptest.NewRecorder()

		h.Refresh(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("logout clears cookies", func(t *testing.T) {
		var gotUserID uint
		authSvc := &stubAuthService{logoutFn: func(userID uint) error {
			gotUserID = userID
			return nil
		}}
		h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
		req := withClaims(httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil), "9")
		rr := httptest.NewRecorder()

		h.Logout(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if gotUserID != 9 {
			t.Fatalf("expected user 9, got %d", gotUserID)
		}
		if !isClearedCookie(rr.Result().Cookies(), "access_token") {
			t.Fatal("expected cleared access_token cookie")
		}
	})
}

func TestAuthHandlerPasswordCheck(t *testing.T) {
	cookieMgr := security.NewCookieManager("", false, "lax")
	authSvc := &stubAuthService{evaluateFn: func(candidate string) service.PasswordCheck {
		return service.PasswordCheck{Valid: false, Feedback: []string{"password must contain a digit"}, Strength: "weak"}
	}}
	h := NewAuthHandler(authSvc, cookieMgr, "state", 24*time.Hour)
	rr := httptest.NewRecorder()

	h.PasswordCheck(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/local/password/check", strings.NewReader(`{"password":"nodigits"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var env struct {
		Success bool                  `json:"success"`
		Data    service.PasswordCheck `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if env.Data.Valid || env.Data.Strength != "weak" || len(env.Data.Feedback) != 1 {
		t.Fatalf("unexpected check payload: %+v", env.Data)
	}
}

func TestAuthHandlerGoogleFlow(t *testing.T) {
	cookieMgr := security.NewCookieManager("", false, "lax")

	t.Run("login redirects with signed state cookie", func(t *testing.T) {
		authSvc := &stubAuthService{googleLoginURL: "https://accounts.example.com/auth?state="}
		h := NewAuthHandler(authSvc, cookieMgr, "state-key", 24*time.Hour)
		rr := httptest.NewRecorder()

		h.GoogleLogin(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/login", nil))
		if rr.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rr.Code)
		}
		if !hasCookie(rr.Result().Cookies(), "oauth_state") {
			t.Fatal("expected oauth_state cookie")
		}
		if loc := rr.Header().Get("Location"); !strings.HasPrefix(loc, "https://accounts.example.com/auth?state=") {
			t.Fatalf("unexpected redirect location %q", loc)
		}
	})

	t.Run("callback rejects mismatched state", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{}, cookieMgr, "state-key", 24*time.Hour)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?state=forged&code=abc", nil)
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: security.SignState("real", "state-key")})
		rr := httptest.NewRecorder()

		h.GoogleCallback(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("callback rejects tampered signature", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{}, cookieMgr, "state-key", 24*time.Hour)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?state=real&code=abc", nil)
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: security.SignState("real", "other-key")})
		rr := httptest.NewRecorder()

		h.GoogleCallback(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("callback success issues cookies and drops state", func(t *testing.T) {
		authSvc := &stubAuthService{googleCodeFn: func(code, ua, ip string) (*service.LoginResult, error) {
			if code != "abc" {
				t.Fatalf("unexpected code %q", code)
			}
			return okLoginResult(), nil
		}}
		h := NewAuthHandler(authSvc, cookieMgr, "state-key", 24*time.Hour)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?state=real&code=abc", nil)
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: security.SignState("real", "state-key")})
		rr := httptest.NewRecorder()

		h.GoogleCallback(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		cookies := rr.Result().Cookies()
		if !hasCookie(cookies, "access_token") {
			t.Fatal("expected access_token cookie")
		}
		if !isClearedCookie(cookies, "oauth_state") {
			t.Fatal("expected oauth_state cookie cleared")
		}
	})

	t.Run("callback missing code", func(t *testing.T) {
		h := NewAuthHandler(&stubAuthService{}, cookieMgr, "state-key", 24*time.Hour)
		rr := httptest.NewRecorder()
		h.GoogleCallback(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?state=real", nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})
}
