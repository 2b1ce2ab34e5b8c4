package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/reconhub/auth-service/internal/http/middleware"
	"github.com/reconhub/auth-service/internal/http/response"
	"github.com/reconhub/auth-service/internal/observability"
	"github.com/reconhub/auth-service/internal/security"
	"github.com/reconhub/auth-service/internal/service"
)

type AuthHandler struct {
	authSvc    service.AuthServiceInterface
	cookieMgr  *security.CookieManager
	stateKey   string
	refreshTTL time.Duration
}

func NewAuthHandler(authSvc service.AuthServiceInterface, cookieMgr *security.CookieManager, stateKey string, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, cookieMgr: cookieMgr, stateKey: stateKey, refreshTTL: refreshTTL}
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "google_login", status, time.Since(start))
	}()

	state, err := security.NewRandomString(24)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.google.login.failed", "reason", "state_generation")
		observability.RecordAuthLogin(r.Context(), "google", "failure")
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to generate oauth state", nil)
		return
	}
	signed := security.SignState(state, h.stateKey)
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: signed, Path: "/api/v1/auth/google", HttpOnly: true, Secure: h.cookieMgr.Secure, SameSite: h.cookieMgr.SameSite, Domain: h.cookieMgr.Domain, MaxAge: 300})
	observability.Audit(r, "auth.google.login.redirect")
	http.Redirect(w, r, h.authSvc.GoogleLoginURL(state), http.StatusFound)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "google_callback", status, time.Since(start))
	}()

	queryState := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if queryState == "" || code == "" {
		status = "failure"
		observability.Audit(r, "auth.google.callback.failed", "reason", "missing_code_or_state")
		observability.RecordAuthLogin(r.Context(), "google", "failure")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing state or code", nil)
		return
	}
	stateCookie := security.GetCookie(r, "oauth_state")
	state, ok := security.VerifySignedState(stateCookie, h.stateKey)
	if !ok || state != queryState {
		status = "failure"
		observability.Audit(r, "auth.google.callback.failed", "reason", "invalid_state")
		observability.RecordAuthLogin(r.Context(), "google", "failure")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid oauth state", nil)
		return
	}
	// One-time state: drop the cookie as soon as it verifies.
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/api/v1/auth/google", MaxAge: -1, HttpOnly: true, Secure: h.cookieMgr.Secure, SameSite: h.cookieMgr.SameSite, Domain: h.cookieMgr.Domain})

	result, err := h.authSvc.LoginWithGoogleCode(r.Context(), code, r.UserAgent(), clientIP(r))
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.google.callback.failed", "reason", "oauth_exchange", "error", err.Error())
		observability.RecordAuthLogin(r.Context(), "google", "failure")
		response.Error(w, r, http.StatusUnauthorized, "OAUTH_FAILED", "google login failed", nil)
		return
	}
	h.cookieMgr.SetTokenCookies(w, result.AccessToken, result.RefreshToken, result.CSRFToken, h.refreshTTL)
	observability.Audit(r, "auth.login.success", "user_id", result.User.ID, "provider", "google")
	observability.RecordAuthLogin(r.Context(), "google", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{"user": result.User, "csrf_token": result.CSRFToken, "expires_at": result.ExpiresAt})
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *AuthHandler) LocalRegister(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "local_register", status, time.Since(start))
	}()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	result, err := h.authSvc.RegisterLocal(r.Context(), req.Email, req.Name, req.Password, r.UserAgent(), clientIP(r))
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.local.register.failed", "reason", errorReason(err))
		observability.RecordAuthLogin(r.Context(), "local", "failure")
		h.writeAuthError(w, r, err)
		return
	}
	h.cookieMgr.SetTokenCookies(w, result.AccessToken, result.RefreshToken, result.CSRFToken, h.refreshTTL)
	observability.Audit(r, "auth.local.register.success", "user_id", result.User.ID)
	observability.RecordAuthLogin(r.Context(), "local", "success")
	response.JSON(w, r, http.StatusCreated, map[string]any{"user": result.User, "csrf_token": result.CSRFToken, "expires_at": result.ExpiresAt})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) LocalLogin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "local_login", status, time.Since(start))
	}()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	result, err := h.authSvc.LoginWithLocalPassword(r.Context(), req.Email, req.Password, r.UserAgent(), clientIP(r))
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.local.login.failed", "reason", errorReason(err))
		observability.RecordAuthLogin(r.Context(), "local", "failure")
		h.writeAuthError(w, r, err)
		return
	}
	h.cookieMgr.SetTokenCookies(w, result.AccessToken, result.RefreshToken, result.CSRFToken, h.refreshTTL)
	observability.Audit(r, "auth.login.success", "user_id", result.User.ID, "provider", "local")
	observability.RecordAuthLogin(r.Context(), "local", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{"user": result.User, "csrf_token": result.CSRFToken, "expires_at": result.ExpiresAt})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *AuthHandler) LocalChangePassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "change_password", status, time.Since(start))
	}()

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		status = "failure"
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.authSvc.ChangeLocalPassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		status = "failure"
		observability.Audit(r, "auth.password.change.failed", "user_id", userID, "reason", errorReason(err))
		h.writeAuthError(w, r, err)
		return
	}
	// All sessions were revoked, including this one.
	h.cookieMgr.ClearTokenCookies(w)
	observability.Audit(r, "auth.password.change.success", "user_id", userID)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "password_changed"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) LocalPasswordForgot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "forgot_password", status, time.Since(start))
	}()

	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.authSvc.ForgotLocalPassword(r.Context(), req.Email); err != nil {
		var cooldown *service.CooldownError
		if errors.As(err, &cooldown) {
			status = "failure"
			h.writeAuthError(w, r, err)
			return
		}
		if errors.Is(err, service.ErrLocalAuthDisabled) {
			status = "failure"
			h.writeAuthError(w, r, err)
			return
		}
		// Internal failures still answer accepted: the forgot flow must
		// not reveal whether the address exists.
		status = "failure"
		observability.Audit(r, "auth.password.forgot.failed", "reason", errorReason(err))
	}
	response.JSON(w, r, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) LocalPasswordReset(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "reset_password", status, time.Since(start))
	}()

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.authSvc.ResetLocalPassword(r.Context(), req.Token, req.NewPassword, clientIP(r)); err != nil {
		status = "failure"
		observability.Audit(r, "auth.password.reset.failed", "reason", errorReason(err))
		h.writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password.reset.success")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "password_reset"})
}

type passwordCheckRequest struct {
	Password string `json:"password"`
}

// PasswordCheck is the stateless pre-flight strength endpoint; it never
// touches stored credentials.
func (h *AuthHandler) PasswordCheck(w http.ResponseWriter, r *http.Request) {
	var req passwordCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, h.authSvc.EvaluatePassword(r.Context(), req.Password))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "refresh", status, time.Since(start))
	}()

	refresh := security.GetCookie(r, "refresh_token")
	if refresh == "" {
		status = "failure"
		observability.Audit(r, "auth.refresh.failed", "reason", "missing_refresh_cookie")
		observability.RecordAuthRefresh(r.Context(), "failure")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing refresh token", nil)
		return
	}
	result, err := h.authSvc.Refresh(r.Context(), refresh, r.UserAgent(), clientIP(r))
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.refresh.failed", "reason", "invalid_refresh")
		observability.RecordAuthRefresh(r.Context(), "failure")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid refresh token", nil)
		return
	}
	h.cookieMgr.SetTokenCookies(w, result.AccessToken, result.RefreshToken, result.CSRFToken, h.refreshTTL)
	observability.Audit(r, "auth.refresh.success", "user_id", result.User.ID)
	observability.RecordAuthRefresh(r.Context(), "success")
	response.JSON(w, r, http.StatusOK, map[string]any{"user": result.User, "csrf_token": result.CSRFToken, "expires_at": result.ExpiresAt})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "logout", status, time.Since(start))
	}()

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		status = "failure"
		observability.Audit(r, "auth.logout.failed", "reason", "missing_auth_context")
		observability.RecordAuthLogout(r.Context(), "failure")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	if err := h.authSvc.Logout(r.Context(), userID); err != nil {
		status = "failure"
		observability.Audit(r, "auth.logout.failed", "user_id", userID, "reason", "revoke_error")
		observability.RecordAuthLogout(r.Context(), "failure")
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "logout failed", nil)
		return
	}
	h.cookieMgr.ClearTokenCookies(w)
	observability.Audit(r, "auth.logout.success", "user_id", userID)
	observability.RecordAuthLogout(r.Context(), "success")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

// writeAuthError maps service errors onto the response envelope. Policy
// rejections carry the full feedback list so the client can render
// every unmet rule at once.
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var policyErr *service.PolicyViolationError
	if errors.As(err, &policyErr) {
		response.Error(w, r, http.StatusBadRequest, "WEAK_PASSWORD", policyErr.Error(), map[string]any{
			"feedback": policyErr.Feedback,
			"rules":    policyErr.Rules,
		})
		return
	}
	var cooldown *service.CooldownError
	if errors.As(err, &cooldown) {
		w.Header().Set("Retry-After", retryAfterSeconds(cooldown.RetryAfter))
		response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts", nil)
		return
	}
	switch {
	case errors.Is(err, service.ErrLocalAuthDisabled), errors.Is(err, service.ErrGoogleAuthDisabled):
		response.Error(w, r, http.StatusNotFound, "NOT_ENABLED", "authentication method not enabled", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials", nil)
	case errors.Is(err, service.ErrEmailTaken):
		response.Error(w, r, http.StatusConflict, "CONFLICT", "email already registered", nil)
	case errors.Is(err, service.ErrInvalidResetToken):
		response.Error(w, r, http.StatusBadRequest, "INVALID_TOKEN", "invalid or expired reset token", nil)
	default:
		var validation *service.ValidationError
		if errors.As(err, &validation) {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", validation.Message, nil)
			return
		}
		// Anything unrecognized is a server-side failure; the detail
		// stays in the logs, never in the response body.
		observability.Audit(r, "auth.error.internal", "error", err.Error())
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "something went wrong, please try again", nil)
	}
}

func errorReason(err error) string {
	var policyErr *service.PolicyViolationError
	if errors.As(err, &policyErr) {
		return "policy_rejected"
	}
	var cooldown *service.CooldownError
	if errors.As(err, &cooldown) {
		return "cooldown"
	}
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, service.ErrEmailTaken):
		return "email_taken"
	case errors.Is(err, service.ErrInvalidResetToken):
		return "invalid_token"
	case errors.Is(err, service.ErrLocalAuthDisabled), errors.Is(err, service.ErrGoogleAuthDisabled):
		return "not_enabled"
	default:
		return "error"
	}
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

func clientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return r.RemoteAddr
}
