package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reconhub/auth-service/internal/http/middleware"
	"github.com/reconhub/auth-service/internal/http/response"
	"github.com/reconhub/auth-service/internal/observability"
	"github.com/reconhub/auth-service/internal/security"
	"github.com/reconhub/auth-service/internal/service"
)

type UserHandler struct {
	userSvc    service.UserServiceInterface
	sessionSvc service.SessionServiceInterface
}

func NewUserHandler(userSvc service.UserServiceInterface, sessionSvc service.SessionServiceInterface) *UserHandler {
	return &UserHandler{userSvc: userSvc, sessionSvc: sessionSvc}
}

// Me returns the authenticated user's profile along with password
// expiry state, so clients can prompt for rotation without an extra
// round trip.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	user, err := h.userSvc.GetByID(userID)
	if err != nil {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, user)
}

func (h *UserHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	sessions, err := h.sessionSvc.ListSessions(r.Context(), userID, security.GetCookie(r, "refresh_token"))
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list sessions", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *UserHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	sessionID, err := strconv.ParseUint(chi.URLParam(r, "session_id"), 10, 64)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid session id", nil)
		return
	}
	outcome, err := h.sessionSvc.RevokeSession(r.Context(), userID, uint(sessionID))
	if err != nil {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
		return
	}
	observability.Audit(r, "session.revoke", "user_id", userID, "session_id", sessionID, "outcome", outcome)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": outcome})
}

func (h *UserHandler) RevokeOtherSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	revoked, err := h.sessionSvc.RevokeOtherSessions(r.Context(), userID, security.GetCookie(r, "refresh_token"))
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to revoke sessions", nil)
		return
	}
	observability.Audit(r, "session.revoke_others", "user_id", userID, "revoked", revoked)
	response.JSON(w, r, http.StatusOK, map[string]any{"revoked": revoked})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userSvc.List()
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list users", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"users": users})
}

type provisionRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ProvisionUser creates an account with a generated initial password.
// The password is delivered out of band and never included in the
// response body.
func (h *UserHandler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	user, _, err := h.userSvc.ProvisionUser(r.Context(), req.Email, req.Name)
	if err != nil {
		observability.Audit(r, "user.provision.failed", "admin_id", adminID, "error", err.Error())
		if errors.Is(err, service.ErrEmailTaken) {
			response.Error(w, r, http.StatusConflict, "CONFLICT", "email already registered", nil)
			return
		}
		var validation *service.ValidationError
		if errors.As(err, &validation) {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", validation.Message, nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "something went wrong, please try again", nil)
		return
	}
	observability.Audit(r, "user.provision.success", "admin_id", adminID, "user_id", user.ID)
	response.JSON(w, r, http.StatusCreated, map[string]any{"user": user})
}
