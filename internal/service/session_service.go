package service

import (
	"context"
	"time"

	"github.com/reconhub/auth-service/internal/observability"
	"github.com/reconhub/auth-service/internal/repository"
	"github.com/reconhub/auth-service/internal/security"
)

// SessionInfo is the device-list projection of a refresh session. The
// token hash never leaves the service.
type SessionInfo struct {
	ID        uint      `json:"id"`
	UserAgent string    `json:"user_agent"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current"`
}

type SessionService struct {
	sessionRepo repository.SessionRepository
	pepper      string
}

func NewSessionService(sessionRepo repository.SessionRepository, pepper string) *SessionService {
	return &SessionService{sessionRepo: sessionRepo, pepper: pepper}
}

// ListSessions marks the session matching currentRefreshToken so the
// client can highlight the device it is calling from.
func (s *SessionService) ListSessions(ctx context.Context, userID uint, currentRefreshToken string) ([]SessionInfo, error) {
	sessions, err := s.sessionRepo.ListActiveByUserID(userID, time.Now())
	if err != nil {
		observability.RecordSessionManagementEvent(ctx, "list", "error")
		return nil, err
	}
	currentHash := ""
	if currentRefreshToken != "" {
		currentHash = security.HashRefreshToken(currentRefreshToken, s.pepper)
	}
	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, SessionInfo{
			ID:        sess.ID,
			UserAgent: sess.UserAgent,
			IP:        sess.IP,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
			Current:   currentHash != "" && sess.RefreshTokenHash == currentHash,
		})
	}
	observability.RecordSessionManagementEvent(ctx, "list", "success")
	return out, nil
}

// RevokeSession returns "revoked" or "already_revoked"; revoking a
// session that belongs to someone else reads as already revoked.
func (s *SessionService) RevokeSession(ctx context.Context, userID, sessionID uint) (string, error) {
	affected, err := s.sessionRepo.RevokeByID(userID, sessionID, time.Now())
	if err != nil {
		observability.RecordSessionManagementEvent(ctx, "revoke_one", "error")
		return "", err
	}
	if affected == 0 {
		observability.RecordSessionManagementEvent(ctx, "revoke_one", "already_revoked")
		return "already_revoked", nil
	}
	observability.RecordSessionManagementEvent(ctx, "revoke_one", "success")
	observability.RecordSessionRevokedCount(ctx, "revoke_one", affected)
	return "revoked", nil
}

// RevokeOtherSessions keeps the session behind currentRefreshToken alive
// and revokes every other device.
func (s *SessionService) RevokeOtherSessions(ctx context.Context, userID uint, currentRefreshToken string) (int64, error) {
	keepHash := security.HashRefreshToken(currentRefreshToken, s.pepper)
	revoked, err := s.sessionRepo.RevokeByUserIDExcept(userID, keepHash, time.Now())
	if err != nil {
		observability.RecordSessionManagementEvent(ctx, "revoke_others", "error")
		return 0, err
	}
	observability.RecordSessionManagementEvent(ctx, "revoke_others", "success")
	observability.RecordSessionRevokedCount(ctx, "revoke_others", revoked)
	return revoked, nil
}
