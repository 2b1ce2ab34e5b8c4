package service

import (
	"context"
	"fmt"
	"time"

	"github.com/reconhub/auth-service/internal/domain"
	"github.com/reconhub/auth-service/internal/observability"
	"github.com/reconhub/auth-service/internal/repository"
	"github.com/reconhub/auth-service/internal/security"
)

type TokenService struct {
	jwtMgr      *security.JWTManager
	sessionRepo repository.SessionRepository
	pepper      string
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

func NewTokenService(jwtMgr *security.JWTManager, sessionRepo repository.SessionRepository, pepper string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{jwtMgr: jwtMgr, sessionRepo: sessionRepo, pepper: pepper, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// Issue signs an access/refresh pair and records the refresh session.
// Only a peppered hash of the refresh token is stored.
func (s *TokenService) Issue(ctx context.Context, userID uint, ua, ip string) (access, refresh, csrf string, err error) {
	access, err = s.jwtMgr.SignAccessToken(userID, s.accessTTL)
	if err != nil {
		return "", "", "", err
	}
	refresh, err = s.jwtMgr.SignRefreshToken(userID, s.refreshTTL)
	if err != nil {
		return "", "", "", err
	}
	hash := security.HashRefreshToken(refresh, s.pepper)
	session := &domain.Session{
		UserID:           userID,
		RefreshTokenHash: hash,
		UserAgent:        ua,
		IP:               ip,
		ExpiresAt:        time.Now().Add(s.refreshTTL),
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return "", "", "", err
	}
	csrf, err = security.NewCSRFToken()
	if err != nil {
		return "", "", "", err
	}
	return access, refresh, csrf, nil
}

// Rotate exchanges a valid refresh token for a fresh pair, revoking the
// presented session so each refresh token is single-use.
func (s *TokenService) Rotate(ctx context.Context, refreshToken, ua, ip string) (access, newRefresh, csrf string, userID uint, err error) {
	claims, err := s.jwtMgr.ParseRefreshToken(refreshToken)
	if err != nil {
		observability.RecordRefreshSecurityEvent(ctx, "invalid_token")
		return "", "", "", 0, err
	}
	now := time.Now()
	hash := security.HashRefreshToken(refreshToken, s.pepper)
	session, err := s.sessionRepo.FindValidByHash(hash, now)
	if err != nil {
		observability.RecordRefreshSecurityEvent(ctx, "session_not_found")
		return "", "", "", 0, err
	}
	if err := s.sessionRepo.RevokeByHash(hash, now); err != nil {
		return "", "", "", 0, err
	}
	userID, err = claims.UserID()
	if err != nil {
		return "", "", "", 0, err
	}
	if session.UserID != userID {
		observability.RecordRefreshSecurityEvent(ctx, "session_mismatch")
		return "", "", "", 0, fmt.Errorf("session mismatch")
	}
	access, newRefresh, csrf, err = s.Issue(ctx, userID, ua, ip)
	if err != nil {
		return "", "", "", 0, err
	}
	observability.RecordRefreshSecurityEvent(ctx, "rotated")
	return access, newRefresh, csrf, userID, nil
}

// RevokeAll invalidates every active session for the user. The reason
// labels the session-management metric ("logout", "password_change",
// "password_reset").
func (s *TokenService) RevokeAll(ctx context.Context, userID uint, reason string) error {
	revoked, err := s.sessionRepo.RevokeByUserID(userID, time.Now())
	if err != nil {
		observability.RecordSessionManagementEvent(ctx, reason, "error")
		return err
	}
	observability.RecordSessionManagementEvent(ctx, reason, "success")
	observability.RecordSessionRevokedCount(ctx, reason, revoked)
	return nil
}
