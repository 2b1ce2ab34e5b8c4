package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/reconhub/auth-service/internal/config"
	"github.com/reconhub/auth-service/internal/domain"
	"github.com/reconhub/auth-service/internal/password"
	"github.com/reconhub/auth-service/internal/repository"
	"github.com/reconhub/auth-service/internal/security"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type capturedReset struct {
	notifications []PasswordResetNotification
}

func (c *capturedReset) SendPasswordReset(_ context.Context, n PasswordResetNotification) error {
	c.notifications = append(c.notifications, n)
	return nil
}

type authServiceFixture struct {
	svc         *AuthService
	db          *gorm.DB
	userRepo    repository.UserRepository
	credRepo    repository.CredentialRepository
	historyRepo repository.PasswordHistoryRepository
	sessionRepo repository.SessionRepository
	tokenRepo   repository.VerificationTokenRepository
	notifier    *capturedReset
	guard       AuthAbuseGuard
	policy      password.Policy
}

func newAuthServiceForTest(t *testing.T, mutate func(cfg *config.Config, policy *password.Policy, guard *AuthAbuseGuard)) *authServiceFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&domain.User{},
		&domain.Credential{},
		&domain.PasswordHistoryEntry{},
		&domain.Session{},
		&domain.OAuthAccount{},
		&domain.VerificationToken{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		AuthLocalEnabled:          true,
		JWTAccessTTL:              15 * time.Minute,
		JWTRefreshTTL:             720 * time.Hour,
		AuthPasswordResetTokenTTL: time.Hour,
		AuthPasswordResetBaseURL:  "https://app.example.com/reset-password",
	}
	policy := password.DefaultPolicy()
	var guard AuthAbuseGuard = NewNoopAuthAbuseGuard()
	if mutate != nil {
		mutate(cfg, &policy, &guard)
	}

	userRepo := repository.NewUserRepository(db)
	credRepo := repository.NewCredentialRepository(db)
	historyRepo := repository.NewPasswordHistoryRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	tokenRepo := repository.NewVerificationTokenRepository(db)

	jwtMgr := security.NewJWTManager("auth-service-test", "auth-service", "access-secret-0123456789abcdef", "refresh-secret-0123456789abcdef")
	tokenSvc := NewTokenService(jwtMgr, sessionRepo, "test-pepper", cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	notifier := &capturedReset{}
	resolver := NewCachedCredentialStateResolver(nil, credRepo, 0)
	history := NewStoredPasswordHistory(historyRepo, policy.HistoryLimit)

	svc := NewAuthService(cfg, policy, nil, tokenSvc, userRepo, credRepo, history, tokenRepo, notifier, guard, resolver)
	return &authServiceFixture{
		svc:         svc,
		db:          db,
		userRepo:    userRepo,
		credRepo:    credRepo,
		historyRepo: historyRepo,
		sessionRepo: sessionRepo,
		tokenRepo:   tokenRepo,
		notifier:    notifier,
		guard:       guard,
		policy:      policy,
	}
}

const testPassword = "Tr!ckyOwl7Landing"

func TestRegisterLocal(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user credential and history", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		result, err := fx.svc.RegisterLocal(ctx, "Dana@Example.com", "Dana", testPassword, "go-test", "10.0.0.1")
		if err != nil {
			t.Fatalf("RegisterLocal: %v", err)
		}
		if result.User.Email != "dana@example.com" {
			t.Fatalf("expected normalized email, got %q", result.User.Email)
		}
		if result.AccessToken == "" || result.RefreshToken == "" {
			t.Fatal("expected issued token pair")
		}
		if result.User.PasswordExpired {
			t.Fatal("fresh credential must not be expired")
		}
		if result.User.PasswordExpiresAt != nil {
			t.Fatal("non-expired session user must not carry an expiry date")
		}

		cred, err := fx.credRepo.FindByUserID(result.User.ID)
		if err != nil {
			t.Fatalf("FindByUserID: %v", err)
		}
		ok, err := security.VerifyPassword(cred.PasswordHash, testPassword)
		if err != nil || !ok {
			t.Fatalf("stored hash does not verify: ok=%v err=%v", ok, err)
		}
		hashes, err := fx.historyRepo.RecentHashes(result.User.ID, 10)
		if err != nil {
			t.Fatalf("RecentHashes: %v", err)
		}
		if len(hashes) != 1 {
			t.Fatalf("expected initial password in history, got %d entries", len(hashes))
		}
	})

	t.Run("rejects weak password with full feedback", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		_, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Dana", "short", "go-test", "10.0.0.1")
		var policyErr *PolicyViolationError
		if !errors.As(err, &policyErr) {
			t.Fatalf("expected PolicyViolationError, got %v", err)
		}
		if len(policyErr.Feedback) < 2 {
			t.Fatalf("expected every unmet rule reported, got %v", policyErr.Feedback)
		}
		if len(policyErr.Rules) != len(policyErr.Feedback) {
			t.Fatalf("rules and feedback out of sync: %v vs %v", policyErr.Rules, policyErr.Feedback)
		}
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		if _, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Dana", testPassword, "go-test", "10.0.0.1"); err != nil {
			t.Fatalf("first register: %v", err)
		}
		_, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Imposter", testPassword, "go-test", "10.0.0.2")
		if !errors.Is(err, ErrEmailTaken) {
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}
	})

	t.Run("disabled local auth", func(t *testing.T) {
		fx := newAuthServiceForTest(t, func(cfg *config.Config, _ *password.Policy, _ *AuthAbuseGuard) {
			cfg.AuthLocalEnabled = false
		})
		_, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Dana", testPassword, "go-test", "10.0.0.1")
		if !errors.Is(err, ErrLocalAuthDisabled) {
			t.Fatalf("expected ErrLocalAuthDisabled, got %v", err)
		}
	})
}

func TestLoginWithLocalPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("success updates last login", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		reg, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Dana", testPassword, "go-test", "10.0.0.1")
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		result, err := fx.svc.LoginWithLocalPassword(ctx, "dana@example.com", testPassword, "go-test", "10.0.0.1")
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		if result.User.ID != reg.User.ID {
			t.Fatalf("expected user %d, got %d", reg.User.ID, result.User.ID)
		}
		user, err := fx.userRepo.FindByID(reg.User.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if user.LastLoginAt.IsZero() {
			t.Fatal("expected last_login_at to be set")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		if _, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Dana", testPassword, "go-test", "10.0.0.1"); err != nil {
			t.Fatalf("register: %v", err)
		}
		_, err := fx.svc.LoginWithLocalPassword(ctx, "dana@example.com", "Wrong!Password9x", "go-test", "10.0.0.1")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown email yields same error as wrong password", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		_, err := fx.svc.LoginWithLocalPassword(ctx, "ghost@example.com", testPassword, "go-test", "10.0.0.1")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("expired password still authenticates and is flagged", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		reg, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Dana", testPassword, "go-test", "10.0.0.1")
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		past := time.Now().UTC().Add(-time.Hour)
		err = fx.db.Model(&domain.Credential{}).Where("user_id = ?", reg.User.ID).
			Update("expires_at", past).Error
		if err != nil {
			t.Fatalf("backdate expiry: %v", err)
		}

		result, err := fx.svc.LoginWithLocalPassword(ctx, "dana@example.com", testPassword, "go-test", "10.0.0.1")
		if err != nil {
			t.Fatalf("expired password must not block login: %v", err)
		}
		if !result.User.PasswordExpired {
			t.Fatal("expected password_expired flag")
		}
		if result.AccessToken == "" {
			t.Fatal("expected tokens despite expiry")
		}
	})

	t.Run("cooldown after repeated failures", func(t *testing.T) {
		fx := newAuthServiceForTest(t, func(_ *config.Config, _ *password.Policy, guard *AuthAbuseGuard) {
			*guard = NewInMemoryAuthAbuseGuard(AuthAbusePolicy{
				FreeAttempts: 1,
				BaseDelay:    time.Second,
				Multiplier:   2,
				MaxDelay:     time.Minute,
				ResetWindow:  time.Minute,
			})
		})
		if _, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Dana", testPassword, "go-test", "10.0.0.1"); err != nil {
			t.Fatalf("register: %v", err)
		}
		for i := 0; i < 2; i++ {
			if _, err := fx.svc.LoginWithLocalPassword(ctx, "dana@example.com", "Wrong!Password9x", "go-test", "10.0.0.1"); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
			}
		}
		_, err := fx.svc.LoginWithLocalPassword(ctx, "dana@example.com", testPassword, "go-test", "10.0.0.1")
		var cooldown *CooldownError
		if !errors.As(err, &cooldown) {
			t.Fatalf("expected CooldownError, got %v", err)
		}
		if cooldown.RetryAfter <= 0 {
			t.Fatalf("expected positive retry-after, got %s", cooldown.RetryAfter)
		}
	})
}

func TestChangeLocalPassword(t *testing.T) {
	ctx := context.Background()
	const newPassword = "N3w!SilverComet42"

	t.Run("rotates credential and revokes sessions", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		reg, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Dana", testPassword, "go-test", "10.0.0.1")
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if err := fx.svc.ChangeLocalPassword(ctx, reg.User.ID, testPassword, newPassword); err != nil {
			t.Fatalf("ChangeLocalPassword: %v", err)
		}

		if _, err := fx.svc.LoginWithLocalPassword(ctx, "dana@example.com", testPassword, "go-test", "10.0.0.1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("old password must stop working, got %v", err)
		}
		if _, err := fx.svc.LoginWithLocalPassword(ctx, "dana@example.com", newPassword, "go-test", "10.0.0.1"); err != nil {
			t.Fatalf("new password login: %v", err)
		}

		hashes, err := fx.historyRepo.RecentHashes(reg.User.ID, 10)
		if err != nil {
			t.Fatalf("RecentHashes: %v", err)
		}
		if len(hashes) != 2 {
			t.Fatalf("expected 2 history entries after rotation, got %d", len(hashes))
		}

		// The registration session must be gone; only the post-change login remains.
		sessions, err := fx.sessionRepo.ListActiveByUserID(reg.User.ID, time.Now())
		if err != nil {
			t.Fatalf("ListActiveByUserID: %v", err)
		}
		if len(sessions) != 1 {
			t.Fatalf("expected exactly the fresh session, got %d", len(sessions))
		}
	})

	t.Run("wrong current password", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		reg, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Dana", testPassword, "go-test", "10.0.0.1")
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		err = fx.svc.ChangeLocalPassword(ctx, reg.User.ID, "Wrong!Password9x", newPassword)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("rejects reuse of a recent password", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		reg, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Dana", testPassword, "go-test", "10.0.0.1")
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		err = fx.svc.ChangeLocalPassword(ctx, reg.User.ID, testPassword, testPassword)
		var policyErr *PolicyViolationError
		if !errors.As(err, &policyErr) {
			t.Fatalf("expected PolicyViolationError, got %v", err)
		}
		found := false
		for _, rule := range policyErr.Rules {
			if rule == "reuse" {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected reuse violation, got rules %v", policyErr.Rules)
		}
	})

	t.Run("failed rotation leaves credential usable", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		reg, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Dana", testPassword, "go-test", "10.0.0.1")
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if err := fx.svc.ChangeLocalPassword(ctx, reg.User.ID, testPassword, "weak"); err == nil {
			t.Fatal("expected policy rejection")
		}
		if _, err := fx.svc.LoginWithLocalPassword(ctx, "dana@example.com", testPassword, "go-test", "10.0.0.1"); err != nil {
			t.Fatalf("original password must survive a rejected change: %v", err)
		}
	})
}

func TestForgotAndResetLocalPassword(t *testing.T) {
	ctx := context.Background()
	const newPassword = "N3w!SilverComet42"

	t.Run("forgot issues a single-use token", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		reg, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Dana", testPassword, "go-test", "10.0.0.1")
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if err := fx.svc.ForgotLocalPassword(ctx, "dana@example.com"); err != nil {
			t.Fatalf("ForgotLocalPassword: %v", err)
		}
		if len(fx.notifier.notifications) != 1 {
			t.Fatalf("expected one reset notification, got %d", len(fx.notifier.notifications))
		}
		note := fx.notifier.notifications[0]
		if note.UserID != reg.User.ID || note.Token == "" {
			t.Fatalf("bad notification: %+v", note)
		}
		if note.ResetURL == "" {
			t.Fatal("expected reset URL built from the base URL")
		}

		if err := fx.svc.ResetLocalPassword(ctx, note.Token, newPassword, "10.0.0.9"); err != nil {
			t.Fatalf("ResetLocalPassword: %v", err)
		}
		if _, err := fx.svc.LoginWithLocalPassword(ctx, "dana@example.com", newPassword, "go-test", "10.0.0.1"); err != nil {
			t.Fatalf("login with reset password: %v", err)
		}

		// Second consume of the same token must fail.
		err = fx.svc.ResetLocalPassword(ctx, note.Token, "Another!Valid9Pass", "10.0.0.9")
		if !errors.Is(err, ErrInvalidResetToken) {
			t.Fatalf("expected ErrInvalidResetToken on replay, got %v", err)
		}
	})

	t.Run("forgot is silent for unknown email", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		if err := fx.svc.ForgotLocalPassword(ctx, "ghost@example.com"); err != nil {
			t.Fatalf("expected silent accept, got %v", err)
		}
		if len(fx.notifier.notifications) != 0 {
			t.Fatal("no notification expected for unknown email")
		}
	})

	t.Run("a newer token invalidates the previous one", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		if _, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Dana", testPassword, "go-test", "10.0.0.1"); err != nil {
			t.Fatalf("register: %v", err)
		}
		if err := fx.svc.ForgotLocalPassword(ctx, "dana@example.com"); err != nil {
			t.Fatalf("first forgot: %v", err)
		}
		if err := fx.svc.ForgotLocalPassword(ctx, "dana@example.com"); err != nil {
			t.Fatalf("second forgot: %v", err)
		}
		first := fx.notifier.notifications[0].Token
		second := fx.notifier.notifications[1].Token

		if err := fx.svc.ResetLocalPassword(ctx, first, newPassword, "10.0.0.9"); !errors.Is(err, ErrInvalidResetToken) {
			t.Fatalf("stale token must be rejected, got %v", err)
		}
		if err := fx.svc.ResetLocalPassword(ctx, second, newPassword, "10.0.0.9"); err != nil {
			t.Fatalf("fresh token: %v", err)
		}
	})

	t.Run("reset enforces history reuse", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		if _, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Dana", testPassword, "go-test", "10.0.0.1"); err != nil {
			t.Fatalf("register: %v", err)
		}
		if err := fx.svc.ForgotLocalPassword(ctx, "dana@example.com"); err != nil {
			t.Fatalf("forgot: %v", err)
		}
		token := fx.notifier.notifications[0].Token
		err := fx.svc.ResetLocalPassword(ctx, token, testPassword, "10.0.0.9")
		var policyErr *PolicyViolationError
		if !errors.As(err, &policyErr) {
			t.Fatalf("expected reuse rejection, got %v", err)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		fx := newAuthServiceForTest(t, nil)
		if err := fx.svc.ResetLocalPassword(ctx, "not-a-token", newPassword, "10.0.0.9"); !errors.Is(err, ErrInvalidResetToken) {
			t.Fatalf("expected ErrInvalidResetToken, got %v", err)
		}
	})

	t.Run("cooldown after repeated invalid tokens", func(t *testing.T) {
		fx := newAuthServiceForTest(t, func(_ *config.Config, _ *password.Policy, guard *AuthAbuseGuard) {
			*guard = NewInMemoryAuthAbuseGuard(AuthAbusePolicy{
				FreeAttempts: 1,
				BaseDelay:    time.Second,
				Multiplier:   2,
				MaxDelay:     time.Minute,
				ResetWindow:  time.Minute,
			})
		})
		for i := 0; i < 2; i++ {
			if err := fx.svc.ResetLocalPassword(ctx, "not-a-token", newPassword, "10.0.0.9"); !errors.Is(err, ErrInvalidResetToken) {
				t.Fatalf("attempt %d: expected ErrInvalidResetToken, got %v", i, err)
			}
		}
		err := fx.svc.ResetLocalPassword(ctx, "not-a-token", newPassword, "10.0.0.9")
		var cooldown *CooldownError
		if !errors.As(err, &cooldown) {
			t.Fatalf("expected CooldownError, got %v", err)
		}
		if cooldown.RetryAfter <= 0 {
			t.Fatalf("expected positive retry-after, got %s", cooldown.RetryAfter)
		}
	})
}

func TestRefreshAndLogout(t *testing.T) {
	ctx := context.Background()

	fx := newAuthServiceForTest(t, nil)
	reg, err := fx.svc.RegisterLocal(ctx, "dana@example.com", "Dana", testPassword, "go-test", "10.0.0.1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	refreshed, err := fx.svc.Refresh(ctx, reg.RefreshToken, "go-test", "10.0.0.1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.RefreshToken == reg.RefreshToken {
		t.Fatal("refresh must rotate the refresh token")
	}
	if refreshed.User.ID != reg.User.ID {
		t.Fatalf("expected user %d, got %d", reg.User.ID, refreshed.User.ID)
	}

	// The consumed refresh token is single use.
	if _, err := fx.svc.Refresh(ctx, reg.RefreshToken, "go-test", "10.0.0.1"); err == nil {
		t.Fatal("expected replayed refresh token to be rejected")
	}

	if err := fx.svc.Logout(ctx, reg.User.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := fx.svc.Refresh(ctx, refreshed.RefreshToken, "go-test", "10.0.0.1"); err == nil {
		t.Fatal("expected refresh to fail after logout")
	}
}

func TestEvaluatePassword(t *testing.T) {
	fx := newAuthServiceForTest(t, nil)
	ctx := context.Background()

	weak := fx.svc.EvaluatePassword(ctx, "abc")
	if weak.Valid {
		t.Fatal("expected invalid result")
	}
	if len(weak.Feedback) == 0 {
		t.Fatal("expected feedback for every unmet rule")
	}
	if weak.Strength == "" {
		t.Fatal("expected a strength label")
	}

	strong := fx.svc.EvaluatePassword(ctx, testPassword)
	if !strong.Valid {
		t.Fatalf("expected valid result, feedback: %v", strong.Feedback)
	}
	if len(strong.Feedback) != 0 {
		t.Fatalf("no feedback expected for a compliant password, got %v", strong.Feedback)
	}
}

func TestSessionUserExpiryFields(t *testing.T) {
	user := &domain.User{ID: 1, Email: "kai@example.com", Name: "Kai"}

	t.Run("current credential emits no expiry fields", func(t *testing.T) {
		cred := &domain.Credential{UserID: 1, ExpiresAt: time.Now().UTC().Add(90 * 24 * time.Hour)}
		raw, err := json.Marshal(sessionUser(user, credentialState(cred, time.Now().UTC())))
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if strings.Contains(string(raw), "password_expired") || strings.Contains(string(raw), "password_expires_at") {
			t.Fatalf("unexpected expiry fields on current credential: %s", raw)
		}
	})

	t.Run("expired credential carries flag and timestamp", func(t *testing.T) {
		expiresAt := time.Now().UTC().Add(-time.Hour)
		cred := &domain.Credential{UserID: 1, ExpiresAt: expiresAt}
		state := credentialState(cred, time.Now().UTC())
		if !state.PasswordExpired {
			t.Fatal("expected expired state")
		}
		if state.PasswordExpiresAt == nil || !state.PasswordExpiresAt.Equal(expiresAt) {
			t.Fatalf("expected raw expiry timestamp, got %v", state.PasswordExpiresAt)
		}
		raw, err := json.Marshal(sessionUser(user, state))
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !strings.Contains(string(raw), `"password_expired":true`) || !strings.Contains(string(raw), "password_expires_at") {
			t.Fatalf("expected expiry fields on expired credential: %s", raw)
		}
	})
}
