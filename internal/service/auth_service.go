package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/reconhub/auth-service/internal/config"
	"github.com/reconhub/auth-service/internal/domain"
	"github.com/reconhub/auth-service/internal/observability"
	"github.com/reconhub/auth-service/internal/password"
	"github.com/reconhub/auth-service/internal/repository"
	"github.com/reconhub/auth-service/internal/security"

	"gorm.io/gorm"
)

var (
	ErrGoogleAuthDisabled = errors.New("google auth is disabled")
	ErrLocalAuthDisabled  = errors.New("local auth is disabled")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// PolicyViolationError rejects a candidate password and carries the full
// feedback list so clients can render every unmet rule at once.
type PolicyViolationError struct {
	Feedback []string
	Rules    []string
}

func (e *PolicyViolationError) Error() string {
	return "password does not meet policy requirements"
}

// CooldownError tells the caller to retry after the abuse-guard delay.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.RetryAfter)
}

// ValidationError marks malformed caller input. Handlers surface its
// message verbatim with a 4xx status; any other unexpected error stays
// server-side and is reported generically.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// SessionUser is the profile projection attached to every issued
// session. Expiry fields are advisory data for the client and only
// appear once the password has actually expired; an expired password
// never blocks authentication.
type SessionUser struct {
	ID                uint       `json:"id"`
	Email             string     `json:"email"`
	Name              string     `json:"name"`
	PasswordExpired   bool       `json:"password_expired,omitempty"`
	PasswordExpiresAt *time.Time `json:"password_expires_at,omitempty"`
}

type LoginResult struct {
	User         *SessionUser `json:"user"`
	AccessToken  string       `json:"-"`
	RefreshToken string       `json:"-"`
	CSRFToken    string       `json:"csrf_token,omitempty"`
	ExpiresAt    time.Time    `json:"expires_at,omitempty"`
}

// PasswordCheck is the response of the pre-flight strength endpoint.
type PasswordCheck struct {
	Valid    bool     `json:"is_valid"`
	Feedback []string `json:"feedback"`
	Strength string   `json:"strength"`
}

type AuthService struct {
	cfg           *config.Config
	policy        password.Policy
	oauthSvc      *OAuthService
	tokenSvc      *TokenService
	userRepo      repository.UserRepository
	credRepo      repository.CredentialRepository
	history       password.HistoryChecker
	tokenRepo     repository.VerificationTokenRepository
	resetNotifier PasswordResetNotifier
	abuseGuard    AuthAbuseGuard
	credResolver  *CachedCredentialStateResolver
}

func NewAuthService(
	cfg *config.Config,
	policy password.Policy,
	oauthSvc *OAuthService,
	tokenSvc *TokenService,
	userRepo repository.UserRepository,
	credRepo repository.CredentialRepository,
	history password.HistoryChecker,
	tokenRepo repository.VerificationTokenRepository,
	resetNotifier PasswordResetNotifier,
	abuseGuard AuthAbuseGuard,
	credResolver *CachedCredentialStateResolver,
) *AuthService {
	return &AuthService{
		cfg:           cfg,
		policy:        policy,
		oauthSvc:      oauthSvc,
		tokenSvc:      tokenSvc,
		userRepo:      userRepo,
		credRepo:      credRepo,
		history:       history,
		tokenRepo:     tokenRepo,
		resetNotifier: resetNotifier,
		abuseGuard:    abuseGuard,
		credResolver:  credResolver,
	}
}

// PolicyFromConfig builds the password policy from deployment knobs,
// merging any configured extra banned entries into the built-in list.
func PolicyFromConfig(cfg *config.Config) password.Policy {
	p := password.DefaultPolicy()
	p.MinLength = cfg.PasswordMinLength
	p.MaxLength = cfg.PasswordMaxLength
	p.MaxSequentialRun = cfg.PasswordMaxSequentialRun
	p.HistoryLimit = cfg.PasswordHistoryLimit
	p.ExpirationDays = cfg.PasswordExpirationDays
	p.Banned = append(p.Banned, cfg.PasswordBanned...)
	return p
}

func (s *AuthService) GoogleLoginURL(state string) string {
	if !s.cfg.AuthGoogleEnabled {
		return ""
	}
	return s.oauthSvc.LoginURL(state)
}

func (s *AuthService) LoginWithGoogleCode(ctx context.Context, code, ua, ip string) (*LoginResult, error) {
	if !s.cfg.AuthGoogleEnabled {
		return nil, ErrGoogleAuthDisabled
	}
	user, err := s.oauthSvc.HandleGoogleCallback(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateLastLogin(user.ID, time.Now().UTC()); err != nil {
		return nil, err
	}
	state, err := s.credResolver.Resolve(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.issueResult(ctx, user, state, ua, ip)
}

func (s *AuthService) RegisterLocal(ctx context.Context, email, name, candidate, ua, ip string) (*LoginResult, error) {
	if !s.cfg.AuthLocalEnabled {
		return nil, ErrLocalAuthDisabled
	}
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &ValidationError{Message: "name is required"}
	}
	if err := s.checkPolicy(ctx, s.policy.Evaluate(candidate), "register"); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.FindByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := security.HashPassword(candidate)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	expiresAt := password.ComputeExpiry(now, s.policy.ExpirationDays)
	user := &domain.User{Email: email, Name: name, Status: "active"}
	cred := &domain.Credential{
		PasswordHash:  hash,
		LastChangedAt: now,
		ExpiresAt:     expiresAt,
	}
	// The initial password counts against the reuse window.
	entry := &domain.PasswordHistoryEntry{PasswordHash: hash, CreatedAt: now}
	if err := s.userRepo.CreateWithCredential(user, cred, entry); err != nil {
		return nil, err
	}

	observability.RecordPasswordLifecycleEvent(ctx, "register", "success")
	return s.issueResult(ctx, user, credentialState(cred, now), ua, ip)
}

func (s *AuthService) LoginWithLocalPassword(ctx context.Context, email, candidate, ua, ip string) (*LoginResult, error) {
	if !s.cfg.AuthLocalEnabled {
		return nil, ErrLocalAuthDisabled
	}
	email = strings.TrimSpace(strings.ToLower(email))

	if delay, err := s.abuseGuard.Check(ctx, AuthAbuseScopeLogin, email, ip); err == nil && delay > 0 {
		observability.RecordAuthAbuseGuardEvent(ctx, "login", "check", "cooldown")
		observability.RecordAuthAbuseCooldown(ctx, "login", "check", delay)
		return nil, &CooldownError{RetryAfter: delay}
	}

	cred, err := s.credRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return nil, s.loginFailure(ctx, email, ip)
		}
		return nil, err
	}
	ok, err := security.VerifyPassword(cred.PasswordHash, candidate)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.loginFailure(ctx, email, ip)
	}
	_ = s.abuseGuard.Reset(ctx, AuthAbuseScopeLogin, email, ip)

	user, err := s.userRepo.FindByID(cred.UserID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.userRepo.UpdateLastLogin(user.ID, now); err != nil {
		return nil, err
	}

	state := credentialState(cred, now)
	if state.PasswordExpired {
		observability.RecordExpiredPasswordLogin(ctx)
	}
	return s.issueResult(ctx, user, state, ua, ip)
}

func (s *AuthService) ChangeLocalPassword(ctx context.Context, userID uint, currentPassword, newPassword string) error {
	if !s.cfg.AuthLocalEnabled {
		return ErrLocalAuthDisabled
	}
	cred, err := s.credRepo.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	ok, err := security.VerifyPassword(cred.PasswordHash, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		observability.RecordPasswordLifecycleEvent(ctx, "change", "bad_current")
		return ErrInvalidCredentials
	}

	result, err := s.policy.EvaluateForUser(ctx, newPassword, userID, s.history)
	if err != nil {
		return err
	}
	if err := s.checkPolicy(ctx, result, "change"); err != nil {
		return err
	}

	if err := s.rotatePassword(ctx, userID, newPassword); err != nil {
		return err
	}
	observability.RecordPasswordLifecycleEvent(ctx, "change", "success")
	return s.tokenSvc.RevokeAll(ctx, userID, "password_change")
}

func (s *AuthService) ForgotLocalPassword(ctx context.Context, email string) error {
	if !s.cfg.AuthLocalEnabled {
		return ErrLocalAuthDisabled
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil
	}

	if delay, err := s.abuseGuard.Check(ctx, AuthAbuseScopeForgot, email, ""); err == nil && delay > 0 {
		observability.RecordAuthAbuseGuardEvent(ctx, "forgot", "check", "cooldown")
		return &CooldownError{RetryAfter: delay}
	}
	// Every request bumps the counter: the forgot flow leaks nothing
	// about whether the address exists.
	_, _ = s.abuseGuard.RegisterFailure(ctx, AuthAbuseScopeForgot, email, "")

	cred, err := s.credRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return nil
		}
		return err
	}

	now := time.Now().UTC()
	if err := s.tokenRepo.InvalidateActiveByUserPurpose(cred.UserID, "password_reset", now); err != nil {
		return err
	}

	rawToken, err := security.NewRandomString(32)
	if err != nil {
		return err
	}
	expiresAt := now.Add(s.cfg.AuthPasswordResetTokenTTL)
	if err := s.tokenRepo.Create(&domain.VerificationToken{
		UserID:    cred.UserID,
		TokenHash: security.HashVerificationToken(rawToken),
		Purpose:   "password_reset",
		ExpiresAt: expiresAt,
	}); err != nil {
		return err
	}

	resetURL := ""
	if strings.TrimSpace(s.cfg.AuthPasswordResetBaseURL) != "" {
		u, err := url.Parse(s.cfg.AuthPasswordResetBaseURL)
		if err != nil {
			return fmt.Errorf("invalid AUTH_PASSWORD_RESET_BASE_URL: %w", err)
		}
		q := u.Query()
		q.Set("token", rawToken)
		u.RawQuery = q.Encode()
		resetURL = u.String()
	}

	observability.RecordPasswordLifecycleEvent(ctx, "forgot", "accepted")
	return s.resetNotifier.SendPasswordReset(ctx, PasswordResetNotification{
		UserID:    cred.UserID,
		Email:     email,
		Token:     rawToken,
		ExpiresAt: expiresAt,
		ResetURL:  resetURL,
	})
}

func (s *AuthService) ResetLocalPassword(ctx context.Context, token, newPassword, ip string) error {
	if !s.cfg.AuthLocalEnabled {
		return ErrLocalAuthDisabled
	}
	// Tokens are opaque, so guessing attempts can only be throttled by
	// source IP.
	if delay, err := s.abuseGuard.Check(ctx, AuthAbuseScopeReset, "", ip); err == nil && delay > 0 {
		observability.RecordAuthAbuseGuardEvent(ctx, "reset", "check", "cooldown")
		observability.RecordAuthAbuseCooldown(ctx, "reset", "check", delay)
		return &CooldownError{RetryAfter: delay}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return s.resetFailure(ctx, ip)
	}
	now := time.Now().UTC()
	record, err := s.tokenRepo.FindActiveByHashPurpose(security.HashVerificationToken(token), "password_reset", now)
	if err != nil {
		if errors.Is(err, repository.ErrVerificationTokenNotFound) {
			return s.resetFailure(ctx, ip)
		}
		return err
	}

	result, err := s.policy.EvaluateForUser(ctx, newPassword, record.UserID, s.history)
	if err != nil {
		return err
	}
	if err := s.checkPolicy(ctx, result, "reset"); err != nil {
		return err
	}

	if err := s.tokenRepo.Consume(record.ID, record.UserID, now); err != nil {
		if errors.Is(err, repository.ErrVerificationTokenNotFound) {
			return s.resetFailure(ctx, ip)
		}
		return err
	}

	if err := s.rotatePassword(ctx, record.UserID, newPassword); err != nil {
		return err
	}
	_ = s.abuseGuard.Reset(ctx, AuthAbuseScopeReset, "", ip)
	observability.RecordPasswordLifecycleEvent(ctx, "reset", "success")
	return s.tokenSvc.RevokeAll(ctx, record.UserID, "password_reset")
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken, ua, ip string) (*LoginResult, error) {
	access, newRefresh, csrf, userID, err := s.tokenSvc.Rotate(ctx, refreshToken, ua, ip)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	state, err := s.credResolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		User:         sessionUser(user, state),
		AccessToken:  access,
		RefreshToken: newRefresh,
		CSRFToken:    csrf,
		ExpiresAt:    time.Now().Add(s.cfg.JWTAccessTTL),
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, userID uint) error {
	return s.tokenSvc.RevokeAll(ctx, userID, "logout")
}

// EvaluatePassword is the stateless pre-flight check: full feedback plus
// a coarse strength label, with no history lookup.
func (s *AuthService) EvaluatePassword(_ context.Context, candidate string) PasswordCheck {
	result := s.policy.Evaluate(candidate)
	return PasswordCheck{
		Valid:    result.Valid,
		Feedback: append([]string{}, result.Feedback...),
		Strength: string(s.policy.Score(candidate)),
	}
}

// rotatePassword hashes the candidate and swaps it in atomically with
// the history append, then drops the cached expiry state.
func (s *AuthService) rotatePassword(ctx context.Context, userID uint, newPassword string) error {
	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	expiresAt := password.ComputeExpiry(now, s.policy.ExpirationDays)
	if err := s.credRepo.RotatePassword(userID, hash, now, expiresAt); err != nil {
		return err
	}
	if s.credResolver != nil {
		if err := s.credResolver.InvalidateUser(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

func (s *AuthService) checkPolicy(ctx context.Context, result password.Result, flow string) error {
	if result.Valid {
		return nil
	}
	for _, rule := range result.Rules {
		observability.RecordPasswordPolicyViolation(ctx, rule)
	}
	observability.RecordPasswordLifecycleEvent(ctx, flow, "policy_rejected")
	return &PolicyViolationError{Feedback: result.Feedback, Rules: result.Rules}
}

func (s *AuthService) loginFailure(ctx context.Context, email, ip string) error {
	delay, err := s.abuseGuard.RegisterFailure(ctx, AuthAbuseScopeLogin, email, ip)
	if err == nil && delay > 0 {
		observability.RecordAuthAbuseGuardEvent(ctx, "login", "failure", "cooldown")
		observability.RecordAuthAbuseCooldown(ctx, "login", "failure", delay)
	}
	return ErrInvalidCredentials
}

func (s *AuthService) resetFailure(ctx context.Context, ip string) error {
	delay, err := s.abuseGuard.RegisterFailure(ctx, AuthAbuseScopeReset, "", ip)
	if err == nil && delay > 0 {
		observability.RecordAuthAbuseGuardEvent(ctx, "reset", "failure", "cooldown")
		observability.RecordAuthAbuseCooldown(ctx, "reset", "failure", delay)
	}
	return ErrInvalidResetToken
}

func (s *AuthService) issueResult(ctx context.Context, user *domain.User, state CredentialState, ua, ip string) (*LoginResult, error) {
	access, refresh, csrf, err := s.tokenSvc.Issue(ctx, user.ID, ua, ip)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		User:         sessionUser(user, state),
		AccessToken:  access,
		RefreshToken: refresh,
		CSRFToken:    csrf,
		ExpiresAt:    time.Now().Add(s.cfg.JWTAccessTTL),
	}, nil
}

func sessionUser(user *domain.User, state CredentialState) *SessionUser {
	return &SessionUser{
		ID:                user.ID,
		Email:             user.Email,
		Name:              user.Name,
		PasswordExpired:   state.PasswordExpired,
		PasswordExpiresAt: state.PasswordExpiresAt,
	}
}

func credentialState(cred *domain.Credential, now time.Time) CredentialState {
	state := CredentialState{PasswordExpired: password.IsExpired(cred.ExpiresAt, now)}
	if state.PasswordExpired {
		expiresAt := cred.ExpiresAt
		state.PasswordExpiresAt = &expiresAt
	}
	return state
}

func validateEmail(email string) error {
	if email == "" {
		return &ValidationError{Message: "email is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &ValidationError{Message: "invalid email"}
	}
	return nil
}
