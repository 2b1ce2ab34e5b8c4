package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/reconhub/auth-service/internal/domain"
	"github.com/reconhub/auth-service/internal/observability"
	"github.com/reconhub/auth-service/internal/password"
	"github.com/reconhub/auth-service/internal/repository"
	"github.com/reconhub/auth-service/internal/security"

	"gorm.io/gorm"
)

type UserService struct {
	policy          password.Policy
	userRepo        repository.UserRepository
	credRepo        repository.CredentialRepository
	initialNotifier InitialPasswordNotifier
}

func NewUserService(
	policy password.Policy,
	userRepo repository.UserRepository,
	credRepo repository.CredentialRepository,
	initialNotifier InitialPasswordNotifier,
) *UserService {
	return &UserService{
		policy:          policy,
		userRepo:        userRepo,
		credRepo:        credRepo,
		initialNotifier: initialNotifier,
	}
}

func (s *UserService) GetByID(id uint) (*SessionUser, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	return s.projectUser(user), nil
}

func (s *UserService) List() ([]SessionUser, error) {
	users, err := s.userRepo.List()
	if err != nil {
		return nil, err
	}
	out := make([]SessionUser, 0, len(users))
	for i := range users {
		out = append(out, *s.projectUser(&users[i]))
	}
	return out, nil
}

// ProvisionUser creates an operator-seeded account with a generated
// initial password. The cleartext is returned once to the caller and
// delivered through the notifier; it is never stored.
func (s *UserService) ProvisionUser(ctx context.Context, email, name string) (*SessionUser, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)
	if err := validateEmail(email); err != nil {
		return nil, "", err
	}
	if name == "" {
		return nil, "", &ValidationError{Message: "name is required"}
	}
	if _, err := s.userRepo.FindByEmail(email); err == nil {
		return nil, "", ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}

	initial, err := s.policy.GenerateInitial()
	if err != nil {
		return nil, "", err
	}
	hash, err := security.HashPassword(initial)
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	user := &domain.User{Email: email, Name: name, Status: "active"}
	cred := &domain.Credential{
		PasswordHash:  hash,
		LastChangedAt: now,
		ExpiresAt:     password.ComputeExpiry(now, s.policy.ExpirationDays),
	}
	entry := &domain.PasswordHistoryEntry{PasswordHash: hash, CreatedAt: now}
	if err := s.userRepo.CreateWithCredential(user, cred, entry); err != nil {
		return nil, "", err
	}

	if s.initialNotifier != nil {
		if err := s.initialNotifier.SendInitialPassword(ctx, InitialPasswordNotification{
			UserID:   user.ID,
			Email:    email,
			Password: initial,
		}); err != nil {
			return nil, "", err
		}
	}

	observability.RecordPasswordLifecycleEvent(ctx, "provision", "success")
	return s.projectUser(user), initial, nil
}

func (s *UserService) projectUser(user *domain.User) *SessionUser {
	su := &SessionUser{ID: user.ID, Email: user.Email, Name: user.Name}
	cred, err := s.credRepo.FindByUserID(user.ID)
	if err != nil {
		// OAuth-only accounts have no local credential.
		return su
	}
	state := credentialState(cred, time.Now().UTC())
	su.PasswordExpired = state.PasswordExpired
	su.PasswordExpiresAt = state.PasswordExpiresAt
	return su
}
