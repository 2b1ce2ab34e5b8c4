package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/reconhub/auth-service/internal/domain"
	"github.com/reconhub/auth-service/internal/password"
	"github.com/reconhub/auth-service/internal/security"
)

// SeedBootstrapUser provisions the first account so operators can log in
// on a fresh deployment. The generated initial password is returned
// exactly once; it is never persisted in cleartext. Seeding an email
// that already exists is a no-op and returns an empty password.
func SeedBootstrapUser(db *gorm.DB, policy password.Policy, email, name string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", errors.New("bootstrap email is required")
	}
	if name == "" {
		name = email
	}

	var existing domain.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return "", nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("lookup bootstrap user: %w", err)
	}

	initial, err := policy.GenerateInitial()
	if err != nil {
		return "", fmt.Errorf("generate initial password: %w", err)
	}
	hash, err := security.HashPassword(initial)
	if err != nil {
		return "", fmt.Errorf("hash initial password: %w", err)
	}

	now := time.Now().UTC()
	err = db.Transaction(func(tx *gorm.DB) error {
		user := domain.User{Email: email, Name: name, Status: "active"}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		cred := domain.Credential{
			UserID:        user.ID,
			PasswordHash:  hash,
			LastChangedAt: now,
			ExpiresAt:     password.ComputeExpiry(now, policy.ExpirationDays),
		}
		if err := tx.Create(&cred).Error; err != nil {
			return err
		}
		return tx.Create(&domain.PasswordHistoryEntry{UserID: user.ID, PasswordHash: hash}).Error
	})
	if err != nil {
		return "", fmt.Errorf("seed bootstrap user: %w", err)
	}
	return initial, nil
}
