package database

import (
	"github.com/reconhub/auth-service/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Credential{},
		&domain.PasswordHistoryEntry{},
		&domain.OAuthAccount{},
		&domain.Session{},
		&domain.VerificationToken{},
	)
}
