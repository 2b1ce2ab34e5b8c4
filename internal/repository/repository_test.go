package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/reconhub/auth-service/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newRepositoryDBForTest opens an isolated in-memory sqlite database and
// migrates every table the repositories touch.
func newRepositoryDBForTest(t *testing.T) *gorm.DB {
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
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, Name: "Test User", Status: "active"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func newTestCredential(userID uint, hash string, changedAt, expiresAt time.Time) *domain.Credential {
	return &domain.Credential{
		UserID:        userID,
		PasswordHash:  hash,
		LastChangedAt: changedAt,
		ExpiresAt:     expiresAt,
	}
}
