package database

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reconhub/auth-service/internal/domain"
	"github.com/reconhub/auth-service/internal/password"
	"github.com/reconhub/auth-service/internal/security"
)

func newSeedDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSeedBootstrapUser(t *testing.T) {
	policy := password.DefaultPolicy()

	t.Run("creates user credential and history", func(t *testing.T) {
		db := newSeedDBForTest(t)

		initial, err := SeedBootstrapUser(db, policy, "Admin@Example.com", "Admin")
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		if initial == "" {
			t.Fatal("expected generated initial password")
		}
		if res := policy.Evaluate(initial); !res.Valid {
			t.Fatalf("generated password fails policy: %v", res.Feedback)
		}

		var user domain.User
		if err := db.Where("email = ?", "admin@example.com").First(&user).Error; err != nil {
			t.Fatalf("find user: %v", err)
		}
		var cred domain.Credential
		if err := db.Where("user_id = ?", user.ID).First(&cred).Error; err != nil {
			t.Fatalf("find credential: %v", err)
		}
		if ok, err := security.VerifyPassword(cred.PasswordHash, initial); err != nil || !ok {
			t.Fatalf("stored hash does not verify: ok=%v err=%v", ok, err)
		}
		if cred.ExpiresAt.IsZero() {
			t.Fatal("expected expiry from default policy")
		}
		var historyCount int64
		if err := db.Model(&domain.PasswordHistoryEntry{}).Where("user_id = ?", user.ID).Count(&historyCount).Error; err != nil {
			t.Fatalf("count history: %v", err)
		}
		if historyCount != 1 {
			t.Fatalf("expected 1 history row, got %d", historyCount)
		}
	})

	t.Run("existing email is a no-op", func(t *testing.T) {
		db := newSeedDBForTest(t)
		if _, err := SeedBootstrapUser(db, policy, "admin@example.com", "Admin"); err != nil {
			t.Fatalf("first seed: %v", err)
		}
		initial, err := SeedBootstrapUser(db, policy, "admin@example.com", "Admin")
		if err != nil {
			t.Fatalf("second seed: %v", err)
		}
		if initial != "" {
			t.Fatal("expected empty password on repeat seed")
		}
		var count int64
		if err := db.Model(&domain.User{}).Count(&count).Error; err != nil {
			t.Fatalf("count users: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected single user, got %d", count)
		}
	})

	t.Run("missing email rejected", func(t *testing.T) {
		db := newSeedDBForTest(t)
		if _, err := SeedBootstrapUser(db, policy, "  ", "x"); err == nil {
			t.Fatal("expected error for blank email")
		}
	})
}
