package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/reconhub/auth-service/internal/domain"
	"github.com/reconhub/auth-service/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type memoryCredStateStore struct {
	entries map[uint]CredentialState
	hits    int
	sets    int
}

func newMemoryCredStateStore() *memoryCredStateStore {
	return &memoryCredStateStore{entries: make(map[uint]CredentialState)}
}

func (s *memoryCredStateStore) Get(_ context.Context, userID uint) (CredentialState, bool, error) {
	state, ok := s.entries[userID]
	if ok {
		s.hits++
	}
	return state, ok, nil
}

func (s *memoryCredStateStore) Set(_ context.Context, userID uint, state CredentialState, _ time.Duration) error {
	s.sets++
	s.entries[userID] = state
	return nil
}

func (s *memoryCredStateStore) Invalidate(_ context.Context, userID uint) error {
	delete(s.entries, userID)
	return nil
}

func newResolverDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Credential{}, &domain.PasswordHistoryEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCredential(t *testing.T, db *gorm.DB, userID uint, expiresAt time.Time) {
	t.Helper()
	err := db.Create(&domain.Credential{
		UserID:        userID,
		PasswordHash:  "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		LastChangedAt: time.Now().UTC().Add(-24 * time.Hour),
		ExpiresAt:     expiresAt,
	}).Error
	if err != nil {
		t.Fatalf("seed credential: %v", err)
	}
}

func TestCredentialStateResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("expired credential", func(t *testing.T) {
		db := newResolverDBForTest(t)
		seedCredential(t, db, 1, time.Now().UTC().Add(-time.Hour))
		resolver := NewCachedCredentialStateResolver(nil, repository.NewCredentialRepository(db), 0)

		state, err := resolver.Resolve(ctx, 1)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if !state.PasswordExpired {
			t.Fatal("expected expired state")
		}
		if state.PasswordExpiresAt == nil {
			t.Fatal("expected expiry timestamp")
		}
	})

	t.Run("current credential", func(t *testing.T) {
		db := newResolverDBForTest(t)
		seedCredential(t, db, 1, time.Now().UTC().Add(24*time.Hour))
		resolver := NewCachedCredentialStateResolver(nil, repository.NewCredentialRepository(db), 0)

		state, err := resolver.Resolve(ctx, 1)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if state.PasswordExpired {
			t.Fatal("expected current state")
		}
		if state.PasswordExpiresAt != nil {
			t.Fatal("current credential must not expose an expiry date")
		}
	})

	t.Run("credential with no expiry", func(t *testing.T) {
		db := newResolverDBForTest(t)
		seedCredential(t, db, 1, time.Time{})
		resolver := NewCachedCredentialStateResolver(nil, repository.NewCredentialRepository(db), 0)

		state, err := resolver.Resolve(ctx, 1)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if state.PasswordExpired || state.PasswordExpiresAt != nil {
			t.Fatalf("zero expiry must never expire: %+v", state)
		}
	})

	t.Run("missing credential resolves to empty state", func(t *testing.T) {
		db := newResolverDBForTest(t)
		resolver := NewCachedCredentialStateResolver(nil, repository.NewCredentialRepository(db), 0)

		state, err := resolver.Resolve(ctx, 999)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if state.PasswordExpired || state.PasswordExpiresAt != nil {
			t.Fatalf("oauth-only account must carry empty state: %+v", state)
		}
	})

	t.Run("cache is filled and then served", func(t *testing.T) {
		db := newResolverDBForTest(t)
		seedCredential(t, db, 1, time.Now().UTC().Add(24*time.Hour))
		store := newMemoryCredStateStore()
		resolver := NewCachedCredentialStateResolver(store, repository.NewCredentialRepository(db), time.Minute)

		if _, err := resolver.Resolve(ctx, 1); err != nil {
			t.Fatalf("first Resolve: %v", err)
		}
		if store.sets != 1 {
			t.Fatalf("expected one cache fill, got %d", store.sets)
		}
		if _, err := resolver.Resolve(ctx, 1); err != nil {
			t.Fatalf("second Resolve: %v", err)
		}
		if store.hits != 1 {
			t.Fatalf("expected a cache hit, got %d", store.hits)
		}
	})

	t.Run("invalidate drops the cached entry", func(t *testing.T) {
		db := newResolverDBForTest(t)
		seedCredential(t, db, 1, time.Now().UTC().Add(24*time.Hour))
		store := newMemoryCredStateStore()
		resolver := NewCachedCredentialStateResolver(store, repository.NewCredentialRepository(db), time.Minute)

		if _, err := resolver.Resolve(ctx, 1); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if err := resolver.InvalidateUser(ctx, 1); err != nil {
			t.Fatalf("InvalidateUser: %v", err)
		}
		if _, ok := store.entries[1]; ok {
			t.Fatal("expected entry to be removed")
		}
		if _, err := resolver.Resolve(ctx, 1); err != nil {
			t.Fatalf("Resolve after invalidate: %v", err)
		}
		if store.sets != 2 {
			t.Fatalf("expected refill after invalidate, got %d sets", store.sets)
		}
	})
}
