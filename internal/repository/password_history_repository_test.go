package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/reconhub/auth-service/internal/domain"
)

func TestPasswordHistoryRecentHashesOrderAndLimit(t *testing.T) {
	db := newRepositoryDBForTest(t)
	user := createTestUser(t, db, "history@example.com")
	repo := NewPasswordHistoryRepository(db)

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	for i := 0; i < 7; i++ {
		entry := &domain.PasswordHistoryEntry{
			UserID:       user.ID,
			PasswordHash: fmt.Sprintf("hash-%d", i),
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Append(entry); err != nil {
			t.Fatalf("append entry %d: %v", i, err)
		}
	}

	hashes, err := repo.RecentHashes(user.ID, 5)
	if err != nil {
		t.Fatalf("recent hashes: %v", err)
	}
	if len(hashes) != 5 {
		t.Fatalf("expected 5 hashes, got %d", len(hashes))
	}
	// Newest first; the two oldest entries fall outside the window.
	for i, want := range []string{"hash-6", "hash-5", "hash-4", "hash-3", "hash-2"} {
		if hashes[i] != want {
			t.Fatalf("hashes[%d] = %q, want %q", i, hashes[i], want)
		}
	}
}

func TestPasswordHistoryRecentHashesScopedToUser(t *testing.T) {
	db := newRepositoryDBForTest(t)
	a := createTestUser(t, db, "a@example.com")
	b := createTestUser(t, db, "b@example.com")
	repo := NewPasswordHistoryRepository(db)

	if err := repo.Append(&domain.PasswordHistoryEntry{UserID: a.ID, PasswordHash: "hash-a"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Append(&domain.PasswordHistoryEntry{UserID: b.ID, PasswordHash: "hash-b"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	hashes, err := repo.RecentHashes(a.ID, 5)
	if err != nil {
		t.Fatalf("recent hashes: %v", err)
	}
	if len(hashes) != 1 || hashes[0] != "hash-a" {
		t.Fatalf("expected only user a's hash, got %v", hashes)
	}
}

func TestPasswordHistoryRecentHashesZeroLimit(t *testing.T) {
	db := newRepositoryDBForTest(t)
	user := createTestUser(t, db, "zero@example.com")
	repo := NewPasswordHistoryRepository(db)

	if err := repo.Append(&domain.PasswordHistoryEntry{UserID: user.ID, PasswordHash: "hash"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	hashes, err := repo.RecentHashes(user.ID, 0)
	if err != nil {
		t.Fatalf("recent hashes: %v", err)
	}
	if len(hashes) != 0 {
		t.Fatalf("zero limit must return nothing, got %v", hashes)
	}
}
