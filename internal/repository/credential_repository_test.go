package repository

import (
	"errors"
	"testing"
	"time"
)

func TestCredentialRepositoryFindByUserIDAndEmail(t *testing.T) {
	db := newRepositoryDBForTest(t)
	user := createTestUser(t, db, "cred@example.com")
	repo := NewCredentialRepository(db)

	now := time.Now().UTC().Truncate(time.Second)
	cred := newTestCredential(user.ID, "hash-1", now, now.Add(90*24*time.Hour))
	if err := repo.Create(cred); err != nil {
		t.Fatalf("create credential: %v", err)
	}

	byUser, err := repo.FindByUserID(user.ID)
	if err != nil {
		t.Fatalf("find by user id: %v", err)
	}
	if byUser.PasswordHash != "hash-1" {
		t.Fatalf("unexpected hash %q", byUser.PasswordHash)
	}

	byEmail, err := repo.FindByEmail("cred@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.UserID != user.ID {
		t.Fatalf("email lookup returned user %d, want %d", byEmail.UserID, user.ID)
	}

	if _, err := repo.FindByUserID(user.ID + 999); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
	if _, err := repo.FindByEmail("nobody@example.com"); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestCredentialRepositoryRotatePassword(t *testing.T) {
	db := newRepositoryDBForTest(t)
	user := createTestUser(t, db, "rotate@example.com")
	repo := NewCredentialRepository(db)
	history := NewPasswordHistoryRepository(db)

	start := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	if err := repo.Create(newTestCredential(user.ID, "hash-old", start, start.Add(90*24*time.Hour))); err != nil {
		t.Fatalf("create credential: %v", err)
	}

	changedAt := start.Add(30 * time.Minute)
	expiresAt := changedAt.Add(90 * 24 * time.Hour)
	if err := repo.RotatePassword(user.ID, "hash-new", changedAt, expiresAt); err != nil {
		t.Fatalf("rotate password: %v", err)
	}

	cred, err := repo.FindByUserID(user.ID)
	if err != nil {
		t.Fatalf("reload credential: %v", err)
	}
	if cred.PasswordHash != "hash-new" {
		t.Fatalf("hash not rotated, got %q", cred.PasswordHash)
	}
	if !cred.LastChangedAt.Equal(changedAt) {
		t.Fatalf("last changed = %v, want %v", cred.LastChangedAt, changedAt)
	}
	if !cred.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("expires = %v, want %v", cred.ExpiresAt, expiresAt)
	}

	hashes, err := history.RecentHashes(user.ID, 5)
	if err != nil {
		t.Fatalf("recent hashes: %v", err)
	}
	if len(hashes) != 1 || hashes[0] != "hash-new" {
		t.Fatalf("expected rotation to append history, got %v", hashes)
	}
}

func TestCredentialRepositoryRotatePasswordMissingCredential(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewCredentialRepository(db)
	history := NewPasswordHistoryRepository(db)

	err := repo.RotatePassword(12345, "hash", time.Now(), time.Now())
	if !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}

	// The failed rotation must not leave a stray history row behind.
	n, err := history.CountForUser(12345)
	if err != nil {
		t.Fatalf("count history: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no history rows, got %d", n)
	}
}
