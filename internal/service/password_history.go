package service

import (
	"context"

	"github.com/reconhub/auth-service/internal/repository"
	"github.com/reconhub/auth-service/internal/security"
)

// StoredPasswordHistory answers reuse checks against the most recent
// hashes on record. Each stored hash carries its own salt, so the
// candidate plaintext is verified against every hash in the window
// instead of comparing encodings.
type StoredPasswordHistory struct {
	repo  repository.PasswordHistoryRepository
	limit int
}

func NewStoredPasswordHistory(repo repository.PasswordHistoryRepository, limit int) *StoredPasswordHistory {
	return &StoredPasswordHistory{repo: repo, limit: limit}
}

func (h *StoredPasswordHistory) WasPreviouslyUsed(ctx context.Context, userID uint, candidate string) (bool, error) {
	if h.limit <= 0 {
		return false, nil
	}
	hashes, err := h.repo.RecentHashes(userID, h.limit)
	if err != nil {
		return false, err
	}
	return security.VerifyAgainstAny(hashes, candidate)
}
