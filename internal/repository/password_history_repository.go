package repository

import (
	"github.com/reconhub/auth-service/internal/domain"

	"gorm.io/gorm"
)

type PasswordHistoryRepository interface {
	Append(entry *domain.PasswordHistoryEntry) error
	// RecentHashes returns the stored hashes for a user, newest first,
	// capped at limit. A limit of zero or less returns no hashes.
	RecentHashes(userID uint, limit int) ([]string, error)
	CountForUser(userID uint) (int64, error)
}

type GormPasswordHistoryRepository struct{ db *gorm.DB }

func NewPasswordHistoryRepository(db *gorm.DB) PasswordHistoryRepository {
	return &GormPasswordHistoryRepository{db: db}
}

func (r *GormPasswordHistoryRepository) Append(entry *domain.PasswordHistoryEntry) error {
	return r.db.Create(entry).Error
}

func (r *GormPasswordHistoryRepository) RecentHashes(userID uint, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	var hashes []string
	err := r.db.Model(&domain.PasswordHistoryEntry{}).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Pluck("password_hash", &hashes).Error
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

func (r *GormPasswordHistoryRepository) CountForUser(userID uint) (int64, error) {
	var n int64
	err := r.db.Model(&domain.PasswordHistoryEntry{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}
