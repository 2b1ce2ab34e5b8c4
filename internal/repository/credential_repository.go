package repository

import (
	"errors"
	"time"

	"github.com/reconhub/auth-service/internal/domain"

	"gorm.io/gorm"
)

var ErrCredentialNotFound = errors.New("credential not found")

type CredentialRepository interface {
	Create(credential *domain.Credential) error
	FindByUserID(userID uint) (*domain.Credential, error)
	FindByEmail(email string) (*domain.Credential, error)
	// RotatePassword updates the stored hash and expiry stamps and appends
	// the new hash to the password history in a single transaction, so a
	// crash can never leave the credential and its history disagreeing.
	RotatePassword(userID uint, newHash string, changedAt, expiresAt time.Time) error
}

type GormCredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &GormCredentialRepository{db: db}
}

func (r *GormCredentialRepository) Create(credential *domain.Credential) error {
	return r.db.Create(credential).Error
}

func (r *GormCredentialRepository) FindByUserID(userID uint) (*domain.Credential, error) {
	var c domain.Credential
	if err := r.db.Where("user_id = ?", userID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *GormCredentialRepository) FindByEmail(email string) (*domain.Credential, error) {
	var c domain.Credential
	err := r.db.
		Joins("JOIN users ON users.id = credentials.user_id").
		Where("users.email = ?", email).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *GormCredentialRepository) RotatePassword(userID uint, newHash string, changedAt, expiresAt time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Credential{}).Where("user_id = ?", userID).
			Updates(map[string]any{
				"password_hash":   newHash,
				"last_changed_at": changedAt,
				"expires_at":      expiresAt,
				"updated_at":      changedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCredentialNotFound
		}
		return tx.Create(&domain.PasswordHistoryEntry{
			UserID:       userID,
			PasswordHash: newHash,
			CreatedAt:    changedAt,
		}).Error
	})
}
