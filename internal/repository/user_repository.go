package repository

import (
	"strings"
	"time"

	"github.com/reconhub/auth-service/internal/domain"

	"gorm.io/gorm"
)

type UserRepository interface {
	FindByID(id uint) (*domain.User, error)
	FindByEmail(email string) (*domain.User, error)
	Create(user *domain.User) error
	// CreateWithCredential creates the user together with its credential
	// and the first password history entry in a single transaction, so a
	// failed signup can never leave an orphan user or a credential
	// without its history row.
	CreateWithCredential(user *domain.User, credential *domain.Credential, entry *domain.PasswordHistoryEntry) error
	Update(user *domain.User) error
	UpdateLastLogin(userID uint, at time.Time) error
	List() ([]domain.User, error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var u domain.User
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(email string) (*domain.User, error) {
	var u domain.User
	normalized := strings.TrimSpace(strings.ToLower(email))
	if err := r.db.Where("email = ?", normalized).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) Create(user *domain.User) error { return r.db.Create(user).Error }
func (r *GormUserRepository) Update(user *domain.User) error { return r.db.Save(user).Error }

func (r *GormUserRepository) CreateWithCredential(user *domain.User, credential *domain.Credential, entry *domain.PasswordHistoryEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		credential.UserID = user.ID
		if err := tx.Create(credential).Error; err != nil {
			return err
		}
		entry.UserID = user.ID
		return tx.Create(entry).Error
	})
}

func (r *GormUserRepository) UpdateLastLogin(userID uint, at time.Time) error {
	return r.db.Model(&domain.User{}).Where("id = ?", userID).
		Update("last_login_at", at).Error
}

func (r *GormUserRepository) List() ([]domain.User, error) {
	var users []domain.User
	err := r.db.Order("id asc").Find(&users).Error
	return users, err
}
