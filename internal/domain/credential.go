package domain

import "time"

// Credential is the password state owned by exactly one local-auth user.
// ExpiresAt is derived from LastChangedAt plus the configured expiration
// window and is recomputed on every password change; a zero ExpiresAt
// means the password never expires.
type Credential struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	PasswordHash  string    `gorm:"size:1024;not null" json:"-"`
	LastChangedAt time.Time `gorm:"not null" json:"password_last_changed"`
	ExpiresAt     time.Time `json:"password_expires_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
