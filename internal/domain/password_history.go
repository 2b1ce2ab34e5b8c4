package domain

import "time"

// PasswordHistoryEntry is an immutable, append-only record of a hash a
// user has previously used. Rows are never updated; only the most recent
// N entries are consulted for reuse checks and older rows are retained.
type PasswordHistoryEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index:idx_password_history_user" json:"user_id"`
	PasswordHash string    `gorm:"size:1024;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
