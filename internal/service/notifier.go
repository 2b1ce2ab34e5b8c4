package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type PasswordResetNotification struct {
	UserID    uint
	Email     string
	Token     string
	ExpiresAt time.Time
	ResetURL  string
}

type PasswordResetNotifier interface {
	SendPasswordReset(ctx context.Context, notification PasswordResetNotification) error
}

type InitialPasswordNotification struct {
	UserID   uint
	Email    string
	Password string
}

// InitialPasswordNotifier delivers the generated password for an
// operator-provisioned account.
type InitialPasswordNotifier interface {
	SendInitialPassword(ctx context.Context, notification InitialPasswordNotification) error
}

// DevNotifier logs instead of sending mail; for local development only.
type DevNotifier struct {
	logger *slog.Logger
}

func NewDevNotifier(logger *slog.Logger) *DevNotifier {
	return &DevNotifier{logger: logger}
}

func (n *DevNotifier) SendPasswordReset(ctx context.Context, notification PasswordResetNotification) error {
	link := notification.ResetURL
	if strings.TrimSpace(link) == "" {
		link = fmt.Sprintf("token=%s", notification.Token)
	}
	n.logger.InfoContext(ctx, "password reset token issued",
		"user_id", notification.UserID,
		"email", notification.Email,
		"expires_at", notification.ExpiresAt,
		"reset", link,
	)
	return nil
}

func (n *DevNotifier) SendInitialPassword(ctx context.Context, notification InitialPasswordNotification) error {
	n.logger.InfoContext(ctx, "initial password issued",
		"user_id", notification.UserID,
		"email", notification.Email,
	)
	return nil
}
