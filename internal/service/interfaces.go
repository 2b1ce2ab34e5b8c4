package service

import "context"

type AuthServiceInterface interface {
	GoogleLoginURL(state string) string
	LoginWithGoogleCode(ctx context.Context, code, ua, ip string) (*LoginResult, error)
	RegisterLocal(ctx context.Context, email, name, password, ua, ip string) (*LoginResult, error)
	LoginWithLocalPassword(ctx context.Context, email, password, ua, ip string) (*LoginResult, error)
	ChangeLocalPassword(ctx context.Context, userID uint, currentPassword, newPassword string) error
	ForgotLocalPassword(ctx context.Context, email string) error
	ResetLocalPassword(ctx context.Context, token, newPassword, ip string) error
	Refresh(ctx context.Context, refreshToken, ua, ip string) (*LoginResult, error)
	Logout(ctx context.Context, userID uint) error
	EvaluatePassword(ctx context.Context, candidate string) PasswordCheck
}

type SessionServiceInterface interface {
	ListSessions(ctx context.Context, userID uint, currentRefreshToken string) ([]SessionInfo, error)
	RevokeSession(ctx context.Context, userID, sessionID uint) (string, error)
	RevokeOtherSessions(ctx context.Context, userID uint, currentRefreshToken string) (int64, error)
}

type UserServiceInterface interface {
	GetByID(id uint) (*SessionUser, error)
	List() ([]SessionUser, error)
	ProvisionUser(ctx context.Context, email, name string) (*SessionUser, string, error)
}
