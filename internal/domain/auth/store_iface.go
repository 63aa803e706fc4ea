package auth

import (
	"context"
	"time"
)

type StoreAPI interface {
	FindActiveUserByLogin(ctx context.Context, login string) (AuthUser, error)
	FindActiveUserByID(ctx context.Context, tenantID, userID string) (AuthUser, error)
	RolePermissions(ctx context.Context, roleID string) ([]string, error)

	CreateSession(ctx context.Context, userID, sessionHash string, expires time.Time) error
	TouchLastLogin(ctx context.Context, userID string) error
	SessionValid(ctx context.Context, userID, sessionHash string) (bool, error)
	RotateSession(ctx context.Context, userID, oldHash, newHash string, expires time.Time) error
	RevokeSession(ctx context.Context, userID, sessionHash string) error

	StoreMFASecret(ctx context.Context, userID string, sealed []byte) error
	MFASecret(ctx context.Context, userID string) ([]byte, error)
	SetMFAEnabled(ctx context.Context, userID string, enabled bool) error

	CreatePasswordReset(ctx context.Context, email, tokenHash string, expires time.Time) (bool, error)
	ConsumePasswordReset(ctx context.Context, tokenHash, passwordHash string) error
}
