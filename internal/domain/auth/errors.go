package auth

import "errors"

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrMFARequired          = errors.New("mfa code required")
	ErrMFAInvalid           = errors.New("invalid mfa code")
	ErrMFAUnavailable       = errors.New("mfa requires encryption key")
	ErrSessionExpired       = errors.New("session expired")
	ErrResetTokenInvalid    = errors.New("invalid or expired reset token")
	ErrImpersonateSelf      = errors.New("cannot impersonate yourself")
	ErrImpersonateNested    = errors.New("already impersonating a user")
	ErrNotImpersonating     = errors.New("not impersonating")
	ErrImpersonateForbidden = errors.New("target user cannot be impersonated")
	ErrWeakPassword         = errors.New("password must be at least 8 characters and contain upper, lower case letters and a digit")
)
