package auth

type UserContext struct {
	UserID         string
	TenantID       string
	RoleID         string
	RoleName       string
	SessionID      string
	ImpersonatorID string
}

// Impersonating is true while an administrator acts as another user.
func (u UserContext) Impersonating() bool {
	return u.ImpersonatorID != ""
}

type AuthUser struct {
	ID          string
	TenantID    string
	RoleID      string
	RoleName    string
	Password    string
	MFAEnabled  bool
	MFASecretEn []byte
}
