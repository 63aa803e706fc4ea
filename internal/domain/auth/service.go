package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	cryptoutil "pmds/internal/platform/crypto"
)

const (
	SessionTTL       = 8 * time.Hour
	PasswordResetTTL = 2 * time.Hour
	mfaIssuer        = "PMDS"
)

// permissionTTL bounds how long a role's permission set is cached.
const permissionTTL = time.Minute

type Service struct {
	store  StoreAPI
	crypto *cryptoutil.Service
	secret string

	permMu sync.Mutex
	perms  map[string]cachedPermissions
	now    func() time.Time
}

type cachedPermissions struct {
	keys    map[string]bool
	expires time.Time
}

func NewService(store StoreAPI, crypto *cryptoutil.Service, secret string) *Service {
	return &Service{
		store:  store,
		crypto: crypto,
		secret: secret,
		perms:  map[string]cachedPermissions{},
		now:    time.Now,
	}
}

// Session is an issued access token and the user it was issued for.
type Session struct {
	Token string   `json:"token"`
	User  AuthUser `json:"-"`
}

func (s *Service) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	keys, err := s.rolePermissions(ctx, roleID)
	if err != nil {
		return false, err
	}
	return keys[permission], nil
}

// Permissions lists the permission keys granted to a role, sorted.
func (s *Service) Permissions(ctx context.Context, roleID string) ([]string, error) {
	keys, err := s.rolePermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for key := range keys {
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Service) rolePermissions(ctx context.Context, roleID string) (map[string]bool, error) {
	now := s.now()
	s.permMu.Lock()
	cached, ok := s.perms[roleID]
	s.permMu.Unlock()
	if ok && now.Before(cached.expires) {
		return cached.keys, nil
	}

	list, err := s.store.RolePermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(list))
	for _, key := range list {
		keys[key] = true
	}
	s.permMu.Lock()
	s.perms[roleID] = cachedPermissions{keys: keys, expires: now.Add(permissionTTL)}
	s.permMu.Unlock()
	return keys, nil
}

// Authenticate accepts an email or username, checks the password and, when
// enabled, the TOTP code.
func (s *Service) Authenticate(ctx context.Context, login, password, mfaCode string) (AuthUser, error) {
	user, err := s.store.FindActiveUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AuthUser{}, ErrInvalidCredentials
		}
		return AuthUser{}, err
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return AuthUser{}, ErrInvalidCredentials
	}
	if !user.MFAEnabled {
		return user, nil
	}
	if mfaCode == "" {
		return AuthUser{}, ErrMFARequired
	}
	secret, err := s.mfaSecret(user.MFASecretEn)
	if err != nil || secret == "" || !totp.Validate(mfaCode, secret) {
		return AuthUser{}, ErrMFAInvalid
	}
	return user, nil
}

// IssueSession persists a session and signs a token bound to it.
func (s *Service) IssueSession(ctx context.Context, user AuthUser, impersonatorID string) (Session, error) {
	sessionID, err := randomToken()
	if err != nil {
		return Session{}, err
	}
	sessionUserID := user.ID
	if impersonatorID != "" {
		sessionUserID = impersonatorID
	}
	if err := s.store.CreateSession(ctx, sessionUserID, HashToken(sessionID), time.Now().Add(SessionTTL)); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	token, err := GenerateToken(s.secret, Claims{
		UserID:         user.ID,
		TenantID:       user.TenantID,
		RoleID:         user.RoleID,
		RoleName:       user.RoleName,
		SessionID:      sessionID,
		ImpersonatorID: impersonatorID,
	}, SessionTTL)
	if err != nil {
		return Session{}, err
	}
	if impersonatorID == "" {
		if err := s.store.TouchLastLogin(ctx, user.ID); err != nil {
			slog.Warn("update last_login failed", "userId", user.ID, "err", err)
		}
	}
	return Session{Token: token, User: user}, nil
}

// Refresh rotates the session bound to a still-valid token.
func (s *Service) Refresh(ctx context.Context, claims *Claims) (string, error) {
	owner := claims.UserID
	if claims.ImpersonatorID != "" {
		owner = claims.ImpersonatorID
	}
	valid, err := s.store.SessionValid(ctx, owner, HashToken(claims.SessionID))
	if err != nil {
		return "", err
	}
	if !valid {
		return "", ErrSessionExpired
	}
	newSessionID, err := randomToken()
	if err != nil {
		return "", err
	}
	if err := s.store.RotateSession(ctx, owner, HashToken(claims.SessionID), HashToken(newSessionID), time.Now().Add(SessionTTL)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSessionExpired
		}
		return "", err
	}
	next := *claims
	next.SessionID = newSessionID
	return GenerateToken(s.secret, next, SessionTTL)
}

func (s *Service) Logout(ctx context.Context, user UserContext) error {
	if user.SessionID == "" {
		return nil
	}
	owner := user.UserID
	if user.ImpersonatorID != "" {
		owner = user.ImpersonatorID
	}
	return s.store.RevokeSession(ctx, owner, HashToken(user.SessionID))
}

// SessionActive is used by the auth middleware to reject revoked tokens.
func (s *Service) SessionActive(ctx context.Context, claims *Claims) (bool, error) {
	if claims.SessionID == "" {
		return false, nil
	}
	owner := claims.UserID
	if claims.ImpersonatorID != "" {
		owner = claims.ImpersonatorID
	}
	return s.store.SessionValid(ctx, owner, HashToken(claims.SessionID))
}

// StartImpersonation issues a token for target that remembers the acting admin.
func (s *Service) StartImpersonation(ctx context.Context, actor UserContext, targetID string) (Session, error) {
	if actor.Impersonating() {
		return Session{}, ErrImpersonateNested
	}
	if actor.UserID == targetID {
		return Session{}, ErrImpersonateSelf
	}
	target, err := s.store.FindActiveUserByID(ctx, actor.TenantID, targetID)
	if err != nil {
		return Session{}, err
	}
	if target.RoleName == RoleSystemAdmin {
		return Session{}, ErrImpersonateForbidden
	}
	if err := s.Logout(ctx, actor); err != nil {
		slog.Warn("impersonation revoke previous session failed", "userId", actor.UserID, "err", err)
	}
	return s.IssueSession(ctx, target, actor.UserID)
}

// StopImpersonation returns a fresh token for the original admin.
func (s *Service) StopImpersonation(ctx context.Context, actor UserContext) (Session, error) {
	if !actor.Impersonating() {
		return Session{}, ErrNotImpersonating
	}
	original, err := s.store.FindActiveUserByID(ctx, actor.TenantID, actor.ImpersonatorID)
	if err != nil {
		return Session{}, err
	}
	if err := s.Logout(ctx, actor); err != nil {
		slog.Warn("impersonation session revoke failed", "userId", actor.ImpersonatorID, "err", err)
	}
	return s.IssueSession(ctx, original, "")
}

func (s *Service) SetupMFA(ctx context.Context, userID, accountName string) (*otp.Key, error) {
	if s.crypto == nil || !s.crypto.Configured() {
		return nil, ErrMFAUnavailable
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      mfaIssuer,
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return nil, err
	}
	encrypted, err := s.crypto.SealString(key.Secret())
	if err != nil {
		return nil, err
	}
	if err := s.store.StoreMFASecret(ctx, userID, encrypted); err != nil {
		return nil, err
	}
	return key, nil
}

// SetMFA toggles MFA after the caller proves possession of the secret.
func (s *Service) SetMFA(ctx context.Context, userID, code string, enabled bool) error {
	if s.crypto == nil || !s.crypto.Configured() {
		return ErrMFAUnavailable
	}
	secretEnc, err := s.store.MFASecret(ctx, userID)
	if err != nil {
		return err
	}
	secret, err := s.mfaSecret(secretEnc)
	if err != nil || secret == "" || !totp.Validate(code, secret) {
		return ErrMFAInvalid
	}
	return s.store.SetMFAEnabled(ctx, userID, enabled)
}

// RequestPasswordReset returns the raw token, or "" when the email is unknown.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	created, err := s.store.CreatePasswordReset(ctx, email, HashToken(token), time.Now().Add(PasswordResetTTL))
	if err != nil || !created {
		return "", err
	}
	return token, nil
}

// ResetPassword spends the token and signs the user out everywhere.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.ConsumePasswordReset(ctx, HashToken(token), hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrResetTokenInvalid
		}
		return err
	}
	return nil
}

func (s *Service) mfaSecret(enc []byte) (string, error) {
	if s.crypto != nil && s.crypto.Configured() {
		return s.crypto.OpenString(enc)
	}
	return string(enc), nil
}

// ValidatePassword enforces the minimum password policy.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrWeakPassword
	}
	return nil
}

func randomToken() (string, error) {
	buff := make([]byte, 32)
	if _, err := rand.Read(buff); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buff), nil
}
