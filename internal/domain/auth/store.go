package auth

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userStatusActive = "active"

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const selectAuthUser = `
    SELECT u.id, u.tenant_id, u.role_id, r.name, u.password_hash, u.mfa_enabled, u.mfa_secret_enc
    FROM users u
    JOIN roles r ON r.id = u.role_id
`

func scanAuthUser(row pgx.Row) (AuthUser, error) {
	var u AuthUser
	err := row.Scan(&u.ID, &u.TenantID, &u.RoleID, &u.RoleName, &u.Password, &u.MFAEnabled, &u.MFASecretEn)
	return u, err
}

// FindActiveUserByLogin matches the login against email first, then username.
func (s *Store) FindActiveUserByLogin(ctx context.Context, login string) (AuthUser, error) {
	return scanAuthUser(s.DB.QueryRow(ctx, selectAuthUser+`
    WHERE u.status = $2 AND $1 IN (lower(u.email), lower(u.username))
    ORDER BY lower(u.email) = $1 DESC
    LIMIT 1
  `, normalizeLogin(login), userStatusActive))
}

func (s *Store) FindActiveUserByID(ctx context.Context, tenantID, userID string) (AuthUser, error) {
	return scanAuthUser(s.DB.QueryRow(ctx, selectAuthUser+`
    WHERE u.tenant_id = $1 AND u.id = $2 AND u.status = $3
  `, tenantID, userID, userStatusActive))
}

func (s *Store) RolePermissions(ctx context.Context, roleID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT p.key
    FROM permissions p
    WHERE p.id IN (SELECT permission_id FROM role_permissions WHERE role_id = $1)
    ORDER BY p.key
  `, roleID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) CreateSession(ctx context.Context, userID, sessionHash string, expires time.Time) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO sessions (user_id, refresh_token, expires_at) VALUES ($1, $2, $3)
  `, userID, sessionHash, expires)
	return err
}

func (s *Store) TouchLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, `UPDATE users SET last_login = now() WHERE id = $1`, userID)
	return err
}

func (s *Store) SessionValid(ctx context.Context, userID, sessionHash string) (bool, error) {
	var live bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM sessions
      WHERE user_id = $1 AND refresh_token = $2 AND revoked_at IS NULL AND expires_at > now()
    )
  `, userID, sessionHash).Scan(&live)
	return live, err
}

func (s *Store) RotateSession(ctx context.Context, userID, oldHash, newHash string, expires time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE sessions
    SET refresh_token = $3, expires_at = $4, rotated_at = now()
    WHERE user_id = $1 AND refresh_token = $2 AND revoked_at IS NULL
  `, userID, oldHash, newHash, expires)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) RevokeSession(ctx context.Context, userID, sessionHash string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE sessions SET revoked_at = now()
    WHERE user_id = $1 AND refresh_token = $2 AND revoked_at IS NULL
  `, userID, sessionHash)
	return err
}

// StoreMFASecret replaces the enrolment secret and disables MFA until the
// user confirms a code.
func (s *Store) StoreMFASecret(ctx context.Context, userID string, sealed []byte) error {
	_, err := s.DB.Exec(ctx, `UPDATE users SET mfa_secret_enc = $2, mfa_enabled = false WHERE id = $1`, userID, sealed)
	return err
}

func (s *Store) MFASecret(ctx context.Context, userID string) ([]byte, error) {
	var sealed []byte
	err := s.DB.QueryRow(ctx, `SELECT mfa_secret_enc FROM users WHERE id = $1`, userID).Scan(&sealed)
	return sealed, err
}

func (s *Store) SetMFAEnabled(ctx context.Context, userID string, enabled bool) error {
	_, err := s.DB.Exec(ctx, `UPDATE users SET mfa_enabled = $2 WHERE id = $1`, userID, enabled)
	return err
}

func (s *Store) CreatePasswordReset(ctx context.Context, email, tokenHash string, expires time.Time) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    INSERT INTO password_resets (user_id, token, expires_at)
    SELECT id, $2, $3 FROM users WHERE lower(email) = $1 AND status = $4
  `, normalizeLogin(email), tokenHash, expires, userStatusActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ConsumePasswordReset spends a reset token, stores the new hash and revokes
// every open session of the owner. pgx.ErrNoRows means the token is unknown,
// expired or already used.
func (s *Store) ConsumePasswordReset(ctx context.Context, tokenHash, passwordHash string) error {
	return pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		var userID string
		if err := tx.QueryRow(ctx, `
      UPDATE password_resets SET used_at = now()
      WHERE token = $1 AND used_at IS NULL AND expires_at > now()
      RETURNING user_id
    `, tokenHash).Scan(&userID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, passwordHash); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`, userID)
		return err
	})
}

func normalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}
