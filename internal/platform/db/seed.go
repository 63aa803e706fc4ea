package db

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pmds/internal/domain/auth"
	"pmds/internal/domain/users"
	"pmds/internal/platform/config"
)

type bootstrapAccount struct {
	role     string
	email    string
	password string
}

// Seed makes the default tenant, its roles and the bootstrap accounts exist.
// It runs in one transaction and can be repeated safely; rows edited after
// the first run are left alone.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		tenantID, err := seedTenant(ctx, tx, cfg)
		if err != nil {
			return fmt.Errorf("seed tenant: %w", err)
		}
		roleIDs, err := seedRoles(ctx, tx, tenantID)
		if err != nil {
			return fmt.Errorf("seed roles: %w", err)
		}
		if cfg.SeedSalaryLevels {
			if err := seedSalaryLevels(ctx, tx); err != nil {
				return err
			}
		}

		accounts := []bootstrapAccount{
			{auth.RoleHR, cfg.SeedAdminEmail, cfg.SeedAdminPassword},
			{auth.RoleSystemAdmin, cfg.SeedSystemAdminEmail, cfg.SeedSystemAdminPassword},
		}
		for _, account := range accounts {
			if err := seedAccount(ctx, tx, tenantID, roleIDs[account.role], account); err != nil {
				return fmt.Errorf("seed %s account: %w", account.role, err)
			}
		}
		return nil
	})
}

func seedTenant(ctx context.Context, tx pgx.Tx, cfg config.Config) (string, error) {
	var tenantID string
	if err := tx.QueryRow(ctx, `
    INSERT INTO tenants (name) VALUES ($1)
    ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
    RETURNING id
  `, cfg.SeedTenantName).Scan(&tenantID); err != nil {
		return "", err
	}
	_, err := tx.Exec(ctx, `
    INSERT INTO tenant_settings (tenant_id, email_notifications_enabled, email_from)
    VALUES ($1, $2, $3)
    ON CONFLICT (tenant_id) DO NOTHING
  `, tenantID, cfg.EmailEnabled, cfg.EmailFrom)
	return tenantID, err
}

// seedRoles creates the permission catalogue and every role with its grants.
// Grants are only ever added.
func seedRoles(ctx context.Context, tx pgx.Tx, tenantID string) (map[string]string, error) {
	if _, err := tx.Exec(ctx, `
    INSERT INTO permissions (key) SELECT unnest($1::text[])
    ON CONFLICT (key) DO NOTHING
  `, auth.DefaultPermissions); err != nil {
		return nil, err
	}

	roleIDs := make(map[string]string, len(auth.RolePermissions))
	for _, role := range slices.Sorted(maps.Keys(auth.RolePermissions)) {
		var roleID string
		if err := tx.QueryRow(ctx, `
      INSERT INTO roles (tenant_id, name) VALUES ($1, $2)
      ON CONFLICT (tenant_id, name) DO UPDATE SET name = EXCLUDED.name
      RETURNING id
    `, tenantID, role).Scan(&roleID); err != nil {
			return nil, err
		}
		grants := auth.RolePermissions[role]
		tag, err := tx.Exec(ctx, `
      INSERT INTO role_permissions (role_id, permission_id)
      SELECT $1, id FROM permissions WHERE key = ANY($2)
      ON CONFLICT DO NOTHING
    `, roleID, grants)
		if err != nil {
			return nil, err
		}
		if n := tag.RowsAffected(); n > 0 {
			slog.Info("role grants added", "role", role, "count", n)
		}
		roleIDs[role] = roleID
	}
	return roleIDs, nil
}

// seedSalaryLevels loads the bundled public service levels. Existing rows
// keep any edits made since.
func seedSalaryLevels(ctx context.Context, tx pgx.Tx) error {
	levels, err := users.DefaultSalaryLevels()
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, l := range levels {
		batch.Queue(`
      INSERT INTO salary_levels (level, typical_titles, notes) VALUES ($1, $2, $3)
      ON CONFLICT (level) DO NOTHING
    `, l.Level, l.TypicalTitles, l.Notes)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed salary levels: %w", err)
	}
	return nil
}

func seedAccount(ctx context.Context, tx pgx.Tx, tenantID, roleID string, account bootstrapAccount) error {
	email := strings.TrimSpace(account.email)
	if email == "" || strings.TrimSpace(account.password) == "" {
		return nil
	}
	hash, err := auth.HashPassword(account.password)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
    INSERT INTO users (tenant_id, email, username, password_hash, role_id)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT DO NOTHING
  `, tenantID, email, usernameFromEmail(email), hash, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		slog.Info("bootstrap account created", "role", account.role, "email", email)
	}
	return nil
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	return local
}
