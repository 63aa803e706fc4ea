package jobs

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	statusRunning   = "running"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// RunLog records each job execution in job_runs.
type RunLog interface {
	Begin(ctx context.Context, tenantID, jobType string) (string, error)
	Finish(ctx context.Context, runID, status string, details any) error
	ActiveTenants(ctx context.Context) ([]string, error)
}

type pgRunLog struct {
	db *pgxpool.Pool
}

func (l pgRunLog) Begin(ctx context.Context, tenantID, jobType string) (string, error) {
	var runID string
	err := l.db.QueryRow(ctx, `
    INSERT INTO job_runs (tenant_id, job_type, status)
    VALUES (NULLIF($1, '')::uuid, $2, $3)
    RETURNING id
  `, tenantID, jobType, statusRunning).Scan(&runID)
	return runID, err
}

func (l pgRunLog) Finish(ctx context.Context, runID, status string, details any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		payload = []byte(`{}`)
	}
	_, err = l.db.Exec(ctx, `
    UPDATE job_runs SET status = $2, details_json = $3, completed_at = now()
    WHERE id = $1
  `, runID, status, payload)
	return err
}

func (l pgRunLog) ActiveTenants(ctx context.Context) ([]string, error) {
	rows, err := l.db.Query(ctx, `SELECT id FROM tenants WHERE status = 'active' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
