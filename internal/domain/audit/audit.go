package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pmds/internal/platform/requestctx"
)

const (
	maxReprLen      = 200
	maxUserAgentLen = 300
)

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

const summaryColumns = `id, actor_user_id, impersonator_id, action, entity_type, entity_id, object_repr, request_id, ip, user_agent, created_at`

// Record appends an event. Request id and client details default to the
// values carried on ctx.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if e.RequestID == "" {
		e.RequestID = requestctx.GetRequestID(ctx)
	}
	if e.IP == "" && e.UserAgent == "" {
		client := requestctx.GetClient(ctx)
		e.IP, e.UserAgent = client.IP, client.UserAgent
	}
	before, err := snapshot(e.Before)
	if err != nil {
		return fmt.Errorf("audit before state: %w", err)
	}
	after, err := snapshot(e.After)
	if err != nil {
		return fmt.Errorf("audit after state: %w", err)
	}

	_, err = s.DB.Exec(ctx, `
    INSERT INTO audit_events (
      tenant_id, actor_user_id, impersonator_id, action, entity_type, entity_id,
      object_repr, before_json, after_json, request_id, ip, user_agent
    ) VALUES ($1, NULLIF($2, '')::uuid, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $10, $11, $12)
  `, e.TenantID, e.ActorID, e.ImpersonatorID, e.Action, e.EntityType, e.EntityID,
		clip(e.ObjectRepr, maxReprLen), before, after, e.RequestID, e.IP, clip(e.UserAgent, maxUserAgentLen))
	return err
}

func (s *Service) Count(ctx context.Context, tenantID string, filter Filter) (int, error) {
	where, args := filter.where(tenantID)
	var total int
	err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM audit_events WHERE `+where, args...).Scan(&total)
	return total, err
}

// List returns one page, newest first. Before/after snapshots are only loaded
// when includeDetails is set.
func (s *Service) List(ctx context.Context, tenantID string, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	where, args := filter.where(tenantID)
	columns, scan := summaryColumns, scanSummary
	if includeDetails {
		columns, scan = summaryColumns+`, before_json, after_json`, scanDetailed
	}
	query := fmt.Sprintf(`SELECT %s FROM audit_events WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		columns, where, len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	events, err := pgx.CollectRows(rows, scan)
	if events == nil {
		events = []Event{}
	}
	return events, err
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (Event, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+summaryColumns+`, before_json, after_json
    FROM audit_events
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, id)
	if err != nil {
		return Event{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanDetailed)
}

// ListExport returns every matching event for the CSV export.
func (s *Service) ListExport(ctx context.Context, tenantID string, filter Filter) ([]Event, error) {
	where, args := filter.where(tenantID)
	rows, err := s.DB.Query(ctx, `SELECT `+summaryColumns+` FROM audit_events WHERE `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanSummary)
}

func (e *Event) summaryFields() []any {
	return []any{&e.ID, &e.ActorID, &e.ImpersonatorID, &e.Action, &e.EntityType, &e.EntityID, &e.ObjectRepr, &e.RequestID, &e.IP, &e.UserAgent, &e.CreatedAt}
}

func scanSummary(row pgx.CollectableRow) (Event, error) {
	var e Event
	err := row.Scan(e.summaryFields()...)
	return e, err
}

func scanDetailed(row pgx.CollectableRow) (Event, error) {
	var e Event
	err := row.Scan(append(e.summaryFields(), &e.Before, &e.After)...)
	return e, err
}

// where renders the filter as a WHERE body. The tenant is always $1.
func (f Filter) where(tenantID string) (string, []any) {
	clauses := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if f.ActorUser != "" {
		add("actor_user_id::text = $%d", f.ActorUser)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}
	return strings.Join(clauses, " AND "), args
}

func snapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// clip shortens s to at most n runes.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
