package plans

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var developmentSelect = `
    SELECT d.id, d.employee_id, ` + fmt.Sprintf(displayName, "e") + `, d.competency_gap, d.development_activities,
           d.timeline, d.expected_outcome, d.progress, d.start_date, d.end_date, d.created_at, d.updated_at
    FROM development_plans d
    JOIN users e ON e.id = d.employee_id`

func scanDevelopment(row pgx.Row) (DevelopmentPlan, error) {
	var d DevelopmentPlan
	err := row.Scan(&d.ID, &d.EmployeeID, &d.EmployeeName, &d.CompetencyGap, &d.DevelopmentActivities,
		&d.Timeline, &d.ExpectedOutcome, &d.Progress, &d.StartDate, &d.EndDate, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func developmentWhere(tenantID string, filter Filter) (string, []any) {
	where := " WHERE d.tenant_id = $1"
	args := []any{tenantID}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		where += fmt.Sprintf(" AND d.employee_id = $%d", len(args))
	}
	if filter.Involving != "" {
		args = append(args, filter.Involving)
		where += fmt.Sprintf(" AND (d.employee_id = $%[1]d OR e.manager_id = $%[1]d)", len(args))
	}
	return where, args
}

func (s *Store) ListDevelopmentPlans(ctx context.Context, tenantID string, filter Filter, limit, offset int) ([]DevelopmentPlan, error) {
	where, args := developmentWhere(tenantID, filter)
	args = append(args, limit, offset)
	rows, err := s.DB.Query(ctx, developmentSelect+where+fmt.Sprintf(" ORDER BY d.start_date DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DevelopmentPlan{}
	for rows.Next() {
		d, err := scanDevelopment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) CountDevelopmentPlans(ctx context.Context, tenantID string, filter Filter) (int, error) {
	where, args := developmentWhere(tenantID, filter)
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM development_plans d JOIN users e ON e.id = d.employee_id"+where, args...).Scan(&total)
	return total, err
}

func (s *Store) GetDevelopmentPlan(ctx context.Context, tenantID, id string) (DevelopmentPlan, error) {
	d, err := scanDevelopment(s.DB.QueryRow(ctx, developmentSelect+" WHERE d.tenant_id = $1 AND d.id = $2", tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return DevelopmentPlan{}, ErrNotFound
	}
	return d, err
}

func (s *Store) CreateDevelopmentPlan(ctx context.Context, tenantID string, d DevelopmentPlan) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO development_plans (tenant_id, employee_id, competency_gap, development_activities, timeline, expected_outcome, progress, start_date, end_date)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING id
  `, tenantID, d.EmployeeID, d.CompetencyGap, d.DevelopmentActivities, d.Timeline, d.ExpectedOutcome, d.Progress, d.StartDate, d.EndDate).Scan(&id)
	return id, err
}

func (s *Store) UpdateDevelopmentPlan(ctx context.Context, tenantID string, d DevelopmentPlan) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE development_plans
    SET competency_gap = $3, development_activities = $4, timeline = $5, expected_outcome = $6,
        progress = $7, start_date = $8, end_date = $9, updated_at = now()
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, d.ID, d.CompetencyGap, d.DevelopmentActivities, d.Timeline, d.ExpectedOutcome, d.Progress, d.StartDate, d.EndDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteDevelopmentPlan(ctx context.Context, tenantID, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM development_plans WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
