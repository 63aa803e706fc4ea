package plans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const displayName = "COALESCE(NULLIF(TRIM(%[1]s.first_name || ' ' || %[1]s.last_name), ''), %[1]s.username)"

var planSelect = `
    SELECT p.id, p.employee_id, ` + fmt.Sprintf(displayName, "e") + `, p.supervisor_id, COALESCE(` + fmt.Sprintf(displayName, "s") + `, ''),
           p.status, p.approved_by, p.approval_date, p.created_at, p.updated_at
    FROM improvement_plans p
    JOIN users e ON e.id = p.employee_id
    LEFT JOIN users s ON s.id = p.supervisor_id`

func scanPlan(row pgx.Row) (ImprovementPlan, error) {
	var p ImprovementPlan
	err := row.Scan(&p.ID, &p.EmployeeID, &p.EmployeeName, &p.SupervisorID, &p.SupervisorName,
		&p.Status, &p.ApprovedBy, &p.ApprovalDate, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func planWhere(tenantID string, filter Filter) (string, []any) {
	where := " WHERE p.tenant_id = $1"
	args := []any{tenantID}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		where += fmt.Sprintf(" AND p.employee_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND p.status = $%d", len(args))
	}
	if filter.Involving != "" {
		args = append(args, filter.Involving)
		where += fmt.Sprintf(" AND (p.employee_id = $%[1]d OR p.supervisor_id = $%[1]d OR e.manager_id = $%[1]d)", len(args))
	}
	return where, args
}

func (s *Store) ListImprovementPlans(ctx context.Context, tenantID string, filter Filter, limit, offset int) ([]ImprovementPlan, error) {
	where, args := planWhere(tenantID, filter)
	args = append(args, limit, offset)
	query := planSelect + where + fmt.Sprintf(" ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ImprovementPlan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CountImprovementPlans(ctx context.Context, tenantID string, filter Filter) (int, error) {
	where, args := planWhere(tenantID, filter)
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM improvement_plans p JOIN users e ON e.id = p.employee_id"+where, args...).Scan(&total)
	return total, err
}

func (s *Store) GetImprovementPlan(ctx context.Context, tenantID, id string) (ImprovementPlan, error) {
	p, err := scanPlan(s.DB.QueryRow(ctx, planSelect+" WHERE p.tenant_id = $1 AND p.id = $2", tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ImprovementPlan{}, ErrNotFound
	}
	if err != nil {
		return ImprovementPlan{}, err
	}
	p.Items, err = s.listItems(ctx, p.ID)
	return p, err
}

// CurrentImprovementPlan is the employee's newest plan that is not completed.
func (s *Store) CurrentImprovementPlan(ctx context.Context, tenantID, employeeID string) (ImprovementPlan, error) {
	p, err := scanPlan(s.DB.QueryRow(ctx, planSelect+`
    WHERE p.tenant_id = $1 AND p.employee_id = $2 AND p.status <> 'COMPLETED'
    ORDER BY p.created_at DESC
    LIMIT 1`, tenantID, employeeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ImprovementPlan{}, ErrNotFound
	}
	if err != nil {
		return ImprovementPlan{}, err
	}
	p.Items, err = s.listItems(ctx, p.ID)
	return p, err
}

func (s *Store) CreateImprovementPlan(ctx context.Context, tenantID string, p ImprovementPlan) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO improvement_plans (tenant_id, employee_id, supervisor_id, status)
    VALUES ($1,$2,$3,$4)
    RETURNING id
  `, tenantID, p.EmployeeID, p.SupervisorID, p.Status).Scan(&id)
	return id, err
}

func (s *Store) UpdateImprovementPlan(ctx context.Context, tenantID string, p ImprovementPlan) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE improvement_plans
    SET supervisor_id = $3, status = $4, approved_by = $5, approval_date = $6, updated_at = now()
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, p.ID, p.SupervisorID, p.Status, p.ApprovedBy, p.ApprovalDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const itemColumns = "id, plan_id, area_for_development, interventions, timeline, action, target_date, progress, source_review_id, created_at, updated_at"

func (s *Store) listItems(ctx context.Context, planID string) ([]Item, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+itemColumns+" FROM improvement_plan_items WHERE plan_id = $1 ORDER BY created_at", planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.PlanID, &it.AreaForDevelopment, &it.Interventions, &it.Timeline, &it.Action,
			&it.TargetDate, &it.Progress, &it.SourceReviewID, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) AddItem(ctx context.Context, tenantID string, it Item) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO improvement_plan_items (plan_id, area_for_development, interventions, timeline, action, target_date, progress, source_review_id)
    SELECT p.id, $3, $4, $5, $6, $7, $8, $9
    FROM improvement_plans p
    WHERE p.tenant_id = $1 AND p.id = $2
    RETURNING id
  `, tenantID, it.PlanID, it.AreaForDevelopment, it.Interventions, it.Timeline, it.Action, it.TargetDate, it.Progress, it.SourceReviewID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return id, err
}

func (s *Store) UpdateItem(ctx context.Context, tenantID string, it Item) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE improvement_plan_items i
    SET area_for_development = $4, interventions = $5, timeline = $6, action = $7, target_date = $8, progress = $9, updated_at = now()
    FROM improvement_plans p
    WHERE p.id = i.plan_id AND p.tenant_id = $1 AND i.plan_id = $2 AND i.id = $3
  `, tenantID, it.PlanID, it.ID, it.AreaForDevelopment, it.Interventions, it.Timeline, it.Action, it.TargetDate, it.Progress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DueItems lists item target dates on in-progress plans and unfinished
// development plans ending before until.
func (s *Store) DueItems(ctx context.Context, tenantID string, until time.Time) ([]DueRow, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT 'improvement_plan', p.id, p.employee_id, i.area_for_development, i.target_date
    FROM improvement_plan_items i
    JOIN improvement_plans p ON p.id = i.plan_id
    WHERE p.tenant_id = $1 AND p.status = 'IN_PROGRESS' AND i.target_date IS NOT NULL AND i.target_date <= $2
    UNION ALL
    SELECT 'development_plan', d.id, d.employee_id, d.competency_gap, d.end_date
    FROM development_plans d
    WHERE d.tenant_id = $1 AND d.progress < 100 AND d.end_date <= $2
    ORDER BY 5
  `, tenantID, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DueRow{}
	for rows.Next() {
		var r DueRow
		if err := rows.Scan(&r.ObjectType, &r.ObjectID, &r.UserID, &r.Title, &r.DueDate); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
