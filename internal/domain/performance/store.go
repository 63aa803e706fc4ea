package performance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const displayName = "COALESCE(NULLIF(TRIM(%[1]s.first_name || ' ' || %[1]s.last_name), ''), %[1]s.username)"

var agreementSelect = `
    SELECT a.id, a.employee_id, ` + fmt.Sprintf(displayName, "e") + `, a.supervisor_id, COALESCE(` + fmt.Sprintf(displayName, "s") + `, ''),
           a.approver_id, COALESCE(` + fmt.Sprintf(displayName, "ap") + `, ''),
           a.agreement_date, a.plan_start_date, a.plan_end_date, a.midyear_review_date, a.final_assessment_date, a.status,
           a.employee_submitted_at, a.supervisor_reviewed_at, a.supervisor_signoff_at, a.manager_approved_at,
           a.hr_verified_at, a.completed_at, a.rejected_at, a.returned_at,
           a.employee_comments, a.supervisor_comments, a.manager_comments, a.hr_comments,
           a.rejection_reason, a.rejected_by, a.return_reason, a.hr_verifier_id, a.created_at, a.updated_at
    FROM performance_agreements a
    JOIN users e ON e.id = a.employee_id
    LEFT JOIN users s ON s.id = a.supervisor_id
    LEFT JOIN users ap ON ap.id = a.approver_id`

func scanAgreement(row pgx.Row) (Agreement, error) {
	var a Agreement
	err := row.Scan(&a.ID, &a.EmployeeID, &a.EmployeeName, &a.SupervisorID, &a.SupervisorName,
		&a.ApproverID, &a.ApproverName,
		&a.AgreementDate, &a.PlanStartDate, &a.PlanEndDate, &a.MidyearReviewDate, &a.FinalAssessmentDate, &a.Status,
		&a.EmployeeSubmittedAt, &a.SupervisorReviewedAt, &a.SupervisorSignoffAt, &a.ManagerApprovedAt,
		&a.HRVerifiedAt, &a.CompletedAt, &a.RejectedAt, &a.ReturnedAt,
		&a.EmployeeComments, &a.SupervisorComments, &a.ManagerComments, &a.HRComments,
		&a.RejectionReason, &a.RejectedBy, &a.ReturnReason, &a.HRVerifierID, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func agreementWhere(tenantID string, filter AgreementFilter) (string, []any) {
	where := " WHERE a.tenant_id = $1"
	args := []any{tenantID}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		where += fmt.Sprintf(" AND a.employee_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND a.status = $%d", len(args))
	}
	if filter.Year > 0 {
		args = append(args, filter.Year)
		where += fmt.Sprintf(" AND EXTRACT(YEAR FROM a.plan_start_date) = $%d", len(args))
	}
	if filter.Involving != "" {
		args = append(args, filter.Involving)
		where += fmt.Sprintf(" AND (a.employee_id = $%[1]d OR a.supervisor_id = $%[1]d OR a.approver_id = $%[1]d)", len(args))
	}
	return where, args
}

func (s *Store) ListAgreements(ctx context.Context, tenantID string, filter AgreementFilter, limit, offset int) ([]Agreement, error) {
	where, args := agreementWhere(tenantID, filter)
	args = append(args, limit, offset)
	rows, err := s.DB.Query(ctx, agreementSelect+where+fmt.Sprintf(" ORDER BY a.plan_start_date DESC, a.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Agreement{}
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CountAgreements(ctx context.Context, tenantID string, filter AgreementFilter) (int, error) {
	where, args := agreementWhere(tenantID, filter)
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM performance_agreements a"+where, args...).Scan(&total)
	return total, err
}

// ExportAgreements loads every matching agreement with its KRAs.
func (s *Store) ExportAgreements(ctx context.Context, tenantID string, filter AgreementFilter) ([]Agreement, error) {
	where, args := agreementWhere(tenantID, filter)
	rows, err := s.DB.Query(ctx, agreementSelect+where+" ORDER BY e.last_name, e.first_name, a.plan_start_date DESC", args...)
	if err != nil {
		return nil, err
	}
	var out []Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		kras, err := listKRAs(ctx, s.DB, tenantID, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].KRAs = kras
	}
	return out, nil
}

func (s *Store) GetAgreement(ctx context.Context, tenantID, id string) (Agreement, error) {
	return getAgreement(ctx, s.DB, tenantID, id, false)
}

func getAgreement(ctx context.Context, q querier, tenantID, id string, lock bool) (Agreement, error) {
	query := agreementSelect + " WHERE a.tenant_id = $1 AND a.id = $2"
	if lock {
		query += " FOR UPDATE OF a"
	}
	a, err := scanAgreement(q.QueryRow(ctx, query, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Agreement{}, ErrNotFound
	}
	if err != nil {
		return Agreement{}, err
	}
	if a.KRAs, err = listKRAs(ctx, q, tenantID, id); err != nil {
		return Agreement{}, err
	}
	if a.GAFs, err = listGAFs(ctx, q, tenantID, id); err != nil {
		return Agreement{}, err
	}
	return a, nil
}

func (s *Store) CreateAgreement(ctx context.Context, tenantID string, a Agreement) (string, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx, `
    INSERT INTO performance_agreements (tenant_id, employee_id, supervisor_id, approver_id, agreement_date, plan_start_date,
                                        plan_end_date, midyear_review_date, final_assessment_date, status,
                                        employee_comments, supervisor_comments, manager_comments, hr_comments)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
    RETURNING id
  `, tenantID, a.EmployeeID, a.SupervisorID, a.ApproverID, a.AgreementDate, a.PlanStartDate,
		a.PlanEndDate, a.MidyearReviewDate, a.FinalAssessmentDate, a.Status,
		a.EmployeeComments, a.SupervisorComments, a.ManagerComments, a.HRComments).Scan(&id)
	if err != nil {
		return "", err
	}
	// every catalogue factor gets a row, not applicable until chosen
	for _, f := range GAFCatalogue() {
		if _, err := tx.Exec(ctx, `
      INSERT INTO gafs (tenant_id, agreement_id, factor, is_applicable)
      VALUES ($1,$2,$3,false)
    `, tenantID, id, f.Code); err != nil {
			return "", err
		}
	}
	return id, tx.Commit(ctx)
}

func (s *Store) UpdateAgreement(ctx context.Context, tenantID string, a Agreement) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE performance_agreements
    SET supervisor_id = $3, approver_id = $4, agreement_date = $5, plan_start_date = $6, plan_end_date = $7,
        midyear_review_date = $8, final_assessment_date = $9, employee_comments = $10, supervisor_comments = $11,
        manager_comments = $12, hr_comments = $13, updated_at = now()
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, a.ID, a.SupervisorID, a.ApproverID, a.AgreementDate, a.PlanStartDate, a.PlanEndDate,
		a.MidyearReviewDate, a.FinalAssessmentDate, a.EmployeeComments, a.SupervisorComments,
		a.ManagerComments, a.HRComments)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAgreement(ctx context.Context, tenantID, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM performance_agreements WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionAgreement locks the agreement row, lets decide compute the
// change from the locked state and writes it before releasing the lock.
// It returns the agreement as it was before the change.
func (s *Store) TransitionAgreement(ctx context.Context, tenantID, id string, decide func(Agreement) (StatusChange, error)) (Agreement, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Agreement{}, err
	}
	defer tx.Rollback(ctx)

	before, err := getAgreement(ctx, tx, tenantID, id, true)
	if err != nil {
		return Agreement{}, err
	}
	change, err := decide(before)
	if err != nil {
		return Agreement{}, err
	}
	set, args, err := changeSet(change, agreementStampColumns, map[string]bool{
		"rejection_reason": true, "return_reason": true,
	}, map[string]bool{
		"employee_comments": true, "supervisor_comments": true, "manager_comments": true, "hr_comments": true,
	})
	if err != nil {
		return Agreement{}, err
	}
	if change.RejectedBy != "" {
		args = append(args, change.RejectedBy)
		set = append(set, fmt.Sprintf("rejected_by = $%d", len(args)+2))
	}
	if change.HRVerifier != "" {
		args = append(args, change.HRVerifier)
		set = append(set, fmt.Sprintf("hr_verifier_id = $%d", len(args)+2))
	}
	query := "UPDATE performance_agreements SET " + strings.Join(set, ", ") + " WHERE tenant_id = $1 AND id = $2"
	if _, err := tx.Exec(ctx, query, append([]any{tenantID, id}, args...)...); err != nil {
		return Agreement{}, err
	}
	return before, tx.Commit(ctx)
}

// changeSet renders the SET clause for a status change. Placeholders start
// at $3; $1 and $2 are the tenant and row ids.
func changeSet(change StatusChange, stamps, reasons, comments map[string]bool) ([]string, []any, error) {
	args := []any{string(change.To)}
	set := []string{"status = $3", "updated_at = now()"}
	for _, stamp := range change.Stamps {
		if !stamps[stamp] {
			return nil, nil, fmt.Errorf("unknown stamp column %q", stamp)
		}
		set = append(set, stamp+" = now()")
	}
	if change.ReasonField != "" {
		if !reasons[change.ReasonField] {
			return nil, nil, fmt.Errorf("unknown reason column %q", change.ReasonField)
		}
		args = append(args, change.Reason)
		set = append(set, fmt.Sprintf("%s = $%d", change.ReasonField, len(args)+2))
	}
	if change.CommentField != "" && change.Comment != "" {
		if !comments[change.CommentField] {
			return nil, nil, fmt.Errorf("unknown comment column %q", change.CommentField)
		}
		args = append(args, change.Comment)
		set = append(set, fmt.Sprintf("%s = $%d", change.CommentField, len(args)+2))
	}
	return set, args, nil
}

const kraSelect = `
    SELECT id, agreement_id, description, performance_objective, weighting, measurement, target_date, tools, barriers,
           evidence_examples, employee_rating, employee_comments, supervisor_rating, supervisor_comments, agreed_rating,
           evidence_key, evidence_filename, evidence_uploaded_at, sort_order
    FROM kras`

func scanKRA(row pgx.Row) (KRA, error) {
	var k KRA
	err := row.Scan(&k.ID, &k.AgreementID, &k.Description, &k.PerformanceObjective, &k.Weighting, &k.Measurement,
		&k.TargetDate, &k.Tools, &k.Barriers, &k.EvidenceExamples, &k.EmployeeRating, &k.EmployeeComments,
		&k.SupervisorRating, &k.SupervisorComments, &k.AgreedRating, &k.EvidenceKey, &k.EvidenceFilename,
		&k.EvidenceUploadedAt, &k.SortOrder)
	if err != nil {
		return KRA{}, err
	}
	k.WeightedScore = WeightedScore(k)
	return k, nil
}

func listKRAs(ctx context.Context, q querier, tenantID, agreementID string) ([]KRA, error) {
	rows, err := q.Query(ctx, kraSelect+" WHERE tenant_id = $1 AND agreement_id = $2 ORDER BY sort_order, created_at", tenantID, agreementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []KRA{}
	for rows.Next() {
		k, err := scanKRA(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *Store) GetKRA(ctx context.Context, tenantID, agreementID, kraID string) (KRA, error) {
	k, err := scanKRA(s.DB.QueryRow(ctx, kraSelect+" WHERE tenant_id = $1 AND agreement_id = $2 AND id = $3", tenantID, agreementID, kraID))
	if errors.Is(err, pgx.ErrNoRows) {
		return KRA{}, ErrNotFound
	}
	return k, err
}

func (s *Store) CreateKRA(ctx context.Context, tenantID string, k KRA) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO kras (tenant_id, agreement_id, description, performance_objective, weighting, measurement, target_date,
                      tools, barriers, evidence_examples, employee_rating, employee_comments, supervisor_rating,
                      supervisor_comments, agreed_rating, sort_order)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
    RETURNING id
  `, tenantID, k.AgreementID, k.Description, k.PerformanceObjective, k.Weighting, k.Measurement, k.TargetDate,
		k.Tools, k.Barriers, k.EvidenceExamples, k.EmployeeRating, k.EmployeeComments, k.SupervisorRating,
		k.SupervisorComments, k.AgreedRating, k.SortOrder).Scan(&id)
	return id, err
}

func (s *Store) UpdateKRA(ctx context.Context, tenantID string, k KRA) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE kras
    SET description = $4, performance_objective = $5, weighting = $6, measurement = $7, target_date = $8, tools = $9,
        barriers = $10, evidence_examples = $11, employee_rating = $12, employee_comments = $13, supervisor_rating = $14,
        supervisor_comments = $15, agreed_rating = $16, sort_order = $17, updated_at = now()
    WHERE tenant_id = $1 AND agreement_id = $2 AND id = $3
  `, tenantID, k.AgreementID, k.ID, k.Description, k.PerformanceObjective, k.Weighting, k.Measurement, k.TargetDate,
		k.Tools, k.Barriers, k.EvidenceExamples, k.EmployeeRating, k.EmployeeComments, k.SupervisorRating,
		k.SupervisorComments, k.AgreedRating, k.SortOrder)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteKRA(ctx context.Context, tenantID, agreementID, kraID string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM kras WHERE tenant_id = $1 AND agreement_id = $2 AND id = $3", tenantID, agreementID, kraID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetKRAEvidence(ctx context.Context, tenantID, kraID, key, filename string, at time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE kras SET evidence_key = $3, evidence_filename = $4, evidence_uploaded_at = $5, updated_at = now()
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, kraID, key, filename, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func listGAFs(ctx context.Context, q querier, tenantID, agreementID string) ([]GAF, error) {
	rows, err := q.Query(ctx, `
    SELECT id, agreement_id, factor, is_applicable, comments
    FROM gafs
    WHERE tenant_id = $1 AND agreement_id = $2
  `, tenantID, agreementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []GAF{}
	for rows.Next() {
		var g GAF
		if err := rows.Scan(&g.ID, &g.AgreementID, &g.Factor, &g.IsApplicable, &g.Comments); err != nil {
			return nil, err
		}
		if f, ok := LookupFactor(g.Factor); ok {
			g.Name = f.Name
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortGAFs(out)
	return out, nil
}

func (s *Store) UpsertGAFs(ctx context.Context, tenantID, agreementID string, gafs []GAF) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	for _, g := range gafs {
		if _, err := tx.Exec(ctx, `
      INSERT INTO gafs (tenant_id, agreement_id, factor, is_applicable, comments)
      VALUES ($1,$2,$3,$4,$5)
      ON CONFLICT (agreement_id, factor)
      DO UPDATE SET is_applicable = EXCLUDED.is_applicable, comments = EXCLUDED.comments
    `, tenantID, agreementID, g.Factor, g.IsApplicable, g.Comments); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// EvidenceAgreement finds the agreement an evidence object belongs to,
// through either a KRA or a review rating row.
func (s *Store) EvidenceAgreement(ctx context.Context, tenantID, key string) (string, error) {
	var agreementID string
	err := s.DB.QueryRow(ctx, `
    SELECT agreement_id FROM kras WHERE tenant_id = $1 AND evidence_key = $2
    UNION ALL
    SELECT r.agreement_id
    FROM review_ratings rr
    JOIN reviews r ON r.id = rr.review_id
    WHERE rr.tenant_id = $1 AND rr.evidence_key = $2
    LIMIT 1
  `, tenantID, key).Scan(&agreementID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return agreementID, err
}
