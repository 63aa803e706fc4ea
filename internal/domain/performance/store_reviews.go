package performance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var reviewSelect = `
    SELECT r.id, r.agreement_id, r.cycle, r.status, r.review_date, r.overall_rating,
           r.employee_comments, r.supervisor_comments, r.approver_comments, r.return_reason, r.rejection_reason,
           r.employee_rating_at, r.supervisor_rating_at, r.supervisor_signoff_at, r.approved_at, r.completed_at,
           r.rejected_at, r.returned_at, r.created_by, r.created_at, r.updated_at,
           a.employee_id, ` + fmt.Sprintf(displayName, "e") + `, a.supervisor_id, a.approver_id, a.plan_start_date, a.plan_end_date
    FROM reviews r
    JOIN performance_agreements a ON a.id = r.agreement_id
    JOIN users e ON e.id = a.employee_id`

func scanReview(row pgx.Row) (Review, error) {
	var r Review
	err := row.Scan(&r.ID, &r.AgreementID, &r.Cycle, &r.Status, &r.ReviewDate, &r.OverallRating,
		&r.EmployeeComments, &r.SupervisorComments, &r.ApproverComments, &r.ReturnReason, &r.RejectionReason,
		&r.EmployeeRatingAt, &r.SupervisorRatingAt, &r.SupervisorSignoffAt, &r.ApprovedAt, &r.CompletedAt,
		&r.RejectedAt, &r.ReturnedAt, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt,
		&r.EmployeeID, &r.EmployeeName, &r.SupervisorID, &r.ApproverID, &r.PlanStartDate, &r.PlanEndDate)
	if err != nil {
		return Review{}, err
	}
	r.CanEdit = r.Editable()
	return r, nil
}

func reviewWhere(tenantID string, filter ReviewFilter) (string, []any) {
	where := " WHERE r.tenant_id = $1"
	args := []any{tenantID}
	if filter.Cycle != "" {
		args = append(args, filter.Cycle)
		where += fmt.Sprintf(" AND r.cycle = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND r.status = $%d", len(args))
	}
	if filter.AgreementID != "" {
		args = append(args, filter.AgreementID)
		where += fmt.Sprintf(" AND r.agreement_id = $%d", len(args))
	}
	if filter.Involving != "" {
		args = append(args, filter.Involving)
		where += fmt.Sprintf(" AND (a.employee_id = $%[1]d OR a.supervisor_id = $%[1]d OR a.approver_id = $%[1]d)", len(args))
	}
	return where, args
}

func (s *Store) ListReviews(ctx context.Context, tenantID string, filter ReviewFilter, limit, offset int) ([]Review, error) {
	where, args := reviewWhere(tenantID, filter)
	args = append(args, limit, offset)
	rows, err := s.DB.Query(ctx, reviewSelect+where+fmt.Sprintf(" ORDER BY r.review_date DESC, r.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Review{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CountReviews(ctx context.Context, tenantID string, filter ReviewFilter) (int, error) {
	where, args := reviewWhere(tenantID, filter)
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM reviews r JOIN performance_agreements a ON a.id = r.agreement_id"+where, args...).Scan(&total)
	return total, err
}

func (s *Store) GetReview(ctx context.Context, tenantID, id string) (Review, error) {
	return getReview(ctx, s.DB, tenantID, id, false)
}

func getReview(ctx context.Context, q querier, tenantID, id string, lock bool) (Review, error) {
	query := reviewSelect + " WHERE r.tenant_id = $1 AND r.id = $2"
	if lock {
		query += " FOR UPDATE OF r"
	}
	r, err := scanReview(q.QueryRow(ctx, query, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Review{}, ErrNotFound
	}
	if err != nil {
		return Review{}, err
	}
	if r.Ratings, err = listRatings(ctx, q, tenantID, id); err != nil {
		return Review{}, err
	}
	return r, nil
}

// CreateReview inserts the review and a rating row for every KRA and every
// applicable GAF of its agreement.
func (s *Store) CreateReview(ctx context.Context, tenantID string, r Review, stamps []string) (string, error) {
	cols := []string{"tenant_id", "agreement_id", "cycle", "status", "review_date", "employee_comments",
		"supervisor_comments", "approver_comments", "created_by"}
	vals := []string{"$1", "$2", "$3", "$4", "$5", "$6", "$7", "$8", "$9"}
	for _, stamp := range stamps {
		if !reviewStampColumns[stamp] {
			return "", fmt.Errorf("unknown stamp column %q", stamp)
		}
		cols = append(cols, stamp)
		vals = append(vals, "now()")
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx,
		"INSERT INTO reviews ("+strings.Join(cols, ", ")+") VALUES ("+strings.Join(vals, ",")+") RETURNING id",
		tenantID, r.AgreementID, r.Cycle, string(r.Status), r.ReviewDate, r.EmployeeComments,
		r.SupervisorComments, r.ApproverComments, r.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", ErrDuplicateReview
		}
		return "", err
	}
	if _, err := tx.Exec(ctx, `
    INSERT INTO review_ratings (tenant_id, review_id, kind, kra_id)
    SELECT $1, $2, 'kra', id FROM kras WHERE tenant_id = $1 AND agreement_id = $3
  `, tenantID, id, r.AgreementID); err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, `
    INSERT INTO review_ratings (tenant_id, review_id, kind, gaf_id)
    SELECT $1, $2, 'gaf', id FROM gafs WHERE tenant_id = $1 AND agreement_id = $3 AND is_applicable
  `, tenantID, id, r.AgreementID); err != nil {
		return "", err
	}
	return id, tx.Commit(ctx)
}

func (s *Store) UpdateReview(ctx context.Context, tenantID string, r Review) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE reviews
    SET review_date = $3, employee_comments = $4, supervisor_comments = $5, approver_comments = $6, updated_at = now()
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, r.ID, r.ReviewDate, r.EmployeeComments, r.SupervisorComments, r.ApproverComments)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteReview(ctx context.Context, tenantID, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM reviews WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionReview is TransitionAgreement for reviews.
func (s *Store) TransitionReview(ctx context.Context, tenantID, id string, decide func(Review) (StatusChange, error)) (Review, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Review{}, err
	}
	defer tx.Rollback(ctx)

	before, err := getReview(ctx, tx, tenantID, id, true)
	if err != nil {
		return Review{}, err
	}
	change, err := decide(before)
	if err != nil {
		return Review{}, err
	}
	set, args, err := changeSet(change, reviewStampColumns, map[string]bool{
		"rejection_reason": true, "return_reason": true,
	}, map[string]bool{
		"employee_comments": true, "supervisor_comments": true, "approver_comments": true,
	})
	if err != nil {
		return Review{}, err
	}
	if change.OverallRating != nil {
		args = append(args, *change.OverallRating)
		set = append(set, fmt.Sprintf("overall_rating = $%d", len(args)+2))
	}
	query := "UPDATE reviews SET " + strings.Join(set, ", ") + " WHERE tenant_id = $1 AND id = $2"
	if _, err := tx.Exec(ctx, query, append([]any{tenantID, id}, args...)...); err != nil {
		return Review{}, err
	}
	return before, tx.Commit(ctx)
}

const ratingSelect = `
    SELECT rr.id, rr.review_id, rr.kind, rr.kra_id, rr.gaf_id, COALESCE(k.description, g.factor, ''), k.weighting,
           rr.employee_rating, rr.employee_comments, rr.supervisor_rating, rr.supervisor_comments, rr.agreed_rating,
           rr.evidence_key, rr.evidence_filename, rr.evidence_uploaded_at
    FROM review_ratings rr
    LEFT JOIN kras k ON k.id = rr.kra_id
    LEFT JOIN gafs g ON g.id = rr.gaf_id`

func listRatings(ctx context.Context, q querier, tenantID, reviewID string) ([]ReviewRating, error) {
	rows, err := q.Query(ctx, ratingSelect+`
    WHERE rr.tenant_id = $1 AND rr.review_id = $2
    ORDER BY rr.kind DESC, k.sort_order, k.created_at
  `, tenantID, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ReviewRating{}
	var gafs []ReviewRating
	for rows.Next() {
		var r ReviewRating
		if err := rows.Scan(&r.ID, &r.ReviewID, &r.Kind, &r.KRAID, &r.GAFID, &r.Label, &r.Weighting,
			&r.EmployeeRating, &r.EmployeeComments, &r.SupervisorRating, &r.SupervisorComments, &r.AgreedRating,
			&r.EvidenceKey, &r.EvidenceFilename, &r.EvidenceUploadedAt); err != nil {
			return nil, err
		}
		if r.Kind == RatingKindGAF {
			gafs = append(gafs, r)
			continue
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return append(out, orderGAFRatings(gafs)...), nil
}

// orderGAFRatings swaps factor codes for names and keeps catalogue order.
func orderGAFRatings(ratings []ReviewRating) []ReviewRating {
	gafs := make([]GAF, len(ratings))
	byFactor := make(map[string]ReviewRating, len(ratings))
	for i, r := range ratings {
		gafs[i] = GAF{Factor: r.Label}
		byFactor[r.Label] = r
	}
	sortGAFs(gafs)
	out := make([]ReviewRating, 0, len(ratings))
	for _, g := range gafs {
		r := byFactor[g.Factor]
		if f, ok := LookupFactor(g.Factor); ok {
			r.Label = f.Name
		}
		out = append(out, r)
	}
	return out
}

func (s *Store) UpdateRatings(ctx context.Context, tenantID, reviewID string, ratings []ReviewRating) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	for _, r := range ratings {
		tag, err := tx.Exec(ctx, `
      UPDATE review_ratings
      SET employee_rating = $4, employee_comments = $5, supervisor_rating = $6, supervisor_comments = $7, agreed_rating = $8
      WHERE tenant_id = $1 AND review_id = $2 AND id = $3
    `, tenantID, reviewID, r.ID, r.EmployeeRating, r.EmployeeComments, r.SupervisorRating, r.SupervisorComments, r.AgreedRating)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrRatingNotInReview
		}
	}
	if _, err := tx.Exec(ctx, "UPDATE reviews SET updated_at = now() WHERE tenant_id = $1 AND id = $2", tenantID, reviewID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) SetRatingEvidence(ctx context.Context, tenantID, reviewID, ratingID, key, filename string, at time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE review_ratings SET evidence_key = $4, evidence_filename = $5, evidence_uploaded_at = $6
    WHERE tenant_id = $1 AND review_id = $2 AND id = $3
  `, tenantID, reviewID, ratingID, key, filename, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRatingNotInReview
	}
	return nil
}
