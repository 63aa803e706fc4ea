package performance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func (s *Store) SummaryData(ctx context.Context, tenantID, involving string) (SummaryData, error) {
	data := SummaryData{AgreementsByStatus: map[string]int{}}
	scope := ""
	args := []any{tenantID}
	if involving != "" {
		args = append(args, involving)
		scope = " AND (a.employee_id = $2 OR a.supervisor_id = $2 OR a.approver_id = $2)"
	}

	rows, err := s.DB.Query(ctx, "SELECT a.status, COUNT(1) FROM performance_agreements a WHERE a.tenant_id = $1"+scope+" GROUP BY a.status", args...)
	if err != nil {
		return data, err
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return data, err
		}
		data.AgreementsByStatus[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return data, err
	}

	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1), COUNT(1) FILTER (WHERE r.status = 'COMPLETED')
    FROM reviews r
    JOIN performance_agreements a ON a.id = r.agreement_id
    WHERE r.tenant_id = $1`+scope, args...).Scan(&data.ReviewsTotal, &data.ReviewsCompleted); err != nil {
		return data, err
	}

	ratingRows, err := s.DB.Query(ctx, `
    SELECT r.overall_rating
    FROM reviews r
    JOIN performance_agreements a ON a.id = r.agreement_id
    WHERE r.tenant_id = $1 AND r.status = 'COMPLETED' AND r.overall_rating IS NOT NULL`+scope, args...)
	if err != nil {
		return data, err
	}
	defer ratingRows.Close()
	for ratingRows.Next() {
		var rating decimal.Decimal
		if err := ratingRows.Scan(&rating); err != nil {
			return data, err
		}
		data.Ratings = append(data.Ratings, rating)
	}
	return data, ratingRows.Err()
}

// Who is waiting on an agreement or review in each status. HR verification
// is shared by all HR users and left out.
const (
	agreementOwnerExpr = `CASE
      WHEN a.status IN ('DRAFT', 'REJECTED', 'RETURNED_FOR_CORRECTION', 'PENDING_EMPLOYEE_RATING') THEN a.employee_id
      WHEN a.status IN ('PENDING_SUPERVISOR_RATING', 'PENDING_SUPERVISOR_SIGNOFF') THEN a.supervisor_id
      WHEN a.status = 'PENDING_MANAGER_APPROVAL' THEN a.approver_id
    END`
	reviewOwnerExpr = `CASE
      WHEN r.status IN ('DRAFT', 'PENDING_EMPLOYEE_RATING', 'RETURNED') THEN a.employee_id
      WHEN r.status IN ('PENDING_SUPERVISOR_RATING', 'PENDING_SUPERVISOR_SIGNOFF') THEN a.supervisor_id
      WHEN r.status = 'PENDING_MANAGER_APPROVAL' THEN a.approver_id
    END`
)

// PendingWork lists agreements and reviews waiting on a user. A blank
// userID covers everyone; until bounds the due date when set.
func (s *Store) PendingWork(ctx context.Context, tenantID, userID string, until *time.Time) ([]WorkItem, error) {
	query := `
    SELECT * FROM (
      SELECT 'performance_agreement' AS object_type, a.id, ` + agreementOwnerExpr + ` AS owner,
             'Performance agreement for ' || ` + fmt.Sprintf(displayName, "e") + ` AS title, a.status, a.agreement_date AS due
      FROM performance_agreements a
      JOIN users e ON e.id = a.employee_id
      WHERE a.tenant_id = $1 AND a.status NOT IN ('COMPLETED', 'PENDING_HR_VERIFICATION')
      UNION ALL
      SELECT 'review', r.id, ` + reviewOwnerExpr + `,
             CASE r.cycle WHEN 'midyear' THEN 'Mid-year review for ' ELSE 'Final review for ' END || ` + fmt.Sprintf(displayName, "e") + `,
             r.status, CASE r.cycle WHEN 'midyear' THEN a.midyear_review_date ELSE a.final_assessment_date END
      FROM reviews r
      JOIN performance_agreements a ON a.id = r.agreement_id
      JOIN users e ON e.id = a.employee_id
      WHERE r.tenant_id = $1 AND r.status NOT IN ('COMPLETED', 'REJECTED')
    ) work
    WHERE owner IS NOT NULL`
	args := []any{tenantID}
	if userID != "" {
		args = append(args, userID)
		query += fmt.Sprintf(" AND owner = $%d", len(args))
	}
	if until != nil {
		args = append(args, *until)
		query += fmt.Sprintf(" AND due <= $%d", len(args))
	}
	query += " ORDER BY due, object_type"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WorkItem{}
	for rows.Next() {
		var item WorkItem
		if err := rows.Scan(&item.ObjectType, &item.ObjectID, &item.UserID, &item.Title, &item.Status, &item.DueDate); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
