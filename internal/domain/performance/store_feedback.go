package performance

import (
	"context"
	"fmt"
)

func (s *Store) CreateFeedback(ctx context.Context, tenantID string, f Feedback) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO feedback (tenant_id, employee_id, author_id, body, is_anonymous)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, tenantID, f.EmployeeID, f.AuthorID, f.Body, f.IsAnonymous).Scan(&id)
	return id, err
}

// ListFeedback returns author details unmasked; the service hides them.
func (s *Store) ListFeedback(ctx context.Context, tenantID string, filter FeedbackFilter, limit, offset int) ([]Feedback, error) {
	query := `
    SELECT f.id, f.employee_id, ` + fmt.Sprintf(displayName, "e") + `, f.author_id, ` + fmt.Sprintf(displayName, "au") + `,
           f.body, f.is_anonymous, f.submitted_at
    FROM feedback f
    JOIN users e ON e.id = f.employee_id
    JOIN users au ON au.id = f.author_id
    WHERE f.tenant_id = $1`
	args := []any{tenantID}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		query += fmt.Sprintf(" AND f.employee_id = $%d", len(args))
	}
	switch {
	case filter.About != "" && filter.By != "":
		args = append(args, filter.About, filter.By)
		query += fmt.Sprintf(" AND (f.employee_id = $%d OR f.author_id = $%d)", len(args)-1, len(args))
	case filter.About != "":
		args = append(args, filter.About)
		query += fmt.Sprintf(" AND f.employee_id = $%d", len(args))
	case filter.By != "":
		args = append(args, filter.By)
		query += fmt.Sprintf(" AND f.author_id = $%d", len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY f.submitted_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Feedback{}
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.EmployeeID, &f.EmployeeName, &f.AuthorID, &f.AuthorName, &f.Body, &f.IsAnonymous, &f.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
