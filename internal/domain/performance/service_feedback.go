package performance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pmds/internal/domain/audit"
	"pmds/internal/domain/auth"
	"pmds/internal/domain/notifications"
	"pmds/internal/domain/users"
)

func (s *Service) GiveFeedback(ctx context.Context, user auth.UserContext, in FeedbackInput) (Feedback, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return Feedback{}, fmt.Errorf("feedback text is required")
	}
	if in.EmployeeID == user.UserID {
		return Feedback{}, fmt.Errorf("%w: feedback about yourself", ErrForbidden)
	}
	target, err := s.users.Get(ctx, user.TenantID, in.EmployeeID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return Feedback{}, fmt.Errorf("employee: %w", ErrNotFound)
		}
		return Feedback{}, err
	}

	f := Feedback{
		EmployeeID:   target.ID,
		EmployeeName: target.FullName(),
		AuthorID:     &user.UserID,
		Body:         body,
		IsAnonymous:  in.IsAnonymous,
		SubmittedAt:  s.now(),
	}
	id, err := s.store.CreateFeedback(ctx, user.TenantID, f)
	if err != nil {
		return Feedback{}, err
	}
	f.ID = id
	s.record(ctx, user, audit.ActionCreate, audit.EntityFeedback, id, "Feedback for "+f.EmployeeName, nil, f)

	if s.Notify != nil {
		from := "A colleague"
		if !f.IsAnonymous {
			if author, err := s.users.Get(ctx, user.TenantID, user.UserID); err == nil {
				from = author.FullName()
			}
		}
		s.Notify.NotifyMany(ctx, []string{target.ID}, notifications.Message{
			TenantID:          user.TenantID,
			Type:              notifications.TypeFeedback,
			Title:             "New feedback received",
			Message:           from + " left you feedback.",
			RelatedObjectType: notifications.ObjectFeedback,
			RelatedObjectID:   id,
		})
	}
	return maskFeedback(user, f), nil
}

// ListFeedback shows HR everything. Other users see feedback about them and
// feedback they wrote.
func (s *Service) ListFeedback(ctx context.Context, user auth.UserContext, employeeID string, limit, offset int) ([]Feedback, error) {
	filter := FeedbackFilter{}
	if user.RoleName == auth.RoleHR {
		filter.EmployeeID = employeeID
	} else {
		filter.About, filter.By = user.UserID, user.UserID
		filter.EmployeeID = employeeID
	}
	items, err := s.store.ListFeedback(ctx, user.TenantID, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i] = maskFeedback(user, items[i])
	}
	return items, nil
}

// maskFeedback hides the author of anonymous feedback from everyone but HR,
// the author included.
func maskFeedback(user auth.UserContext, f Feedback) Feedback {
	if f.IsAnonymous && user.RoleName != auth.RoleHR {
		f.AuthorID = nil
		f.AuthorName = ""
	}
	return f
}
