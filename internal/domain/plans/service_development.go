package plans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pmds/internal/domain/auth"
	"pmds/internal/domain/notifications"
	"pmds/internal/domain/users"
)

func (s *Service) ListDevelopmentPlans(ctx context.Context, user auth.UserContext, filter Filter, limit, offset int) ([]DevelopmentPlan, int, error) {
	if user.RoleName != auth.RoleHR {
		filter.Involving = user.UserID
	}
	items, err := s.store.ListDevelopmentPlans(ctx, user.TenantID, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountDevelopmentPlans(ctx, user.TenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i].CanEdit = user.RoleName == auth.RoleHR || items[i].EmployeeID == user.UserID
	}
	return items, total, nil
}

func (s *Service) GetDevelopmentPlan(ctx context.Context, user auth.UserContext, id string) (DevelopmentPlan, error) {
	d, _, err := s.loadDevelopment(ctx, user, id)
	return d, err
}

func (s *Service) loadDevelopment(ctx context.Context, user auth.UserContext, id string) (DevelopmentPlan, relation, error) {
	d, err := s.store.GetDevelopmentPlan(ctx, user.TenantID, id)
	if err != nil {
		return DevelopmentPlan{}, relation{}, err
	}
	rel, err := s.relationTo(ctx, user, d.EmployeeID, nil)
	if err != nil {
		return DevelopmentPlan{}, relation{}, err
	}
	if !rel.canView() {
		return DevelopmentPlan{}, relation{}, ErrNotFound
	}
	d.CanEdit = rel.hr || rel.employee
	return d, rel, nil
}

// CreateDevelopmentPlan: employees plan for themselves, HR for anyone.
func (s *Service) CreateDevelopmentPlan(ctx context.Context, user auth.UserContext, in DevelopmentInput) (DevelopmentPlan, error) {
	employeeID := strings.TrimSpace(in.EmployeeID)
	if employeeID == "" {
		employeeID = user.UserID
	}
	if employeeID != user.UserID && user.RoleName != auth.RoleHR {
		return DevelopmentPlan{}, ErrForbidden
	}
	if _, err := s.users.Get(ctx, user.TenantID, employeeID); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return DevelopmentPlan{}, fmt.Errorf("employee: %w", ErrNotFound)
		}
		return DevelopmentPlan{}, err
	}
	d := DevelopmentPlan{EmployeeID: employeeID, StartDate: dateOnly(s.now())}
	if err := applyDevelopmentInput(&d, in); err != nil {
		return DevelopmentPlan{}, err
	}
	id, err := s.store.CreateDevelopmentPlan(ctx, user.TenantID, d)
	if err != nil {
		return DevelopmentPlan{}, err
	}
	created, _, err := s.loadDevelopment(ctx, user, id)
	if err != nil {
		return DevelopmentPlan{}, err
	}
	if s.Notify != nil && employeeID != user.UserID {
		s.Notify.NotifyMany(ctx, []string{employeeID}, notifications.Message{
			TenantID:          user.TenantID,
			Type:              notifications.TypePlanUpdate,
			Title:             "Development plan created",
			Message:           "A personal development plan has been created for you.",
			RelatedObjectType: notifications.ObjectDevelopmentPlan,
			RelatedObjectID:   id,
		})
	}
	return created, nil
}

func (s *Service) UpdateDevelopmentPlan(ctx context.Context, user auth.UserContext, id string, in DevelopmentInput) (DevelopmentPlan, DevelopmentPlan, error) {
	before, rel, err := s.loadDevelopment(ctx, user, id)
	if err != nil {
		return DevelopmentPlan{}, DevelopmentPlan{}, err
	}
	if !rel.hr && !rel.employee {
		return DevelopmentPlan{}, DevelopmentPlan{}, ErrForbidden
	}
	d := before
	if err := applyDevelopmentInput(&d, in); err != nil {
		return DevelopmentPlan{}, DevelopmentPlan{}, err
	}
	if err := s.store.UpdateDevelopmentPlan(ctx, user.TenantID, d); err != nil {
		return DevelopmentPlan{}, DevelopmentPlan{}, err
	}
	after, _, err := s.loadDevelopment(ctx, user, id)
	if err != nil {
		return DevelopmentPlan{}, DevelopmentPlan{}, err
	}
	return before, after, nil
}

func (s *Service) DeleteDevelopmentPlan(ctx context.Context, user auth.UserContext, id string) (DevelopmentPlan, error) {
	d, rel, err := s.loadDevelopment(ctx, user, id)
	if err != nil {
		return DevelopmentPlan{}, err
	}
	if !rel.hr && !rel.employee {
		return DevelopmentPlan{}, ErrForbidden
	}
	return d, s.store.DeleteDevelopmentPlan(ctx, user.TenantID, id)
}

func applyDevelopmentInput(d *DevelopmentPlan, in DevelopmentInput) error {
	setText(&d.CompetencyGap, in.CompetencyGap)
	setText(&d.DevelopmentActivities, in.DevelopmentActivities)
	setText(&d.Timeline, in.Timeline)
	setText(&d.ExpectedOutcome, in.ExpectedOutcome)
	if in.Progress != nil {
		if *in.Progress < 0 || *in.Progress > 100 {
			return ErrInvalidProgress
		}
		d.Progress = *in.Progress
	}
	if in.StartDate != nil {
		d.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		d.EndDate = *in.EndDate
	}
	if d.EndDate.IsZero() {
		d.EndDate = d.StartDate.AddDate(1, 0, 0)
	}
	if d.CompetencyGap == "" {
		return ErrGapRequired
	}
	if d.StartDate.After(d.EndDate) {
		return ErrInvalidDates
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
