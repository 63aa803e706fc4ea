package plans

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"pmds/internal/domain/auth"
	"pmds/internal/domain/notifications"
	"pmds/internal/domain/users"
)

type Directory interface {
	Get(ctx context.Context, tenantID, userID string) (users.User, error)
}

type Notifier interface {
	NotifyMany(ctx context.Context, userIDs []string, msg notifications.Message)
}

type Service struct {
	store  StoreAPI
	users  Directory
	Notify Notifier
	now    func() time.Time
}

func NewService(store StoreAPI, directory Directory) *Service {
	return &Service{store: store, users: directory, now: time.Now}
}

// relation describes how a user stands towards an employee's plan.
type relation struct {
	hr         bool
	employee   bool
	supervisor bool
	manager    bool
}

func (r relation) canView() bool {
	return r.hr || r.employee || r.supervisor || r.manager
}

func (s *Service) relationTo(ctx context.Context, user auth.UserContext, employeeID string, supervisorID *string) (relation, error) {
	rel := relation{
		hr:         user.RoleName == auth.RoleHR,
		employee:   employeeID == user.UserID,
		supervisor: supervisorID != nil && *supervisorID == user.UserID,
	}
	if rel.hr || rel.employee || rel.supervisor {
		return rel, nil
	}
	emp, err := s.users.Get(ctx, user.TenantID, employeeID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return rel, ErrNotFound
		}
		return rel, err
	}
	rel.manager = deref(emp.ManagerID) == user.UserID
	return rel, nil
}

func (s *Service) ListImprovementPlans(ctx context.Context, user auth.UserContext, filter Filter, limit, offset int) ([]ImprovementPlan, int, error) {
	if filter.Status != "" && !slices.Contains(Statuses, filter.Status) {
		return nil, 0, ErrInvalidStatus
	}
	if user.RoleName != auth.RoleHR {
		filter.Involving = user.UserID
	}
	items, err := s.store.ListImprovementPlans(ctx, user.TenantID, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountImprovementPlans(ctx, user.TenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i].CanEdit = user.RoleName == auth.RoleHR || deref(items[i].SupervisorID) == user.UserID
	}
	return items, total, nil
}

func (s *Service) GetImprovementPlan(ctx context.Context, user auth.UserContext, id string) (ImprovementPlan, error) {
	p, _, err := s.loadPlan(ctx, user, id)
	return p, err
}

func (s *Service) loadPlan(ctx context.Context, user auth.UserContext, id string) (ImprovementPlan, relation, error) {
	p, err := s.store.GetImprovementPlan(ctx, user.TenantID, id)
	if err != nil {
		return ImprovementPlan{}, relation{}, err
	}
	rel, err := s.relationTo(ctx, user, p.EmployeeID, p.SupervisorID)
	if err != nil {
		return ImprovementPlan{}, relation{}, err
	}
	if !rel.canView() {
		return ImprovementPlan{}, relation{}, ErrNotFound
	}
	p.CanEdit = rel.hr || rel.supervisor
	return p, rel, nil
}

// CreateImprovementPlan is open to HR and the employee's manager. The
// supervisor defaults to the employee's manager.
func (s *Service) CreateImprovementPlan(ctx context.Context, user auth.UserContext, in PlanInput) (ImprovementPlan, error) {
	emp, err := s.users.Get(ctx, user.TenantID, in.EmployeeID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return ImprovementPlan{}, fmt.Errorf("employee: %w", ErrNotFound)
		}
		return ImprovementPlan{}, err
	}
	if user.RoleName != auth.RoleHR && deref(emp.ManagerID) != user.UserID {
		return ImprovementPlan{}, ErrForbidden
	}
	p := ImprovementPlan{EmployeeID: emp.ID, SupervisorID: emp.ManagerID, Status: StatusDraft}
	if in.SupervisorID != nil {
		p.SupervisorID = optionalID(*in.SupervisorID)
	}
	if p.SupervisorID == nil && user.UserID != emp.ID {
		p.SupervisorID = &user.UserID
	}
	id, err := s.store.CreateImprovementPlan(ctx, user.TenantID, p)
	if err != nil {
		return ImprovementPlan{}, err
	}
	created, _, err := s.loadPlan(ctx, user, id)
	if err != nil {
		return ImprovementPlan{}, err
	}
	s.notifyEmployee(ctx, user, created, "Improvement plan created", "An improvement plan has been created for you.")
	return created, nil
}

// UpdateImprovementPlan changes the supervisor or moves the status forward.
// Starting a plan records who approved it.
func (s *Service) UpdateImprovementPlan(ctx context.Context, user auth.UserContext, id string, in PlanInput) (ImprovementPlan, ImprovementPlan, error) {
	before, rel, err := s.loadPlan(ctx, user, id)
	if err != nil {
		return ImprovementPlan{}, ImprovementPlan{}, err
	}
	if !rel.hr && !rel.supervisor {
		return ImprovementPlan{}, ImprovementPlan{}, ErrForbidden
	}
	p := before
	if in.SupervisorID != nil {
		p.SupervisorID = optionalID(*in.SupervisorID)
	}
	statusChanged := false
	if next := normalizeStatus(in.Status); next != "" && next != p.Status {
		if !slices.Contains(Statuses, next) {
			return ImprovementPlan{}, ImprovementPlan{}, ErrInvalidStatus
		}
		if slices.Index(Statuses, next) < slices.Index(Statuses, p.Status) {
			return ImprovementPlan{}, ImprovementPlan{}, ErrStatusBackwards
		}
		if p.Status == StatusDraft && p.ApprovedBy == nil {
			now := s.now()
			p.ApprovedBy, p.ApprovalDate = &user.UserID, &now
		}
		p.Status, statusChanged = next, true
	}
	if err := s.store.UpdateImprovementPlan(ctx, user.TenantID, p); err != nil {
		return ImprovementPlan{}, ImprovementPlan{}, err
	}
	after, _, err := s.loadPlan(ctx, user, id)
	if err != nil {
		return ImprovementPlan{}, ImprovementPlan{}, err
	}
	if statusChanged {
		s.notifyEmployee(ctx, user, after, "Improvement plan updated",
			"Your improvement plan status has been updated to "+humanStatus(after.Status)+".")
	}
	return before, after, nil
}

func (s *Service) AddItem(ctx context.Context, user auth.UserContext, planID string, in ItemInput) (Item, error) {
	p, rel, err := s.loadPlan(ctx, user, planID)
	if err != nil {
		return Item{}, err
	}
	if !rel.hr && !rel.supervisor {
		return Item{}, ErrForbidden
	}
	item := Item{PlanID: p.ID}
	applyItemInput(&item, in)
	if item.AreaForDevelopment == "" {
		return Item{}, ErrAreaRequired
	}
	id, err := s.store.AddItem(ctx, user.TenantID, item)
	if err != nil {
		return Item{}, err
	}
	item.ID = id
	s.notifyEmployee(ctx, user, p, "Improvement plan updated", "A new item has been added to your improvement plan.")
	return item, nil
}

// UpdateItem lets HR and the supervisor edit an item. The employee may only
// report progress on their own plan.
func (s *Service) UpdateItem(ctx context.Context, user auth.UserContext, planID, itemID string, in ItemInput) (Item, Item, error) {
	p, rel, err := s.loadPlan(ctx, user, planID)
	if err != nil {
		return Item{}, Item{}, err
	}
	idx := slices.IndexFunc(p.Items, func(it Item) bool { return it.ID == itemID })
	if idx < 0 {
		return Item{}, Item{}, ErrNotFound
	}
	before := p.Items[idx]
	switch {
	case rel.hr || rel.supervisor:
	case rel.employee:
		if in.AreaForDevelopment != nil || in.Interventions != nil || in.Timeline != nil || in.Action != nil || in.TargetDate != nil {
			return Item{}, Item{}, fmt.Errorf("%w: employees may only update progress", ErrForbidden)
		}
	default:
		return Item{}, Item{}, ErrForbidden
	}
	after := before
	applyItemInput(&after, in)
	if after.AreaForDevelopment == "" {
		return Item{}, Item{}, ErrAreaRequired
	}
	if err := s.store.UpdateItem(ctx, user.TenantID, after); err != nil {
		return Item{}, Item{}, err
	}
	if after.Progress != before.Progress {
		s.notifyEmployee(ctx, user, p, "Improvement plan progress",
			fmt.Sprintf("Progress on %q was updated.", after.AreaForDevelopment))
	}
	return before, after, nil
}

// GetOrCreateCurrentPlan returns the employee's newest unfinished plan,
// opening a DRAFT one when there is none.
func (s *Service) GetOrCreateCurrentPlan(ctx context.Context, tenantID, employeeID, supervisorID string) (ImprovementPlan, bool, error) {
	p, err := s.store.CurrentImprovementPlan(ctx, tenantID, employeeID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return ImprovementPlan{}, false, err
	}
	p = ImprovementPlan{EmployeeID: employeeID, SupervisorID: optionalID(supervisorID), Status: StatusDraft, Items: []Item{}}
	id, err := s.store.CreateImprovementPlan(ctx, tenantID, p)
	if err != nil {
		return ImprovementPlan{}, false, err
	}
	p.ID = id
	return p, true, nil
}

// AddToImprovementPlan adds one item per development area raised by a
// completed review.
func (s *Service) AddToImprovementPlan(ctx context.Context, tenantID, employeeID, supervisorID, reviewID string, areas []string) error {
	if len(areas) == 0 {
		return nil
	}
	p, created, err := s.GetOrCreateCurrentPlan(ctx, tenantID, employeeID, supervisorID)
	if err != nil {
		return fmt.Errorf("current improvement plan: %w", err)
	}
	existing := map[string]bool{}
	for _, it := range p.Items {
		if it.SourceReviewID != nil && *it.SourceReviewID == reviewID {
			existing[it.AreaForDevelopment] = true
		}
	}
	added := 0
	for _, area := range areas {
		if existing[area] {
			continue
		}
		item := Item{
			PlanID:             p.ID,
			AreaForDevelopment: area,
			Action:             "Identified during performance review",
			SourceReviewID:     optionalID(reviewID),
		}
		if _, err := s.store.AddItem(ctx, tenantID, item); err != nil {
			return fmt.Errorf("add improvement item: %w", err)
		}
		added++
	}
	slog.Info("improvement plan items added", "planId", p.ID, "employeeId", employeeID, "items", added, "created", created)
	if added > 0 && s.Notify != nil {
		s.Notify.NotifyMany(ctx, []string{employeeID}, notifications.Message{
			TenantID:          tenantID,
			Type:              notifications.TypePlanUpdate,
			Title:             "Improvement plan updated",
			Message:           fmt.Sprintf("%d development area(s) from your review were added to your improvement plan.", added),
			RelatedObjectType: notifications.ObjectImprovementPlan,
			RelatedObjectID:   p.ID,
		})
	}
	return nil
}

func (s *Service) notifyEmployee(ctx context.Context, user auth.UserContext, p ImprovementPlan, title, message string) {
	if s.Notify == nil || p.EmployeeID == user.UserID {
		return
	}
	s.Notify.NotifyMany(ctx, []string{p.EmployeeID}, notifications.Message{
		TenantID:          user.TenantID,
		Type:              notifications.TypePlanUpdate,
		Title:             title,
		Message:           message,
		RelatedObjectType: notifications.ObjectImprovementPlan,
		RelatedObjectID:   p.ID,
	})
}

func applyItemInput(it *Item, in ItemInput) {
	setText(&it.AreaForDevelopment, in.AreaForDevelopment)
	setText(&it.Interventions, in.Interventions)
	setText(&it.Timeline, in.Timeline)
	setText(&it.Action, in.Action)
	setText(&it.Progress, in.Progress)
	if in.TargetDate != nil {
		it.TargetDate = in.TargetDate
	}
}

func normalizeStatus(value *string) string {
	if value == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(*value))
}

func humanStatus(status string) string {
	switch status {
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	default:
		return "Draft"
	}
}

func setText(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

func optionalID(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
