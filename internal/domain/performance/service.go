package performance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pmds/internal/domain/audit"
	"pmds/internal/domain/auth"
	"pmds/internal/domain/notifications"
	"pmds/internal/domain/users"
	"pmds/internal/domain/workflow"
	"pmds/internal/platform/storage"
)

// Directory resolves the people named on agreements.
type Directory interface {
	Get(ctx context.Context, tenantID, userID string) (users.User, error)
	HRUserIDs(ctx context.Context, tenantID string) ([]string, error)
	DirectReports(ctx context.Context, tenantID, managerID string) ([]users.User, error)
}

type Notifier interface {
	NotifyMany(ctx context.Context, userIDs []string, msg notifications.Message)
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

type TransitionRecorder interface {
	RecordTransition(entity, action string, ok bool)
}

// ImprovementPlanner receives development areas from completed reviews.
type ImprovementPlanner interface {
	AddToImprovementPlan(ctx context.Context, tenantID, employeeID, supervisorID, reviewID string, areas []string) error
}

type Service struct {
	store    StoreAPI
	users    Directory
	Notify   Notifier
	Audit    Auditor
	Metrics  TransitionRecorder
	Plans    ImprovementPlanner
	Evidence storage.Store
	now      func() time.Time
}

func NewService(store StoreAPI, directory Directory) *Service {
	return &Service{store: store, users: directory, now: time.Now}
}

func (s *Service) ListAgreements(ctx context.Context, user auth.UserContext, filter AgreementFilter, limit, offset int) ([]Agreement, int, error) {
	if user.RoleName != auth.RoleHR {
		filter.Involving = user.UserID
	}
	items, err := s.store.ListAgreements(ctx, user.TenantID, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountAgreements(ctx, user.TenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		s.decorateAgreement(user, &items[i])
	}
	return items, total, nil
}

func (s *Service) GetAgreement(ctx context.Context, user auth.UserContext, id string) (Agreement, error) {
	a, _, err := s.loadAgreement(ctx, user, id)
	return a, err
}

// loadAgreement fetches an agreement the user may see along with the
// user's relations to it.
func (s *Service) loadAgreement(ctx context.Context, user auth.UserContext, id string) (Agreement, workflow.Actors, error) {
	a, err := s.store.GetAgreement(ctx, user.TenantID, id)
	if err != nil {
		return Agreement{}, nil, err
	}
	actors := ActorsFor(user, a.Parties())
	if !CanView(actors) {
		return Agreement{}, nil, ErrNotFound
	}
	s.decorateAgreement(user, &a)
	return a, actors, nil
}

func (s *Service) decorateAgreement(user auth.UserContext, a *Agreement) {
	actors := ActorsFor(user, a.Parties())
	a.Score = a.TotalScore()
	a.WeightTotal = TotalWeight(a.KRAs)
	a.CanEdit = CanEditAgreement(actors, a.Status)
	a.CanDelete = CanDeleteAgreement(user.RoleName, a.Status)
	a.Actions = AgreementMachine.Available(a.Status, actors)
	if a.Actions == nil {
		a.Actions = []workflow.Action{}
	}
}

// CreateAgreement opens a DRAFT agreement. The employee's profile must be
// complete; supervisor and approver default to the reporting line.
func (s *Service) CreateAgreement(ctx context.Context, user auth.UserContext, in AgreementInput) (Agreement, error) {
	employeeID := strings.TrimSpace(in.EmployeeID)
	if employeeID == "" {
		employeeID = user.UserID
	}
	employee, err := s.users.Get(ctx, user.TenantID, employeeID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return Agreement{}, fmt.Errorf("employee: %w", ErrNotFound)
		}
		return Agreement{}, err
	}
	if employeeID != user.UserID && user.RoleName != auth.RoleHR && deref(employee.ManagerID) != user.UserID {
		return Agreement{}, ErrForbidden
	}
	if !employee.ProfileComplete() {
		return Agreement{}, ErrIncompleteProfile
	}

	dates := DefaultPlanDates(s.now())
	a := Agreement{
		EmployeeID:          employeeID,
		EmployeeName:        employee.FullName(),
		SupervisorID:        employee.ManagerID,
		AgreementDate:       dateOnly(s.now()),
		PlanStartDate:       dates.PlanStart,
		PlanEndDate:         dates.PlanEnd,
		MidyearReviewDate:   dates.MidyearReview,
		FinalAssessmentDate: dates.FinalAssessment,
		Status:              AgreementMachine.Initial(),
	}
	applyAgreementInput(&a, in)
	if a.SupervisorID == nil {
		return Agreement{}, ErrNoSupervisor
	}
	if *a.SupervisorID == employeeID {
		return Agreement{}, fmt.Errorf("%w: employee cannot supervise their own agreement", ErrForbidden)
	}
	if in.ApproverID == nil {
		a.ApproverID = s.defaultApprover(ctx, user.TenantID, *a.SupervisorID)
	}
	if a.PlanEndDate.Before(a.PlanStartDate) {
		return Agreement{}, ErrInvalidDates
	}

	id, err := s.store.CreateAgreement(ctx, user.TenantID, a)
	if err != nil {
		return Agreement{}, err
	}
	created, err := s.store.GetAgreement(ctx, user.TenantID, id)
	if err != nil {
		return Agreement{}, err
	}
	s.decorateAgreement(user, &created)
	s.record(ctx, user, audit.ActionCreate, audit.EntityAgreement, created.ID, created.String(), nil, created)
	return created, nil
}

// defaultApprover is the supervisor's own manager, when there is one.
func (s *Service) defaultApprover(ctx context.Context, tenantID, supervisorID string) *string {
	sup, err := s.users.Get(ctx, tenantID, supervisorID)
	if err != nil {
		slog.Warn("approver lookup failed", "supervisorId", supervisorID, "err", err)
		return nil
	}
	return sup.ManagerID
}

func (s *Service) UpdateAgreement(ctx context.Context, user auth.UserContext, id string, in AgreementInput) (Agreement, error) {
	before, actors, err := s.loadAgreement(ctx, user, id)
	if err != nil {
		return Agreement{}, err
	}
	if !CanEditAgreement(actors, before.Status) {
		return Agreement{}, ErrNotEditable
	}
	a := before
	applyAgreementInput(&a, in)
	if a.PlanEndDate.Before(a.PlanStartDate) {
		return Agreement{}, ErrInvalidDates
	}
	if a.SupervisorID != nil && *a.SupervisorID == a.EmployeeID {
		return Agreement{}, fmt.Errorf("%w: employee cannot supervise their own agreement", ErrForbidden)
	}
	if err := s.store.UpdateAgreement(ctx, user.TenantID, a); err != nil {
		return Agreement{}, err
	}
	after, _, err := s.loadAgreement(ctx, user, id)
	if err != nil {
		return Agreement{}, err
	}
	s.record(ctx, user, audit.ActionUpdate, audit.EntityAgreement, id, after.String(), before, after)
	return after, nil
}

// DeleteAgreement is limited to HR on DRAFT or REJECTED agreements.
func (s *Service) DeleteAgreement(ctx context.Context, user auth.UserContext, id string) error {
	a, _, err := s.loadAgreement(ctx, user, id)
	if err != nil {
		return err
	}
	if user.RoleName != auth.RoleHR {
		return ErrForbidden
	}
	if !CanDeleteAgreement(user.RoleName, a.Status) {
		return ErrDeleteNotAllowed
	}
	if err := s.store.DeleteAgreement(ctx, user.TenantID, id); err != nil {
		return err
	}
	s.record(ctx, user, audit.ActionDelete, audit.EntityAgreement, id, a.String(), a, nil)
	return nil
}

// TransitionAgreement fires a workflow action under a row lock, then records
// audit and sends the notices the transition names.
func (s *Service) TransitionAgreement(ctx context.Context, user auth.UserContext, id string, req TransitionRequest) (TransitionResult[Agreement], error) {
	var outcome workflow.Outcome
	before, err := s.store.TransitionAgreement(ctx, user.TenantID, id, func(a Agreement) (StatusChange, error) {
		actors := ActorsFor(user, a.Parties())
		if !CanView(actors) {
			return StatusChange{}, ErrNotFound
		}
		out, err := AgreementMachine.Fire(a.Status, req.Action, actors, req.Reason)
		if err != nil {
			return StatusChange{}, err
		}
		if out.Action == ActionSubmit {
			if a.SupervisorID == nil {
				return StatusChange{}, ErrNoSupervisor
			}
			if len(a.KRAs) > 0 && !a.WeightsValid() {
				return StatusChange{}, fmt.Errorf("%w: total is %s", ErrWeightsInvalid, TotalWeight(a.KRAs).StringFixed(2))
			}
		}
		outcome = out
		change := changeFor(out, req.Comment, false)
		if out.Action == ActionReject {
			change.RejectedBy = user.UserID
		}
		if out.Action == ActionHRVerify {
			change.HRVerifier = user.UserID
		}
		return change, nil
	})
	s.recordTransition(audit.EntityAgreement, req.Action, err)
	if err != nil {
		return TransitionResult[Agreement]{}, err
	}

	after, err := s.store.GetAgreement(ctx, user.TenantID, id)
	if err != nil {
		return TransitionResult[Agreement]{}, err
	}
	s.decorateAgreement(user, &after)
	s.record(ctx, user, outcome.AuditAction, audit.EntityAgreement, id, after.String(), before, after)
	s.dispatch(ctx, user, outcome, after.Parties(), notifications.ObjectAgreement, id, after.String())
	return TransitionResult[Agreement]{Before: before, After: after, Outcome: outcome}, nil
}

// changeFor turns a fired outcome into the row update.
func changeFor(out workflow.Outcome, comment string, review bool) StatusChange {
	change := StatusChange{To: out.To, Stamps: out.Stamps}
	switch out.AuditAction {
	case audit.ActionReject:
		change.ReasonField, change.Reason = "rejection_reason", out.Reason
	case audit.ActionReturn:
		change.ReasonField, change.Reason = "return_reason", out.Reason
	}
	if comment = strings.TrimSpace(comment); comment != "" {
		change.CommentField, change.Comment = commentField(out.Actor, review), comment
	}
	return change
}

func (s *Service) recordTransition(entity string, action workflow.Action, err error) {
	if s.Metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.Metrics.RecordTransition(entity, string(action), true)
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, workflow.ErrActorNotAllowed),
		errors.Is(err, workflow.ErrReasonRequired), errors.Is(err, ErrWeightsInvalid), errors.Is(err, ErrNoSupervisor):
		s.Metrics.RecordTransition(entity, string(action), false)
	}
}

// dispatch resolves each notice's parties to users and sends it. The acting
// user is never notified about their own action.
func (s *Service) dispatch(ctx context.Context, user auth.UserContext, out workflow.Outcome, parties map[workflow.Party]string, objectType, objectID, subject string) {
	if s.Notify == nil {
		return
	}
	replacer := strings.NewReplacer("{subject}", subject, "{reason}", out.Reason)
	for _, n := range out.Notices {
		var recipients []string
		for _, party := range n.To {
			if party == workflow.PartyAllHR {
				ids, err := s.users.HRUserIDs(ctx, user.TenantID)
				if err != nil {
					slog.Warn("hr recipient lookup failed", "err", err)
					continue
				}
				recipients = append(recipients, ids...)
				continue
			}
			if id := parties[party]; id != "" {
				recipients = append(recipients, id)
			}
		}
		recipients = without(recipients, user.UserID)
		if len(recipients) == 0 {
			continue
		}
		s.Notify.NotifyMany(ctx, recipients, notifications.Message{
			TenantID:          user.TenantID,
			Type:              n.Type,
			Title:             n.Title,
			Message:           replacer.Replace(n.Message),
			RelatedObjectType: objectType,
			RelatedObjectID:   objectID,
		})
	}
}

func (s *Service) record(ctx context.Context, user auth.UserContext, action, entityType, entityID, repr string, before, after any) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, audit.Entry{
		TenantID:       user.TenantID,
		ActorID:        user.UserID,
		ImpersonatorID: user.ImpersonatorID,
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
		ObjectRepr:     repr,
		Before:         before,
		After:          after,
	}); err != nil {
		slog.Warn("audit record failed", "action", action, "entity", entityType, "err", err)
	}
}

func applyAgreementInput(a *Agreement, in AgreementInput) {
	if in.SupervisorID != nil {
		a.SupervisorID = optionalID(*in.SupervisorID)
	}
	if in.ApproverID != nil {
		a.ApproverID = optionalID(*in.ApproverID)
	}
	setDate(&a.AgreementDate, in.AgreementDate)
	setDate(&a.PlanStartDate, in.PlanStartDate)
	setDate(&a.PlanEndDate, in.PlanEndDate)
	setDate(&a.MidyearReviewDate, in.MidyearReviewDate)
	setDate(&a.FinalAssessmentDate, in.FinalAssessmentDate)
	setText(&a.EmployeeComments, in.EmployeeComments)
	setText(&a.SupervisorComments, in.SupervisorComments)
	setText(&a.ManagerComments, in.ManagerComments)
	setText(&a.HRComments, in.HRComments)
}

func setDate(dst *time.Time, value *time.Time) {
	if value != nil {
		*dst = *value
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

func without(ids []string, exclude string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
