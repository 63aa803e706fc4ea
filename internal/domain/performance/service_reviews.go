package performance

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"pmds/internal/domain/audit"
	"pmds/internal/domain/auth"
	"pmds/internal/domain/notifications"
	"pmds/internal/domain/workflow"
	"pmds/internal/platform/storage"
)

func (s *Service) ListReviews(ctx context.Context, user auth.UserContext, filter ReviewFilter, limit, offset int) ([]Review, int, error) {
	if filter.Cycle != "" && !slices.Contains(Cycles, filter.Cycle) {
		return nil, 0, ErrInvalidCycle
	}
	if user.RoleName != auth.RoleHR {
		filter.Involving = user.UserID
	}
	items, err := s.store.ListReviews(ctx, user.TenantID, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountReviews(ctx, user.TenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		s.decorateReview(user, &items[i])
	}
	return items, total, nil
}

func (s *Service) GetReview(ctx context.Context, user auth.UserContext, id string) (Review, error) {
	r, _, err := s.loadReview(ctx, user, id)
	return r, err
}

func (s *Service) loadReview(ctx context.Context, user auth.UserContext, id string) (Review, workflow.Actors, error) {
	r, err := s.store.GetReview(ctx, user.TenantID, id)
	if err != nil {
		return Review{}, nil, err
	}
	actors := ActorsFor(user, r.Parties())
	if !CanView(actors) {
		return Review{}, nil, ErrNotFound
	}
	s.decorateReview(user, &r)
	return r, actors, nil
}

func (s *Service) decorateReview(user auth.UserContext, r *Review) {
	actors := ActorsFor(user, r.Parties())
	r.CanEdit = r.Editable() && CanEditReview(actors, r.Status)
	r.Actions = ReviewMachine.Available(r.Status, actors)
	if r.Actions == nil {
		r.Actions = []workflow.Action{}
	}
}

// CreateReview opens a review cycle on an agreement. The starting status
// depends on who opens it: a supervisor hands it to the employee, an
// employee's self rating goes to the supervisor, HR starts in DRAFT.
func (s *Service) CreateReview(ctx context.Context, user auth.UserContext, in ReviewInput) (Review, error) {
	if !slices.Contains(Cycles, in.Cycle) {
		return Review{}, ErrInvalidCycle
	}
	a, actors, err := s.loadAgreement(ctx, user, in.AgreementID)
	if err != nil {
		return Review{}, err
	}

	r := Review{AgreementID: a.ID, Cycle: in.Cycle, ReviewDate: dateOnly(s.now()), CreatedBy: &user.UserID}
	var stamps []string
	var notice workflow.Notice
	switch {
	case actors.Has(workflow.ActorSupervisor):
		r.Status = StatusPendingEmployeeRating
		notice = workflow.Notice{
			To:      []workflow.Party{workflow.PartyEmployee},
			Type:    notifications.TypeReviewDue,
			Title:   "Review ready for your rating",
			Message: "{subject} has been opened. Please complete your self rating.",
		}
	case actors.Has(workflow.ActorEmployee):
		r.Status = StatusPendingSupervisorRating
		stamps = []string{StampEmployeeRating}
		notice = workflow.Notice{
			To:      []workflow.Party{workflow.PartySupervisor},
			Type:    notifications.TypeApproval,
			Title:   "Review submitted",
			Message: "{subject} has been submitted for your rating.",
		}
	case actors.Has(workflow.ActorHR):
		r.Status = ReviewMachine.Initial()
	default:
		return Review{}, ErrForbidden
	}
	applyReviewInput(&r, in)

	id, err := s.store.CreateReview(ctx, user.TenantID, r, stamps)
	if err != nil {
		return Review{}, err
	}
	created, _, err := s.loadReview(ctx, user, id)
	if err != nil {
		return Review{}, err
	}
	s.record(ctx, user, audit.ActionCreate, audit.EntityReview, id, created.String(), nil, created)
	if notice.Type != "" {
		s.dispatch(ctx, user, workflow.Outcome{Notices: []workflow.Notice{notice}}, created.Parties(),
			notifications.ObjectReview, id, created.String())
	}
	return created, nil
}

func (s *Service) UpdateReview(ctx context.Context, user auth.UserContext, id string, in ReviewInput) (Review, error) {
	before, actors, err := s.loadReview(ctx, user, id)
	if err != nil {
		return Review{}, err
	}
	if !CanEditReview(actors, before.Status) {
		return Review{}, ErrNotEditable
	}
	r := before
	applyReviewInput(&r, in)
	if err := s.store.UpdateReview(ctx, user.TenantID, r); err != nil {
		return Review{}, err
	}
	after, _, err := s.loadReview(ctx, user, id)
	if err != nil {
		return Review{}, err
	}
	s.record(ctx, user, audit.ActionUpdate, audit.EntityReview, id, after.String(), before, after)
	return after, nil
}

// DeleteReview: HR at any time, the employee only while DRAFT.
func (s *Service) DeleteReview(ctx context.Context, user auth.UserContext, id string) error {
	r, actors, err := s.loadReview(ctx, user, id)
	if err != nil {
		return err
	}
	if !actors.Has(workflow.ActorHR) && !actors.Has(workflow.ActorEmployee) {
		return ErrForbidden
	}
	if !CanDeleteReview(actors, r.Status) {
		return ErrDeleteNotAllowed
	}
	if err := s.store.DeleteReview(ctx, user.TenantID, id); err != nil {
		return err
	}
	for _, rating := range r.Ratings {
		s.removeEvidence(ctx, rating.EvidenceKey)
	}
	s.record(ctx, user, audit.ActionDelete, audit.EntityReview, id, r.String(), r, nil)
	return nil
}

// UpdateRatings writes rating rows. Employee columns need the employee
// right and supervisor or agreed columns the supervisor right.
func (s *Service) UpdateRatings(ctx context.Context, user auth.UserContext, reviewID string, in []RatingInput) (Review, error) {
	before, actors, err := s.loadReview(ctx, user, reviewID)
	if err != nil {
		return Review{}, err
	}
	rights := ReviewRatingRights(actors, before.Status)
	if !rights.Any() {
		return Review{}, ErrNotEditable
	}
	byID := make(map[string]ReviewRating, len(before.Ratings))
	for _, r := range before.Ratings {
		byID[r.ID] = r
	}
	updated := make([]ReviewRating, 0, len(in))
	for _, item := range in {
		row, ok := byID[item.ID]
		if !ok {
			return Review{}, fmt.Errorf("%w: %s", ErrRatingNotInReview, item.ID)
		}
		if item.EmployeeRating != nil || item.EmployeeComments != nil {
			if !rights.Employee {
				return Review{}, fmt.Errorf("%w: employee rating", ErrForbidden)
			}
			row.EmployeeRating = roundRating(item.EmployeeRating, row.EmployeeRating)
			setText(&row.EmployeeComments, item.EmployeeComments)
		}
		if item.SupervisorRating != nil || item.SupervisorComments != nil || item.AgreedRating != nil {
			if !rights.Supervisor {
				return Review{}, fmt.Errorf("%w: supervisor rating", ErrForbidden)
			}
			row.SupervisorRating = roundRating(item.SupervisorRating, row.SupervisorRating)
			row.AgreedRating = roundRating(item.AgreedRating, row.AgreedRating)
			setText(&row.SupervisorComments, item.SupervisorComments)
		}
		updated = append(updated, row)
	}
	if err := s.store.UpdateRatings(ctx, user.TenantID, reviewID, updated); err != nil {
		return Review{}, err
	}
	after, _, err := s.loadReview(ctx, user, reviewID)
	if err != nil {
		return Review{}, err
	}
	s.record(ctx, user, audit.ActionUpdate, audit.EntityReview, reviewID, after.String(), before.Ratings, after.Ratings)
	return after, nil
}

func (s *Service) AttachRatingEvidence(ctx context.Context, user auth.UserContext, reviewID, ratingID string, up Upload) (Review, error) {
	before, actors, err := s.loadReview(ctx, user, reviewID)
	if err != nil {
		return Review{}, err
	}
	if !ReviewRatingRights(actors, before.Status).Any() {
		return Review{}, ErrEvidenceNotAllowed
	}
	var previous string
	found := false
	for _, r := range before.Ratings {
		if r.ID == ratingID {
			previous, found = r.EvidenceKey, true
		}
	}
	if !found {
		return Review{}, ErrRatingNotInReview
	}
	key, err := s.putEvidence(ctx, user.TenantID, storage.KindReviewRating, ratingID, up)
	if err != nil {
		return Review{}, err
	}
	if err := s.store.SetRatingEvidence(ctx, user.TenantID, reviewID, ratingID, key, up.Filename, s.now()); err != nil {
		s.removeEvidence(ctx, key)
		return Review{}, err
	}
	s.removeEvidence(ctx, previous)
	after, _, err := s.loadReview(ctx, user, reviewID)
	if err != nil {
		return Review{}, err
	}
	s.record(ctx, user, audit.ActionUpdate, audit.EntityReview, reviewID, after.String(), before.Ratings, after.Ratings)
	return after, nil
}

// TransitionReview fires a review action. Sign-off recomputes the overall
// rating; manager approval sends low ratings to the improvement plan.
func (s *Service) TransitionReview(ctx context.Context, user auth.UserContext, id string, req TransitionRequest) (TransitionResult[Review], error) {
	var outcome workflow.Outcome
	before, err := s.store.TransitionReview(ctx, user.TenantID, id, func(r Review) (StatusChange, error) {
		actors := ActorsFor(user, r.Parties())
		if !CanView(actors) {
			return StatusChange{}, ErrNotFound
		}
		out, err := ReviewMachine.Fire(r.Status, req.Action, actors, req.Reason)
		if err != nil {
			return StatusChange{}, err
		}
		outcome = out
		change := changeFor(out, req.Comment, true)
		if out.Action == ActionSupervisorSignoff {
			change.OverallRating = OverallRating(r.Ratings)
		}
		return change, nil
	})
	s.recordTransition(audit.EntityReview, req.Action, err)
	if err != nil {
		return TransitionResult[Review]{}, err
	}

	after, _, err := s.loadReview(ctx, user, id)
	if err != nil {
		return TransitionResult[Review]{}, err
	}
	s.record(ctx, user, outcome.AuditAction, audit.EntityReview, id, after.String(), before, after)
	s.dispatch(ctx, user, outcome, after.Parties(), notifications.ObjectReview, id, after.String())
	if outcome.Action == ActionManagerApprove {
		s.feedImprovementPlan(ctx, user.TenantID, after)
	}
	return TransitionResult[Review]{Before: before, After: after, Outcome: outcome}, nil
}

func (s *Service) feedImprovementPlan(ctx context.Context, tenantID string, r Review) {
	if s.Plans == nil {
		return
	}
	areas := lowRatings(r.Ratings)
	if len(areas) == 0 {
		return
	}
	if err := s.Plans.AddToImprovementPlan(ctx, tenantID, r.EmployeeID, deref(r.SupervisorID), r.ID, areas); err != nil {
		slog.Warn("improvement plan update failed", "reviewId", r.ID, "err", err)
	}
}

func applyReviewInput(r *Review, in ReviewInput) {
	if in.ReviewDate != nil {
		r.ReviewDate = *in.ReviewDate
	}
	setText(&r.EmployeeComments, in.EmployeeComments)
	setText(&r.SupervisorComments, in.SupervisorComments)
	setText(&r.ApproverComments, in.ApproverComments)
}

// ParseCycle accepts the cycle query value in any case.
func ParseCycle(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || slices.Contains(Cycles, value) {
		return value, nil
	}
	return "", ErrInvalidCycle
}
