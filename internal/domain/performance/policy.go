package performance

import (
	"pmds/internal/domain/auth"
	"pmds/internal/domain/workflow"
)

// ActorsFor computes the relations user holds towards a record with the
// given parties.
func ActorsFor(user auth.UserContext, parties map[workflow.Party]string) workflow.Actors {
	actors := workflow.NewActors()
	if id := parties[workflow.PartyEmployee]; id != "" && id == user.UserID {
		actors.Add(workflow.ActorEmployee)
	}
	if id := parties[workflow.PartySupervisor]; id != "" && id == user.UserID {
		actors.Add(workflow.ActorSupervisor)
	}
	if id := parties[workflow.PartyApprover]; id != "" && id == user.UserID {
		actors.Add(workflow.ActorApprover)
	}
	switch user.RoleName {
	case auth.RoleHR:
		actors.Add(workflow.ActorHR)
	case auth.RoleSystemAdmin:
		actors.Add(workflow.ActorAdmin)
	}
	return actors
}

func CanView(actors workflow.Actors) bool {
	return actors.Has(workflow.ActorEmployee) || actors.Has(workflow.ActorSupervisor) ||
		actors.Has(workflow.ActorApprover) || actors.Has(workflow.ActorHR)
}

// AgreementOwner is the party expected to act on an agreement in status.
func AgreementOwner(status workflow.Status) workflow.Actor {
	switch status {
	case StatusDraft, StatusRejected, StatusReturnedForCorrection, StatusPendingEmployeeRating:
		return workflow.ActorEmployee
	case StatusPendingSupervisorRating, StatusPendingSupervisorSignoff:
		return workflow.ActorSupervisor
	case StatusPendingManagerApproval:
		return workflow.ActorApprover
	case StatusPendingHRVerification:
		return workflow.ActorHR
	default:
		return ""
	}
}

// CanEditAgreement lets the owning party, or HR, edit anything short of a
// completed agreement.
func CanEditAgreement(actors workflow.Actors, status workflow.Status) bool {
	if status == StatusCompleted {
		return false
	}
	if actors.Has(workflow.ActorHR) {
		return true
	}
	owner := AgreementOwner(status)
	return owner != "" && actors.Has(owner)
}

func CanDeleteAgreement(roleName string, status workflow.Status) bool {
	return roleName == auth.RoleHR && (status == StatusDraft || status == StatusRejected)
}

// ReviewOwner mirrors AgreementOwner for reviews.
func ReviewOwner(status workflow.Status) workflow.Actor {
	switch status {
	case StatusDraft, StatusPendingEmployeeRating, StatusReturned:
		return workflow.ActorEmployee
	case StatusPendingSupervisorRating, StatusPendingSupervisorSignoff:
		return workflow.ActorSupervisor
	case StatusPendingManagerApproval:
		return workflow.ActorApprover
	default:
		return ""
	}
}

func CanEditReview(actors workflow.Actors, status workflow.Status) bool {
	if status == StatusCompleted {
		return false
	}
	if actors.Has(workflow.ActorHR) {
		return true
	}
	owner := ReviewOwner(status)
	return owner != "" && actors.Has(owner)
}

func CanDeleteReview(actors workflow.Actors, status workflow.Status) bool {
	if actors.Has(workflow.ActorHR) {
		return true
	}
	return actors.Has(workflow.ActorEmployee) && status == StatusDraft
}

// RatingRights says which rating columns a requester may write in status.
type RatingRights struct {
	Employee   bool
	Supervisor bool
}

func (r RatingRights) Any() bool {
	return r.Employee || r.Supervisor
}

// ReviewRatingRights applies to review rating rows.
func ReviewRatingRights(actors workflow.Actors, status workflow.Status) RatingRights {
	if status == StatusCompleted {
		return RatingRights{}
	}
	if actors.Has(workflow.ActorHR) {
		return RatingRights{Employee: true, Supervisor: true}
	}
	return RatingRights{
		Employee:   actors.Has(workflow.ActorEmployee) && ReviewOwner(status) == workflow.ActorEmployee,
		Supervisor: actors.Has(workflow.ActorSupervisor) && ReviewOwner(status) == workflow.ActorSupervisor,
	}
}

// KRARatingRights applies to the rating columns carried on agreement KRAs.
func KRARatingRights(actors workflow.Actors, status workflow.Status) RatingRights {
	if status == StatusCompleted {
		return RatingRights{}
	}
	if actors.Has(workflow.ActorHR) {
		return RatingRights{Employee: true, Supervisor: true}
	}
	return RatingRights{
		Employee:   actors.Has(workflow.ActorEmployee) && AgreementOwner(status) == workflow.ActorEmployee,
		Supervisor: actors.Has(workflow.ActorSupervisor) && AgreementOwner(status) == workflow.ActorSupervisor,
	}
}

// commentField picks the comment column an acting party writes to.
func commentField(actor workflow.Actor, review bool) string {
	switch actor {
	case workflow.ActorEmployee:
		return "employee_comments"
	case workflow.ActorSupervisor:
		return "supervisor_comments"
	case workflow.ActorApprover:
		if review {
			return "approver_comments"
		}
		return "manager_comments"
	case workflow.ActorHR:
		if review {
			return "approver_comments"
		}
		return "hr_comments"
	default:
		return ""
	}
}
