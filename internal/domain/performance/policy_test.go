package performance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pmds/internal/domain/auth"
	"pmds/internal/domain/workflow"
)

func TestActorsFor(t *testing.T) {
	parties := map[workflow.Party]string{
		workflow.PartyEmployee:   "emp",
		workflow.PartySupervisor: "sup",
		workflow.PartyApprover:   "",
	}

	actors := ActorsFor(auth.UserContext{UserID: "sup", RoleName: auth.RoleHR}, parties)
	assert.True(t, actors.Has(workflow.ActorSupervisor))
	assert.True(t, actors.Has(workflow.ActorHR))
	assert.False(t, actors.Has(workflow.ActorApprover))

	actors = ActorsFor(auth.UserContext{UserID: "", RoleName: auth.RoleEmployee}, parties)
	assert.False(t, actors.Has(workflow.ActorApprover), "blank ids never match")
	assert.False(t, CanView(actors))

	actors = ActorsFor(auth.UserContext{UserID: "admin", RoleName: auth.RoleSystemAdmin}, parties)
	assert.True(t, actors.Has(workflow.ActorAdmin))
	assert.False(t, CanView(actors))
}

func TestCanEditAgreement(t *testing.T) {
	emp := workflow.NewActors(workflow.ActorEmployee)
	sup := workflow.NewActors(workflow.ActorSupervisor)
	hrActors := workflow.NewActors(workflow.ActorHR)

	assert.True(t, CanEditAgreement(emp, StatusDraft))
	assert.True(t, CanEditAgreement(emp, StatusReturnedForCorrection))
	assert.False(t, CanEditAgreement(emp, StatusPendingSupervisorRating))
	assert.True(t, CanEditAgreement(sup, StatusPendingSupervisorRating))
	assert.True(t, CanEditAgreement(hrActors, StatusPendingHRVerification))
	assert.False(t, CanEditAgreement(hrActors, StatusCompleted))
}

func TestCanDeleteAgreement(t *testing.T) {
	assert.True(t, CanDeleteAgreement(auth.RoleHR, StatusDraft))
	assert.True(t, CanDeleteAgreement(auth.RoleHR, StatusRejected))
	assert.False(t, CanDeleteAgreement(auth.RoleHR, StatusPendingManagerApproval))
	assert.False(t, CanDeleteAgreement(auth.RoleEmployee, StatusDraft))
}

func TestReviewRights(t *testing.T) {
	emp := workflow.NewActors(workflow.ActorEmployee)
	sup := workflow.NewActors(workflow.ActorSupervisor)

	assert.Equal(t, RatingRights{Employee: true}, ReviewRatingRights(emp, StatusPendingEmployeeRating))
	assert.Equal(t, RatingRights{}, ReviewRatingRights(emp, StatusPendingSupervisorRating))
	assert.Equal(t, RatingRights{Supervisor: true}, ReviewRatingRights(sup, StatusPendingSupervisorSignoff))
	assert.False(t, ReviewRatingRights(workflow.NewActors(workflow.ActorHR), StatusCompleted).Any())

	assert.True(t, CanDeleteReview(emp, StatusDraft))
	assert.False(t, CanDeleteReview(emp, StatusPendingEmployeeRating))
	assert.True(t, CanDeleteReview(workflow.NewActors(workflow.ActorHR), StatusCompleted))
}

func TestCommentField(t *testing.T) {
	assert.Equal(t, "manager_comments", commentField(workflow.ActorApprover, false))
	assert.Equal(t, "approver_comments", commentField(workflow.ActorApprover, true))
	assert.Equal(t, "supervisor_comments", commentField(workflow.ActorSupervisor, true))
}
