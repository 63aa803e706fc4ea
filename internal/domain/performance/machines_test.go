package performance

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmds/internal/domain/audit"
	"pmds/internal/domain/notifications"
	"pmds/internal/domain/workflow"
)

func TestAgreementHappyPath(t *testing.T) {
	steps := []struct {
		action workflow.Action
		actor  workflow.Actor
		want   workflow.Status
	}{
		{ActionSubmit, employee, StatusPendingSupervisorRating},
		{ActionRequestEmployeeRating, supervisor, StatusPendingEmployeeRating},
		{ActionSubmitEmployeeRating, employee, StatusPendingSupervisorRating},
		{ActionSupervisorRate, supervisor, StatusPendingSupervisorSignoff},
		{ActionSupervisorSignoff, supervisor, StatusPendingManagerApproval},
		{ActionManagerApprove, approver, StatusPendingHRVerification},
		{ActionHRVerify, hr, StatusCompleted},
	}

	status := AgreementMachine.Initial()
	for _, step := range steps {
		out, err := AgreementMachine.Fire(status, step.action, workflow.NewActors(step.actor), "")
		require.NoError(t, err, "%s from %s", step.action, status)
		assert.Equal(t, step.want, out.To)
		status = out.To
	}
	assert.True(t, AgreementMachine.Terminal(StatusCompleted))
}

func TestAgreementVerifyStampsCompletion(t *testing.T) {
	out, err := AgreementMachine.Fire(StatusPendingHRVerification, ActionHRVerify, workflow.NewActors(hr), "")
	require.NoError(t, err)
	assert.Equal(t, []string{StampHRVerified, StampCompleted}, out.Stamps)
	assert.Equal(t, audit.ActionVerify, out.AuditAction)
}

func TestAgreementRejectDependsOnStage(t *testing.T) {
	out, err := AgreementMachine.Fire(StatusPendingSupervisorSignoff, ActionReject, workflow.NewActors(supervisor), "weights wrong")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, out.To)
	require.Len(t, out.Notices, 1)
	assert.Equal(t, notifications.TypeRejection, out.Notices[0].Type)

	out, err = AgreementMachine.Fire(StatusPendingManagerApproval, ActionReject, workflow.NewActors(approver), "needs work")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingSupervisorSignoff, out.To)

	_, err = AgreementMachine.Fire(StatusPendingManagerApproval, ActionReject, workflow.NewActors(approver), "")
	assert.ErrorIs(t, err, workflow.ErrReasonRequired)
}

func TestAgreementResubmitAfterRejection(t *testing.T) {
	out, err := AgreementMachine.Fire(StatusRejected, ActionSubmit, workflow.NewActors(employee), "")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingSupervisorRating, out.To)
}

func TestAgreementActorChecks(t *testing.T) {
	_, err := AgreementMachine.Fire(StatusPendingHRVerification, ActionHRVerify, workflow.NewActors(approver), "")
	assert.ErrorIs(t, err, workflow.ErrActorNotAllowed)

	_, err = AgreementMachine.Fire(StatusCompleted, ActionSubmit, workflow.NewActors(employee), "")
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	// a supervisor who is also HR approves as HR
	out, err := AgreementMachine.Fire(StatusPendingManagerApproval, ActionManagerApprove, workflow.NewActors(supervisor, hr), "")
	require.NoError(t, err)
	assert.Equal(t, hr, out.Actor)
}

func TestReviewHappyPath(t *testing.T) {
	steps := []struct {
		action workflow.Action
		actor  workflow.Actor
		want   workflow.Status
	}{
		{ActionStart, hr, StatusPendingEmployeeRating},
		{ActionSubmitEmployeeRating, employee, StatusPendingSupervisorRating},
		{ActionSubmitSupervisorRating, supervisor, StatusPendingSupervisorSignoff},
		{ActionSupervisorSignoff, supervisor, StatusPendingManagerApproval},
		{ActionManagerApprove, approver, StatusCompleted},
	}

	status := ReviewMachine.Initial()
	for _, step := range steps {
		out, err := ReviewMachine.Fire(status, step.action, workflow.NewActors(step.actor), "")
		require.NoError(t, err, "%s from %s", step.action, status)
		assert.Equal(t, step.want, out.To)
		status = out.To
	}
}

func TestReviewReturns(t *testing.T) {
	out, err := ReviewMachine.Fire(StatusPendingSupervisorSignoff, ActionReturnToEmployee, workflow.NewActors(supervisor), "add evidence")
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, out.To)
	assert.Equal(t, "add evidence", out.Reason)

	out, err = ReviewMachine.Fire(StatusReturned, ActionSubmitEmployeeRating, workflow.NewActors(employee), "")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingSupervisorRating, out.To)

	out, err = ReviewMachine.Fire(StatusPendingManagerApproval, ActionReturnToSupervisor, workflow.NewActors(approver), "recheck")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingSupervisorSignoff, out.To)
}

func TestReviewAvailableActions(t *testing.T) {
	actions := ReviewMachine.Available(StatusPendingSupervisorRating, workflow.NewActors(supervisor))
	assert.ElementsMatch(t, []workflow.Action{ActionSubmitSupervisorRating, ActionReturnToEmployee}, actions)
	assert.Empty(t, ReviewMachine.Available(StatusPendingSupervisorRating, workflow.NewActors(employee)))
}

type transitionRow struct {
	action workflow.Action
	from   []workflow.Status
	to     workflow.Status
	actors []workflow.Actor
	reason bool
}

var agreementRows = []transitionRow{
	{ActionSubmit, []workflow.Status{StatusDraft, StatusReturnedForCorrection, StatusRejected}, StatusPendingSupervisorRating, []workflow.Actor{employee, hr}, false},
	{ActionRequestEmployeeRating, []workflow.Status{StatusPendingSupervisorRating}, StatusPendingEmployeeRating, []workflow.Actor{supervisor}, false},
	{ActionSubmitEmployeeRating, []workflow.Status{StatusPendingEmployeeRating}, StatusPendingSupervisorRating, []workflow.Actor{employee}, false},
	{ActionSupervisorRate, []workflow.Status{StatusPendingSupervisorRating}, StatusPendingSupervisorSignoff, []workflow.Actor{supervisor}, false},
	{ActionSupervisorSignoff, []workflow.Status{StatusPendingSupervisorSignoff, StatusPendingSupervisorRating}, StatusPendingManagerApproval, []workflow.Actor{supervisor}, false},
	{ActionManagerApprove, []workflow.Status{StatusPendingManagerApproval}, StatusPendingHRVerification, []workflow.Actor{approver, hr}, false},
	{ActionHRVerify, []workflow.Status{StatusPendingHRVerification}, StatusCompleted, []workflow.Actor{hr}, false},
	{ActionReturn, []workflow.Status{StatusPendingHRVerification, StatusPendingManagerApproval}, StatusReturnedForCorrection, []workflow.Actor{hr, approver}, true},
	{ActionReject, []workflow.Status{StatusPendingSupervisorRating, StatusPendingSupervisorSignoff}, StatusRejected, []workflow.Actor{supervisor, hr}, true},
	{ActionReject, []workflow.Status{StatusPendingManagerApproval}, StatusPendingSupervisorSignoff, []workflow.Actor{approver, hr}, true},
}

var reviewRows = []transitionRow{
	{ActionStart, []workflow.Status{StatusDraft}, StatusPendingEmployeeRating, []workflow.Actor{employee, supervisor, hr}, false},
	{ActionSubmitEmployeeRating, []workflow.Status{StatusPendingEmployeeRating, StatusReturned, StatusDraft}, StatusPendingSupervisorRating, []workflow.Actor{employee}, false},
	{ActionSubmitSupervisorRating, []workflow.Status{StatusPendingSupervisorRating}, StatusPendingSupervisorSignoff, []workflow.Actor{supervisor}, false},
	{ActionSupervisorSignoff, []workflow.Status{StatusPendingSupervisorSignoff}, StatusPendingManagerApproval, []workflow.Actor{supervisor}, false},
	{ActionManagerApprove, []workflow.Status{StatusPendingManagerApproval}, StatusCompleted, []workflow.Actor{approver, hr}, false},
	{ActionReturnToEmployee, []workflow.Status{StatusPendingSupervisorRating, StatusPendingSupervisorSignoff}, StatusReturned, []workflow.Actor{supervisor}, true},
	{ActionReturnToSupervisor, []workflow.Status{StatusPendingManagerApproval}, StatusPendingSupervisorSignoff, []workflow.Actor{approver, hr}, true},
	{ActionReject, []workflow.Status{StatusPendingManagerApproval}, StatusRejected, []workflow.Actor{approver, hr}, true},
}

var everyActor = []workflow.Actor{employee, supervisor, approver, hr, workflow.ActorAdmin}

func TestMachinesFireOnlyListedTransitions(t *testing.T) {
	machines := []struct {
		machine *workflow.Machine
		rows    []transitionRow
	}{
		{AgreementMachine, agreementRows},
		{ReviewMachine, reviewRows},
	}

	for _, m := range machines {
		t.Run(m.machine.Name(), func(t *testing.T) {
			var actions []workflow.Action
			for _, row := range m.rows {
				if !slices.Contains(actions, row.action) {
					actions = append(actions, row.action)
				}
			}

			for _, status := range m.machine.Statuses() {
				for _, action := range actions {
					var listed *transitionRow
					for i := range m.rows {
						if m.rows[i].action == action && slices.Contains(m.rows[i].from, status) {
							listed = &m.rows[i]
						}
					}
					for _, actor := range everyActor {
						out, err := m.machine.Fire(status, action, workflow.NewActors(actor), "needs changes")
						switch {
						case listed == nil:
							assert.ErrorIs(t, err, workflow.ErrInvalidTransition, "%s by %s from %s", action, actor, status)
						case !slices.Contains(listed.actors, actor):
							assert.ErrorIs(t, err, workflow.ErrActorNotAllowed, "%s by %s from %s", action, actor, status)
						default:
							require.NoError(t, err, "%s by %s from %s", action, actor, status)
							assert.Equal(t, listed.to, out.To, "%s from %s", action, status)
							assert.Equal(t, actor, out.Actor)

							_, err = m.machine.Fire(status, action, workflow.NewActors(actor), "  ")
							if listed.reason {
								assert.ErrorIs(t, err, workflow.ErrReasonRequired, "%s from %s", action, status)
							} else {
								assert.NoError(t, err, "%s from %s", action, status)
							}
						}
					}
				}
			}
		})
	}
}

func TestAgreementReturnForCorrection(t *testing.T) {
	out, err := AgreementMachine.Fire(StatusPendingHRVerification, ActionReturn, workflow.NewActors(hr), "missing signature")
	require.NoError(t, err)
	assert.Equal(t, StatusReturnedForCorrection, out.To)
	assert.Equal(t, []string{StampReturned}, out.Stamps)
	require.Len(t, out.Notices, 1)
	assert.Equal(t, notifications.TypeCorrection, out.Notices[0].Type)
	assert.ElementsMatch(t, []workflow.Party{workflow.PartyEmployee, workflow.PartySupervisor}, out.Notices[0].To)

	out, err = AgreementMachine.Fire(StatusReturnedForCorrection, ActionSubmit, workflow.NewActors(hr), "")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingSupervisorRating, out.To)
}

func TestUnknownActionIsReported(t *testing.T) {
	_, err := AgreementMachine.Fire(StatusDraft, ActionReturnToEmployee, workflow.NewActors(supervisor), "x")
	assert.ErrorIs(t, err, workflow.ErrUnknownAction)
	_, err = ReviewMachine.Fire(StatusDraft, ActionHRVerify, workflow.NewActors(hr), "")
	assert.ErrorIs(t, err, workflow.ErrUnknownAction)
}
