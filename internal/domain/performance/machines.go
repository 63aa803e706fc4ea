package performance

import (
	"pmds/internal/domain/audit"
	"pmds/internal/domain/notifications"
	"pmds/internal/domain/workflow"
)

var (
	employee   = workflow.ActorEmployee
	supervisor = workflow.ActorSupervisor
	approver   = workflow.ActorApprover
	hr         = workflow.ActorHR
)

func notice(ntype, title, message string, to ...workflow.Party) workflow.Notice {
	return workflow.Notice{To: to, Type: ntype, Title: title, Message: message}
}

// AgreementMachine drives performance agreements from drafting to HR
// verification. Messages use {subject} and {reason} placeholders.
var AgreementMachine = workflow.MustMachine("agreement", StatusDraft,
	[]workflow.Status{
		StatusDraft,
		StatusPendingEmployeeRating,
		StatusPendingSupervisorRating,
		StatusPendingSupervisorSignoff,
		StatusPendingManagerApproval,
		StatusPendingHRVerification,
		StatusCompleted,
		StatusRejected,
		StatusReturnedForCorrection,
	},
	workflow.Transition{
		Action:      ActionSubmit,
		From:        []workflow.Status{StatusDraft, StatusReturnedForCorrection, StatusRejected},
		To:          StatusPendingSupervisorRating,
		Actors:      []workflow.Actor{employee, hr},
		Stamps:      []string{StampEmployeeSubmitted},
		AuditAction: audit.ActionSubmit,
		Notices: []workflow.Notice{
			notice(notifications.TypeApproval, "Performance agreement submitted",
				"{subject} has been submitted for your review.", workflow.PartySupervisor),
		},
	},
	workflow.Transition{
		Action:      ActionRequestEmployeeRating,
		From:        []workflow.Status{StatusPendingSupervisorRating},
		To:          StatusPendingEmployeeRating,
		Actors:      []workflow.Actor{supervisor},
		Stamps:      []string{StampSupervisorReviewed},
		AuditAction: audit.ActionUpdate,
		Notices: []workflow.Notice{
			notice(notifications.TypeStatusUpdate, "Self rating requested",
				"Your supervisor asked you to rate {subject}.", workflow.PartyEmployee),
		},
	},
	workflow.Transition{
		Action:      ActionSubmitEmployeeRating,
		From:        []workflow.Status{StatusPendingEmployeeRating},
		To:          StatusPendingSupervisorRating,
		Actors:      []workflow.Actor{employee},
		Stamps:      []string{StampEmployeeSubmitted},
		AuditAction: audit.ActionSubmit,
		Notices: []workflow.Notice{
			notice(notifications.TypeApproval, "Employee rating submitted",
				"The employee has rated {subject}. It is ready for your rating.", workflow.PartySupervisor),
		},
	},
	workflow.Transition{
		Action:      ActionSupervisorRate,
		From:        []workflow.Status{StatusPendingSupervisorRating},
		To:          StatusPendingSupervisorSignoff,
		Actors:      []workflow.Actor{supervisor},
		Stamps:      []string{StampSupervisorReviewed},
		AuditAction: audit.ActionUpdate,
		Notices: []workflow.Notice{
			notice(notifications.TypeStatusUpdate, "Supervisor rating recorded",
				"Your supervisor has rated {subject}.", workflow.PartyEmployee),
		},
	},
	workflow.Transition{
		Action:      ActionSupervisorSignoff,
		From:        []workflow.Status{StatusPendingSupervisorSignoff, StatusPendingSupervisorRating},
		To:          StatusPendingManagerApproval,
		Actors:      []workflow.Actor{supervisor},
		Stamps:      []string{StampSupervisorSignoff},
		AuditAction: audit.ActionSignoff,
		Notices: []workflow.Notice{
			notice(notifications.TypeApproval, "Performance agreement awaiting approval",
				"{subject} has been signed off by the supervisor.", workflow.PartyApprover, workflow.PartyEmployee),
		},
	},
	workflow.Transition{
		Action:      ActionManagerApprove,
		From:        []workflow.Status{StatusPendingManagerApproval},
		To:          StatusPendingHRVerification,
		Actors:      []workflow.Actor{approver, hr},
		Stamps:      []string{StampManagerApproved},
		AuditAction: audit.ActionApprove,
		Notices: []workflow.Notice{
			notice(notifications.TypeVerification, "Performance agreement awaiting verification",
				"{subject} has been approved and is waiting for HR verification.",
				workflow.PartyAllHR, workflow.PartyEmployee, workflow.PartySupervisor),
		},
	},
	workflow.Transition{
		Action:      ActionHRVerify,
		From:        []workflow.Status{StatusPendingHRVerification},
		To:          StatusCompleted,
		Actors:      []workflow.Actor{hr},
		Stamps:      []string{StampHRVerified, StampCompleted},
		AuditAction: audit.ActionVerify,
		Notices: []workflow.Notice{
			notice(notifications.TypeStatusUpdate, "Performance agreement completed",
				"{subject} has been verified by HR.", workflow.PartyEmployee, workflow.PartySupervisor),
		},
	},
	workflow.Transition{
		Action:         ActionReturn,
		From:           []workflow.Status{StatusPendingHRVerification, StatusPendingManagerApproval},
		To:             StatusReturnedForCorrection,
		Actors:         []workflow.Actor{hr, approver},
		RequiresReason: true,
		Stamps:         []string{StampReturned},
		AuditAction:    audit.ActionReturn,
		Notices: []workflow.Notice{
			notice(notifications.TypeCorrection, "Performance agreement returned for correction",
				"{subject} was returned for correction: {reason}", workflow.PartyEmployee, workflow.PartySupervisor),
		},
	},
	workflow.Transition{
		Action:         ActionReject,
		From:           []workflow.Status{StatusPendingSupervisorRating, StatusPendingSupervisorSignoff},
		To:             StatusRejected,
		Actors:         []workflow.Actor{supervisor, hr},
		RequiresReason: true,
		Stamps:         []string{StampRejected},
		AuditAction:    audit.ActionReject,
		Notices: []workflow.Notice{
			notice(notifications.TypeRejection, "Performance agreement rejected",
				"{subject} was rejected: {reason}", workflow.PartyEmployee),
		},
	},
	workflow.Transition{
		Action:         ActionReject,
		From:           []workflow.Status{StatusPendingManagerApproval},
		To:             StatusPendingSupervisorSignoff,
		Actors:         []workflow.Actor{approver, hr},
		RequiresReason: true,
		Stamps:         []string{StampRejected},
		AuditAction:    audit.ActionReject,
		Notices: []workflow.Notice{
			notice(notifications.TypeRejection, "Performance agreement rejected by approver",
				"{subject} was sent back to the supervisor: {reason}", workflow.PartySupervisor, workflow.PartyEmployee),
		},
	},
)

// ReviewMachine covers both mid-year and final reviews.
var ReviewMachine = workflow.MustMachine("review", StatusDraft,
	[]workflow.Status{
		StatusDraft,
		StatusPendingEmployeeRating,
		StatusPendingSupervisorRating,
		StatusPendingSupervisorSignoff,
		StatusPendingManagerApproval,
		StatusCompleted,
		StatusRejected,
		StatusReturned,
	},
	workflow.Transition{
		Action:      ActionStart,
		From:        []workflow.Status{StatusDraft},
		To:          StatusPendingEmployeeRating,
		Actors:      []workflow.Actor{employee, supervisor, hr},
		AuditAction: audit.ActionUpdate,
		Notices: []workflow.Notice{
			notice(notifications.TypeReviewDue, "Review ready for your rating",
				"{subject} is ready for your self rating.", workflow.PartyEmployee),
		},
	},
	workflow.Transition{
		Action:      ActionSubmitEmployeeRating,
		From:        []workflow.Status{StatusPendingEmployeeRating, StatusReturned, StatusDraft},
		To:          StatusPendingSupervisorRating,
		Actors:      []workflow.Actor{employee},
		Stamps:      []string{StampEmployeeRating},
		AuditAction: audit.ActionSubmit,
		Notices: []workflow.Notice{
			notice(notifications.TypeApproval, "Employee rating submitted",
				"The employee has completed the self rating for {subject}.", workflow.PartySupervisor),
		},
	},
	workflow.Transition{
		Action:      ActionSubmitSupervisorRating,
		From:        []workflow.Status{StatusPendingSupervisorRating},
		To:          StatusPendingSupervisorSignoff,
		Actors:      []workflow.Actor{supervisor},
		Stamps:      []string{StampSupervisorRating},
		AuditAction: audit.ActionSubmit,
		Notices: []workflow.Notice{
			notice(notifications.TypeStatusUpdate, "Supervisor rating recorded",
				"Your supervisor has rated {subject}.", workflow.PartyEmployee),
		},
	},
	workflow.Transition{
		Action:      ActionSupervisorSignoff,
		From:        []workflow.Status{StatusPendingSupervisorSignoff},
		To:          StatusPendingManagerApproval,
		Actors:      []workflow.Actor{supervisor},
		Stamps:      []string{StampSupervisorSignoff},
		AuditAction: audit.ActionSignoff,
		Notices: []workflow.Notice{
			notice(notifications.TypeApproval, "Review awaiting approval",
				"{subject} has been signed off and needs your approval.", workflow.PartyApprover),
		},
	},
	workflow.Transition{
		Action:      ActionManagerApprove,
		From:        []workflow.Status{StatusPendingManagerApproval},
		To:          StatusCompleted,
		Actors:      []workflow.Actor{approver, hr},
		Stamps:      []string{StampApproved, StampCompleted},
		AuditAction: audit.ActionApprove,
		Notices: []workflow.Notice{
			notice(notifications.TypeStatusUpdate, "Review completed",
				"{subject} has been approved.", workflow.PartyEmployee, workflow.PartySupervisor),
		},
	},
	workflow.Transition{
		Action:         ActionReturnToEmployee,
		From:           []workflow.Status{StatusPendingSupervisorRating, StatusPendingSupervisorSignoff},
		To:             StatusReturned,
		Actors:         []workflow.Actor{supervisor},
		RequiresReason: true,
		Stamps:         []string{StampReturned},
		AuditAction:    audit.ActionReturn,
		Notices: []workflow.Notice{
			notice(notifications.TypeReturned, "Review returned",
				"{subject} was returned to you: {reason}", workflow.PartyEmployee),
		},
	},
	workflow.Transition{
		Action:         ActionReturnToSupervisor,
		From:           []workflow.Status{StatusPendingManagerApproval},
		To:             StatusPendingSupervisorSignoff,
		Actors:         []workflow.Actor{approver, hr},
		RequiresReason: true,
		Stamps:         []string{StampReturned},
		AuditAction:    audit.ActionReturn,
		Notices: []workflow.Notice{
			notice(notifications.TypeReturned, "Review returned",
				"{subject} was returned to you: {reason}", workflow.PartySupervisor),
		},
	},
	workflow.Transition{
		Action:         ActionReject,
		From:           []workflow.Status{StatusPendingManagerApproval},
		To:             StatusRejected,
		Actors:         []workflow.Actor{approver, hr},
		RequiresReason: true,
		Stamps:         []string{StampRejected},
		AuditAction:    audit.ActionReject,
		Notices: []workflow.Notice{
			notice(notifications.TypeRejection, "Review rejected",
				"{subject} was rejected: {reason}", workflow.PartyEmployee, workflow.PartySupervisor),
		},
	},
)
