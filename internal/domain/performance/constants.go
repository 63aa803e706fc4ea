package performance

import (
	"github.com/shopspring/decimal"

	"pmds/internal/domain/workflow"
)

// Agreement and review statuses. Reviews use the same names minus the HR
// verification stage and with RETURNED in place of RETURNED_FOR_CORRECTION.
const (
	StatusDraft                    workflow.Status = "DRAFT"
	StatusPendingEmployeeRating    workflow.Status = "PENDING_EMPLOYEE_RATING"
	StatusPendingSupervisorRating  workflow.Status = "PENDING_SUPERVISOR_RATING"
	StatusPendingSupervisorSignoff workflow.Status = "PENDING_SUPERVISOR_SIGNOFF"
	StatusPendingManagerApproval   workflow.Status = "PENDING_MANAGER_APPROVAL"
	StatusPendingHRVerification    workflow.Status = "PENDING_HR_VERIFICATION"
	StatusCompleted                workflow.Status = "COMPLETED"
	StatusRejected                 workflow.Status = "REJECTED"
	StatusReturnedForCorrection    workflow.Status = "RETURNED_FOR_CORRECTION"
	StatusReturned                 workflow.Status = "RETURNED"
)

const (
	ActionSubmit                 workflow.Action = "submit"
	ActionRequestEmployeeRating  workflow.Action = "request_employee_rating"
	ActionSubmitEmployeeRating   workflow.Action = "submit_employee_rating"
	ActionSupervisorRate         workflow.Action = "supervisor_rate"
	ActionSubmitSupervisorRating workflow.Action = "submit_supervisor_rating"
	ActionSupervisorSignoff      workflow.Action = "supervisor_signoff"
	ActionManagerApprove         workflow.Action = "manager_approve"
	ActionHRVerify               workflow.Action = "hr_verify"
	ActionReturn                 workflow.Action = "return"
	ActionReturnToEmployee       workflow.Action = "return_to_employee"
	ActionReturnToSupervisor     workflow.Action = "return_to_supervisor"
	ActionReject                 workflow.Action = "reject"
	ActionStart                  workflow.Action = "start"
)

const (
	CycleMidYear = "midyear"
	CycleFinal   = "final"
)

var Cycles = []string{CycleMidYear, CycleFinal}

const (
	RatingKindKRA = "kra"
	RatingKindGAF = "gaf"
)

// Stamp columns a transition may set. Anything else is refused by the store.
const (
	StampEmployeeSubmitted  = "employee_submitted_at"
	StampSupervisorReviewed = "supervisor_reviewed_at"
	StampSupervisorSignoff  = "supervisor_signoff_at"
	StampManagerApproved    = "manager_approved_at"
	StampHRVerified         = "hr_verified_at"
	StampCompleted          = "completed_at"
	StampRejected           = "rejected_at"
	StampReturned           = "returned_at"
	StampEmployeeRating     = "employee_rating_at"
	StampSupervisorRating   = "supervisor_rating_at"
	StampApproved           = "approved_at"
)

var agreementStampColumns = map[string]bool{
	StampEmployeeSubmitted:  true,
	StampSupervisorReviewed: true,
	StampSupervisorSignoff:  true,
	StampManagerApproved:    true,
	StampHRVerified:         true,
	StampCompleted:          true,
	StampRejected:           true,
	StampReturned:           true,
}

var reviewStampColumns = map[string]bool{
	StampEmployeeRating:    true,
	StampSupervisorRating:  true,
	StampSupervisorSignoff: true,
	StampApproved:          true,
	StampCompleted:         true,
	StampRejected:          true,
	StampReturned:          true,
}

// lowRatingThreshold marks review ratings that feed the improvement plan.
var lowRatingThreshold = decimal.NewFromInt(2)
