package notifications

const (
	TypeReviewDue    = "REVIEW_DUE"
	TypePlanUpdate   = "PLAN_UPDATE"
	TypeFeedback     = "FEEDBACK"
	TypeApproval     = "APPROVAL"
	TypeReminder     = "REMINDER"
	TypeStatusUpdate = "STATUS_UPDATE"
	TypeVerification = "VERIFICATION"
	TypeCorrection   = "CORRECTION"
	TypeRejection    = "REJECTION"
	TypeReturned     = "RETURNED"
)

var Types = []string{
	TypeReviewDue,
	TypePlanUpdate,
	TypeFeedback,
	TypeApproval,
	TypeReminder,
	TypeStatusUpdate,
	TypeVerification,
	TypeCorrection,
	TypeRejection,
	TypeReturned,
}

const (
	FrequencyDaily   = "DAILY"
	FrequencyWeekly  = "WEEKLY"
	FrequencyMonthly = "MONTHLY"
)

var Frequencies = []string{FrequencyDaily, FrequencyWeekly, FrequencyMonthly}

const (
	ObjectAgreement       = "performance_agreement"
	ObjectReview          = "review"
	ObjectImprovementPlan = "improvement_plan"
	ObjectDevelopmentPlan = "development_plan"
	ObjectFeedback        = "feedback"
)

// EventNotification is the websocket event type for new notifications.
const EventNotification = "notification"
