package plans

const (
	StatusDraft      = "DRAFT"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

var Statuses = []string{StatusDraft, StatusInProgress, StatusCompleted}
