package performance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pmds/internal/domain/workflow"
)

type Agreement struct {
	ID                   string          `json:"id"`
	EmployeeID           string          `json:"employeeId"`
	EmployeeName         string          `json:"employeeName"`
	SupervisorID         *string         `json:"supervisorId"`
	SupervisorName       string          `json:"supervisorName,omitempty"`
	ApproverID           *string         `json:"approverId"`
	ApproverName         string          `json:"approverName,omitempty"`
	AgreementDate        time.Time       `json:"agreementDate"`
	PlanStartDate        time.Time       `json:"planStartDate"`
	PlanEndDate          time.Time       `json:"planEndDate"`
	MidyearReviewDate    time.Time       `json:"midyearReviewDate"`
	FinalAssessmentDate  time.Time       `json:"finalAssessmentDate"`
	Status               workflow.Status `json:"status"`
	EmployeeSubmittedAt  *time.Time      `json:"employeeSubmittedAt,omitempty"`
	SupervisorReviewedAt *time.Time      `json:"supervisorReviewedAt,omitempty"`
	SupervisorSignoffAt  *time.Time      `json:"supervisorSignoffAt,omitempty"`
	ManagerApprovedAt    *time.Time      `json:"managerApprovedAt,omitempty"`
	HRVerifiedAt         *time.Time      `json:"hrVerifiedAt,omitempty"`
	CompletedAt          *time.Time      `json:"completedAt,omitempty"`
	RejectedAt           *time.Time      `json:"rejectedAt,omitempty"`
	ReturnedAt           *time.Time      `json:"returnedAt,omitempty"`
	EmployeeComments     string          `json:"employeeComments"`
	SupervisorComments   string          `json:"supervisorComments"`
	ManagerComments      string          `json:"managerComments"`
	HRComments           string          `json:"hrComments"`
	RejectionReason      string          `json:"rejectionReason,omitempty"`
	RejectedBy           *string         `json:"rejectedBy,omitempty"`
	ReturnReason         string          `json:"returnReason,omitempty"`
	HRVerifierID         *string         `json:"hrVerifierId,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
	KRAs                 []KRA           `json:"kras,omitempty"`
	GAFs                 []GAF           `json:"gafs,omitempty"`

	// Computed per request.
	Score       decimal.Decimal   `json:"totalScore"`
	WeightTotal decimal.Decimal   `json:"totalWeight"`
	CanEdit     bool              `json:"canEdit"`
	CanDelete   bool              `json:"canDelete"`
	Actions     []workflow.Action `json:"actions"`
}

func (a Agreement) String() string {
	return fmt.Sprintf("Performance Agreement for %s (%d-%d)", a.EmployeeName, a.PlanStartDate.Year(), a.PlanEndDate.Year())
}

// TotalScore sums the weighted KRA scores.
func (a Agreement) TotalScore() decimal.Decimal {
	return TotalScore(a.KRAs)
}

func (a Agreement) WeightsValid() bool {
	return WeightsValid(a.KRAs)
}

// Parties maps the workflow roles onto user ids. Unset parties are blank.
func (a Agreement) Parties() map[workflow.Party]string {
	return map[workflow.Party]string{
		workflow.PartyEmployee:   a.EmployeeID,
		workflow.PartySupervisor: deref(a.SupervisorID),
		workflow.PartyApprover:   deref(a.ApproverID),
	}
}

type KRA struct {
	ID                   string           `json:"id"`
	AgreementID          string           `json:"agreementId"`
	Description          string           `json:"description"`
	PerformanceObjective string           `json:"performanceObjective"`
	Weighting            decimal.Decimal  `json:"weighting"`
	Measurement          string           `json:"measurement"`
	TargetDate           *time.Time       `json:"targetDate,omitempty"`
	Tools                string           `json:"tools"`
	Barriers             string           `json:"barriers"`
	EvidenceExamples     string           `json:"evidenceExamples"`
	EmployeeRating       *decimal.Decimal `json:"employeeRating"`
	EmployeeComments     string           `json:"employeeComments"`
	SupervisorRating     *decimal.Decimal `json:"supervisorRating"`
	SupervisorComments   string           `json:"supervisorComments"`
	AgreedRating         *decimal.Decimal `json:"agreedRating"`
	EvidenceKey          string           `json:"-"`
	EvidenceFilename     string           `json:"evidenceFilename,omitempty"`
	EvidenceUploadedAt   *time.Time       `json:"evidenceUploadedAt,omitempty"`
	SortOrder            int              `json:"sortOrder"`
	WeightedScore        decimal.Decimal  `json:"weightedScore"`
}

type KRAInput struct {
	Description          *string          `json:"description"`
	PerformanceObjective *string          `json:"performanceObjective"`
	Weighting            *decimal.Decimal `json:"weighting"`
	Measurement          *string          `json:"measurement"`
	TargetDate           *time.Time       `json:"-"`
	Tools                *string          `json:"tools"`
	Barriers             *string          `json:"barriers"`
	EvidenceExamples     *string          `json:"evidenceExamples"`
	EmployeeRating       *decimal.Decimal `json:"employeeRating"`
	EmployeeComments     *string          `json:"employeeComments"`
	SupervisorRating     *decimal.Decimal `json:"supervisorRating"`
	SupervisorComments   *string          `json:"supervisorComments"`
	AgreedRating         *decimal.Decimal `json:"agreedRating"`
	SortOrder            *int             `json:"sortOrder"`
}

type GAF struct {
	ID           string `json:"id"`
	AgreementID  string `json:"agreementId"`
	Factor       string `json:"factor"`
	Name         string `json:"name"`
	IsApplicable bool   `json:"isApplicable"`
	Comments     string `json:"comments"`
}

type GAFInput struct {
	Factor       string `json:"factor"`
	IsApplicable *bool  `json:"isApplicable"`
	Comments     string `json:"comments"`
}

// AgreementInput is used for create and update. Dates are parsed by the
// handler; nil leaves the current or default value.
type AgreementInput struct {
	EmployeeID          string     `json:"employeeId"`
	SupervisorID        *string    `json:"supervisorId"`
	ApproverID          *string    `json:"approverId"`
	AgreementDate       *time.Time `json:"-"`
	PlanStartDate       *time.Time `json:"-"`
	PlanEndDate         *time.Time `json:"-"`
	MidyearReviewDate   *time.Time `json:"-"`
	FinalAssessmentDate *time.Time `json:"-"`
	EmployeeComments    *string    `json:"employeeComments"`
	SupervisorComments  *string    `json:"supervisorComments"`
	ManagerComments     *string    `json:"managerComments"`
	HRComments          *string    `json:"hrComments"`
}

type AgreementFilter struct {
	EmployeeID string
	Status     string
	Year       int
	// Involving restricts to agreements where the user is a party.
	Involving string
}

type Review struct {
	ID                  string            `json:"id"`
	AgreementID         string            `json:"agreementId"`
	Cycle               string            `json:"cycle"`
	Status              workflow.Status   `json:"status"`
	ReviewDate          time.Time         `json:"reviewDate"`
	OverallRating       *decimal.Decimal  `json:"overallRating"`
	EmployeeComments    string            `json:"employeeComments"`
	SupervisorComments  string            `json:"supervisorComments"`
	ApproverComments    string            `json:"approverComments"`
	ReturnReason        string            `json:"returnReason,omitempty"`
	RejectionReason     string            `json:"rejectionReason,omitempty"`
	EmployeeRatingAt    *time.Time        `json:"employeeRatingAt,omitempty"`
	SupervisorRatingAt  *time.Time        `json:"supervisorRatingAt,omitempty"`
	SupervisorSignoffAt *time.Time        `json:"supervisorSignoffAt,omitempty"`
	ApprovedAt          *time.Time        `json:"approvedAt,omitempty"`
	CompletedAt         *time.Time        `json:"completedAt,omitempty"`
	RejectedAt          *time.Time        `json:"rejectedAt,omitempty"`
	ReturnedAt          *time.Time        `json:"returnedAt,omitempty"`
	CreatedBy           *string           `json:"createdBy,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
	EmployeeID          string            `json:"employeeId"`
	EmployeeName        string            `json:"employeeName"`
	SupervisorID        *string           `json:"supervisorId"`
	ApproverID          *string           `json:"approverId"`
	PlanStartDate       time.Time         `json:"planStartDate"`
	PlanEndDate         time.Time         `json:"planEndDate"`
	CanEdit             bool              `json:"canEdit"`
	Ratings             []ReviewRating    `json:"ratings,omitempty"`
	Actions             []workflow.Action `json:"actions"`
}

func (r Review) String() string {
	label := "Mid-Year Review"
	if r.Cycle == CycleFinal {
		label = "Final Review"
	}
	return fmt.Sprintf("%s for %s (%d-%d)", label, r.EmployeeName, r.PlanStartDate.Year(), r.PlanEndDate.Year())
}

// Editable is false once the review is completed.
func (r Review) Editable() bool {
	return r.Status != StatusCompleted
}

func (r Review) Parties() map[workflow.Party]string {
	return map[workflow.Party]string{
		workflow.PartyEmployee:   r.EmployeeID,
		workflow.PartySupervisor: deref(r.SupervisorID),
		workflow.PartyApprover:   deref(r.ApproverID),
	}
}

type ReviewRating struct {
	ID                 string           `json:"id"`
	ReviewID           string           `json:"reviewId"`
	Kind               string           `json:"kind"`
	KRAID              *string          `json:"kraId,omitempty"`
	GAFID              *string          `json:"gafId,omitempty"`
	Label              string           `json:"label"`
	Weighting          *decimal.Decimal `json:"weighting,omitempty"`
	EmployeeRating     *decimal.Decimal `json:"employeeRating"`
	EmployeeComments   string           `json:"employeeComments"`
	SupervisorRating   *decimal.Decimal `json:"supervisorRating"`
	SupervisorComments string           `json:"supervisorComments"`
	AgreedRating       *decimal.Decimal `json:"agreedRating"`
	EvidenceKey        string           `json:"-"`
	EvidenceFilename   string           `json:"evidenceFilename,omitempty"`
	EvidenceUploadedAt *time.Time       `json:"evidenceUploadedAt,omitempty"`
}

type RatingInput struct {
	ID                 string           `json:"id"`
	EmployeeRating     *decimal.Decimal `json:"employeeRating"`
	EmployeeComments   *string          `json:"employeeComments"`
	SupervisorRating   *decimal.Decimal `json:"supervisorRating"`
	SupervisorComments *string          `json:"supervisorComments"`
	AgreedRating       *decimal.Decimal `json:"agreedRating"`
}

type ReviewInput struct {
	AgreementID        string     `json:"agreementId"`
	Cycle              string     `json:"cycle"`
	ReviewDate         *time.Time `json:"-"`
	EmployeeComments   *string    `json:"employeeComments"`
	SupervisorComments *string    `json:"supervisorComments"`
	ApproverComments   *string    `json:"approverComments"`
}

type ReviewFilter struct {
	Cycle       string
	Status      string
	AgreementID string
	Involving   string
}

// TransitionRequest is a user's request to move a record along its workflow.
type TransitionRequest struct {
	Action  workflow.Action `json:"-"`
	Reason  string          `json:"reason"`
	Comment string          `json:"comment"`
}

// TransitionResult carries the record before and after a fired transition.
type TransitionResult[T any] struct {
	Before  T                `json:"-"`
	After   T                `json:"record"`
	Outcome workflow.Outcome `json:"-"`
}

type Feedback struct {
	ID           string    `json:"id"`
	EmployeeID   string    `json:"employeeId"`
	EmployeeName string    `json:"employeeName"`
	AuthorID     *string   `json:"authorId,omitempty"`
	AuthorName   string    `json:"authorName,omitempty"`
	Body         string    `json:"feedback"`
	IsAnonymous  bool      `json:"isAnonymous"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

type FeedbackInput struct {
	EmployeeID  string `json:"employeeId"`
	Body        string `json:"feedback"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// WorkItem is a record waiting on a particular user.
type WorkItem struct {
	ObjectType string          `json:"objectType"`
	ObjectID   string          `json:"objectId"`
	UserID     string          `json:"-"`
	Title      string          `json:"title"`
	Status     workflow.Status `json:"status"`
	DueDate    time.Time       `json:"dueDate"`
}

type Dashboard struct {
	Role                 string         `json:"role"`
	AgreementsTotal      int            `json:"agreementsTotal"`
	AgreementsCompleted  int            `json:"agreementsCompleted"`
	AgreementsByStatus   map[string]int `json:"agreementsByStatus"`
	ReviewsTotal         int            `json:"reviewsTotal"`
	ReviewsCompleted     int            `json:"reviewsCompleted"`
	ReviewCompletionRate float64        `json:"reviewCompletionRate"`
	RatingDistribution   map[string]int `json:"ratingDistribution"`
	AwaitingAction       []WorkItem     `json:"awaitingAction"`
	DirectReports        int            `json:"directReports,omitempty"`
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
