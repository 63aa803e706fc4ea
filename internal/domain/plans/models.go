package plans

import (
	"fmt"
	"time"
)

type ImprovementPlan struct {
	ID             string     `json:"id"`
	EmployeeID     string     `json:"employeeId"`
	EmployeeName   string     `json:"employeeName"`
	SupervisorID   *string    `json:"supervisorId"`
	SupervisorName string     `json:"supervisorName,omitempty"`
	Status         string     `json:"status"`
	ApprovedBy     *string    `json:"approvedBy,omitempty"`
	ApprovalDate   *time.Time `json:"approvalDate,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	Items          []Item     `json:"items"`
	CanEdit        bool       `json:"canEdit"`
}

func (p ImprovementPlan) String() string {
	return fmt.Sprintf("Improvement Plan for %s", p.EmployeeName)
}

type Item struct {
	ID                 string     `json:"id"`
	PlanID             string     `json:"planId"`
	AreaForDevelopment string     `json:"areaForDevelopment"`
	Interventions      string     `json:"interventions"`
	Timeline           string     `json:"timeline"`
	Action             string     `json:"action"`
	TargetDate         *time.Time `json:"targetDate,omitempty"`
	Progress           string     `json:"progress"`
	SourceReviewID     *string    `json:"sourceReviewId,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type PlanInput struct {
	EmployeeID   string  `json:"employeeId"`
	SupervisorID *string `json:"supervisorId"`
	Status       *string `json:"status"`
}

type ItemInput struct {
	AreaForDevelopment *string    `json:"areaForDevelopment"`
	Interventions      *string    `json:"interventions"`
	Timeline           *string    `json:"timeline"`
	Action             *string    `json:"action"`
	TargetDate         *time.Time `json:"-"`
	Progress           *string    `json:"progress"`
}

type DevelopmentPlan struct {
	ID                    string    `json:"id"`
	EmployeeID            string    `json:"employeeId"`
	EmployeeName          string    `json:"employeeName"`
	CompetencyGap         string    `json:"competencyGap"`
	DevelopmentActivities string    `json:"developmentActivities"`
	Timeline              string    `json:"timeline"`
	ExpectedOutcome       string    `json:"expectedOutcome"`
	Progress              int       `json:"progress"`
	StartDate             time.Time `json:"startDate"`
	EndDate               time.Time `json:"endDate"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
	CanEdit               bool      `json:"canEdit"`
}

func (d DevelopmentPlan) String() string {
	return fmt.Sprintf("Development Plan for %s", d.EmployeeName)
}

// DevelopmentInput dates are parsed by the handler.
type DevelopmentInput struct {
	EmployeeID            string     `json:"employeeId"`
	CompetencyGap         *string    `json:"competencyGap"`
	DevelopmentActivities *string    `json:"developmentActivities"`
	Timeline              *string    `json:"timeline"`
	ExpectedOutcome       *string    `json:"expectedOutcome"`
	Progress              *int       `json:"progress"`
	StartDate             *time.Time `json:"-"`
	EndDate               *time.Time `json:"-"`
}

type Filter struct {
	EmployeeID string
	Status     string
	// Involving limits results to the user's own plans, plans they
	// supervise and plans of their direct reports.
	Involving string
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
