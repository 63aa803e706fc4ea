package performance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pmds/internal/domain/workflow"
)

// StatusChange is the row update a fired transition produces.
type StatusChange struct {
	To            workflow.Status
	Stamps        []string
	ReasonField   string
	Reason        string
	CommentField  string
	Comment       string
	RejectedBy    string
	HRVerifier    string
	OverallRating *decimal.Decimal
}

type StoreAPI interface {
	ListAgreements(ctx context.Context, tenantID string, filter AgreementFilter, limit, offset int) ([]Agreement, error)
	CountAgreements(ctx context.Context, tenantID string, filter AgreementFilter) (int, error)
	GetAgreement(ctx context.Context, tenantID, id string) (Agreement, error)
	CreateAgreement(ctx context.Context, tenantID string, a Agreement) (string, error)
	UpdateAgreement(ctx context.Context, tenantID string, a Agreement) error
	DeleteAgreement(ctx context.Context, tenantID, id string) error
	TransitionAgreement(ctx context.Context, tenantID, id string, decide func(Agreement) (StatusChange, error)) (Agreement, error)
	ExportAgreements(ctx context.Context, tenantID string, filter AgreementFilter) ([]Agreement, error)

	GetKRA(ctx context.Context, tenantID, agreementID, kraID string) (KRA, error)
	CreateKRA(ctx context.Context, tenantID string, k KRA) (string, error)
	UpdateKRA(ctx context.Context, tenantID string, k KRA) error
	DeleteKRA(ctx context.Context, tenantID, agreementID, kraID string) error
	SetKRAEvidence(ctx context.Context, tenantID, kraID, key, filename string, at time.Time) error
	UpsertGAFs(ctx context.Context, tenantID, agreementID string, gafs []GAF) error
	EvidenceAgreement(ctx context.Context, tenantID, key string) (string, error)

	ListReviews(ctx context.Context, tenantID string, filter ReviewFilter, limit, offset int) ([]Review, error)
	CountReviews(ctx context.Context, tenantID string, filter ReviewFilter) (int, error)
	GetReview(ctx context.Context, tenantID, id string) (Review, error)
	CreateReview(ctx context.Context, tenantID string, r Review, stamps []string) (string, error)
	UpdateReview(ctx context.Context, tenantID string, r Review) error
	DeleteReview(ctx context.Context, tenantID, id string) error
	TransitionReview(ctx context.Context, tenantID, id string, decide func(Review) (StatusChange, error)) (Review, error)
	UpdateRatings(ctx context.Context, tenantID, reviewID string, ratings []ReviewRating) error
	SetRatingEvidence(ctx context.Context, tenantID, reviewID, ratingID, key, filename string, at time.Time) error

	CreateFeedback(ctx context.Context, tenantID string, f Feedback) (string, error)
	ListFeedback(ctx context.Context, tenantID string, filter FeedbackFilter, limit, offset int) ([]Feedback, error)

	SummaryData(ctx context.Context, tenantID, involving string) (SummaryData, error)
	PendingWork(ctx context.Context, tenantID, userID string, until *time.Time) ([]WorkItem, error)
}

type FeedbackFilter struct {
	EmployeeID string
	// About and By are OR-ed together when both are set.
	About string
	By    string
}

// SummaryData is the raw material of the dashboard.
type SummaryData struct {
	AgreementsByStatus map[string]int
	ReviewsTotal       int
	ReviewsCompleted   int
	Ratings            []decimal.Decimal
}
