package plans

import (
	"context"
	"time"
)

type StoreAPI interface {
	ListImprovementPlans(ctx context.Context, tenantID string, filter Filter, limit, offset int) ([]ImprovementPlan, error)
	CountImprovementPlans(ctx context.Context, tenantID string, filter Filter) (int, error)
	GetImprovementPlan(ctx context.Context, tenantID, id string) (ImprovementPlan, error)
	CurrentImprovementPlan(ctx context.Context, tenantID, employeeID string) (ImprovementPlan, error)
	CreateImprovementPlan(ctx context.Context, tenantID string, p ImprovementPlan) (string, error)
	UpdateImprovementPlan(ctx context.Context, tenantID string, p ImprovementPlan) error
	AddItem(ctx context.Context, tenantID string, item Item) (string, error)
	UpdateItem(ctx context.Context, tenantID string, item Item) error

	ListDevelopmentPlans(ctx context.Context, tenantID string, filter Filter, limit, offset int) ([]DevelopmentPlan, error)
	CountDevelopmentPlans(ctx context.Context, tenantID string, filter Filter) (int, error)
	GetDevelopmentPlan(ctx context.Context, tenantID, id string) (DevelopmentPlan, error)
	CreateDevelopmentPlan(ctx context.Context, tenantID string, d DevelopmentPlan) (string, error)
	UpdateDevelopmentPlan(ctx context.Context, tenantID string, d DevelopmentPlan) error
	DeleteDevelopmentPlan(ctx context.Context, tenantID, id string) error

	DueItems(ctx context.Context, tenantID string, until time.Time) ([]DueRow, error)
}

// DueRow is an in-progress plan item or development plan nearing its date.
type DueRow struct {
	ObjectType string
	ObjectID   string
	UserID     string
	Title      string
	DueDate    time.Time
}
