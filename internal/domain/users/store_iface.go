package users

import "context"

type StoreAPI interface {
	List(ctx context.Context, tenantID string, filter ListFilter, limit, offset int) ([]User, error)
	Count(ctx context.Context, tenantID string, filter ListFilter) (int, error)
	Get(ctx context.Context, tenantID, userID string) (User, error)
	Create(ctx context.Context, tenantID string, u User, passwordHash string) (User, error)
	Update(ctx context.Context, tenantID string, u User) (User, error)
	SetStatus(ctx context.Context, tenantID, userID, status string) error
	RoleIDByName(ctx context.Context, tenantID, role string) (string, error)
	ManagerOf(ctx context.Context, tenantID, userID string) (string, error)
	DirectReports(ctx context.Context, tenantID, managerID string) ([]User, error)
	IDsByRole(ctx context.Context, tenantID, role string) ([]string, error)
	SalaryLevels(ctx context.Context) ([]SalaryLevel, error)
	SalaryLevelExists(ctx context.Context, level int) (bool, error)
}
