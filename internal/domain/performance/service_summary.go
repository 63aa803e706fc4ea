package performance

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"pmds/internal/domain/auth"
)

// Dashboard summarises agreements and reviews the user is involved in. HR
// sees the whole tenant.
func (s *Service) Dashboard(ctx context.Context, user auth.UserContext) (Dashboard, error) {
	involving := user.UserID
	if user.RoleName == auth.RoleHR {
		involving = ""
	}
	data, err := s.store.SummaryData(ctx, user.TenantID, involving)
	if err != nil {
		return Dashboard{}, err
	}
	summary := buildDashboard(user.RoleName, data)

	work, err := s.store.PendingWork(ctx, user.TenantID, user.UserID, nil)
	if err != nil {
		return Dashboard{}, err
	}
	summary.AwaitingAction = work

	if user.RoleName == auth.RoleManager || user.RoleName == auth.RoleApprover {
		reports, err := s.users.DirectReports(ctx, user.TenantID, user.UserID)
		if err != nil {
			slog.Warn("direct reports lookup failed", "userId", user.UserID, "err", err)
		}
		summary.DirectReports = len(reports)
	}
	return summary, nil
}

func buildDashboard(role string, data SummaryData) Dashboard {
	summary := Dashboard{
		Role:               role,
		AgreementsByStatus: map[string]int{},
		ReviewsTotal:       data.ReviewsTotal,
		ReviewsCompleted:   data.ReviewsCompleted,
		RatingDistribution: map[string]int{},
		AwaitingAction:     []WorkItem{},
	}
	for status, count := range data.AgreementsByStatus {
		summary.AgreementsByStatus[status] = count
		summary.AgreementsTotal += count
		if status == string(StatusCompleted) {
			summary.AgreementsCompleted += count
		}
	}
	if data.ReviewsTotal > 0 {
		summary.ReviewCompletionRate = float64(data.ReviewsCompleted) / float64(data.ReviewsTotal)
	}
	for _, rating := range data.Ratings {
		bucket := rating.Round(0).IntPart()
		summary.RatingDistribution[strconv.FormatInt(bucket, 10)]++
	}
	return summary
}

// averageRating is used by the score report.
func averageRating(values []decimal.Decimal) *decimal.Decimal {
	if len(values) == 0 {
		return nil
	}
	avg := decimal.Avg(values[0], values[1:]...).Round(2)
	return &avg
}
