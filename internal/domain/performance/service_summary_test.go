package performance

import (
	"testing"

	"github.com/shopspring/decimal"
)

func ratings(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		out = append(out, decimal.RequireFromString(v))
	}
	return out
}

func TestBuildDashboardWithRatings(t *testing.T) {
	summary := buildDashboard("HR", SummaryData{
		AgreementsByStatus: map[string]int{"COMPLETED": 6, "DRAFT": 3, "PENDING_MANAGER_APPROVAL": 1},
		ReviewsTotal:       8,
		ReviewsCompleted:   4,
		Ratings:            ratings("1.2", "2.7", "3.1", "3.9"),
	})
	if summary.AgreementsTotal != 10 || summary.AgreementsCompleted != 6 {
		t.Fatalf("unexpected agreement summary: %+v", summary)
	}
	if summary.ReviewsTotal != 8 || summary.ReviewsCompleted != 4 {
		t.Fatalf("unexpected review summary: %+v", summary)
	}
	if summary.ReviewCompletionRate != 0.5 {
		t.Fatalf("expected completion rate 0.5, got %v", summary.ReviewCompletionRate)
	}
	if summary.RatingDistribution["1"] != 1 {
		t.Fatalf("expected one rating rounded to 1, got %d", summary.RatingDistribution["1"])
	}
	if summary.RatingDistribution["3"] != 2 {
		t.Fatalf("expected two ratings rounded to 3, got %d", summary.RatingDistribution["3"])
	}
	if summary.RatingDistribution["4"] != 1 {
		t.Fatalf("expected one rating rounded to 4, got %d", summary.RatingDistribution["4"])
	}
}

func TestBuildDashboardHandlesZeroReviews(t *testing.T) {
	summary := buildDashboard("Employee", SummaryData{AgreementsByStatus: map[string]int{"DRAFT": 1}})
	if summary.ReviewCompletionRate != 0 {
		t.Fatalf("expected zero completion rate, got %v", summary.ReviewCompletionRate)
	}
	if len(summary.RatingDistribution) != 0 {
		t.Fatalf("expected empty rating distribution, got %+v", summary.RatingDistribution)
	}
	if summary.AwaitingAction == nil {
		t.Fatalf("expected empty awaiting list, got nil")
	}
}

func TestAverageRating(t *testing.T) {
	if averageRating(nil) != nil {
		t.Fatalf("expected nil average for no ratings")
	}
	avg := averageRating(ratings("2", "3", "3.5"))
	if avg == nil || avg.StringFixed(2) != "2.83" {
		t.Fatalf("expected 2.83, got %v", avg)
	}
}
