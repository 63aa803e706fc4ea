package performance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func TestWeightedScore(t *testing.T) {
	assert.Equal(t, "0.00", WeightedScore(KRA{Weighting: dec("40")}).StringFixed(2))
	assert.Equal(t, "1.20", WeightedScore(KRA{Weighting: dec("40"), AgreedRating: decPtr("3")}).StringFixed(2))
	assert.Equal(t, "0.83", WeightedScore(KRA{Weighting: dec("33.33"), AgreedRating: decPtr("2.5")}).StringFixed(2))
	// supervisor rating alone does not count towards the score
	assert.True(t, WeightedScore(KRA{Weighting: dec("50"), SupervisorRating: decPtr("4")}).IsZero())
}

func TestTotalsAndWeightValidity(t *testing.T) {
	kras := []KRA{
		{Weighting: dec("33.33"), AgreedRating: decPtr("4")},
		{Weighting: dec("33.33"), AgreedRating: decPtr("2")},
		{Weighting: dec("33.34")},
	}
	for i := range kras {
		kras[i].WeightedScore = WeightedScore(kras[i])
	}
	assert.Equal(t, "100.00", TotalWeight(kras).StringFixed(2))
	assert.True(t, WeightsValid(kras))
	assert.Equal(t, "2.00", TotalScore(kras).StringFixed(2))

	kras[2].Weighting = dec("30")
	assert.False(t, WeightsValid(kras))
	assert.False(t, WeightsValid(nil))
}

func TestOverallRating(t *testing.T) {
	assert.Nil(t, OverallRating(nil))

	rows := []ReviewRating{
		{Kind: RatingKindKRA, Weighting: decPtr("60"), AgreedRating: decPtr("3"), SupervisorRating: decPtr("1")},
		{Kind: RatingKindKRA, Weighting: decPtr("40"), SupervisorRating: decPtr("2")},
		{Kind: RatingKindKRA, Weighting: decPtr("10")},
		{Kind: RatingKindGAF, AgreedRating: decPtr("0")},
	}
	overall := OverallRating(rows)
	require.NotNil(t, overall)
	assert.Equal(t, "2.60", overall.StringFixed(2))
}

func TestLowRatings(t *testing.T) {
	rows := []ReviewRating{
		{Label: "Budget", SupervisorRating: decPtr("1.5")},
		{Label: "Reporting", SupervisorRating: decPtr("1"), AgreedRating: decPtr("2")},
		{Label: "Job knowledge", Kind: RatingKindGAF, AgreedRating: decPtr("0.5")},
		{Label: "Self only", EmployeeRating: decPtr("0")},
	}
	assert.Equal(t, []string{"Budget", "Job knowledge"}, lowRatings(rows))
}

func TestDefaultPlanDates(t *testing.T) {
	dates := DefaultPlanDates(time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, date(2025, time.April, 1), dates.PlanStart)
	assert.Equal(t, date(2026, time.March, 31), dates.PlanEnd)

	dates = DefaultPlanDates(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, date(2026, time.April, 1), dates.PlanStart)
	assert.Equal(t, date(2026, time.September, 30), dates.MidyearReview)
	assert.Equal(t, date(2027, time.March, 15), dates.FinalAssessment)
}
