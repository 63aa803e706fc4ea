package performance

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	hundred         = decimal.NewFromInt(100)
	weightTolerance = decimal.RequireFromString("0.01")
)

// WeightedScore is weighting × agreed rating / 100, or zero without an
// agreed rating.
func WeightedScore(k KRA) decimal.Decimal {
	if k.AgreedRating == nil {
		return decimal.Zero
	}
	return k.Weighting.Mul(*k.AgreedRating).Div(hundred).Round(2)
}

func TotalScore(kras []KRA) decimal.Decimal {
	total := decimal.Zero
	for _, k := range kras {
		total = total.Add(WeightedScore(k))
	}
	return total
}

func TotalWeight(kras []KRA) decimal.Decimal {
	total := decimal.Zero
	for _, k := range kras {
		total = total.Add(k.Weighting)
	}
	return total
}

// WeightsValid accepts totals within 0.01 of 100.
func WeightsValid(kras []KRA) bool {
	return TotalWeight(kras).Sub(hundred).Abs().LessThan(weightTolerance)
}

// effectiveRating prefers agreed over supervisor over employee ratings.
func effectiveRating(r ReviewRating) *decimal.Decimal {
	switch {
	case r.AgreedRating != nil:
		return r.AgreedRating
	case r.SupervisorRating != nil:
		return r.SupervisorRating
	default:
		return r.EmployeeRating
	}
}

// OverallRating is the KRA-weighted average of review ratings. Rows without
// a rating or weight are left out; nil when nothing is rated.
func OverallRating(ratings []ReviewRating) *decimal.Decimal {
	sum := decimal.Zero
	weights := decimal.Zero
	for _, r := range ratings {
		if r.Kind != RatingKindKRA || r.Weighting == nil {
			continue
		}
		rating := effectiveRating(r)
		if rating == nil {
			continue
		}
		sum = sum.Add(r.Weighting.Mul(*rating))
		weights = weights.Add(*r.Weighting)
	}
	if weights.IsZero() {
		return nil
	}
	overall := sum.Div(weights).Round(2)
	return &overall
}

// lowRatings returns the labels of rows a supervisor or agreed rating put
// below the improvement threshold.
func lowRatings(ratings []ReviewRating) []string {
	var out []string
	for _, r := range ratings {
		rating := r.AgreedRating
		if rating == nil {
			rating = r.SupervisorRating
		}
		if rating != nil && rating.LessThan(lowRatingThreshold) {
			out = append(out, r.Label)
		}
	}
	return out
}

type PlanDates struct {
	PlanStart       time.Time
	PlanEnd         time.Time
	MidyearReview   time.Time
	FinalAssessment time.Time
}

// DefaultPlanDates follows the April to March financial year containing now.
func DefaultPlanDates(now time.Time) PlanDates {
	year := now.Year()
	if now.Month() < time.April {
		year--
	}
	return PlanDates{
		PlanStart:       date(year, time.April, 1),
		PlanEnd:         date(year+1, time.March, 31),
		MidyearReview:   date(year, time.September, 30),
		FinalAssessment: date(year+1, time.March, 15),
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
