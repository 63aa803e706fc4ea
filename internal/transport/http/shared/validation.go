package shared

import (
	"cmp"
	"net/http"
	"net/mail"
	"slices"
	"strings"
	"time"

	"pmds/internal/transport/http/api"
)

// ValidationIssue is one entry of the error.details.fields list.
type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Validator collects field problems for a single request body. A nil
// Validator discards everything.
type Validator struct {
	issues []ValidationIssue
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Add(field, reason string) {
	if v == nil || strings.TrimSpace(reason) == "" {
		return
	}
	v.issues = append(v.issues, ValidationIssue{Field: strings.TrimSpace(field), Reason: strings.TrimSpace(reason)})
}

func (v *Validator) Required(field, value, reason string) {
	if blank(value) {
		v.Add(field, reason)
	}
}

// Enum accepts empty values; pair it with Required when the field is mandatory.
func (v *Validator) Enum(field, value string, allowed []string, reason string) {
	if blank(value) {
		return
	}
	if !slices.ContainsFunc(allowed, func(a string) bool { return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(value)) }) {
		v.Add(field, reason)
	}
}

func (v *Validator) Email(field, value string) {
	if blank(value) {
		return
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(value)); err != nil {
		v.Add(field, "must be a valid email address")
	}
}

func (v *Validator) Date(field, raw string) (time.Time, bool) {
	day, err := ParseDate(strings.TrimSpace(raw))
	if err == nil && !day.IsZero() {
		return day, true
	}
	v.Add(field, "must be a valid date in YYYY-MM-DD format")
	return time.Time{}, false
}

// OptionalDate parses a date only when the field was sent.
func (v *Validator) OptionalDate(field string, raw *string) *time.Time {
	if raw == nil || blank(*raw) {
		return nil
	}
	if day, ok := v.Date(field, *raw); ok {
		return &day
	}
	return nil
}

func (v *Validator) DateOrder(startField string, start time.Time, endField string, end time.Time) {
	if start.IsZero() || end.IsZero() || !end.Before(start) {
		return
	}
	v.Add(startField, "must be on or before "+endField)
	v.Add(endField, "must be on or after "+startField)
}

func (v *Validator) HasIssues() bool {
	return v != nil && len(v.issues) > 0
}

// Issues returns the collected problems ordered by field then reason.
func (v *Validator) Issues() []ValidationIssue {
	if !v.HasIssues() {
		return nil
	}
	sorted := slices.Clone(v.issues)
	slices.SortStableFunc(sorted, func(a, b ValidationIssue) int {
		return cmp.Or(cmp.Compare(a.Field, b.Field), cmp.Compare(a.Reason, b.Reason))
	})
	return sorted
}

// Reject writes a 400 validation_error and reports true when anything was collected.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if !v.HasIssues() {
		return false
	}
	FailValidation(w, requestID, v.Issues())
	return true
}

func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	details := map[string]any{"fields": issues}
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed", details, requestID)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
