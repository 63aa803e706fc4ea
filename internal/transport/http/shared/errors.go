package shared

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"

	"pmds/internal/domain/auth"
	"pmds/internal/domain/notifications"
	"pmds/internal/domain/performance"
	"pmds/internal/domain/plans"
	"pmds/internal/domain/users"
	"pmds/internal/domain/workflow"
	"pmds/internal/platform/requestctx"
	"pmds/internal/transport/http/api"
)

// WriteError maps domain errors onto status codes. Anything unrecognised is
// logged and reported as a 500 with the given code and message.
func WriteError(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := requestctx.GetRequestID(r.Context())
	switch {
	case errors.Is(err, pgx.ErrNoRows),
		errors.Is(err, performance.ErrNotFound),
		errors.Is(err, plans.ErrNotFound),
		errors.Is(err, users.ErrNotFound),
		errors.Is(err, notifications.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "resource not found", requestID)
	case errors.Is(err, workflow.ErrActorNotAllowed),
		errors.Is(err, performance.ErrForbidden),
		errors.Is(err, plans.ErrForbidden),
		errors.Is(err, auth.ErrImpersonateForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", err.Error(), requestID)
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrUnknownAction):
		api.Fail(w, http.StatusConflict, "invalid_transition", err.Error(), requestID)
	case errors.Is(err, performance.ErrNotEditable),
		errors.Is(err, performance.ErrDeleteNotAllowed),
		errors.Is(err, performance.ErrEvidenceNotAllowed),
		errors.Is(err, performance.ErrDuplicateReview),
		errors.Is(err, users.ErrDuplicate),
		errors.Is(err, plans.ErrStatusBackwards):
		api.Fail(w, http.StatusConflict, "conflict", err.Error(), requestID)
	case isValidation(err):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	default:
		slog.Error(message, "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var validationErrors = []error{
	workflow.ErrReasonRequired,
	performance.ErrIncompleteProfile,
	performance.ErrWeightsInvalid,
	performance.ErrUnknownFactor,
	performance.ErrInvalidCycle,
	performance.ErrNoSupervisor,
	performance.ErrRatingNotInReview,
	performance.ErrInvalidDates,
	plans.ErrInvalidStatus,
	plans.ErrInvalidProgress,
	plans.ErrInvalidDates,
	plans.ErrAreaRequired,
	plans.ErrGapRequired,
	users.ErrInvalidRole,
	users.ErrInvalidManager,
	users.ErrSalaryLevel,
	users.ErrCannotDeactivate,
	users.ErrIncompleteProfile,
	auth.ErrWeakPassword,
	auth.ErrImpersonateSelf,
	auth.ErrImpersonateNested,
	auth.ErrNotImpersonating,
	notifications.ErrInvalidFrequency,
}
