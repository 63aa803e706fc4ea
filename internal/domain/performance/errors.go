package performance

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("not allowed for this user")
	ErrIncompleteProfile  = errors.New("employee profile must have an employee id and persal number")
	ErrNotEditable        = errors.New("record cannot be edited in its current status")
	ErrDeleteNotAllowed   = errors.New("record cannot be deleted in its current status")
	ErrWeightsInvalid     = errors.New("kra weightings must total 100")
	ErrUnknownFactor      = errors.New("unknown assessment factor")
	ErrInvalidCycle       = errors.New("cycle must be midyear or final")
	ErrDuplicateReview    = errors.New("a review for this cycle already exists")
	ErrNoSupervisor       = errors.New("agreement has no supervisor")
	ErrRatingNotInReview  = errors.New("rating does not belong to this review")
	ErrEvidenceNotAllowed = errors.New("evidence can only be attached while the record is editable")
	ErrInvalidDates       = errors.New("plan end date must not be before the start date")
)
