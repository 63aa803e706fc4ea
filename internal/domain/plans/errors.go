package plans

import "errors"

var (
	ErrNotFound        = errors.New("plan not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidStatus   = errors.New("invalid plan status")
	ErrStatusBackwards = errors.New("plan status cannot move backwards")
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")
	ErrInvalidDates    = errors.New("start date must not be after end date")
	ErrAreaRequired    = errors.New("area for development is required")
	ErrGapRequired     = errors.New("competency gap is required")
)
