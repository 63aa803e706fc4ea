package notifications

import "errors"

var (
	ErrInvalidFrequency = errors.New("invalid reminder frequency")
	ErrNotFound         = errors.New("notification not found")
)
