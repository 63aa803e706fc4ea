package workflow

import "errors"

var (
	ErrUnknownAction     = errors.New("unknown workflow action")
	ErrInvalidTransition = errors.New("action not allowed in current status")
	ErrActorNotAllowed   = errors.New("actor not allowed to perform action")
	ErrReasonRequired    = errors.New("a reason is required for this action")
)
