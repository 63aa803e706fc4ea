package users

import "errors"

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicate         = errors.New("email, username, employee id or persal number already in use")
	ErrInvalidRole       = errors.New("invalid role")
	ErrInvalidManager    = errors.New("manager would create a reporting cycle")
	ErrSalaryLevel       = errors.New("unknown salary level")
	ErrCannotDeactivate  = errors.New("cannot deactivate your own account")
	ErrIncompleteProfile = errors.New("profile incomplete: employee id and persal number are required")
)
