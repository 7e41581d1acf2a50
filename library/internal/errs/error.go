package errs

import (
	"errors"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrDuplicateName        = errors.New("book with this name already exists")
	ErrWrongCurrentPassword = errors.New("current admin code is wrong")
	ErrWrongCode            = errors.New("admin code is wrong")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrPersistence          = errors.New("persistence failure")
	ErrConflict             = errors.New("snapshot version conflict")
	ErrValidation           = errors.New("validation failed")
)

type ValidationErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}
