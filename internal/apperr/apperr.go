// Package apperr holds the error taxonomy recovered at the API boundary.
package apperr

import "errors"

// ConflictError means an active session already exists for the user.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NotFoundError means a task or session does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// PermissionError means the user is not assigned to the task, or is not
// the owner or a manager.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return e.Message
}

// ValidationError means the request itself is malformed (e.g. a manual
// entry whose end does not follow its start).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
