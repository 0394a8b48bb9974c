package entity

import (
	"errors"
	"fmt"
)

// Error kinds. Every business error returned by the service layer wraps
// exactly one of them, callers match with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrAccess     = errors.New("access denied")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	// Event errors
	ErrEventNotFound      = newError(ErrNotFound, "event not found")
	ErrEventPublished     = newError(ErrConflict, "published event cannot be changed")
	ErrEventNotPending    = newError(ErrConflict, "event must be in PENDING state")
	ErrEventNotPublished  = newError(ErrConflict, "event is not published")
	ErrNotInitiator       = newError(ErrAccess, "user is not the initiator of the event")
	ErrInvalidStateAction = newError(ErrValidation, "state action is not allowed for this actor")

	// Participation request errors
	ErrRequestNotFound     = newError(ErrNotFound, "participation request not found")
	ErrRequestNotPending   = newError(ErrConflict, "request must have status PENDING")
	ErrParticipantLimit    = newError(ErrConflict, "participant limit exceeded")
	ErrOwnEventRequest     = newError(ErrConflict, "initiator can't request their own event")
	ErrDuplicateRequest    = newError(ErrConflict, "participation request already exists")
	ErrNotRequester        = newError(ErrAccess, "request belongs to another user")
	ErrInvalidTargetStatus = newError(ErrValidation, "target status must be CONFIRMED or REJECTED")

	// User errors
	ErrUserNotFound      = newError(ErrNotFound, "user not found")
	ErrUserAlreadyExists = newError(ErrConflict, "user with this email already exists")

	// Category and location errors
	ErrCategoryNotFound      = newError(ErrNotFound, "category not found")
	ErrCategoryAlreadyExists = newError(ErrConflict, "category with this name already exists")
	ErrCategoryInUse         = newError(ErrConflict, "category is referenced by events")
	ErrLocationNotFound      = newError(ErrNotFound, "location not found")

	// Compilations
	ErrCompilationNotFound = newError(ErrNotFound, "compilation not found")

	// Likes
	ErrLikeOwnEvent = newError(ErrConflict, "initiator can't like their own event")
	ErrLikeNotFound = newError(ErrNotFound, "like not found")

	// General errors
	ErrConcurrentUpdate = newError(ErrConflict, "concurrent update detected, try again")
)

func NotFoundf(format string, args ...interface{}) error {
	return newError(ErrNotFound, fmt.Sprintf(format, args...))
}

func Accessf(format string, args ...interface{}) error {
	return newError(ErrAccess, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...interface{}) error {
	return newError(ErrConflict, fmt.Sprintf(format, args...))
}

func Validationf(format string, args ...interface{}) error {
	return newError(ErrValidation, fmt.Sprintf(format, args...))
}

// Kind returns the kind sentinel err wraps, or nil for unclassified errors.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrAccess, ErrConflict, ErrValidation} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
