// Package apperror translates the domain error taxonomy into HTTP shapes.
package apperror

import (
	"errors"
	"net/http"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/service/lock"
)

// AppError is the wire form of a failure.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest     = &AppError{Code: "BAD_REQUEST", Message: "Bad request", Status: http.StatusBadRequest}
	ErrUnauthorized   = &AppError{Code: "UNAUTHORIZED", Message: "Unauthorized", Status: http.StatusUnauthorized}
	ErrForbidden      = &AppError{Code: "FORBIDDEN", Message: "Forbidden", Status: http.StatusForbidden}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Not found", Status: http.StatusNotFound}
	ErrConflict       = &AppError{Code: "CONFLICT", Message: "Conflict", Status: http.StatusConflict}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "Internal server error", Status: http.StatusInternalServerError}
)

func NewBadRequest(message string) *AppError {
	return &AppError{Code: "BAD_REQUEST", Message: message, Status: http.StatusBadRequest}
}

func NewUnauthorized(message string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: message, Status: http.StatusUnauthorized}
}

func NewForbidden(message string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: message, Status: http.StatusForbidden}
}

func NewNotFound(message string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: message, Status: http.StatusNotFound}
}

func NewConflict(message string) *AppError {
	return &AppError{Code: "CONFLICT", Message: message, Status: http.StatusConflict}
}

// Map renders any pipeline error as an AppError. Unknown errors collapse to
// a generic 500 so internals never leak to the client.
func Map(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, domain.ErrPlanNotFound) || errors.Is(err, domain.ErrExecutionNotFound) {
		return NewNotFound(err.Error())
	}
	if errors.Is(err, lock.ErrLockHeld) {
		return &AppError{Code: "LOCKED", Message: err.Error(), Status: http.StatusConflict}
	}

	var permErr *domain.PermissionError
	if errors.As(err, &permErr) {
		return NewForbidden(permErr.Error())
	}

	var clarifyErr *domain.ClarificationError
	if errors.As(err, &clarifyErr) {
		return &AppError{Code: "CLARIFICATION_REQUIRED", Message: clarifyErr.Error(), Status: http.StatusUnprocessableEntity}
	}

	var unknownEntity *domain.UnknownEntityError
	if errors.As(err, &unknownEntity) {
		return NewBadRequest(unknownEntity.Error())
	}

	var impactErr *domain.ImpactConflictError
	if errors.As(err, &impactErr) {
		return &AppError{Code: "IMPACT_CONFLICT", Message: impactErr.Error(), Status: http.StatusConflict}
	}

	var rollbackErr *domain.RollbackConflictError
	if errors.As(err, &rollbackErr) {
		return &AppError{Code: "ROLLBACK_CONFLICT", Message: rollbackErr.Error(), Status: http.StatusConflict}
	}

	var transitionErr *domain.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return NewConflict(transitionErr.Error())
	}

	var execErr *domain.ExecutionError
	if errors.As(err, &execErr) {
		return &AppError{Code: "EXECUTION_FAILED", Message: execErr.Error(), Status: http.StatusInternalServerError}
	}

	return ErrInternalServer
}
