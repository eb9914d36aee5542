package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/routing-engine/internal/domain"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may simply try again later.
func (e *DomainError) Retryable() bool {
	retry, _ := e.Details["retryable"].(bool)
	return retry
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

type sentinelMapping struct {
	err    error
	code   string
	status int
}

// Engine sentinels in match order. Admission rejections come first so they
// keep their retryable marker even when wrapped with context.
var sentinels = []sentinelMapping{
	{domain.ErrHubAtCapacity, "HUB_AT_CAPACITY", http.StatusConflict},
	{domain.ErrReceiverBoxFull, "RECEIVER_BOX_FULL", http.StatusConflict},
	{domain.ErrTicketNotFound, "TICKET_NOT_FOUND", http.StatusNotFound},
	{domain.ErrDepartmentNotFound, "DEPARTMENT_NOT_FOUND", http.StatusNotFound},
	{domain.ErrQueryTypeNotFound, "QUERY_TYPE_NOT_FOUND", http.StatusNotFound},
	{domain.ErrInvalidStageTransition, "INVALID_STAGE_TRANSITION", http.StatusConflict},
	{domain.ErrAlreadyAssigned, "ALREADY_ASSIGNED", http.StatusConflict},
	{domain.ErrNotCompletable, "NOT_COMPLETABLE", http.StatusConflict},
	{domain.ErrTicketNotRouted, "TICKET_NOT_ROUTED", http.StatusConflict},
	{domain.ErrQueryTypeInactive, "QUERY_TYPE_INACTIVE", http.StatusUnprocessableEntity},
	{domain.ErrDepartmentNotAllowed, "DEPARTMENT_NOT_ALLOWED", http.StatusUnprocessableEntity},
	{domain.ErrInvalidTypeCode, "INVALID_TYPE_CODE", http.StatusBadRequest},
	{domain.ErrInvalidInput, "VALIDATION_FAILED", http.StatusBadRequest},
}

// ToDomainError converts engine and driver errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	for _, m := range sentinels {
		if !errors.Is(err, m.err) {
			continue
		}
		de := &DomainError{Code: m.code, Message: err.Error(), HTTPStatus: m.status, Err: err}
		if domain.IsAdmissionRejected(err) {
			de.Details = map[string]any{"retryable": true}
		}
		return de
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
