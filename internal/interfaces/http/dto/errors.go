package dto

import (
	"errors"
	"net/http"

	"github.com/saasforge/backend/internal/domain/shared"
)

// Error code constants
const (
	ErrCodeUnknown          = "ERR_UNKNOWN"
	ErrCodeInternal         = "ERR_INTERNAL"
	ErrCodeValidation       = "ERR_VALIDATION"
	ErrCodeUnauthorized     = "ERR_UNAUTHORIZED"
	ErrCodeForbidden        = "ERR_FORBIDDEN"
	ErrCodeNotFound         = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists    = "ERR_ALREADY_EXISTS"
	ErrCodeInvalidState     = "ERR_INVALID_STATE"
	ErrCodeBadRequest       = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput     = "ERR_INVALID_INPUT"
	ErrCodeInvalidSignature = "ERR_INVALID_SIGNATURE"
	ErrCodeRateLimited      = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:          http.StatusInternalServerError,
	ErrCodeInternal:         http.StatusInternalServerError,
	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeAlreadyExists:    http.StatusConflict,
	ErrCodeInvalidState:     http.StatusUnprocessableEntity,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidInput:     http.StatusBadRequest,
	ErrCodeInvalidSignature: http.StatusBadRequest,
	ErrCodeRateLimited:      http.StatusTooManyRequests,
}

// StatusForCode returns the HTTP status for an error code, defaulting to 500
func StatusForCode(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// CodeForError maps a domain error to an error code
func CodeForError(err error) string {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, shared.ErrAlreadyExists):
		return ErrCodeAlreadyExists
	case errors.Is(err, shared.ErrUnauthorized):
		return ErrCodeUnauthorized
	case errors.Is(err, shared.ErrInvalidInput):
		return ErrCodeInvalidInput
	case errors.Is(err, shared.ErrInvalidState):
		return ErrCodeInvalidState
	case errors.Is(err, shared.ErrInvalidSignature):
		return ErrCodeInvalidSignature
	case errors.Is(err, shared.ErrRateLimited):
		return ErrCodeRateLimited
	default:
		return ErrCodeInternal
	}
}
