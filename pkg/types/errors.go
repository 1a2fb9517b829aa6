package types

import (
	"errors"
	"fmt"
)

// ErrorKind represents different categories of errors
type ErrorKind string

const (
	ErrorKindValidation   ErrorKind = "validation"
	ErrorKindNotFound     ErrorKind = "not_found"
	ErrorKindConflict     ErrorKind = "conflict"
	ErrorKindPrecondition ErrorKind = "precondition"
	ErrorKindPolicy       ErrorKind = "policy"
	ErrorKindConfig       ErrorKind = "config"
	ErrorKindStorage      ErrorKind = "storage"
)

// MindlineError represents a structured error in the Mindline system
type MindlineError struct {
	Kind    ErrorKind              `json:"kind"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *MindlineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *MindlineError) Unwrap() error {
	return e.Cause
}

// KindOf extracts the ErrorKind from an error chain. Unclassified errors
// report as storage failures, the catch-all for infrastructure trouble.
func KindOf(err error) ErrorKind {
	var me *MindlineError
	if errors.As(err, &me) {
		return me.Kind
	}
	return ErrorKindStorage
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *MindlineError {
	return &MindlineError{
		Kind:    ErrorKindValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *MindlineError {
	return &MindlineError{
		Kind:    ErrorKindNotFound,
		Code:    code,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(code, message string) *MindlineError {
	return &MindlineError{
		Kind:    ErrorKindConflict,
		Code:    code,
		Message: message,
	}
}

// NewPreconditionError creates a new precondition error
func NewPreconditionError(code, message string) *MindlineError {
	return &MindlineError{
		Kind:    ErrorKindPrecondition,
		Code:    code,
		Message: message,
	}
}

// NewPolicyError creates a new policy error
func NewPolicyError(code, message string) *MindlineError {
	return &MindlineError{
		Kind:    ErrorKindPolicy,
		Code:    code,
		Message: message,
	}
}

// NewConfigError creates a new config error
func NewConfigError(code, message string, cause error) *MindlineError {
	return &MindlineError{
		Kind:    ErrorKindConfig,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewStorageError creates a new storage error
func NewStorageError(code, message string, cause error) *MindlineError {
	return &MindlineError{
		Kind:    ErrorKindStorage,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error codes
const (
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeNoteNotFound         = "NOTE_NOT_FOUND"
	ErrCodeDraftNotFound        = "DRAFT_NOT_FOUND"
	ErrCodeNoteLocked           = "NOTE_LOCKED"
	ErrCodeSupervisorApproval   = "SUPERVISOR_APPROVAL_REQUIRED"
	ErrCodeParentNotLocked      = "PARENT_NOT_LOCKED"
	ErrCodeAddendaDisabled      = "ADDENDA_DISABLED"
	ErrCodeAddendumChainTooDeep = "ADDENDUM_CHAIN_TOO_DEEP"
	ErrCodeSettingNotConfigured = "SETTING_NOT_CONFIGURED"
	ErrCodeSettingMalformed     = "SETTING_MALFORMED"
	ErrCodeStorageFailure       = "STORAGE_FAILURE"
)
