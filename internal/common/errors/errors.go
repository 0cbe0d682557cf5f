// Package errors provides standardized error handling for the reminder service.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Schedule rejection (malformed input, caught before any timer is armed)
	ErrCodeEmptyReminderTimes  ErrorCode = "EMPTY_REMINDER_TIMES"
	ErrCodeInvalidReminderTime ErrorCode = "INVALID_REMINDER_TIME"
	ErrCodeMedicationInvalid   ErrorCode = "MEDICATION_INVALID"

	// Channel prerequisites (rejected locally, before any provider call)
	ErrCodeInvalidPhone ErrorCode = "INVALID_PHONE_NUMBER"

	// Store / infrastructure
	ErrCodeStoreQueryFailed    ErrorCode = "STORE_QUERY_FAILED"
	ErrCodeMedicationNotFound  ErrorCode = "MEDICATION_NOT_FOUND"
	ErrCodeContactLookupFailed ErrorCode = "CONTACT_LOOKUP_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// IsCode reports whether err is a StandardError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := err.(*StandardError)
	return ok && stdErr.Code == code
}

// ==========================
// 2. Error Constructors
// ==========================

// NewEmptyReminderTimesError rejects a schedule call with no reminder times.
func NewEmptyReminderTimesError(medicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyReminderTimes,
		Message:   "Medication has no reminder times",
		Details:   fmt.Sprintf("medicationId: %s", medicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidReminderTimeError rejects a schedule call carrying a malformed HH:MM string.
func NewInvalidReminderTimeError(medicationID, value string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidReminderTime,
		Message:   "Reminder time is not a valid HH:MM clock time",
		Details:   fmt.Sprintf("medicationId: %s, value: %q", medicationID, value),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMedicationInvalidError rejects a medication payload that failed schema validation.
func NewMedicationInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMedicationInvalid,
		Message:   "Medication payload failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidPhoneError rejects a malformed phone number before any network call.
func NewInvalidPhoneError(phone string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPhone,
		Message:   "Phone number is not in E.164 format",
		Details:   fmt.Sprintf("phone: %q", phone),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreQueryFailedError creates a retryable store query error.
func NewStoreQueryFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreQueryFailed,
		Message:   "Store query error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMedicationNotFoundError creates a non-retryable lookup error.
func NewMedicationNotFoundError(medicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMedicationNotFound,
		Message:   "Medication not found",
		Details:   fmt.Sprintf("medicationId: %s", medicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewContactLookupFailedError creates a retryable contact resolution error.
func NewContactLookupFailedError(userID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeContactLookupFailed,
		Message:   "Contact lookup failed",
		Details:   fmt.Sprintf("userId: %s, error: %s", userID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
