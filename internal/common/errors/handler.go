// internal/common/errors/handler.go
package errors

import "time"

// ErrorHandler normalizes and logs failures surfaced by the fan-out and the
// store without letting them propagate into the scheduler's timer loop.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err and returns the normalized StandardError for callers
// that record outcomes.
func (h *ErrorHandler) Handle(err error, fields map[string]interface{}) *StandardError {
	stdErr := h.normalizeError(err)

	logFields := map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"details":   stdErr.Details,
		"retryable": stdErr.Retryable,
	}
	for k, v := range fields {
		logFields[k] = v
	}

	h.logger.Error(stdErr.Message, logFields)

	return stdErr
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
