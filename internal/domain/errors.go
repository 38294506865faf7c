package domain

import (
	"errors"
	"strings"
)

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidEventType  = errors.New("invalid event type: must be TENDER_PUBLISHED, SUBMISSION_RECEIVED, SUBMISSION_ACCEPTED or SUBMISSION_REJECTED")
	ErrInvalidStatus     = errors.New("invalid status: must be PENDING, SENT or FAILED")
	ErrInvalidID         = errors.New("invalid notification id")
	ErrNoRecipients      = errors.New("event must have at least one recipient")
	ErrDuplicateDelivery = errors.New("delivery already claimed for this event and user")
	ErrTemplateNotFound  = errors.New("template not found")
	ErrTransmitRejected  = errors.New("mail transport rejected the message")
)

// FieldError describes one failed field constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level failures for a request or event.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err carries field-level validation detail.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
