package domain

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names, not Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("eventtype", func(fl validator.FieldLevel) bool {
		return EventType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Validate checks a manual send request. Failures are returned as *ValidationError.
func (r *SendRequest) Validate() error {
	r.EventType = EventType(strings.ToUpper(strings.TrimSpace(string(r.EventType))))
	r.Email = strings.TrimSpace(r.Email)
	return toValidationError(validate.Struct(r))
}

// Validate checks the event envelope. Recipient-level problems such as a
// malformed address are not checked here: they fail only that recipient.
func (e *NotificationEvent) Validate() error {
	if len(e.Recipients) == 0 {
		return ErrNoRecipients
	}
	return toValidationError(validate.Struct(e))
}

// ValidateEmail reports whether addr is a syntactically valid email address.
func ValidateEmail(addr string) error {
	if err := validate.Var(addr, "required,email"); err != nil {
		return &ValidationError{Fields: []FieldError{{Field: "email", Message: "must be a valid email address"}}}
	}
	return nil
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return ve
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a UUID"
	case "eventtype":
		return "must be one of TENDER_PUBLISHED, SUBMISSION_RECEIVED, SUBMISSION_ACCEPTED, SUBMISSION_REJECTED"
	case "min":
		return "must have at least " + fe.Param() + " element(s)"
	}
	return "failed " + fe.Tag() + " constraint"
}
