package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a record does not exist for the tenant.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput is returned for malformed arguments to storage and adapters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidation marks an assessment request that failed validation.
	ErrValidation = errors.New("validation failed")

	// ErrTableCoverage marks a banding table that matched no band for a valid input.
	ErrTableCoverage = errors.New("banding table coverage")
)

// Field error codes.
const (
	CodeRequired      = "required"
	CodeNotPositive   = "not_positive"
	CodeOutOfRange    = "out_of_range"
	CodeNotEnumerated = "not_enumerated"
)

// FieldError describes one offending request field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError carries every offending field of a request.
type ValidationError struct {
	Fields []FieldError
}

// Add records an offending field. A field already recorded is not added twice.
func (e *ValidationError) Add(field, code, message string) {
	if e.Has(field) {
		return
	}
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: message})
}

// Has reports whether field was recorded.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Empty reports whether no field was recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// FieldNames returns the offending field names in the order they were found.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return names
}

// OnlyCreditScoreRange reports whether the sole problem is a supplied credit
// score outside [CreditScoreMin, CreditScoreMax].
func (e *ValidationError) OnlyCreditScoreRange() bool {
	return len(e.Fields) == 1 &&
		e.Fields[0].Field == "creditScore" &&
		e.Fields[0].Code == CodeOutOfRange
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.FieldNames(), ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// TableCoverageError reports a value that no band of a static table matched.
// It indicates a defect in the tables, never a user error.
type TableCoverageError struct {
	Factor Factor
	Value  string
}

func (e *TableCoverageError) Error() string {
	return fmt.Sprintf("%s: no band for %s=%s", ErrTableCoverage, e.Factor, e.Value)
}

func (e *TableCoverageError) Unwrap() error {
	return ErrTableCoverage
}

// Error envelope codes.
const (
	ErrorCodeValidation       = "validation_error"
	ErrorCodeCreditScoreRange = "credit_score_out_of_range"
	ErrorCodeInternal         = "internal_error"
	ErrorCodeBadRequest       = "bad_request"
	ErrorCodeNotFound         = "not_found"
	ErrorCodeUnavailable      = "unavailable"
)

// ErrorBody is the {code, message} envelope returned to clients.
type ErrorBody struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// NewErrorBody maps an assessment error to its client envelope.
// Anything that is not a validation error is reported as an opaque internal error.
func NewErrorBody(err error) *ErrorBody {
	var verr *ValidationError
	if errors.As(err, &verr) {
		code := ErrorCodeValidation
		if verr.OnlyCreditScoreRange() {
			code = ErrorCodeCreditScoreRange
		}
		return &ErrorBody{
			Code:    code,
			Message: "request validation failed",
			Fields:  verr.Fields,
		}
	}
	return &ErrorBody{
		Code:    ErrorCodeInternal,
		Message: "internal error while scoring the application",
	}
}
