package trajectory

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three failure classes. Typed errors below match
// them through errors.Is so callers can branch without type assertions.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidConfig          = errors.New("invalid config")
	ErrUnsupportedAggregation = errors.New("unsupported aggregation")
)

// InvalidInputError reports a malformed or missing required field on an
// input record. Index is the position of the record in the input, or -1
// when the error does not refer to a single record.
type InvalidInputError struct {
	Index  int
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid input: field %q %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid input at record %d: field %q %s", e.Index, e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// InvalidConfigError reports a bad configuration value such as a negative
// gap threshold or an aggregation that cannot apply to an attribute's type.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

func (e *InvalidConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// UnsupportedAggregationError names the aggregation spec entry that could
// not be recognised.
type UnsupportedAggregationError struct {
	Attribute string
	Name      string
}

func (e *UnsupportedAggregationError) Error() string {
	if e.Attribute == "" {
		return fmt.Sprintf("unsupported aggregation %q", e.Name)
	}
	return fmt.Sprintf("unsupported aggregation %q for attribute %q", e.Name, e.Attribute)
}

func (e *UnsupportedAggregationError) Is(target error) bool {
	return target == ErrUnsupportedAggregation
}

// IsDeterministic reports whether err is one of the validation failures that
// will recur unchanged on retry.
func IsDeterministic(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrUnsupportedAggregation)
}
