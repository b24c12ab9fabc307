package compliance

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDate marks a missing or unusable date on a single record.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidConfiguration marks thresholds or periods the engine cannot evaluate.
	ErrInvalidConfiguration = errors.New("invalid compliance configuration")
)

// InvalidDateError is reported per record and never aborts a whole-list computation.
type InvalidDateError struct {
	RecordID string
	Field    string
}

func (e *InvalidDateError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("%s: %s is missing or malformed", ErrInvalidDate, e.Field)
	}
	return fmt.Sprintf("%s: %s of record %s is missing or malformed", ErrInvalidDate, e.Field, e.RecordID)
}

func (e *InvalidDateError) Unwrap() error { return ErrInvalidDate }

// InvalidConfigurationError is a programmer error and is returned immediately.
type InvalidConfigurationError struct {
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidConfiguration, e.Reason)
}

func (e *InvalidConfigurationError) Unwrap() error { return ErrInvalidConfiguration }

func invalidConfig(format string, args ...interface{}) error {
	return &InvalidConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
