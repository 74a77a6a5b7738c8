package loan

import (
	"errors"

	"loan-desk-backend/internal/store"
)

var (
	// ErrNotFound is returned when a loan id is unknown.
	ErrNotFound          = errors.New("loan not found")
	ErrComputerNotFound  = errors.New("computer not found")
	ErrAccessoryNotFound = errors.New("accessory not found")
)

// IsNotFound reports whether err names an unknown loan, computer or accessory.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrComputerNotFound) ||
		errors.Is(err, ErrAccessoryNotFound)
}

// ValidationError rejects an operation without changing any record.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(reason string) error { return &ValidationError{Reason: reason} }

// Result is the success flag and message pair returned to clients.
type Result struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	// SavedLocally is set when the change only reached the local mirror.
	SavedLocally bool `json:"savedLocally,omitempty"`
}

// ResultOf converts an operation error into a Result. Low-level errors are
// reduced to a generic message.
func ResultOf(err error) Result {
	if err == nil {
		return Result{Success: true}
	}
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return Result{Reason: ve.Reason}
	case errors.Is(err, ErrComputerNotFound):
		return Result{Reason: ErrComputerNotFound.Error()}
	case errors.Is(err, ErrAccessoryNotFound):
		return Result{Reason: ErrAccessoryNotFound.Error()}
	case errors.Is(err, ErrNotFound):
		return Result{Reason: ErrNotFound.Error()}
	case errors.Is(err, store.ErrNetworkUnavailable):
		return Result{Reason: "shared location unavailable, change saved locally", SavedLocally: true}
	default:
		return Result{Reason: "operation failed"}
	}
}
