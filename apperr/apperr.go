// Package apperr classifies pipeline failures into the kinds reported to callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind names a class of failure that callers can act on.
type Kind string

const (
	KindInvalidInput         Kind = "invalid_input"
	KindUnsupportedMode      Kind = "unsupported_mode"
	KindForecastingFailed    Kind = "forecasting_failed"
	KindNarrativeUnavailable Kind = "narrative_unavailable"
	KindPersistence          Kind = "persistence_failed"
	KindInternal             Kind = "internal"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnsupportedMode      = errors.New("unsupported mode")
	ErrForecastingFailed    = errors.New("forecasting failed")
	ErrNarrativeUnavailable = errors.New("narrative unavailable")
	ErrPersistence          = errors.New("persistence failed")
)

var kindSentinels = map[Kind]error{
	KindInvalidInput:         ErrInvalidInput,
	KindUnsupportedMode:      ErrUnsupportedMode,
	KindForecastingFailed:    ErrForecastingFailed,
	KindNarrativeUnavailable: ErrNarrativeUnavailable,
	KindPersistence:          ErrPersistence,
}

// Error is a classified failure carrying the underlying cause.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s, %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error kind so errors.Is(err, ErrPersistence) holds for any
// persistence Error regardless of its cause.
func (e *Error) Is(target error) bool {
	sentinel, exists := kindSentinels[e.Kind]
	return exists && sentinel == target
}

func New(kind Kind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func InvalidInput(err error) *Error {
	return New(KindInvalidInput, "input series is invalid", err)
}

func UnsupportedMode(mode string) *Error {
	return New(KindUnsupportedMode, fmt.Sprintf("model type %q is not supported", mode), nil)
}

func ForecastingFailed(err error) *Error {
	return New(KindForecastingFailed, "model could not be fit", err)
}

func NarrativeUnavailable(err error) *Error {
	return New(KindNarrativeUnavailable, "narrative could not be generated", err)
}

func Persistence(err error) *Error {
	return New(KindPersistence, "report could not be saved", err)
}

// KindOf returns the kind of the first Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// HTTPStatus maps an error kind to the response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput, KindUnsupportedMode:
		return http.StatusBadRequest
	case KindForecastingFailed:
		return http.StatusUnprocessableEntity
	case KindNarrativeUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the caller facing message of err. Unclassified errors are not exposed.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.Err != nil {
			return fmt.Sprintf("%s, %v", appErr.Message, appErr.Err)
		}
		return appErr.Message
	}
	if KindOf(err) != KindInternal {
		return err.Error()
	}
	return "an unexpected error occurred"
}
