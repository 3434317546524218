package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// ConfigErrorMessage describes invalid agent or tool configuration.
	ConfigErrorMessage = "invalid configuration"
	// LLMErrorMessage describes a failed language model call.
	LLMErrorMessage = "language model call failed"
	// StoreErrorMessage describes a failed structured store write.
	StoreErrorMessage = "structured store operation failed"
)

var (
	// ErrSessionNotFound is returned when no checkpoint exists for a session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNothingToResume is returned when a resume is requested for a session that is not suspended.
	ErrNothingToResume = errors.New("session is not waiting for input")
	// ErrConversationEnded is returned when input arrives for a conversation that already ended.
	ErrConversationEnded = errors.New("conversation has ended")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// WrapConfig marks err as a configuration problem.
func WrapConfig(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadRequest, ConfigErrorMessage)
}

// WrapLLM marks err as a failed model call.
func WrapLLM(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, LLMErrorMessage)
}

// WrapStore marks err as a failed structured store operation.
func WrapStore(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, StoreErrorMessage)
}

// StatusOf returns the HTTP status carried by err, defaulting to 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNothingToResume), errors.Is(err, ErrConversationEnded):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
