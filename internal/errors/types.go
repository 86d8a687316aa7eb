package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType defines the category of the error
type ErrorType string

const (
	ErrorTypeConfig        ErrorType = "CONFIG_ERROR"
	ErrorTypeValidation    ErrorType = "VALIDATION_ERROR"
	ErrorTypeUpstream      ErrorType = "UPSTREAM_ERROR"
	ErrorTypeTranscription ErrorType = "TRANSCRIPTION_ERROR"
	ErrorTypeStorage       ErrorType = "STORAGE_ERROR"
	ErrorTypeCallback      ErrorType = "CALLBACK_ERROR"
	ErrorTypeInternal      ErrorType = "INTERNAL_ERROR"
)

// AppError represents a structured error for the application
type AppError struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	StatusCode    int       `json:"statusCode"`
	ErrorCode     string    `json:"errorCode"`
	IsOperational bool      `json:"isOperational"`
	Recovery      string    `json:"recoverySuggestion,omitempty"`
	Err           error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Code returns the application-specific error code
func (e *AppError) Code() string {
	return e.ErrorCode
}

// RecoverySuggestion returns the suggestion on how to recover from the error
func (e *AppError) RecoverySuggestion() string {
	return e.Recovery
}

// TypeOf returns the ErrorType of the first AppError in err's chain,
// or ErrorTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// CodeOf returns the error code of the first AppError in err's chain.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.ErrorCode
	}
	return "INTERNAL_ERROR"
}

// NewConfigError creates a new configuration error (500)
func NewConfigError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeConfig,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: false,
		Recovery:      "Set the missing environment variable on the function and redeploy.",
		Err:           err,
	}
}

// NewValidationError creates a new validation error (400)
func NewValidationError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeValidation,
		Message:       message,
		StatusCode:    http.StatusBadRequest,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewUpstreamError creates an error for a non-success response from an external API.
func NewUpstreamError(message string, errorCode string, statusCode int, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeUpstream,
		Message:       message,
		StatusCode:    statusCode,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Check the transcription service status and API key.",
		Err:           err,
	}
}

// NewTranscriptionError creates a new transcription error (500)
func NewTranscriptionError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeTranscription,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Verify the uploaded file is a supported audio format.",
		Err:           err,
	}
}

// NewStorageError creates a new storage error (500)
func NewStorageError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeStorage,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Check the bucket exists and the function role can access it.",
		Err:           err,
	}
}

// NewCallbackError creates an error for a failed provisioning callback delivery.
func NewCallbackError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeCallback,
		Message:       message,
		StatusCode:    http.StatusBadGateway,
		ErrorCode:     errorCode,
		IsOperational: true,
		Err:           err,
	}
}
