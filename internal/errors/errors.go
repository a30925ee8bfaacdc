package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	CodeDataFormat    = "DATA_FORMAT"
	CodeConfiguration = "CONFIGURATION"
	CodePhysicalModel = "PHYSICAL_MODEL"
	CodeIO            = "IO"
	CodeInternal      = "INTERNAL_ERROR"
)

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the code of an inner AppError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    GetCode(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode wraps err under the given code.
func WithCode(code string, err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// GetCode returns the code of the outermost AppError in the chain, or INTERNAL_ERROR.
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// DataFormat reports malformed or missing input data.
func DataFormat(format string, args ...interface{}) *AppError {
	return New(CodeDataFormat, fmt.Sprintf(format, args...))
}

// Configuration reports unusable settings or misuse of an API.
func Configuration(format string, args ...interface{}) *AppError {
	return New(CodeConfiguration, fmt.Sprintf(format, args...))
}

// PhysicalModel reports binary parameters the physics cannot evaluate.
func PhysicalModel(format string, args ...interface{}) *AppError {
	return New(CodePhysicalModel, fmt.Sprintf(format, args...))
}

// IO wraps a filesystem or network failure on the named artifact.
func IO(err error, artifact string) error {
	return WithCode(CodeIO, err, fmt.Sprintf("writing %s", artifact))
}

func IsDataFormat(err error) bool    { return GetCode(err) == CodeDataFormat }
func IsConfiguration(err error) bool { return GetCode(err) == CodeConfiguration }
func IsPhysicalModel(err error) bool { return GetCode(err) == CodePhysicalModel }
func IsIO(err error) bool            { return GetCode(err) == CodeIO }
