package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a conversion failed.
type ErrorKind string

const (
	ErrUnsupportedConversion ErrorKind = "unsupported_conversion"
	ErrEngineNotFound        ErrorKind = "engine_not_found"
	ErrEngineTimeout         ErrorKind = "engine_timeout"
	ErrEngineExecution       ErrorKind = "engine_execution_failure"
	ErrOutputMissingOrEmpty  ErrorKind = "output_missing_or_empty"
	ErrUnexpectedInternal    ErrorKind = "unexpected_internal_error"
)

// ConversionError is the only error type that leaves an engine adapter.
// Message is user facing; for engine failures it is the tool's own diagnostic.
type ConversionError struct {
	Kind    ErrorKind
	Engine  string
	Message string
	Err     error
}

func (e *ConversionError) Error() string {
	if e.Engine != "" {
		return fmt.Sprintf("%s: %s", e.Engine, e.Message)
	}
	return e.Message
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// NewError builds a ConversionError with no engine attribution.
func NewError(kind ErrorKind, message string, err error) *ConversionError {
	return &ConversionError{Kind: kind, Message: message, Err: err}
}

// EngineError builds a ConversionError attributed to the named engine.
func EngineError(engine string, kind ErrorKind, message string, err error) *ConversionError {
	return &ConversionError{Kind: kind, Engine: engine, Message: message, Err: err}
}

// AsConversionError returns err as a ConversionError, wrapping foreign errors
// as ErrUnexpectedInternal.
func AsConversionError(err error) *ConversionError {
	if err == nil {
		return nil
	}
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce
	}
	return NewError(ErrUnexpectedInternal, err.Error(), err)
}

// KindOf reports the ErrorKind carried by err, or "" when err is nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsConversionError(err).Kind
}
