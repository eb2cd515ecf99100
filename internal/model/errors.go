package model

import "errors"

// CodedError carries an envelope error code through ordinary Go error returns.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *CodedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Errorf is a small constructor for CodedError.
func Errorf(code, message string, cause error) error {
	return &CodedError{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the envelope code carried by err, or "".
func CodeOf(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}
