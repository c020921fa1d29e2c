package model

import "fmt"

// ValidationError marks a malformed or missing request field. The
// server maps it to a 400 response; it is never retried.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}
