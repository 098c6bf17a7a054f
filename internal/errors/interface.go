// Package errors provides the coded errors used across npumon. Every
// failure that crosses a package boundary carries an ErrorCode so callers
// and logs can classify it without matching on message text.
package errors

// ErrorCode is a stable, snake_case identifier for a class of failure.
type ErrorCode string

// Error is a coded error. WithMessage and WithData return copies.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory creates coded errors.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
