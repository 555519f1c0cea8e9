package service

import (
	"errors"
	"fmt"

	"clinicdocs/internal/submission"
	"clinicdocs/internal/validator"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidSchema      = errors.New("invalid schema")
	ErrSubmissionRejected = errors.New("submission rejected")
)

// SchemaError carries the validator report of a rejected schema
type SchemaError struct {
	Report validator.Result
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %d error(s)", ErrInvalidSchema, len(e.Report.Errors))
}

func (e *SchemaError) Unwrap() error { return ErrInvalidSchema }

// SubmissionError carries the field errors of a rejected submission
type SubmissionError struct {
	Result *submission.Result
}

func (e *SubmissionError) Error() string {
	if e.Result.Tampered() {
		return fmt.Sprintf("%s: read-only fields were modified", ErrSubmissionRejected)
	}
	return fmt.Sprintf("%s: %d field error(s)", ErrSubmissionRejected, len(e.Result.Errors))
}

func (e *SubmissionError) Unwrap() error { return ErrSubmissionRejected }
