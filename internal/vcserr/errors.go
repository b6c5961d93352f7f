// Package vcserr defines the error taxonomy shared by repository lookup, path
// canonicalization and object retrieval.
package vcserr

import (
	"errors"
	"fmt"
)

// Code identifies a failure mode.
type Code string

const (
	NotFound           Code = "NOT_FOUND"
	OutsideRepository  Code = "OUTSIDE_REPOSITORY"
	NotADirectory      Code = "NOT_A_DIRECTORY"
	CannotResolve      Code = "CANNOT_RESOLVE"
	CannotClimb        Code = "CANNOT_CLIMB"
	DivergentPaths     Code = "DIVERGENT_PATHS"
	NotACommit         Code = "NOT_A_COMMIT"
	NotABlob           Code = "NOT_A_BLOB"
	RepositoryNotFound Code = "REPOSITORY_NOT_FOUND"
	// CrossRepository marks a related file living in a different repository
	// than the file it is related to. Locating a revision by date there is
	// not implemented.
	CrossRepository Code = "CROSS_REPOSITORY"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrNotFound           = &Error{Code: NotFound}
	ErrOutsideRepository  = &Error{Code: OutsideRepository}
	ErrNotADirectory      = &Error{Code: NotADirectory}
	ErrCannotResolve      = &Error{Code: CannotResolve}
	ErrCannotClimb        = &Error{Code: CannotClimb}
	ErrDivergentPaths     = &Error{Code: DivergentPaths}
	ErrNotACommit         = &Error{Code: NotACommit}
	ErrNotABlob           = &Error{Code: NotABlob}
	ErrRepositoryNotFound = &Error{Code: RepositoryNotFound}
	ErrCrossRepository    = &Error{Code: CrossRepository}
)

// Error carries a code, the path or revision it concerns and an optional
// underlying cause.
type Error struct {
	Code    Code
	Subject string
	Message string
	cause   error
}

// New creates an Error for subject (a path or revision, may be empty).
func New(code Code, subject, message string) *Error {
	return &Error{Code: code, Subject: subject, Message: message}
}

// Wrap creates an Error with an underlying cause.
func Wrap(code Code, subject string, cause error) *Error {
	return &Error{Code: code, Subject: subject, cause: cause}
}

// Errorf creates an Error with a formatted message.
func Errorf(code Code, subject, format string, args ...any) *Error {
	return &Error{Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessage(e.Code)
	}
	if e.Subject != "" {
		msg = e.Subject + ": " + msg
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsFatal reports whether err signals a violated assumption rather than an
// expected absence. Fatal errors terminate a run; everything else lets the
// caller fall back to another strategy or skip the file.
func IsFatal(err error) bool {
	switch CodeOf(err) {
	case DivergentPaths, CannotClimb:
		return true
	}
	return false
}

func defaultMessage(code Code) string {
	switch code {
	case NotFound:
		return "not found"
	case OutsideRepository:
		return "outside of any repository"
	case NotADirectory:
		return "not a directory"
	case CannotResolve:
		return "cannot resolve"
	case CannotClimb:
		return "can't climb out of dead path"
	case DivergentPaths:
		return "divergent paths"
	case NotACommit:
		return "not a commit"
	case NotABlob:
		return "entry is not a blob"
	case RepositoryNotFound:
		return "not a git repository"
	case CrossRepository:
		return "related file is in a different repository"
	}
	return string(code)
}
