package app

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrRange              = errors.New("start date is after end date")
	ErrDuplicate          = errors.New("duplicate record")
	ErrNotFound           = errors.New("record not found")
	ErrTransition         = errors.New("invalid approval transition")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrUnknownTeam        = errors.New("unknown team")
	ErrInvalidCredentials = errors.New("invalid username or password")

	// errUnchanged aborts an update that has nothing to write.
	errUnchanged = errors.New("no changes")
)

type RangeError struct {
	Start, End Date
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("start date %s is after end date %s", e.Start, e.End)
}

func (e *RangeError) Is(target error) bool { return target == ErrRange }

// DuplicateError reports a declaration identical to an existing record.
type DuplicateError struct {
	Owner string
	Kind  StatusKind
	Date  Date
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate record found for %s on %s (%s)", e.Owner, e.Date, e.Kind)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

type NotFoundError struct {
	Key RecordKey
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no availability record found for %s on %s", e.Key.Owner, e.Key.Date)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type TransitionError struct {
	Key      RecordKey
	From, To ApprovalState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("record %s is %s and cannot become %s", e.Key, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrTransition }
