package app

import (
	"fmt"
	"time"
)

type StatusKind string

const (
	StatusFloating     StatusKind = "Floating"
	StatusLeave        StatusKind = "Leave"
	StatusWorkFromHome StatusKind = "WFH"
)

func ParseStatusKind(s string) (StatusKind, error) {
	switch k := StatusKind(s); k {
	case StatusFloating, StatusLeave, StatusWorkFromHome:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
}

type ApprovalState string

const (
	StatePending  ApprovalState = "Pending"
	StateApproved ApprovalState = "Approved"
	StateRejected ApprovalState = "Rejected"
)

func ParseApprovalState(s string) (ApprovalState, error) {
	switch st := ApprovalState(s); st {
	case StatePending, StateApproved, StateRejected:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown approval state %q", ErrInvalidInput, s)
}

type Role string

const (
	RoleEmployee Role = "Employee"
	RoleManager  Role = "Manager"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleEmployee, RoleManager:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// DateLayout is the ISO-8601 calendar date format used on the wire and on disk.
const DateLayout = "2006-01-02"

// Date is a calendar day in YYYY-MM-DD form. Dates compare correctly as strings.
type Date string

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: invalid date %q", ErrInvalidInput, s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

func (d Date) Time() time.Time {
	t, _ := time.Parse(DateLayout, string(d))
	return t
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool { return d < o }
func (d Date) After(o Date) bool  { return d > o }

func (d Date) String() string { return string(d) }

type AvailabilityRecord struct {
	Owner  string        `json:"owner"`
	Kind   StatusKind    `json:"status"`
	Date   Date          `json:"date"`
	State  ApprovalState `json:"approval_status"`
	Team   string        `json:"team"`
	Unread int           `json:"unread"`
}

func (r AvailabilityRecord) Key() RecordKey {
	return RecordKey{Owner: r.Owner, Date: r.Date}
}

// RecordKey identifies a record; at most one record exists per owner and day.
type RecordKey struct {
	Owner string `json:"owner" binding:"required"`
	Date  Date   `json:"date" binding:"required"`
}

func (k RecordKey) String() string {
	return k.Owner + "@" + string(k.Date)
}

type Identity struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
	Team         string `json:"team"`
}
