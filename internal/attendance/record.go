package attendance

import (
	"errors"
	"time"
)

// Status is the outcome recorded for one user on one date.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
	StatusLate    Status = "LATE"
	StatusExcused Status = "EXCUSED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// DateLayout is the calendar date format used for Record.Date.
const DateLayout = "2006-01-02"

// DefaultSubject is stored when a write carries no subject.
const DefaultSubject = "General"

// ErrInvalidInput is returned for writes that cannot be stored.
var ErrInvalidInput = errors.New("invalid attendance input")

// Record is one user's attendance for one calendar date.
// UserName is copied from the directory when the record is created.
type Record struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	Date        string `json:"date"`
	Status      Status `json:"status"`
	CheckInTime string `json:"checkInTime,omitempty"`
	Subject     string `json:"subject,omitempty"`
}

// UpsertInput carries the fields a caller may set when marking attendance.
type UpsertInput struct {
	UserID      string `json:"userId" binding:"required"`
	Date        string `json:"date" binding:"required"`
	Status      Status `json:"status" binding:"required"`
	CheckInTime string `json:"checkInTime"`
	Subject     string `json:"subject"`
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
