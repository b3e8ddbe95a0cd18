// Package dashboard assembles the per-role dashboard payloads.
package dashboard

import (
	"errors"
	"fmt"

	"classroll/internal/attendance"
	"classroll/internal/directory"
)

// ErrUnknownRole is returned when no builder is registered for a role.
var ErrUnknownRole = errors.New("no dashboard for role")

// Input is everything a builder may draw from. Records holds the
// records visible to the viewer, most recent first.
type Input struct {
	Viewer  directory.User
	Records []attendance.Record
	Users   []directory.User
	Filter  attendance.Filter
	// Date selects the roster day for the teacher view.
	Date string
}

// Builder produces the dashboard payload for one role.
type Builder func(in Input) any

// Registry maps roles to builders.
type Registry map[directory.Role]Builder

// Default returns the standard admin, teacher and student builders.
func Default() Registry {
	return Registry{
		directory.RoleAdmin:   Admin,
		directory.RoleTeacher: Teacher,
		directory.RoleStudent: Student,
	}
}

// Build runs the builder registered for in.Viewer.Role.
func (r Registry) Build(in Input) (any, error) {
	b, ok := r[in.Viewer.Role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, in.Viewer.Role)
	}
	return b(in), nil
}

// AdminView is the school-wide analytics view.
type AdminView struct {
	Role         directory.Role            `json:"role"`
	Stats        attendance.Stats          `json:"stats"`
	Breakdown    []attendance.Slice        `json:"breakdown"`
	ByWeekday    []attendance.WeekdayCount `json:"byWeekday"`
	Subjects     []string                  `json:"subjects"`
	StudentCount int                       `json:"studentCount"`
	Users        []directory.User          `json:"users"`
}

// Admin builds the admin view. Subjects are listed from the unfiltered
// records so the filter options do not shrink as filters are applied.
func Admin(in Input) any {
	filtered := in.Filter.Apply(in.Records)
	stats := attendance.Summarize(filtered)
	students := 0
	for _, u := range in.Users {
		if u.Role == directory.RoleStudent {
			students++
		}
	}
	return AdminView{
		Role:         directory.RoleAdmin,
		Stats:        stats,
		Breakdown:    attendance.Breakdown(stats),
		ByWeekday:    attendance.ByWeekday(filtered),
		Subjects:     attendance.Subjects(in.Records),
		StudentCount: students,
		Users:        in.Users,
	}
}

// RosterEntry is one student's mark for the roster day. Status is empty
// when the student has not been marked.
type RosterEntry struct {
	User        directory.User    `json:"user"`
	Status      attendance.Status `json:"status,omitempty"`
	CheckInTime string            `json:"checkInTime,omitempty"`
}

// TeacherView is the class roster for one day.
type TeacherView struct {
	Role   directory.Role   `json:"role"`
	Date   string           `json:"date"`
	Roster []RosterEntry    `json:"roster"`
	Stats  attendance.Stats `json:"stats"`
}

// Teacher builds the roster view for in.Date.
func Teacher(in Input) any {
	day := attendance.Filter{Start: in.Date, End: in.Date}.Apply(in.Records)
	byUser := make(map[string]attendance.Record, len(day))
	for _, r := range day {
		if _, seen := byUser[r.UserID]; !seen {
			byUser[r.UserID] = r
		}
	}

	roster := []RosterEntry{}
	for _, u := range in.Users {
		if u.Role != directory.RoleStudent {
			continue
		}
		entry := RosterEntry{User: u}
		if r, ok := byUser[u.ID]; ok {
			entry.Status = r.Status
			entry.CheckInTime = r.CheckInTime
		}
		roster = append(roster, entry)
	}
	return TeacherView{
		Role:   directory.RoleTeacher,
		Date:   in.Date,
		Roster: roster,
		Stats:  attendance.Summarize(day),
	}
}

// StudentView is a student's personal summary.
type StudentView struct {
	Role      directory.Role          `json:"role"`
	Stats     attendance.Stats        `json:"stats"`
	Breakdown []attendance.Slice      `json:"breakdown"`
	Trend     []attendance.TrendPoint `json:"trend"`
	Recent    []attendance.Record     `json:"recent"`
}

// Student builds the view over the viewer's own records.
func Student(in Input) any {
	own := make([]attendance.Record, 0, len(in.Records))
	for _, r := range in.Records {
		if r.UserID == in.Viewer.ID {
			own = append(own, r)
		}
	}
	stats := attendance.Summarize(own)
	return StudentView{
		Role:      directory.RoleStudent,
		Stats:     stats,
		Breakdown: attendance.Breakdown(stats),
		Trend:     attendance.Trend(own, 7),
		Recent:    attendance.Recent(own, 5),
	}
}
