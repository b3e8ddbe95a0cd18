package dashboard

import (
	"errors"
	"testing"

	"classroll/internal/attendance"
	"classroll/internal/directory"
)

var (
	users   = directory.Demo().List()
	admin   = users[0]
	student = users[1]
	teacher = users[2]
)

var sample = []attendance.Record{
	{ID: "5", UserID: "2", Date: "2024-01-12", Status: attendance.StatusPresent, Subject: "Math"},
	{ID: "4", UserID: "9", Date: "2024-01-11", Status: attendance.StatusAbsent, Subject: "Art"},
	{ID: "3", UserID: "2", Date: "2024-01-10", Status: attendance.StatusLate, CheckInTime: "08:40 AM", Subject: "Science"},
	{ID: "2", UserID: "2", Date: "2024-01-09", Status: attendance.StatusAbsent, Subject: "Math"},
	{ID: "1", UserID: "2", Date: "2024-01-08", Status: attendance.StatusPresent, Subject: "Math"},
}

func TestBuildDispatchesOnRole(t *testing.T) {
	reg := Default()

	tests := []struct {
		viewer directory.User
		check  func(any) bool
	}{
		{admin, func(v any) bool { _, ok := v.(AdminView); return ok }},
		{teacher, func(v any) bool { _, ok := v.(TeacherView); return ok }},
		{student, func(v any) bool { _, ok := v.(StudentView); return ok }},
	}
	for _, tt := range tests {
		v, err := reg.Build(Input{Viewer: tt.viewer, Records: sample, Users: users})
		if err != nil {
			t.Fatalf("Build(%s) failed: %v", tt.viewer.Role, err)
		}
		if !tt.check(v) {
			t.Errorf("Build(%s) returned %T", tt.viewer.Role, v)
		}
	}

	_, err := reg.Build(Input{Viewer: directory.User{Role: "GUEST"}})
	if !errors.Is(err, ErrUnknownRole) {
		t.Errorf("Expected ErrUnknownRole, got %v", err)
	}
}

func TestAdminAppliesFilter(t *testing.T) {
	v := Admin(Input{
		Viewer:  admin,
		Records: sample,
		Users:   users,
		Filter:  attendance.Filter{Subject: "Math", Start: "2024-01-09"},
	}).(AdminView)

	if v.Stats.Total != 2 || v.Stats.Present != 1 || v.Stats.Absent != 1 {
		t.Errorf("Unexpected stats: %+v", v.Stats)
	}
	if v.ByWeekday[1].Day != "Tuesday" || v.ByWeekday[1].Count != 1 {
		t.Errorf("Unexpected weekday breakdown: %+v", v.ByWeekday)
	}
	if len(v.Subjects) != 4 {
		t.Errorf("Expected subjects from unfiltered records, got %v", v.Subjects)
	}
	if v.StudentCount != 1 || len(v.Users) != 3 {
		t.Errorf("Unexpected user counts: %d students, %d users", v.StudentCount, len(v.Users))
	}
}

func TestTeacherRoster(t *testing.T) {
	v := Teacher(Input{Viewer: teacher, Records: sample, Users: users, Date: "2024-01-10"}).(TeacherView)

	if len(v.Roster) != 1 {
		t.Fatalf("Expected 1 student in roster, got %d", len(v.Roster))
	}
	if v.Roster[0].Status != attendance.StatusLate || v.Roster[0].CheckInTime != "08:40 AM" {
		t.Errorf("Unexpected roster entry: %+v", v.Roster[0])
	}

	empty := Teacher(Input{Viewer: teacher, Records: sample, Users: users, Date: "2024-02-01"}).(TeacherView)
	if empty.Roster[0].Status != "" || empty.Stats.Total != 0 {
		t.Errorf("Expected unmarked roster, got %+v", empty)
	}
}

func TestStudentSeesOnlyOwnRecords(t *testing.T) {
	v := Student(Input{Viewer: student, Records: sample}).(StudentView)

	if v.Stats.Total != 4 {
		t.Errorf("Expected 4 own records, got %d", v.Stats.Total)
	}
	if v.Stats.AttendanceRate != 50 {
		t.Errorf("Expected rate 50, got %v", v.Stats.AttendanceRate)
	}
	if len(v.Trend) != 4 || v.Trend[0].Date != "2024-01-08" {
		t.Errorf("Unexpected trend: %+v", v.Trend)
	}
	for _, r := range v.Recent {
		if r.UserID != student.ID {
			t.Errorf("Foreign record leaked: %+v", r)
		}
	}
}
