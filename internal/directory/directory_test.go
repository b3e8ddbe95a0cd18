package directory

import (
	"errors"
	"testing"
)

func TestLoginKnownEmail(t *testing.T) {
	d := Demo()

	u, err := d.Login("sarah@school.edu")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if u.Role != RoleTeacher {
		t.Errorf("Expected TEACHER, got %s", u.Role)
	}
	if u.ID != "3" {
		t.Errorf("Expected id 3, got %s", u.ID)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	d := Demo()

	_, err := d.Login("nobody@school.edu")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestNameOfFallsBackToUnknown(t *testing.T) {
	d := Demo()

	if got := d.NameOf("2"); got != "John Student" {
		t.Errorf("Expected John Student, got %q", got)
	}
	if got := d.NameOf("99"); got != "Unknown" {
		t.Errorf("Expected Unknown, got %q", got)
	}
}

func TestNewSkipsDuplicates(t *testing.T) {
	d := New([]User{
		{ID: "a", Email: "a@x.io", Role: RoleStudent},
		{ID: "a", Email: "other@x.io", Role: RoleStudent},
		{ID: "b", Email: "a@x.io", Role: RoleStudent},
	})

	if n := len(d.List()); n != 1 {
		t.Fatalf("Expected 1 user, got %d", n)
	}
	if _, err := d.Login("other@x.io"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected duplicate id to be dropped, got %v", err)
	}
}

func TestWithRole(t *testing.T) {
	students := Demo().WithRole(RoleStudent)
	if len(students) != 1 || students[0].Name != "John Student" {
		t.Errorf("Unexpected students: %+v", students)
	}
	if Role("JANITOR").Valid() {
		t.Error("Expected unknown role to be invalid")
	}
}
