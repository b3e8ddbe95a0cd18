// Package directory holds the fixed set of known users and resolves logins.
package directory

import (
	"errors"
	"strings"
)

// Role selects which dashboard and permissions a user gets.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
)

// ErrNotFound is returned when no user matches a lookup.
var ErrNotFound = errors.New("user not found")

// User is an immutable identity record.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// Directory is a read-only user lookup.
type Directory struct {
	users   []User
	byID    map[string]User
	byEmail map[string]User
}

// New indexes the given users. Later duplicates of an id or email are ignored.
func New(users []User) *Directory {
	d := &Directory{
		byID:    make(map[string]User, len(users)),
		byEmail: make(map[string]User, len(users)),
	}
	for _, u := range users {
		if _, dup := d.byID[u.ID]; dup {
			continue
		}
		if _, dup := d.byEmail[u.Email]; dup {
			continue
		}
		d.users = append(d.users, u)
		d.byID[u.ID] = u
		d.byEmail[u.Email] = u
	}
	return d
}

// Demo returns the seeded demo directory.
func Demo() *Directory {
	return New([]User{
		{ID: "1", Name: "Alice Admin", Email: "admin@school.edu", Role: RoleAdmin, Avatar: "https://picsum.photos/id/64/200/200"},
		{ID: "2", Name: "John Student", Email: "john@student.edu", Role: RoleStudent, Avatar: "https://picsum.photos/id/65/200/200"},
		{ID: "3", Name: "Sarah Teacher", Email: "sarah@school.edu", Role: RoleTeacher, Avatar: "https://picsum.photos/id/66/200/200"},
	})
}

// Lookup returns the user with the given id.
func (d *Directory) Lookup(id string) (User, bool) {
	u, ok := d.byID[id]
	return u, ok
}

// NameOf returns the display name for id, or "Unknown".
func (d *Directory) NameOf(id string) string {
	if u, ok := d.byID[id]; ok {
		return u.Name
	}
	return "Unknown"
}

// Login resolves an email to its user. There is no password check.
func (d *Directory) Login(email string) (User, error) {
	u, ok := d.byEmail[strings.TrimSpace(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// List returns every user in seed order.
func (d *Directory) List() []User {
	out := make([]User, len(d.users))
	copy(out, d.users)
	return out
}

// WithRole returns users having role, in seed order.
func (d *Directory) WithRole(role Role) []User {
	var out []User
	for _, u := range d.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStudent, RoleTeacher:
		return true
	}
	return false
}
