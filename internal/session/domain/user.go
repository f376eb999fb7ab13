package domain

import (
	"net/mail"
	"strings"
)

// User is the signed-in identity handed over by the auth flow and kept under
// the session's currentUser key.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsStaff  bool   `json:"is_staff"`
	IsActive bool   `json:"is_active"`
}

func (u User) Validate() error {
	if u.ID <= 0 {
		return fieldError("id", "must be positive")
	}
	if strings.TrimSpace(u.Name) == "" {
		return fieldError("name", "is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fieldError("email", "is not a valid address")
	}
	return nil
}

type InvalidUserError struct {
	Field  string
	Reason string
}

func (e *InvalidUserError) Error() string {
	return "user " + e.Field + " " + e.Reason
}

func fieldError(field, reason string) error {
	return &InvalidUserError{Field: field, Reason: reason}
}
