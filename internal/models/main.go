// Package models defines the data shapes exchanged with the Kongtze backend.
// Every record is a value snapshot owned by the backend; identifiers always
// come from the server and are never assigned on the client.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// User is an account, either a parent (email + password) or a student (PIN).
type User struct {
	// UserID is the backend identifier.
	UserID int `json:"user_id"`
	// Name is the display name.
	Name string `json:"name"`
	// Email is set for parents only.
	Email *string `json:"email,omitempty"`
	// IsParent distinguishes parent accounts from student accounts.
	IsParent  bool      `json:"is_parent"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// UserCreateParent is the payload of POST /auth/register/parent.
type UserCreateParent struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=100"`
}

// UserCreateStudent is the payload of POST /auth/register/student.
type UserCreateStudent struct {
	Name string `json:"name" validate:"required,max=255"`
	PIN  string `json:"pin" validate:"required,pin"`
}

// UserLogin carries exactly one of two credential modes: Email+Password for
// parents or PIN for students.
type UserLogin struct {
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Password string `json:"password,omitempty"`
	PIN      string `json:"pin,omitempty" validate:"omitempty,pin"`
}

// Token is the bearer credential returned by login and parent registration.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Timestamp decodes the backend's ISO-8601 datetimes, which may or may not
// carry a zone offset.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON accepts null, RFC 3339 and zone-less ISO datetimes (read as UTC).
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unsupported format %q", s)
}

// MarshalJSON writes RFC 3339 with nanoseconds, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}
