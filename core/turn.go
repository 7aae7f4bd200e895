package core

import (
	"time"
	"unicode/utf8"
)

// Role identifies who produced a turn in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the recognized turn roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// MaxContentLength is the upper bound on a single turn's content,
// in characters, not bytes.
const MaxContentLength = 10000

// Turn is one message in a conversation. Turns are append-only:
// once written they are never mutated, and they are ordered by
// CreatedAt.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateContent checks turn content against the length bounds.
// It returns a *ValidationError on violation so callers can reject
// input before touching any backend.
func ValidateContent(content string) error {
	if len(content) == 0 {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return &ValidationError{Field: "content", Reason: "exceeds maximum length"}
	}
	return nil
}

// ValidateRole checks that a role is a recognized turn role.
func ValidateRole(role Role) error {
	if !role.Valid() {
		return &ValidationError{Field: "role", Reason: "unrecognized role " + string(role)}
	}
	return nil
}
