package core

import "fmt"

// ValidationError reports malformed caller input (content length,
// unrecognized role, out-of-range trait scale). It is always returned
// before any collaborator call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a referenced companion or thread that does
// not exist.
type NotFoundError struct {
	Kind string // "companion", "thread"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ProviderError reports a language-model or embedding backend
// failure. The response pipeline absorbs these and degrades to a
// fallback reply; they never abort a conversation turn.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StorageError reports a checkpoint, log, or index backend failure.
// Recall and append side effects absorb these; explicit clear and
// statistics operations propagate them since they have no safe
// fallback value.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
