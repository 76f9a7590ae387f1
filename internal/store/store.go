// Package store provides durable per-user key/value persistence for the
// code timer record. Keys are structured (user, field) pairs; no string
// concatenation or ad hoc key parsing.
package store

import (
	"context"
	"fmt"
)

// Timer record field names. These are the complete persisted surface: the
// record is overwritten on generate, mutated on every attempt, and read
// once at session start.
const (
	FieldEndTime        = "end_time"         // epoch milliseconds
	FieldCurrentCode    = "current_code"     // the active code value
	FieldIsTimerRunning = "is_timer_running" // "true" / "false"
	FieldRemainingTries = "remaining_tries"  // decimal integer
	FieldOwningUserID   = "owning_user_id"   // invalidates stale state on user switch
)

// Key addresses one persisted field of one user's record.
type Key struct {
	UserID string
	Field  string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.UserID, k.Field)
}

// Store is the durable key/value collaborator. Implementations must make
// SetMany atomic per user so concurrent writers never interleave a
// half-written record.
type Store interface {
	// Get returns the stored value for key. The bool reports presence;
	// a missing key is not an error.
	Get(ctx context.Context, key Key) (string, bool, error)

	// Set writes a single field.
	Set(ctx context.Context, key Key, value string) error

	// SetMany writes several fields of one user's record atomically.
	SetMany(ctx context.Context, userID string, fields map[string]string) error

	// Close releases the underlying resources.
	Close() error
}

// PersistenceError wraps a storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
