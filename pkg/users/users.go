// Package users is the user directory: lookup-or-create of local users
// keyed by their verified email address.
//
// The auth core only ever reaches users through the Directory interface;
// everything else about user persistence lives behind it.
package users

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no user exists for the given email.
var ErrNotFound = errors.New("user not found")

// User is a local user record. Email is the unique key and is always stored
// in its canonical lower-cased form.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName *string   `json:"firstname,omitempty"`
	LastName  *string   `json:"lastname,omitempty"`
	CreatedAt time.Time `json:"-"`
}

// Directory looks up and provisions local users by verified email.
type Directory interface {
	// GetByEmail returns the user for the canonical email, or ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create inserts a user for the canonical email. If a concurrent caller
	// already created the row, the existing user is returned instead; the
	// unique constraint on email guarantees at most one row per address.
	Create(ctx context.Context, email string) (*User, error)
}
