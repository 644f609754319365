package auth

import (
	"context"

	"github.com/runfororg/runorg/pkg/users"
)

// UserContextKey is the key used to store the authenticated user in the
// request context.
//
// Using an empty struct as the key prevents collisions with other context
// keys, as each empty struct type is distinct even if they have the same
// name in different packages.
type UserContextKey struct{}

// WithUser stores the authenticated user in the context.
// If user is nil, the original context is returned unchanged.
func WithUser(ctx context.Context, user *users.User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, UserContextKey{}, user)
}

// UserFromContext retrieves the authenticated user from the context.
// Returns the user and true if present, nil and false otherwise.
func UserFromContext(ctx context.Context) (*users.User, bool) {
	user, ok := ctx.Value(UserContextKey{}).(*users.User)
	return user, ok
}
