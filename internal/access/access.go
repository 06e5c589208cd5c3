// Package access carries the caller identity down to the ticket store, which
// enforces the write rules. Layers above the store never authorize on their own.
package access

import (
	"context"
	"errors"

	"github.com/spec-kit/repair-desk/internal/domain"
)

// ErrDenied is returned by the store when the actor may not perform the operation.
var ErrDenied = errors.New("access denied")

type actorKey struct{}

// Actor is the authenticated caller.
type Actor struct {
	UID          string
	Role         domain.Role
	TechnicianID *int
}

// WithActor returns a context carrying a.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// FromContext returns the actor, if any. A context without an actor belongs
// to a trusted in-process caller.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// CanCreate reports whether the caller may open tickets.
func CanCreate(ctx context.Context) error {
	a, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	if !a.Role.Valid() {
		return ErrDenied
	}
	return nil
}

// CanUpdate reports whether the caller may modify t. Technicians may only
// touch tickets assigned to them.
func CanUpdate(ctx context.Context, t *domain.Ticket) error {
	a, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	switch a.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleTechnician:
		if a.TechnicianID != nil && t.TechnicianID != nil && *a.TechnicianID == *t.TechnicianID {
			return nil
		}
	}
	return ErrDenied
}

// CanRead reports whether the caller may list tickets.
func CanRead(ctx context.Context) error {
	return CanCreate(ctx)
}
