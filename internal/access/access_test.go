package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/repair-desk/internal/domain"
)

func TestCanUpdate(t *testing.T) {
	two, three := 2, 3
	assigned := &domain.Ticket{TechnicianID: &two}
	unassigned := &domain.Ticket{}

	tests := []struct {
		name   string
		ctx    context.Context
		ticket *domain.Ticket
		denied bool
	}{
		{"system caller", context.Background(), unassigned, false},
		{"admin", WithActor(context.Background(), Actor{UID: "a", Role: domain.RoleAdmin}), unassigned, false},
		{"assigned technician", WithActor(context.Background(), Actor{UID: "t", Role: domain.RoleTechnician, TechnicianID: &two}), assigned, false},
		{"other technician", WithActor(context.Background(), Actor{UID: "t", Role: domain.RoleTechnician, TechnicianID: &three}), assigned, true},
		{"technician on unassigned", WithActor(context.Background(), Actor{UID: "t", Role: domain.RoleTechnician, TechnicianID: &two}), unassigned, true},
		{"unknown role", WithActor(context.Background(), Actor{UID: "x", Role: "guest"}), unassigned, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanUpdate(tt.ctx, tt.ticket)
			if tt.denied {
				assert.ErrorIs(t, err, ErrDenied)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCanCreate(t *testing.T) {
	assert.NoError(t, CanCreate(context.Background()))
	assert.NoError(t, CanCreate(WithActor(context.Background(), Actor{Role: domain.RoleTechnician})))
	assert.ErrorIs(t, CanCreate(WithActor(context.Background(), Actor{Role: "guest"})), ErrDenied)
	assert.ErrorIs(t, CanRead(WithActor(context.Background(), Actor{})), ErrDenied)
}
