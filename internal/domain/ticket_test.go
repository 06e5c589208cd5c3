package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

func ptr[T any](v T) *T { return &v }

func sampleDraft() TicketDraft {
	return TicketDraft{
		CustomerName:     "Alice Williams",
		Phone:            "123-456-7890",
		Address:          "123 Main St",
		City:             "Metropolis",
		ProductCategory:  "Television",
		ProductModel:     "Sony Bravia X90J",
		SerialNumber:     "SN12345678",
		WarrantyStatus:   true,
		ServiceType:      ServiceTypeServiceWarranty,
		IssueDescription: "Screen is flickering.",
		Urgency:          UrgencyHigh,
	}
}

func TestDraftNewTicket_ForcesNewStatusAndTimestamps(t *testing.T) {
	at := time.Date(2024, time.July, 3, 10, 0, 0, 0, time.UTC)
	tk := sampleDraft().NewTicket("doc-1", "PE-JUL24-001", at)

	assert.Equal(t, TicketStatusNew, tk.Status)
	assert.Equal(t, at, tk.CreatedAt)
	assert.Equal(t, tk.CreatedAt, tk.UpdatedAt)
	assert.NotNil(t, tk.Photos)
	assert.Empty(t, tk.Photos)
}

func TestTicketPatch_ApplyOnlyTouchesSetFields(t *testing.T) {
	at := time.Date(2024, time.July, 3, 10, 0, 0, 0, time.UTC)
	tk := sampleDraft().NewTicket("doc-1", "PE-JUL24-001", at)
	before := tk.Clone()

	TicketPatch{ServiceCharge: ptr(50.0)}.Apply(tk)

	assert.Equal(t, 50.0, tk.ServiceCharge)
	tk.ServiceCharge = before.ServiceCharge
	assert.Equal(t, before, tk.Clone())
}

func TestTicketPatch_ClearFlags(t *testing.T) {
	when := time.Date(2024, time.July, 9, 0, 0, 0, 0, time.UTC)
	tk := &Ticket{TechnicianID: ptr(2), ScheduledDate: &when, FeedbackRating: ptr(4), CustomerSignature: "https://files/sig.png"}

	TicketPatch{ClearTechnician: true, ClearScheduledDate: true, ClearFeedbackRating: true, ClearCustomerSignature: true}.Apply(tk)

	assert.Nil(t, tk.TechnicianID)
	assert.Nil(t, tk.ScheduledDate)
	assert.Nil(t, tk.FeedbackRating)
	assert.Empty(t, tk.CustomerSignature)
}

func TestTicketPatch_AppendPhotoChecksStoredRow(t *testing.T) {
	tk := &Ticket{Photos: []string{"a", "b"}}
	patch := TicketPatch{AppendPhoto: ptr("c"), PhotoLimit: 3}

	require.NoError(t, patch.Check(tk))
	patch.Apply(tk)
	assert.Equal(t, []string{"a", "b", "c"}, tk.Photos)

	assert.ErrorIs(t, patch.Check(tk), ErrPhotoLimit)
	assert.False(t, patch.IsEmpty())
	assert.True(t, TicketPatch{PhotoLimit: 3}.IsEmpty())
}

func TestTicketPatch_MergeLaterWins(t *testing.T) {
	first := TicketPatch{Notes: ptr("first"), TechnicianID: ptr(1)}
	second := TicketPatch{Notes: ptr("second"), ClearTechnician: true}

	merged := first.Merge(second)

	assert.Equal(t, "second", *merged.Notes)
	assert.Nil(t, merged.TechnicianID)
	assert.True(t, merged.ClearTechnician)
}

func TestTicketPatch_Validate(t *testing.T) {
	photos := []string{"1", "2", "3", "4", "5", "6"}
	tests := []struct {
		name  string
		patch TicketPatch
		field string
	}{
		{"empty", TicketPatch{}, "patch"},
		{"rating too high", TicketPatch{FeedbackRating: ptr(6)}, "feedback_rating"},
		{"negative charge", TicketPatch{PartsCharge: ptr(-1.0)}, "parts_charge"},
		{"photo cap", TicketPatch{Photos: &photos}, "photos"},
		{"bad status", TicketPatch{Status: ptr(TicketStatus("Reopened"))}, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate(DefaultMaxPhotos)
			require.Error(t, err)
			de := apperrors.ToDomainError(err)
			assert.Equal(t, apperrors.CodeValidation, de.Code)
			assert.Contains(t, de.Details, tt.field)
		})
	}

	assert.NoError(t, TicketPatch{Status: ptr(TicketStatusClosed)}.Validate(DefaultMaxPhotos))
}

func TestDraftValidate(t *testing.T) {
	require.NoError(t, sampleDraft().Validate(DefaultMaxPhotos))

	bad := sampleDraft()
	bad.Urgency = "Critical"
	assert.True(t, apperrors.IsCode(bad.Validate(DefaultMaxPhotos), apperrors.CodeValidation))
}

func TestStatusRank(t *testing.T) {
	assert.Less(t, TicketStatusNew.Rank(), TicketStatusClosed.Rank())
	assert.Equal(t, -1, TicketStatus("Lost").Rank())
}

func TestTotalBill(t *testing.T) {
	tk := Ticket{ServiceCharge: 75, PartsCharge: 20, Commission: 15}
	assert.Equal(t, 95.0, tk.TotalBill())
}
