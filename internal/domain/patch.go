package domain

import (
	"errors"
	"time"
)

// ErrPhotoLimit is returned when an appended photo would exceed PhotoLimit.
var ErrPhotoLimit = errors.New("photo limit reached")

// TicketPatch is a partial update. A nil pointer leaves the field untouched;
// the Clear flags reset optional fields. Key, ID and CreatedAt have no field
// here and can never be changed through an update.
type TicketPatch struct {
	CustomerName *string
	Phone        *string
	Address      *string
	City         *string

	ProductCategory *string
	ProductModel    *string
	SerialNumber    *string
	WarrantyStatus  *bool

	ServiceType      *ServiceType
	IssueDescription *string
	Urgency          *UrgencyLevel
	Status           *TicketStatus
	Notes            *string

	TechnicianID      *int
	ScheduledDate     *time.Time
	FeedbackRating    *int
	CustomerSignature *string
	Photos            *[]string
	// AppendPhoto adds one URL to the stored list. PhotoLimit, when set, is
	// checked against the row being updated, under the same lock as the write.
	AppendPhoto *string
	PhotoLimit  int

	ServiceCharge *float64
	PartsCharge   *float64
	Commission    *float64

	ClearTechnician        bool
	ClearScheduledDate     bool
	ClearFeedbackRating    bool
	ClearCustomerSignature bool
}

// IsEmpty reports whether applying the patch would change nothing but UpdatedAt.
func (p TicketPatch) IsEmpty() bool {
	return p == (TicketPatch{PhotoLimit: p.PhotoLimit})
}

// Check reports whether the patch can be applied to t as it is stored now.
func (p TicketPatch) Check(t *Ticket) error {
	if p.AppendPhoto != nil && p.PhotoLimit > 0 && len(t.Photos) >= p.PhotoLimit {
		return ErrPhotoLimit
	}
	return nil
}

// Apply merges the patch into t. UpdatedAt is the caller's responsibility.
func (p TicketPatch) Apply(t *Ticket) {
	setString(&t.CustomerName, p.CustomerName)
	setString(&t.Phone, p.Phone)
	setString(&t.Address, p.Address)
	setString(&t.City, p.City)
	setString(&t.ProductCategory, p.ProductCategory)
	setString(&t.ProductModel, p.ProductModel)
	setString(&t.SerialNumber, p.SerialNumber)
	setString(&t.IssueDescription, p.IssueDescription)
	setString(&t.Notes, p.Notes)
	setString(&t.CustomerSignature, p.CustomerSignature)

	if p.WarrantyStatus != nil {
		t.WarrantyStatus = *p.WarrantyStatus
	}
	if p.ServiceType != nil {
		t.ServiceType = *p.ServiceType
	}
	if p.Urgency != nil {
		t.Urgency = *p.Urgency
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.ServiceCharge != nil {
		t.ServiceCharge = *p.ServiceCharge
	}
	if p.PartsCharge != nil {
		t.PartsCharge = *p.PartsCharge
	}
	if p.Commission != nil {
		t.Commission = *p.Commission
	}
	if p.Photos != nil {
		t.Photos = append([]string{}, (*p.Photos)...)
	}
	if p.AppendPhoto != nil {
		t.Photos = append(append([]string{}, t.Photos...), *p.AppendPhoto)
	}

	if p.ClearTechnician {
		t.TechnicianID = nil
	} else if p.TechnicianID != nil {
		v := *p.TechnicianID
		t.TechnicianID = &v
	}
	if p.ClearScheduledDate {
		t.ScheduledDate = nil
	} else if p.ScheduledDate != nil {
		v := p.ScheduledDate.UTC()
		t.ScheduledDate = &v
	}
	if p.ClearFeedbackRating {
		t.FeedbackRating = nil
	} else if p.FeedbackRating != nil {
		v := *p.FeedbackRating
		t.FeedbackRating = &v
	}
	if p.ClearCustomerSignature {
		t.CustomerSignature = ""
	}
}

// Merge layers next on top of p; fields set in next win.
func (p TicketPatch) Merge(next TicketPatch) TicketPatch {
	out := p
	mergePtr(&out.CustomerName, next.CustomerName)
	mergePtr(&out.Phone, next.Phone)
	mergePtr(&out.Address, next.Address)
	mergePtr(&out.City, next.City)
	mergePtr(&out.ProductCategory, next.ProductCategory)
	mergePtr(&out.ProductModel, next.ProductModel)
	mergePtr(&out.SerialNumber, next.SerialNumber)
	mergePtr(&out.WarrantyStatus, next.WarrantyStatus)
	mergePtr(&out.ServiceType, next.ServiceType)
	mergePtr(&out.IssueDescription, next.IssueDescription)
	mergePtr(&out.Urgency, next.Urgency)
	mergePtr(&out.Status, next.Status)
	mergePtr(&out.Notes, next.Notes)
	mergePtr(&out.Photos, next.Photos)
	mergePtr(&out.AppendPhoto, next.AppendPhoto)
	if next.PhotoLimit > 0 {
		out.PhotoLimit = next.PhotoLimit
	}
	mergePtr(&out.ServiceCharge, next.ServiceCharge)
	mergePtr(&out.PartsCharge, next.PartsCharge)
	mergePtr(&out.Commission, next.Commission)

	if next.TechnicianID != nil || next.ClearTechnician {
		out.TechnicianID, out.ClearTechnician = next.TechnicianID, next.ClearTechnician
	}
	if next.ScheduledDate != nil || next.ClearScheduledDate {
		out.ScheduledDate, out.ClearScheduledDate = next.ScheduledDate, next.ClearScheduledDate
	}
	if next.FeedbackRating != nil || next.ClearFeedbackRating {
		out.FeedbackRating, out.ClearFeedbackRating = next.FeedbackRating, next.ClearFeedbackRating
	}
	if next.CustomerSignature != nil || next.ClearCustomerSignature {
		out.CustomerSignature, out.ClearCustomerSignature = next.CustomerSignature, next.ClearCustomerSignature
	}
	return out
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func mergePtr[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}
