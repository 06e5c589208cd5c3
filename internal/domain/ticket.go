package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "New"
	TicketStatusAssigned   TicketStatus = "Assigned"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusCompleted  TicketStatus = "Completed"
	TicketStatusClosed     TicketStatus = "Closed"
)

// TicketStatuses lists statuses in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusNew,
	TicketStatusAssigned,
	TicketStatusInProgress,
	TicketStatusCompleted,
	TicketStatusClosed,
}

// Rank returns the lifecycle position of s, or -1 when s is unknown.
// Transitions are not restricted to increasing rank.
func (s TicketStatus) Rank() int {
	for i, candidate := range TicketStatuses {
		if candidate == s {
			return i
		}
	}
	return -1
}

func (s TicketStatus) Valid() bool { return s.Rank() >= 0 }

// UrgencyLevel enumerates how soon a visit is needed.
type UrgencyLevel string

const (
	UrgencyLow    UrgencyLevel = "Low"
	UrgencyMedium UrgencyLevel = "Medium"
	UrgencyHigh   UrgencyLevel = "High"
)

func (u UrgencyLevel) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// ServiceType classifies the job.
type ServiceType string

const (
	ServiceTypeInstallation    ServiceType = "Installation"
	ServiceTypeProductDemo     ServiceType = "Product Demo"
	ServiceTypeServicePaid     ServiceType = "Service - Paid"
	ServiceTypeServiceWarranty ServiceType = "Service - Warranty"
)

func (s ServiceType) Valid() bool {
	switch s {
	case ServiceTypeInstallation, ServiceTypeProductDemo, ServiceTypeServicePaid, ServiceTypeServiceWarranty:
		return true
	}
	return false
}

// Billable reports whether the job is charged to the customer.
func (s ServiceType) Billable() bool {
	return s == ServiceTypeServicePaid || s == ServiceTypeInstallation
}

// DefaultMaxPhotos bounds Ticket.Photos.
const DefaultMaxPhotos = 5

// Ticket is the aggregate for a service request.
type Ticket struct {
	Key string
	ID  string

	CustomerName string
	Phone        string
	Address      string
	City         string

	ProductCategory string
	ProductModel    string
	SerialNumber    string
	WarrantyStatus  bool

	ServiceType      ServiceType
	IssueDescription string
	Urgency          UrgencyLevel
	Status           TicketStatus
	Notes            string

	TechnicianID      *int
	ScheduledDate     *time.Time
	FeedbackRating    *int
	CustomerSignature string
	Photos            []string

	ServiceCharge float64
	PartsCharge   float64
	Commission    float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TotalBill is what the customer pays; commission is internal.
func (t *Ticket) TotalBill() float64 {
	return t.ServiceCharge + t.PartsCharge
}

// Clone returns a deep copy safe to hand to another goroutine.
func (t Ticket) Clone() Ticket {
	out := t
	if t.TechnicianID != nil {
		v := *t.TechnicianID
		out.TechnicianID = &v
	}
	if t.ScheduledDate != nil {
		v := *t.ScheduledDate
		out.ScheduledDate = &v
	}
	if t.FeedbackRating != nil {
		v := *t.FeedbackRating
		out.FeedbackRating = &v
	}
	out.Photos = append([]string(nil), t.Photos...)
	if out.Photos == nil {
		out.Photos = []string{}
	}
	return out
}

// TicketDraft carries the caller-supplied fields of a new ticket.
type TicketDraft struct {
	CustomerName string
	Phone        string
	Address      string
	City         string

	ProductCategory string
	ProductModel    string
	SerialNumber    string
	WarrantyStatus  bool

	ServiceType      ServiceType
	IssueDescription string
	Urgency          UrgencyLevel
	Notes            string

	TechnicianID   *int
	ScheduledDate  *time.Time
	FeedbackRating *int
	Photos         []string

	ServiceCharge float64
	PartsCharge   float64
	Commission    float64
}

// NewTicket builds the persisted shape of a draft. Status is always New and
// both timestamps are at.
func (d TicketDraft) NewTicket(key, id string, at time.Time) *Ticket {
	t := &Ticket{
		Key:              key,
		ID:               id,
		CustomerName:     d.CustomerName,
		Phone:            d.Phone,
		Address:          d.Address,
		City:             d.City,
		ProductCategory:  d.ProductCategory,
		ProductModel:     d.ProductModel,
		SerialNumber:     d.SerialNumber,
		WarrantyStatus:   d.WarrantyStatus,
		ServiceType:      d.ServiceType,
		IssueDescription: d.IssueDescription,
		Urgency:          d.Urgency,
		Status:           TicketStatusNew,
		Notes:            d.Notes,
		TechnicianID:     d.TechnicianID,
		ScheduledDate:    d.ScheduledDate,
		FeedbackRating:   d.FeedbackRating,
		Photos:           d.Photos,
		ServiceCharge:    d.ServiceCharge,
		PartsCharge:      d.PartsCharge,
		Commission:       d.Commission,
		CreatedAt:        at,
		UpdatedAt:        at,
	}
	normalized := t.Clone()
	return &normalized
}
