package dto

import (
	"strconv"
	"time"

	"github.com/spec-kit/repair-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CustomerName string `json:"customer_name" validate:"required,max=200"`
	Phone        string `json:"phone" validate:"max=40"`
	Address      string `json:"address" validate:"max=500"`
	City         string `json:"city" validate:"max=100"`

	ProductCategory string `json:"product_category" validate:"max=100"`
	ProductModel    string `json:"product_model" validate:"max=100"`
	SerialNumber    string `json:"serial_number" validate:"max=100"`
	WarrantyStatus  bool   `json:"warranty_status"`

	ServiceType      domain.ServiceType  `json:"service_type" validate:"required,service_type"`
	IssueDescription string              `json:"issue_description" validate:"max=4000"`
	Urgency          domain.UrgencyLevel `json:"urgency" validate:"required,urgency"`
	Notes            string              `json:"notes" validate:"max=4000"`

	TechnicianID   *int       `json:"technician_id" validate:"omitempty,gt=0"`
	ScheduledDate  *time.Time `json:"scheduled_date"`
	FeedbackRating *int       `json:"feedback_rating" validate:"omitempty,min=1,max=5"`

	ServiceCharge float64 `json:"service_charge" validate:"gte=0"`
	PartsCharge   float64 `json:"parts_charge" validate:"gte=0"`
	Commission    float64 `json:"commission" validate:"gte=0"`
}

// Draft converts the request. Status is not accepted on create.
func (r CreateTicketRequest) Draft() domain.TicketDraft {
	return domain.TicketDraft{
		CustomerName:     r.CustomerName,
		Phone:            r.Phone,
		Address:          r.Address,
		City:             r.City,
		ProductCategory:  r.ProductCategory,
		ProductModel:     r.ProductModel,
		SerialNumber:     r.SerialNumber,
		WarrantyStatus:   r.WarrantyStatus,
		ServiceType:      r.ServiceType,
		IssueDescription: r.IssueDescription,
		Urgency:          r.Urgency,
		Notes:            r.Notes,
		TechnicianID:     r.TechnicianID,
		ScheduledDate:    r.ScheduledDate,
		FeedbackRating:   r.FeedbackRating,
		ServiceCharge:    r.ServiceCharge,
		PartsCharge:      r.PartsCharge,
		Commission:       r.Commission,
	}
}

// Optional fields that UpdateTicketRequest.Clear may name.
const (
	ClearTechnician        = "technician_id"
	ClearScheduledDate     = "scheduled_date"
	ClearFeedbackRating    = "feedback_rating"
	ClearCustomerSignature = "customer_signature"
)

// UpdateTicketRequest is a partial update; absent fields are left alone.
// Identity fields (id, key, created_at) are not part of the payload and are
// ignored if sent.
type UpdateTicketRequest struct {
	CustomerName *string `json:"customer_name" validate:"omitempty,min=1,max=200"`
	Phone        *string `json:"phone" validate:"omitempty,max=40"`
	Address      *string `json:"address" validate:"omitempty,max=500"`
	City         *string `json:"city" validate:"omitempty,max=100"`

	ProductCategory *string `json:"product_category" validate:"omitempty,max=100"`
	ProductModel    *string `json:"product_model" validate:"omitempty,max=100"`
	SerialNumber    *string `json:"serial_number" validate:"omitempty,max=100"`
	WarrantyStatus  *bool   `json:"warranty_status"`

	ServiceType      *domain.ServiceType  `json:"service_type" validate:"omitempty,service_type"`
	IssueDescription *string              `json:"issue_description" validate:"omitempty,max=4000"`
	Urgency          *domain.UrgencyLevel `json:"urgency" validate:"omitempty,urgency"`
	Status           *domain.TicketStatus `json:"status" validate:"omitempty,ticket_status"`
	Notes            *string              `json:"notes" validate:"omitempty,max=4000"`

	TechnicianID      *int       `json:"technician_id" validate:"omitempty,gt=0"`
	ScheduledDate     *time.Time `json:"scheduled_date"`
	FeedbackRating    *int       `json:"feedback_rating" validate:"omitempty,min=1,max=5"`
	CustomerSignature *string    `json:"customer_signature"`
	Photos            *[]string  `json:"photos" validate:"omitempty,max=5"`

	ServiceCharge *float64 `json:"service_charge" validate:"omitempty,gte=0"`
	PartsCharge   *float64 `json:"parts_charge" validate:"omitempty,gte=0"`
	Commission    *float64 `json:"commission" validate:"omitempty,gte=0"`

	Clear []string `json:"clear" validate:"dive,oneof=technician_id scheduled_date feedback_rating customer_signature"`
}

// Patch converts the request.
func (r UpdateTicketRequest) Patch() domain.TicketPatch {
	p := domain.TicketPatch{
		CustomerName:      r.CustomerName,
		Phone:             r.Phone,
		Address:           r.Address,
		City:              r.City,
		ProductCategory:   r.ProductCategory,
		ProductModel:      r.ProductModel,
		SerialNumber:      r.SerialNumber,
		WarrantyStatus:    r.WarrantyStatus,
		ServiceType:       r.ServiceType,
		IssueDescription:  r.IssueDescription,
		Urgency:           r.Urgency,
		Status:            r.Status,
		Notes:             r.Notes,
		TechnicianID:      r.TechnicianID,
		ScheduledDate:     r.ScheduledDate,
		FeedbackRating:    r.FeedbackRating,
		CustomerSignature: r.CustomerSignature,
		Photos:            r.Photos,
		ServiceCharge:     r.ServiceCharge,
		PartsCharge:       r.PartsCharge,
		Commission:        r.Commission,
	}
	for _, field := range r.Clear {
		switch field {
		case ClearTechnician:
			p.ClearTechnician = true
		case ClearScheduledDate:
			p.ClearScheduledDate = true
		case ClearFeedbackRating:
			p.ClearFeedbackRating = true
		case ClearCustomerSignature:
			p.ClearCustomerSignature = true
		}
	}
	return p
}

// SignatureRequest carries a signature pad capture.
type SignatureRequest struct {
	DataURL string `json:"data_url" validate:"required"`
}

// TicketResponse is the wire shape of a ticket.
type TicketResponse struct {
	Key string `json:"key"`
	ID  string `json:"id"`

	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	City         string `json:"city"`

	ProductCategory string `json:"product_category"`
	ProductModel    string `json:"product_model"`
	SerialNumber    string `json:"serial_number"`
	WarrantyStatus  bool   `json:"warranty_status"`

	ServiceType      domain.ServiceType  `json:"service_type"`
	IssueDescription string              `json:"issue_description"`
	Urgency          domain.UrgencyLevel `json:"urgency"`
	Status           domain.TicketStatus `json:"status"`
	Notes            string              `json:"notes"`
	TechnicianID     *int                `json:"technician_id"`
	TechnicianName   string              `json:"technician_name,omitempty"`
	ScheduledDate    *time.Time          `json:"scheduled_date"`
	FeedbackRating   *int                `json:"feedback_rating"`
	Signature        string              `json:"customer_signature"`
	Photos           []string            `json:"photos"`

	ServiceCharge float64 `json:"service_charge"`
	PartsCharge   float64 `json:"parts_charge"`
	Commission    float64 `json:"commission"`
	TotalBill     float64 `json:"total_bill"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTicketResponse maps a ticket to its wire shape.
func NewTicketResponse(t domain.Ticket) TicketResponse {
	resp := TicketResponse{
		Key:              t.Key,
		ID:               t.ID,
		CustomerName:     t.CustomerName,
		Phone:            t.Phone,
		Address:          t.Address,
		City:             t.City,
		ProductCategory:  t.ProductCategory,
		ProductModel:     t.ProductModel,
		SerialNumber:     t.SerialNumber,
		WarrantyStatus:   t.WarrantyStatus,
		ServiceType:      t.ServiceType,
		IssueDescription: t.IssueDescription,
		Urgency:          t.Urgency,
		Status:           t.Status,
		Notes:            t.Notes,
		TechnicianID:     t.TechnicianID,
		ScheduledDate:    t.ScheduledDate,
		FeedbackRating:   t.FeedbackRating,
		Signature:        t.CustomerSignature,
		Photos:           t.Photos,
		ServiceCharge:    t.ServiceCharge,
		PartsCharge:      t.PartsCharge,
		Commission:       t.Commission,
		TotalBill:        t.TotalBill(),
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
	if t.TechnicianID != nil {
		if tech, ok := domain.TechnicianByID(*t.TechnicianID); ok {
			resp.TechnicianName = tech.Name
		}
	}
	if resp.Photos == nil {
		resp.Photos = []string{}
	}
	return resp
}

// NewTicketResponses maps a list.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, NewTicketResponse(t))
	}
	return out
}

// TicketListResponse is the live list with its sync status.
type TicketListResponse struct {
	State   string           `json:"state"`
	Stale   bool             `json:"stale"`
	Seq     uint64           `json:"seq"`
	Pending int              `json:"pending"`
	Error   *ErrorBody       `json:"error,omitempty"`
	Tickets []TicketResponse `json:"tickets"`
}

// TicketListQuery holds the list filters. "all" is accepted wherever a
// filter may be left open.
type TicketListQuery struct {
	Search     string `query:"q" json:"q" validate:"max=200"`
	Status     string `query:"status" json:"status" validate:"omitempty,eq=all|ticket_status"`
	Technician string `query:"technician" json:"technician" validate:"omitempty,eq=all|number"`
}

// Filter converts the query.
func (q TicketListQuery) Filter() domain.TicketFilter {
	f := domain.TicketFilter{Search: q.Search}
	if q.Status != "" && q.Status != "all" {
		f.Status = domain.TicketStatus(q.Status)
	}
	if id, err := strconv.Atoi(q.Technician); err == nil {
		f.TechnicianID = &id
	}
	return f
}

// TicketSummaryResponse carries the dashboard counters.
type TicketSummaryResponse struct {
	State          string `json:"state"`
	Stale          bool   `json:"stale"`
	Total          int    `json:"total"`
	Open           int    `json:"open"`
	CompletedToday int    `json:"completed_today"`
	HighUrgency    int    `json:"high_urgency"`
}

// NewTicketSummaryResponse maps the domain counters.
func NewTicketSummaryResponse(state string, stale bool, s domain.TicketSummary) TicketSummaryResponse {
	return TicketSummaryResponse{
		State:          state,
		Stale:          stale,
		Total:          s.Total,
		Open:           s.Open,
		CompletedToday: s.CompletedToday,
		HighUrgency:    s.HighUrgency,
	}
}

// ErrorBody mirrors the error envelope used by the HTTP middleware.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UploadResponse returns the stored asset URL.
type UploadResponse struct {
	URL string `json:"url"`
}

// TechnicianResponse is one roster entry.
type TechnicianResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
