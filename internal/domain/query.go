package domain

import (
	"strings"
	"time"
)

// TicketFilter narrows a ticket list. Zero values match everything.
type TicketFilter struct {
	// Search is matched case-insensitively against the human ID, customer
	// name, product model and serial number.
	Search       string
	Status       TicketStatus
	TechnicianID *int
}

// Match reports whether t passes every set criterion.
func (f TicketFilter) Match(t Ticket) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.TechnicianID != nil && (t.TechnicianID == nil || *t.TechnicianID != *f.TechnicianID) {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}
	for _, field := range []string{t.ID, t.CustomerName, t.ProductModel, t.SerialNumber} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// FilterTickets returns the tickets that match f, keeping their order.
func FilterTickets(tickets []Ticket, f TicketFilter) []Ticket {
	out := make([]Ticket, 0, len(tickets))
	for _, t := range tickets {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// TicketSummary holds the dashboard counters.
type TicketSummary struct {
	Total int
	// Open counts tickets that are neither completed nor closed.
	Open           int
	CompletedToday int
	// HighUrgency counts high-urgency tickets that are not closed.
	HighUrgency int
}

// Summarize computes the counters. "Today" is the calendar day of now in
// now's location.
func Summarize(tickets []Ticket, now time.Time) TicketSummary {
	y, m, d := now.Date()
	s := TicketSummary{Total: len(tickets)}
	for _, t := range tickets {
		if t.Status != TicketStatusCompleted && t.Status != TicketStatusClosed {
			s.Open++
		}
		if t.Status == TicketStatusCompleted {
			ty, tm, td := t.UpdatedAt.In(now.Location()).Date()
			if ty == y && tm == m && td == d {
				s.CompletedToday++
			}
		}
		if t.Urgency == UrgencyHigh && t.Status != TicketStatusClosed {
			s.HighUrgency++
		}
	}
	return s
}
