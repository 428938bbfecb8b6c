package domain

import "time"

// TicketStatus enumerates lifecycle states for warranty claims.
type TicketStatus string

const (
	TicketStatusNew              TicketStatus = "new"
	TicketStatusInReview         TicketStatus = "in_review"
	TicketStatusAwaitingResponse TicketStatus = "awaiting_response"
	TicketStatusAwaitingShipment TicketStatus = "awaiting_shipment"
	TicketStatusApproved         TicketStatus = "approved"
	TicketStatusDenied           TicketStatus = "denied"
	TicketStatusCompleted        TicketStatus = "completed"
)

// TicketStatuses lists every status in workflow order.
var TicketStatuses = []TicketStatus{
	TicketStatusNew,
	TicketStatusInReview,
	TicketStatusAwaitingResponse,
	TicketStatusAwaitingShipment,
	TicketStatusApproved,
	TicketStatusDenied,
	TicketStatusCompleted,
}

// Valid reports whether s belongs to the status enum.
func (s TicketStatus) Valid() bool {
	for _, candidate := range TicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Terminal reports whether s fixes closed_at: approved, denied or completed.
func (s TicketStatus) Terminal() bool {
	switch s {
	case TicketStatusApproved, TicketStatusDenied, TicketStatusCompleted:
		return true
	}
	return false
}

// Solution is the resolution category applied to a terminal ticket.
type Solution string

const (
	SolutionReplacement     Solution = "replacement"
	SolutionRepair          Solution = "repair"
	SolutionCredit          Solution = "credit"
	SolutionRefund          Solution = "refund"
	SolutionDeniedJustified Solution = "denied_justified"
)

// Valid reports whether s belongs to the solution enum.
func (s Solution) Valid() bool {
	switch s {
	case SolutionReplacement, SolutionRepair, SolutionCredit, SolutionRefund, SolutionDeniedJustified:
		return true
	}
	return false
}

// TicketFields holds the descriptive, staff-editable part of a ticket.
type TicketFields struct {
	ProductName       string     `validate:"required,min=3"`
	Brand             string     `validate:"required"`
	Model             string     `validate:"required"`
	SKU               string     `validate:"omitempty,max=64"`
	IssueDescription  string     `validate:"required"`
	BatchNumber       string     `validate:"omitempty,max=64"`
	ManufacturingDate *time.Time `validate:"-"`
}

// Ticket is the warranty claim aggregate.
type Ticket struct {
	ID           string
	TicketNumber int64
	OwnerID      string
	TicketFields
	Status         TicketStatus
	Solution       *Solution
	CustomerUnread bool
	StaffUnread    bool
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClosedAt       *time.Time
}

// IsTerminal reports whether the ticket currently sits in a terminal status.
func (t *Ticket) IsTerminal() bool {
	return t.Status.Terminal()
}
