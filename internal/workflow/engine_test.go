package workflow

import (
	"testing"
	"time"

	"github.com/spec-kit/warranty-portal/internal/domain"
	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

var (
	opened   = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	staff    = domain.Actor{ID: "staff-1", Role: domain.RoleStaff}
	customer = domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}
)

func solution(s domain.Solution) *domain.Solution { return &s }

func newTicket(status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{
		ID:        "ticket-1",
		OwnerID:   customer.ID,
		Status:    status,
		CreatedAt: opened,
		UpdatedAt: opened,
	}
}

func closedTicket(status domain.TicketStatus, s domain.Solution) *domain.Ticket {
	ticket := newTicket(status)
	closedAt := opened
	ticket.ClosedAt = &closedAt
	ticket.Solution = solution(s)
	return ticket
}

func TestApplyMessage(t *testing.T) {
	at := opened.Add(time.Hour)

	tests := []struct {
		name           string
		policy         Policy
		ticket         *domain.Ticket
		sender         domain.Role
		wantStatus     domain.TicketStatus
		wantSolution   *domain.Solution
		wantChanged    bool
		staffUnread    bool
		customerUnread bool
	}{
		{
			name:        "customer message hands ticket to staff",
			ticket:      newTicket(domain.TicketStatusAwaitingResponse),
			sender:      domain.RoleCustomer,
			wantStatus:  domain.TicketStatusInReview,
			wantChanged: true,
			staffUnread: true,
		},
		{
			name:           "staff message hands ticket to customer",
			ticket:         newTicket(domain.TicketStatusNew),
			sender:         domain.RoleStaff,
			wantStatus:     domain.TicketStatusAwaitingResponse,
			wantChanged:    true,
			customerUnread: true,
		},
		{
			name:        "repeat customer message keeps status",
			ticket:      newTicket(domain.TicketStatusInReview),
			sender:      domain.RoleCustomer,
			wantStatus:  domain.TicketStatusInReview,
			staffUnread: true,
		},
		{
			name:         "terminal ticket stays closed without reopen",
			ticket:       closedTicket(domain.TicketStatusApproved, domain.SolutionRepair),
			sender:       domain.RoleCustomer,
			wantStatus:   domain.TicketStatusApproved,
			wantSolution: solution(domain.SolutionRepair),
			staffUnread:  true,
		},
		{
			name:        "terminal ticket reopens when allowed",
			policy:      Policy{ReopenOnMessage: true},
			ticket:      closedTicket(domain.TicketStatusDenied, domain.SolutionDeniedJustified),
			sender:      domain.RoleCustomer,
			wantStatus:  domain.TicketStatusInReview,
			wantChanged: true,
			staffUnread: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			previousClosedAt := tc.ticket.ClosedAt
			tr := NewEngine(tc.policy).ApplyMessage(tc.ticket, tc.sender, at)

			if tc.ticket.Status != tc.wantStatus || tr.To != tc.wantStatus {
				t.Fatalf("expected status %s, got ticket=%s transition=%s", tc.wantStatus, tc.ticket.Status, tr.To)
			}
			if !sameSolution(tc.ticket.Solution, tc.wantSolution) {
				t.Fatalf("unexpected solution %v", tc.ticket.Solution)
			}
			if tr.Changed() != tc.wantChanged {
				t.Fatalf("expected changed=%v", tc.wantChanged)
			}
			if tc.ticket.StaffUnread != tc.staffUnread || tc.ticket.CustomerUnread != tc.customerUnread {
				t.Fatalf("unexpected unread flags staff=%v customer=%v", tc.ticket.StaffUnread, tc.ticket.CustomerUnread)
			}
			if !tc.ticket.UpdatedAt.Equal(at) {
				t.Fatalf("a message always bumps updated_at")
			}
			if previousClosedAt != nil && (tc.ticket.ClosedAt == nil || !tc.ticket.ClosedAt.Equal(*previousClosedAt)) {
				t.Fatalf("closed_at must survive the message")
			}
			if tr.Closed {
				t.Fatalf("a message never sets closed_at")
			}
		})
	}
}

func TestApplyExplicitReopenClearsSolution(t *testing.T) {
	ticket := closedTicket(domain.TicketStatusApproved, domain.SolutionReplacement)
	at := opened.Add(time.Hour)

	tr, err := NewEngine(Policy{}).ApplyExplicit(ticket, staff, domain.TicketStatusAwaitingShipment, nil, at)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if ticket.Solution != nil || tr.Solution != nil {
		t.Fatalf("leaving the terminal set clears the solution")
	}
	if !tr.StatusChanged() || !tr.SolutionChanged() {
		t.Fatalf("expected status and solution to move")
	}
	if ticket.ClosedAt == nil || !ticket.ClosedAt.Equal(opened) {
		t.Fatalf("closed_at must survive reopening")
	}
	if !ticket.CustomerUnread {
		t.Fatalf("customer should be flagged")
	}
}

func TestApplyExplicitKeepsFirstClosedAt(t *testing.T) {
	ticket := closedTicket(domain.TicketStatusDenied, domain.SolutionDeniedJustified)
	at := opened.Add(24 * time.Hour)

	tr, err := NewEngine(Policy{}).ApplyExplicit(ticket, staff, domain.TicketStatusCompleted, solution(domain.SolutionCredit), at)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if tr.Closed {
		t.Fatalf("closed_at was already set")
	}
	if !ticket.ClosedAt.Equal(opened) {
		t.Fatalf("expected closed_at %v, got %v", opened, *ticket.ClosedAt)
	}
	if *ticket.Solution != domain.SolutionCredit {
		t.Fatalf("expected new solution, got %s", *ticket.Solution)
	}
}

func TestApplyExplicitFirstClose(t *testing.T) {
	ticket := newTicket(domain.TicketStatusInReview)
	at := opened.Add(time.Hour)

	tr, err := NewEngine(Policy{}).ApplyExplicit(ticket, staff, domain.TicketStatusApproved, nil, at)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !tr.Closed || ticket.ClosedAt == nil || !ticket.ClosedAt.Equal(at) {
		t.Fatalf("first terminal status sets closed_at")
	}
	if ticket.Solution != nil {
		t.Fatalf("no solution was given")
	}
}

func TestApplyExplicitNoOpBumpsUpdatedAt(t *testing.T) {
	ticket := closedTicket(domain.TicketStatusCompleted, domain.SolutionRefund)
	at := opened.Add(time.Hour)

	tr, err := NewEngine(Policy{}).ApplyExplicit(ticket, staff, domain.TicketStatusCompleted, nil, at)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if tr.Changed() {
		t.Fatalf("same status and solution is not a change")
	}
	if ticket.CustomerUnread {
		t.Fatalf("a no-op must not flag the customer")
	}
	if !ticket.UpdatedAt.Equal(at) {
		t.Fatalf("explicit writes always bump updated_at")
	}
	if *ticket.Solution != domain.SolutionRefund {
		t.Fatalf("nil solution keeps the current one")
	}
}

func TestApplyExplicitRejects(t *testing.T) {
	tests := []struct {
		name     string
		actor    domain.Actor
		status   domain.TicketStatus
		solution *domain.Solution
		code     string
	}{
		{"customer actor", customer, domain.TicketStatusApproved, nil, apperrors.CodeForbidden},
		{"unknown status", staff, domain.TicketStatus("lost"), nil, apperrors.CodeValidation},
		{"unknown solution", staff, domain.TicketStatusApproved, solution("swap"), apperrors.CodeValidation},
		{"solution on open status", staff, domain.TicketStatusInReview, solution(domain.SolutionRepair), apperrors.CodeValidation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ticket := newTicket(domain.TicketStatusNew)
			_, err := NewEngine(Policy{}).ApplyExplicit(ticket, tc.actor, tc.status, tc.solution, opened.Add(time.Hour))
			if got := apperrors.KindOf(err); got != tc.code {
				t.Fatalf("expected %s, got %s (%v)", tc.code, got, err)
			}
			if ticket.Status != domain.TicketStatusNew || !ticket.UpdatedAt.Equal(opened) {
				t.Fatalf("a rejected write must leave the ticket untouched")
			}
		})
	}
}
