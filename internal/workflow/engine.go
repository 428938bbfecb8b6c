// Package workflow is the single authority over ticket status. Services load a
// ticket, ask the engine to apply an event to it, and persist the result in
// the same transaction as the event's other effects.
package workflow

import (
	"time"

	"github.com/spec-kit/warranty-portal/internal/domain"
	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

// Policy carries the configurable workflow rules.
type Policy struct {
	// ReopenOnMessage lets a message move a terminal ticket back into the
	// conversation states. When false the message is stored but status,
	// solution and closed_at stay as they are.
	ReopenOnMessage bool
}

// Engine applies message-driven and explicit transitions to tickets.
type Engine struct {
	policy Policy
}

// NewEngine constructs an engine with the given policy.
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Transition describes what an event did to a ticket.
type Transition struct {
	From             domain.TicketStatus
	To               domain.TicketStatus
	PreviousSolution *domain.Solution
	Solution         *domain.Solution
	// Closed is true when this event set closed_at.
	Closed bool
}

// StatusChanged reports whether the status value moved.
func (t Transition) StatusChanged() bool {
	return t.From != t.To
}

// SolutionChanged reports whether the solution value moved.
func (t Transition) SolutionChanged() bool {
	return !sameSolution(t.PreviousSolution, t.Solution)
}

// Changed reports whether status or solution moved.
func (t Transition) Changed() bool {
	return t.StatusChanged() || t.SolutionChanged()
}

// MessageTarget is the status a message from role asks for.
func MessageTarget(role domain.Role) domain.TicketStatus {
	if role == domain.RoleStaff {
		return domain.TicketStatusAwaitingResponse
	}
	return domain.TicketStatusInReview
}

// ApplyMessage recomputes status after sender posted a message at time at.
// Staff messages hand the ticket to the customer, customer messages hand it
// to staff. Terminal tickets only move when the policy allows reopening.
func (e *Engine) ApplyMessage(ticket *domain.Ticket, sender domain.Role, at time.Time) Transition {
	tr := Transition{
		From:             ticket.Status,
		To:               ticket.Status,
		PreviousSolution: ticket.Solution,
		Solution:         ticket.Solution,
	}

	if sender == domain.RoleStaff {
		ticket.CustomerUnread = true
	} else {
		ticket.StaffUnread = true
	}
	ticket.UpdatedAt = at

	if ticket.IsTerminal() && !e.policy.ReopenOnMessage {
		return tr
	}
	e.moveTo(ticket, &tr, MessageTarget(sender), at)
	return tr
}

// ApplyExplicit sets status (and optionally solution) on behalf of staff.
// A solution is only accepted together with a terminal status. Leaving the
// solution nil on a terminal status keeps the current one.
func (e *Engine) ApplyExplicit(ticket *domain.Ticket, actor domain.Actor, status domain.TicketStatus, solution *domain.Solution, at time.Time) (Transition, error) {
	if !actor.IsStaff() {
		return Transition{}, apperrors.NewForbidden("only staff may change ticket status")
	}
	if !status.Valid() {
		return Transition{}, apperrors.NewValidationError("unknown status", map[string]any{"status": status})
	}
	if solution != nil {
		if !solution.Valid() {
			return Transition{}, apperrors.NewValidationError("unknown solution", map[string]any{"solution": *solution})
		}
		if !status.Terminal() {
			return Transition{}, apperrors.NewValidationError("solution requires an approved, denied or completed status", map[string]any{
				"status":   status,
				"solution": *solution,
			})
		}
	}

	tr := Transition{
		From:             ticket.Status,
		To:               ticket.Status,
		PreviousSolution: ticket.Solution,
		Solution:         ticket.Solution,
	}
	e.moveTo(ticket, &tr, status, at)
	if solution != nil {
		value := *solution
		ticket.Solution = &value
		tr.Solution = ticket.Solution
	}
	if tr.Changed() {
		ticket.CustomerUnread = true
	}
	ticket.UpdatedAt = at
	return tr, nil
}

func (e *Engine) moveTo(ticket *domain.Ticket, tr *Transition, status domain.TicketStatus, at time.Time) {
	ticket.Status = status
	tr.To = status
	if !status.Terminal() && ticket.Solution != nil {
		ticket.Solution = nil
		tr.Solution = nil
	}
	if status.Terminal() && ticket.ClosedAt == nil {
		closedAt := at
		ticket.ClosedAt = &closedAt
		tr.Closed = true
	}
}

func sameSolution(a, b *domain.Solution) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
