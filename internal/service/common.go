package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/warranty-portal/internal/clock"
	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/events"
	"github.com/spec-kit/warranty-portal/internal/repository"
	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

// core carries the collaborators every service shares.
type core struct {
	store      repository.Store
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

func newCore(store repository.Store, dispatcher events.Dispatcher, clk clock.Clock, logger *zap.Logger) core {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return core{store: store, dispatcher: dispatcher, clock: clk, logger: logger}
}

// now returns the current time truncated to the storage precision, pushed
// past after so successive writes to one ticket are strictly increasing.
func (c core) now(after time.Time) time.Time {
	now := c.clock.Now().UTC().Truncate(time.Microsecond)
	if !after.IsZero() && !now.After(after) {
		now = after.Add(time.Microsecond)
	}
	return now
}

// publish hands committed events to the dispatcher.
func (c core) publish(ctx context.Context, evts []events.Event) {
	if c.dispatcher == nil {
		return
	}
	for _, event := range evts {
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = c.clock.Now().UTC()
		}
		_ = c.dispatcher.Publish(ctx, event)
	}
}

// loadTicket fetches a ticket and checks the actor may touch it.
func loadTicket(ctx context.Context, store repository.Store, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	if !actor.CanAccess(ticket) {
		return nil, apperrors.NewForbidden("ticket belongs to another customer")
	}
	return ticket, nil
}

func requireActor(actor domain.Actor) error {
	if actor.ID == "" || !actor.Role.Valid() {
		return apperrors.NewUnauthorized("unknown actor")
	}
	return nil
}

func requireStaff(actor domain.Actor, action string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsStaff() {
		return apperrors.NewForbidden("only staff may " + action)
	}
	return nil
}

// mapRepoError translates repository sentinels into domain errors.
func mapRepoError(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	case errors.Is(err, repository.ErrStaleVersion):
		return apperrors.NewConflict(resource+" was modified concurrently", map[string]any{"id": id})
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", map[string]any{"id": id})
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewInternalError(err)
}

// withConflictRetry runs fn and, if it lost an optimistic race, runs it once
// more before surfacing a Conflict.
func withConflictRetry(ctx context.Context, logger *zap.Logger, fn func() error) error {
	err := fn()
	if !isStale(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	logger.Debug("retrying after stale version", zap.Error(err))
	err = fn()
	if isStale(err) {
		return apperrors.NewConflict("ticket was modified concurrently; reload and retry", nil)
	}
	return err
}

func isStale(err error) bool {
	return errors.Is(err, repository.ErrStaleVersion)
}

// saveTicket writes the ticket under optimistic concurrency. A lost race is
// returned as repository.ErrStaleVersion so withConflictRetry can see it.
func saveTicket(ctx context.Context, store repository.Store, ticket *domain.Ticket) error {
	err := store.Tickets().Update(ctx, ticket, ticket.Version)
	if err == nil || errors.Is(err, repository.ErrStaleVersion) {
		return err
	}
	return mapRepoError(err, "ticket", ticket.ID)
}

func eventActor(actor domain.Actor) events.Actor {
	return events.Actor{ID: actor.ID, Role: actor.Role}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func ticketLink(role domain.Role, ticketID string) string {
	if role == domain.RoleStaff {
		return "/admin/tickets/" + ticketID
	}
	return "/portal/tickets/" + ticketID
}
