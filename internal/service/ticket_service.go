package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/warranty-portal/internal/clock"
	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/events"
	"github.com/spec-kit/warranty-portal/internal/repository"
	"github.com/spec-kit/warranty-portal/internal/storage"
	"github.com/spec-kit/warranty-portal/internal/validation"
	"github.com/spec-kit/warranty-portal/internal/workflow"
	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

// TicketService coordinates the ticket store, the workflow engine and the
// notification side effects of ticket writes.
type TicketService struct {
	core
	engine    *workflow.Engine
	validator *validation.TicketValidator
	notifier  *NotificationService
	uploader  *uploader
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store          repository.Store
	Engine         *workflow.Engine
	Validator      *validation.TicketValidator
	Notifier       *NotificationService
	Blobs          storage.BlobStore
	Dispatcher     events.Dispatcher
	Clock          clock.Clock
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// TicketCreateInput describes ticket creation payload. OwnerID defaults to
// the actor; staff must name the customer they file on behalf of.
type TicketCreateInput struct {
	OwnerID string
	Fields  domain.TicketFields
}

// TicketCreation is the outcome of CreateTicket.
type TicketCreation struct {
	Ticket      *domain.Ticket
	Attachments []domain.Attachment
	Failed      []UploadFailure
}

// TicketListFilter describes listing filters shared by owner and staff views.
type TicketListFilter struct {
	Statuses    []domain.TicketStatus
	Brand       *string
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketFieldsPatch carries a partial edit of descriptive fields. Nil means
// unchanged; an empty string clears an optional field.
type TicketFieldsPatch struct {
	ProductName            *string
	Brand                  *string
	Model                  *string
	SKU                    *string
	IssueDescription       *string
	BatchNumber            *string
	ManufacturingDate      *time.Time
	ClearManufacturingDate bool
}

// StatusChange is the outcome of an explicit status write.
type StatusChange struct {
	Ticket     *domain.Ticket
	Transition workflow.Transition
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	c := newCore(deps.Store, deps.Dispatcher, deps.Clock, deps.Logger)
	engine := deps.Engine
	if engine == nil {
		engine = workflow.NewEngine(workflow.Policy{})
	}
	validator := deps.Validator
	if validator == nil {
		validator = validation.NewTicketValidator(domain.DefaultBrandPolicy(), validation.DefaultMinIssueLength)
	}
	return &TicketService{
		core:      c,
		engine:    engine,
		validator: validator,
		notifier:  deps.Notifier,
		uploader:  newUploader(deps.Blobs, deps.MaxUploadBytes, c.logger),
	}
}

// CreateTicket opens a claim with its evidence files. At least one file is
// required. Files that fail to store are reported in the result; when none
// can be stored nothing is persisted.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput, files []Upload) (*TicketCreation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ownerID, err := s.resolveOwner(ctx, actor, input.OwnerID)
	if err != nil {
		return nil, err
	}

	fields := input.Fields
	validation.Normalize(&fields)
	if err := s.validator.Validate(fields); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperrors.NewValidationError("at least one file is required", map[string]any{"files": "required"})
	}

	now := s.now(time.Time{})
	ticket := &domain.Ticket{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		TicketFields: fields,
		Status:       domain.TicketStatusNew,
		StaffUnread:  !actor.IsStaff(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if actor.IsStaff() {
		ticket.CustomerUnread = true
	}

	stored, failed := s.uploader.putAll(ctx, actor, ticket, files, now)
	if len(stored) == 0 {
		return nil, batchError(failed)
	}

	var evts []events.Event
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		evts = evts[:0]
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return mapRepoError(err, "ticket", ticket.ID)
		}
		for i := range stored {
			if err := tx.Attachments().Create(ctx, &stored[i]); err != nil {
				return mapRepoError(err, "attachment", stored[i].ID)
			}
		}
		if err := recordHistory(ctx, tx, actor, ticket.ID, domain.ChangeTypeCreated, nil, map[string]any{
			"status": ticket.Status,
		}, now); err != nil {
			return err
		}
		evts = append(evts, events.Event{
			Type:     events.EventTicketCreated,
			TicketID: ticket.ID,
			Actor:    eventActor(actor),
			Payload: events.TicketCreatedPayload{
				TicketNumber: ticket.TicketNumber,
				OwnerID:      ticket.OwnerID,
				Brand:        ticket.Brand,
				Model:        ticket.Model,
				Status:       ticket.Status,
			},
		})
		for _, attachment := range stored {
			evts = append(evts, attachmentEvent(events.EventAttachmentAdded, actor, attachment))
		}
		evts = append(evts, s.notify(ctx, tx, actor, ticket, Notice{
			Title:   "New ticket #" + formatNumber(ticket.TicketNumber),
			Message: ticket.ProductName + " (" + ticket.Brand + ")",
		}, now)...)
		return nil
	})
	if err != nil {
		s.uploader.discard(ctx, stored)
		return nil, err
	}

	s.publish(ctx, evts)
	return &TicketCreation{Ticket: ticket, Attachments: stored, Failed: failed}, nil
}

func (s *TicketService) resolveOwner(ctx context.Context, actor domain.Actor, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if !actor.IsStaff() {
		if requested != "" && requested != actor.ID {
			return "", apperrors.NewForbidden("customers may only open tickets for themselves")
		}
		return actor.ID, nil
	}
	if requested == "" {
		return "", apperrors.NewValidationError("owner is required when staff opens a ticket", map[string]any{"owner_id": "required"})
	}
	owner, err := s.store.Profiles().GetByID(ctx, requested)
	if err != nil {
		return "", mapRepoError(err, "profile", requested)
	}
	if owner.Role != domain.RoleCustomer {
		return "", apperrors.NewValidationError("ticket owner must be a customer", map[string]any{"owner_id": "not a customer"})
	}
	return owner.ID, nil
}

// GetTicket returns a ticket visible to the actor.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return loadTicket(ctx, s.store, actor, ticketID)
}

// ListTicketsForOwner lists one customer's tickets, newest first.
func (s *TicketService) ListTicketsForOwner(ctx context.Context, actor domain.Actor, ownerID string, filter TicketListFilter) ([]domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if ownerID == "" {
		ownerID = actor.ID
	}
	if !actor.IsStaff() && ownerID != actor.ID {
		return nil, apperrors.NewForbidden("customers may only list their own tickets")
	}
	repoFilter := toRepoFilter(filter)
	repoFilter.OwnerID = &ownerID
	return s.list(ctx, repoFilter)
}

// ListAllTickets lists every ticket. Staff only.
func (s *TicketService) ListAllTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	if err := requireStaff(actor, "list all tickets"); err != nil {
		return nil, err
	}
	return s.list(ctx, toRepoFilter(filter))
}

func (s *TicketService) list(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": status})
		}
	}
	tickets, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err, "ticket", "")
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

func toRepoFilter(filter TicketListFilter) repository.TicketFilter {
	return repository.TicketFilter{
		Statuses:    filter.Statuses,
		Brand:       filter.Brand,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
}

// UpdateTicketFields edits descriptive fields. Staff only. The merged fields
// are validated again, so a brand change re-applies the brand rules.
func (s *TicketService) UpdateTicketFields(ctx context.Context, actor domain.Actor, ticketID string, patch TicketFieldsPatch) (*domain.Ticket, error) {
	if err := requireStaff(actor, "edit ticket fields"); err != nil {
		return nil, err
	}

	var (
		result *domain.Ticket
		evts   []events.Event
	)
	err := withConflictRetry(ctx, s.logger, func() error {
		return s.store.InTx(ctx, func(tx repository.Store) error {
			evts = evts[:0]
			ticket, err := loadTicket(ctx, tx, actor, ticketID)
			if err != nil {
				return err
			}
			merged := applyPatch(ticket.TicketFields, patch)
			validation.Normalize(&merged)
			oldValues, newValues := diffFields(ticket.TicketFields, merged)
			if len(newValues) == 0 {
				result = ticket
				return nil
			}
			if err := s.validator.Validate(merged); err != nil {
				return err
			}

			now := s.now(ticket.UpdatedAt)
			ticket.TicketFields = merged
			ticket.UpdatedAt = now
			if err := saveTicket(ctx, tx, ticket); err != nil {
				return err
			}
			if err := recordHistory(ctx, tx, actor, ticket.ID, domain.ChangeTypeFields, oldValues, newValues, now); err != nil {
				return err
			}
			changed := make([]string, 0, len(newValues))
			for _, name := range fieldOrder {
				if _, ok := newValues[name]; ok {
					changed = append(changed, name)
				}
			}
			evts = append(evts, events.Event{
				Type:     events.EventTicketUpdated,
				TicketID: ticket.ID,
				Actor:    eventActor(actor),
				Payload:  events.TicketUpdatedPayload{Fields: changed},
			})
			result = ticket
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, evts)
	return result, nil
}

var fieldOrder = []string{
	"product_name", "brand", "model", "sku", "issue_description", "batch_number", "manufacturing_date",
}

func applyPatch(fields domain.TicketFields, patch TicketFieldsPatch) domain.TicketFields {
	if patch.ProductName != nil {
		fields.ProductName = *patch.ProductName
	}
	if patch.Brand != nil {
		fields.Brand = *patch.Brand
	}
	if patch.Model != nil {
		fields.Model = *patch.Model
	}
	if patch.SKU != nil {
		fields.SKU = *patch.SKU
	}
	if patch.IssueDescription != nil {
		fields.IssueDescription = *patch.IssueDescription
	}
	if patch.BatchNumber != nil {
		fields.BatchNumber = *patch.BatchNumber
	}
	if patch.ClearManufacturingDate {
		fields.ManufacturingDate = nil
	} else if patch.ManufacturingDate != nil {
		date := *patch.ManufacturingDate
		fields.ManufacturingDate = &date
	}
	return fields
}

func diffFields(before, after domain.TicketFields) (map[string]any, map[string]any) {
	oldValues := map[string]any{}
	newValues := map[string]any{}
	compare := func(name, a, b string) {
		if a != b {
			oldValues[name] = a
			newValues[name] = b
		}
	}
	compare("product_name", before.ProductName, after.ProductName)
	compare("brand", before.Brand, after.Brand)
	compare("model", before.Model, after.Model)
	compare("sku", before.SKU, after.SKU)
	compare("issue_description", before.IssueDescription, after.IssueDescription)
	compare("batch_number", before.BatchNumber, after.BatchNumber)
	compare("manufacturing_date", formatDate(before.ManufacturingDate), formatDate(after.ManufacturingDate))
	return oldValues, newValues
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// SetExplicitStatus sets status, optionally with a solution. Staff only.
func (s *TicketService) SetExplicitStatus(ctx context.Context, actor domain.Actor, ticketID string, status domain.TicketStatus, solution *domain.Solution) (*StatusChange, error) {
	if err := requireStaff(actor, "change ticket status"); err != nil {
		return nil, err
	}

	var (
		result *StatusChange
		evts   []events.Event
	)
	err := withConflictRetry(ctx, s.logger, func() error {
		return s.store.InTx(ctx, func(tx repository.Store) error {
			evts = evts[:0]
			ticket, err := loadTicket(ctx, tx, actor, ticketID)
			if err != nil {
				return err
			}
			now := s.now(ticket.UpdatedAt)
			tr, err := s.engine.ApplyExplicit(ticket, actor, status, solution, now)
			if err != nil {
				return err
			}
			if err := saveTicket(ctx, tx, ticket); err != nil {
				return err
			}
			if err := recordTransition(ctx, tx, actor, ticket.ID, tr, now); err != nil {
				return err
			}
			if tr.Changed() {
				evts = append(evts, statusEvent(actor, ticket.ID, tr))
				evts = append(evts, s.notify(ctx, tx, actor, ticket, statusNotice(ticket, tr), now)...)
			}
			result = &StatusChange{Ticket: ticket, Transition: tr}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, evts)
	return result, nil
}

// MarkTicketRead clears the actor's unread flag without touching updated_at.
func (s *TicketService) MarkTicketRead(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var result *domain.Ticket
	err := withConflictRetry(ctx, s.logger, func() error {
		return s.store.InTx(ctx, func(tx repository.Store) error {
			ticket, err := loadTicket(ctx, tx, actor, ticketID)
			if err != nil {
				return err
			}
			result = ticket
			if actor.IsStaff() {
				if !ticket.StaffUnread {
					return nil
				}
				ticket.StaffUnread = false
			} else {
				if !ticket.CustomerUnread {
					return nil
				}
				ticket.CustomerUnread = false
			}
			return saveTicket(ctx, tx, ticket)
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListHistory returns the ticket's audit trail oldest first. Customers see
// status and solution entries only.
func (s *TicketService) ListHistory(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketHistory, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := loadTicket(ctx, s.store, actor, ticketID); err != nil {
		return nil, err
	}
	history, err := s.store.History().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket history", ticketID)
	}
	allowed := make([]domain.TicketHistory, 0, len(history))
	for _, entry := range history {
		if actor.IsStaff() || entry.VisibleToCustomer() {
			allowed = append(allowed, entry)
		}
	}
	return allowed, nil
}

func (s *TicketService) notify(ctx context.Context, tx repository.Store, actor domain.Actor, ticket *domain.Ticket, notice Notice, at time.Time) []events.Event {
	if s.notifier == nil {
		return nil
	}
	return s.notifier.NotifyCounterpart(ctx, tx, actor, ticket, notice, at)
}

func statusNotice(ticket *domain.Ticket, tr workflow.Transition) Notice {
	title := "Ticket #" + formatNumber(ticket.TicketNumber) + " updated"
	message := "Status: " + string(tr.To)
	if tr.Solution != nil {
		message += ", solution: " + string(*tr.Solution)
	}
	return Notice{Title: title, Message: message}
}

func statusEvent(actor domain.Actor, ticketID string, tr workflow.Transition) events.Event {
	return events.Event{
		Type:     events.EventStatusChanged,
		TicketID: ticketID,
		Actor:    eventActor(actor),
		Payload: events.StatusChangedPayload{
			OldStatus:   tr.From,
			NewStatus:   tr.To,
			OldSolution: tr.PreviousSolution,
			NewSolution: tr.Solution,
			Closed:      tr.Closed,
		},
	}
}

// recordTransition writes status and solution history entries for tr.
func recordTransition(ctx context.Context, tx repository.Store, actor domain.Actor, ticketID string, tr workflow.Transition, at time.Time) error {
	if tr.StatusChanged() {
		if err := recordHistory(ctx, tx, actor, ticketID, domain.ChangeTypeStatus,
			map[string]any{"status": tr.From},
			map[string]any{"status": tr.To, "closed": tr.Closed}, at); err != nil {
			return err
		}
	}
	if tr.SolutionChanged() {
		if err := recordHistory(ctx, tx, actor, ticketID, domain.ChangeTypeSolution,
			map[string]any{"solution": solutionValue(tr.PreviousSolution)},
			map[string]any{"solution": solutionValue(tr.Solution)}, at); err != nil {
			return err
		}
	}
	return nil
}

func recordHistory(ctx context.Context, tx repository.Store, actor domain.Actor, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any, at time.Time) error {
	entry := &domain.TicketHistory{
		ID:          uuid.NewString(),
		TicketID:    ticketID,
		ChangedBy:   actor.ID,
		ChangedRole: actor.Role,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
		CreatedAt:   at,
	}
	if err := tx.History().Create(ctx, entry); err != nil {
		return mapRepoError(err, "ticket history", entry.ID)
	}
	return nil
}

func solutionValue(s *domain.Solution) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func formatNumber(n int64) string {
	return strconv.FormatInt(n, 10)
}
