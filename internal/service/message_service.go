package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/warranty-portal/internal/clock"
	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/events"
	"github.com/spec-kit/warranty-portal/internal/repository"
	"github.com/spec-kit/warranty-portal/internal/workflow"
	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

const messagePreviewLength = 120

// MessageService owns the message log. Posting a message, the status
// transition it triggers and the counterpart notification commit together.
type MessageService struct {
	core
	engine   *workflow.Engine
	notifier *NotificationService
}

// MessageDependencies bundles collaborators for the message service.
type MessageDependencies struct {
	Store      repository.Store
	Engine     *workflow.Engine
	Notifier   *NotificationService
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// PostedMessage is the outcome of PostMessage.
type PostedMessage struct {
	Message    *domain.Message
	Ticket     *domain.Ticket
	Transition workflow.Transition
}

// NewMessageService constructs the service.
func NewMessageService(deps MessageDependencies) *MessageService {
	engine := deps.Engine
	if engine == nil {
		engine = workflow.NewEngine(workflow.Policy{})
	}
	return &MessageService{
		core:     newCore(deps.Store, deps.Dispatcher, deps.Clock, deps.Logger),
		engine:   engine,
		notifier: deps.Notifier,
	}
}

// PostMessage appends a message from actor and applies the message-driven
// transition. The actor must own the ticket or be staff.
func (s *MessageService) PostMessage(ctx context.Context, actor domain.Actor, ticketID, content string) (*PostedMessage, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("message content is required", map[string]any{"content": "required"})
	}

	var (
		result *PostedMessage
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

			msg := &domain.Message{
				ID:         uuid.NewString(),
				TicketID:   ticket.ID,
				SenderID:   actor.ID,
				SenderRole: actor.Role,
				Content:    content,
				CreatedAt:  now,
			}
			if err := tx.Messages().Create(ctx, msg); err != nil {
				return mapRepoError(err, "message", msg.ID)
			}

			tr := s.engine.ApplyMessage(ticket, actor.Role, now)
			if err := saveTicket(ctx, tx, ticket); err != nil {
				return err
			}
			if err := recordTransition(ctx, tx, actor, ticket.ID, tr, now); err != nil {
				return err
			}

			evts = append(evts, events.Event{
				Type:     events.EventMessagePosted,
				TicketID: ticket.ID,
				Actor:    eventActor(actor),
				Payload: events.MessagePostedPayload{
					MessageID:   msg.ID,
					SenderRole:  msg.SenderRole,
					Status:      ticket.Status,
					BodyPreview: stringPreview(msg.Content, messagePreviewLength),
				},
			})
			if tr.Changed() {
				evts = append(evts, statusEvent(actor, ticket.ID, tr))
			}
			if s.notifier != nil {
				evts = append(evts, s.notifier.NotifyCounterpart(ctx, tx, actor, ticket, Notice{
					Title:   "New message on ticket #" + formatNumber(ticket.TicketNumber),
					Message: stringPreview(msg.Content, messagePreviewLength),
				}, now)...)
			}

			result = &PostedMessage{Message: msg, Ticket: ticket, Transition: tr}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, evts)
	return result, nil
}

// ListMessages returns a ticket's messages oldest first.
func (s *MessageService) ListMessages(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.Message, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := loadTicket(ctx, s.store, actor, ticketID); err != nil {
		return nil, err
	}
	messages, err := s.store.Messages().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "message", "")
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}
