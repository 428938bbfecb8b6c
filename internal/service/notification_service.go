package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/warranty-portal/internal/clock"
	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/events"
	"github.com/spec-kit/warranty-portal/internal/repository"
	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

const (
	defaultNotificationLimit = 10
	maxNotificationLimit     = 100
)

// NotificationService writes counterpart notifications and serves the
// recipient's inbox.
type NotificationService struct {
	core
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// NotificationPage is a slice of the inbox plus the unread total.
type NotificationPage struct {
	Items  []domain.Notification
	Unread int
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{core: newCore(deps.Store, deps.Dispatcher, deps.Clock, deps.Logger)}
}

// Notice is the content of a notification before recipients are resolved.
type Notice struct {
	Title   string
	Message string
}

// NotifyCounterpart inserts one notification per counterpart of actor on
// ticket inside tx. Staff actions notify the owner; customer actions notify
// every staff member except the actor. The inserts run in a nested scope so
// a failure is logged and rolled back without aborting tx. The returned
// events must be published after tx commits.
func (n *NotificationService) NotifyCounterpart(ctx context.Context, tx repository.Store, actor domain.Actor, ticket *domain.Ticket, notice Notice, at time.Time) []events.Event {
	var created []domain.Notification
	err := tx.InTx(ctx, func(scope repository.Store) error {
		created = created[:0]
		recipients, err := n.recipients(ctx, scope, actor, ticket)
		if err != nil {
			return err
		}
		for _, recipient := range recipients {
			ticketID := ticket.ID
			link := ticketLink(recipient.Role, ticket.ID)
			notification := domain.Notification{
				ID:        uuid.NewString(),
				UserID:    recipient.ID,
				TicketID:  &ticketID,
				Title:     notice.Title,
				Message:   notice.Message,
				Link:      &link,
				CreatedAt: at,
			}
			if err := scope.Notifications().Create(ctx, &notification); err != nil {
				return err
			}
			created = append(created, notification)
		}
		return nil
	})
	if err != nil {
		n.logger.Warn("notification insert failed; continuing without it",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return nil
	}

	evts := make([]events.Event, 0, len(created))
	for _, notification := range created {
		evts = append(evts, events.Event{
			Type:      events.EventNotificationCreated,
			TicketID:  ticket.ID,
			UserID:    notification.UserID,
			Actor:     eventActor(actor),
			Timestamp: at,
			Payload: events.NotificationCreatedPayload{
				NotificationID: notification.ID,
				Title:          notification.Title,
				Link:           notification.Link,
			},
		})
	}
	return evts
}

func (n *NotificationService) recipients(ctx context.Context, tx repository.Store, actor domain.Actor, ticket *domain.Ticket) ([]domain.Actor, error) {
	if actor.IsStaff() {
		if ticket.OwnerID == actor.ID {
			return nil, nil
		}
		return []domain.Actor{{ID: ticket.OwnerID, Role: domain.RoleCustomer}}, nil
	}
	staff, err := tx.Profiles().ListByRole(ctx, domain.RoleStaff)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Actor, 0, len(staff))
	for _, profile := range staff {
		if profile.ID != actor.ID {
			out = append(out, profile.Actor())
		}
	}
	return out, nil
}

// List returns the actor's newest notifications and the unread count.
// limit <= 0 selects the default page size.
func (n *NotificationService) List(ctx context.Context, actor domain.Actor, limit int) (*NotificationPage, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	items, err := n.store.Notifications().ListByUser(ctx, actor.ID, limit)
	if err != nil {
		return nil, mapRepoError(err, "notification", "")
	}
	unread, err := n.store.Notifications().CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, mapRepoError(err, "notification", "")
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return &NotificationPage{Items: items, Unread: unread}, nil
}

// MarkRead flags one notification as read. Only the recipient may do so.
func (n *NotificationService) MarkRead(ctx context.Context, actor domain.Actor, notificationID string) (*domain.Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var result *domain.Notification
	err := n.store.InTx(ctx, func(tx repository.Store) error {
		notification, err := tx.Notifications().GetByID(ctx, notificationID)
		if err != nil {
			return mapRepoError(err, "notification", notificationID)
		}
		if notification.UserID != actor.ID {
			return apperrors.NewForbidden("notification belongs to another user")
		}
		if !notification.Read {
			if err := tx.Notifications().MarkRead(ctx, notificationID); err != nil {
				return mapRepoError(err, "notification", notificationID)
			}
			notification.Read = true
		}
		result = notification
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkAllRead flags every unread notification of the actor and returns how
// many changed.
func (n *NotificationService) MarkAllRead(ctx context.Context, actor domain.Actor) (int, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	count, err := n.store.Notifications().MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, mapRepoError(err, "notification", "")
	}
	return count, nil
}
