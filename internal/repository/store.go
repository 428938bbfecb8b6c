package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/warranty-portal/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("repository: record not found")
	// ErrStaleVersion is returned when an optimistic update lost the race.
	ErrStaleVersion = errors.New("repository: stale version")
	// ErrDuplicate is returned on unique constraint violations.
	ErrDuplicate = errors.New("repository: duplicate record")
)

// Store groups the repositories behind one unit of work.
type Store interface {
	Tickets() TicketRepository
	Messages() MessageRepository
	Attachments() AttachmentRepository
	Notifications() NotificationRepository
	Profiles() ProfileRepository
	History() TicketHistoryRepository
	// InTx runs fn in a transaction. The Store passed to fn is bound to that
	// transaction; calling InTx on it opens a nested scope that rolls back on
	// its own without aborting the outer one.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// TicketFilter captures listing parameters. A zero Limit means no limit.
type TicketFilter struct {
	OwnerID     *string
	Statuses    []domain.TicketStatus
	Brand       *string
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// Create inserts the ticket and assigns TicketNumber from the shared sequence.
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update writes every mutable column when the stored version equals
	// expectedVersion, then bumps ticket.Version. Returns ErrStaleVersion otherwise.
	Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

// MessageRepository is the append-only message log.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error)
}

// AttachmentRepository persists attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	GetByID(ctx context.Context, id string) (*domain.Attachment, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error)
	ListByTickets(ctx context.Context, ticketIDs []string) ([]domain.Attachment, error)
	Delete(ctx context.Context, id string) error
}

// NotificationRepository stores per-recipient notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// ProfileRepository defines persistence access for identities.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	Update(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.Profile, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.Profile, error)
}

// TicketHistoryRepository stores audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}
