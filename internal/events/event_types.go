package events

import (
	"time"

	"github.com/spec-kit/warranty-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketUpdated       EventType = "ticket_updated"
	EventMessagePosted       EventType = "message_posted"
	EventStatusChanged       EventType = "status_changed"
	EventNotificationCreated EventType = "notification_created"
	EventAttachmentAdded     EventType = "attachment_added"
	EventAttachmentRemoved   EventType = "attachment_removed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID       string    `json:"id"`
	Type     EventType `json:"type"`
	TicketID string    `json:"ticket_id,omitempty"`
	// UserID is the recipient for per-user events such as notifications.
	UserID    string    `json:"user_id,omitempty"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber int64               `json:"ticket_number"`
	OwnerID      string              `json:"owner_id"`
	Brand        string              `json:"brand"`
	Model        string              `json:"model"`
	Status       domain.TicketStatus `json:"status"`
}

// TicketUpdatedPayload lists the descriptive fields a staff edit changed.
type TicketUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus   domain.TicketStatus `json:"old_status"`
	NewStatus   domain.TicketStatus `json:"new_status"`
	OldSolution *domain.Solution    `json:"old_solution,omitempty"`
	NewSolution *domain.Solution    `json:"new_solution,omitempty"`
	Closed      bool                `json:"closed"`
}

// MessagePostedPayload payload.
type MessagePostedPayload struct {
	MessageID   string              `json:"message_id"`
	SenderRole  domain.Role         `json:"sender_role"`
	Status      domain.TicketStatus `json:"status"`
	BodyPreview string              `json:"body_preview"`
}

// NotificationCreatedPayload payload.
type NotificationCreatedPayload struct {
	NotificationID string  `json:"notification_id"`
	Title          string  `json:"title"`
	Link           *string `json:"link,omitempty"`
}

// AttachmentPayload is shared by attachment added/removed events.
type AttachmentPayload struct {
	AttachmentID string `json:"attachment_id"`
	Path         string `json:"path"`
	MimeType     string `json:"mime_type"`
}
