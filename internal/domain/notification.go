package domain

import "time"

// Notification is a per-recipient signal; only the recipient may mark it read.
type Notification struct {
	ID        string
	UserID    string
	TicketID  *string
	Title     string
	Message   string
	Link      *string
	Read      bool
	CreatedAt time.Time
}
