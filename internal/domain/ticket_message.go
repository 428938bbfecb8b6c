package domain

import "time"

// Message is an immutable entry in a ticket thread.
type Message struct {
	ID         string
	Seq        int64
	TicketID   string
	SenderID   string
	SenderRole Role
	Content    string
	CreatedAt  time.Time
}

// Attachment records a blob stored for a ticket.
type Attachment struct {
	ID         string
	TicketID   string
	Path       string
	FileName   string
	MimeType   string
	SizeBytes  int64
	UploadedBy string
	CreatedAt  time.Time
}
