package dto

import (
	"time"

	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/service"
)

// DateLayout is the wire format of manufacturing dates.
const DateLayout = "2006-01-02"

// TicketResponse is the full ticket view.
type TicketResponse struct {
	ID                string              `json:"id"`
	TicketNumber      int64               `json:"ticket_number"`
	OwnerID           string              `json:"owner_id"`
	ProductName       string              `json:"product_name"`
	Brand             string              `json:"brand"`
	Model             string              `json:"model"`
	SKU               string              `json:"sku,omitempty"`
	IssueDescription  string              `json:"issue_description"`
	BatchNumber       string              `json:"batch_number,omitempty"`
	ManufacturingDate string              `json:"manufacturing_date,omitempty"`
	Status            domain.TicketStatus `json:"status"`
	Solution          *domain.Solution    `json:"solution"`
	Unread            bool                `json:"unread"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	ClosedAt          *time.Time          `json:"closed_at"`
}

// NewTicketResponse maps a ticket. Unread reflects the viewer's side.
func NewTicketResponse(t *domain.Ticket, viewer domain.Role) TicketResponse {
	resp := TicketResponse{
		ID:               t.ID,
		TicketNumber:     t.TicketNumber,
		OwnerID:          t.OwnerID,
		ProductName:      t.ProductName,
		Brand:            t.Brand,
		Model:            t.Model,
		SKU:              t.SKU,
		IssueDescription: t.IssueDescription,
		BatchNumber:      t.BatchNumber,
		Status:           t.Status,
		Solution:         t.Solution,
		Unread:           t.CustomerUnread,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		ClosedAt:         t.ClosedAt,
	}
	if viewer == domain.RoleStaff {
		resp.Unread = t.StaffUnread
	}
	if t.ManufacturingDate != nil {
		resp.ManufacturingDate = t.ManufacturingDate.Format(DateLayout)
	}
	return resp
}

// NewTicketList maps a slice of tickets.
func NewTicketList(tickets []domain.Ticket, viewer domain.Role) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i], viewer))
	}
	return out
}

// UpdateTicketRequest edits descriptive fields. An empty manufacturing_date
// clears it.
type UpdateTicketRequest struct {
	ProductName       *string `json:"product_name"`
	Brand             *string `json:"brand"`
	Model             *string `json:"model"`
	SKU               *string `json:"sku"`
	IssueDescription  *string `json:"issue_description"`
	BatchNumber       *string `json:"batch_number"`
	ManufacturingDate *string `json:"manufacturing_date"`
}

// SetStatusRequest is an explicit status write.
type SetStatusRequest struct {
	Status   domain.TicketStatus `json:"status"`
	Solution *domain.Solution    `json:"solution"`
}

// StatusChangeResponse reports the result of a status write.
type StatusChangeResponse struct {
	Ticket TicketResponse      `json:"ticket"`
	From   domain.TicketStatus `json:"from"`
	To     domain.TicketStatus `json:"to"`
	Closed bool                `json:"closed"`
}

// CreateTicketResponse includes per-file upload failures.
type CreateTicketResponse struct {
	Ticket      TicketResponse          `json:"ticket"`
	Attachments []AttachmentResponse    `json:"attachments"`
	Failed      []service.UploadFailure `json:"failed"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID          string                  `json:"id"`
	ChangedBy   string                  `json:"changed_by"`
	ChangedRole domain.Role             `json:"changed_role"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// NewHistoryList maps history entries.
func NewHistoryList(entries []domain.TicketHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, HistoryResponse{
			ID:          h.ID,
			ChangedBy:   h.ChangedBy,
			ChangedRole: h.ChangedRole,
			ChangeType:  h.ChangeType,
			OldValue:    h.OldValue,
			NewValue:    h.NewValue,
			CreatedAt:   h.CreatedAt,
		})
	}
	return out
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Content string `json:"content"`
}

// MessageResponse represents a thread message.
type MessageResponse struct {
	ID         string      `json:"id"`
	TicketID   string      `json:"ticket_id"`
	SenderID   string      `json:"sender_id"`
	SenderRole domain.Role `json:"sender_role"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewMessageResponse maps a message.
func NewMessageResponse(m *domain.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		TicketID:   m.TicketID,
		SenderID:   m.SenderID,
		SenderRole: m.SenderRole,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}

// PostMessageResponse includes the ticket as the message left it.
type PostMessageResponse struct {
	Message MessageResponse `json:"message"`
	Ticket  TicketResponse  `json:"ticket"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	Path       string    `json:"path"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedBy string    `json:"uploaded_by"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAttachmentList maps attachments; URL points at the download route.
func NewAttachmentList(attachments []domain.Attachment, downloadPrefix string) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, AttachmentResponse{
			ID:         a.ID,
			TicketID:   a.TicketID,
			Path:       a.Path,
			FileName:   a.FileName,
			MimeType:   a.MimeType,
			SizeBytes:  a.SizeBytes,
			UploadedBy: a.UploadedBy,
			URL:        downloadPrefix + a.ID,
			CreatedAt:  a.CreatedAt,
		})
	}
	return out
}

// AttachmentRefRequest records an already stored blob.
type AttachmentRefRequest struct {
	Path      string `json:"path"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// AttachmentBatchResponse reports a multi-file upload.
type AttachmentBatchResponse struct {
	Attachments []AttachmentResponse    `json:"attachments"`
	Failed      []service.UploadFailure `json:"failed"`
}
