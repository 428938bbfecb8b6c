package repository

import (
	"context"

	"github.com/spec-kit/warranty-portal/internal/domain"
)

type attachmentRepository struct {
	db querier
}

const attachmentColumns = `id, ticket_id, path, file_name, mime_type, size_bytes, uploaded_by, created_at`

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO ticket_attachments (id, ticket_id, path, file_name, mime_type, size_bytes, uploaded_by, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.db.Exec(ctx, query,
		attachment.ID,
		attachment.TicketID,
		attachment.Path,
		attachment.FileName,
		attachment.MimeType,
		attachment.SizeBytes,
		attachment.UploadedBy,
		attachment.CreatedAt,
	)
	return translate(err)
}

func (r *attachmentRepository) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM ticket_attachments WHERE id=$1`
	attachment, err := scanAttachment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return attachment, nil
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM ticket_attachments WHERE ticket_id=$1 ORDER BY created_at ASC, path ASC`
	return r.list(ctx, query, ticketID)
}

func (r *attachmentRepository) ListByTickets(ctx context.Context, ticketIDs []string) ([]domain.Attachment, error) {
	if len(ticketIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + attachmentColumns + ` FROM ticket_attachments WHERE ticket_id = ANY($1::uuid[]) ORDER BY created_at ASC, path ASC`
	return r.list(ctx, query, ticketIDs)
}

func (r *attachmentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM ticket_attachments WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *attachmentRepository) list(ctx context.Context, query string, args ...any) ([]domain.Attachment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *attachment)
	}
	return result, rows.Err()
}

func scanAttachment(row scanner) (*domain.Attachment, error) {
	var attachment domain.Attachment
	if err := row.Scan(
		&attachment.ID,
		&attachment.TicketID,
		&attachment.Path,
		&attachment.FileName,
		&attachment.MimeType,
		&attachment.SizeBytes,
		&attachment.UploadedBy,
		&attachment.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &attachment, nil
}
