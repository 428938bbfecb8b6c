package repository

import (
	"context"

	"github.com/spec-kit/warranty-portal/internal/domain"
)

type messageRepository struct {
	db querier
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO ticket_messages (id, ticket_id, sender_id, sender_role, content, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING seq`
	err := r.db.QueryRow(ctx, query,
		msg.ID,
		msg.TicketID,
		msg.SenderID,
		msg.SenderRole,
		msg.Content,
		msg.CreatedAt,
	).Scan(&msg.Seq)
	return translate(err)
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error) {
	const query = `
        SELECT id, seq, ticket_id, sender_id, sender_role, content, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC, seq ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.Seq,
			&msg.TicketID,
			&msg.SenderID,
			&msg.SenderRole,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
