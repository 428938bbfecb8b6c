package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/warranty-portal/internal/domain"
)

type ticketRepository struct {
	db querier
}

const ticketColumns = `id, ticket_number, owner_id, product_name, brand, model, sku, issue_description,
        batch_number, manufacturing_date, status, solution, customer_unread, staff_unread, version,
        created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, owner_id, product_name, brand, model, sku, issue_description,
            batch_number, manufacturing_date, status, solution, customer_unread, staff_unread,
            version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,1,$14,$15)
        RETURNING ticket_number, version`
	err := r.db.QueryRow(ctx, query,
		ticket.ID,
		ticket.OwnerID,
		ticket.ProductName,
		ticket.Brand,
		ticket.Model,
		nullIfEmpty(ticket.SKU),
		ticket.IssueDescription,
		nullIfEmpty(ticket.BatchNumber),
		ticket.ManufacturingDate,
		ticket.Status,
		ticket.Solution,
		ticket.CustomerUnread,
		ticket.StaffUnread,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Scan(&ticket.TicketNumber, &ticket.Version)
	return translate(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error {
	const query = `
        UPDATE tickets SET product_name=$1, brand=$2, model=$3, sku=$4, issue_description=$5,
            batch_number=$6, manufacturing_date=$7, status=$8, solution=$9, customer_unread=$10,
            staff_unread=$11, updated_at=$12, closed_at=$13, version=version+1
        WHERE id=$14 AND version=$15
        RETURNING version`
	var version int64
	err := r.db.QueryRow(ctx, query,
		ticket.ProductName,
		ticket.Brand,
		ticket.Model,
		nullIfEmpty(ticket.SKU),
		ticket.IssueDescription,
		nullIfEmpty(ticket.BatchNumber),
		ticket.ManufacturingDate,
		ticket.Status,
		ticket.Solution,
		ticket.CustomerUnread,
		ticket.StaffUnread,
		ticket.UpdatedAt,
		ticket.ClosedAt,
		ticket.ID,
		expectedVersion,
	).Scan(&version)
	if err != nil {
		if translate(err) == ErrNotFound {
			return r.staleOrMissing(ctx, ticket.ID)
		}
		return translate(err)
	}
	ticket.Version = version
	return nil
}

// staleOrMissing distinguishes a lost race from a deleted row.
func (r *ticketRepository) staleOrMissing(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, id).Scan(&exists); err != nil {
		return translate(err)
	}
	if exists {
		return ErrStaleVersion
	}
	return ErrNotFound
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Brand != nil && strings.TrimSpace(*filter.Brand) != "" {
		args = append(args, strings.TrimSpace(*filter.Brand))
		clauses = append(clauses, fmt.Sprintf("LOWER(brand)=LOWER($%d)", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(product_name) LIKE %[1]s OR LOWER(model) LIKE %[1]s OR LOWER(issue_description) LIKE %[1]s OR CAST(ticket_number AS TEXT) LIKE %[1]s)",
			placeholder))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, ticket_number DESC`,
		ticketColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicket(row scanner) (*domain.Ticket, error) {
	var (
		ticket      domain.Ticket
		sku         *string
		batchNumber *string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.OwnerID,
		&ticket.ProductName,
		&ticket.Brand,
		&ticket.Model,
		&sku,
		&ticket.IssueDescription,
		&batchNumber,
		&ticket.ManufacturingDate,
		&ticket.Status,
		&ticket.Solution,
		&ticket.CustomerUnread,
		&ticket.StaffUnread,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	ticket.SKU = derefString(sku)
	ticket.BatchNumber = derefString(batchNumber)
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
