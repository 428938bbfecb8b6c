package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// PostgresStore is the pgx-backed Store.
type PostgresStore struct {
	db querier
}

// NewPostgresStore wraps a connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

func (s *PostgresStore) Tickets() TicketRepository { return &ticketRepository{db: s.db} }

func (s *PostgresStore) Messages() MessageRepository { return &messageRepository{db: s.db} }

func (s *PostgresStore) Attachments() AttachmentRepository { return &attachmentRepository{db: s.db} }

func (s *PostgresStore) Notifications() NotificationRepository {
	return &notificationRepository{db: s.db}
}

func (s *PostgresStore) Profiles() ProfileRepository { return &profileRepository{db: s.db} }

func (s *PostgresStore) History() TicketHistoryRepository { return &ticketHistoryRepository{db: s.db} }

// InTx begins a transaction on a pool, or a savepoint when already inside one.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&PostgresStore{db: tx})
	})
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicate
		case "22P02":
			// A malformed UUID can never name a stored row.
			return ErrNotFound
		}
	}
	return err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
