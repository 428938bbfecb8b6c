package persistence

import (
	"context"
	"errors"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/warranty-portal/migrations"
)

// Migrator applies the embedded goose migrations to a pgx pool.
type Migrator struct {
	provider *goose.Provider
	logger   *zap.Logger
	closeDB  func() error
}

// NewMigrator builds a goose provider over the pool.
func NewMigrator(pool *pgxpool.Pool, logger *zap.Logger) (*Migrator, error) {
	return newMigrator(pool, migrations.FS, logger)
}

func newMigrator(pool *pgxpool.Pool, fsys fs.FS, logger *zap.Logger) (*Migrator, error) {
	if pool == nil {
		return nil, errors.New("postgres is not configured")
	}
	db := stdlib.OpenDBFromPool(pool)
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Migrator{provider: provider, logger: logger, closeDB: db.Close}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	for _, result := range results {
		m.logResult(result)
	}
	if err != nil {
		return err
	}
	m.logger.Info("migrations applied", zap.Int("count", len(results)))
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	result, err := m.provider.Down(ctx)
	if result != nil {
		m.logResult(result)
	}
	return err
}

// MigrationState is one row of Status.
type MigrationState struct {
	Version int64
	Path    string
	Applied bool
}

// Status lists every known migration and whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationState, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationState, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, MigrationState{
			Version: status.Source.Version,
			Path:    status.Source.Path,
			Applied: status.State == goose.StateApplied,
		})
	}
	return out, nil
}

// Close releases the database/sql handle wrapping the pool.
func (m *Migrator) Close() error {
	return m.closeDB()
}

func (m *Migrator) logResult(result *goose.MigrationResult) {
	fields := []zap.Field{
		zap.Int64("version", result.Source.Version),
		zap.String("file", result.Source.Path),
		zap.String("direction", result.Direction),
		zap.Duration("duration", result.Duration),
	}
	if result.Error != nil {
		m.logger.Error("migration failed", append(fields, zap.Error(result.Error))...)
		return
	}
	m.logger.Info("migration applied", fields...)
}

// RunMigrations applies pending migrations at startup.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}
	migrator, err := NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()
	return migrator.Up(ctx)
}
