package repository

import (
	"context"
	"strings"

	"github.com/spec-kit/warranty-portal/internal/domain"
)

type profileRepository struct {
	db querier
}

const profileColumns = `id, full_name, email, document, phone, password_hash, role, created_at, updated_at`

func (r *profileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	const query = `
        INSERT INTO profiles (id, full_name, email, document, phone, password_hash, role, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.db.Exec(ctx, query,
		profile.ID,
		profile.FullName,
		strings.ToLower(profile.Email),
		nullIfEmpty(profile.Document),
		nullIfEmpty(profile.Phone),
		profile.PasswordHash,
		profile.Role,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	return translate(err)
}

func (r *profileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	const query = `
        UPDATE profiles SET full_name=$1, document=$2, phone=$3, role=$4, updated_at=$5
        WHERE id=$6`
	cmd, err := r.db.Exec(ctx, query,
		profile.FullName,
		nullIfEmpty(profile.Document),
		nullIfEmpty(profile.Phone),
		profile.Role,
		profile.UpdatedAt,
		profile.ID,
	)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id=$1`
	profile, err := scanProfile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return profile, nil
}

func (r *profileRepository) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE email=$1`
	profile, err := scanProfile(r.db.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return nil, translate(err)
	}
	return profile, nil
}

func (r *profileRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE role=$1 ORDER BY full_name ASC, id ASC`
	return r.list(ctx, query, role)
}

func (r *profileRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ANY($1::uuid[]) ORDER BY full_name ASC, id ASC`
	return r.list(ctx, query, ids)
}

func (r *profileRepository) list(ctx context.Context, query string, args ...any) ([]domain.Profile, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *profile)
	}
	return result, rows.Err()
}

func scanProfile(row scanner) (*domain.Profile, error) {
	var (
		profile  domain.Profile
		document *string
		phone    *string
	)
	if err := row.Scan(
		&profile.ID,
		&profile.FullName,
		&profile.Email,
		&document,
		&phone,
		&profile.PasswordHash,
		&profile.Role,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		return nil, err
	}
	profile.Document = derefString(document)
	profile.Phone = derefString(phone)
	return &profile, nil
}
