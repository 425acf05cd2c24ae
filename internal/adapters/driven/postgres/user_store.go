package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.UserDirectory = (*UserDirectory)(nil)

// uniqueViolation is the SQLSTATE for unique_violation
const uniqueViolation = "23505"

const principalColumns = `id, email, password_hash, role, is_active, is_verified, avatar, created_at, updated_at`

// UserDirectory implements driven.UserDirectory using PostgreSQL
type UserDirectory struct {
	db *DB
}

// NewUserDirectory creates a new UserDirectory
func NewUserDirectory(db *DB) *UserDirectory {
	return &UserDirectory{db: db}
}

// FindByEmail looks a principal up by case-insensitive email
func (s *UserDirectory) FindByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return s.scanOne(s.db.QueryRowContext(ctx, query, email))
}

// FindByID looks a principal up by ID
func (s *UserDirectory) FindByID(ctx context.Context, id string) (*domain.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM users WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// Create inserts a principal. A duplicate email yields ErrAlreadyExists.
func (s *UserDirectory) Create(ctx context.Context, p *domain.Principal) (*domain.Principal, error) {
	query := `
		INSERT INTO users (` + principalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + principalColumns

	row := s.db.QueryRowContext(ctx, query,
		p.ID,
		p.Email,
		p.PasswordHash,
		string(p.Role),
		p.Active,
		p.Verified,
		nullable(p.Avatar),
		p.CreatedAt,
		p.UpdatedAt,
	)

	created, err := s.scanOne(row)
	if isUniqueViolation(err) {
		return nil, domain.ErrAlreadyExists
	}
	return created, err
}

// Persist writes every mutable field of an existing principal
func (s *UserDirectory) Persist(ctx context.Context, p *domain.Principal) error {
	query := `
		UPDATE users SET
			email = $2,
			password_hash = $3,
			role = $4,
			is_active = $5,
			is_verified = $6,
			avatar = $7,
			updated_at = $8
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.Email,
		p.PasswordHash,
		string(p.Role),
		p.Active,
		p.Verified,
		nullable(p.Avatar),
		p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *UserDirectory) scanOne(row *sql.Row) (*domain.Principal, error) {
	var p domain.Principal
	var avatar sql.NullString

	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&p.Role,
		&p.Active,
		&p.Verified,
		&avatar,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Avatar = stringOrNil(avatar)
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
