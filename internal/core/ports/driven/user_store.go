package driven

import (
	"context"

	"github.com/custodia-labs/authcore/internal/core/domain"
)

// UserDirectory is the account store (PostgreSQL).
// Lookups of a missing principal return domain.ErrNotFound.
type UserDirectory interface {
	// FindByEmail retrieves a principal by email (case-insensitive)
	FindByEmail(ctx context.Context, email string) (*domain.Principal, error)

	// FindByID retrieves a principal by ID
	FindByID(ctx context.Context, id string) (*domain.Principal, error)

	// Create stores a new principal. A duplicate email returns domain.ErrAlreadyExists.
	Create(ctx context.Context, principal *domain.Principal) (*domain.Principal, error)

	// Persist commits mutations of password hash, verified flag and avatar
	Persist(ctx context.Context, principal *domain.Principal) error
}
