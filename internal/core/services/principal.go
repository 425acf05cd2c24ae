package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven"
	"github.com/custodia-labs/authcore/internal/core/ports/driving"
)

// Ensure principalResolver implements PrincipalResolver
var _ driving.PrincipalResolver = (*principalResolver)(nil)

// principalResolver materializes the calling principal once per request
type principalResolver struct {
	tokens  *TokenService
	users   driven.UserDirectory
	timeout time.Duration
}

// NewPrincipalResolver creates a new PrincipalResolver
func NewPrincipalResolver(tokens *TokenService, users driven.UserDirectory, timeout time.Duration) driving.PrincipalResolver {
	if timeout == 0 {
		timeout = DefaultCollaboratorTimeout
	}
	return &principalResolver{
		tokens:  tokens,
		users:   users,
		timeout: timeout,
	}
}

// Resolve verifies an access token and returns its active principal.
// Token failures never reach the directory.
func (r *principalResolver) Resolve(ctx context.Context, token string) (domain.Principal, error) {
	claims, err := r.tokens.Verify(token, domain.PurposeAccess)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}

	var principal *domain.Principal
	err = withTimeout(ctx, r.timeout, func(ctx context.Context) error {
		var err error
		principal, err = r.users.FindByID(ctx, claims.Subject)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	if err != nil {
		return domain.Principal{}, directoryErr("find_by_id", err)
	}

	if !principal.Active {
		return domain.Principal{}, domain.ErrAccountInactive
	}

	return *principal, nil
}

// RequireVerified gates operations that need a verified email
func (r *principalResolver) RequireVerified(p domain.Principal) error {
	if !p.Verified {
		return domain.ErrNotVerified
	}
	return nil
}
