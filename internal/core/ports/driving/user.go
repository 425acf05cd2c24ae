package driving

import (
	"context"

	"github.com/custodia-labs/authcore/internal/core/domain"
)

// AccountService handles operations on the calling principal's own account
type AccountService interface {
	// Me returns the public view of the principal
	Me(ctx context.Context, principal domain.Principal) *domain.PrincipalSummary

	// UpdateAvatar uploads an image and records its URL. Requires an admin
	// principal with a verified email.
	UpdateAvatar(ctx context.Context, principal domain.Principal, upload domain.AvatarUpload) (*domain.PrincipalSummary, error)
}

// CacheAdmin exposes destructive cache maintenance
type CacheAdmin interface {
	Clear(ctx context.Context) error
}
