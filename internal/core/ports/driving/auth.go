package driving

import (
	"context"

	"github.com/custodia-labs/authcore/internal/core/domain"
)

// AuthService orchestrates the credential flows
type AuthService interface {
	// Register creates a principal and sends a verification message best-effort
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.RegisterResult, error)

	// Login validates credentials and issues an access/refresh pair
	Login(ctx context.Context, req domain.LoginRequest) (*domain.TokenPair, error)

	// Refresh exchanges a refresh token for a new pair
	Refresh(ctx context.Context, req domain.RefreshRequest) (*domain.TokenPair, error)

	// VerifyEmail marks the token's principal as verified
	VerifyEmail(ctx context.Context, token string) (*domain.MessageResponse, error)

	// RequestPasswordReset always acknowledges with the same message
	RequestPasswordReset(ctx context.Context, req domain.PasswordResetRequest) (*domain.MessageResponse, error)

	// ConfirmPasswordReset sets a new password from a reset token
	ConfirmPasswordReset(ctx context.Context, req domain.PasswordResetConfirm) (*domain.MessageResponse, error)
}

// PrincipalResolver maps a bearer token to an active principal
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (domain.Principal, error)
	RequireVerified(p domain.Principal) error
}
