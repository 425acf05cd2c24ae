package driven

import (
	"context"

	"github.com/custodia-labs/authcore/internal/core/domain"
)

// Notifier delivers a token to an address. The core supplies the token and
// the templating intent (purpose); the adapter owns the transport.
type Notifier interface {
	Deliver(ctx context.Context, address string, purpose domain.TokenPurpose, token string) error
}
