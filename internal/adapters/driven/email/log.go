package email

import (
	"context"
	"log/slog"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven"
)

// Ensure LogNotifier implements Notifier
var _ driven.Notifier = (*LogNotifier)(nil)

// LogNotifier writes links to the log instead of sending mail.
// Used when no SMTP host is configured.
type LogNotifier struct {
	composer *Composer
	logger   *slog.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(composer *Composer, logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{composer: composer, logger: logger.With("component", "notifier")}
}

func (n *LogNotifier) Deliver(ctx context.Context, address string, purpose domain.TokenPurpose, token string) error {
	msg, err := n.composer.Compose(address, purpose, token)
	if err != nil {
		return err
	}
	n.logger.InfoContext(ctx, "email delivery skipped, no SMTP host configured",
		"to", msg.To,
		"subject", msg.Subject,
		"link", msg.Link,
	)
	return nil
}
