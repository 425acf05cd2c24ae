package services

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven"
	"github.com/custodia-labs/authcore/internal/core/ports/driving"
)

// Ensure accountService implements AccountService
var _ driving.AccountService = (*accountService)(nil)

// DefaultUploadTimeout bounds a single avatar upload
const DefaultUploadTimeout = 30 * time.Second

// AccountServiceConfig holds configuration for the account service.
type AccountServiceConfig struct {
	Users         driven.UserDirectory
	Media         driven.MediaStore // Optional: avatar updates fail with ErrUnavailable when nil
	Timeout       time.Duration
	UploadTimeout time.Duration
	Clock         func() time.Time
	Logger        *slog.Logger
	Metrics       driven.AuthMetrics
}

// accountService implements the AccountService interface
type accountService struct {
	users         driven.UserDirectory
	media         driven.MediaStore
	timeout       time.Duration
	uploadTimeout time.Duration
	now           func() time.Time
	logger        *slog.Logger
	metrics       driven.AuthMetrics
}

// NewAccountService creates a new AccountService
func NewAccountService(cfg AccountServiceConfig) driving.AccountService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &accountService{
		users:         cfg.Users,
		media:         cfg.Media,
		timeout:       orDefault(cfg.Timeout, DefaultCollaboratorTimeout),
		uploadTimeout: orDefault(cfg.UploadTimeout, DefaultUploadTimeout),
		now:           clock,
		logger:        logger.With("component", "account"),
		metrics:       metricsOrNoop(cfg.Metrics),
	}
}

// Me returns the public view of the principal
func (s *accountService) Me(_ context.Context, principal domain.Principal) *domain.PrincipalSummary {
	return principal.ToSummary()
}

// UpdateAvatar stores the image under avatars/<principal>/ and records its URL
func (s *accountService) UpdateAvatar(ctx context.Context, principal domain.Principal, upload domain.AvatarUpload) (summary *domain.PrincipalSummary, err error) {
	ctx, span := tracer.Start(ctx, "account.UpdateAvatar")
	defer func() {
		s.metrics.FlowCompleted("update_avatar", outcome(err))
		endSpan(span, err)
	}()

	if !principal.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if !principal.Verified {
		return nil, domain.ErrNotVerified
	}
	if err := upload.Validate(); err != nil {
		return nil, err
	}
	if s.media == nil {
		return nil, unavailable("media", "upload", errors.New("no media store configured"))
	}

	key := avatarKey(principal.ID, upload.Filename)

	var url string
	err = withTimeout(ctx, s.uploadTimeout, func(ctx context.Context) error {
		var err error
		url, err = s.media.Upload(ctx, key, upload.ContentType, upload.Size, upload.Body)
		return err
	})
	if err != nil {
		return nil, unavailable("media", "upload", err)
	}

	// Reload so a concurrent verify or reset is not overwritten.
	var current *domain.Principal
	err = withTimeout(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		current, err = s.users.FindByID(ctx, principal.ID)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, directoryErr("find_by_id", err)
	}

	current.Avatar = &url
	current.UpdatedAt = s.now()
	err = withTimeout(ctx, s.timeout, func(ctx context.Context) error {
		return s.users.Persist(ctx, current)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, directoryErr("persist", err)
	}

	s.logger.InfoContext(ctx, "avatar updated", "principal_id", current.ID, "key", key)
	return current.ToSummary(), nil
}

func avatarKey(principalID, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	if len(ext) > 8 {
		ext = ""
	}
	return "avatars/" + principalID + "/" + uuid.NewString() + ext
}
