package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven"
	"github.com/custodia-labs/authcore/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// AuthServiceConfig holds configuration for the credential flows.
type AuthServiceConfig struct {
	Users    driven.UserDirectory
	Hasher   driven.PasswordHasher
	Tokens   *TokenService
	Notifier driven.Notifier
	Limiter  *LoginLimiter // Optional: login throttling

	AutoVerify  bool     // Verified flag given to new principals
	AdminEmails []string // Addresses registered with the admin role

	Timeout time.Duration // Per-call collaborator deadline (default: 5s)
	Clock   func() time.Time
	Logger  *slog.Logger
	Metrics driven.AuthMetrics
}

// authService implements the AuthService interface
type authService struct {
	users    driven.UserDirectory
	hasher   driven.PasswordHasher
	tokens   *TokenService
	notifier driven.Notifier
	limiter  *LoginLimiter

	autoVerify  bool
	adminEmails map[string]bool

	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics driven.AuthMetrics

	// dummyHash equalizes the cost of logins for unknown emails
	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new AuthService
func NewAuthService(cfg AuthServiceConfig) driving.AuthService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultCollaboratorTimeout
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	admins := make(map[string]bool, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = true
		}
	}

	return &authService{
		users:       cfg.Users,
		hasher:      cfg.Hasher,
		tokens:      cfg.Tokens,
		notifier:    cfg.Notifier,
		limiter:     cfg.Limiter,
		autoVerify:  cfg.AutoVerify,
		adminEmails: admins,
		timeout:     timeout,
		now:         clock,
		logger:      logger.With("component", "auth"),
		metrics:     metricsOrNoop(cfg.Metrics),
	}
}

// Register creates a principal and sends the verification message best-effort
func (s *authService) Register(ctx context.Context, req domain.RegisterRequest) (result *domain.RegisterResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.Register")
	defer func() {
		s.metrics.FlowCompleted("register", outcome(err))
		endSpan(span, err)
	}()

	email, ok := normalizeEmail(req.Email)
	if !ok || len(req.Password) < domain.MinPasswordLength {
		return nil, domain.ErrInvalidInput
	}

	_, err = s.findByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, domain.ErrAlreadyExists
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := domain.RoleUser
	if s.adminEmails[email] {
		role = domain.RoleAdmin
	}

	now := s.now()
	principal := &domain.Principal{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		Verified:     s.autoVerify,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var created *domain.Principal
	err = withTimeout(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		created, err = s.users.Create(ctx, principal)
		return err
	})
	if err != nil {
		return nil, directoryErr("create", err)
	}

	s.logger.InfoContext(ctx, "principal registered", "principal_id", created.ID, "role", created.Role)

	result = &domain.RegisterResult{Principal: created}

	// Registration has already committed; delivery can only add a warning.
	delivery := s.deliver(ctx, created, domain.PurposeEmailVerify)
	s.logDelivery(ctx, created.ID, delivery)
	if !delivery.Delivered() {
		result.Warning = "verification email could not be sent"
	}

	return result, nil
}

// Login validates credentials and issues an access/refresh pair.
// Unknown email and wrong password produce the same error value.
func (s *authService) Login(ctx context.Context, req domain.LoginRequest) (pair *domain.TokenPair, err error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer func() {
		s.metrics.FlowCompleted("login", outcome(err))
		endSpan(span, err)
	}()

	if req.Email == "" || req.Password == "" {
		return nil, domain.ErrInvalidInput
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := s.limiter.Check(ctx, email); err != nil {
		return nil, err
	}

	principal, err := s.findByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		s.hasher.Verify(req.Password, s.dummy())
		s.limiter.RecordFailure(ctx, email)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !s.hasher.Verify(req.Password, principal.PasswordHash) {
		s.limiter.RecordFailure(ctx, email)
		return nil, domain.ErrInvalidCredentials
	}

	if !principal.Active {
		return nil, domain.ErrAccountInactive
	}

	s.limiter.Reset(ctx, email)

	return s.tokens.IssuePair(principal.ID)
}

// Refresh exchanges a refresh token for a new pair.
// The presented refresh token is not revoked; rotation is advisory.
func (s *authService) Refresh(ctx context.Context, req domain.RefreshRequest) (pair *domain.TokenPair, err error) {
	ctx, span := tracer.Start(ctx, "auth.Refresh")
	defer func() {
		s.metrics.FlowCompleted("refresh", outcome(err))
		endSpan(span, err)
	}()

	claims, err := s.tokens.Verify(req.RefreshToken, domain.PurposeRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}

	principal, err := s.findByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	if !principal.Active {
		return nil, domain.ErrAccountInactive
	}

	return s.tokens.IssuePair(principal.ID)
}

// VerifyEmail marks the principal verified. Verifying twice succeeds.
func (s *authService) VerifyEmail(ctx context.Context, token string) (resp *domain.MessageResponse, err error) {
	ctx, span := tracer.Start(ctx, "auth.VerifyEmail")
	defer func() {
		s.metrics.FlowCompleted("verify_email", outcome(err))
		endSpan(span, err)
	}()

	claims, err := s.tokens.Verify(token, domain.PurposeEmailVerify)
	if err != nil {
		return nil, domain.ErrInvalidOrExpiredToken
	}

	principal, err := s.findByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, err
	}

	if !principal.Verified {
		principal.Verified = true
		principal.UpdatedAt = s.now()
		if err := s.persist(ctx, principal); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrInvalidOrExpiredToken
			}
			return nil, err
		}
		s.logger.InfoContext(ctx, "email verified", "principal_id", principal.ID)
	}

	return &domain.MessageResponse{Message: domain.MessageEmailVerified}, nil
}

// RequestPasswordReset answers identically whether or not the email is registered
func (s *authService) RequestPasswordReset(ctx context.Context, req domain.PasswordResetRequest) (resp *domain.MessageResponse, err error) {
	ctx, span := tracer.Start(ctx, "auth.RequestPasswordReset")
	defer func() {
		s.metrics.FlowCompleted("request_password_reset", outcome(err))
		endSpan(span, err)
	}()

	resp = &domain.MessageResponse{Message: domain.MessagePasswordResetRequested}

	email, ok := normalizeEmail(req.Email)
	if !ok {
		return resp, nil
	}

	principal, err := s.findByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}

	s.logDelivery(ctx, principal.ID, s.deliver(ctx, principal, domain.PurposePasswordReset))

	return resp, nil
}

// ConfirmPasswordReset sets a new password. Every token failure collapses
// into ErrInvalidOrExpiredToken.
func (s *authService) ConfirmPasswordReset(ctx context.Context, req domain.PasswordResetConfirm) (resp *domain.MessageResponse, err error) {
	ctx, span := tracer.Start(ctx, "auth.ConfirmPasswordReset")
	defer func() {
		s.metrics.FlowCompleted("confirm_password_reset", outcome(err))
		endSpan(span, err)
	}()

	claims, err := s.tokens.Verify(req.Token, domain.PurposePasswordReset)
	if err != nil {
		return nil, domain.ErrInvalidOrExpiredToken
	}

	if len(req.NewPassword) < domain.MinPasswordLength {
		return nil, domain.ErrInvalidInput
	}

	principal, err := s.findByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	principal.PasswordHash = hash
	principal.UpdatedAt = s.now()
	if err := s.persist(ctx, principal); err != nil {
		// deleted since the lookup
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidOrExpiredToken
		}
		return nil, err
	}

	s.limiter.Reset(ctx, principal.Email)
	s.logger.InfoContext(ctx, "password reset", "principal_id", principal.ID)

	return &domain.MessageResponse{Message: domain.MessagePasswordResetDone}, nil
}

// Helper functions

func (s *authService) findByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	var p *domain.Principal
	err := withTimeout(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		p, err = s.users.FindByEmail(ctx, email)
		return err
	})
	return p, directoryErr("find_by_email", err)
}

func (s *authService) findByID(ctx context.Context, id string) (*domain.Principal, error) {
	var p *domain.Principal
	err := withTimeout(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		p, err = s.users.FindByID(ctx, id)
		return err
	})
	return p, directoryErr("find_by_id", err)
}

func (s *authService) persist(ctx context.Context, p *domain.Principal) error {
	return directoryErr("persist", withTimeout(ctx, s.timeout, func(ctx context.Context) error {
		return s.users.Persist(ctx, p)
	}))
}

// deliver issues a purpose token and hands it to the notifier. The result is
// returned as a value; it is never turned into a flow error.
func (s *authService) deliver(ctx context.Context, p *domain.Principal, purpose domain.TokenPurpose) domain.DeliveryResult {
	result := domain.DeliveryResult{Address: p.Email, Purpose: purpose}

	if s.notifier == nil {
		result.Err = errors.New("no notifier configured")
		return result
	}

	token, err := s.tokens.Issue(p.ID, purpose, s.tokens.TTL(purpose))
	if err != nil {
		result.Err = err
		return result
	}

	result.Err = withTimeout(ctx, s.timeout, func(ctx context.Context) error {
		return s.notifier.Deliver(ctx, p.Email, purpose, token)
	})
	return result
}

func (s *authService) logDelivery(ctx context.Context, principalID string, r domain.DeliveryResult) {
	if r.Delivered() {
		s.logger.InfoContext(ctx, "notification sent", "principal_id", principalID, "purpose", r.Purpose)
		return
	}
	s.logger.WarnContext(ctx, "notification delivery failed",
		"principal_id", principalID,
		"purpose", r.Purpose,
		"error", r.Err,
	)
}

func (s *authService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(uuid.NewString())
	})
	return s.dummyHash
}

// normalizeEmail lower-cases a bare address and rejects display-name forms
func normalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}
	return email, true
}
