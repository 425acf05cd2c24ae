package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven"
)

// Default validity windows per purpose.
const (
	DefaultAccessTTL        = 30 * time.Minute
	DefaultRefreshTTL       = 7 * 24 * time.Hour
	DefaultEmailVerifyTTL   = 24 * time.Hour
	DefaultPasswordResetTTL = 60 * time.Minute
)

// TokenServiceConfig holds configuration for the token service.
type TokenServiceConfig struct {
	Signer           driven.TokenSigner
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	EmailVerifyTTL   time.Duration
	PasswordResetTTL time.Duration
	Clock            func() time.Time // defaults to time.Now
	Metrics          driven.AuthMetrics
}

// TokenService issues and verifies purpose-bound, expiring tokens.
// Verification is pure: it consults only the signing secret and the clock.
type TokenService struct {
	signer  driven.TokenSigner
	ttls    map[domain.TokenPurpose]time.Duration
	now     func() time.Time
	metrics driven.AuthMetrics
}

// NewTokenService creates a new TokenService. Zero TTLs take the defaults.
func NewTokenService(cfg TokenServiceConfig) *TokenService {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &TokenService{
		signer: cfg.Signer,
		ttls: map[domain.TokenPurpose]time.Duration{
			domain.PurposeAccess:        orDefault(cfg.AccessTTL, DefaultAccessTTL),
			domain.PurposeRefresh:       orDefault(cfg.RefreshTTL, DefaultRefreshTTL),
			domain.PurposeEmailVerify:   orDefault(cfg.EmailVerifyTTL, DefaultEmailVerifyTTL),
			domain.PurposePasswordReset: orDefault(cfg.PasswordResetTTL, DefaultPasswordResetTTL),
		},
		now:     clock,
		metrics: metricsOrNoop(cfg.Metrics),
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// TTL returns the fixed validity window for a purpose
func (s *TokenService) TTL(purpose domain.TokenPurpose) time.Duration {
	return s.ttls[purpose]
}

// Issue signs claims {subject, purpose, iat, exp} valid for ttl
func (s *TokenService) Issue(subject string, purpose domain.TokenPurpose, ttl time.Duration) (string, error) {
	if subject == "" || !purpose.Valid() || ttl <= 0 {
		return "", domain.ErrInvalidInput
	}

	now := s.now()
	claims := &domain.TokenClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Purpose:   purpose,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	token, err := s.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", purpose, err)
	}
	return token, nil
}

// IssuePair issues an access token and a refresh token with their own TTLs
func (s *TokenService) IssuePair(subject string) (*domain.TokenPair, error) {
	access, err := s.Issue(subject, domain.PurposeAccess, s.TTL(domain.PurposeAccess))
	if err != nil {
		return nil, err
	}
	refresh, err := s.Issue(subject, domain.PurposeRefresh, s.TTL(domain.PurposeRefresh))
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.TTL(domain.PurposeAccess) / time.Second),
	}, nil
}

// Verify decodes the token and checks, in order: format, signature, expiry, purpose.
func (s *TokenService) Verify(token string, expected domain.TokenPurpose) (*domain.TokenClaims, error) {
	claims, err := s.verify(token, expected)
	s.metrics.TokenVerified(string(expected), verifyResult(err))
	return claims, err
}

func (s *TokenService) verify(token string, expected domain.TokenPurpose) (*domain.TokenClaims, error) {
	if token == "" {
		return nil, domain.ErrTokenMalformed
	}

	claims, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenSignatureInvalid) {
			return nil, domain.ErrTokenSignatureInvalid
		}
		return nil, domain.ErrTokenMalformed
	}

	if claims.Subject == "" || claims.ExpiresAt.IsZero() || !claims.Purpose.Valid() {
		return nil, domain.ErrTokenMalformed
	}

	if claims.ExpiredAt(s.now()) {
		return nil, domain.ErrTokenExpired
	}

	if claims.Purpose != expected {
		return nil, domain.ErrTokenPurposeMismatch
	}

	return claims, nil
}

func verifyResult(err error) string {
	switch {
	case err == nil:
		return "valid"
	case !domain.IsTokenFailure(err):
		return "error"
	case errors.Is(err, domain.ErrTokenSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrTokenPurposeMismatch):
		return "purpose_mismatch"
	default:
		return "malformed"
	}
}
