package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven/mocks"
)

type authFixture struct {
	users    *mocks.MockUserDirectory
	hasher   *mocks.MockPasswordHasher
	notifier *mocks.MockNotifier
	clock    *fakeClock
	tokens   *TokenService
	svc      *authService
}

func newTestAuthService(t *testing.T, mutate ...func(*AuthServiceConfig)) *authFixture {
	t.Helper()

	f := &authFixture{
		users:    mocks.NewMockUserDirectory(),
		hasher:   mocks.NewMockPasswordHasher(),
		notifier: mocks.NewMockNotifier(),
		clock:    newFakeClock(),
	}
	f.tokens = newTestTokenService(f.clock)

	store := mocks.NewMockKVStore()
	store.Now = f.clock.Now
	cache := NewCache(CacheConfig{Store: store})

	cfg := AuthServiceConfig{
		Users:       f.users,
		Hasher:      f.hasher,
		Tokens:      f.tokens,
		Notifier:    f.notifier,
		Limiter:     NewLoginLimiter(cache, DefaultMaxLoginAttempts, DefaultLoginLockout, nil),
		AdminEmails: []string{"Root@X.com"},
		Timeout:     50 * time.Millisecond,
		Clock:       f.clock.Now,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	f.svc = NewAuthService(cfg).(*authService)
	return f
}

// seed stores an active principal whose password is "secret1"
func (f *authFixture) seed(id, email string) *domain.Principal {
	p := &domain.Principal{
		ID:           id,
		Email:        email,
		PasswordHash: "hashed:secret1",
		Role:         domain.RoleUser,
		Active:       true,
	}
	f.users.Put(p)
	return p
}

func TestAuthService_Register(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	result, err := f.svc.Register(ctx, domain.RegisterRequest{Email: " A@X.com ", Password: "secret1"})
	require.NoError(t, err)
	require.NotNil(t, result.Principal)
	assert.Empty(t, result.Warning)

	p := result.Principal
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "a@x.com", p.Email)
	assert.Equal(t, domain.RoleUser, p.Role)
	assert.True(t, p.Active)
	assert.False(t, p.Verified)
	assert.Equal(t, "hashed:secret1", p.PasswordHash)
	assert.Equal(t, f.clock.Now(), p.CreatedAt)

	delivery, ok := f.notifier.Last(domain.PurposeEmailVerify)
	require.True(t, ok, "verification email should be sent")
	assert.Equal(t, "a@x.com", delivery.Address)

	claims, err := f.tokens.Verify(delivery.Token, domain.PurposeEmailVerify)
	require.NoError(t, err)
	assert.Equal(t, p.ID, claims.Subject)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), claims.ExpiresAt)
}

func TestAuthService_RegisterRoles(t *testing.T) {
	f := newTestAuthService(t)

	admin, err := f.svc.Register(context.Background(), domain.RegisterRequest{Email: "root@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Principal.Role)

	user, err := f.svc.Register(context.Background(), domain.RegisterRequest{Email: "b@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Principal.Role)
}

func TestAuthService_RegisterAutoVerify(t *testing.T) {
	f := newTestAuthService(t, func(cfg *AuthServiceConfig) { cfg.AutoVerify = true })

	result, err := f.svc.Register(context.Background(), domain.RegisterRequest{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.True(t, result.Principal.Verified)
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, domain.RegisterRequest{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, domain.RegisterRequest{Email: "a@x.com", Password: "other12"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = f.svc.Register(ctx, domain.RegisterRequest{Email: "A@X.COM", Password: "other12"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	assert.Equal(t, 1, f.users.Count())
}

func TestAuthService_RegisterInvalidInput(t *testing.T) {
	f := newTestAuthService(t)

	tests := []struct {
		name string
		req  domain.RegisterRequest
	}{
		{"empty email", domain.RegisterRequest{Email: "", Password: "secret1"}},
		{"not an email", domain.RegisterRequest{Email: "not-an-email", Password: "secret1"}},
		{"display name form", domain.RegisterRequest{Email: "Bob <b@x.com>", Password: "secret1"}},
		{"short password", domain.RegisterRequest{Email: "a@x.com", Password: "12345"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
	assert.Equal(t, 0, f.users.Count())
}

func TestAuthService_RegisterDeliveryFailureIsWarning(t *testing.T) {
	f := newTestAuthService(t)
	f.notifier.Err = errors.New("smtp: connection refused")

	result, err := f.svc.Register(context.Background(), domain.RegisterRequest{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Warning)
	assert.Equal(t, 1, f.users.Count())
}

func TestAuthService_RegisterWithoutNotifier(t *testing.T) {
	f := newTestAuthService(t, func(cfg *AuthServiceConfig) { cfg.Notifier = nil })

	result, err := f.svc.Register(context.Background(), domain.RegisterRequest{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Warning)
}

func TestAuthService_RegisterDirectoryUnavailable(t *testing.T) {
	t.Run("driver error", func(t *testing.T) {
		f := newTestAuthService(t)
		f.users.Err = errors.New("connection refused")

		_, err := f.svc.Register(context.Background(), domain.RegisterRequest{Email: "a@x.com", Password: "secret1"})
		assert.ErrorIs(t, err, domain.ErrUnavailable)
	})

	t.Run("deadline", func(t *testing.T) {
		f := newTestAuthService(t)
		f.users.Block = true

		_, err := f.svc.Register(context.Background(), domain.RegisterRequest{Email: "a@x.com", Password: "secret1"})
		assert.ErrorIs(t, err, domain.ErrUnavailable)
	})
}

func TestAuthService_Login(t *testing.T) {
	f := newTestAuthService(t)
	f.seed("p-1", "a@x.com")

	pair, err := f.svc.Login(context.Background(), domain.LoginRequest{Email: "A@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)

	access, err := f.tokens.Verify(pair.AccessToken, domain.PurposeAccess)
	require.NoError(t, err)
	assert.Equal(t, "p-1", access.Subject)

	refresh, err := f.tokens.Verify(pair.RefreshToken, domain.PurposeRefresh)
	require.NoError(t, err)
	assert.Equal(t, "p-1", refresh.Subject)
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	f := newTestAuthService(t)
	f.seed("p-1", "a@x.com")
	ctx := context.Background()

	_, wrongPassword := f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "wrong"})
	callsBefore := f.hasher.Calls
	_, unknownEmail := f.svc.Login(ctx, domain.LoginRequest{Email: "nobody@x.com", Password: "wrong"})

	assert.ErrorIs(t, wrongPassword, domain.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword, unknownEmail)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.Equal(t, callsBefore+1, f.hasher.Calls, "unknown email still runs a password comparison")
}

func TestAuthService_LoginInvalidInput(t *testing.T) {
	f := newTestAuthService(t)

	_, err := f.svc.Login(context.Background(), domain.LoginRequest{Email: "", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Login(context.Background(), domain.LoginRequest{Email: "a@x.com", Password: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAuthService_LoginInactive(t *testing.T) {
	f := newTestAuthService(t)
	p := f.seed("p-1", "a@x.com")
	p.Active = false
	f.users.Put(p)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrAccountInactive)

	_, err = f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials, "account state is not revealed without the password")
}

func TestAuthService_LoginRateLimited(t *testing.T) {
	f := newTestAuthService(t)
	f.seed("p-1", "a@x.com")
	ctx := context.Background()

	for i := 0; i < DefaultMaxLoginAttempts; i++ {
		_, err := f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "wrong"})
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}

	_, err := f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	f.clock.Advance(DefaultLoginLockout)
	_, err = f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "secret1"})
	assert.NoError(t, err)
}

func TestAuthService_LoginDirectoryUnavailable(t *testing.T) {
	f := newTestAuthService(t)
	f.users.Err = errors.New("connection refused")

	_, err := f.svc.Login(context.Background(), domain.LoginRequest{Email: "a@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthService_Refresh(t *testing.T) {
	f := newTestAuthService(t)
	f.seed("p-1", "a@x.com")
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	next, err := f.svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, next.AccessToken)

	// Rotation is advisory: the old refresh token still works.
	_, err = f.svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: pair.RefreshToken})
	assert.NoError(t, err)

	_, err = f.svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: pair.AccessToken})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.ErrorIs(t, err, domain.ErrTokenPurposeMismatch)
}

func TestAuthService_RefreshRechecksPrincipal(t *testing.T) {
	f := newTestAuthService(t)
	p := f.seed("p-1", "a@x.com")
	ctx := context.Background()

	refresh, err := f.tokens.Issue("p-1", domain.PurposeRefresh, time.Hour)
	require.NoError(t, err)

	p.Active = false
	f.users.Put(p)
	_, err = f.svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: refresh})
	assert.ErrorIs(t, err, domain.ErrAccountInactive)

	orphan, err := f.tokens.Issue("gone", domain.PurposeRefresh, time.Hour)
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: orphan})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthService_VerifyEmail(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	result, err := f.svc.Register(ctx, domain.RegisterRequest{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	delivery, ok := f.notifier.Last(domain.PurposeEmailVerify)
	require.True(t, ok)

	resp, err := f.svc.VerifyEmail(ctx, delivery.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageEmailVerified, resp.Message)
	assert.True(t, f.users.Get(result.Principal.ID).Verified)

	// Verifying twice succeeds
	_, err = f.svc.VerifyEmail(ctx, delivery.Token)
	assert.NoError(t, err)
}

func TestAuthService_VerifyEmailRejectsBadTokens(t *testing.T) {
	f := newTestAuthService(t)
	f.seed("p-1", "a@x.com")
	ctx := context.Background()

	access, err := f.tokens.Issue("p-1", domain.PurposeAccess, time.Hour)
	require.NoError(t, err)
	orphan, err := f.tokens.Issue("gone", domain.PurposeEmailVerify, time.Hour)
	require.NoError(t, err)
	expiring, err := f.tokens.Issue("p-1", domain.PurposeEmailVerify, time.Minute)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	for name, token := range map[string]string{
		"garbage":         "garbage",
		"wrong purpose":   access,
		"unknown subject": orphan,
		"expired":         expiring,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.VerifyEmail(ctx, token)
			assert.Equal(t, domain.ErrInvalidOrExpiredToken, err)
		})
	}
	assert.False(t, f.users.Get("p-1").Verified)
}

func TestAuthService_RequestPasswordReset(t *testing.T) {
	f := newTestAuthService(t)
	f.seed("p-1", "a@x.com")
	ctx := context.Background()

	known, err := f.svc.RequestPasswordReset(ctx, domain.PasswordResetRequest{Email: "a@x.com"})
	require.NoError(t, err)
	unknown, err := f.svc.RequestPasswordReset(ctx, domain.PasswordResetRequest{Email: "nobody@x.com"})
	require.NoError(t, err)
	invalid, err := f.svc.RequestPasswordReset(ctx, domain.PasswordResetRequest{Email: "nonsense"})
	require.NoError(t, err)

	assert.Equal(t, known, unknown)
	assert.Equal(t, known, invalid)
	assert.Equal(t, domain.MessagePasswordResetRequested, known.Message)

	deliveries := f.notifier.Deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "a@x.com", deliveries[0].Address)
	assert.Equal(t, domain.PurposePasswordReset, deliveries[0].Purpose)
}

func TestAuthService_RequestPasswordResetDeliveryFailure(t *testing.T) {
	f := newTestAuthService(t)
	f.seed("p-1", "a@x.com")
	f.notifier.Err = errors.New("smtp down")

	resp, err := f.svc.RequestPasswordReset(context.Background(), domain.PasswordResetRequest{Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.MessagePasswordResetRequested, resp.Message)
}

func TestAuthService_RequestPasswordResetDirectoryUnavailable(t *testing.T) {
	f := newTestAuthService(t)
	f.users.Err = errors.New("connection refused")

	_, err := f.svc.RequestPasswordReset(context.Background(), domain.PasswordResetRequest{Email: "a@x.com"})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestAuthService_ConfirmPasswordReset(t *testing.T) {
	f := newTestAuthService(t)
	f.seed("p-1", "a@x.com")
	ctx := context.Background()

	_, err := f.svc.RequestPasswordReset(ctx, domain.PasswordResetRequest{Email: "a@x.com"})
	require.NoError(t, err)
	delivery, ok := f.notifier.Last(domain.PurposePasswordReset)
	require.True(t, ok)

	resp, err := f.svc.ConfirmPasswordReset(ctx, domain.PasswordResetConfirm{Token: delivery.Token, NewPassword: "newsecret"})
	require.NoError(t, err)
	assert.Equal(t, domain.MessagePasswordResetDone, resp.Message)

	_, err = f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "newsecret"})
	assert.NoError(t, err)
}

func TestAuthService_ConfirmPasswordResetExpired(t *testing.T) {
	f := newTestAuthService(t)
	f.seed("p-1", "a@x.com")
	ctx := context.Background()

	token, err := f.tokens.Issue("p-1", domain.PurposePasswordReset, f.tokens.TTL(domain.PurposePasswordReset))
	require.NoError(t, err)

	f.clock.Advance(f.tokens.TTL(domain.PurposePasswordReset) + time.Second)

	_, err = f.svc.ConfirmPasswordReset(ctx, domain.PasswordResetConfirm{Token: token, NewPassword: "newsecret"})
	assert.Equal(t, domain.ErrInvalidOrExpiredToken, err)
	assert.Equal(t, "hashed:secret1", f.users.Get("p-1").PasswordHash)
}

func TestAuthService_ConfirmPasswordResetRejects(t *testing.T) {
	f := newTestAuthService(t)
	f.seed("p-1", "a@x.com")
	ctx := context.Background()

	verifyToken, err := f.tokens.Issue("p-1", domain.PurposeEmailVerify, time.Hour)
	require.NoError(t, err)
	resetToken, err := f.tokens.Issue("p-1", domain.PurposePasswordReset, time.Hour)
	require.NoError(t, err)

	_, err = f.svc.ConfirmPasswordReset(ctx, domain.PasswordResetConfirm{Token: verifyToken, NewPassword: "newsecret"})
	assert.Equal(t, domain.ErrInvalidOrExpiredToken, err)

	_, err = f.svc.ConfirmPasswordReset(ctx, domain.PasswordResetConfirm{Token: resetToken, NewPassword: "short"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAuthService_PrincipalDeletedBeforePersist(t *testing.T) {
	f := newTestAuthService(t)
	f.seed("p-1", "a@x.com")
	f.users.PersistErr = domain.ErrNotFound
	ctx := context.Background()

	verifyToken, err := f.tokens.Issue("p-1", domain.PurposeEmailVerify, time.Hour)
	require.NoError(t, err)
	resetToken, err := f.tokens.Issue("p-1", domain.PurposePasswordReset, time.Hour)
	require.NoError(t, err)

	_, err = f.svc.VerifyEmail(ctx, verifyToken)
	assert.Equal(t, domain.ErrInvalidOrExpiredToken, err)

	_, err = f.svc.ConfirmPasswordReset(ctx, domain.PasswordResetConfirm{Token: resetToken, NewPassword: "newsecret"})
	assert.Equal(t, domain.ErrInvalidOrExpiredToken, err)
}

func TestAuthService_RefreshFailureLabelledInvalidToken(t *testing.T) {
	metrics := &mocks.MockAuthMetrics{}
	metrics.On("TokenVerified", mock.Anything, mock.Anything).Maybe()
	metrics.On("FlowCompleted", "refresh", "invalid_token").Once()

	f := newTestAuthService(t, func(cfg *AuthServiceConfig) { cfg.Metrics = metrics })

	_, err := f.svc.Refresh(context.Background(), domain.RefreshRequest{RefreshToken: "garbage"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.ErrorIs(t, err, domain.ErrTokenMalformed)

	metrics.AssertExpectations(t)
}

func TestAuthService_RecordsFlowMetrics(t *testing.T) {
	metrics := &mocks.MockAuthMetrics{}
	metrics.On("FlowCompleted", "login", "invalid_credentials").Once()
	metrics.On("FlowCompleted", "login", "success").Once()

	f := newTestAuthService(t, func(cfg *AuthServiceConfig) { cfg.Metrics = metrics })
	f.seed("p-1", "a@x.com")
	ctx := context.Background()

	_, _ = f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "wrong"})
	_, _ = f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "secret1"})

	metrics.AssertExpectations(t)
	metrics.AssertNotCalled(t, "FlowCompleted", "register", mock.Anything)
}
