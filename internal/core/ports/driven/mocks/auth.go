package mocks

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven"
)

// Ensure mocks implement their ports
var (
	_ driven.PasswordHasher = (*MockPasswordHasher)(nil)
	_ driven.TokenSigner    = (*MockTokenSigner)(nil)
)

// MockPasswordHasher prefixes passwords instead of hashing them.
// NOT secure - only for testing.
type MockPasswordHasher struct {
	HashErr error
	Calls   int // Number of Verify calls
}

// NewMockPasswordHasher creates a new MockPasswordHasher
func NewMockPasswordHasher() *MockPasswordHasher {
	return &MockPasswordHasher{}
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	if m.HashErr != nil {
		return "", m.HashErr
	}
	return "hashed:" + password, nil
}

func (m *MockPasswordHasher) Verify(password, hash string) bool {
	m.Calls++
	return hash == "hashed:"+password
}

// MockTokenSigner encodes claims as base64 JSON followed by a key marker.
// Tokens signed under a different key fail with ErrTokenSignatureInvalid.
type MockTokenSigner struct {
	Key string
}

// NewMockTokenSigner creates a new MockTokenSigner
func NewMockTokenSigner(key string) *MockTokenSigner {
	return &MockTokenSigner{Key: key}
}

func (m *MockTokenSigner) Sign(claims *domain.TokenClaims) (string, error) {
	data, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data) + "." + m.Key, nil
}

func (m *MockTokenSigner) Parse(token string) (*domain.TokenClaims, error) {
	payload, key, ok := strings.Cut(token, ".")
	if !ok {
		return nil, domain.ErrTokenMalformed
	}

	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, domain.ErrTokenMalformed
	}

	var claims domain.TokenClaims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, domain.ErrTokenMalformed
	}

	if key != m.Key {
		return nil, domain.ErrTokenSignatureInvalid
	}

	return &claims, nil
}
