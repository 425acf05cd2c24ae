package driven

import "github.com/custodia-labs/authcore/internal/core/domain"

// PasswordHasher produces and checks one-way adaptive password digests.
type PasswordHasher interface {
	// Hash returns a salted digest; two calls with the same input differ.
	Hash(password string) (string, error)

	// Verify compares in constant time. A malformed digest yields false.
	Verify(password, hash string) bool
}

// TokenSigner encodes and decodes signed claims.
// It does NOT check expiry or purpose - TokenService owns those rules.
type TokenSigner interface {
	// Sign serializes and signs the claims.
	Sign(claims *domain.TokenClaims) (string, error)

	// Parse decodes the token and checks its signature. Failures are
	// domain.ErrTokenMalformed or domain.ErrTokenSignatureInvalid.
	Parse(token string) (*domain.TokenClaims, error)
}
