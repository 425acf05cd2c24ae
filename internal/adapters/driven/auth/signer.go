package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven"
)

// Ensure JWTSigner implements TokenSigner
var _ driven.TokenSigner = (*JWTSigner)(nil)

// Issuer is the iss claim stamped on every token
const Issuer = "authcore"

// jwtClaims carries the token purpose next to the registered claims
type jwtClaims struct {
	Purpose domain.TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// JWTSigner signs claims as compact JWS using an HMAC algorithm
type JWTSigner struct {
	secret []byte
	method jwt.SigningMethod
}

// NewJWTSigner creates a signer for HS256, HS384 or HS512
func NewJWTSigner(secret, algorithm string) (*JWTSigner, error) {
	if secret == "" {
		return nil, errors.New("signing secret is empty")
	}

	var method jwt.SigningMethod
	switch strings.ToUpper(algorithm) {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	return &JWTSigner{secret: []byte(secret), method: method}, nil
}

// Algorithm returns the JWS alg header value
func (s *JWTSigner) Algorithm() string {
	return s.method.Alg()
}

// Sign creates a signed JWT from domain claims
func (s *JWTSigner) Sign(claims *domain.TokenClaims) (string, error) {
	jc := jwtClaims{
		Purpose: claims.Purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.ID,
			Issuer:    Issuer,
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(s.method, jc)
	return token.SignedString(s.secret)
}

// Parse checks the signature and decodes the claims. Expiry and purpose are
// left to the caller, which owns the clock.
func (s *JWTSigner) Parse(tokenString string) (*domain.TokenClaims, error) {
	var jc jwtClaims
	_, err := jwt.ParseWithClaims(tokenString, &jc, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenUnverifiable) {
			return nil, fmt.Errorf("%w: %v", domain.ErrTokenSignatureInvalid, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
	}

	claims := &domain.TokenClaims{
		ID:      jc.ID,
		Subject: jc.Subject,
		Purpose: jc.Purpose,
	}
	if jc.IssuedAt != nil {
		claims.IssuedAt = jc.IssuedAt.Time
	}
	if jc.ExpiresAt != nil {
		claims.ExpiresAt = jc.ExpiresAt.Time
	}
	return claims, nil
}
