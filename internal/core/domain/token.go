package domain

import "time"

// TokenPurpose identifies what action a token authorizes.
type TokenPurpose string

const (
	PurposeAccess        TokenPurpose = "access"
	PurposeRefresh       TokenPurpose = "refresh"
	PurposeEmailVerify   TokenPurpose = "email_verify"
	PurposePasswordReset TokenPurpose = "password_reset"
)

// Valid reports whether p is one of the four known purposes.
func (p TokenPurpose) Valid() bool {
	switch p {
	case PurposeAccess, PurposeRefresh, PurposeEmailVerify, PurposePasswordReset:
		return true
	}
	return false
}

// TokenClaims is the payload carried inside a signed token.
type TokenClaims struct {
	ID        string       `json:"jti"`
	Subject   string       `json:"sub"`
	Purpose   TokenPurpose `json:"purpose"`
	IssuedAt  time.Time    `json:"iat"`
	ExpiresAt time.Time    `json:"exp"`
}

// ExpiredAt reports whether the claims are expired at the given instant.
// A token is valid only while now < ExpiresAt.
func (c *TokenClaims) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type" example:"bearer"`
	ExpiresIn    int64  `json:"expires_in" example:"1800"` // access token lifetime in seconds
}
