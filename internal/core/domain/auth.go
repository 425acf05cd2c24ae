package domain

// RegisterRequest represents a sign-up attempt
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResult is returned after a successful registration.
// Warning is set when the verification message could not be delivered.
type RegisterResult struct {
	Principal *Principal `json:"-"`
	Warning   string     `json:"warning,omitempty"`
}

// LoginRequest represents a login attempt
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents a token refresh attempt
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// PasswordResetRequest represents a password reset request
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirm represents a password reset confirmation
type PasswordResetConfirm struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// MessageResponse is a generic acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// Generic acknowledgements. The reset-request message is identical whether or
// not the address belongs to an account.
const (
	MessagePasswordResetRequested = "If the email is registered, password reset instructions have been sent"
	MessagePasswordResetDone      = "Password has been reset successfully"
	MessageEmailVerified          = "Email verified successfully"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 6

// DeliveryResult records the outcome of a best-effort notification.
// It is logged by the caller and never propagated as an error.
type DeliveryResult struct {
	Address string
	Purpose TokenPurpose
	Err     error
}

// Delivered reports whether the notification was handed to the transport
func (r DeliveryResult) Delivered() bool {
	return r.Err == nil
}
