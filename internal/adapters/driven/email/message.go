// Package email delivers verification and password-reset links.
package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/authcore/internal/core/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Message is a rendered notification
type Message struct {
	To      string
	Subject string
	Link    string
	HTML    string
}

// Composer turns a purpose token into a message with a link back to the API
type Composer struct {
	baseURL string
	ttls    map[domain.TokenPurpose]time.Duration
}

// NewComposer creates a Composer. baseURL is the public origin, e.g. https://auth.example.com.
func NewComposer(baseURL string, verifyTTL, resetTTL time.Duration) *Composer {
	return &Composer{
		baseURL: strings.TrimRight(baseURL, "/"),
		ttls: map[domain.TokenPurpose]time.Duration{
			domain.PurposeEmailVerify:   verifyTTL,
			domain.PurposePasswordReset: resetTTL,
		},
	}
}

// Compose renders the message for purpose
func (c *Composer) Compose(address string, purpose domain.TokenPurpose, token string) (*Message, error) {
	var subject, name, link string
	switch purpose {
	case domain.PurposeEmailVerify:
		subject = "Email Verification"
		name = "email_verify.html"
		link = c.baseURL + "/api/v1/auth/verify-email/" + url.PathEscape(token)
	case domain.PurposePasswordReset:
		subject = "Password Reset Request"
		name = "password_reset.html"
		link = c.baseURL + "/reset-password?token=" + url.QueryEscape(token)
	default:
		return nil, fmt.Errorf("%w: no message for purpose %q", domain.ErrInvalidInput, purpose)
	}

	var body bytes.Buffer
	err := templates.ExecuteTemplate(&body, name, struct {
		Link      string
		ExpiresIn string
	}{
		Link:      link,
		ExpiresIn: humanDuration(c.ttls[purpose]),
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}

	return &Message{To: address, Subject: subject, Link: link, HTML: body.String()}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short while"
	case d%time.Hour == 0 && d >= time.Hour:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	default:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
}
