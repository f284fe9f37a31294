package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

var (
	ErrGoogleDisabled   = errors.New("google login is not configured")
	ErrGoogleNoEmail    = errors.New("google token carries no email")
	ErrGoogleUnverified = errors.New("google account email is not verified")
)

// GoogleIdentity is the part of a verified Google ID token digifuse uses.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// GoogleVerifier checks Google ID tokens against the configured OAuth client.
type GoogleVerifier struct {
	clientID string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, validate: idtoken.Validate}
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (*GoogleIdentity, error) {
	if v.clientID == "" {
		return nil, ErrGoogleDisabled
	}
	payload, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("validate google token: %w", err)
	}
	return identityFromClaims(payload)
}

func identityFromClaims(p *idtoken.Payload) (*GoogleIdentity, error) {
	email, _ := p.Claims["email"].(string)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrGoogleNoEmail
	}
	// Google sends email_verified as a bool, older tokens as a string.
	switch verified := p.Claims["email_verified"].(type) {
	case bool:
		if !verified {
			return nil, ErrGoogleUnverified
		}
	case string:
		if verified != "true" {
			return nil, ErrGoogleUnverified
		}
	}
	name, _ := p.Claims["name"].(string)
	return &GoogleIdentity{Subject: p.Subject, Email: email, Name: name}, nil
}

// UsernameFromEmail returns the local part of email.
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// UnusablePasswordHash hashes a random secret nobody knows, for accounts
// that only sign in through Google.
func UnusablePasswordHash() (string, error) {
	secret, err := randomToken(32)
	if err != nil {
		return "", err
	}
	return HashPassword(secret)
}
