// Package session is the storefront's view of the identity provider. Pages
// only ask whether a session exists; everything else goes through Gateway.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailTaken          = errors.New("an account with this email already exists")
	ErrVerificationPending = errors.New("email address has not been verified")
	ErrUnknownProvider     = errors.New("unknown oauth provider")
	ErrInvalidToken        = errors.New("invalid or expired session token")
	ErrWeakPassword        = errors.New("password is too short")
	ErrInvalidEmail        = errors.New("email address is not valid")
)

type Session struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Profile struct {
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Gateway is the contract the storefront holds with the auth provider.
// SignUp returns a nil session when the provider requires the address to be
// verified first. OnChange listeners fire on every sign-in, sign-out and
// expiry, including changes that did not originate from this gateway.
type Gateway interface {
	CurrentSession(ctx context.Context) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, profile Profile) (*Session, error)
	SignOut(ctx context.Context) error
	SignInWithOAuth(ctx context.Context, provider string) (string, error)
	OnChange(fn func(*Session))
}

// Authenticated is the one question pages ask.
func Authenticated(ctx context.Context, g Gateway) bool {
	if g == nil {
		return false
	}
	s, err := g.CurrentSession(ctx)
	return err == nil && s != nil
}
