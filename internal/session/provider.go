package session

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTTL         = 7 * 24 * time.Hour
	DefaultMinPassword = 8
	issuer             = "luxuryfashion-storefront"
)

// Claims carried by a session token.
type Claims struct {
	Email       string `json:"email"`
	DisplayName string `json:"name,omitempty"`
	AvatarURL   string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

type account struct {
	id       string
	email    string
	hash     []byte
	profile  Profile
	verified bool
	// linked is the provider:subject that created an OAuth-only account.
	linked string
}

type ProviderOption func(*Provider)

// WithVerification makes new password accounts unusable until Verify is
// called for them.
func WithVerification(required bool) ProviderOption {
	return func(p *Provider) { p.requireVerification = required }
}

func WithTTL(ttl time.Duration) ProviderOption {
	return func(p *Provider) { p.ttl = ttl }
}

func WithProviderClock(now func() time.Time) ProviderOption {
	return func(p *Provider) { p.now = now }
}

func WithHashCost(cost int) ProviderOption {
	return func(p *Provider) { p.hashCost = cost }
}

func WithMinPassword(n int) ProviderOption {
	return func(p *Provider) { p.minPassword = n }
}

// Provider is a local identity backend: bcrypt password hashes and HS256
// session tokens. It stands in for a hosted auth service.
type Provider struct {
	secret              []byte
	ttl                 time.Duration
	now                 func() time.Time
	minPassword         int
	hashCost            int
	requireVerification bool
	oauth               map[string]oauthApp

	mu        sync.RWMutex
	byEmail   map[string]*account
	revoked   map[string]time.Time
	listeners map[int]func(userID string)
	nextSub   int
}

func NewProvider(secret []byte, opts ...ProviderOption) (*Provider, error) {
	if len(secret) < 16 {
		return nil, errors.New("session: signing secret must be at least 16 bytes")
	}
	p := &Provider{
		secret:      secret,
		ttl:         DefaultTTL,
		now:         time.Now,
		minPassword: DefaultMinPassword,
		hashCost:    bcrypt.DefaultCost,
		oauth:       map[string]oauthApp{},
		byEmail:     map[string]*account{},
		revoked:     map[string]time.Time{},
		listeners:   map[int]func(string){},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Register creates a password account. The returned session is nil when the
// account still needs verification.
func (p *Provider) Register(email, password string, profile Profile) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < p.minPassword {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p.mu.Lock()
	if _, ok := p.byEmail[email]; ok {
		p.mu.Unlock()
		return nil, ErrEmailTaken
	}
	acc := &account{
		id:       uuid.NewString(),
		email:    email,
		hash:     hash,
		profile:  profile,
		verified: !p.requireVerification,
	}
	p.byEmail[email] = acc
	p.mu.Unlock()

	if !acc.verified {
		return nil, nil
	}
	return p.issue(acc)
}

// Verify marks email as confirmed.
func (p *Provider) Verify(email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.byEmail[email]
	if !ok {
		return ErrInvalidCredentials
	}
	acc.verified = true
	return nil
}

func (p *Provider) Authenticate(email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	p.mu.RLock()
	acc, ok := p.byEmail[email]
	p.mu.RUnlock()
	if !ok || acc.hash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !acc.verified {
		return nil, ErrVerificationPending
	}
	return p.issue(acc)
}

func (p *Provider) issue(acc *account) (*Session, error) {
	now := p.now()
	exp := now.Add(p.ttl)
	claims := Claims{
		Email:       acc.email,
		DisplayName: acc.profile.DisplayName,
		AvatarURL:   acc.profile.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   acc.id,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	return &Session{
		UserID:      acc.id,
		Email:       acc.email,
		DisplayName: acc.profile.DisplayName,
		AvatarURL:   acc.profile.AvatarURL,
		Token:       token,
		ExpiresAt:   exp.Truncate(time.Second),
	}, nil
}

// Parse validates token and returns the session it encodes.
func (p *Provider) Parse(token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	p.mu.RLock()
	_, revoked := p.revoked[claims.ID]
	p.mu.RUnlock()
	if revoked {
		return nil, ErrInvalidToken
	}
	return &Session{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		AvatarURL:   claims.AvatarURL,
		Token:       token,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Revoke invalidates token and tells every Client of that user. Unknown or
// malformed tokens are ignored.
func (p *Provider) Revoke(token string) {
	claims := &Claims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil || claims.ID == "" {
		return
	}
	p.mu.Lock()
	exp := p.now().Add(p.ttl)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	p.revoked[claims.ID] = exp
	p.pruneLocked()
	listeners := make([]func(string), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(claims.Subject)
	}
}

// Subscribe registers fn to hear about revoked sessions by user id. The
// returned func removes it.
func (p *Provider) Subscribe(fn func(userID string)) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) pruneLocked() {
	now := p.now()
	for id, exp := range p.revoked {
		if now.After(exp) {
			delete(p.revoked, id)
		}
	}
}

// Client returns a Gateway for one application session.
func (p *Provider) Client() *Client {
	return newClient(p)
}

var _ Gateway = (*Client)(nil)

// Noop is used where no provider is configured; nobody is ever signed in.
type Noop struct{}

func (Noop) CurrentSession(context.Context) (*Session, error) { return nil, nil }
func (Noop) SignIn(context.Context, string, string) (*Session, error) {
	return nil, ErrInvalidCredentials
}
func (Noop) SignUp(context.Context, string, string, Profile) (*Session, error) {
	return nil, ErrInvalidCredentials
}
func (Noop) SignOut(context.Context) error { return nil }
func (Noop) SignInWithOAuth(context.Context, string) (string, error) {
	return "", ErrUnknownProvider
}
func (Noop) OnChange(func(*Session)) {}
