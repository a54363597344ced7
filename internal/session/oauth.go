package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var (
	ErrOAuthExchange      = errors.New("oauth code exchange failed")
	ErrUnverifiedIdentity = errors.New("oauth provider has not verified this email")
)

// Identity is what a provider vouches for once an authorization code has
// been exchanged server-side.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Profile       Profile
}

// Exchanger trades the code from a provider redirect for the identity
// behind it.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (Identity, error)
}

type OAuthApp struct {
	Name         string
	AuthorizeURL string
	TokenURL     string
	UserInfoURL  string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Exchanger overrides the token + userinfo exchange built from the URLs.
	Exchanger Exchanger
}

type oauthApp struct {
	config    *oauth2.Config
	exchanger Exchanger
}

// WithOAuth registers an OAuth provider under app.Name.
func WithOAuth(app OAuthApp) ProviderOption {
	return func(p *Provider) {
		cfg := &oauth2.Config{
			ClientID:     app.ClientID,
			ClientSecret: app.ClientSecret,
			RedirectURL:  app.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     oauth2.Endpoint{AuthURL: app.AuthorizeURL, TokenURL: app.TokenURL},
		}
		ex := app.Exchanger
		if ex == nil {
			ex = codeExchanger{config: cfg, userInfoURL: app.UserInfoURL}
		}
		p.oauth[strings.ToLower(app.Name)] = oauthApp{config: cfg, exchanger: ex}
	}
}

// codeExchanger redeems the code at the token endpoint and reads the
// OpenID userinfo document with the resulting access token.
type codeExchanger struct {
	config      *oauth2.Config
	userInfoURL string
}

func (e codeExchanger) Exchange(ctx context.Context, code string) (Identity, error) {
	if e.userInfoURL == "" {
		return Identity{}, errors.New("no userinfo endpoint configured")
	}
	tok, err := e.config.Exchange(ctx, code)
	if err != nil {
		return Identity{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.userInfoURL, nil)
	if err != nil {
		return Identity{}, err
	}
	resp, err := e.config.Client(ctx, tok).Do(req)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("userinfo: status %d", resp.StatusCode)
	}
	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("userinfo: %w", err)
	}
	return Identity{
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Profile:       Profile{DisplayName: info.Name, AvatarURL: info.Picture},
	}, nil
}

// AuthorizeURL is where the browser goes to sign in with provider. state is
// echoed back to the redirect URL.
func (p *Provider) AuthorizeURL(provider, state string) (string, error) {
	app, ok := p.oauth[strings.ToLower(provider)]
	if !ok {
		return "", ErrUnknownProvider
	}
	return app.config.AuthCodeURL(state), nil
}

// CompleteOAuth exchanges code with provider and signs in the identity it
// returns. A new email gets a fresh OAuth-only account. An email that
// already belongs to a password account, or to another provider's login,
// is refused with ErrEmailTaken rather than linked.
func (p *Provider) CompleteOAuth(ctx context.Context, provider, code string) (*Session, error) {
	name := strings.ToLower(provider)
	app, ok := p.oauth[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	if strings.TrimSpace(code) == "" {
		return nil, ErrOAuthExchange
	}
	id, err := app.exchanger.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOAuthExchange, name, err)
	}
	if !id.EmailVerified {
		return nil, ErrUnverifiedIdentity
	}
	email, err := normalizeEmail(id.Email)
	if err != nil {
		return nil, err
	}
	subject := id.Subject
	if subject == "" {
		subject = email
	}
	link := name + ":" + subject

	p.mu.Lock()
	acc, ok := p.byEmail[email]
	switch {
	case !ok:
		acc = &account{id: uuid.NewString(), email: email, profile: id.Profile, verified: true, linked: link}
		p.byEmail[email] = acc
	case acc.hash != nil || acc.linked != link:
		p.mu.Unlock()
		return nil, ErrEmailTaken
	}
	if acc.profile.AvatarURL == "" {
		acc.profile.AvatarURL = id.Profile.AvatarURL
	}
	p.mu.Unlock()
	return p.issue(acc)
}
