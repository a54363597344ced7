package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Client is the Gateway for one application session. It holds at most one
// signed-in session and notifies listeners whenever that changes.
type Client struct {
	provider *Provider

	mu        sync.Mutex
	current   *Session
	state     string
	listeners []func(*Session)
	stop      func()
}

func newClient(p *Provider) *Client {
	c := &Client{provider: p}
	c.stop = p.Subscribe(c.revoked)
	return c
}

// Resume adopts a token issued earlier, e.g. one the browser sent back.
func (c *Client) Resume(token string) (*Session, error) {
	s, err := c.provider.Parse(token)
	if err != nil {
		return nil, err
	}
	c.set(s)
	return s, nil
}

// CurrentSession returns nil, nil when nobody is signed in. An expired or
// revoked session is dropped and listeners are told.
func (c *Client) CurrentSession(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil {
		return nil, nil
	}
	if _, err := c.provider.Parse(cur.Token); err != nil {
		c.clearIf(cur)
		return nil, nil
	}
	out := *cur
	return &out, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := c.provider.Authenticate(email, password)
	if err != nil {
		return nil, err
	}
	c.set(s)
	return s, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string, profile Profile) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := c.provider.Register(email, password, profile)
	if err != nil || s == nil {
		return nil, err
	}
	c.set(s)
	return s, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil {
		return nil
	}
	c.clearIf(cur)
	c.provider.Revoke(cur.Token)
	return nil
}

// SignInWithOAuth returns the provider redirect. The session appears later,
// once CompleteOAuth runs with the matching state.
func (c *Client) SignInWithOAuth(ctx context.Context, provider string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	state := uuid.NewString()
	u, err := c.provider.AuthorizeURL(provider, state)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	return u, nil
}

var ErrStateMismatch = errors.New("oauth state does not match")

// CompleteOAuth is the callback half of SignInWithOAuth. The identity comes
// from exchanging code with the provider, never from the caller.
func (c *Client) CompleteOAuth(ctx context.Context, provider, state, code string) (*Session, error) {
	c.mu.Lock()
	want := c.state
	c.state = ""
	c.mu.Unlock()
	if want == "" || state != want {
		return nil, ErrStateMismatch
	}
	s, err := c.provider.CompleteOAuth(ctx, provider, code)
	if err != nil {
		return nil, err
	}
	c.set(s)
	return s, nil
}

func (c *Client) OnChange(fn func(*Session)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Close detaches the client from provider notifications.
func (c *Client) Close() {
	c.mu.Lock()
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (c *Client) revoked(userID string) {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil || cur.UserID != userID {
		return
	}
	if _, err := c.provider.Parse(cur.Token); err != nil {
		c.clearIf(cur)
	}
}

func (c *Client) set(s *Session) {
	c.mu.Lock()
	c.current = s
	listeners := append([]func(*Session){}, c.listeners...)
	c.mu.Unlock()
	notify(listeners, s)
}

// clearIf drops s only if it is still the current session, so a concurrent
// sign-in is not undone.
func (c *Client) clearIf(s *Session) {
	c.mu.Lock()
	if c.current != s {
		c.mu.Unlock()
		return
	}
	c.current = nil
	listeners := append([]func(*Session){}, c.listeners...)
	c.mu.Unlock()
	notify(listeners, nil)
}

func notify(listeners []func(*Session), s *Session) {
	for _, fn := range listeners {
		var cp *Session
		if s != nil {
			v := *s
			cp = &v
		}
		fn(cp)
	}
}
