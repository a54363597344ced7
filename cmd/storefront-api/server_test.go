package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klugumair/Luxuryfashion-sub000/internal/config"
	"github.com/klugumair/Luxuryfashion-sub000/internal/session"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestApp(t *testing.T, authOpts ...session.ProviderOption) *app {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Auth.JWTSecret = "test-secret-0123456789"
	cfg.Payment.SimulatedDelay = 0
	a, err := newApp(context.Background(), cfg, logging.NewNop(), prometheus.NewRegistry(), authOpts...)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

// shopper replays the X-Session-ID the server hands out.
type shopper struct {
	t   *testing.T
	h   http.Handler
	sid string
}

func newShopper(t *testing.T, a *app) *shopper {
	return &shopper{t: t, h: a.Router()}
}

func (s *shopper) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.sid != "" {
		req.Header.Set(sessionHeader, s.sid)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	if id := rec.Header().Get(sessionHeader); id != "" {
		s.sid = id
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

var shippingBody = map[string]string{
	"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com",
	"address": "12 Analytical Row", "city": "London", "postal_code": "N1 9GU",
}

func cardBody(number string) map[string]string {
	return map[string]string{"card_number": number, "expiry": "12/29", "cvv": "123", "name_on_card": "Ada Lovelace"}
}

func TestHealthAndCatalog(t *testing.T) {
	s := newShopper(t, newTestApp(t))

	rec := s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/catalog?category=accessories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	products := decode(t, rec)["products"].([]any)
	require.NotEmpty(t, products)
	for _, p := range products {
		assert.Equal(t, "accessories", p.(map[string]any)["category"])
	}

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/catalog/no-such-thing", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/catalog/silk-scarf", nil).Code)
}

func TestCartIsScopedToSession(t *testing.T) {
	a := newTestApp(t)
	alice, bob := newShopper(t, a), newShopper(t, a)

	rec := alice.do(http.MethodPost, "/cart/items", map[string]any{"product_id": "silk-scarf", "quantity": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotEmpty(t, alice.sid)

	assert.Equal(t, 2.0, decode(t, alice.do(http.MethodGet, "/cart", nil))["count"])
	assert.Equal(t, 0.0, decode(t, bob.do(http.MethodGet, "/cart", nil))["count"])
	assert.NotEqual(t, alice.sid, bob.sid)
}

func TestUnknownSessionIDIsReplaced(t *testing.T) {
	a := newTestApp(t)
	planted := &shopper{t: t, h: a.Router(), sid: "chosen-by-attacker"}
	rec := planted.do(http.MethodPost, "/cart/items", map[string]any{"product_id": "silk-scarf", "quantity": 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEqual(t, "chosen-by-attacker", planted.sid)

	victim := &shopper{t: t, h: a.Router(), sid: "chosen-by-attacker"}
	assert.Equal(t, 0.0, decode(t, victim.do(http.MethodGet, "/cart", nil))["count"])
	assert.NotEqual(t, planted.sid, victim.sid)
}

func TestCartMutations(t *testing.T) {
	s := newShopper(t, newTestApp(t))

	rec := s.do(http.MethodPost, "/cart/items", map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(http.MethodPost, "/cart/items", map[string]any{"product_id": "silk-scarf", "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(http.MethodPost, "/cart/items", map[string]any{"product_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/cart/items", map[string]any{"product_id": "silk-scarf"}).Code)

	rec = s.do(http.MethodPatch, "/cart/items/silk-scarf", map[string]any{"quantity": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["count"], "quantity never drops below one")

	rec = s.do(http.MethodPatch, "/cart/items/silk-scarf", map[string]any{"quantity": 3})
	assert.Equal(t, 3.0, decode(t, rec)["count"])

	rec = s.do(http.MethodDelete, "/cart/items/silk-scarf", nil)
	assert.Equal(t, 0.0, decode(t, rec)["count"])
}

func TestWishlistMoveToCart(t *testing.T) {
	s := newShopper(t, newTestApp(t))

	rec := s.do(http.MethodPost, "/wishlist", map[string]any{"product_id": "silk-scarf"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodPost, "/wishlist", map[string]any{"product_id": "silk-scarf"})
	assert.Equal(t, 1.0, decode(t, rec)["count"])

	rec = s.do(http.MethodPost, "/wishlist/silk-scarf/move-to-cart", map[string]any{"remove_from_wishlist": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, 1.0, body["cart"].(map[string]any)["count"])
	assert.Equal(t, 0.0, body["wishlist"].(map[string]any)["count"])

	rec = s.do(http.MethodPost, "/wishlist/silk-scarf/move-to-cart", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/wishlist/silk-scarf/toggle", nil)
	assert.Equal(t, true, decode(t, rec)["saved"])
	rec = s.do(http.MethodPost, "/wishlist/silk-scarf/toggle", nil)
	assert.Equal(t, false, decode(t, rec)["saved"])
}

func TestCheckoutEmptyCartRedirects(t *testing.T) {
	s := newShopper(t, newTestApp(t))

	rec := s.do(http.MethodPost, "/checkout", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "empty_cart", body["error"])
	assert.Equal(t, "/catalog", body["redirect"])

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/checkout", nil).Code)
}

func TestCheckoutHappyPathWithReplay(t *testing.T) {
	s := newShopper(t, newTestApp(t))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/cart/items", map[string]any{"product_id": "silk-scarf"}).Code)

	rec := s.do(http.MethodPost, "/checkout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shipping", decode(t, rec)["state"].(map[string]any)["step"])

	rec = s.do(http.MethodPost, "/checkout/shipping", map[string]string{"first_name": "Ada"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec)["missing"], "postal_code")

	rec = s.do(http.MethodPost, "/checkout/shipping", shippingBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/checkout/payment", cardBody("4242424242424242"), "Idempotency-Key", "pay-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := rec.Body.String()
	body := decode(t, rec)
	assert.Equal(t, "confirmation", body["state"].(map[string]any)["step"])
	totals := body["totals"].(map[string]any)
	assert.Equal(t, "53.18", totals["total"])
	assert.Equal(t, "$53.18", totals["display"].(map[string]any)["total"])
	conf := body["confirmation"].(map[string]any)
	assert.True(t, strings.HasPrefix(conf["order_id"].(string), "LF-"))
	assert.Equal(t, "4242", conf["card_last4"])
	assert.Equal(t, "53.1792", conf["total"])

	assert.Equal(t, 0.0, decode(t, s.do(http.MethodGet, "/cart", nil))["count"])

	rec = s.do(http.MethodPost, "/checkout/payment", cardBody("4242424242424242"), "Idempotency-Key", "pay-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replay"))
	assert.JSONEq(t, first, rec.Body.String())

	rec = s.do(http.MethodPost, "/checkout/payment", cardBody("4242424242424242"), "Idempotency-Key", "pay-2")
	assert.Equal(t, http.StatusConflict, rec.Code, "a confirmed checkout takes no second payment")
}

func TestCheckoutDeclinedKeepsCart(t *testing.T) {
	s := newShopper(t, newTestApp(t))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/cart/items", map[string]any{"product_id": "silk-scarf"}).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/checkout", nil).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/checkout/shipping", shippingBody).Code)

	rec := s.do(http.MethodPost, "/checkout/payment", cardBody("4000000000000002"))
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "payment_failed", decode(t, rec)["error"])
	assert.Equal(t, 1.0, decode(t, s.do(http.MethodGet, "/cart", nil))["count"])

	rec = s.do(http.MethodPost, "/checkout/back", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shipping", decode(t, rec)["state"].(map[string]any)["step"])

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/checkout", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/checkout", nil).Code)
	assert.Equal(t, 1.0, decode(t, s.do(http.MethodGet, "/cart", nil))["count"])
}

func TestAccountRequiresSignIn(t *testing.T) {
	s := newShopper(t, newTestApp(t))

	rec := s.do(http.MethodGet, "/account", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "/auth", decode(t, rec)["redirect"])

	rec = s.do(http.MethodPost, "/auth/sign-up", map[string]string{"email": "ada@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/auth/sign-up", map[string]string{"email": "ada@example.com", "password": "long-enough-pw"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	token := decode(t, rec)["session"].(map[string]any)["token"].(string)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/cart/items", map[string]any{"product_id": "silk-scarf"}).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/checkout", nil).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/checkout/shipping", shippingBody).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/checkout/payment", cardBody("4242424242424242")).Code)

	rec = s.do(http.MethodGet, "/account", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode(t, rec)["orders"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "$53.18", list[0].(map[string]any)["total"])

	other := &shopper{t: t, h: s.h}
	rec = other.do(http.MethodGet, "/account", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code, "a bearer token signs a fresh session in")

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/auth/sign-out", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/account", nil).Code)
	rec = s.do(http.MethodGet, "/auth/session", nil)
	assert.Equal(t, false, decode(t, rec)["authenticated"])
}

type codeBook map[string]session.Identity

func (b codeBook) Exchange(_ context.Context, code string) (session.Identity, error) {
	id, ok := b[code]
	if !ok {
		return session.Identity{}, errors.New("invalid_grant")
	}
	return id, nil
}

func newOAuthTestApp(t *testing.T) *app {
	return newTestApp(t, session.WithOAuth(session.OAuthApp{
		Name:         "google",
		AuthorizeURL: "https://accounts.example.com/o/authorize",
		ClientID:     "client-1",
		Exchanger: codeBook{
			"code-mallory": {Subject: "g-7", Email: "mallory@example.com", EmailVerified: true},
			"code-victim":  {Subject: "g-8", Email: "victim@example.com", EmailVerified: true},
		},
	}))
}

func (s *shopper) oauthState() string {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/auth/oauth/google", nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	u, err := url.Parse(decode(s.t, rec)["redirect_url"].(string))
	require.NoError(s.t, err)
	return u.Query().Get("state")
}

func TestOAuthCallbackIgnoresClaimedEmail(t *testing.T) {
	a := newOAuthTestApp(t)
	victim := newShopper(t, a)
	rec := victim.do(http.MethodPost, "/auth/sign-up", map[string]string{"email": "victim@example.com", "password": "long-enough-pw"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	attacker := newShopper(t, a)
	state := attacker.oauthState()
	rec = attacker.do(http.MethodGet, "/auth/oauth/google/callback?state="+state+"&email=victim@example.com", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusUnauthorized, attacker.do(http.MethodGet, "/account", nil).Code)

	state = attacker.oauthState()
	rec = attacker.do(http.MethodGet, "/auth/oauth/google/callback?state="+state+"&code=code-victim", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "a provider login never attaches to a password account")
	assert.Equal(t, http.StatusUnauthorized, attacker.do(http.MethodGet, "/account", nil).Code)
}

func TestOAuthCallbackSignsIn(t *testing.T) {
	s := newShopper(t, newOAuthTestApp(t))

	rec := s.do(http.MethodGet, "/auth/oauth/google/callback?state=guess&code=code-mallory", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "state must come from this session")

	state := s.oauthState()
	rec = s.do(http.MethodGet, "/auth/oauth/google/callback?state="+state+"&code=code-mallory", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "mallory@example.com", decode(t, rec)["session"].(map[string]any)["email"])
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/account", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newShopper(t, newTestApp(t))
	s.do(http.MethodPost, "/cart/items", map[string]any{"product_id": "silk-scarf"})

	rec := s.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_api_http_requests_total")
	assert.Contains(t, rec.Body.String(), `storefront_cart_mutations_total{op="add"} 1`)
}

func TestClassify(t *testing.T) {
	code, body := classify(badInput(assert.AnError))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", body.Error)

	code, body = classify(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal error", body.Message)
}
