package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/klugumair/Luxuryfashion-sub000/internal/cart"
	"github.com/klugumair/Luxuryfashion-sub000/internal/catalog"
	"github.com/klugumair/Luxuryfashion-sub000/internal/checkout"
	"github.com/klugumair/Luxuryfashion-sub000/internal/orders"
	"github.com/klugumair/Luxuryfashion-sub000/internal/session"
	"github.com/klugumair/Luxuryfashion-sub000/internal/storefront"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/logging"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/metrics"
)

const (
	sessionHeader = "X-Session-ID"
	shopKey       = "shop"
)

var errBadInput = errors.New("invalid input")

type errorResponse struct {
	Error    string   `json:"error"`
	Message  string   `json:"message"`
	Missing  []string `json:"missing,omitempty"`
	Redirect string   `json:"redirect,omitempty"`
}

func (a *app) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), a.observe())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.HandlerFor(a.gatherer)))
	r.GET("/catalog", a.listCatalog)
	r.GET("/catalog/:id", a.getProduct)

	s := r.Group("", a.withShop())
	s.GET("/cart", a.getCart)
	s.POST("/cart/items", a.addCartItem)
	s.PATCH("/cart/items/:productId", a.updateCartItem)
	s.DELETE("/cart/items/:productId", a.removeCartItem)

	s.GET("/wishlist", a.getWishlist)
	s.POST("/wishlist", a.addWishlistItem)
	s.DELETE("/wishlist/:productId", a.removeWishlistItem)
	s.POST("/wishlist/:productId/toggle", a.toggleWishlistItem)
	s.POST("/wishlist/:productId/move-to-cart", a.moveToCart)

	s.POST("/checkout", a.beginCheckout)
	s.GET("/checkout", a.getCheckout)
	s.POST("/checkout/shipping", a.submitShipping)
	s.POST("/checkout/back", a.checkoutBack)
	s.POST("/checkout/payment", a.submitPayment)
	s.DELETE("/checkout", a.abandonCheckout)

	s.POST("/auth/sign-up", a.signUp)
	s.POST("/auth/sign-in", a.signIn)
	s.POST("/auth/sign-out", a.signOut)
	s.GET("/auth/session", a.currentSession)
	s.GET("/auth/oauth/:provider", a.oauthRedirect)
	s.GET("/auth/oauth/:provider/callback", a.oauthCallback)

	s.GET("/account", a.requireAuth(), a.account)
	return r
}

// observe records request metrics and bounds the request context.
func (a *app) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		if d := a.cfg.Server.RequestTimeout; d > 0 {
			ctx, cancel := context.WithTimeout(c.Request.Context(), d)
			defer cancel()
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		a.http.Observe(route, strconv.Itoa(c.Writer.Status()), start)
	}
}

// withShop resolves the shopper's Shop from X-Session-ID and echoes the id
// back. A bearer token adopts an earlier sign-in.
func (a *app) withShop() gin.HandlerFunc {
	return func(c *gin.Context) {
		shop, id := a.shops.Get(strings.TrimSpace(c.GetHeader(sessionHeader)))
		c.Header(sessionHeader, id)
		if tok := bearer(c); tok != "" && !shop.IsAuthenticated(c.Request.Context()) {
			if cl, ok := shop.Session.(*session.Client); ok {
				if _, err := cl.Resume(tok); err != nil {
					a.log.Log(logging.Fields{SessionID: id, Step: "resume_session", Status: "rejected", Err: err})
				}
			}
		}
		c.Set(shopKey, shop)
		c.Next()
	}
}

func (a *app) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !shopOf(c).IsAuthenticated(c.Request.Context()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
				Error:    "unauthorized",
				Message:  "sign in to view your account",
				Redirect: "/auth",
			})
			return
		}
		c.Next()
	}
}

func shopOf(c *gin.Context) *storefront.Shop {
	return c.MustGet(shopKey).(*storefront.Shop)
}

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func badInput(err error) error {
	return fmt.Errorf("%w: %w", errBadInput, err)
}

// fail writes the JSON error for err.
func (a *app) fail(c *gin.Context, err error) {
	code, body := classify(err)
	if code >= http.StatusInternalServerError {
		a.log.Log(logging.Fields{Step: c.FullPath(), Status: "error", Err: err})
	}
	c.JSON(code, body)
}

func classify(err error) (int, errorResponse) {
	var (
		verr *checkout.ValidationError
		perr *checkout.PaymentError
	)
	body := errorResponse{Message: err.Error()}
	switch {
	case errors.As(err, &verr):
		body.Error, body.Missing = "validation_failed", verr.Missing
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, checkout.ErrEmptyCart):
		body.Error, body.Redirect = "empty_cart", "/catalog"
		return http.StatusConflict, body
	case errors.Is(err, checkout.ErrAbandoned):
		body.Error = "checkout_abandoned"
		return http.StatusConflict, body
	case errors.As(err, &perr):
		body.Error = "payment_failed"
		return http.StatusPaymentRequired, body
	case errors.Is(err, checkout.ErrPaymentInProgress):
		body.Error = "payment_in_progress"
		return http.StatusConflict, body
	case errors.Is(err, checkout.ErrInvalidTransition):
		body.Error = "invalid_transition"
		return http.StatusConflict, body
	case errors.Is(err, storefront.ErrNoCheckout):
		body.Error = "no_checkout"
		return http.StatusNotFound, body
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, storefront.ErrNotInWishlist),
		errors.Is(err, orders.ErrNotFound),
		errors.Is(err, session.ErrUnknownProvider):
		body.Error = "not_found"
		return http.StatusNotFound, body
	case errors.Is(err, session.ErrInvalidCredentials),
		errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, session.ErrOAuthExchange):
		body.Error = "unauthorized"
		return http.StatusUnauthorized, body
	case errors.Is(err, session.ErrVerificationPending):
		body.Error = "verification_pending"
		return http.StatusForbidden, body
	case errors.Is(err, session.ErrUnverifiedIdentity):
		body.Error = "unverified_identity"
		return http.StatusForbidden, body
	case errors.Is(err, session.ErrEmailTaken):
		body.Error = "email_taken"
		return http.StatusConflict, body
	case errors.Is(err, errBadInput),
		errors.Is(err, cart.ErrMissingProductID),
		errors.Is(err, cart.ErrInvalidPrice),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, session.ErrWeakPassword),
		errors.Is(err, session.ErrInvalidEmail),
		errors.Is(err, session.ErrStateMismatch):
		body.Error = "bad_request"
		return http.StatusBadRequest, body
	}
	body.Error, body.Message = "internal", "internal error"
	return http.StatusInternalServerError, body
}
