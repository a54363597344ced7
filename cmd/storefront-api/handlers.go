package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/klugumair/Luxuryfashion-sub000/internal/cart"
	"github.com/klugumair/Luxuryfashion-sub000/internal/checkout"
	"github.com/klugumair/Luxuryfashion-sub000/internal/orders"
	"github.com/klugumair/Luxuryfashion-sub000/internal/pricing"
	"github.com/klugumair/Luxuryfashion-sub000/internal/session"
	"github.com/klugumair/Luxuryfashion-sub000/internal/storefront"
	"github.com/klugumair/Luxuryfashion-sub000/internal/wishlist"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/idempotency"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/money"
)

type totalsView struct {
	Subtotal              decimal.Decimal   `json:"subtotal"`
	ShippingCost          decimal.Decimal   `json:"shipping_cost"`
	Tax                   decimal.Decimal   `json:"tax"`
	Total                 decimal.Decimal   `json:"total"`
	FreeShipping          bool              `json:"free_shipping"`
	FreeShippingRemaining decimal.Decimal   `json:"free_shipping_remaining"`
	Display               map[string]string `json:"display"`
}

func newTotals(r pricing.Result, rules pricing.Rules) totalsView {
	return totalsView{
		Subtotal:              money.Round2(r.Subtotal),
		ShippingCost:          money.Round2(r.ShippingCost),
		Tax:                   money.Round2(r.Tax),
		Total:                 money.Round2(r.Total),
		FreeShipping:          r.FreeShipping(),
		FreeShippingRemaining: pricing.RemainingForFreeShipping(r.Subtotal, rules),
		Display: map[string]string{
			"subtotal":      money.Format(r.Subtotal),
			"shipping_cost": money.Format(r.ShippingCost),
			"tax":           money.Format(r.Tax),
			"total":         money.Format(r.Total),
		},
	}
}

type cartView struct {
	Items  []cart.LineItem `json:"items"`
	Count  int             `json:"count"`
	Totals totalsView      `json:"totals"`
}

func viewCart(s *storefront.Shop) cartView {
	snap := s.Cart.Snapshot()
	items := snap.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	return cartView{
		Items:  items,
		Count:  snap.Count(),
		Totals: newTotals(pricing.Quote(snap, s.Rules()), s.Rules()),
	}
}

type wishlistView struct {
	Items []wishlist.Item `json:"items"`
	Count int             `json:"count"`
}

func viewWishlist(s *storefront.Shop) wishlistView {
	items := s.Wishlist.Items()
	if items == nil {
		items = []wishlist.Item{}
	}
	return wishlistView{Items: items, Count: len(items)}
}

type checkoutView struct {
	State        checkout.State         `json:"state"`
	Reference    string                 `json:"reference"`
	Totals       totalsView             `json:"totals"`
	Confirmation *checkout.Confirmation `json:"confirmation,omitempty"`
}

func viewCheckout(seq *checkout.Sequencer, rules pricing.Rules) checkoutView {
	v := checkoutView{
		State:     seq.State(),
		Reference: seq.Reference(),
		Totals:    newTotals(seq.Totals(), rules),
	}
	if conf, ok := seq.Confirmation(); ok {
		v.Confirmation = &conf
	}
	return v
}

// catalog

func (a *app) listCatalog(c *gin.Context) {
	products := a.catalog.All()
	if cat := strings.TrimSpace(c.Query("category")); cat != "" {
		products = a.catalog.ByCategory(cat)
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "categories": a.catalog.Categories()})
}

func (a *app) getProduct(c *gin.Context) {
	p, err := a.catalog.Get(c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// cart

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  *int   `json:"quantity"`
}

func (a *app) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, viewCart(shopOf(c)))
}

func (a *app) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, badInput(err))
		return
	}
	p, err := a.catalog.Get(req.ProductID)
	if err != nil {
		a.fail(c, err)
		return
	}
	v := p.DefaultVariant()
	if req.Size != "" {
		v.Size = req.Size
	}
	if req.Color != "" {
		v.Color = req.Color
	}
	line, err := p.LineItem(v)
	if err != nil {
		a.fail(c, badInput(err))
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	shop := shopOf(c)
	if err := shop.Cart.AddItem(line, qty); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewCart(shop))
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// updateCartItem clamps to a minimum of one; unknown products are ignored.
func (a *app) updateCartItem(c *gin.Context) {
	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, badInput(err))
		return
	}
	shop := shopOf(c)
	shop.Cart.UpdateQuantity(cart.ProductID(c.Param("productId")), req.Quantity)
	c.JSON(http.StatusOK, viewCart(shop))
}

// removeCartItem drops every variant of the product.
func (a *app) removeCartItem(c *gin.Context) {
	shop := shopOf(c)
	shop.Cart.RemoveItem(cart.ProductID(c.Param("productId")))
	c.JSON(http.StatusOK, viewCart(shop))
}

// wishlist

type wishlistRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

func (a *app) getWishlist(c *gin.Context) {
	c.JSON(http.StatusOK, viewWishlist(shopOf(c)))
}

func (a *app) addWishlistItem(c *gin.Context) {
	var req wishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, badInput(err))
		return
	}
	p, err := a.catalog.Get(req.ProductID)
	if err != nil {
		a.fail(c, err)
		return
	}
	shop := shopOf(c)
	shop.Wishlist.Add(p.WishlistItem())
	c.JSON(http.StatusOK, viewWishlist(shop))
}

func (a *app) removeWishlistItem(c *gin.Context) {
	shop := shopOf(c)
	shop.Wishlist.Remove(c.Param("productId"))
	c.JSON(http.StatusOK, viewWishlist(shop))
}

func (a *app) toggleWishlistItem(c *gin.Context) {
	p, err := a.catalog.Get(c.Param("productId"))
	if err != nil {
		a.fail(c, err)
		return
	}
	shop := shopOf(c)
	saved := shop.Wishlist.Toggle(p.WishlistItem())
	c.JSON(http.StatusOK, gin.H{"saved": saved, "wishlist": viewWishlist(shop)})
}

type moveToCartRequest struct {
	Size   string `json:"size"`
	Color  string `json:"color"`
	Remove bool   `json:"remove_from_wishlist"`
}

func (a *app) moveToCart(c *gin.Context) {
	var req moveToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		a.fail(c, badInput(err))
		return
	}
	id := c.Param("productId")
	v := cart.Variant{Size: req.Size, Color: req.Color}
	if p, err := a.catalog.Get(id); err == nil {
		d := p.DefaultVariant()
		if v.Size == "" {
			v.Size = d.Size
		}
		if v.Color == "" {
			v.Color = d.Color
		}
	}
	shop := shopOf(c)
	if err := shop.MoveToCart(id, v, req.Remove); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": viewCart(shop), "wishlist": viewWishlist(shop)})
}

// checkout

func (a *app) beginCheckout(c *gin.Context) {
	shop := shopOf(c)
	seq, err := shop.BeginCheckout(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewCheckout(seq, shop.Rules()))
}

func (a *app) getCheckout(c *gin.Context) {
	shop := shopOf(c)
	seq, err := shop.Checkout()
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewCheckout(seq, shop.Rules()))
}

func (a *app) submitShipping(c *gin.Context) {
	var form checkout.ShippingForm
	if err := c.ShouldBindJSON(&form); err != nil {
		a.fail(c, badInput(err))
		return
	}
	shop := shopOf(c)
	seq, err := shop.Checkout()
	if err != nil {
		a.fail(c, err)
		return
	}
	if err := seq.SubmitShipping(form); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewCheckout(seq, shop.Rules()))
}

func (a *app) checkoutBack(c *gin.Context) {
	shop := shopOf(c)
	seq, err := shop.Checkout()
	if err != nil {
		a.fail(c, err)
		return
	}
	if err := seq.Back(); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewCheckout(seq, shop.Rules()))
}

// submitPayment honors Idempotency-Key per session: a repeated key gets the
// recorded reply instead of a second authorization. The authorization is
// not tied to the client connection; the sequencer's own timeout bounds it.
func (a *app) submitPayment(c *gin.Context) {
	shop := shopOf(c)
	replayKey := ""
	if k := idempotency.Key(c.Request); k != "" {
		replayKey = shop.ID + ":" + k
		if resp, ok := a.replays.Get(replayKey); ok {
			c.Header("Idempotent-Replay", "true")
			c.Data(resp.Status, "application/json; charset=utf-8", resp.Body)
			return
		}
	}

	var form checkout.PaymentForm
	if err := c.ShouldBindJSON(&form); err != nil {
		a.fail(c, badInput(err))
		return
	}
	seq, err := shop.Checkout()
	if err != nil {
		a.fail(c, err)
		return
	}

	status, body := http.StatusOK, any(nil)
	if _, err := seq.SubmitPayment(context.WithoutCancel(c.Request.Context()), form); err != nil {
		status, body = classify(err)
	} else {
		body = viewCheckout(seq, shop.Rules())
	}
	data, err := json.Marshal(body)
	if err != nil {
		a.fail(c, err)
		return
	}
	if status != http.StatusConflict {
		a.replays.Put(replayKey, idempotency.Response{Status: status, Body: data})
	}
	c.Data(status, "application/json; charset=utf-8", data)
}

func (a *app) abandonCheckout(c *gin.Context) {
	shopOf(c).AbandonCheckout()
	c.Status(http.StatusNoContent)
}

// auth

type credentialsRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

func (a *app) signUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, badInput(err))
		return
	}
	s, err := shopOf(c).Session.SignUp(c.Request.Context(), req.Email, req.Password, session.Profile{
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	if s == nil {
		c.JSON(http.StatusAccepted, gin.H{"verification_pending": true, "message": "check your inbox to verify your email"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": s})
}

func (a *app) signIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, badInput(err))
		return
	}
	s, err := shopOf(c).Session.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s})
}

func (a *app) signOut(c *gin.Context) {
	if err := shopOf(c).Session.SignOut(c.Request.Context()); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *app) currentSession(c *gin.Context) {
	s, err := shopOf(c).Session.CurrentSession(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": s != nil, "session": s})
}

func (a *app) oauthRedirect(c *gin.Context) {
	u, err := shopOf(c).Session.SignInWithOAuth(c.Request.Context(), c.Param("provider"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"redirect_url": u})
}

// oauthCallback completes a round trip started by oauthRedirect. Only the
// state and the authorization code are read from the request; the identity
// comes from the server-side code exchange.
func (a *app) oauthCallback(c *gin.Context) {
	cl, ok := shopOf(c).Session.(*session.Client)
	if !ok {
		a.fail(c, session.ErrUnknownProvider)
		return
	}
	s, err := cl.CompleteOAuth(c.Request.Context(), c.Param("provider"), c.Query("state"), c.Query("code"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s})
}

// account

type orderView struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ItemCount int    `json:"item_count"`
	Total     string `json:"total"`
	CreatedAt string `json:"created_at"`
}

func (a *app) account(c *gin.Context) {
	ctx := c.Request.Context()
	s, err := shopOf(c).Session.CurrentSession(ctx)
	if err != nil || s == nil {
		a.fail(c, session.ErrInvalidToken)
		return
	}
	list, err := a.orders.ListByEmail(ctx, s.Email, 20)
	if err != nil {
		a.fail(c, err)
		return
	}
	views := make([]orderView, 0, len(list))
	for _, o := range list {
		views = append(views, viewOrder(o))
	}
	c.JSON(http.StatusOK, gin.H{"session": s, "orders": views})
}

func viewOrder(o orders.Order) orderView {
	return orderView{
		ID:        o.ID,
		Status:    string(o.Status),
		ItemCount: o.ItemCount(),
		Total:     money.Format(money.FromCents(o.TotalCents)),
		CreatedAt: o.CreatedAt.UTC().Format(time.RFC3339),
	}
}
