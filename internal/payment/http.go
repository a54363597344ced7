package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klugumair/Luxuryfashion-sub000/internal/checkout"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/contracts"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/idempotency"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/money"
)

// HTTP calls payment-service's /payments/authorize. The idempotency key is
// derived from the checkout reference, the card and the amount: a resent
// attempt never double charges, while a retry with another card is a new
// authorization.
type HTTP struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTP(baseURL string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

func (h *HTTP) Authorize(ctx context.Context, req checkout.AuthorizationRequest) error {
	body := contracts.AuthorizeRequest{
		Reference:   req.Reference,
		AmountCents: money.Cents(req.Amount),
		Currency:    req.Currency,
		Email:       req.Email,
		CardLast4:   req.Card.Last4(),
		Expiry:      req.Card.Expiry,
		NameOnCard:  req.Card.NameOnCard,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/payments/authorize", bytes.NewReader(data))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(idempotency.Header, attemptKey(body))

	resp, err := h.Client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out contracts.AuthorizeResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode == http.StatusPaymentRequired || out.Status == contracts.PaymentDeclined:
		reason := out.Reason
		if reason == "" {
			reason = "card declined"
		}
		return &checkout.PaymentError{Reason: reason, Err: checkout.ErrPaymentDeclined}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("payment service: status %d", resp.StatusCode)
	}
	return nil
}

func attemptKey(r contracts.AuthorizeRequest) string {
	return fmt.Sprintf("%s-%s-%d", r.Reference, r.CardLast4, r.AmountCents)
}
