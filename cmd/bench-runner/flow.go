package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const sessionHeader = "X-Session-ID"

// step is one storefront request a simulated shopper makes. want is the
// status the flow expects; anything else fails the run.
type step struct {
	name   string
	method string
	path   string
	body   any
	want   int
	// idempotent steps carry a fresh Idempotency-Key.
	idempotent bool
}

type shipping struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type card struct {
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	NameOnCard string `json:"name_on_card"`
}

func benchShipping(n string) shipping {
	return shipping{
		FirstName:  "Bench",
		LastName:   "Shopper",
		Email:      "bench+" + n + "@example.com",
		Address:    "1 Load Lane",
		City:       "London",
		PostalCode: "N1 9GU",
		Country:    "GB",
	}
}

func benchCard(number string) card {
	return card{CardNumber: number, Expiry: "12/29", CVV: "123", NameOnCard: "Bench Shopper"}
}

const (
	approvedCard = "4242424242424242"
	declinedCard = "4000000000000002"
)

// buildSteps returns the request sequence for scenario.
func buildSteps(scenario, productID string, quantity int) ([]step, error) {
	browse := []step{
		{name: "catalog", method: http.MethodGet, path: "/catalog", want: http.StatusOK},
		{name: "add-item", method: http.MethodPost, path: "/cart/items", want: http.StatusCreated,
			body: map[string]any{"product_id": productID, "quantity": quantity}},
		{name: "cart", method: http.MethodGet, path: "/cart", want: http.StatusOK},
	}
	begin := []step{
		{name: "begin-checkout", method: http.MethodPost, path: "/checkout", want: http.StatusOK},
		{name: "shipping", method: http.MethodPost, path: "/checkout/shipping", want: http.StatusOK},
	}
	pay := func(name, number string, want int) step {
		return step{name: name, method: http.MethodPost, path: "/checkout/payment", want: want, body: benchCard(number), idempotent: true}
	}

	switch scenario {
	case "browse":
		return browse, nil
	case "checkout":
		return concat(browse, begin, []step{pay("payment", approvedCard, http.StatusOK)}), nil
	case "decline":
		return concat(browse, begin, []step{
			pay("payment-declined", declinedCard, http.StatusPaymentRequired),
			pay("payment-retry", approvedCard, http.StatusOK),
		}), nil
	}
	return nil, fmt.Errorf("unknown scenario: %s", scenario)
}

func concat(parts ...[]step) []step {
	var out []step
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// shopper replays steps under a single storefront session.
type shopper struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
	session string
	n       string
}

type responseInfo struct {
	StatusCode int
	Body       string
	OrderID    string
}

func (s *shopper) run(steps []step, m *metrics) (time.Duration, string, error) {
	start := time.Now()
	orderID := ""
	for _, st := range steps {
		if st.name == "shipping" {
			st.body = benchShipping(s.n)
		}
		info, err := s.do(st)
		class := ""
		if err == nil && info.StatusCode != st.want {
			class = classifyError(info.StatusCode, info.Body)
			err = fmt.Errorf("status %d: %s", info.StatusCode, info.Body)
		} else if err != nil {
			class = "transport"
		}
		m.recordStatus(st.name, info.StatusCode, err, class)
		if err != nil {
			return time.Since(start), "", fmt.Errorf("%s: %w", st.name, err)
		}
		if info.OrderID != "" {
			orderID = info.OrderID
		}
	}
	return time.Since(start), orderID, nil
}

func (s *shopper) do(st step) (responseInfo, error) {
	var body io.Reader
	if st.body != nil {
		data, err := json.Marshal(st.body)
		if err != nil {
			return responseInfo{}, err
		}
		body = bytes.NewReader(data)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, st.method, strings.TrimRight(s.baseURL, "/")+st.path, body)
	if err != nil {
		return responseInfo{}, err
	}
	if st.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.session != "" {
		req.Header.Set(sessionHeader, s.session)
	}
	if st.idempotent {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return responseInfo{}, err
	}
	defer resp.Body.Close()
	if sid := resp.Header.Get(sessionHeader); sid != "" {
		s.session = sid
	}
	data, _ := io.ReadAll(resp.Body)
	text := strings.TrimSpace(string(data))
	return responseInfo{StatusCode: resp.StatusCode, Body: text, OrderID: parseOrderID(text)}, nil
}

func parseOrderID(body string) string {
	if body == "" {
		return ""
	}
	var payload struct {
		Confirmation *struct {
			OrderID string `json:"order_id"`
		} `json:"confirmation"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil || payload.Confirmation == nil {
		return ""
	}
	return payload.Confirmation.OrderID
}

func classifyError(status int, body string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(body), &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	switch {
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	default:
		return "unexpected_status"
	}
}
