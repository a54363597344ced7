package contracts

// AuthorizeRequest is what the storefront sends the payment service. The
// full card number never leaves the storefront.
type AuthorizeRequest struct {
	Reference   string `json:"reference"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
	CardLast4   string `json:"card_last4"`
	Expiry      string `json:"expiry"`
	NameOnCard  string `json:"name_on_card"`
}

const (
	PaymentAuthorized = "authorized"
	PaymentDeclined   = "declined"
)

type AuthorizeResponse struct {
	Status          string `json:"status"`
	AuthorizationID string `json:"authorization_id,omitempty"`
	Reason          string `json:"reason,omitempty"`
}
