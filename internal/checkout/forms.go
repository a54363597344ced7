package checkout

import "strings"

type ShippingForm struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// Missing returns the required fields that are blank, in form order.
func (f ShippingForm) Missing() []string {
	return missing([]field{
		{"first_name", f.FirstName},
		{"last_name", f.LastName},
		{"email", f.Email},
		{"address", f.Address},
		{"city", f.City},
		{"postal_code", f.PostalCode},
	})
}

func (f ShippingForm) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(f.FirstName) + " " + strings.TrimSpace(f.LastName))
}

type PaymentForm struct {
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	NameOnCard string `json:"name_on_card"`
}

func (f PaymentForm) Missing() []string {
	return missing([]field{
		{"card_number", f.CardNumber},
		{"expiry", f.Expiry},
		{"cvv", f.CVV},
		{"name_on_card", f.NameOnCard},
	})
}

// Last4 is safe to log and to show on the confirmation screen.
func (f PaymentForm) Last4() string {
	digits := make([]rune, 0, len(f.CardNumber))
	for _, r := range f.CardNumber {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 4 {
		return string(digits)
	}
	return string(digits[len(digits)-4:])
}

// redacted drops everything but the last four card digits so the form can
// be kept in State without holding the full PAN or CVV.
func (f PaymentForm) redacted() PaymentForm {
	return PaymentForm{
		CardNumber: f.Last4(),
		Expiry:     f.Expiry,
		NameOnCard: f.NameOnCard,
	}
}

type field struct {
	name  string
	value string
}

func missing(fields []field) []string {
	var out []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			out = append(out, f.name)
		}
	}
	return out
}
