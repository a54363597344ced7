package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type input struct {
	label  string
	key    string
	value  string
	secret bool
}

// form is a minimal line-edit form: printable keys type into the focused
// input, tab and arrows move focus.
type form struct {
	inputs []input
	focus  int
}

func newForm(fields ...input) form {
	return form{inputs: fields}
}

func (f *form) value(key string) string {
	for _, in := range f.inputs {
		if in.key == key {
			return strings.TrimSpace(in.value)
		}
	}
	return ""
}

func (f *form) set(key, v string) {
	for i := range f.inputs {
		if f.inputs[i].key == key {
			f.inputs[i].value = v
		}
	}
}

// update reports whether the key was consumed.
func (f *form) update(msg tea.KeyMsg) bool {
	if len(f.inputs) == 0 {
		return false
	}
	switch msg.Type {
	case tea.KeyTab, tea.KeyDown:
		f.focus = (f.focus + 1) % len(f.inputs)
	case tea.KeyShiftTab, tea.KeyUp:
		f.focus = (f.focus - 1 + len(f.inputs)) % len(f.inputs)
	case tea.KeyBackspace:
		v := []rune(f.inputs[f.focus].value)
		if len(v) > 0 {
			f.inputs[f.focus].value = string(v[:len(v)-1])
		}
	case tea.KeySpace:
		f.inputs[f.focus].value += " "
	case tea.KeyRunes:
		f.inputs[f.focus].value += string(msg.Runes)
	default:
		return false
	}
	return true
}

func (f *form) view(b *strings.Builder) {
	for i, in := range f.inputs {
		marker := " "
		if i == f.focus {
			marker = ">"
		}
		v := in.value
		if in.secret {
			v = strings.Repeat("*", len([]rune(v)))
		}
		fmt.Fprintf(b, " %s %-14s %s\n", marker, in.label+":", v)
	}
}

func shippingForm() form {
	return newForm(
		input{label: "First name", key: "first_name"},
		input{label: "Last name", key: "last_name"},
		input{label: "Email", key: "email"},
		input{label: "Address", key: "address"},
		input{label: "City", key: "city"},
		input{label: "Postal code", key: "postal_code"},
		input{label: "Country", key: "country"},
		input{label: "Phone", key: "phone"},
	)
}

func paymentForm() form {
	return newForm(
		input{label: "Card number", key: "card_number"},
		input{label: "Expiry", key: "expiry"},
		input{label: "CVV", key: "cvv", secret: true},
		input{label: "Name on card", key: "name_on_card"},
	)
}

func credentialsForm() form {
	return newForm(
		input{label: "Email", key: "email"},
		input{label: "Password", key: "password", secret: true},
		input{label: "Display name", key: "display_name"},
	)
}
