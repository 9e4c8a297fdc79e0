package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an identifier assigned by the backend. The backend sends ids either as JSON
// numbers or as strings.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	*id = ID(data)
	return nil
}

// MarshalJSON writes the id back in the form the backend uses: plain integers as JSON
// numbers, anything else as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// numeric reports whether id is a canonical integer small enough to survive a float64
// round trip.
func (id ID) numeric() bool {
	s := string(id)
	if s == "" || len(s) > 15 || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (id ID) String() string {
	return string(id)
}

type LineState int

const (
	LinePending LineState = iota
	LineConfirmed
	LineRemoving
	LineGone
)

func (s LineState) String() string {
	switch s {
	case LinePending:
		return "PENDING"
	case LineConfirmed:
		return "CONFIRMED"
	case LineRemoving:
		return "REMOVING"
	case LineGone:
		return "GONE"
	default:
		return "UNKNOWN"
	}
}

func (s LineState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *LineState) UnmarshalText(text []byte) error {
	for _, candidate := range []LineState{LinePending, LineConfirmed, LineRemoving, LineGone} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown line state %q", text)
}

// Visible reports whether an item in this state is shown in the cart and counted in totals.
func (s LineState) Visible() bool {
	return s == LinePending || s == LineConfirmed
}

// LineItem is one product color variant and its quantity in a cart.
type LineItem struct {
	CartID       ID     `json:"cartId"`
	VariantID    ID     `json:"productColorId"`
	Quantity     int    `json:"quantity"`
	UnitPrice    Price  `json:"price"`
	DisplayName  string `json:"name,omitempty"`
	ImageRef     string `json:"image,omitempty"`
	VariantLabel string `json:"variant,omitempty"`
	Color        string `json:"color,omitempty"`
	Size         string `json:"size,omitempty"`

	State LineState `json:"state"`
}

func (li LineItem) LineTotal() Price {
	return li.UnitPrice.Times(li.Quantity)
}

// Subtotal sums unit price times quantity over items.
func Subtotal(items []LineItem) Price {
	total := Price{}
	for _, it := range items {
		total = total.Plus(it.LineTotal())
	}
	return total
}
