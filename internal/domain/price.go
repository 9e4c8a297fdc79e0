package domain

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrInvalidPrice = errors.New("invalid price")

// Price is a monetary amount. Upstream data carries prices either as JSON numbers or as
// display strings such as "₹ 1,250.00"; both decode to the same value.
type Price struct {
	decimal.Decimal
}

func NewPrice(d decimal.Decimal) Price {
	return Price{Decimal: d}
}

func PriceFromInt(v int64) Price {
	return Price{Decimal: decimal.NewFromInt(v)}
}

func PriceFromFloat(v float64) Price {
	return Price{Decimal: decimal.NewFromFloat(v)}
}

// ParsePrice reads a currency formatted string. Everything before the first digit is a
// currency marker; after that only digits and the decimal point are kept.
func ParsePrice(s string) (Price, error) {
	start := strings.IndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return Price{}, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	var b strings.Builder
	for _, r := range s[start:] {
		if unicode.IsDigit(r) || r == '.' {
			b.WriteRune(r)
		}
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return Price{}, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	return Price{Decimal: d}, nil
}

func (p Price) Times(qty int) Price {
	return Price{Decimal: p.Decimal.Mul(decimal.NewFromInt(int64(qty)))}
}

func (p Price) Plus(o Price) Price {
	return Price{Decimal: p.Decimal.Add(o.Decimal)}
}

// MarshalJSON writes the amount as a bare JSON number.
func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.Decimal.String()), nil
}

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		p.Decimal = decimal.Zero
		return nil
	}
	if data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidPrice, data)
		}
		parsed, err := ParsePrice(s)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, data)
	}
	p.Decimal = d
	return nil
}
