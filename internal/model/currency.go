package model

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// ParseCurrency parses Brazilian-formatted money such as "R$ 1.234,56".
// Everything except digits and commas is dropped, then the comma becomes the
// decimal point. Blank input yields ok=false with no error.
func ParseCurrency(raw string) (decimal.Decimal, bool, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ',':
			b.WriteRune('.')
		}
	}
	s := b.String()
	if s == "" {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, eris.Wrapf(err, "model: parse currency %q", raw)
	}
	return d, true, nil
}

// NormalizeUF upper-cases a state code and truncates it to two characters.
// Blank input returns "".
func NormalizeUF(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if r := []rune(s); len(r) > 2 {
		s = string(r[:2])
	}
	return s
}
