package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// CNPJLength is the number of digits in a canonical CNPJ.
const CNPJLength = 14

var (
	firstCheckWeights  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	secondCheckWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// NormalizeCNPJ strips every non-digit character.
func NormalizeCNPJ(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatCNPJ renders a CNPJ as XX.XXX.XXX/XXXX-XX. Inputs that do not
// normalize to 14 digits are returned unchanged.
func FormatCNPJ(raw string) string {
	c := NormalizeCNPJ(raw)
	if len(c) != CNPJLength {
		return raw
	}
	return c[:2] + "." + c[2:5] + "." + c[5:8] + "/" + c[8:12] + "-" + c[12:]
}

// ValidCNPJ reports whether raw normalizes to 14 digits with valid check digits.
func ValidCNPJ(raw string) bool {
	c := NormalizeCNPJ(raw)
	if len(c) != CNPJLength || sameDigits(c) {
		return false
	}

	digits := make([]int, CNPJLength)
	for i := range c {
		digits[i] = int(c[i] - '0')
	}

	return checkDigit(digits[:12], firstCheckWeights) == digits[12] &&
		checkDigit(digits[:13], secondCheckWeights) == digits[13]
}

// ParseCNPJ normalizes raw and rejects anything that is not exactly 14 digits.
// Check digits are not enforced here; portals accept some legacy numbers.
func ParseCNPJ(raw string) (string, error) {
	c := NormalizeCNPJ(raw)
	if len(c) != CNPJLength {
		return "", eris.Errorf("cnpj: %q must have %d digits, got %d", raw, CNPJLength, len(c))
	}
	return c, nil
}

func checkDigit(digits, weights []int) int {
	sum := 0
	for i, d := range digits {
		sum += d * weights[i]
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

func sameDigits(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
