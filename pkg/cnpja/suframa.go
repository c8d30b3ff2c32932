package cnpja

import (
	"strings"

	"golang.org/x/text/cases"
)

var (
	suframaStates   = map[string]bool{"AM": true, "AC": true, "RO": true, "RR": true}
	suframaAPCities = []string{"Macapá", "Santana"}
)

// SuframaEligible reports whether a company in state/city can hold a SUFRAMA
// registration. AM, AC, RO and RR always qualify; AP only in Macapá and
// Santana.
func SuframaEligible(state, city string) bool {
	st := strings.ToUpper(strings.TrimSpace(state))
	if suframaStates[st] {
		return true
	}
	if st != "AP" {
		return false
	}
	fold := cases.Fold()
	c := fold.String(city)
	for _, name := range suframaAPCities {
		if strings.Contains(c, fold.String(name)) {
			return true
		}
	}
	return false
}
