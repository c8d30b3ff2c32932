package cost

import "github.com/shopspring/decimal"

// Rates holds the billing units charged per stage. Document-extraction
// credits are reported by the provider and are not configured here.
type Rates struct {
	SPCUnits     float64 `yaml:"spc_units" mapstructure:"spc_units"`
	CNPJAUnits   float64 `yaml:"cnpja_units" mapstructure:"cnpja_units"`
	SuframaUnits float64 `yaml:"suframa_units" mapstructure:"suframa_units"`
}

// Usage is what one pipeline run consumed.
type Usage struct {
	SPCQueried  bool
	TessCredits decimal.Decimal
	// CNPJALookups counts office lookups, including the SUFRAMA one.
	CNPJALookups  int
	SuframaLookup bool
}

// Breakdown is the per-stage charge of one run.
type Breakdown struct {
	SPC     decimal.Decimal `json:"spc"`
	Tess    decimal.Decimal `json:"tess"`
	CNPJA   decimal.Decimal `json:"cnpja"`
	Suframa decimal.Decimal `json:"suframa"`
	Total   decimal.Decimal `json:"total"`
}

// Calculator computes billing units for pipeline runs.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Compute prices one run. The SUFRAMA lookup is charged at its own rate
// instead of the regular lookup rate.
func (c *Calculator) Compute(u Usage) Breakdown {
	var b Breakdown
	if u.SPCQueried {
		b.SPC = decimal.NewFromFloat(c.rates.SPCUnits)
	}
	if u.TessCredits.IsPositive() {
		b.Tess = u.TessCredits
	}

	lookups := u.CNPJALookups
	if u.SuframaLookup && lookups > 0 {
		lookups--
		b.Suframa = decimal.NewFromFloat(c.rates.SuframaUnits)
	}
	if lookups > 0 {
		b.CNPJA = decimal.NewFromFloat(c.rates.CNPJAUnits).Mul(decimal.NewFromInt(int64(lookups)))
	}

	b.Total = b.SPC.Add(b.Tess).Add(b.CNPJA).Add(b.Suframa)
	return b
}

// DefaultRates returns one unit per stage.
func DefaultRates() Rates {
	return Rates{SPCUnits: 1, CNPJAUnits: 1, SuframaUnits: 1}
}
