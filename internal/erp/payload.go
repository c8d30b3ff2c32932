package erp

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/onboard-cli/internal/model"
	"github.com/sells-group/onboard-cli/pkg/atak"
)

// Defaults are the commercial codes applied to every new customer.
type Defaults struct {
	BranchCode  string
	WalletCode  string
	PricingCode string
}

// BuildCustomer maps a consolidated record onto the ERP customer payload.
// The same address is replicated into every block the ERP requires.
func BuildCustomer(rec model.ConsolidatedRecord, kind string, d Defaults, table *MunicipalTable) (atak.Customer, error) {
	cnpj := model.NormalizeCNPJ(rec.CNPJ)
	if cnpj == "" {
		return atak.Customer{}, eris.New("erp: record has no cnpj")
	}
	name := firstNonEmpty(rec.LegalName, rec.TradeName)
	if name == "" {
		return atak.Customer{}, eris.Errorf("erp: record %s has no legal or trade name", cnpj)
	}

	c := atak.Customer{
		Kind:              kind,
		CNPJ:              cnpj,
		LegalName:         truncate(name, 100),
		TradeName:         truncate(firstNonEmpty(rec.TradeName, rec.LegalName), 60),
		StateRegistration: firstNonEmpty(rec.StateRegistration, "ISENTO"),
		Suframa:           strings.TrimSpace(rec.Suframa),
		Email:             rec.PrimaryEmail(),
		Phone:             rec.PrimaryPhone(),
		BranchCode:        d.BranchCode,
		WalletCode:        d.WalletCode,
		PricingCode:       d.PricingCode,
		Active:            true,
	}

	a := rec.Address
	if a.IsEmpty() {
		return c, nil
	}
	code, _ := table.Lookup(a.City, a.State)
	for _, k := range atak.AddressKinds {
		c.Addresses = append(c.Addresses, atak.Endereco{
			Kind:             k,
			Street:           strings.TrimSpace(a.Street),
			Number:           firstNonEmpty(a.Number, "S/N"),
			Complement:       strings.TrimSpace(a.Complement),
			District:         strings.TrimSpace(a.District),
			City:             strings.TrimSpace(a.City),
			State:            model.NormalizeUF(a.State),
			PostalCode:       digits(a.PostalCode),
			MunicipalityCode: code,
		})
	}
	return c, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
