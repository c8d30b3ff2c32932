package cnpja

import (
	"fmt"
	"strings"

	"github.com/sells-group/onboard-cli/internal/model"
)

// Office is the subset of GET /office/{cnpj} the pipeline consumes.
type Office struct {
	TaxID         string         `json:"taxId"`
	Alias         string         `json:"alias"`
	Founded       string         `json:"founded"`
	Status        Text           `json:"status"`
	Company       Company        `json:"company"`
	Address       Address        `json:"address"`
	Phones        []Phone        `json:"phones"`
	Emails        []Email        `json:"emails"`
	MainActivity  Activity       `json:"mainActivity"`
	Registrations []Registration `json:"registrations"`
	Suframa       []Suframa      `json:"suframa"`
}

// Text is a {id,text} pair.
type Text struct {
	ID   any    `json:"id,omitempty"`
	Text string `json:"text"`
}

// Company holds the legal entity data.
type Company struct {
	Name    string   `json:"name"`
	Equity  float64  `json:"equity"`
	Nature  Text     `json:"nature"`
	Size    Size     `json:"size"`
	Members []Member `json:"members"`
}

// Size is the company size classification.
type Size struct {
	Acronym string `json:"acronym"`
	Text    string `json:"text"`
}

// Member is a partner entry.
type Member struct {
	Since  string `json:"since"`
	Person Person `json:"person"`
	Role   Text   `json:"role"`
}

// Person identifies a partner.
type Person struct {
	Name  string `json:"name"`
	TaxID string `json:"taxId"`
	Type  string `json:"type"`
}

// Address is the registered address.
type Address struct {
	Street       string  `json:"street"`
	Number       string  `json:"number"`
	Details      string  `json:"details"`
	District     string  `json:"district"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	Zip          string  `json:"zip"`
	Municipality int     `json:"municipality"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// Phone is a phone entry.
type Phone struct {
	Area   string `json:"area"`
	Number string `json:"number"`
}

// Email is an email entry.
type Email struct {
	Address string `json:"address"`
}

// Activity is a CNAE activity.
type Activity struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Registration is a state tax registration.
type Registration struct {
	Number  string `json:"number"`
	State   string `json:"state"`
	Enabled bool   `json:"enabled"`
}

// Suframa is a free-trade-zone registration.
type Suframa struct {
	Number string `json:"number"`
}

// Projection is the flattened view of an Office.
type Projection struct {
	CNPJ              string
	LegalName         string
	TradeName         string
	Status            string
	Size              string
	LegalNature       string
	FoundedAt         string
	ShareCapital      string
	MainActivity      string
	StateRegistration string
	Suframa           string
	Phone             string
	Email             string
	Phones            []string
	Emails            []string
	Address           model.Address
	Owners            []model.Owner
	MunicipalityCode  int
}

// Extract flattens o into a Projection.
func (o *Office) Extract() *Projection {
	if o == nil {
		return nil
	}
	p := &Projection{
		CNPJ:             model.NormalizeCNPJ(o.TaxID),
		LegalName:        o.Company.Name,
		TradeName:        o.Alias,
		Status:           o.Status.Text,
		Size:             o.Company.Size.Text,
		LegalNature:      o.Company.Nature.Text,
		FoundedAt:        o.Founded,
		MainActivity:     activityText(o.MainActivity),
		MunicipalityCode: o.Address.Municipality,
	}
	if o.Company.Equity > 0 {
		p.ShareCapital = strings.Replace(fmt.Sprintf("%.2f", o.Company.Equity), ".", ",", 1)
	}

	for _, r := range o.Registrations {
		if r.Enabled && r.Number != "" {
			p.StateRegistration = r.Number
			break
		}
	}
	if len(o.Suframa) > 0 {
		p.Suframa = o.Suframa[0].Number
	}

	for _, ph := range o.Phones {
		if ph.Number == "" {
			continue
		}
		s := ph.Number
		if ph.Area != "" {
			s = fmt.Sprintf("(%s) %s", ph.Area, ph.Number)
		}
		p.Phones = append(p.Phones, s)
	}
	for _, e := range o.Emails {
		if e.Address != "" {
			p.Emails = append(p.Emails, e.Address)
		}
	}
	if len(p.Phones) > 0 {
		p.Phone = p.Phones[0]
	}
	if len(p.Emails) > 0 {
		p.Email = p.Emails[0]
	}

	a := o.Address
	p.Address = model.Address{
		Street:     a.Street,
		Number:     a.Number,
		Complement: a.Details,
		District:   a.District,
		City:       a.City,
		State:      a.State,
		PostalCode: a.Zip,
		Latitude:   a.Latitude,
		Longitude:  a.Longitude,
	}
	p.Address.Full = p.Address.ComposeFull()

	for _, m := range o.Company.Members {
		p.Owners = append(p.Owners, model.Owner{
			TaxID:      m.Person.TaxID,
			Name:       m.Person.Name,
			PersonType: m.Person.Type,
			EntryDate:  m.Since,
			Role:       m.Role.Text,
		})
	}
	return p
}

func activityText(a Activity) string {
	if a.ID == 0 {
		return a.Text
	}
	if a.Text == "" {
		return fmt.Sprintf("%d", a.ID)
	}
	return fmt.Sprintf("%d - %s", a.ID, a.Text)
}
