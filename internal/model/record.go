package model

import "strings"

// Address is a postal address with optional coordinates.
type Address struct {
	Street     string  `json:"street,omitempty"`
	Number     string  `json:"number,omitempty"`
	Complement string  `json:"complement,omitempty"`
	District   string  `json:"district,omitempty"`
	City       string  `json:"city,omitempty"`
	State      string  `json:"state,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	Latitude   float64 `json:"latitude,omitempty"`
	Longitude  float64 `json:"longitude,omitempty"`
	Full       string  `json:"full,omitempty"`
}

// IsEmpty reports whether the address carries no text at all.
func (a Address) IsEmpty() bool {
	return a.Street == "" && a.Number == "" && a.Complement == "" && a.District == "" &&
		a.City == "" && a.State == "" && a.PostalCode == "" && a.Full == ""
}

// ComposeFull joins the non-empty parts with ", ".
func (a Address) ComposeFull() string {
	return JoinNonEmpty(", ", a.Street, a.Number, a.Complement, a.District, a.City, a.State, a.PostalCode)
}

// JoinNonEmpty joins the trimmed, non-empty parts with sep.
func JoinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// Owner is a partner of the company.
type Owner struct {
	TaxID      string `json:"tax_id,omitempty"`
	Name       string `json:"name"`
	PersonType string `json:"person_type,omitempty"`
	EntryDate  string `json:"entry_date,omitempty"`
	Percentage string `json:"percentage,omitempty"`
	Role       string `json:"role,omitempty"`
}

// BoardMember is a member of the company's administration.
type BoardMember struct {
	TaxID        string `json:"tax_id,omitempty"`
	Name         string `json:"name"`
	Role         string `json:"role,omitempty"`
	ElectionDate string `json:"election_date,omitempty"`
}

// CreditReport groups the optional bureau sections of a run.
type CreditReport struct {
	Occurrences    []Occurrence     `json:"occurrences,omitempty"`
	Score          *CreditScore     `json:"score,omitempty"`
	PaymentHistory []PaymentHistory `json:"payment_history,omitempty"`
	SCR            *SCRSummary      `json:"scr,omitempty"`
	Inquiries      []InquiryRecord  `json:"inquiries,omitempty"`
}

// IsEmpty reports whether no section is present.
func (c CreditReport) IsEmpty() bool {
	return len(c.Occurrences) == 0 && c.Score.IsEmpty() && len(c.PaymentHistory) == 0 &&
		c.SCR.IsEmpty() && len(c.Inquiries) == 0
}

// ConsolidatedRecord is the merged view of a company. Empty values mean null;
// a record holding only the CNPJ is valid.
type ConsolidatedRecord struct {
	CNPJ              string        `json:"cnpj"`
	LegalName         string        `json:"legal_name,omitempty"`
	TradeName         string        `json:"trade_name,omitempty"`
	Status            string        `json:"status,omitempty"`
	Size              string        `json:"size,omitempty"`
	LegalNature       string        `json:"legal_nature,omitempty"`
	FoundedAt         string        `json:"founded_at,omitempty"`
	ShareCapital      string        `json:"share_capital,omitempty"`
	MainActivity      string        `json:"main_activity,omitempty"`
	Address           Address       `json:"address"`
	Phones            []string      `json:"phones,omitempty"`
	Emails            []string      `json:"emails,omitempty"`
	StateRegistration string        `json:"state_registration,omitempty"`
	Suframa           string        `json:"suframa,omitempty"`
	Owners            []Owner       `json:"owners,omitempty"`
	Board             []BoardMember `json:"board,omitempty"`
	Report            CreditReport  `json:"report"`
	RawDocumentText   string        `json:"-"`
	RawLookupJSON     string        `json:"-"`
}

// PrimaryPhone returns the first phone or "".
func (r *ConsolidatedRecord) PrimaryPhone() string {
	if len(r.Phones) == 0 {
		return ""
	}
	return r.Phones[0]
}

// PrimaryEmail returns the first email or "".
func (r *ConsolidatedRecord) PrimaryEmail() string {
	if len(r.Emails) == 0 {
		return ""
	}
	return r.Emails[0]
}
