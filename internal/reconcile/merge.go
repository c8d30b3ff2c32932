// Package reconcile merges document-extraction output with company-registry
// data into a single record.
package reconcile

import (
	"strings"

	"github.com/sells-group/onboard-cli/internal/model"
	"github.com/sells-group/onboard-cli/pkg/cnpja"
)

// Merge builds the consolidated record for cnpj. Extraction values win when
// non-empty, lookup values fill the gaps. SUFRAMA only ever comes from the
// lookup. Either input may be nil. Merge is pure.
func Merge(ext *model.Extraction, lookup *cnpja.Projection, cnpj string) model.ConsolidatedRecord {
	if ext == nil {
		ext = &model.Extraction{}
	}
	if lookup == nil {
		lookup = &cnpja.Projection{}
	}

	rec := model.ConsolidatedRecord{
		CNPJ:              model.NormalizeCNPJ(cnpj),
		LegalName:         pick(ext.RazaoSocial, lookup.LegalName),
		TradeName:         pick(ext.NomeFantasia, lookup.TradeName),
		Status:            pick(ext.Situacao, lookup.Status),
		Size:              pick(ext.Porte, lookup.Size),
		LegalNature:       pick(ext.NaturezaJuridica, lookup.LegalNature),
		FoundedAt:         pick(ext.DataFundacao, lookup.FoundedAt),
		ShareCapital:      pick(ext.CapitalSocial, lookup.ShareCapital),
		MainActivity:      pick(ext.AtividadePrincipal, lookup.MainActivity),
		StateRegistration: pick(ext.InscricaoEstadual, lookup.StateRegistration),
		Suframa:           strings.TrimSpace(lookup.Suframa),
		Address:           mergeAddress(ext.Endereco, lookup.Address),
		Phones:            pickList(flexStrings(ext.Telefones), lookup.Phones),
		Emails:            pickList(flexStrings(ext.Emails), lookup.Emails),
		Owners:            pickOwners(ext.Socios, lookup.Owners),
		Board:             boardMembers(ext.Administradores),
		Report: model.CreditReport{
			Occurrences:    ext.Ocorrencias,
			Score:          nonEmptyScore(ext.Score),
			PaymentHistory: ext.HistoricoPagamento,
			SCR:            nonEmptySCR(ext.SCR),
			Inquiries:      ext.Consultas,
		},
	}
	if rec.CNPJ == "" {
		rec.CNPJ = pick(model.FlexString(model.NormalizeCNPJ(ext.CNPJ.String())), lookup.CNPJ)
	}
	return rec
}

func pick(primary model.FlexString, fallback string) string {
	if v := primary.String(); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

func mergeAddress(ext *model.ExtractedAddress, lookup model.Address) model.Address {
	if ext == nil || ext.Logradouro.String() == "" {
		return lookup
	}
	a := model.Address{
		Street:     ext.Logradouro.String(),
		Number:     ext.Numero.String(),
		Complement: ext.Complemento.String(),
		District:   ext.Bairro.String(),
		City:       ext.Cidade.String(),
		State:      model.NormalizeUF(ext.UF.String()),
		PostalCode: ext.CEP.String(),
	}
	a.Full = a.ComposeFull()
	return a
}

func flexStrings(in []model.FlexString) []string {
	var out []string
	for _, v := range in {
		if s := v.String(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func pickList(primary, fallback []string) []string {
	if len(primary) > 0 {
		return primary
	}
	if len(fallback) == 0 {
		return nil
	}
	return append([]string(nil), fallback...)
}

func pickOwners(ext []model.ExtractedOwner, lookup []model.Owner) []model.Owner {
	var out []model.Owner
	for _, o := range ext {
		if o.Nome.String() == "" {
			continue
		}
		out = append(out, model.Owner{
			TaxID:      o.Documento.String(),
			Name:       o.Nome.String(),
			PersonType: o.TipoPessoa.String(),
			EntryDate:  o.DataEntrada.String(),
			Percentage: o.Percentual.String(),
			Role:       o.Cargo.String(),
		})
	}
	if len(out) > 0 {
		return out
	}
	if len(lookup) == 0 {
		return nil
	}
	return append([]model.Owner(nil), lookup...)
}

func boardMembers(ext []model.ExtractedBoard) []model.BoardMember {
	var out []model.BoardMember
	for _, b := range ext {
		if b.Nome.String() == "" {
			continue
		}
		out = append(out, model.BoardMember{
			TaxID:        b.Documento.String(),
			Name:         b.Nome.String(),
			Role:         b.Cargo.String(),
			ElectionDate: b.DataEleicao.String(),
		})
	}
	return out
}

func nonEmptyScore(s *model.CreditScore) *model.CreditScore {
	if s.IsEmpty() {
		return nil
	}
	return s
}

func nonEmptySCR(s *model.SCRSummary) *model.SCRSummary {
	if s.IsEmpty() {
		return nil
	}
	return s
}
