package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexString accepts a JSON string, number, boolean or null and keeps its
// textual form. The extraction agent is inconsistent about quoting values.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		// Nested values are not expected for scalar fields; keep nothing.
		*f = ""
		return nil
	}
	*f = FlexString(string(data))
	return nil
}

// String returns the trimmed value.
func (f FlexString) String() string { return strings.TrimSpace(string(f)) }

// Extraction is the structured view of a document-extraction response. Every
// field is optional.
type Extraction struct {
	CNPJ               FlexString        `json:"cnpj"`
	RazaoSocial        FlexString        `json:"razao_social"`
	NomeFantasia       FlexString        `json:"nome_fantasia"`
	Situacao           FlexString        `json:"situacao"`
	Porte              FlexString        `json:"porte"`
	NaturezaJuridica   FlexString        `json:"natureza_juridica"`
	DataFundacao       FlexString        `json:"data_fundacao"`
	CapitalSocial      FlexString        `json:"capital_social"`
	AtividadePrincipal FlexString        `json:"atividade_principal"`
	InscricaoEstadual  FlexString        `json:"inscricao_estadual"`
	Endereco           *ExtractedAddress `json:"endereco,omitempty"`
	Telefones          []FlexString      `json:"telefones,omitempty"`
	Emails             []FlexString      `json:"emails,omitempty"`
	Socios             []ExtractedOwner  `json:"socios,omitempty"`
	Administradores    []ExtractedBoard  `json:"quadro_administrativo,omitempty"`
	Ocorrencias        []Occurrence      `json:"ocorrencias,omitempty"`
	Score              *CreditScore      `json:"score_credito,omitempty"`
	HistoricoPagamento []PaymentHistory  `json:"historico_pagamento,omitempty"`
	SCR                *SCRSummary       `json:"scr,omitempty"`
	Consultas          []InquiryRecord   `json:"consultas_realizadas,omitempty"`

	// Method records which parser produced the value ("structured" or "fallback").
	Method string `json:"-"`
}

// IsEmpty reports whether no field at all was extracted.
func (e *Extraction) IsEmpty() bool {
	if e == nil {
		return true
	}
	return e.CNPJ == "" && e.RazaoSocial == "" && e.NomeFantasia == "" &&
		e.Situacao == "" && e.Porte == "" && e.NaturezaJuridica == "" &&
		e.DataFundacao == "" && e.CapitalSocial == "" && e.AtividadePrincipal == "" &&
		e.InscricaoEstadual == "" && (e.Endereco == nil || e.Endereco.IsEmpty()) &&
		len(e.Telefones) == 0 && len(e.Emails) == 0 && len(e.Socios) == 0 &&
		len(e.Administradores) == 0 && len(e.Ocorrencias) == 0 && e.Score == nil &&
		len(e.HistoricoPagamento) == 0 && e.SCR == nil && len(e.Consultas) == 0
}

// ExtractedAddress is the address block of an extraction.
type ExtractedAddress struct {
	Logradouro  FlexString `json:"logradouro"`
	Numero      FlexString `json:"numero"`
	Complemento FlexString `json:"complemento"`
	Bairro      FlexString `json:"bairro"`
	Cidade      FlexString `json:"cidade"`
	UF          FlexString `json:"uf"`
	CEP         FlexString `json:"cep"`
}

// IsEmpty reports whether every part is blank.
func (a *ExtractedAddress) IsEmpty() bool {
	return a == nil || (a.Logradouro == "" && a.Numero == "" && a.Complemento == "" &&
		a.Bairro == "" && a.Cidade == "" && a.UF == "" && a.CEP == "")
}

// ExtractedOwner is one partner row as returned by the agent.
type ExtractedOwner struct {
	Documento   FlexString `json:"cpf_cnpj"`
	Nome        FlexString `json:"nome"`
	TipoPessoa  FlexString `json:"tipo_pessoa"`
	DataEntrada FlexString `json:"data_entrada"`
	Percentual  FlexString `json:"percentual"`
	Cargo       FlexString `json:"cargo"`
}

// ExtractedBoard is one board-member row as returned by the agent.
type ExtractedBoard struct {
	Documento   FlexString `json:"cpf_cnpj"`
	Nome        FlexString `json:"nome"`
	Cargo       FlexString `json:"cargo"`
	DataEleicao FlexString `json:"data_eleicao"`
}

// Occurrence is a negative record (protest, lawsuit, bounced check...).
type Occurrence struct {
	Tipo      FlexString `json:"tipo"`
	Descricao FlexString `json:"descricao"`
	Data      FlexString `json:"data"`
	Valor     FlexString `json:"valor"`
	Origem    FlexString `json:"origem"`
}

// CreditScore is the bureau score block.
type CreditScore struct {
	Score                      FlexString `json:"score"`
	Faixa                      FlexString `json:"faixa"`
	ProbabilidadeInadimplencia FlexString `json:"probabilidade_inadimplencia"`
	DataCalculo                FlexString `json:"data_calculo"`
}

// IsEmpty reports whether the score carries no value.
func (s *CreditScore) IsEmpty() bool {
	return s == nil || (s.Score == "" && s.Faixa == "" && s.ProbabilidadeInadimplencia == "")
}

// PaymentHistory is one positive payment-history period.
type PaymentHistory struct {
	Referencia        FlexString `json:"referencia"`
	QtdPagamentos     FlexString `json:"quantidade_pagamentos"`
	ValorTotal        FlexString `json:"valor_total"`
	PercentualPontual FlexString `json:"percentual_pontual"`
}

// SCRSummary is the central-bank credit registry (SCR) block.
type SCRSummary struct {
	DataBase        FlexString  `json:"data_base"`
	CarteiraAtiva   FlexString  `json:"carteira_ativa"`
	Vencido         FlexString  `json:"vencido"`
	Prejuizo        FlexString  `json:"prejuizo"`
	LimiteCredito   FlexString  `json:"limite_credito"`
	QtdInstituicoes FlexString  `json:"quantidade_instituicoes"`
	QtdOperacoes    FlexString  `json:"quantidade_operacoes"`
	Garantias       []Guarantee `json:"tipos_garantias,omitempty"`
}

// IsEmpty reports whether the block has no figures at all.
func (s *SCRSummary) IsEmpty() bool {
	return s == nil || (s.DataBase == "" && s.CarteiraAtiva == "" && s.Vencido == "" &&
		s.Prejuizo == "" && s.LimiteCredito == "" && s.QtdInstituicoes == "" &&
		s.QtdOperacoes == "" && len(s.Garantias) == 0)
}

// Guarantee is one SCR guarantee type.
type Guarantee struct {
	Tipo  FlexString `json:"tipo"`
	Valor FlexString `json:"valor"`
}

// InquiryRecord is one "consulta realizada" line of the report.
type InquiryRecord struct {
	Data        FlexString `json:"data"`
	Consultante FlexString `json:"consultante"`
	Quantidade  FlexString `json:"quantidade"`
}
