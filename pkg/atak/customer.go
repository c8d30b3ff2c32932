package atak

import "github.com/sells-group/onboard-cli/internal/model"

// Address kinds replicated on every new customer.
const (
	AddressBilling    = "cobranca"
	AddressShipping   = "entrega"
	AddressCollection = "coleta"
	AddressRoute      = "roteiro"
	AddressTax        = "fiscal"
)

// AddressKinds lists every address block the ERP requires, in order.
var AddressKinds = []string{AddressBilling, AddressShipping, AddressCollection, AddressRoute, AddressTax}

// Customer is the ERP customer resource. The ERP returns ids as numbers or
// strings depending on the endpoint.
type Customer struct {
	ID                model.FlexString `json:"id,omitempty"`
	Kind              string           `json:"tipo"`
	CNPJ              string           `json:"cnpj"`
	LegalName         string           `json:"razao_social"`
	TradeName         string           `json:"nome_fantasia,omitempty"`
	StateRegistration string           `json:"inscricao_estadual,omitempty"`
	Suframa           string           `json:"suframa,omitempty"`
	Email             string           `json:"email,omitempty"`
	Phone             string           `json:"telefone,omitempty"`
	BranchCode        string           `json:"codigo_filial,omitempty"`
	WalletCode        string           `json:"codigo_carteira,omitempty"`
	PricingCode       string           `json:"codigo_tabela_preco,omitempty"`
	Active            bool             `json:"ativo"`
	Addresses         []Endereco       `json:"enderecos,omitempty"`
}

// Endereco is one address block of a customer.
type Endereco struct {
	Kind             string `json:"tipo"`
	Street           string `json:"logradouro"`
	Number           string `json:"numero,omitempty"`
	Complement       string `json:"complemento,omitempty"`
	District         string `json:"bairro,omitempty"`
	City             string `json:"cidade,omitempty"`
	State            string `json:"uf,omitempty"`
	PostalCode       string `json:"cep,omitempty"`
	MunicipalityCode string `json:"codigo_municipio,omitempty"`
}
