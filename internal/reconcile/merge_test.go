package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/onboard-cli/internal/model"
	"github.com/sells-group/onboard-cli/pkg/cnpja"
)

const testCNPJ = "11222333000181"

func sampleLookup() *cnpja.Projection {
	addr := model.Address{
		Street: "Av. Lookup", Number: "1", District: "Centro", City: "Manaus", State: "AM",
		PostalCode: "69000000", Latitude: -3.1, Longitude: -60,
	}
	addr.Full = "Av. Lookup, 1 - Centro, Manaus/AM"
	return &cnpja.Projection{
		CNPJ:              testCNPJ,
		LegalName:         "LOOKUP LTDA",
		TradeName:         "LOOKUP",
		Status:            "Ativa",
		StateRegistration: "0002",
		Suframa:           "200400500",
		Phones:            []string{"(92) 33334444"},
		Emails:            []string{"lookup@acme.com"},
		Address:           addr,
		Owners:            []model.Owner{{Name: "LOOKUP OWNER"}},
	}
}

func TestMerge_Precedence(t *testing.T) {
	t.Parallel()

	ext := &model.Extraction{
		RazaoSocial: "DOC LTDA",
		Porte:       "EPP",
		Telefones:   []model.FlexString{"(92) 1111-2222"},
		Socios:      []model.ExtractedOwner{{Nome: "DOC OWNER", Percentual: "100"}},
	}
	rec := Merge(ext, sampleLookup(), "11.222.333/0001-81")

	assert.Equal(t, testCNPJ, rec.CNPJ)
	assert.Equal(t, "DOC LTDA", rec.LegalName, "document wins")
	assert.Equal(t, "LOOKUP", rec.TradeName, "lookup fills gaps")
	assert.Equal(t, "EPP", rec.Size)
	assert.Equal(t, "Ativa", rec.Status)
	assert.Equal(t, "0002", rec.StateRegistration)
	assert.Equal(t, "200400500", rec.Suframa)
	assert.Equal(t, []string{"(92) 1111-2222"}, rec.Phones, "lists are replaced whole")
	assert.Equal(t, []string{"lookup@acme.com"}, rec.Emails)
	require.Len(t, rec.Owners, 1)
	assert.Equal(t, "DOC OWNER", rec.Owners[0].Name)
	assert.Empty(t, rec.LegalNature)
}

func TestMerge_AddressFromLookupVerbatim(t *testing.T) {
	t.Parallel()

	ext := &model.Extraction{Endereco: &model.ExtractedAddress{Cidade: "Outra", UF: "SP"}}
	rec := Merge(ext, sampleLookup(), testCNPJ)

	assert.Equal(t, "Av. Lookup", rec.Address.Street)
	assert.Equal(t, "Manaus", rec.Address.City, "no mixing of address parts")
	assert.Equal(t, "Av. Lookup, 1 - Centro, Manaus/AM", rec.Address.Full)
	assert.InDelta(t, -3.1, rec.Address.Latitude, 0.0001)
}

func TestMerge_AddressFromExtraction(t *testing.T) {
	t.Parallel()

	ext := &model.Extraction{Endereco: &model.ExtractedAddress{
		Logradouro: "Rua Doc", Numero: "22", Cidade: "Santana", UF: "ap",
	}}
	rec := Merge(ext, sampleLookup(), testCNPJ)

	assert.Equal(t, "Rua Doc", rec.Address.Street)
	assert.Equal(t, "AP", rec.Address.State)
	assert.Empty(t, rec.Address.District)
	assert.Equal(t, "Rua Doc, 22, Santana, AP", rec.Address.Full)
	assert.Zero(t, rec.Address.Latitude)
}

func TestMerge_SuframaNeverFromDocument(t *testing.T) {
	t.Parallel()

	rec := Merge(&model.Extraction{RazaoSocial: "X"}, nil, testCNPJ)
	assert.Empty(t, rec.Suframa)
}

func TestMerge_NilInputs(t *testing.T) {
	t.Parallel()

	rec := Merge(nil, nil, testCNPJ)
	assert.Equal(t, testCNPJ, rec.CNPJ)
	assert.Empty(t, rec.LegalName)
	assert.True(t, rec.Address.IsEmpty())
	assert.Nil(t, rec.Phones)
	assert.True(t, rec.Report.IsEmpty())
}

func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()

	ext := &model.Extraction{
		RazaoSocial: "DOC LTDA",
		Emails:      []model.FlexString{"a@b.com"},
		Score:       &model.CreditScore{Score: "700"},
		SCR:         &model.SCRSummary{},
	}
	lookup := sampleLookup()

	first := Merge(ext, lookup, testCNPJ)
	second := Merge(ext, lookup, testCNPJ)
	assert.Equal(t, first, second)
	assert.Nil(t, first.Report.SCR, "empty sections are dropped")
	require.NotNil(t, first.Report.Score)

	// Mutating the result must not leak into the inputs.
	first.Phones[0] = "changed"
	assert.Equal(t, "(92) 33334444", lookup.Phones[0])
}
