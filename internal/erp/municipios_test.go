package erp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/onboard-cli/internal/model"
)

func TestMunicipalTable_Lookup(t *testing.T) {
	table, err := DefaultMunicipalTable()
	require.NoError(t, err)
	assert.Greater(t, table.Len(), 27)

	tests := []struct {
		city, state string
		want        string
		ok          bool
	}{
		{"Manaus", "AM", "1302603", true},
		{"  MACAPA ", "ap", "1600303", true},
		{"são   paulo", "SP", "3550308", true},
		{"Sao Paulo", "São Paulo", "", false}, // state is not a UF
		{"Santana", "AP", "1600600", true},
		{"Santana", "BA", "", false},
		{"Atlantida", "SP", "", false},
		{"", "SP", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.city+"/"+tt.state, func(t *testing.T) {
			got, ok := table.Lookup(tt.city, tt.state)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMunicipalTable_NilSafe(t *testing.T) {
	var table *MunicipalTable
	_, ok := table.Lookup("Manaus", "AM")
	assert.False(t, ok)
	assert.Zero(t, table.Len())
}

func TestParseMunicipalTable_Invalid(t *testing.T) {
	_, err := ParseMunicipalTable([]byte("- {codigo: [unclosed"))
	assert.Error(t, err)
}

func TestBuildCustomer(t *testing.T) {
	rec := model.ConsolidatedRecord{CNPJ: "11.222.333/0001-81", TradeName: "Padaria Central"}

	c, err := BuildCustomer(rec, "02", Defaults{BranchCode: "3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "11222333000181", c.CNPJ)
	assert.Equal(t, "Padaria Central", c.LegalName, "trade name stands in for a missing legal name")
	assert.Equal(t, "ISENTO", c.StateRegistration)
	assert.Equal(t, "3", c.BranchCode)
	assert.Empty(t, c.Addresses)

	rec.Address = model.Address{Street: "Rua A", City: "Cidade Sem Codigo", State: "SP"}
	c, err = BuildCustomer(rec, "02", Defaults{}, nil)
	require.NoError(t, err)
	require.Len(t, c.Addresses, 5)
	assert.Equal(t, "S/N", c.Addresses[0].Number)
	assert.Empty(t, c.Addresses[0].MunicipalityCode)
}

func TestBuildCustomer_Invalid(t *testing.T) {
	_, err := BuildCustomer(model.ConsolidatedRecord{}, "01", Defaults{}, nil)
	assert.Error(t, err)

	_, err = BuildCustomer(model.ConsolidatedRecord{CNPJ: "11222333000181"}, "01", Defaults{}, nil)
	assert.Error(t, err)
}
