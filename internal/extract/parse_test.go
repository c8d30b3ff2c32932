package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/onboard-cli/internal/model"
)

const fencedOutput = "Segue a análise do relatório:\n\n```json\n" + `{
  "cnpj": "11.222.333/0001-81",
  "razao_social": "ACME INDUSTRIA LTDA",
  "capital_social": 150000.5,
  "endereco": {"logradouro": "Rua das Flores", "numero": 100, "cidade": "Manaus", "uf": "am"},
  "telefones": ["(92) 3333-4444", 92999990000],
  "socios": [{"nome": "Ana Silva", "percentual": 50, "cpf_cnpj": null}],
  "score_credito": {"score": 712, "faixa": "B"},
  "scr": {"carteira_ativa": "R$ 10.000,00", "tipos_garantias": [{"tipo": "Aval", "valor": "R$ 1,00"}]},
  "observacao": "campo desconhecido {com chaves}"
}` + "\n```\nFim."

func TestParseStructured_FencedBlock(t *testing.T) {
	t.Parallel()

	ext, err := ParseStructured(fencedOutput)
	require.NoError(t, err)

	assert.Equal(t, MethodStructured, ext.Method)
	assert.Equal(t, "11.222.333/0001-81", ext.CNPJ.String())
	assert.Equal(t, "ACME INDUSTRIA LTDA", ext.RazaoSocial.String())
	assert.Equal(t, "150000.5", ext.CapitalSocial.String())
	require.NotNil(t, ext.Endereco)
	assert.Equal(t, "100", ext.Endereco.Numero.String())
	assert.Equal(t, []model.FlexString{"(92) 3333-4444", "92999990000"}, ext.Telefones)
	require.Len(t, ext.Socios, 1)
	assert.Equal(t, "50", ext.Socios[0].Percentual.String())
	assert.Empty(t, ext.Socios[0].Documento)
	assert.Equal(t, "712", ext.Score.Score.String())
	require.NotNil(t, ext.SCR)
	require.Len(t, ext.SCR.Garantias, 1)
}

func TestParseStructured_BareObject(t *testing.T) {
	t.Parallel()

	out := `Resultado: {"razao_social": "Empresa \"X\" {teste}", "porte": "ME"} obrigado`
	ext, err := ParseStructured(out)
	require.NoError(t, err)
	assert.Equal(t, `Empresa "X" {teste}`, ext.RazaoSocial.String())
	assert.Equal(t, "ME", ext.Porte.String())
}

func TestParseStructured_Errors(t *testing.T) {
	t.Parallel()

	_, err := ParseStructured("não foi possível processar o documento")
	require.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseStructured("{ unterminated")
	require.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseStructured("```json\n{\"razao_social\": }\n```")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoJSON)
}

func TestParseFallback(t *testing.T) {
	t.Parallel()

	out := `**Razão Social:** ACME COMERCIO LTDA
- Nome Fantasia: ACME
- CNPJ 11.222.333/0001-81
- Situação Cadastral: ATIVA
- Capital Social: R$ 50.000,00
- Endereço: Av. Brasil, 500
- Bairro: Centro
- Cidade: Macapá
- UF: ap
- CEP: 68900-000
Contato: financeiro@acme.com.br, (96) 3222-1111
Score: 640`

	ext := ParseFallback(out)
	assert.Equal(t, MethodFallback, ext.Method)
	assert.Equal(t, "ACME COMERCIO LTDA", ext.RazaoSocial.String())
	assert.Equal(t, "ACME", ext.NomeFantasia.String())
	assert.Equal(t, "11222333000181", ext.CNPJ.String())
	assert.Equal(t, "ATIVA", ext.Situacao.String())
	assert.Equal(t, "R$ 50.000,00", ext.CapitalSocial.String())
	require.NotNil(t, ext.Endereco)
	assert.Equal(t, "Av. Brasil, 500", ext.Endereco.Logradouro.String())
	assert.Equal(t, "Macapá", ext.Endereco.Cidade.String())
	assert.Equal(t, "AP", ext.Endereco.UF.String())
	assert.Equal(t, "68900-000", ext.Endereco.CEP.String())
	assert.Equal(t, []model.FlexString{"financeiro@acme.com.br"}, ext.Emails)
	assert.Equal(t, []model.FlexString{"(96) 3222-1111"}, ext.Telefones)
	require.NotNil(t, ext.Score)
	assert.Equal(t, "640", ext.Score.Score.String())
}

func TestParse_UnprocessableIsEmptySuccess(t *testing.T) {
	t.Parallel()

	ext := Parse("Desculpe, não foi possível processar o documento enviado.")
	require.NotNil(t, ext)
	assert.True(t, ext.IsEmpty())
	assert.Equal(t, MethodEmpty, ext.Method)
}

func TestParse_PrefersStructured(t *testing.T) {
	t.Parallel()

	ext := Parse("Razão Social: IGNORADA\n```json\n{\"razao_social\": \"CORRETA\"}\n```")
	assert.Equal(t, MethodStructured, ext.Method)
	assert.Equal(t, "CORRETA", ext.RazaoSocial.String())
}
