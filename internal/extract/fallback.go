package extract

import (
	"regexp"
	"strings"

	"github.com/sells-group/onboard-cli/internal/model"
)

type fieldPattern struct {
	re  *regexp.Regexp
	set func(*model.Extraction, string)
}

func label(names string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[\s*\-#]*(?:` + names + `)\s*[:\-]\s*\**\s*(.+?)\s*$`)
}

var fallbackFields = []fieldPattern{
	{label(`raz[aã]o\s+social`), func(e *model.Extraction, v string) { e.RazaoSocial = model.FlexString(v) }},
	{label(`nome\s+fantasia`), func(e *model.Extraction, v string) { e.NomeFantasia = model.FlexString(v) }},
	{label(`situa[cç][aã]o(?:\s+cadastral)?`), func(e *model.Extraction, v string) { e.Situacao = model.FlexString(v) }},
	{label(`porte`), func(e *model.Extraction, v string) { e.Porte = model.FlexString(v) }},
	{label(`natureza\s+jur[ií]dica`), func(e *model.Extraction, v string) { e.NaturezaJuridica = model.FlexString(v) }},
	{label(`data\s+de\s+funda[cç][aã]o|data\s+de\s+abertura|funda[cç][aã]o`), func(e *model.Extraction, v string) { e.DataFundacao = model.FlexString(v) }},
	{label(`capital\s+social`), func(e *model.Extraction, v string) { e.CapitalSocial = model.FlexString(v) }},
	{label(`atividade\s+principal|cnae\s+principal`), func(e *model.Extraction, v string) { e.AtividadePrincipal = model.FlexString(v) }},
	{label(`inscri[cç][aã]o\s+estadual|ie`), func(e *model.Extraction, v string) { e.InscricaoEstadual = model.FlexString(v) }},
}

var (
	cnpjRe  = regexp.MustCompile(`\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}\b`)
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`\(?\b\d{2}\)?\s?9?\d{4}-?\d{4}\b`)
	scoreRe = regexp.MustCompile(`(?i)score[^0-9\n]{0,20}(\d{1,4})`)

	streetRe   = label(`logradouro|endere[cç]o`)
	districtRe = label(`bairro`)
	cityRe     = label(`cidade|munic[ií]pio`)
	stateRe    = label(`uf|estado`)
	zipRe      = label(`cep`)
)

// ParseFallback extracts what it can from free text with labelled-line
// regexes. It never fails; an output with nothing recognizable yields an
// empty Extraction.
func ParseFallback(output string) *model.Extraction {
	ext := &model.Extraction{Method: MethodFallback}

	for _, f := range fallbackFields {
		if m := f.re.FindStringSubmatch(output); m != nil {
			f.set(ext, cleanValue(m[1]))
		}
	}

	if m := cnpjRe.FindString(output); m != "" {
		ext.CNPJ = model.FlexString(model.NormalizeCNPJ(m))
	}

	addr := &model.ExtractedAddress{}
	if m := streetRe.FindStringSubmatch(output); m != nil {
		addr.Logradouro = model.FlexString(cleanValue(m[1]))
	}
	if m := districtRe.FindStringSubmatch(output); m != nil {
		addr.Bairro = model.FlexString(cleanValue(m[1]))
	}
	if m := cityRe.FindStringSubmatch(output); m != nil {
		addr.Cidade = model.FlexString(cleanValue(m[1]))
	}
	if m := stateRe.FindStringSubmatch(output); m != nil {
		addr.UF = model.FlexString(model.NormalizeUF(cleanValue(m[1])))
	}
	if m := zipRe.FindStringSubmatch(output); m != nil {
		addr.CEP = model.FlexString(cleanValue(m[1]))
	}
	if !addr.IsEmpty() {
		ext.Endereco = addr
	}

	seen := map[string]bool{}
	for _, m := range emailRe.FindAllString(output, -1) {
		m = strings.ToLower(m)
		if !seen[m] {
			seen[m] = true
			ext.Emails = append(ext.Emails, model.FlexString(m))
		}
	}
	// CNPJ digits also look like phones; drop those spans first.
	for _, m := range phoneRe.FindAllString(cnpjRe.ReplaceAllString(output, " "), -1) {
		if !seen[m] {
			seen[m] = true
			ext.Telefones = append(ext.Telefones, model.FlexString(strings.TrimSpace(m)))
		}
	}

	if m := scoreRe.FindStringSubmatch(output); m != nil {
		ext.Score = &model.CreditScore{Score: model.FlexString(m[1])}
	}

	if ext.IsEmpty() {
		ext.Method = MethodEmpty
	}
	return ext
}

func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, "*_`\"'")
	return strings.TrimSpace(strings.TrimSuffix(v, ","))
}
