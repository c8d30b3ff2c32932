package erp

import (
	_ "embed"
	"strings"
	"sync"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/onboard-cli/internal/model"
)

//go:embed municipios.yaml
var municipiosYAML []byte

// Municipality is one IBGE municipality.
type Municipality struct {
	Code  string `yaml:"codigo"`
	Name  string `yaml:"nome"`
	State string `yaml:"uf"`
}

// MunicipalTable resolves municipality codes by city and state.
type MunicipalTable struct {
	byKey map[string]string
}

// ParseMunicipalTable decodes a YAML list of municipalities.
func ParseMunicipalTable(data []byte) (*MunicipalTable, error) {
	var rows []Municipality
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrap(err, "erp: parse municipal table")
	}
	t := &MunicipalTable{byKey: make(map[string]string, len(rows))}
	for _, r := range rows {
		if r.Code == "" || r.Name == "" {
			continue
		}
		t.byKey[municipalKey(r.Name, r.State)] = r.Code
	}
	return t, nil
}

var (
	defaultTableOnce sync.Once
	defaultTable     *MunicipalTable
	defaultTableErr  error
)

// DefaultMunicipalTable returns the embedded table.
func DefaultMunicipalTable() (*MunicipalTable, error) {
	defaultTableOnce.Do(func() {
		defaultTable, defaultTableErr = ParseMunicipalTable(municipiosYAML)
	})
	return defaultTable, defaultTableErr
}

// Lookup returns the code for city in state. Matching ignores accents, case
// and repeated spaces.
func (t *MunicipalTable) Lookup(city, state string) (string, bool) {
	if t == nil || strings.TrimSpace(city) == "" {
		return "", false
	}
	code, ok := t.byKey[municipalKey(city, state)]
	return code, ok
}

// Len reports how many municipalities are loaded.
func (t *MunicipalTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byKey)
}

func municipalKey(city, state string) string {
	return foldName(city) + "|" + model.NormalizeUF(state)
}

// foldName strips diacritics, lower-cases and collapses whitespace.
func foldName(s string) string {
	// Transformers carry state; build one per call.
	tr := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(tr, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
