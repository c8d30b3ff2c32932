package cnpja

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/onboard-cli/internal/resilience"
)

const officeJSON = `{
  "taxId": "11222333000181",
  "alias": "ACME",
  "founded": "2001-05-10",
  "status": {"id": 2, "text": "Ativa"},
  "company": {
    "name": "ACME INDUSTRIA LTDA",
    "equity": 150000.5,
    "nature": {"id": 2062, "text": "Sociedade Empresária Limitada"},
    "size": {"acronym": "ME", "text": "Microempresa"},
    "members": [
      {"since": "2001-05-10", "person": {"name": "ANA SILVA", "taxId": "***123456**", "type": "NATURAL"}, "role": {"id": 49, "text": "Sócio-Administrador"}}
    ]
  },
  "address": {"street": "Rua das Flores", "number": "100", "details": "Sala 2", "district": "Centro", "city": "Manaus", "state": "AM", "zip": "69000000", "municipality": 1302603, "latitude": -3.1, "longitude": -60.02},
  "phones": [{"area": "92", "number": "33334444"}, {"area": "92", "number": "99990000"}],
  "emails": [{"address": "contato@acme.com.br"}],
  "mainActivity": {"id": 4711302, "text": "Comércio varejista"},
  "registrations": [
    {"number": "0001", "state": "AM", "enabled": false},
    {"number": "0002", "state": "AM", "enabled": true}
  ],
  "suframa": [{"number": "200400500"}]
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-key", WithBaseURL(srv.URL))
	return srv, c
}

func TestOffice(t *testing.T) {
	tests := []struct {
		name     string
		opts     OfficeOptions
		handler  http.HandlerFunc
		wantErr  bool
		wantKind resilience.Kind
	}{
		{
			name: "registrations only",
			opts: OfficeOptions{Registrations: "BR"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/office/11222333000181", r.URL.Path)
				assert.Equal(t, "BR", r.URL.Query().Get("registrations"))
				assert.Empty(t, r.URL.Query().Get("suframa"))
				assert.Equal(t, "test-key", r.Header.Get("Authorization"))
				w.Write([]byte(officeJSON)) //nolint:errcheck
			},
		},
		{
			name: "with suframa",
			opts: OfficeOptions{Registrations: "BR", Suframa: true},
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "true", r.URL.Query().Get("suframa"))
				w.Write([]byte(officeJSON)) //nolint:errcheck
			},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"message":"not found"}`)) //nolint:errcheck
			},
			wantErr:  true,
			wantKind: resilience.KindNotFound,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "3")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantErr:  true,
			wantKind: resilience.KindRateLimit,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr:  true,
			wantKind: resilience.KindTransport,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{not json`)) //nolint:errcheck
			},
			wantErr:  true,
			wantKind: resilience.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newTestServer(t, tt.handler)
			office, raw, err := c.Office(context.Background(), "11222333000181", tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, resilience.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, officeJSON, string(raw))
			assert.Equal(t, "ACME INDUSTRIA LTDA", office.Company.Name)
		})
	}
}

func TestOffice_Extract(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(officeJSON)) //nolint:errcheck
	})
	office, _, err := c.Office(context.Background(), "11222333000181", OfficeOptions{})
	require.NoError(t, err)

	p := office.Extract()
	assert.Equal(t, "11222333000181", p.CNPJ)
	assert.Equal(t, "ACME INDUSTRIA LTDA", p.LegalName)
	assert.Equal(t, "ACME", p.TradeName)
	assert.Equal(t, "Ativa", p.Status)
	assert.Equal(t, "Microempresa", p.Size)
	assert.Equal(t, "Sociedade Empresária Limitada", p.LegalNature)
	assert.Equal(t, "150000,50", p.ShareCapital)
	assert.Equal(t, "4711302 - Comércio varejista", p.MainActivity)
	assert.Equal(t, "0002", p.StateRegistration)
	assert.Equal(t, "200400500", p.Suframa)
	assert.Equal(t, "(92) 33334444", p.Phone)
	assert.Equal(t, []string{"(92) 33334444", "(92) 99990000"}, p.Phones)
	assert.Equal(t, "contato@acme.com.br", p.Email)
	assert.Equal(t, "Rua das Flores, 100, Sala 2, Centro, Manaus, AM, 69000000", p.Address.Full)
	assert.InDelta(t, -3.1, p.Address.Latitude, 0.0001)
	assert.Equal(t, 1302603, p.MunicipalityCode)
	require.Len(t, p.Owners, 1)
	assert.Equal(t, "ANA SILVA", p.Owners[0].Name)
	assert.Equal(t, "Sócio-Administrador", p.Owners[0].Role)
}

func TestOffice_ExtractNil(t *testing.T) {
	var o *Office
	assert.Nil(t, o.Extract())
}

func TestWriteSidecar(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cnpja")
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := WriteSidecar(dir, "11222333000181", []byte(`{"a":1}`), now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "11222333000181_20250304T050607Z.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}
