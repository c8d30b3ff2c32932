package spc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectInvalidDocument(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		want    bool
		wantMsg string
	}{
		{
			name:    "visible modal",
			html:    `<html><body><div class="modal" role="dialog"><p>  Documento   INVÁLIDO. Verifique o CNPJ.</p></div></body></html>`,
			want:    true,
			wantMsg: "Documento INVÁLIDO. Verifique o CNPJ.",
		},
		{
			name: "sweetalert popup",
			html: `<div class="swal2-popup"><h2>Atenção</h2><div>CNPJ inválido</div></div>`,
			want: true,
		},
		{
			name: "hidden modal is ignored",
			html: `<div class="modal" style="display: none"><p>Documento inválido</p></div>`,
		},
		{
			name: "aria hidden is ignored",
			html: `<div role="dialog" aria-hidden="true">cnpj invalido</div>`,
		},
		{
			name: "text outside dialogs is ignored",
			html: `<body><p>Em caso de documento inválido, contate o suporte.</p></body>`,
		},
		{
			name: "unrelated dialog",
			html: `<div class="alert">Sessão expira em 5 minutos</div>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := DetectInvalidDocument(tt.html)
			assert.Equal(t, tt.want, got)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, msg)
			}
		})
	}
}

func TestHasResultIndicator(t *testing.T) {
	assert.True(t, HasResultIndicator(`<div id="resultado-consulta"></div>`))
	assert.True(t, HasResultIndicator(`<table class="tabela-resultado"><tr><td>1</td></tr></table>`))
	assert.True(t, HasResultIndicator(`<body><h3>INFORMAÇÕES  CADASTRAIS</h3></body>`))
	assert.False(t, HasResultIndicator(`<body><form id="consulta"><input name="documento"></form></body>`))
	assert.False(t, HasResultIndicator(``))
}
