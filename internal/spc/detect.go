package spc

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
)

// Phrases the portal shows in its modal when the identifier is rejected.
var invalidDocumentPhrases = []string{
	"documento inválido",
	"documento invalido",
	"cnpj inválido",
	"cnpj invalido",
	"documento informado é inválido",
	"documento informado não é válido",
	"não foi possível localizar o documento",
}

// Selectors and phrases that only appear once a report has rendered.
var (
	resultSelectors = []string{
		"#resultado-consulta",
		".resultado-consulta",
		".relatorio",
		"[data-testid='report-result']",
		"table.tabela-resultado",
	}
	resultPhrases = []string{
		"informações cadastrais",
		"resumo da consulta",
		"protocolo da consulta",
		"consultas realizadas",
	}
)

func parseHTML(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// DetectInvalidDocument reports whether a visible dialog on the page says the
// identifier was rejected. The matched message is returned for logging.
func DetectInvalidDocument(html string) (bool, string) {
	doc, err := parseHTML(html)
	if err != nil {
		return false, ""
	}
	fold := cases.Fold()

	var found string
	doc.Find(`[role='dialog'], [role='alertdialog'], .modal, .modal-dialog, .swal2-popup, .alert, .mensagem-erro`).
		EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if hidden(s) {
				return true
			}
			text := strings.Join(strings.Fields(s.Text()), " ")
			folded := fold.String(text)
			for _, p := range invalidDocumentPhrases {
				if strings.Contains(folded, fold.String(p)) {
					found = text
					return false
				}
			}
			return true
		})
	return found != "", found
}

// HasResultIndicator reports whether the report panel has rendered.
func HasResultIndicator(html string) bool {
	doc, err := parseHTML(html)
	if err != nil {
		return false
	}
	for _, sel := range resultSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	fold := cases.Fold()
	body := fold.String(strings.Join(strings.Fields(doc.Find("body").Text()), " "))
	for _, p := range resultPhrases {
		if strings.Contains(body, fold.String(p)) {
			return true
		}
	}
	return false
}

func hidden(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	if v, _ := s.Attr("aria-hidden"); v == "true" {
		return true
	}
	style, _ := s.Attr("style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}
