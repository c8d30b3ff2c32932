package tess

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultPrompt instructs the agent to return the credit report as JSON.
const DefaultPrompt = `Analise o relatório de crédito em PDF anexado e devolva um único bloco JSON ` +
	`com os campos: cnpj, razao_social, nome_fantasia, situacao, porte, natureza_juridica, ` +
	`data_fundacao, capital_social, atividade_principal, inscricao_estadual, endereco ` +
	`(logradouro, numero, complemento, bairro, cidade, uf, cep), telefones, emails, socios, ` +
	`quadro_administrativo, ocorrencias, score_credito, historico_pagamento, scr e ` +
	`consultas_realizadas. Use null para campos ausentes.`

// ExtractRequest describes one document extraction.
type ExtractRequest struct {
	AgentID     string
	Prompt      string
	Model       string
	Temperature string
	FilePath    string
	PollOptions []PollOption
}

// ExtractResult is a validated agent output.
type ExtractResult struct {
	FileID  int64
	Output  string
	Answers []map[string]any
	Credits float64
}

// Extract uploads the file, waits for processing and runs the agent.
func Extract(ctx context.Context, c Client, req ExtractRequest) (*ExtractResult, error) {
	log := zap.L().With(zap.String("provider", provider), zap.String("file", filepath.Base(req.FilePath)))

	f, err := c.UploadFile(ctx, req.FilePath)
	if err != nil {
		return nil, err
	}
	log.Debug("tess: file uploaded", zap.Int64("file_id", f.ID))

	if _, err := c.ProcessFile(ctx, f.ID); err != nil {
		return nil, err
	}
	processed, err := PollFile(ctx, c, f.ID, req.PollOptions...)
	if err != nil {
		return nil, err
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	resp, err := c.ExecuteAgent(ctx, req.AgentID, ExecuteRequest{
		Prompt:        prompt,
		Model:         req.Model,
		Temperature:   req.Temperature,
		FileIDs:       []int64{f.ID},
		WaitExecution: true,
	})
	if err != nil {
		return nil, err
	}

	first, err := Validate(resp)
	if err != nil {
		return nil, err
	}
	log.Info("tess: agent executed",
		zap.Int64("file_id", f.ID),
		zap.Int("output_len", len(first.Output)),
		zap.Int("answers", len(first.Answers)),
		zap.Float64("credits", first.Credits+processed.Credits),
	)

	return &ExtractResult{
		FileID:  f.ID,
		Output:  first.Output,
		Answers: first.Answers,
		Credits: first.Credits + processed.Credits,
	}, nil
}

// WriteSidecar stores the raw output as <dir>/<cnpj>_<timestamp>.txt and
// returns the path.
func WriteSidecar(dir, cnpj, output string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "tess: create output dir %s", dir)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.txt", cnpj, now.UTC().Format("20060102T150405Z")))
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return "", eris.Wrapf(err, "tess: write sidecar %s", path)
	}
	return path, nil
}
