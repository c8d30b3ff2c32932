package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/onboard-cli/internal/pipeline"
)

var (
	runCNPJ    string
	runForce   bool
	runSkipERP bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Onboard a single company by CNPJ",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cnpj := runCNPJ
		if cnpj == "" {
			cnpj = cfg.Input.CNPJ
		}
		if cnpj == "" {
			return eris.New("a cnpj is required (--cnpj or ONBOARD_INPUT_CNPJ)")
		}

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Orchestrator.Run(ctx, cnpj, pipeline.RunOptions{Force: runForce, SkipERP: runSkipERP})
		if err != nil && result == nil {
			return eris.Wrap(err, "pipeline run")
		}
		if err != nil {
			zap.L().Error("pipeline run failed", zap.String("cnpj", result.CNPJ), zap.Error(err))
		}

		logResult(result)
		return writeJSON(os.Stdout, result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runCNPJ, "cnpj", "", "company CNPJ (default from input.cnpj)")
	runCmd.Flags().BoolVar(&runForce, "force", false, "ignore a recent cached consulta")
	runCmd.Flags().BoolVar(&runSkipERP, "skip-erp", false, "stop after persisting, without registering in the ERP")
	rootCmd.AddCommand(runCmd)
}

func logResult(r *pipeline.Result) {
	fields := []zap.Field{
		zap.String("cnpj", r.CNPJ),
		zap.Bool("success", r.Success),
		zap.Bool("from_cache", r.FromCache),
		zap.String("state", string(r.State)),
		zap.Int64("elapsed_ms", r.ElapsedMs),
		zap.String("billing_total", r.Billing.Total.String()),
	}
	if r.Registration != nil {
		fields = append(fields, zap.String("erp_status", string(r.Registration.Status)))
	}
	if r.Error != "" {
		fields = append(fields, zap.String("error", r.Error))
	}
	zap.L().Info("onboarding finished", fields...)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
