package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/onboard-cli/internal/pipeline"
	"github.com/sells-group/onboard-cli/internal/spreadsheet"
)

var (
	batchFile    string
	batchSheet   string
	batchColumn  string
	batchCNPJs   string
	batchReport  string
	batchForce   bool
	batchSkipERP bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Onboard every CNPJ of a spreadsheet or list, one at a time",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cnpjs, err := collectCNPJs()
		if err != nil {
			return err
		}
		if len(cnpjs) == 0 {
			return eris.New("no cnpj to process (use --file, --cnpjs or ONBOARD_INPUT_EXCEL_PATH)")
		}

		env, err := initPipeline(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		runner := pipeline.NewBatchRunner(env.Orchestrator, batchDelay(), zap.L())
		summary, runErr := runner.Run(ctx, cnpjs, pipeline.RunOptions{Force: batchForce, SkipERP: batchSkipERP})
		if runErr != nil {
			zap.L().Warn("batch interrupted", zap.Error(runErr))
		}

		if batchReport != "" {
			if err := spreadsheet.WriteReport(batchReport, summary); err != nil {
				return err
			}
			zap.L().Info("batch report written", zap.String("path", batchReport))
		}

		return writeJSON(os.Stdout, summary)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "xlsx file with the CNPJs (default from input.excel_path)")
	batchCmd.Flags().StringVar(&batchSheet, "sheet", "", "sheet name (default: first sheet)")
	batchCmd.Flags().StringVar(&batchColumn, "column", "", "column header or letter holding the CNPJs")
	batchCmd.Flags().StringVar(&batchCNPJs, "cnpjs", "", "comma-separated CNPJs instead of a file")
	batchCmd.Flags().StringVar(&batchReport, "report", "", "write an xlsx report to this path")
	batchCmd.Flags().BoolVar(&batchForce, "force", false, "ignore recent cached consultas")
	batchCmd.Flags().BoolVar(&batchSkipERP, "skip-erp", false, "stop after persisting, without registering in the ERP")
	rootCmd.AddCommand(batchCmd)
}

// collectCNPJs reads --cnpjs first, then the spreadsheet from --file or the
// input config.
func collectCNPJs() ([]string, error) {
	if batchCNPJs != "" {
		var out []string
		for _, s := range strings.Split(batchCNPJs, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}

	path := batchFile
	if path == "" {
		path = cfg.Input.ExcelPath
	}
	if path == "" {
		return nil, nil
	}

	sheet := batchSheet
	if sheet == "" {
		sheet = cfg.Input.Sheet
	}
	column := batchColumn
	if column == "" {
		column = cfg.Input.Column
	}

	cnpjs, err := spreadsheet.ReadCNPJs(path, spreadsheet.InputOptions{Sheet: sheet, Column: column})
	if err != nil {
		return nil, eris.Wrap(err, "read cnpj spreadsheet")
	}
	zap.L().Info("cnpjs loaded", zap.String("file", path), zap.Int("count", len(cnpjs)))
	return cnpjs, nil
}
