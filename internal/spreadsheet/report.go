package spreadsheet

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/onboard-cli/internal/model"
	"github.com/sells-group/onboard-cli/internal/pipeline"
)

// ReportSheet is the sheet name used by WriteReport.
const ReportSheet = "Consultas"

var reportHeader = []string{
	"CNPJ",
	"Razão Social",
	"Situação",
	"Resultado",
	"Cache",
	"Estado",
	"Erro",
	"Empresa ID",
	"Consulta ID",
	"ERP",
	"Cliente ERP",
	"Custo",
	"Duração (ms)",
}

// WriteReport writes one row per batch item to an xlsx file at path.
func WriteReport(path string, summary *pipeline.BatchSummary) error {
	if summary == nil {
		return eris.New("spreadsheet: nil summary")
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(ReportSheet)
	if err != nil {
		return eris.Wrap(err, "spreadsheet: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range reportHeader {
		header.AddCell().SetString(h)
	}

	for _, item := range summary.Items {
		addItemRow(sheet.AddRow(), item)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "spreadsheet: save %s", path)
	}
	return nil
}

func addItemRow(row *xlsx.Row, item pipeline.BatchItem) {
	res := item.Result
	if res == nil {
		res = &pipeline.Result{}
	}

	var legalName, status string
	if res.Record != nil {
		legalName = res.Record.LegalName
		status = res.Record.Status
	}
	outcome := "falha"
	if item.Succeeded() {
		outcome = "sucesso"
	}
	errText := item.Error
	if errText == "" {
		errText = res.Error
	}

	var empresaID, consultaID string
	if res.Saved != nil {
		empresaID = strconv.FormatInt(res.Saved.EmpresaID, 10)
		consultaID = strconv.FormatInt(res.Saved.ConsultaID, 10)
	}
	var erpStatus, customerID string
	if res.Registration != nil {
		erpStatus = string(res.Registration.Status)
		customerID = res.Registration.CustomerID
		if res.Registration.Error != "" && errText == "" {
			errText = res.Registration.Error
		}
	}

	row.AddCell().SetString(model.FormatCNPJ(item.CNPJ))
	row.AddCell().SetString(legalName)
	row.AddCell().SetString(status)
	row.AddCell().SetString(outcome)
	row.AddCell().SetBool(res.FromCache)
	row.AddCell().SetString(string(res.State))
	row.AddCell().SetString(errText)
	row.AddCell().SetString(empresaID)
	row.AddCell().SetString(consultaID)
	row.AddCell().SetString(erpStatus)
	row.AddCell().SetString(customerID)
	total, _ := res.Billing.Total.Float64()
	row.AddCell().SetFloat(total)
	row.AddCell().SetInt64(res.ElapsedMs)
}
