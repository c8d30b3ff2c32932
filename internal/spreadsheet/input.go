// Package spreadsheet reads CNPJ lists from xlsx workbooks and writes batch
// reports back out.
package spreadsheet

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/cases"

	"github.com/sells-group/onboard-cli/internal/model"
)

// InputOptions selects where the CNPJs live in the workbook.
type InputOptions struct {
	// Sheet is the sheet name. Default: the first sheet.
	Sheet string
	// Column is a header name ("CNPJ") or a column letter ("B"). Default: the
	// first column whose header mentions "cnpj", else column A.
	Column string
}

// ReadCNPJs returns the normalized CNPJs of the selected column in row order.
// Blank cells are skipped; numeric cells get their leading zeros back.
func ReadCNPJs(path string, opts InputOptions) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "spreadsheet: open %s", path)
	}

	sheet, err := pickSheet(f, opts.Sheet)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	col, hasHeader, err := pickColumn(sheet.Rows[0], opts.Column)
	if err != nil {
		return nil, err
	}

	var out []string
	for i, row := range sheet.Rows {
		if i == 0 && hasHeader {
			continue
		}
		if row == nil || col >= len(row.Cells) {
			continue
		}
		cell := row.Cells[col]
		v := model.NormalizeCNPJ(cellText(cell))
		if v == "" {
			continue
		}
		if cell.Type() == xlsx.CellTypeNumeric && len(v) < model.CNPJLength {
			v = strings.Repeat("0", model.CNPJLength-len(v)) + v
		}
		out = append(out, v)
	}
	return out, nil
}

// cellText reads numeric cells from the raw value; the general number format
// renders 14-digit values in scientific notation.
func cellText(c *xlsx.Cell) string {
	if c.Type() != xlsx.CellTypeNumeric {
		return c.String()
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(c.Value), 64)
	if err != nil {
		return c.Value
	}
	return strconv.FormatFloat(f, 'f', 0, 64)
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("spreadsheet: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("spreadsheet: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

// pickColumn resolves the CNPJ column and whether row 0 is a header.
func pickColumn(header *xlsx.Row, want string) (int, bool, error) {
	fold := cases.Fold()
	var names []string
	if header != nil {
		for _, c := range header.Cells {
			names = append(names, fold.String(strings.TrimSpace(c.String())))
		}
	}

	want = strings.TrimSpace(want)
	if want == "" {
		for i, n := range names {
			if strings.Contains(n, "cnpj") {
				return i, true, nil
			}
		}
		return 0, !looksLikeCNPJ(names), nil
	}

	key := fold.String(want)
	for i, n := range names {
		if n == key {
			return i, true, nil
		}
	}
	if idx, ok := columnIndex(want); ok {
		return idx, !looksLikeCNPJ(names), nil
	}
	return 0, false, eris.Errorf("spreadsheet: column %q not found", want)
}

// columnIndex converts a column letter ("A", "AB") to a zero-based index.
func columnIndex(s string) (int, bool) {
	if len(s) == 0 || len(s) > 3 {
		return 0, false
	}
	idx := 0
	for _, r := range strings.ToUpper(s) {
		if r < 'A' || r > 'Z' {
			return 0, false
		}
		idx = idx*26 + int(r-'A'+1)
	}
	return idx - 1, true
}

// looksLikeCNPJ reports whether the first row already carries data rather
// than headers.
func looksLikeCNPJ(row []string) bool {
	for _, v := range row {
		if len(model.NormalizeCNPJ(v)) >= 11 {
			return true
		}
	}
	return false
}
