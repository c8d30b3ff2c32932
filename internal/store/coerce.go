package store

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/onboard-cli/internal/model"
)

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func nullUF(s string) sql.NullString {
	return nullString(model.NormalizeUF(s))
}

// nullDecimal parses Brazilian-formatted money. Unparseable text is stored as
// NULL rather than failing the transaction.
func nullDecimal(s string) decimal.NullDecimal {
	d, ok, err := model.ParseCurrency(s)
	if err != nil {
		zap.L().Warn("store: unparseable amount stored as null", zap.String("value", s), zap.Error(err))
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

// nullInt keeps the leading run of digits, so "712 pontos" becomes 712.
func nullInt(s string) sql.NullInt64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return sql.NullInt64{}
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: n, Valid: true}
}
