package extract

import (
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/onboard-cli/internal/model"
)

// Parse runs ParseStructured and falls back to ParseFallback only when the
// structured parse fails. The result is never nil.
func Parse(output string) *model.Extraction {
	ext, err := ParseStructured(output)
	if err == nil {
		return ext
	}
	if !errors.Is(err, ErrNoJSON) {
		zap.L().Debug("extract: structured parse failed, using fallback", zap.Error(err))
	}
	return ParseFallback(output)
}
