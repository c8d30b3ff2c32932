package cnpja

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// WriteSidecar stores the raw response as <dir>/<cnpj>_<timestamp>.json and
// returns the path.
func WriteSidecar(dir, cnpj string, raw []byte, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "cnpja: create output dir %s", dir)
	}
	name := fmt.Sprintf("%s_%s.json", cnpj, now.UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", eris.Wrapf(err, "cnpja: write sidecar %s", path)
	}
	return path, nil
}
