// Package extract turns document-extraction agent output into a
// model.Extraction.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/onboard-cli/internal/model"
)

// Parser methods recorded on model.Extraction.Method.
const (
	MethodStructured = "structured"
	MethodFallback   = "fallback"
	MethodEmpty      = "empty"
)

var codeBlockRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")

// ErrNoJSON is returned by ParseStructured when output holds no JSON object.
var ErrNoJSON = eris.New("extract: no json object in output")

// ParseStructured decodes the first fenced JSON block, or else the first
// balanced JSON object, found in output.
func ParseStructured(output string) (*model.Extraction, error) {
	candidate := ""
	if m := codeBlockRe.FindStringSubmatch(output); m != nil {
		candidate = m[1]
	} else {
		candidate = firstObject(output)
	}
	if candidate == "" {
		return nil, ErrNoJSON
	}

	var ext model.Extraction
	if err := json.Unmarshal([]byte(candidate), &ext); err != nil {
		return nil, eris.Wrap(err, "extract: decode json object")
	}
	ext.Method = MethodStructured
	return &ext, nil
}

// firstObject returns the first balanced {...} span, honoring string
// literals, or "" when none closes.
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
