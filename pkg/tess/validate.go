package tess

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/onboard-cli/internal/resilience"
)

// MinOutputLength is the shortest trimmed output accepted without answers.
const MinOutputLength = 20

var resendPattern = regexp.MustCompile(`(?i)(envi(e|ar|em)\s+(novamente|de\s+novo)|reenvi(e|ar|em)|please\s+re-?send|send\s+(the\s+)?(pdf|file|document)\s+again)`)

// NeedsResend reports whether output asks for the document to be sent again.
func NeedsResend(output string) bool {
	return resendPattern.MatchString(output)
}

// Validate checks an agent response. A resend request or an output with no
// substance and no answers is a validation error even on HTTP 200.
func Validate(resp *ExecuteResponse) (*AgentResponse, error) {
	first := resp.First()
	if first == nil {
		return nil, resilience.NewValidationError(provider, false, eris.New("tess: empty responses"))
	}
	if NeedsResend(first.Output) {
		return first, resilience.NewValidationError(provider, true, eris.New(strings.TrimSpace(first.Output)))
	}
	if len(strings.TrimSpace(first.Output)) < MinOutputLength && len(first.Answers) == 0 {
		return first, resilience.NewValidationError(provider, false,
			eris.Errorf("tess: output too short (%d chars) and no answers", len(strings.TrimSpace(first.Output))))
	}
	return first, nil
}
