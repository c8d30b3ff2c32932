package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Kind classifies an external failure.
type Kind string

const (
	KindTransport   Kind = "transport"
	KindAuth        Kind = "auth"
	KindNotFound    Kind = "not_found"
	KindRateLimit   Kind = "rate_limit"
	KindValidation  Kind = "validation"
	KindPersistence Kind = "persistence"
	KindUnknown     Kind = "unknown"
)

// Error is the single error type shared by every external integration.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	// RetryAfter is the server-provided wait for rate-limit responses.
	RetryAfter time.Duration
	// Resend is set on validation errors where the provider asked for the
	// input to be sent again.
	Resend bool
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ServerSide reports whether a transport error came from a 5xx response.
func (e *Error) ServerSide() bool {
	return e.Kind == KindTransport && e.StatusCode >= 500
}

func newError(kind Kind, provider string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// NewTransportError wraps a network failure or unexpected HTTP status.
func NewTransportError(provider string, status int, err error) *Error {
	e := newError(KindTransport, provider, err)
	e.StatusCode = status
	return e
}

// NewAuthError wraps a rejected credential.
func NewAuthError(provider string, err error) *Error {
	return newError(KindAuth, provider, err)
}

// NewNotFoundError wraps a missing resource.
func NewNotFoundError(provider string, err error) *Error {
	return newError(KindNotFound, provider, err)
}

// NewRateLimitError wraps a throttled response.
func NewRateLimitError(provider string, retryAfter time.Duration, err error) *Error {
	e := newError(KindRateLimit, provider, err)
	e.StatusCode = http.StatusTooManyRequests
	e.RetryAfter = retryAfter
	return e
}

// NewValidationError wraps a well-formed but unusable response.
func NewValidationError(provider string, resend bool, err error) *Error {
	e := newError(KindValidation, provider, err)
	e.Resend = resend
	return e
}

// NewPersistenceError wraps a database failure.
func NewPersistenceError(err error) *Error {
	return newError(KindPersistence, "database", err)
}

// KindOf returns the Kind of the first *Error in err's chain, KindUnknown
// otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsResend reports whether err asks for the input to be sent again.
func IsResend(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindValidation && e.Resend
}

// FromHTTPStatus converts a non-2xx response into the taxonomy. The raw body
// is kept verbatim as the message.
func FromHTTPStatus(provider string, status int, body []byte, header http.Header) *Error {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	cause := errors.New(msg)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e := NewAuthError(provider, cause)
		e.StatusCode = status
		return e
	case status == http.StatusNotFound:
		e := NewNotFoundError(provider, cause)
		e.StatusCode = status
		return e
	case status == http.StatusTooManyRequests:
		return NewRateLimitError(provider, parseRetryAfter(header), cause)
	default:
		return NewTransportError(provider, status, cause)
	}
}

func parseRetryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// IsTransient returns true if err is a transport or rate-limit *Error, or if
// it matches common transient network patterns (timeouts, connection resets,
// DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTransport || e.Kind == KindRateLimit
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
