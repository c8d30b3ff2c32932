package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"
)

func TestIsTransient_TransportError(t *testing.T) {
	err := NewTransportError("tess", 503, errors.New("server overloaded"))
	if !IsTransient(err) {
		t.Error("expected transport error to be transient")
	}
}

func TestIsTransient_WrappedRateLimit(t *testing.T) {
	inner := NewRateLimitError("cnpja", time.Second, errors.New("slow down"))
	wrapped := fmt.Errorf("lookup failed: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("expected wrapped rate-limit error to be transient")
	}
}

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_AuthError(t *testing.T) {
	if IsTransient(NewAuthError("atak", errors.New("bad credentials"))) {
		t.Error("auth error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	if IsTransient(errors.New("invalid input: missing field")) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_Canceled(t *testing.T) {
	if IsTransient(fmt.Errorf("call: %w", context.Canceled)) {
		t.Error("context cancellation should not be transient")
	}
}

func TestIsTransient_ConnectionReset(t *testing.T) {
	err := fmt.Errorf("write tcp: %w", syscall.ECONNRESET)
	if !IsTransient(err) {
		t.Error("expected ECONNRESET to be transient")
	}
}

func TestIsTransient_NetTimeout(t *testing.T) {
	err := &net.OpError{Op: "dial", Err: &timeoutErr{}}
	if !IsTransient(err) {
		t.Error("expected net timeout to be transient")
	}
}

func TestIsTransient_StringPatterns(t *testing.T) {
	for _, msg := range []string{"dial tcp: lookup x: no such host", "read: i/o timeout", "write: broken pipe"} {
		if !IsTransient(errors.New(msg)) {
			t.Errorf("expected %q to be transient", msg)
		}
	}
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusNotFound, KindNotFound},
		{http.StatusTooManyRequests, KindRateLimit},
		{http.StatusBadGateway, KindTransport},
		{http.StatusBadRequest, KindTransport},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromHTTPStatus("cnpja", tt.status, []byte(" raw body "), nil)
			if err.Kind != tt.kind {
				t.Errorf("status %d: got kind %s, want %s", tt.status, err.Kind, tt.kind)
			}
			if err.StatusCode != tt.status {
				t.Errorf("status %d: got status %d", tt.status, err.StatusCode)
			}
			if err.Err.Error() != "raw body" {
				t.Errorf("expected raw body kept verbatim, got %q", err.Err.Error())
			}
		})
	}
}

func TestFromHTTPStatus_RetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	err := FromHTTPStatus("cnpja", http.StatusTooManyRequests, nil, h)
	if err.RetryAfter != 7*time.Second {
		t.Errorf("expected 7s retry-after, got %s", err.RetryAfter)
	}
	if err.Err.Error() != "Too Many Requests" {
		t.Errorf("expected status text for empty body, got %q", err.Err.Error())
	}
}

func TestKindOfAndResend(t *testing.T) {
	err := fmt.Errorf("extract: %w", NewValidationError("tess", true, errors.New("reenvie o arquivo")))
	if KindOf(err) != KindValidation {
		t.Errorf("expected validation kind, got %s", KindOf(err))
	}
	if !IsResend(err) {
		t.Error("expected resend flag")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("expected unknown kind for plain error")
	}
	if IsResend(NewValidationError("tess", false, errors.New("short"))) {
		t.Error("resend should be false")
	}
}

func TestError_Message(t *testing.T) {
	err := NewTransportError("tess", 502, errors.New("bad gateway"))
	want := "tess: transport (status 502): bad gateway"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, err.Err) {
		t.Error("expected Unwrap to expose the cause")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
