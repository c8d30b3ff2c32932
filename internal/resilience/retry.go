// Package resilience drives retries of external calls and classifies their
// failures.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/onboard-cli/internal/model"
)

// Decision is what the driver does after a failed attempt.
type Decision int

const (
	// Fatal stops immediately.
	Fatal Decision = iota
	// RateLimited waits for the server-provided delay, then retries without
	// advancing the backoff step.
	RateLimited
	// TransientServer retries a 5xx after BaseDelay * step.
	TransientServer
	// TransientClient retries a network failure or other transport error
	// after BaseDelay * step.
	TransientClient
)

func (d Decision) String() string {
	switch d {
	case Fatal:
		return "fatal"
	case RateLimited:
		return "rate_limited"
	case TransientServer:
		return "transient_server"
	case TransientClient:
		return "transient_client"
	default:
		return "unknown"
	}
}

// Policy controls how Call retries a single operation.
type Policy struct {
	Service   string
	Operation string

	// MaxAttempts is the total number of calls including the first. Default: 3.
	MaxAttempts int

	// BaseDelay is multiplied by the backoff step. Default: 2s.
	BaseDelay time.Duration

	// Classify maps an error to a Decision. Default: DefaultClassifier.
	Classify func(error) Decision

	// Sleep waits between attempts. Default: a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// Breaker, when set, is consulted before every attempt and shared by
	// every Call against the same service.
	Breaker *Breaker

	Logger *zap.Logger
}

// DefaultPolicy returns the policy used for external REST calls.
func DefaultPolicy(service, operation string) Policy {
	return Policy{
		Service:     service,
		Operation:   operation,
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	if p.Classify == nil {
		p.Classify = DefaultClassifier
	}
	if p.Sleep == nil {
		p.Sleep = sleepCtx
	}
	if p.Logger == nil {
		p.Logger = zap.L()
	}
	return p
}

// DefaultClassifier maps the error taxonomy to retry decisions.
func DefaultClassifier(err error) Decision {
	if err == nil {
		return Fatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Fatal
	}

	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindRateLimit:
			return RateLimited
		case KindTransport:
			if e.ServerSide() {
				return TransientServer
			}
			return TransientClient
		default:
			return Fatal
		}
	}

	if IsTransient(err) {
		return TransientClient
	}
	return Fatal
}

// Call runs fn under p and always returns a StageResult. It never calls fn
// more than MaxAttempts times, and a panic inside fn becomes a failed result.
func Call[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) model.StageResult[T] {
	p = p.withDefaults()
	log := p.Logger.With(zap.String("service", p.Service), zap.String("operation", p.Operation))

	var lastErr error
	step := 1
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := p.Breaker.Allow(); err != nil {
			log.Warn("resilience: skipped, breaker open", zap.Int("attempt", attempt))
			return failedResult[T](newError(KindTransport, p.Service, err), attempt-1)
		}

		val, err := safeCall(ctx, fn)
		p.Breaker.Record(err)
		if err == nil {
			log.Debug("resilience: attempt succeeded", zap.Int("attempt", attempt))
			res := model.Succeeded(val)
			res.Attempts = attempt
			return res
		}
		lastErr = err

		decision := p.Classify(err)
		if ctx.Err() != nil {
			decision = Fatal
		}
		log.Warn("resilience: attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.String("decision", decision.String()),
			zap.Error(err),
		)

		if decision == Fatal || attempt == p.MaxAttempts {
			return failedResult[T](err, attempt)
		}

		var delay time.Duration
		switch decision {
		case RateLimited:
			delay = p.BaseDelay
			var e *Error
			if errors.As(err, &e) && e.RetryAfter > 0 {
				delay = e.RetryAfter
			}
		default:
			delay = p.BaseDelay * time.Duration(step)
			step++
		}

		if serr := p.Sleep(ctx, delay); serr != nil {
			return failedResult[T](err, attempt)
		}
	}

	return failedResult[T](lastErr, p.MaxAttempts)
}

func failedResult[T any](err error, attempts int) model.StageResult[T] {
	res := model.Failed[T](err.Error(), string(KindOf(err)))
	res.Attempts = attempts
	return res
}

func safeCall[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("resilience: recovered panic: %v", r)
		}
	}()
	return fn(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
