package tess

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/onboard-cli/internal/resilience"
)

// PollOption tunes PollFile.
type PollOption func(*poller)

type poller struct {
	every   time.Duration
	max     time.Duration
	timeout time.Duration
}

// WithPollInterval sets the first wait between status checks.
func WithPollInterval(d time.Duration) PollOption {
	return func(p *poller) { p.every = d }
}

// WithPollCap bounds the doubling wait.
func WithPollCap(d time.Duration) PollOption {
	return func(p *poller) { p.max = d }
}

// WithPollTimeout bounds the whole wait when ctx carries no deadline.
func WithPollTimeout(d time.Duration) PollOption {
	return func(p *poller) { p.timeout = d }
}

// PollFile waits for an uploaded file to leave the waiting/processing states.
// The wait doubles after each check (2s, 4s, 8s, then 15s by default).
//
// A file the provider failed to process is reported as a resend validation
// error, so the caller may upload it again. Running out of time is a
// transport error.
func PollFile(ctx context.Context, client Client, id int64, opts ...PollOption) (*File, error) {
	p := poller{every: 2 * time.Second, max: 15 * time.Second, timeout: 5 * time.Minute}
	for _, o := range opts {
		o(&p)
	}
	if _, ok := ctx.Deadline(); !ok && p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	timer := time.NewTimer(p.every)
	timer.Stop()
	defer timer.Stop()

	wait := p.every
	for checks := 1; ; checks++ {
		f, err := client.GetFile(ctx, id)
		if err != nil {
			return nil, eris.Wrapf(err, "tess: poll file %d", id)
		}
		if f.Status == FileStatusCompleted {
			return f, nil
		}
		if f.Status == FileStatusFailed {
			return nil, resilience.NewValidationError(provider, true,
				eris.Errorf("file %d processing failed", id))
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return nil, resilience.NewTransportError(provider, 0,
				eris.Wrapf(ctx.Err(), "file %d still %s after %d checks, timed out", id, f.Status, checks))
		case <-timer.C:
		}
		wait = min(wait*2, p.max)
	}
}
