package host

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds a retried operation: attempts are spaced Interval apart and
// give up after MaxAttempts tries or Timeout overall, whichever comes first.
// Zero values mean no limit of that kind; at least one should be set.
type Policy struct {
	Interval    time.Duration
	Timeout     time.Duration
	MaxAttempts int
}

// DefaultReadyPolicy polls every two seconds for up to thirty.
var DefaultReadyPolicy = Policy{Interval: 2 * time.Second, Timeout: 30 * time.Second}

// DefaultSavePolicy retries a failed write twice, five seconds apart.
var DefaultSavePolicy = Policy{Interval: 5 * time.Second, Timeout: 30 * time.Second, MaxAttempts: 3}

// Scheduler supplies the waits between attempts.
type Scheduler interface {
	After(d time.Duration) <-chan time.Time
}

type clock struct{}

func (clock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemScheduler waits in real time.
var SystemScheduler Scheduler = clock{}

// Retry runs op until it succeeds or the policy is exhausted, returning the
// last error. onRetry, if set, is told about each failed attempt that will
// be retried.
func Retry(ctx context.Context, p Policy, s Scheduler, op func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	if s == nil {
		s = SystemScheduler
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return fmt.Errorf("after %d attempts: %w", attempt, err)
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		select {
		case <-s.After(p.Interval):
		case <-ctx.Done():
			return fmt.Errorf("after %d attempts: %w", attempt, err)
		}
	}
}

// AwaitReady polls check until it reports ready. Check errors count as not
// ready. Exhausting the policy yields ErrTimeout.
func AwaitReady(ctx context.Context, p Policy, s Scheduler, check func(ctx context.Context) (bool, error)) error {
	err := Retry(ctx, p, s, func(ctx context.Context) error {
		ok, err := check(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errNotReady
		}
		return nil
	}, nil)
	if err != nil {
		if parent := ctx.Err(); parent != nil {
			return parent
		}
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return nil
}

var errNotReady = fmt.Errorf("not ready")
