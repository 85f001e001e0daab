package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// IsRetryableFunc is a function that determines if an error is retryable
type IsRetryableFunc func(error) bool

// Options configures the retry behavior
type Options struct {
	// MaxRetries is the maximum number of retry attempts (not including the initial attempt)
	MaxRetries int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// BackoffFactor is the factor by which the delay increases after each retry
	BackoffFactor float64

	// JitterFactor adds randomness to the delay (0.0 = no jitter, 1.0 = 100% jitter)
	JitterFactor float64

	// IsRetryableFunc decides which errors are retried. Defaults to
	// IsTemporaryNetError.
	IsRetryableFunc IsRetryableFunc

	// OnRetry is called before each wait
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultOptions returns default retry options, modelled on the accept
// backoff of net/http: 5ms doubling up to one second.
func DefaultOptions() Options {
	return Options{
		MaxRetries:    10,
		InitialDelay:  5 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// Do executes fn until it succeeds, fails with a non-retryable error, runs
// out of attempts, or ctx is done.
func Do[T any](ctx context.Context, fn func() (T, error), opts Options) (T, error) {
	var zero T
	var delay time.Duration

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	isRetryable := opts.IsRetryableFunc
	if isRetryable == nil {
		isRetryable = IsTemporaryNetError
	}

	for attempt := 0; ; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		if !isRetryable(err) || attempt >= opts.MaxRetries {
			return zero, err
		}

		if attempt == 0 {
			delay = opts.InitialDelay
		} else {
			delay = time.Duration(float64(delay) * opts.BackoffFactor)
		}
		if opts.MaxDelay > 0 && delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}

		wait := delay
		if opts.JitterFactor > 0 {
			jitter := float64(delay) * opts.JitterFactor
			wait = time.Duration(float64(delay) + (rnd.Float64()*jitter*2 - jitter))
		}

		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// IsTemporaryNetError reports whether an Accept error is worth retrying:
// timeouts, descriptor exhaustion and connections aborted before accept.
func IsTemporaryNetError(err error) bool {
	if err == nil || errors.Is(err, net.ErrClosed) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNRESET)
}
