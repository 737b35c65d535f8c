package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"dynsched/internal/shared"
)

// JitterStrategy defines the jitter strategy to use
type JitterStrategy int

const (
	// JitterNone disables jitter
	JitterNone JitterStrategy = iota
	// JitterEqual picks a uniform delay in [0, base)
	JitterEqual
	// JitterDecorrelated picks a delay in [base, 3*base/2)
	JitterDecorrelated
)

// Config defines retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the first one)
	MaxAttempts int
	// InitialDelay is the delay before the second attempt
	InitialDelay time.Duration
	// MaxDelay caps a single delay
	MaxDelay time.Duration
	// MaxElapsedTime caps the total time spent retrying (0 = no limit)
	MaxElapsedTime time.Duration
	// Multiplier is the exponential backoff multiplier
	Multiplier float64
	// Jitter selects the jitter algorithm
	Jitter JitterStrategy
	// Rand is the random source for jitter (optional)
	Rand *rand.Rand
	// Clock drives delays; tests pass a clockwork.FakeClock
	Clock clockwork.Clock
	// OnRetry is called before each wait
	OnRetry func(attempt int, err error, nextDelay time.Duration)
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       JitterDecorrelated,
	}
}

// Normalize validates the configuration and fills optional fields
func (c *Config) Normalize() error {
	if c.MaxAttempts <= 0 {
		return errors.New("retry: MaxAttempts must be positive")
	}
	if c.InitialDelay <= 0 {
		return errors.New("retry: InitialDelay must be positive")
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.InitialDelay > c.MaxDelay {
		return errors.New("retry: InitialDelay cannot be greater than MaxDelay")
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.Multiplier < 1.0 {
		return errors.New("retry: Multiplier must be >= 1.0")
	}
	if c.MaxElapsedTime < 0 {
		return errors.New("retry: MaxElapsedTime cannot be negative")
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Func is a function that can be retried
type Func func(ctx context.Context) error

// Classifier reports whether an error should trigger another attempt
type Classifier func(err error) bool

// ExhaustedError is returned when retries are exhausted
type ExhaustedError struct {
	LastError error
	Attempts  int
	Elapsed   time.Duration
	Reason    string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: %s after %s (%d attempts): %v", e.Reason, e.Elapsed, e.Attempts, e.LastError)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastError
}

// Transient reports whether err is worth retrying: timeouts, dependency
// failures and connection-level network errors. Cancellation never is.
func Transient(err error) bool {
	if err == nil || shared.IsCanceled(err) {
		return false
	}
	if shared.IsTimeout(err) || shared.IsDependencyFailure(err) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	for _, errno := range []syscall.Errno{
		syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED,
		syscall.ENETUNREACH, syscall.EHOSTUNREACH, syscall.EPIPE,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsTemporary
}

// Do retries fn while Transient reports true
func Do(ctx context.Context, cfg Config, fn Func) error {
	return DoWithClassifier(ctx, cfg, fn, Transient)
}

// DoWithClassifier retries fn while retryable reports true
func DoWithClassifier(ctx context.Context, cfg Config, fn Func, retryable Classifier) error {
	if err := cfg.Normalize(); err != nil {
		return err
	}

	var lastErr error
	start := cfg.Clock.Now()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if !retryable(lastErr) {
			return lastErr
		}

		delay := cfg.applyJitter(cfg.backoff(attempt))

		if cfg.MaxElapsedTime > 0 {
			elapsed := cfg.Clock.Since(start)
			if elapsed+delay > cfg.MaxElapsedTime {
				return &ExhaustedError{
					LastError: lastErr,
					Attempts:  attempt,
					Elapsed:   elapsed,
					Reason:    "max elapsed time exceeded",
				}
			}
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr, delay)
		}

		timer := cfg.Clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.Chan():
		}
	}

	return &ExhaustedError{
		LastError: lastErr,
		Attempts:  cfg.MaxAttempts,
		Elapsed:   cfg.Clock.Since(start),
		Reason:    "max attempts exceeded",
	}
}

// backoff returns the exponential delay before attempt+1
func (c Config) backoff(attempt int) time.Duration {
	delay := c.InitialDelay
	for i := 1; i < attempt; i++ {
		if float64(delay)*c.Multiplier >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
		delay = time.Duration(float64(delay) * c.Multiplier)
	}
	return delay
}

func (c Config) applyJitter(base time.Duration) time.Duration {
	if base <= 0 {
		return base
	}
	var d time.Duration
	switch c.Jitter {
	case JitterEqual:
		d = time.Duration(c.Rand.Int63n(int64(base)))
	case JitterDecorrelated:
		d = base + time.Duration(c.Rand.Int63n(int64(base/2)+1))
	default:
		return base
	}
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}
