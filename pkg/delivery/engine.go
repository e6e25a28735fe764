// Package delivery performs retrying outbound HTTP calls with per-attempt
// timeouts and bounded exponential backoff.
package delivery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// DefaultMaxRetries is the total attempt budget when the request does
	// not specify one
	DefaultMaxRetries = 3

	// DefaultAttemptTimeout bounds a single attempt
	DefaultAttemptTimeout = 10 * time.Second

	// DefaultInitialDelay is the backoff before the second attempt
	DefaultInitialDelay = 1 * time.Second

	// DefaultMaxDelay caps the backoff between attempts
	DefaultMaxDelay = 60 * time.Second
)

// SleepFunc waits for the given duration or until ctx is done. Tests inject
// a recording sleeper to assert the backoff sequence without waiting.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Request describes one outbound transmission
type Request struct {
	URL        string
	Method     string
	Headers    map[string]string
	Payload    []byte
	MaxRetries int
	Timeout    time.Duration
}

// Result is the outcome of a Send call. Attempts is always set, including
// on failure.
type Result struct {
	Success    bool
	Attempts   int
	StatusCode int
	Body       string
	Duration   time.Duration
	Err        error
}

// Config holds engine tuning
type Config struct {
	MaxRetries   int
	Timeout      time.Duration
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig returns the default engine tuning
func DefaultConfig() Config {
	return Config{
		MaxRetries:   DefaultMaxRetries,
		Timeout:      DefaultAttemptTimeout,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
	}
}

// Engine performs retrying HTTP deliveries
type Engine struct {
	client httpclient.Doer
	logger ectologger.Logger
	cfg    Config
	sleep  SleepFunc
}

// NewEngine creates a new delivery engine
func NewEngine(client httpclient.Doer, cfg Config, logger ectologger.Logger) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAttemptTimeout
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}

	return &Engine{
		client: client,
		logger: logger,
		cfg:    cfg,
		sleep:  defaultSleep,
	}
}

// WithSleep replaces the inter-retry sleeper
func (e *Engine) WithSleep(sleep SleepFunc) *Engine {
	e.sleep = sleep
	return e
}

// CalculateBackoff returns the delay before attempt+1 given a completed
// attempt number (1-based). The sequence is initial, 2*initial, 4*initial...
// capped at maxDelay. No jitter; callers asserting exact timing rely on that.
func CalculateBackoff(initial, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// Send performs the HTTP call with bounded retry. 2xx stops with success,
// 4xx stops immediately with a permanent failure, and 5xx, timeouts, and
// network errors are retried until the attempt budget runs out. The returned
// result always carries the attempt count actually used.
func (e *Engine) Send(ctx context.Context, req Request) *Result {
	ctx, span := tracing.StartSpan(ctx, "delivery.Engine.Send")
	defer span.End()

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = e.cfg.MaxRetries
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		attemptStart := time.Now()
		resp, err := e.attempt(ctx, method, req, timeout, attempt)
		if err != nil {
			lastErr = err
			e.recordAttempt("error", attemptStart)
			e.logger.WithContext(ctx).WithError(err).Warnf("Delivery attempt %d/%d failed: %s %s", attempt, maxRetries, method, req.URL)
		} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			e.recordAttempt("success", attemptStart)
			return &Result{
				Success:    true,
				Attempts:   attempt,
				StatusCode: resp.StatusCode,
				Body:       string(resp.Body),
				Duration:   time.Since(start),
			}
		} else if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			e.recordAttempt("permanent", attemptStart)
			e.logger.WithContext(ctx).Warnf("Delivery rejected with %d: %s %s", resp.StatusCode, method, req.URL)
			return &Result{
				Attempts:   attempt,
				StatusCode: resp.StatusCode,
				Body:       string(resp.Body),
				Duration:   time.Since(start),
				Err:        &PermanentError{StatusCode: resp.StatusCode, Body: string(resp.Body)},
			}
		} else {
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			e.recordAttempt("error", attemptStart)
			e.logger.WithContext(ctx).Warnf("Delivery attempt %d/%d got %d: %s %s", attempt, maxRetries, resp.StatusCode, method, req.URL)
		}

		if attempt < maxRetries {
			delay := CalculateBackoff(e.cfg.InitialDelay, e.cfg.MaxDelay, attempt)
			if err := e.sleep(ctx, delay); err != nil {
				return &Result{
					Attempts: attempt,
					Duration: time.Since(start),
					Err:      fmt.Errorf("delivery cancelled: %w", err),
				}
			}
		}
	}

	// The exhausted observation covers the whole send, sleeps included.
	e.recordAttempt("exhausted", start)
	return &Result{
		Attempts: maxRetries,
		Duration: time.Since(start),
		Err:      &RetryExhaustedError{Attempts: maxRetries, LastErr: lastErr},
	}
}

// attempt performs one HTTP call under its own timeout
func (e *Engine) attempt(ctx context.Context, method string, req Request, timeout time.Duration, attempt int) (*httpclient.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := httpclient.NewRequest(attemptCtx, method, req.URL, req.Payload, req.Headers)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(attemptCtx, httpReq)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, &TimeoutError{Attempt: attempt, Budget: timeout}
		}
		return nil, err
	}

	return resp, nil
}

// recordAttempt observes one attempt's own duration, not the cumulative
// elapsed time since Send started.
func (e *Engine) recordAttempt(outcome string, start time.Time) {
	metrics.DeliveryAttemptsTotal.WithLabelValues(outcome).Inc()
	metrics.DeliveryDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
