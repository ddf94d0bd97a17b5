package analysis

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	attemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skillforge",
		Subsystem: "analysis",
		Name:      "attempt_duration_seconds",
		Help:      "Duration of individual analysis attempts",
	}, []string{"provider", "outcome"})

	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillforge",
		Subsystem: "analysis",
		Name:      "attempts_total",
		Help:      "Number of analysis attempts by outcome",
	}, []string{"provider", "outcome"})
)

// RetryConfig tunes the retry/backoff discipline around a Provider.
type RetryConfig struct {
	// MaxAttempts is the total attempt budget, first call included.
	MaxAttempts int
	// InitialDelay is the wait after the first failed attempt.
	InitialDelay time.Duration
	// Multiplier grows the delay between consecutive attempts.
	Multiplier float64
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
	// AttemptTimeout is the hard per-attempt deadline.
	AttemptTimeout time.Duration
	// Jitter is the symmetric jitter fraction applied to each delay.
	Jitter float64
}

// DefaultRetryConfig returns the standard budget: 4 attempts, delays
// 1s/2s/4s/8s with ±20% jitter, 10s per-attempt timeout.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    4,
		InitialDelay:   time.Second,
		Multiplier:     2,
		MaxDelay:       8 * time.Second,
		AttemptTimeout: 10 * time.Second,
		Jitter:         0.2,
	}
}

type retryProvider struct {
	inner  Provider
	cfg    RetryConfig
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	rand   func() float64
}

// WithRetry wraps a Provider with timeout enforcement, retry with
// exponential backoff and jitter, and one structured log record per attempt.
// Only Transient, Timeout and InvalidResponse failures are retried.
func WithRetry(p Provider, cfg RetryConfig, logger zerolog.Logger) Provider {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	return &retryProvider{
		inner:  p,
		cfg:    cfg,
		logger: logger.With().Str("component", "analysis_retry").Logger(),
		sleep:  sleepCtx,
		rand:   rand.Float64,
	}
}

func (r *retryProvider) Name() string { return r.inner.Name() }

func (r *retryProvider) Analyze(ctx context.Context, req Request) (*RawReport, error) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		report, err := r.attempt(ctx, req, attempt)
		if err == nil {
			return report, nil
		}
		lastErr = err

		// Parent cancellation ends the loop regardless of classification.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !Retryable(err) {
			return nil, err
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		if err := r.sleep(ctx, r.backoff(attempt)); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

func (r *retryProvider) attempt(ctx context.Context, req Request, attempt int) (*RawReport, error) {
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if r.cfg.AttemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, r.cfg.AttemptTimeout)
	}
	defer cancel()

	start := time.Now()
	report, err := r.inner.Analyze(attemptCtx, req)
	latency := time.Since(start)

	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = NewError(KindTimeout, "analysis attempt exceeded timeout budget", err)
	}

	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
	}

	attemptDuration.WithLabelValues(r.inner.Name(), outcome).Observe(latency.Seconds())
	attemptsTotal.WithLabelValues(r.inner.Name(), outcome).Inc()

	record := r.logger.Info()
	if err != nil {
		record = r.logger.Warn().Err(err)
	}
	record.
		Str("submission_id", req.SubmissionID).
		Int("attempt", attempt).
		Int64("latency_ms", latency.Milliseconds()).
		Str("outcome", outcome).
		Msg("analysis attempt")

	return report, err
}

// backoff computes the post-attempt delay: initial * multiplier^(attempt-1),
// capped, with symmetric jitter. Jittered delays stay non-decreasing across
// attempts because the jitter band is narrower than the growth factor.
func (r *retryProvider) backoff(attempt int) time.Duration {
	wait := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	if max := float64(r.cfg.MaxDelay); max > 0 && wait > max {
		wait = max
	}
	if r.cfg.Jitter > 0 {
		wait += wait * r.cfg.Jitter * (2*r.rand() - 1)
	}
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
