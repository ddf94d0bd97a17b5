package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  4,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     8 * time.Second,
		Jitter:       0.2,
	}
}

// wrapForTest replaces the wall-clock sleep with a recorder and pins the
// jitter source.
func wrapForTest(t *testing.T, inner Provider, cfg RetryConfig, random float64) (Provider, *[]time.Duration) {
	t.Helper()

	wrapped := WithRetry(inner, cfg, zerolog.Nop())
	rp, ok := wrapped.(*retryProvider)
	require.True(t, ok)

	var delays []time.Duration
	rp.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	rp.rand = func() float64 { return random }
	return wrapped, &delays
}

func TestWithRetryExhaustsAttemptBudget(t *testing.T) {
	fixture := NewFixtureProvider()
	// rand 0.5 centres the jitter band, leaving the raw delays.
	provider, delays := wrapForTest(t, fixture, testRetryConfig(), 0.5)

	report, err := provider.Analyze(context.Background(), Request{SubmissionID: "s-1"})
	require.Error(t, err)
	require.Nil(t, report)
	require.Equal(t, KindTransient, KindOf(err))
	require.Equal(t, 4, fixture.CallCount())
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *delays)
}

func TestWithRetrySucceedsMidBudget(t *testing.T) {
	want := &RawReport{QualityScore: 72, WeakAreas: []string{"recursion"}}
	fixture := NewFixtureProvider(
		FixtureResponse{Err: NewError(KindTransient, "upstream 503", nil)},
		FixtureResponse{Err: NewError(KindInvalidResponse, "schema violation", nil)},
		FixtureResponse{Report: want},
	)
	provider, _ := wrapForTest(t, fixture, testRetryConfig(), 0.5)

	report, err := provider.Analyze(context.Background(), Request{SubmissionID: "s-2"})
	require.NoError(t, err)
	require.Equal(t, want, report)
	require.Equal(t, 3, fixture.CallCount())
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	fixture := NewFixtureProvider(
		FixtureResponse{Err: NewError(KindRejected, "code payload rejected", nil)},
	)
	provider, delays := wrapForTest(t, fixture, testRetryConfig(), 0.5)

	_, err := provider.Analyze(context.Background(), Request{SubmissionID: "s-3"})
	require.Error(t, err)
	require.Equal(t, KindRejected, KindOf(err))
	require.Equal(t, 1, fixture.CallCount())
	require.Empty(t, *delays)
}

func TestWithRetryHonorsParentCancellation(t *testing.T) {
	fixture := NewFixtureProvider()
	provider, _ := wrapForTest(t, fixture, testRetryConfig(), 0.5)
	rp := provider.(*retryProvider)
	ctx, cancel := context.WithCancel(context.Background())
	rp.sleep = func(_ context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := provider.Analyze(ctx, Request{SubmissionID: "s-4"})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, fixture.CallCount())
}

func TestBackoffJitterAndCap(t *testing.T) {
	cfg := testRetryConfig()
	cfg.MaxAttempts = 6

	provider, _ := wrapForTest(t, NewFixtureProvider(), cfg, 1) // +20% jitter
	rp := provider.(*retryProvider)

	require.Equal(t, time.Duration(1.2*float64(time.Second)), rp.backoff(1))
	require.Equal(t, time.Duration(1.2*float64(2*time.Second)), rp.backoff(2))
	// attempts past the cap all land on max delay before jitter
	require.Equal(t, time.Duration(1.2*float64(8*time.Second)), rp.backoff(4))
	require.Equal(t, time.Duration(1.2*float64(8*time.Second)), rp.backoff(5))
}

type blockingProvider struct{}

func (blockingProvider) Name() string { return "blocking" }

func (blockingProvider) Analyze(ctx context.Context, _ Request) (*RawReport, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAttemptTimeoutClassifiedAsTimeout(t *testing.T) {
	cfg := testRetryConfig()
	cfg.MaxAttempts = 2
	cfg.AttemptTimeout = 5 * time.Millisecond

	provider, _ := wrapForTest(t, blockingProvider{}, cfg, 0.5)

	_, err := provider.Analyze(context.Background(), Request{SubmissionID: "s-5"})
	require.Error(t, err)
	require.Equal(t, KindTimeout, KindOf(err))
	require.True(t, Retryable(err))
}
