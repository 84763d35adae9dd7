package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedMemory struct {
	used float64
	err  error
}

func (m fixedMemory) UsedPercent(context.Context) (float64, error) { return m.used, m.err }

type countingDrainer struct{ calls int }

func (d *countingDrainer) Drain() int { d.calls++; return 3 }

func newTestGovernor(cfg GovernorConfig, sampler MemorySampler) (*Governor, *[]time.Duration) {
	var slept []time.Duration
	g := NewGovernor(cfg, testLogger()).WithSampler(sampler)
	g.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return g, &slept
}

func TestGovernor_PacesBySize(t *testing.T) {
	g, slept := newTestGovernor(GovernorConfig{PacingScale: 1}, fixedMemory{used: 10})
	d := &countingDrainer{}

	require.NoError(t, g.Settle(context.Background(), BatchReport{JobTotal: 100}, d))
	require.NoError(t, g.Settle(context.Background(), BatchReport{JobTotal: 3000}, d))

	assert.Equal(t, []time.Duration{400 * time.Millisecond, 50 * time.Millisecond}, *slept)
	assert.Equal(t, 2, d.calls, "buffers drained after every batch")
}

func TestGovernor_ZeroScaleSkipsSleep(t *testing.T) {
	g, slept := newTestGovernor(GovernorConfig{}, fixedMemory{})

	require.NoError(t, g.Settle(context.Background(), BatchReport{JobTotal: 100}, nil))
	assert.Empty(t, *slept)
}

func TestGovernor_PressureDoublesDelay(t *testing.T) {
	g, slept := newTestGovernor(GovernorConfig{PacingScale: 1, MemoryThreshold: 80}, fixedMemory{used: 91})

	require.NoError(t, g.Settle(context.Background(), BatchReport{JobTotal: 500}, nil))
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, *slept)
}

func TestGovernor_SamplerErrorIgnored(t *testing.T) {
	g, slept := newTestGovernor(GovernorConfig{PacingScale: 1, MemoryThreshold: 80}, fixedMemory{err: errors.New("no procfs")})

	require.NoError(t, g.Settle(context.Background(), BatchReport{JobTotal: 1000}, nil))
	assert.Equal(t, []time.Duration{150 * time.Millisecond}, *slept)
}

func TestGovernor_CancelledWhileWaiting(t *testing.T) {
	g := NewGovernor(GovernorConfig{PacingScale: 100}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- g.Settle(ctx, BatchReport{JobTotal: 10}, nil) }()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("settle did not return after cancel")
	}
}

func TestGovernor_Delay(t *testing.T) {
	g := NewGovernor(GovernorConfig{PacingScale: 0.5}, testLogger())
	assert.Equal(t, 200*time.Millisecond, g.Delay(50, false))
	assert.Equal(t, 400*time.Millisecond, g.Delay(50, true))
}
