package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Label(t *testing.T) {
	assert.Equal(t, "Batch 3 of 6", Progress{CurrentBatch: 3, TotalBatches: 6}.Label())
	assert.Equal(t, "idle", Progress{State: StateIdle}.Label())
}

func TestProgress_Fraction(t *testing.T) {
	assert.InDelta(t, 0.25, Progress{Processed: 5, TotalFiles: 20}.Fraction(), 1e-9)
	assert.Zero(t, Progress{}.Fraction())
}

func TestRateEstimator(t *testing.T) {
	var e rateEstimator
	t0 := time.Unix(1000, 0)

	e.observe(t0, 0)
	rate, eta := e.estimate(10)
	assert.Zero(t, rate, "one sample gives no rate")
	assert.Zero(t, eta)

	e.observe(t0.Add(2*time.Second), 4)
	rate, eta = e.estimate(10)
	assert.InDelta(t, 2.0, rate, 1e-9)
	assert.Equal(t, 5*time.Second, eta)

	e.reset()
	rate, _ = e.estimate(10)
	assert.Zero(t, rate)
}
