package batch

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
)

// BatchReport describes a batch that just finished.
type BatchReport struct {
	JobID        string
	JobTotal     int
	BatchIndex   int // 0-based
	TotalBatches int
	Processed    int
	Elapsed      time.Duration
}

// Drainer releases per-batch transient allocations.
type Drainer interface {
	Drain() int
}

// Settler runs between batches. A non-nil error stops dispatch.
type Settler interface {
	Settle(ctx context.Context, report BatchReport, buffers Drainer) error
}

// MemorySampler reports host memory pressure as a used percentage.
type MemorySampler interface {
	UsedPercent(ctx context.Context) (float64, error)
}

// HostMemory samples system memory with gopsutil.
type HostMemory struct{}

// UsedPercent implements MemorySampler.
func (HostMemory) UsedPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

// GovernorConfig tunes pacing between batches.
type GovernorConfig struct {
	// PacingScale multiplies the size-based delay. Zero disables pacing.
	PacingScale float64
	// MemoryThreshold is the used-memory percentage above which the governor
	// forces a collection and doubles the delay. Zero disables the check.
	MemoryThreshold float64
}

// Governor releases per-batch memory and paces dispatch between batches.
type Governor struct {
	cfg     GovernorConfig
	sampler MemorySampler
	sleep   func(ctx context.Context, d time.Duration) error
	log     *slog.Logger
	metrics Recorder
}

// NewGovernor returns a governor that samples host memory.
func NewGovernor(cfg GovernorConfig, logger *slog.Logger) *Governor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Governor{
		cfg:     cfg,
		sampler: HostMemory{},
		sleep:   sleepCtx,
		log:     logger.With("component", "governor"),
		metrics: nopRecorder{},
	}
}

// WithSampler replaces the memory sampler.
func (g *Governor) WithSampler(s MemorySampler) *Governor {
	g.sampler = s
	return g
}

// WithRecorder reports pacing to r.
func (g *Governor) WithRecorder(r Recorder) *Governor {
	if r != nil {
		g.metrics = r
	}
	return g
}

// Delay computes the pause after a batch of a job of total files.
func (g *Governor) Delay(total int, pressured bool) time.Duration {
	d := time.Duration(float64(PacingDelay(total)) * g.cfg.PacingScale)
	if pressured {
		d *= 2
	}
	return d
}

// Settle drains the batch's buffers, relieves memory pressure and waits
// out the pacing delay. It returns ctx's error if cancelled while waiting.
func (g *Governor) Settle(ctx context.Context, r BatchReport, buffers Drainer) error {
	released := 0
	if buffers != nil {
		released = buffers.Drain()
	}

	pressured := false
	if g.cfg.MemoryThreshold > 0 && g.sampler != nil {
		used, err := g.sampler.UsedPercent(ctx)
		switch {
		case err != nil:
			g.log.Debug("memory sample failed", "error", err)
		case used > g.cfg.MemoryThreshold:
			pressured = true
			runtime.GC()
			debug.FreeOSMemory()
			g.log.Info("memory pressure relieved",
				"job_id", r.JobID,
				"used_percent", used,
				"threshold", g.cfg.MemoryThreshold)
		}
	}

	delay := g.Delay(r.JobTotal, pressured)
	g.metrics.BatchSettled(r.Elapsed, delay)
	g.log.Debug("batch settled",
		"job_id", r.JobID,
		"batch", r.BatchIndex+1,
		"of", r.TotalBatches,
		"buffers_released", released,
		"delay", delay)

	if delay <= 0 {
		return ctx.Err()
	}
	return g.sleep(ctx, delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
