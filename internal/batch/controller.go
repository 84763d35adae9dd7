package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vmunix/bulkimport/internal/events"
)

// Summary is the record of a finished job kept by History.
type Summary struct {
	JobID      string    `json:"job_id"`
	Mode       Mode      `json:"mode"`
	State      State     `json:"state"`
	Total      int       `json:"total"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	Duplicates int       `json:"duplicates"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// History records job summaries when jobs finish.
type History interface {
	RecordJob(ctx context.Context, s Summary) error
}

// Options configures a Controller. Validator and Store are required.
type Options struct {
	Validator   Validator
	Store       Store
	Governor    Settler
	Bus         *events.Bus
	History     History
	Recorder    Recorder
	StagingDir  string
	FileTimeout time.Duration
	Logger      *slog.Logger
}

// Controller owns the lifecycle of at most one import job at a time.
// Commands may be issued from any goroutine.
type Controller struct {
	worker   *worker
	governor Settler
	bus      *events.Bus
	history  History
	metrics  Recorder
	log      *slog.Logger

	// cmdMu serializes commands; mu guards the fields below it.
	cmdMu sync.Mutex

	mu         sync.RWMutex
	gen        uint64
	job        *Job
	state      State
	cursor     int // next undispatched index
	current    string
	results    []Result
	recorded   map[int]bool
	jobErr     error
	startedAt  time.Time
	finishedAt time.Time
	gate       *gate
	stop       context.CancelFunc
	done       chan struct{}
	rate       rateEstimator
}

// NewController creates a controller in the idle state.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "controller")

	metrics := opts.Recorder
	if metrics == nil {
		metrics = nopRecorder{}
	}
	gov := opts.Governor
	if gov == nil {
		gov = NewGovernor(GovernorConfig{}, logger)
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus(nil, logger)
	}

	return &Controller{
		worker: &worker{
			validator:  opts.Validator,
			store:      opts.Store,
			stagingDir: opts.StagingDir,
			timeout:    opts.FileTimeout,
			log:        logger.With("component", "worker"),
			metrics:    metrics,
		},
		governor: gov,
		bus:      bus,
		history:  opts.History,
		metrics:  metrics,
		log:      logger,
		state:    StateIdle,
	}
}

// Bus returns the bus the controller publishes job events on.
func (c *Controller) Bus() *events.Bus {
	return c.bus
}

// Start begins processing job from its first file. ctx bounds the job's
// lifetime, not just this call. A paused job is abandoned first.
func (c *Controller) Start(ctx context.Context, job *Job) error {
	if job == nil {
		return ErrNoJob
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()

	switch state {
	case StateProcessing:
		return ErrJobActive
	case StatePaused:
		c.log.Info("abandoning paused job", "job_id", c.job.ID)
	}
	if err := acquireFolder(job); err != nil {
		return err
	}
	c.retire()

	return c.launch(ctx, job, false)
}

// Pause stops dispatching new files. In-flight files finish.
func (c *Controller) Pause() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	if c.state != StateProcessing {
		defer c.mu.Unlock()
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, c.state)
	}
	c.gate.close()
	e := c.transitionLocked(StatePaused, "paused")
	c.mu.Unlock()

	c.publish(e)
	return nil
}

// Resume continues dispatch from the first file not yet dispatched.
func (c *Controller) Resume() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	if c.state != StatePaused {
		defer c.mu.Unlock()
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, c.state)
	}
	e := c.transitionLocked(StateProcessing, "resumed")
	c.gate.open()
	c.mu.Unlock()

	c.publish(e)
	return nil
}

// Cancel stops dispatch for good. Results recorded so far are kept and
// in-flight files still record theirs.
func (c *Controller) Cancel() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	if !c.state.IsActive() {
		defer c.mu.Unlock()
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, c.state)
	}
	c.jobErr = ErrUserCancelled
	e := c.transitionLocked(StateCancelled, ErrUserCancelled.Error())
	c.stop()
	c.mu.Unlock()

	c.publish(e)
	return nil
}

// Restart discards results and reprocesses the same files from the start.
func (c *Controller) Restart(ctx context.Context) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.RLock()
	job, state := c.job, c.state
	c.mu.RUnlock()

	if job == nil {
		return ErrNoJob
	}
	if !state.IsTerminal() {
		return fmt.Errorf("%w: restart from %s", ErrInvalidTransition, state)
	}
	c.retire()

	if err := acquireFolder(job); err != nil {
		return err
	}
	job.size()
	return c.launch(ctx, job, true)
}

// ClearResults abandons any job and returns to idle with no results.
func (c *Controller) ClearResults() {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.RLock()
	var id string
	if c.job != nil {
		id = c.job.ID
	}
	c.mu.RUnlock()

	c.retire()

	c.mu.Lock()
	c.job = nil
	c.state = StateIdle
	c.cursor = 0
	c.current = ""
	c.results = nil
	c.recorded = nil
	c.jobErr = nil
	c.rate.reset()
	c.mu.Unlock()

	if id != "" {
		c.publish(&events.JobCleared{BaseEvent: events.NewBaseEvent(events.EventJobCleared, events.EntityJob, id)})
	}
}

// Wait blocks until the current job stops dispatching and every in-flight
// file has recorded its result, or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.RLock()
	done := c.done
	c.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current job state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Job returns the current job, or nil when idle.
func (c *Controller) Job() *Job {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.job
}

// Err returns why the job was cancelled: ErrUserCancelled, an
// *AccessError, or the lifetime context's error. It is nil otherwise.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jobErr
}

// Results returns a copy of the results recorded so far, in completion order.
func (c *Controller) Results() []Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Result(nil), c.results...)
}

// Stats summarizes the results recorded so far.
func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ComputeStats(c.results)
}

// Progress projects the current job for display.
func (c *Controller) Progress() Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p := Progress{State: c.state}
	if c.job == nil {
		return p
	}

	total := c.job.Total()
	p.JobID = c.job.ID
	p.Mode = c.job.Mode
	p.TotalFiles = total
	p.TotalBatches = c.job.TotalBatches()
	p.Processed = len(c.results)
	p.CurrentFileIndex = c.cursor
	p.CurrentFileName = c.current
	p.Stats = ComputeStats(c.results)
	if total > 0 {
		p.Percent = float64(p.Processed) / float64(total) * 100
		p.CurrentBatch = max(c.cursor-1, 0)/c.job.BatchSize + 1
	}
	if c.state == StateProcessing {
		p.FilesPerSecond, p.ETA = c.rate.estimate(total - p.Processed)
	}
	end := c.finishedAt
	if end.IsZero() {
		end = time.Now()
	}
	if !c.startedAt.IsZero() {
		p.Elapsed = end.Sub(c.startedAt)
	}
	if c.jobErr != nil {
		p.Error = c.jobErr.Error()
	}
	return p
}

// retire stops the previous run loop, if any, and waits for it to exit.
// Results it produces afterwards are dropped. Caller holds cmdMu.
func (c *Controller) retire() {
	c.mu.Lock()
	c.gen++
	stop, done := c.stop, c.done
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if done != nil {
		<-done
	}
}

func acquireFolder(job *Job) error {
	if job.Folder == nil {
		return nil
	}
	if err := job.Folder.Acquire(); err != nil {
		return &AccessError{Path: job.Folder.Root(), Err: err}
	}
	return nil
}

// launch resets job state and starts the run loop. The job's folder, if
// any, is already acquired; the run loop releases it. Caller holds cmdMu.
func (c *Controller) launch(ctx context.Context, job *Job, restart bool) error {
	dispatchCtx, stop := context.WithCancel(ctx)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	from := c.state
	c.job = job
	c.state = StateProcessing
	c.cursor = 0
	c.current = ""
	c.results = make([]Result, 0, job.Total())
	c.recorded = make(map[int]bool, job.Total())
	c.jobErr = nil
	c.startedAt = time.Now()
	c.finishedAt = time.Time{}
	c.gate = newGate()
	c.stop = stop
	c.done = make(chan struct{})
	c.rate.reset()
	gate, done := c.gate, c.done
	c.mu.Unlock()

	c.log.Info("job started",
		"job_id", job.ID,
		"files", job.Total(),
		"mode", job.Mode,
		"batch_size", job.BatchSize,
		"batches", job.TotalBatches(),
		"concurrency", job.ConcurrencyLimit,
		"restart", restart)

	c.publish(&events.JobStarted{
		BaseEvent:        events.NewBaseEvent(events.EventJobStarted, events.EntityJob, job.ID),
		Mode:             string(job.Mode),
		TotalFiles:       job.Total(),
		TotalBatches:     job.TotalBatches(),
		BatchSize:        job.BatchSize,
		ConcurrencyLimit: job.ConcurrencyLimit,
		Restart:          restart,
	})
	c.publish(&events.JobStateChanged{
		BaseEvent: events.NewBaseEvent(events.EventJobStateChanged, events.EntityJob, job.ID),
		From:      string(from),
		To:        string(StateProcessing),
	})

	go c.run(ctx, dispatchCtx, gen, job, gate, done)
	return nil
}

// run dispatches the job's files batch by batch. Workers run on workCtx so
// that cancelling dispatch lets in-flight files finish.
func (c *Controller) run(workCtx, dispatchCtx context.Context, gen uint64, job *Job, gate *gate, done chan struct{}) {
	defer close(done)
	defer c.stopFor(gen)

	if job.Folder != nil {
		defer func() {
			if err := job.Folder.Release(); err != nil {
				c.log.Warn("release folder access", "job_id", job.ID, "error", err)
			}
		}()
		watchDone := make(chan struct{})
		defer close(watchDone)
		go c.watchRevocation(gen, job, watchDone)
	}

	var stopErr error
	for b := 0; b < job.TotalBatches(); b++ {
		lo, hi := job.Batch(b)
		batchStart := time.Now()
		bufs := newBufferPool()

		c.publish(&events.BatchStarted{
			BaseEvent:    events.NewBaseEvent(events.EventBatchStarted, events.EntityJob, job.ID),
			Index:        b,
			TotalBatches: job.TotalBatches(),
			Size:         hi - lo,
		})

		dispatched, stopped := c.dispatchBatch(workCtx, dispatchCtx, gen, job, gate, bufs, lo, hi)

		c.publishBatchCompleted(job, b, lo, dispatched, time.Since(batchStart))
		if stopped {
			break
		}
		if b == job.TotalBatches()-1 {
			bufs.Drain()
			break
		}
		report := BatchReport{
			JobID:        job.ID,
			JobTotal:     job.Total(),
			BatchIndex:   b,
			TotalBatches: job.TotalBatches(),
			Processed:    dispatched,
			Elapsed:      time.Since(batchStart),
		}
		if err := c.governor.Settle(dispatchCtx, report, bufs); err != nil {
			stopErr = err
			break
		}
	}

	if stopErr == nil {
		stopErr = context.Cause(dispatchCtx)
	}
	c.finish(gen, job, stopErr)
}

// dispatchBatch dispatches files [lo, hi) with at most ConcurrencyLimit in
// flight and waits for all of them. A slot is taken before the pause gate
// is checked, so a pause takes effect before the next dispatch.
func (c *Controller) dispatchBatch(workCtx, dispatchCtx context.Context, gen uint64, job *Job, gate *gate, bufs *bufferPool, lo, hi int) (dispatched int, stopped bool) {
	sem := semaphore.NewWeighted(int64(job.ConcurrencyLimit))
	var g errgroup.Group

	for i := lo; i < hi; i++ {
		if err := sem.Acquire(dispatchCtx, 1); err != nil {
			stopped = true
			break
		}
		if !c.claim(dispatchCtx, gen, gate, i) {
			sem.Release(1)
			stopped = true
			break
		}
		dispatched++
		ref := job.Ref(i)
		g.Go(func() error {
			defer sem.Release(1)
			c.record(gen, job, c.worker.process(workCtx, job, ref, bufs))
			return nil
		})
	}

	_ = g.Wait()
	return dispatched, stopped || dispatchCtx.Err() != nil
}

// claim waits at the pause gate and marks index i as dispatched. It
// returns false when dispatch must stop.
func (c *Controller) claim(ctx context.Context, gen uint64, gate *gate, i int) bool {
	for {
		if err := gate.wait(ctx); err != nil {
			return false
		}
		c.mu.Lock()
		switch {
		case c.gen != gen || c.state.IsTerminal():
			c.mu.Unlock()
			return false
		case c.state == StatePaused:
			// paused between the gate opening and here
			c.mu.Unlock()
			continue
		}
		c.cursor = i + 1
		c.current = c.job.Ref(i).Name()
		c.mu.Unlock()
		return true
	}
}

// record stores a result once per file and escalates access failures.
func (c *Controller) record(gen uint64, job *Job, res Result) {
	c.mu.Lock()
	if c.gen != gen || c.recorded[res.Ref.Index] {
		c.mu.Unlock()
		return
	}
	c.recorded[res.Ref.Index] = true
	c.results = append(c.results, res)
	c.rate.observe(res.Timestamp, len(c.results))
	c.mu.Unlock()

	if res.Outcome == OutcomeFailure {
		c.log.Warn("file failed",
			"job_id", job.ID,
			"path", res.Ref.Path,
			"kind", res.Kind,
			"error", res.Error)
	} else {
		c.log.Debug("file processed", "job_id", job.ID, "path", res.Ref.Path, "outcome", res.Outcome)
	}

	e := &events.FileProcessed{
		BaseEvent:  events.NewBaseEvent(events.EventFileProcessed, events.EntityJob, job.ID),
		Index:      res.Ref.Index,
		Path:       res.Ref.Path,
		Outcome:    string(res.Outcome),
		Kind:       string(res.Kind),
		Error:      res.Error,
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Stored != nil {
		e.MediaID = res.Stored.ID
	}
	c.publish(e)

	if res.Stored != nil && res.Metadata != nil {
		c.publish(&events.MediaAdded{
			BaseEvent:   events.NewBaseEvent(events.EventMediaAdded, events.EntityMedia, fmt.Sprint(res.Stored.ID)),
			MediaID:     res.Stored.ID,
			ContentHash: res.Metadata.Hash,
			Title:       res.Metadata.Title,
			Location:    res.Stored.Location,
			Mode:        string(job.Mode),
			Duration:    res.Metadata.Duration.Seconds(),
		})
	}

	if res.Kind.Escalates() {
		var accessErr *AccessError
		if !errors.As(res.Err(), &accessErr) {
			accessErr = &AccessError{Path: res.Ref.Path, Err: res.Err()}
		}
		c.escalate(gen, accessErr)
	}
}

// escalate cancels the job with a job-level access failure.
func (c *Controller) escalate(gen uint64, err *AccessError) {
	c.mu.Lock()
	if c.gen != gen || !c.state.IsActive() {
		c.mu.Unlock()
		return
	}
	c.jobErr = err
	e := c.transitionLocked(StateCancelled, err.Error())
	c.stop()
	c.mu.Unlock()

	c.log.Error("job cancelled", "job_id", c.jobID(gen), "error", err)
	c.publish(e)
}

func (c *Controller) watchRevocation(gen uint64, job *Job, done <-chan struct{}) {
	select {
	case <-job.Folder.Revoked():
		c.escalate(gen, &AccessError{Path: job.Folder.Root(), Err: ErrFolderRevoked})
	case <-done:
	}
}

// finish moves the job to its terminal state once the run loop exits.
// stopErr is why dispatch ended early, if it did.
func (c *Controller) finish(gen uint64, job *Job, stopErr error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}

	var changed events.Event
	switch {
	case c.state.IsActive() && len(c.results) == job.Total():
		changed = c.transitionLocked(StateCompleted, "all files processed")
	case c.state.IsActive():
		// lifetime context ended or the governor gave up
		c.jobErr = stopErr
		if c.jobErr == nil {
			c.jobErr = context.Canceled
		}
		changed = c.transitionLocked(StateCancelled, c.jobErr.Error())
	}
	c.finishedAt = time.Now()
	state := c.state
	stats := ComputeStats(c.results)
	summary := Summary{
		JobID:      job.ID,
		Mode:       job.Mode,
		State:      state,
		Total:      job.Total(),
		Successful: stats.Successful,
		Failed:     stats.Failed,
		Duplicates: stats.Duplicates,
		StartedAt:  c.startedAt,
		FinishedAt: c.finishedAt,
	}
	if c.jobErr != nil {
		summary.Error = c.jobErr.Error()
	}
	c.mu.Unlock()

	if changed != nil {
		c.publish(changed)
	}

	c.log.Info("job finished",
		"job_id", job.ID,
		"state", state,
		"successful", stats.Successful,
		"failed", stats.Failed,
		"duplicates", stats.Duplicates,
		"elapsed", summary.FinishedAt.Sub(summary.StartedAt))

	c.metrics.JobFinished(state)
	c.publish(&events.JobFinished{
		BaseEvent:  events.NewBaseEvent(events.EventJobFinished, events.EntityJob, job.ID),
		State:      string(state),
		TotalFiles: job.Total(),
		Successful: stats.Successful,
		Failed:     stats.Failed,
		Duplicates: stats.Duplicates,
		Error:      summary.Error,
		DurationMS: summary.FinishedAt.Sub(summary.StartedAt).Milliseconds(),
	})

	if c.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.history.RecordJob(ctx, summary); err != nil {
			c.log.Warn("record job summary", "job_id", job.ID, "error", err)
		}
	}
}

// stopFor releases the dispatch context of generation gen's run loop.
func (c *Controller) stopFor(gen uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.gen == gen && c.stop != nil {
		c.stop()
	}
}

func (c *Controller) jobID(gen uint64) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.gen != gen || c.job == nil {
		return ""
	}
	return c.job.ID
}

// transitionLocked sets the state and returns the event describing it.
// Caller holds mu.
func (c *Controller) transitionLocked(to State, reason string) events.Event {
	from := c.state
	c.state = to
	c.log.Debug("job state changed", "job_id", c.job.ID, "from", from, "to", to, "reason", reason)
	return &events.JobStateChanged{
		BaseEvent: events.NewBaseEvent(events.EventJobStateChanged, events.EntityJob, c.job.ID),
		From:      string(from),
		To:        string(to),
		Reason:    reason,
	}
}

func (c *Controller) publishBatchCompleted(job *Job, b, lo, dispatched int, elapsed time.Duration) {
	c.mu.RLock()
	var batch []Result
	for _, r := range c.results {
		if r.Ref.Index >= lo && r.Ref.Index < lo+dispatched {
			batch = append(batch, r)
		}
	}
	c.mu.RUnlock()

	stats := ComputeStats(batch)
	c.publish(&events.BatchCompleted{
		BaseEvent:    events.NewBaseEvent(events.EventBatchCompleted, events.EntityJob, job.ID),
		Index:        b,
		TotalBatches: job.TotalBatches(),
		Processed:    stats.Attempted,
		Successful:   stats.Successful,
		Failed:       stats.Failed,
		Duplicates:   stats.Duplicates,
		DurationMS:   elapsed.Milliseconds(),
	})
}

func (c *Controller) publish(e events.Event) {
	if err := c.bus.Publish(context.Background(), e); err != nil {
		c.log.Warn("publish event", "type", e.EventType(), "error", err)
	}
}

// gate blocks dispatch while a job is paused.
type gate struct {
	mu     sync.Mutex
	closed bool
	opened chan struct{}
}

func newGate() *gate {
	return &gate{}
}

func (g *gate) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		g.closed = true
		g.opened = make(chan struct{})
	}
}

func (g *gate) open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		g.closed = false
		close(g.opened)
	}
}

func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	if !g.closed {
		g.mu.Unlock()
		return ctx.Err()
	}
	ch := g.opened
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
