package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"wavedaq/internal/daq"
	"wavedaq/internal/livebuffer"
	"wavedaq/internal/logging"
	"wavedaq/internal/recorder"
)

var (
	// ErrSessionActive is returned by Start while a session owns the device.
	ErrSessionActive = errors.New("session already active")
	// ErrStopTimeout is returned when teardown outlives the grace period.
	ErrStopTimeout = errors.New("session stop timed out")
)

// ClientFactory opens a register client for a session. Tests substitute
// fakes here.
type ClientFactory func(daq.ClientOptions) (daq.RegisterClient, error)

// Hooks let the daemon observe session milestones, typically to maintain
// the catalog. Any hook may be nil.
type Hooks struct {
	OnFileOpened func(sessionID string, seq int, path string)
	OnFileClosed func(sessionID string, seq int, path string, rows int)
	OnFinished   func(Status)
}

// Controller serializes session lifecycle. At most one session is active;
// starting over an active session fails and stopping is idempotent.
type Controller struct {
	logger    *slog.Logger
	live      *livebuffer.Buffer
	newClient ClientFactory
	hooks     Hooks

	mu  sync.Mutex
	run *run
}

// NewController wires the controller to the shared live buffer.
func NewController(live *livebuffer.Buffer, factory ClientFactory, hooks Hooks, logger *slog.Logger) *Controller {
	return &Controller{
		logger:    logging.NewComponentLogger(logger, "session"),
		live:      live,
		newClient: factory,
		hooks:     hooks,
	}
}

type run struct {
	cfg    Config
	cancel context.CancelFunc
	done   chan struct{}

	client daq.RegisterClient
	poller *daq.Poller
	rec    *recorder.Recorder

	mu        sync.Mutex
	state     State
	startedAt time.Time
	stoppedAt time.Time
	err       error

	produced uint64
	dropped  uint64
}

// Start launches the acquisition pipeline and returns with the session in
// the starting state. The session reports running once the transport is open
// and the sensor is programmed; device faults surface through Status as the
// failed state.
func (c *Controller) Start(cfg Config) (Status, error) {
	if err := cfg.Validate(); err != nil {
		return Status{State: StateIdle}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run != nil && c.run.currentState().Active() {
		return c.run.status(), ErrSessionActive
	}

	client, err := c.newClient(cfg.clientOptions())
	if err != nil {
		return Status{State: StateIdle}, fmt.Errorf("open device: %w", err)
	}

	r := &run{
		cfg:       cfg,
		client:    client,
		done:      make(chan struct{}),
		state:     StateStarting,
		startedAt: time.Now(),
	}
	r.rec = recorder.New(recorder.Options{
		BaseDir:       cfg.OutputDir,
		Label:         cfg.Label,
		Start:         r.startedAt,
		Channels:      cfg.Channels,
		Target:        cfg.RotationTarget(),
		FlushInterval: cfg.FlushInterval,
		OnFileOpened: func(seq int, path string) {
			if c.hooks.OnFileOpened != nil {
				c.hooks.OnFileOpened(cfg.ID, seq, path)
			}
		},
		OnFileClosed: func(seq int, path string, rows int) {
			if c.hooks.OnFileClosed != nil {
				c.hooks.OnFileClosed(cfg.ID, seq, path, rows)
			}
		},
	}, c.logger)
	if err := r.rec.Open(); err != nil {
		_ = client.Close()
		return Status{State: StateIdle}, fmt.Errorf("open recording: %w", err)
	}
	r.poller = daq.NewPoller(client, cfg.pollerConfig(), c.logger)

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	c.run = r
	c.live.Reset()

	c.logger.Info("session starting",
		logging.String(logging.FieldSessionID, cfg.ID),
		logging.String(logging.FieldLabel, cfg.Label),
		logging.String(logging.FieldDevice, cfg.SerialPort),
		logging.Int("sample_rate", cfg.SampleRate),
		logging.Int("channels", cfg.Channels),
	)
	go c.runPipeline(ctx, r)

	return r.status(), nil
}

// Stop cancels the active session and waits up to the grace period for the
// pipeline to drain. Stopping an already stopped controller is a no-op.
func (c *Controller) Stop() (Status, error) {
	c.mu.Lock()
	r := c.run
	c.mu.Unlock()

	if r == nil {
		return Status{State: StateIdle}, nil
	}
	if !r.currentState().Active() {
		return r.status(), nil
	}

	r.setState(StateStopping)
	c.logger.Info("session stopping", logging.String(logging.FieldSessionID, r.cfg.ID))
	r.cancel()

	grace := r.cfg.StopGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	select {
	case <-r.done:
		return r.status(), nil
	case <-time.After(grace):
		c.logger.Warn("session teardown exceeded grace period; forcing release",
			logging.String(logging.FieldSessionID, r.cfg.ID),
			logging.Duration("grace", grace),
		)
		// The run is failed here so a fresh session can start; the transport
		// and file handle are closed underneath the straggler goroutines to
		// unblock any stuck read or write.
		r.finish(ErrStopTimeout)
		if err := r.client.Close(); err != nil {
			c.logger.Warn("force close transport", logging.Error(err))
		}
		r.rec.Abort()
		return r.status(), ErrStopTimeout
	}
}

// Status reports the most recent session, or idle when none was started.
func (c *Controller) Status() Status {
	c.mu.Lock()
	r := c.run
	c.mu.Unlock()
	if r == nil {
		return Status{State: StateIdle}
	}
	return r.status()
}

// Wait blocks until the current session finishes. It returns immediately
// when no session is active.
func (c *Controller) Wait() {
	c.mu.Lock()
	r := c.run
	c.mu.Unlock()
	if r == nil {
		return
	}
	<-r.done
}

// runPipeline fans poller batches out to the live buffer and, through a
// bounded queue, to the recorder. The live buffer is fed unconditionally;
// when the recorder falls behind the batch is counted as dropped instead of
// stalling acquisition.
func (c *Controller) runPipeline(ctx context.Context, r *run) {
	defer close(r.done)

	pollErr := make(chan error, 1)
	go func() { pollErr <- r.poller.Run(ctx) }()

	// The session stays in the starting state until the transport is open;
	// a failed open leaves it for finish to report as failed.
	go func() {
		select {
		case <-r.poller.Ready():
			r.markRunning()
			c.logger.Info("session running", logging.String(logging.FieldSessionID, r.cfg.ID))
		case <-r.done:
		}
	}()

	queue := make(chan daq.Batch, r.cfg.QueueDepth)
	var recDone sync.WaitGroup
	recDone.Add(1)
	go func() {
		defer recDone.Done()
		for batch := range queue {
			r.rec.RecordBatch(batch)
		}
	}()

	for batch := range r.poller.Batches() {
		r.addProduced(uint64(len(batch)))
		c.live.PushBatch(batch)
		select {
		case queue <- batch:
		default:
			r.addDropped(uint64(len(batch)))
		}
	}
	close(queue)
	recDone.Wait()

	err := <-pollErr
	if closeErr := r.rec.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	r.finish(err)
	st := r.status()
	if err != nil {
		c.logger.Error("session failed",
			logging.String(logging.FieldSessionID, r.cfg.ID),
			logging.Error(err),
			logging.Uint64("recorded", st.Recorded),
		)
	} else {
		c.logger.Info("session finished",
			logging.String(logging.FieldSessionID, r.cfg.ID),
			logging.Uint64("produced", st.Produced),
			logging.Uint64("recorded", st.Recorded),
			logging.Uint64("dropped", st.Dropped),
		)
	}
	if c.hooks.OnFinished != nil {
		c.hooks.OnFinished(st)
	}
}

func (r *run) currentState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *run) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// A failure recorded by the pipeline outranks lifecycle transitions.
	if r.state == StateFailed || r.state == StateStopped {
		return
	}
	r.state = s
}

// markRunning moves a starting session to running. Any other state means a
// stop or failure won the race and stands.
func (r *run) markRunning() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateStarting {
		r.state = StateRunning
	}
}

func (r *run) finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// A forced stop already settled this run; a straggler draining later
	// must not overwrite its outcome.
	if r.state == StateFailed || r.state == StateStopped {
		return
	}
	r.stoppedAt = time.Now()
	if err != nil {
		r.state = StateFailed
		r.err = err
		return
	}
	r.state = StateStopped
}

func (r *run) addProduced(n uint64) {
	r.mu.Lock()
	r.produced += n
	r.mu.Unlock()
}

func (r *run) addDropped(n uint64) {
	r.mu.Lock()
	r.dropped += n
	r.mu.Unlock()
}

func (r *run) status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{
		ID:         r.cfg.ID,
		Label:      r.cfg.Label,
		State:      r.state,
		StartedAt:  r.startedAt,
		StoppedAt:  r.stoppedAt,
		Produced:   r.produced,
		Recorded:   r.rec.Rows(),
		Dropped:    r.dropped + r.rec.Dropped(),
		ReadErrors: r.poller.ReadErrors(),
		Degraded:   r.rec.Degraded(),
		Dir:        r.rec.Dir(),
	}
	if r.err != nil {
		st.Error = r.err.Error()
	}
	return st
}
