package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"wavedaq/internal/config"
	"wavedaq/internal/daq"
	"wavedaq/internal/livebuffer"
	"wavedaq/internal/logging"
	"wavedaq/internal/serialport"
	"wavedaq/internal/session"
	"wavedaq/internal/store"
)

// ErrLowDiskSpace rejects a session start when the recordings volume is
// below the configured floor.
var ErrLowDiskSpace = errors.New("insufficient free space on recording volume")

const storeOpTimeout = 5 * time.Second

// Daemon coordinates acquisition sessions and enforces single-instance
// execution.
type Daemon struct {
	logger     *slog.Logger
	store      *store.Store
	live       *livebuffer.Buffer
	controller *session.Controller
	monitor    *serialport.Monitor
	watcher    *config.Watcher

	lockPath string
	lock     *flock.Flock

	cfgMu      sync.RWMutex
	cfg        *config.Config
	configPath string

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool            `json:"running"`
	StartedAt    time.Time       `json:"started_at,omitempty"`
	ConfigPath   string          `json:"config_path"`
	CatalogPath  string          `json:"catalog_path"`
	LockFilePath string          `json:"lock_file_path"`
	Session      session.Status  `json:"session"`
	LiveCounter  uint64          `json:"live_counter"`
}

// New constructs a daemon with initialized dependencies. configPath is the
// resolved config file location, watched for edits while running.
func New(cfg *config.Config, st *store.Store, configPath string, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	d := &Daemon{
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      st,
		live:       livebuffer.New(cfg.LiveView.BufferSamples),
		cfg:        cfg,
		configPath: configPath,
		lockPath:   filepath.Join(cfg.Paths.LogDir, "wavedaqd.lock"),
	}
	d.lock = flock.New(d.lockPath)
	d.controller = session.NewController(d.live, newModbusClient, session.Hooks{
		OnFileOpened: d.fileOpened,
		OnFileClosed: d.fileClosed,
		OnFinished:   d.sessionFinished,
	}, logger)
	d.monitor = serialport.NewMonitor(nil, logger)
	d.watcher = config.NewWatcher(configPath, logger, d.applyConfig)
	return d, nil
}

func newModbusClient(opts daq.ClientOptions) (daq.RegisterClient, error) {
	return daq.NewModbusClient(opts), nil
}

// Start acquires the daemon lock and launches the background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another wavedaq daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.monitor.Start(d.ctx); err != nil {
		d.logger.Warn("serial monitor unavailable", logging.Error(err))
	}
	if err := d.watcher.Start(d.ctx); err != nil {
		d.logger.Warn("config watcher unavailable", logging.Error(err))
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("config", d.configPath),
		logging.String("catalog", d.store.Path()),
	)
	return nil
}

// Stop halts any active session and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if st := d.controller.Status(); st.State.Active() {
		if _, err := d.controller.Stop(); err != nil {
			d.logger.Warn("session stop during shutdown", logging.Error(err))
		}
	}
	d.watcher.Close()
	d.monitor.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// applyConfig installs a validated config reload. A running session keeps
// the config it started with.
func (d *Daemon) applyConfig(cfg *config.Config) {
	d.cfgMu.Lock()
	d.cfg = cfg
	d.cfgMu.Unlock()
	d.logger.Info("configuration reloaded; applies to the next session")
}

// Config returns the current daemon configuration.
func (d *Daemon) Config() *config.Config {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.cfg
}

// StartSession begins acquisition under the given label using the current
// configuration.
func (d *Daemon) StartSession(ctx context.Context, label string) (session.Status, error) {
	// Reject before creating a catalog row; a rejected attempt must leave
	// no trace in the session history.
	if st := d.controller.Status(); st.State.Active() {
		return st, session.ErrSessionActive
	}

	cfg := d.Config()

	free, err := freeSpaceMiB(cfg.Recording.OutputDir)
	if err != nil {
		d.logger.Warn("free space check failed", logging.Error(err),
			logging.String("dir", cfg.Recording.OutputDir))
	} else if free < uint64(cfg.Recording.MinFreeMiB) {
		return session.Status{State: session.StateIdle},
			fmt.Errorf("%w: %d MiB free, %d MiB required", ErrLowDiskSpace, free, cfg.Recording.MinFreeMiB)
	}

	sessCfg := session.FromDaemonConfig(cfg, uuid.NewString(), label)
	if err := sessCfg.Validate(); err != nil {
		return session.Status{State: session.StateIdle}, err
	}

	if err := d.store.CreateSession(ctx, store.Session{
		ID:         sessCfg.ID,
		Label:      sessCfg.Label,
		State:      string(session.StateStarting),
		SerialPort: sessCfg.SerialPort,
		SampleRate: sessCfg.SampleRate,
		Channels:   sessCfg.Channels,
		OutputDir:  sessCfg.OutputDir,
		StartedAt:  time.Now(),
	}); err != nil {
		return session.Status{State: session.StateIdle}, fmt.Errorf("catalog session: %w", err)
	}

	st, err := d.controller.Start(sessCfg)
	if err != nil {
		d.markSessionFailed(sessCfg.ID, err)
		return st, err
	}
	return st, nil
}

// StopSession ends the active session. Stopping with no session active is
// not an error.
func (d *Daemon) StopSession(ctx context.Context) (session.Status, error) {
	return d.controller.Stop()
}

// SessionStatus reports the most recent session.
func (d *Daemon) SessionStatus() session.Status {
	return d.controller.Status()
}

// Status reports daemon runtime information.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		StartedAt:    d.startedAt,
		ConfigPath:   d.configPath,
		CatalogPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Session:      d.controller.Status(),
		LiveCounter:  d.live.Counter(),
	}
}

// Snapshot returns the latest live-buffer contents.
func (d *Daemon) Snapshot() livebuffer.Snapshot {
	return d.live.Snapshot()
}

// Devices lists serial adapters currently present.
func (d *Daemon) Devices() ([]serialport.Device, error) {
	return serialport.Scan()
}

// ListSessions returns catalog sessions, newest first.
func (d *Daemon) ListSessions(ctx context.Context, limit int) ([]store.Session, error) {
	return d.store.ListSessions(ctx, limit)
}

// ListFiles returns the recording files of one session.
func (d *Daemon) ListFiles(ctx context.Context, sessionID string) ([]store.File, error) {
	return d.store.ListFiles(ctx, sessionID)
}

// GetFile looks a recording file up by catalog id.
func (d *Daemon) GetFile(ctx context.Context, id int64) (*store.File, error) {
	return d.store.GetFile(ctx, id)
}

func (d *Daemon) fileOpened(sessionID string, seq int, path string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()
	if _, err := d.store.AddFile(ctx, sessionID, seq, path); err != nil {
		d.logger.Warn("catalog file insert failed",
			logging.Error(err),
			logging.String(logging.FieldSessionID, sessionID),
			logging.Int(logging.FieldSequence, seq),
		)
	}
}

func (d *Daemon) fileClosed(sessionID string, seq int, path string, rows int) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()
	if err := d.store.CloseFile(ctx, sessionID, seq, int64(rows)); err != nil {
		d.logger.Warn("catalog file close failed",
			logging.Error(err),
			logging.String(logging.FieldSessionID, sessionID),
			logging.Int(logging.FieldSequence, seq),
		)
	}
}

func (d *Daemon) sessionFinished(st session.Status) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()
	if err := d.store.FinishSession(ctx, store.Session{
		ID:         st.ID,
		State:      string(st.State),
		StoppedAt:  st.StoppedAt,
		Produced:   st.Produced,
		Recorded:   st.Recorded,
		Dropped:    st.Dropped,
		ReadErrors: st.ReadErrors,
		Degraded:   st.Degraded,
		Error:      st.Error,
	}); err != nil {
		d.logger.Warn("catalog session update failed",
			logging.Error(err),
			logging.String(logging.FieldSessionID, st.ID),
		)
	}
}

func (d *Daemon) markSessionFailed(id string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()
	if err := d.store.FinishSession(ctx, store.Session{
		ID:        id,
		State:     string(session.StateFailed),
		StoppedAt: time.Now(),
		Error:     cause.Error(),
	}); err != nil {
		d.logger.Warn("catalog session update failed",
			logging.Error(err),
			logging.String(logging.FieldSessionID, id),
		)
	}
}
