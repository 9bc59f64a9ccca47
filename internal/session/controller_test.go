package session_test

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"wavedaq/internal/daq"
	"wavedaq/internal/livebuffer"
	"wavedaq/internal/logging"
	"wavedaq/internal/session"
	"wavedaq/internal/testsupport"
)

func fakeFactory(fake *testsupport.FakeClient) session.ClientFactory {
	return func(daq.ClientOptions) (daq.RegisterClient, error) {
		return fake, nil
	}
}

func testSessionConfig(t *testing.T, id string) session.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return session.FromDaemonConfig(cfg, id, "bench")
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

type hookRecorder struct {
	mu       sync.Mutex
	opened   []int
	closed   []int
	finished []session.Status
}

func (h *hookRecorder) hooks() session.Hooks {
	return session.Hooks{
		OnFileOpened: func(_ string, seq int, _ string) {
			h.mu.Lock()
			h.opened = append(h.opened, seq)
			h.mu.Unlock()
		},
		OnFileClosed: func(_ string, seq int, _ string, _ int) {
			h.mu.Lock()
			h.closed = append(h.closed, seq)
			h.mu.Unlock()
		},
		OnFinished: func(st session.Status) {
			h.mu.Lock()
			h.finished = append(h.finished, st)
			h.mu.Unlock()
		},
	}
}

func (h *hookRecorder) finishedStatuses() []session.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]session.Status(nil), h.finished...)
}

func TestControllerLifecycle(t *testing.T) {
	fake := testsupport.NewFakeClient(3, 2)
	live := livebuffer.New(256)
	hooks := &hookRecorder{}
	ctrl := session.NewController(live, fakeFactory(fake), hooks.hooks(), logging.NewNop())

	cfg := testSessionConfig(t, "sess-1")
	st, err := ctrl.Start(cfg)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !st.State.Active() {
		t.Fatalf("expected active state, got %s", st.State)
	}
	waitFor(t, 5*time.Second, func() bool {
		return ctrl.Status().State == session.StateRunning
	}, "timed out waiting for running state")

	// Starting over an active session is rejected.
	if _, err := ctrl.Start(cfg); !errors.Is(err, session.ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		cur := ctrl.Status()
		return cur.Recorded > 0 && live.Counter() > 0
	}, "timed out waiting for recorded samples")

	final, err := ctrl.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if final.State != session.StateStopped {
		t.Fatalf("expected stopped state, got %s (error %q)", final.State, final.Error)
	}
	if final.Produced == 0 || final.Recorded == 0 {
		t.Fatalf("expected counters to advance: %+v", final)
	}
	if final.Dir == "" {
		t.Fatal("expected session directory to be reported")
	}
	if _, err := os.Stat(final.Dir); err != nil {
		t.Fatalf("session directory missing: %v", err)
	}

	// Stop is idempotent.
	again, err := ctrl.Stop()
	if err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if again.State != session.StateStopped {
		t.Fatalf("expected stopped state on repeat stop, got %s", again.State)
	}

	finished := hooks.finishedStatuses()
	if len(finished) != 1 || finished[0].State != session.StateStopped {
		t.Fatalf("expected one finished callback with stopped state, got %+v", finished)
	}
	if fake.Closes() == 0 {
		t.Fatal("expected transport to be closed")
	}
}

// gatedClient holds Connect until the gate closes, so tests can observe the
// session before the transport is open.
type gatedClient struct {
	*testsupport.FakeClient
	gate chan struct{}
}

func (g *gatedClient) Connect() error {
	<-g.gate
	return g.FakeClient.Connect()
}

func TestControllerStartingUntilTransportOpens(t *testing.T) {
	gate := make(chan struct{})
	client := &gatedClient{FakeClient: testsupport.NewFakeClient(3, 1), gate: gate}
	live := livebuffer.New(64)
	ctrl := session.NewController(live, func(daq.ClientOptions) (daq.RegisterClient, error) {
		return client, nil
	}, session.Hooks{}, logging.NewNop())

	st, err := ctrl.Start(testSessionConfig(t, "sess-5"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if st.State != session.StateStarting {
		t.Fatalf("expected starting state before transport open, got %s", st.State)
	}

	// The state holds at starting while the transport open is in flight.
	time.Sleep(50 * time.Millisecond)
	if got := ctrl.Status().State; got != session.StateStarting {
		t.Fatalf("expected starting state while connect blocked, got %s", got)
	}

	close(gate)
	waitFor(t, 5*time.Second, func() bool {
		return ctrl.Status().State == session.StateRunning
	}, "timed out waiting for running state after transport open")

	if _, err := ctrl.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestControllerFailsWhenTransportNeverOpens(t *testing.T) {
	fake := testsupport.NewFakeClient(3, 1)
	fake.SetConnectError(errors.New("no such device"))
	live := livebuffer.New(64)
	ctrl := session.NewController(live, fakeFactory(fake), session.Hooks{}, logging.NewNop())

	st, err := ctrl.Start(testSessionConfig(t, "sess-6"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if st.State == session.StateRunning {
		t.Fatalf("session must not report running before the transport opened")
	}

	ctrl.Wait()
	final := ctrl.Status()
	if final.State != session.StateFailed {
		t.Fatalf("expected failed state, got %s", final.State)
	}
	if !strings.Contains(final.Error, "transport open") {
		t.Fatalf("expected transport open failure reason, got %q", final.Error)
	}
}

// stallingClient blocks FIFO reads until the transport is closed, simulating
// a device that stops responding mid-session.
type stallingClient struct {
	*testsupport.FakeClient
	stall chan struct{}
	once  sync.Once
}

func (s *stallingClient) ReadInputRegisters(address, quantity uint16) ([]uint16, error) {
	if address == testsupport.RegFIFOLength {
		<-s.stall
		return nil, errors.New("transport closed")
	}
	return s.FakeClient.ReadInputRegisters(address, quantity)
}

func (s *stallingClient) Close() error {
	s.once.Do(func() { close(s.stall) })
	return s.FakeClient.Close()
}

func TestControllerStopTimeoutForcesRelease(t *testing.T) {
	client := &stallingClient{FakeClient: testsupport.NewFakeClient(3, 1), stall: make(chan struct{})}
	live := livebuffer.New(64)
	ctrl := session.NewController(live, func(daq.ClientOptions) (daq.RegisterClient, error) {
		return client, nil
	}, session.Hooks{}, logging.NewNop())

	cfg := testSessionConfig(t, "sess-7")
	cfg.StopGrace = 100 * time.Millisecond
	if _, err := ctrl.Start(cfg); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool {
		return ctrl.Status().State == session.StateRunning
	}, "timed out waiting for running state")

	st, err := ctrl.Stop()
	if !errors.Is(err, session.ErrStopTimeout) {
		t.Fatalf("expected ErrStopTimeout, got %v", err)
	}
	if st.State != session.StateFailed {
		t.Fatalf("expected failed state after forced release, got %s", st.State)
	}
	if st.Error == "" {
		t.Fatal("expected stop timeout reason to be recorded")
	}
	if client.Closes() == 0 {
		t.Fatal("expected transport to be force-closed")
	}

	// The failed run no longer counts as active; the controller accepts a
	// fresh session.
	ctrl.Wait()
	if _, err := ctrl.Start(testSessionConfig(t, "sess-8")); err != nil {
		t.Fatalf("start after forced release failed: %v", err)
	}
	if _, err := ctrl.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestControllerFailsWhenDeviceDies(t *testing.T) {
	fake := testsupport.NewFakeClient(3, 1)
	live := livebuffer.New(64)
	hooks := &hookRecorder{}
	ctrl := session.NewController(live, fakeFactory(fake), hooks.hooks(), logging.NewNop())

	cfg := testSessionConfig(t, "sess-2")
	if _, err := ctrl.Start(cfg); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return ctrl.Status().Produced > 0
	}, "timed out waiting for first samples")

	fake.FailAllReads(true)
	ctrl.Wait()

	final := ctrl.Status()
	if final.State != session.StateFailed {
		t.Fatalf("expected failed state, got %s", final.State)
	}
	if final.Error == "" {
		t.Fatal("expected failure reason to be recorded")
	}
	if final.ReadErrors < uint64(cfg.FailureThreshold) {
		t.Fatalf("expected at least %d read errors, got %d", cfg.FailureThreshold, final.ReadErrors)
	}

	finished := hooks.finishedStatuses()
	if len(finished) != 1 || finished[0].State != session.StateFailed {
		t.Fatalf("expected failed finish callback, got %+v", finished)
	}
}

func TestControllerRestartAfterStop(t *testing.T) {
	fake := testsupport.NewFakeClient(3, 1)
	live := livebuffer.New(64)
	ctrl := session.NewController(live, fakeFactory(fake), session.Hooks{}, logging.NewNop())

	first := testSessionConfig(t, "sess-3a")
	if _, err := ctrl.Start(first); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if _, err := ctrl.Stop(); err != nil {
		t.Fatalf("first Stop failed: %v", err)
	}

	second := testSessionConfig(t, "sess-3b")
	if _, err := ctrl.Start(second); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	// The live buffer starts fresh for the new session.
	if live.Counter() > ctrl.Status().Produced {
		t.Fatalf("expected live buffer reset, counter %d produced %d", live.Counter(), ctrl.Status().Produced)
	}
	if _, err := ctrl.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	base := testSessionConfig(t, "sess-4")

	cases := []struct {
		name   string
		mutate func(*session.Config)
	}{
		{"missing id", func(c *session.Config) { c.ID = "" }},
		{"blank label", func(c *session.Config) { c.Label = "  " }},
		{"label with separator", func(c *session.Config) { c.Label = "a/b" }},
		{"zero sample rate", func(c *session.Config) { c.SampleRate = 0 }},
		{"zero channels", func(c *session.Config) { c.Channels = 0 }},
		{"zero rotate seconds", func(c *session.Config) { c.RotateSeconds = 0 }},
		{"zero queue depth", func(c *session.Config) { c.QueueDepth = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}
}
