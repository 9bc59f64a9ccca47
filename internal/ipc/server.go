package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"wavedaq/internal/daemon"
	"wavedaq/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("WaveDAQ", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) SessionStart(req SessionStartRequest, resp *SessionStartResponse) error {
	s.logger.Debug("session start requested", logging.String(logging.FieldLabel, req.Label))
	st, err := s.daemon.StartSession(s.ctx, req.Label)
	resp.Session = st
	if err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "session started"
	return nil
}

func (s *service) SessionStop(_ SessionStopRequest, resp *SessionStopResponse) error {
	s.logger.Debug("session stop requested")
	st, err := s.daemon.StopSession(s.ctx)
	resp.Session = st
	if err != nil {
		resp.Stopped = false
		resp.Message = err.Error()
		return nil
	}
	resp.Stopped = true
	resp.Message = "session stopped"
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.StartedAt = status.StartedAt
	resp.ConfigPath = status.ConfigPath
	resp.CatalogPath = status.CatalogPath
	resp.LockPath = status.LockFilePath
	resp.PID = os.Getpid()
	resp.Session = status.Session
	resp.LiveCounter = status.LiveCounter
	return nil
}

func (s *service) SessionList(req SessionListRequest, resp *SessionListResponse) error {
	sessions, err := s.daemon.ListSessions(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Sessions = sessions
	return nil
}

func (s *service) FileList(req FileListRequest, resp *FileListResponse) error {
	if req.SessionID == "" {
		return errors.New("file list requires a session id")
	}
	files, err := s.daemon.ListFiles(s.ctx, req.SessionID)
	if err != nil {
		return err
	}
	resp.Files = files
	return nil
}

func (s *service) DeviceList(_ DeviceListRequest, resp *DeviceListResponse) error {
	devices, err := s.daemon.Devices()
	if err != nil {
		return err
	}
	resp.Devices = devices
	return nil
}

func (s *service) Snapshot(req SnapshotRequest, resp *SnapshotResponse) error {
	snap := s.daemon.Snapshot()
	samples := snap.Samples
	if req.Limit > 0 && len(samples) > req.Limit {
		samples = samples[len(samples)-req.Limit:]
	}
	resp.Counter = snap.Counter
	resp.Samples = make([]SnapshotSample, 0, len(samples))
	for _, sample := range samples {
		resp.Samples = append(resp.Samples, SnapshotSample{
			Index:  sample.Index,
			Time:   sample.Time,
			Values: sample.Values,
		})
	}
	return nil
}
