package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"wavedaq/internal/daemon"
	"wavedaq/internal/logging"
	"wavedaq/internal/store"
)

// Server is the HTTP control surface in front of the daemon.
type Server struct {
	bind         string
	logger       *slog.Logger
	daemon       *daemon.Daemon
	pushInterval time.Duration

	listener net.Listener
	server   *http.Server
}

// New builds the HTTP server. A blank bind address disables it.
func New(cfg Config, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("webapi requires daemon")
	}
	bind := strings.TrimSpace(cfg.Bind)
	if bind == "" {
		return nil, nil
	}

	s := &Server{
		bind:         bind,
		logger:       logging.NewComponentLogger(logger, "webapi"),
		daemon:       d,
		pushInterval: cfg.PushInterval,
	}
	if s.pushInterval <= 0 {
		s.pushInterval = 500 * time.Millisecond
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/data", s.handleData).Methods(http.MethodGet)
	api.HandleFunc("/devices", s.handleDevices).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.handleSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/files", s.handleSessionFiles).Methods(http.MethodGet)
	api.HandleFunc("/files/{id}", s.handleFileDownload).Methods(http.MethodGet)
	api.HandleFunc("/live", s.handleLive).Methods(http.MethodGet)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(router)

	s.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Config carries the webapi settings.
type Config struct {
	Bind         string
	PushInterval time.Duration
}

// Start begins serving until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

type startRequest struct {
	Label string `json:"label"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	st, err := s.daemon.StartSession(r.Context(), req.Label)
	if err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, daemon.ErrLowDiskSpace):
			code = http.StatusInsufficientStorage
		case st.State.Active():
			code = http.StatusConflict
		case strings.Contains(err.Error(), "required"), strings.Contains(err.Error(), "must"):
			code = http.StatusBadRequest
		}
		s.writeError(w, code, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	st, err := s.daemon.StopSession(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	snap := s.daemon.Snapshot()
	samples := snap.Samples
	if limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	payload := snapshotPayload{Counter: snap.Counter, Samples: make([]samplePayload, 0, len(samples))}
	for _, sample := range samples {
		payload.Samples = append(payload.Samples, samplePayload{
			Index:  sample.Index,
			Time:   sample.Time,
			Values: sample.Values,
		})
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	devices, err := s.daemon.Devices()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.daemon.ListSessions(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleSessionFiles(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	files, err := s.daemon.ListFiles(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid file id")
		return
	}
	file, err := s.daemon.GetFile(r.Context(), id)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			code = http.StatusNotFound
		}
		s.writeError(w, code, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	http.ServeFile(w, r, file.Path)
}

type snapshotPayload struct {
	Counter uint64          `json:"counter"`
	Samples []samplePayload `json:"samples"`
}

type samplePayload struct {
	Index  uint64    `json:"index"`
	Time   time.Time `json:"time"`
	Values []float64 `json:"values"`
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("write response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
