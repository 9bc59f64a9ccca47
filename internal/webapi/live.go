package webapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"wavedaq/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const liveWriteTimeout = 5 * time.Second

// handleLive upgrades the connection and pushes live-buffer snapshots at the
// configured interval. Only buffer deltas matter to viewers, so pushes with
// an unchanged counter are skipped.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	s.logger.Debug("live stream connected", logging.String("remote", conn.RemoteAddr().String()))

	// Reader goroutine: surface client close without blocking the pusher.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	var lastCounter uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ticker.C:
			snap := s.daemon.Snapshot()
			if snap.Counter == lastCounter {
				continue
			}
			lastCounter = snap.Counter

			payload := snapshotPayload{Counter: snap.Counter, Samples: make([]samplePayload, 0, len(snap.Samples))}
			for _, sample := range snap.Samples {
				payload.Samples = append(payload.Samples, samplePayload{
					Index:  sample.Index,
					Time:   sample.Time,
					Values: sample.Values,
				})
			}

			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteJSON(payload); err != nil {
				s.logger.Debug("live stream write failed", logging.Error(err))
				return
			}
		}
	}
}
