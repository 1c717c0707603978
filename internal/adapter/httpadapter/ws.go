package httpadapter

import (
	"net/http"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/job"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleStatusStream pushes a status message each time the client-visible
// status changes and closes the socket once the job is completed or failed.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookup(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "request_id", j.ID, "error", err)
		return
	}
	defer conn.Close()

	// The server read timeout does not apply to the stream.
	_ = conn.SetReadDeadline(time.Time{})
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := r.Context()
	ticker := s.clock.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var last job.Status
	for {
		if msg := toStatus(j); msg.Status != last {
			if err := s.writeStatus(conn, msg); err != nil {
				s.logger.Debug("status stream write failed", "request_id", j.ID, "error", err)
				return
			}
			last = msg.Status
		}
		if j.Status.Terminal() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(j.Status))
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-ticker.Chan():
		}

		next, err := s.jobs.Get(ctx, j.ID)
		if err != nil {
			s.logger.Warn("status stream lookup failed", "request_id", j.ID, "error", err)
			msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "job lookup failed")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
			return
		}
		j = next
	}
}

func (s *Server) writeStatus(conn *websocket.Conn, msg statusResponse) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
