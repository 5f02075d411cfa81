package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

// JobStreamHandler pushes job snapshots over a websocket until the job finishes
type JobStreamHandler struct {
	jobs     JobReader
	interval time.Duration
	logger   arbor.ILogger
}

// NewJobStreamHandler creates the stream handler. The store is polled every interval.
func NewJobStreamHandler(jobs JobReader, interval time.Duration, logger arbor.ILogger) *JobStreamHandler {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &JobStreamHandler{jobs: jobs, interval: interval, logger: logger}
}

// StreamHandler handles GET /ws/jobs/{id}
func (h *JobStreamHandler) StreamHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, ok := h.jobs.Get(jobID); !ok {
		WriteError(w, http.StatusNotFound, "Job no encontrado")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	// Reader only watches for the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var lastSent time.Time
	for {
		job, ok := h.jobs.Get(jobID)
		if !ok {
			h.closeWith(conn, websocket.CloseNormalClosure, "job evicted")
			return
		}
		if lastSent.IsZero() || job.UpdatedAt.After(lastSent) {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(job); err != nil {
				h.logger.Debug().Err(err).Str("job_id", jobID).Msg("Job stream write failed")
				return
			}
			lastSent = job.UpdatedAt
		}
		if job.Status.IsTerminal() {
			h.closeWith(conn, websocket.CloseNormalClosure, string(job.Status))
			return
		}

		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *JobStreamHandler) closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
