package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/figmaqa/internal/jobs"
	"github.com/ternarybob/figmaqa/internal/models"
)

func newStreamServer(t *testing.T, store *jobs.Store) string {
	t.Helper()
	handler := NewJobStreamHandler(store, 10*time.Millisecond, arbor.NewLogger())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.StreamHandler(w, r, strings.TrimPrefix(r.URL.Path, "/ws/jobs/"))
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// TestJobStream_UntilTerminal verifies snapshots are pushed as the job
// progresses and the connection is closed once it completes
func TestJobStream_UntilTerminal(t *testing.T) {
	store := jobs.NewStore()
	store.Create("job-ws", testFileKey)
	wsURL := newStreamServer(t, store)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws/jobs/job-ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first models.JobStatus
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, models.JobQueued, first.Status)

	time.Sleep(5 * time.Millisecond)
	store.Update("job-ws", jobs.Patch{Status: ptrTo(models.JobInProgress)})
	time.Sleep(5 * time.Millisecond)
	store.Complete("job-ws", "/tmp/job-ws.xlsx", nil, 0)

	var last models.JobStatus
	for {
		var snap models.JobStatus
		err := conn.ReadJSON(&snap)
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		last = snap
	}
	assert.Equal(t, models.JobCompleted, last.Status)
}

// TestJobStream_UnknownJob verifies no upgrade happens for an unknown job
func TestJobStream_UnknownJob(t *testing.T) {
	wsURL := newStreamServer(t, jobs.NewStore())

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/ws/jobs/missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestJobStream_ClientDisconnect verifies the handler returns when the client goes away
func TestJobStream_ClientDisconnect(t *testing.T) {
	store := jobs.NewStore()
	store.Create("job-idle", testFileKey)

	done := make(chan struct{})
	handler := NewJobStreamHandler(store, 10*time.Millisecond, arbor.NewLogger())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		handler.StreamHandler(w, r, "job-idle")
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)

	var snap models.JobStatus
	require.NoError(t, conn.ReadJSON(&snap))
	conn.Close()

	waitFor(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	})
}
