package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ecocampus/ecocampus-server/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return m
}

func recv(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case evt, ok := <-c.EventChan:
		require.True(t, ok)
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestNotify_RoutesBySession(t *testing.T) {
	m := startManager(t)

	a := m.Connect("sess-a", "usr-1")
	b := m.Connect("sess-b", "usr-2")

	m.Notify("sess-a", string(EventToast), ToastEventData{Level: ToastSuccess, Message: "hi"})

	evt := recv(t, a)
	assert.Equal(t, EventToast, evt.Type)
	assert.Equal(t, "hi", evt.Data.(ToastEventData).Message)

	select {
	case evt := <-b.EventChan:
		t.Fatalf("session b got %v", evt.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmit_UnaddressedReachesEveryStream(t *testing.T) {
	m := startManager(t)

	a1 := m.Connect("sess-a", "usr-1")
	a2 := m.Connect("sess-a", "usr-1")
	b := m.Connect("sess-b", "usr-2")

	m.Emit(Event{Type: EventToast, Data: ToastEventData{Level: ToastInfo, Message: "maintenance at 6"}})

	for _, c := range []*Client{a1, a2, b} {
		assert.Equal(t, EventToast, recv(t, c).Type)
	}
}

func TestDisconnect_UnknownIsNoop(t *testing.T) {
	m := NewManager(logger.Discard())
	c := m.Connect("sess-a", "usr-1")

	m.Disconnect("nope")
	assert.Equal(t, 1, m.ClientCount())

	m.Disconnect(c.ID)
	m.Disconnect(c.ID)
	assert.Equal(t, 0, m.ClientCount())
}

func TestDisconnectSession(t *testing.T) {
	m := startManager(t)

	c1 := m.Connect("sess-a", "usr-1")
	m.Connect("sess-a", "usr-1")
	m.Connect("sess-b", "usr-2")
	require.Equal(t, 3, m.ClientCount())

	m.DisconnectSession("sess-a")
	assert.Equal(t, 1, m.ClientCount())
	_, ok := <-c1.Done
	assert.False(t, ok)
}

func TestShutdown_ClosesClients(t *testing.T) {
	m := NewManager(logger.Discard())
	go m.Start(context.Background())

	c := m.Connect("sess-a", "usr-1")
	require.NoError(t, m.Shutdown(t.Context()))

	_, ok := <-c.Done
	assert.False(t, ok)
	assert.Equal(t, 0, m.ClientCount())

	// Emitting after shutdown is a no-op.
	m.Notify("sess-a", string(EventToast), nil)
}

func TestHandler_Unauthorized(t *testing.T) {
	m := NewManager(logger.Discard())
	h := NewHandler(m, func(*http.Request) (string, string, bool) { return "", "", false }, logger.Discard())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events/stream", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_StreamsSessionEvents(t *testing.T) {
	m := startManager(t)
	h := NewHandler(m, func(*http.Request) (string, string, bool) { return "sess-a", "usr-1", true }, logger.Discard())

	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	readEvent := func() string {
		for lines.Scan() {
			if name, ok := strings.CutPrefix(lines.Text(), "event: "); ok {
				return name
			}
		}
		return ""
	}

	require.Equal(t, string(EventConnected), readEvent())

	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	m.Notify("sess-b", string(EventToast), nil)
	m.Notify("sess-a", string(EventView), map[string]string{"page": "dashboard"})

	assert.Equal(t, string(EventView), readEvent())

	cancel()
	require.Eventually(t, func() bool { return m.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
