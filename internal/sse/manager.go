package sse

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	queueSize  = 1000
	clientSize = 100
)

// Client is one open stream. A session has one per browser tab.
type Client struct {
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
	ID          string
	SessionID   string
	UserID      string
}

// Manager routes queued events to the streams of their session.
type Manager struct {
	logger *slog.Logger
	queue  chan Event

	mu       sync.RWMutex
	sessions map[string]map[string]*Client // session id -> client id -> client
	owner    map[string]string             // client id -> session id

	started atomic.Bool
	stopped chan struct{}

	closeMu sync.RWMutex
	closed  bool
}

// NewManager creates a Manager. Events are routed once Start runs.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:   logger,
		queue:    make(chan Event, queueSize),
		sessions: make(map[string]map[string]*Client),
		owner:    make(map[string]string),
		stopped:  make(chan struct{}),
	}
}

// Start routes events until ctx is done or Shutdown drains the queue.
// Call it once, in its own goroutine.
func (m *Manager) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	defer close(m.stopped)

	m.logger.Info("SSE manager starting")
	for {
		select {
		case evt, ok := <-m.queue:
			if !ok {
				m.dropAll()
				return
			}
			m.route(evt)
		case <-ctx.Done():
			m.logger.Info("SSE manager stopping")
			m.dropAll()
			return
		}
	}
}

// Shutdown stops accepting events, waits for queued ones to be routed and
// closes every stream.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.closeMu.Unlock()

	if !m.started.Load() {
		m.dropAll()
		return nil
	}

	select {
	case <-m.stopped:
		m.logger.Info("SSE manager shutdown complete")
		return nil
	case <-ctx.Done():
		m.logger.Warn("SSE drain timed out, queued events lost")
		return ctx.Err()
	}
}

// route delivers evt to its session, or to every stream when unaddressed.
// Slow streams lose the event rather than block the loop.
func (m *Manager) route(evt Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var targets []map[string]*Client
	if evt.SessionID == "" {
		for _, clients := range m.sessions {
			targets = append(targets, clients)
		}
	} else if clients, ok := m.sessions[evt.SessionID]; ok {
		targets = append(targets, clients)
	}

	delivered, dropped := 0, 0
	for _, clients := range targets {
		for _, c := range clients {
			select {
			case c.EventChan <- evt:
				delivered++
			default:
				dropped++
				m.logger.Warn("dropped event for slow client",
					slog.String("client_id", c.ID),
					slog.String("event_type", string(evt.Type)))
			}
		}
	}

	m.logger.Debug("event routed",
		slog.String("event_type", string(evt.Type)),
		slog.String("session_id", evt.SessionID),
		slog.Int("delivered", delivered),
		slog.Int("dropped", dropped))
}

// Connect opens a stream for a session.
func (m *Manager) Connect(sessionID, userID string) *Client {
	c := &Client{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		UserID:      userID,
		EventChan:   make(chan Event, clientSize),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	m.mu.Lock()
	if m.sessions[sessionID] == nil {
		m.sessions[sessionID] = make(map[string]*Client)
	}
	m.sessions[sessionID][c.ID] = c
	m.owner[c.ID] = sessionID
	streams := len(m.sessions[sessionID])
	m.mu.Unlock()

	m.logger.Info("SSE client connected",
		slog.String("client_id", c.ID),
		slog.String("user_id", userID),
		slog.Int("session_streams", streams))
	return c
}

// Disconnect closes one stream. Unknown ids are ignored.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	c := m.detach(clientID)
	m.mu.Unlock()
	if c == nil {
		return
	}
	closeClient(c)
	m.logger.Info("SSE client disconnected",
		slog.String("client_id", clientID),
		slog.Duration("duration", time.Since(c.ConnectedAt)))
}

// DisconnectSession closes every stream of a session, used on logout.
func (m *Manager) DisconnectSession(sessionID string) {
	m.mu.Lock()
	clients := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	for id := range clients {
		delete(m.owner, id)
	}
	m.mu.Unlock()

	for _, c := range clients {
		closeClient(c)
	}
	if len(clients) > 0 {
		m.logger.Info("SSE session disconnected",
			slog.String("session_id", sessionID),
			slog.Int("streams", len(clients)))
	}
}

// detach removes a client from both indexes. Caller holds m.mu.
func (m *Manager) detach(clientID string) *Client {
	sessionID, ok := m.owner[clientID]
	if !ok {
		return nil
	}
	delete(m.owner, clientID)
	clients := m.sessions[sessionID]
	c := clients[clientID]
	delete(clients, clientID)
	if len(clients) == 0 {
		delete(m.sessions, sessionID)
	}
	return c
}

// Emit queues an event. Events emitted after Shutdown are discarded.
func (m *Manager) Emit(evt Event) {
	m.closeMu.RLock()
	defer m.closeMu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.queue <- evt:
	default:
		m.logger.Error("SSE queue full, dropping event",
			slog.String("event_type", string(evt.Type)))
	}
}

// Notify queues an event for one session. It matches state.NotifyFunc once
// bound to a session id.
func (m *Manager) Notify(sessionID, kind string, data any) {
	m.Emit(NewSessionEvent(sessionID, EventType(kind), data))
}

// ClientCount returns the number of open streams.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.owner)
}

func (m *Manager) dropAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]map[string]*Client)
	m.owner = make(map[string]string)
	m.mu.Unlock()

	for _, clients := range sessions {
		for _, c := range clients {
			closeClient(c)
		}
	}
	m.logger.Info("all SSE clients disconnected")
}

func closeClient(c *Client) {
	close(c.Done)
	close(c.EventChan)
}
