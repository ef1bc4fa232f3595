// Package sse pushes re-rendered views, toasts and modal updates to the
// browser of one session over Server-Sent Events.
package sse

import "time"

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventView carries a re-rendered page view model.
	EventView EventType = "view"
	// EventToast carries a short user-facing message.
	EventToast EventType = "toast"
	// EventModal opens or closes a modal.
	EventModal EventType = "modal"
	// EventRedirect tells the browser to leave the app shell, e.g. after auth failure.
	EventRedirect EventType = "redirect"
	// EventMatch carries a live score update.
	EventMatch EventType = "match"

	// EventConnected is sent once when the stream opens.
	EventConnected EventType = "connected"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to a session.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// SessionID routes the event; empty means every connected session.
	SessionID string `json:"-"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// Toast levels.
const (
	ToastSuccess = "success"
	ToastError   = "error"
	ToastInfo    = "info"
)

// ToastEventData is the payload of EventToast.
type ToastEventData struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ModalEventData is the payload of EventModal.
type ModalEventData struct {
	Modal string `json:"modal"`
	Open  bool   `json:"open"`
	Data  any    `json:"data,omitempty"`
}

// RedirectEventData is the payload of EventRedirect.
type RedirectEventData struct {
	Location string `json:"location"`
	Reason   string `json:"reason,omitempty"`
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: time.Now()},
		Timestamp: time.Now(),
	}
}

// NewSessionEvent creates an event addressed to one session.
func NewSessionEvent(sessionID string, kind EventType, data any) Event {
	return Event{
		Type:      kind,
		Data:      data,
		SessionID: sessionID,
		Timestamp: time.Now(),
	}
}
