// Package proctor reports exam-window activity events to the monitoring
// endpoint over a websocket. Everything here is best-effort: a dead or absent
// proctor channel never blocks or fails the exam session.
package proctor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Action is the client → server message kind.
type Action string

const (
	ActionActivity Action = "activity"
	ActionPing     Action = "ping"
)

// Activity event kinds.
const (
	EventFocusLost   = "focus_lost"
	EventFocusGained = "focus_gained"
	EventHeartbeat   = "heartbeat"
)

// ActivityMessage is sent for each tracked exam-window event.
type ActivityMessage struct {
	Action  Action `json:"action"`
	Event   string `json:"event"`
	Detail  string `json:"detail,omitempty"`
	At      int64  `json:"at"` // unix milliseconds
	Attempt string `json:"attempt_id,omitempty"`
}

// PingMessage keeps the channel alive between events.
type PingMessage struct {
	Action Action `json:"action"`
}

// Reporter owns one proctor websocket connection.
type Reporter struct {
	log       zerolog.Logger
	attemptID string

	mu   sync.Mutex
	conn *websocket.Conn

	stop     chan struct{}
	stopOnce sync.Once
}

// Dial connects to the proctor endpoint. The bearer credential travels as a
// query parameter because websocket upgrade requests cannot carry headers
// from every client.
func Dial(ctx context.Context, wsURL, token, attemptID string, log zerolog.Logger) (*Reporter, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL+"?token="+token, nil)
	if err != nil {
		return nil, fmt.Errorf("proctor dial: %w", err)
	}
	return &Reporter{
		log:       log.With().Str("component", "proctor").Logger(),
		attemptID: attemptID,
		conn:      conn,
		stop:      make(chan struct{}),
	}, nil
}

// Report sends one activity event. Errors are logged and swallowed.
func (r *Reporter) Report(event, detail string) {
	msg := ActivityMessage{
		Action:  ActionActivity,
		Event:   event,
		Detail:  detail,
		At:      time.Now().UnixMilli(),
		Attempt: r.attemptID,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return
	}
	if err := r.conn.WriteJSON(msg); err != nil {
		r.log.Warn().Err(err).Str("event", event).Msg("activity report failed")
	}
}

// StartHeartbeat pings the channel on the given interval until Close. Call in
// a goroutine-per-session manner; it returns when the reporter closes.
func (r *Reporter) StartHeartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Report(EventHeartbeat, "")
		case <-r.stop:
			return
		}
	}
}

// Close tears down the heartbeat and the connection.
func (r *Reporter) Close() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		_ = r.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = r.conn.Close()
		r.conn = nil
	}
}
