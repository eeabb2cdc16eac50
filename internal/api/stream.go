package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ReportEvent describes websocket payloads emitted during report runs.
type ReportEvent struct {
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// ReportNotifier keeps track of active websocket clients and broadcasts
// report job events.
type ReportNotifier struct {
	mu         sync.Mutex
	clients    map[*wsClient]struct{}
	lastStatus *ReportEvent
}

// NewReportNotifier constructs a notifier instance.
func NewReportNotifier() *ReportNotifier {
	return &ReportNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and returns a client handle. A
// late joiner immediately receives the last known job status.
func (n *ReportNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	status := n.lastStatus
	n.mu.Unlock()

	if status != nil {
		_ = client.writeJSON(*status)
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes the
// socket.
func (n *ReportNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends the supplied event to all registered websocket clients.
func (n *ReportNotifier) Broadcast(event ReportEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	if event.Type == "started" || event.Type == "progress" || event.Type == "finished" {
		snapshot := event
		n.lastStatus = &snapshot
	}

	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

// LastStatus returns a copy of the most recent job status event, if any.
func (n *ReportNotifier) LastStatus() *ReportEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastStatus == nil {
		return nil
	}
	copy := *n.lastStatus
	return &copy
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
