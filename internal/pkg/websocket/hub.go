package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AllStudents is the subscription key of clients that follow every ledger event
const AllStudents = ""

// Event is a ledger event pushed to subscribers
type Event struct {
	// Type is the audit event type, e.g. "payment.recorded"
	Type string `json:"type"`

	// StudentID is empty for events not tied to one student
	StudentID string `json:"studentId,omitempty"`

	Details map[string]interface{} `json:"details"`

	RecordedAt time.Time `json:"recordedAt"`
}

// Hub maintains the set of active clients and fans ledger events out to them
type Hub struct {
	// Registered clients organized by the student they follow
	clients map[string]map[*Client]bool

	// Events waiting to be delivered
	broadcast chan *Event

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Mutex for concurrent access to clients map
	mu sync.RWMutex

	logger zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan *Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "ledger-feed").Logger(),
	}
}

// Run handles client registrations and broadcasts until ctx is cancelled,
// then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// Record implements audit.Sink. Events are dropped when the hub is saturated;
// publishing never blocks the ledger write that produced the event.
func (h *Hub) Record(_ context.Context, eventType string, details map[string]interface{}) {
	event := &Event{
		Type:       eventType,
		Details:    details,
		RecordedAt: time.Now().UTC(),
	}
	if studentID, ok := details["studentId"].(string); ok {
		event.StudentID = studentID
	}

	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn().Str("event", eventType).Msg("Ledger feed saturated, event dropped")
	}
}

// join hands a client to Run; false when the hub has stopped
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// leave hands a client back to Run for removal
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientsCount returns the number of clients following studentID; AllStudents
// counts the clients that follow everything
func (h *Hub) ClientsCount(studentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[studentID])
}

// registerClient registers a new client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.studentID]; !ok {
		h.clients[client.studentID] = make(map[*Client]bool)
	}
	h.clients[client.studentID][client] = true

	h.logger.Info().
		Str("studentID", client.studentID).
		Str("subject", client.subject).
		Str("addr", client.conn.RemoteAddr().String()).
		Msg("Client registered")
}

// unregisterClient unregisters a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	group, ok := h.clients[client.studentID]
	if !ok {
		return
	}
	if _, ok := group[client]; !ok {
		return
	}

	delete(group, client)
	close(client.send)
	if len(group) == 0 {
		delete(h.clients, client.studentID)
	}

	h.logger.Info().
		Str("studentID", client.studentID).
		Str("subject", client.subject).
		Msg("Client unregistered")
}

// broadcastEvent delivers an event to clients following its student and to
// clients following everything. Clients whose buffer is full are dropped.
func (h *Hub) broadcastEvent(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event.Type).Msg("Failed to marshal event for broadcast")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	targets := []string{AllStudents}
	if event.StudentID != AllStudents {
		targets = append(targets, event.StudentID)
	}

	delivered := 0
	for _, key := range targets {
		for client := range h.clients[key] {
			select {
			case client.send <- data:
				delivered++
			default:
				// Slow or disconnected
				h.removeLocked(client)
			}
		}
	}

	h.logger.Debug().Str("event", event.Type).Int("clientCount", delivered).Msg("Event broadcasted")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, group := range h.clients {
		for client := range group {
			h.removeLocked(client)
		}
	}
}
