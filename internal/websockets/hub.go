package websockets

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pizza-nz/shiftreport-service/internal/metrics"
)

// Hub tracks connected clients and the locations each one follows
type Hub struct {
	clients map[*Client]bool

	unregister chan *Client

	// done is closed when Run returns
	done chan struct{}

	// closed is set once Run has disconnected everyone. Guarded by mu.
	closed bool

	locationChannels map[uuid.UUID]map[*Client]bool

	mu sync.Mutex

	metrics *metrics.Metrics
}

// NewHub creates a hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		unregister:       make(chan *Client),
		done:             make(chan struct{}),
		clients:          make(map[*Client]bool),
		locationChannels: make(map[uuid.UUID]map[*Client]bool),
		metrics:          m,
	}
}

// register adds a client. It fails once the hub has shut down.
func (h *Hub) register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[client] = true
	if h.metrics != nil {
		h.metrics.WebsocketClients.Set(float64(len(h.clients)))
	}
	return true
}

func (h *Hub) Subscribe(client *Client, locationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	if _, ok := h.locationChannels[locationID]; !ok {
		h.locationChannels[locationID] = make(map[*Client]bool)
	}
	h.locationChannels[locationID][client] = true
}

func (h *Hub) Unsubscribe(client *Client, locationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.locationChannels[locationID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.locationChannels, locationID)
		}
	}
}

// RevokeLocation drops every subscription the user holds on the location.
// The connections stay open for the user's other locations.
func (h *Hub) RevokeLocation(userID, locationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.locationChannels[locationID]
	if !ok {
		return
	}
	for client := range clients {
		if client.userID == userID {
			delete(clients, client)
		}
	}
	if len(clients) == 0 {
		delete(h.locationChannels, locationID)
	}
}

// Publish sends an event to every client following the location. Clients
// that cannot keep up are dropped.
func (h *Hub) Publish(locationID uuid.UUID, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to encode event")
		return
	}

	message, err := json.Marshal(Message{
		Type:       MessageType(eventType),
		LocationID: &locationID,
		Data:       data,
	})
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to encode event")
		return
	}

	if h.metrics != nil {
		h.metrics.EventsPublishedTotal.WithLabelValues(eventType).Inc()
	}
	h.BroadcastToLocation(locationID, message)
}

func (h *Hub) BroadcastToLocation(locationID uuid.UUID, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.locationChannels[locationID] {
		select {
		case client.send <- message:
		default:
			h.removeLocked(client)
		}
	}
}

// removeLocked forgets a client and signals its writer to stop. h.mu must be held.
func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.done)

	for id, clients := range h.locationChannels {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.locationChannels, id)
		}
	}

	if h.metrics != nil {
		h.metrics.WebsocketClients.Set(float64(len(h.clients)))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run unregisters clients until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			h.closed = true
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return
		}
	}
}
