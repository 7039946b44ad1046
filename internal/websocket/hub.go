package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"phtourism/internal/infrastructure"
	"phtourism/internal/services"
	"phtourism/pkg/contracts/events"
)

// Message types exchanged with dashboard clients
const (
	TypeConnection      = events.TypeConnection
	TypeFilters         = events.TypeFilters
	TypeViews           = events.TypeViews
	TypeError           = events.TypeError
	TypeHeartbeat       = events.TypeHeartbeat
	TypeDatasetReloaded = events.TypeDatasetReloaded
)

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for thread-safe operations
	mu sync.RWMutex

	logger  *slog.Logger
	metrics *infrastructure.EngineMetrics

	// Counters
	totalConnections int64
	messagesSent     int64
	messagesReceived int64
	staleDrops       int64

	// Control
	quit     chan struct{}
	running  bool
	stopOnce sync.Once
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *infrastructure.EngineMetrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	return &Hub{
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		quit:       make(chan struct{}),
	}
}

// Start starts the hub's loop
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.totalConnections++
			count := len(h.clients)
			h.mu.Unlock()

			ctx := client.context()
			h.logger.InfoContext(ctx, "client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			hello := events.NewEnvelope(TypeConnection, events.ConnectionInfo{
				Status:   "connected",
				ClientID: client.id,
			})
			hello.TraceID = client.traceID
			client.enqueue(h.encode(ctx, hello))

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			delete(h.clients, client)
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				client.close()
				h.logger.InfoContext(client.context(), "client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			failCount := 0
			for _, client := range clients {
				if client.enqueue(message) {
					continue
				}
				failCount++
				h.mu.Lock()
				delete(h.clients, client)
				h.mu.Unlock()
				client.close()
				h.logger.WarnContext(client.context(), "client send buffer full, disconnecting",
					slog.String("client_id", client.id))
			}

			h.mu.Lock()
			h.messagesSent += int64(len(clients) - failCount)
			h.mu.Unlock()

			h.logger.Debug("broadcast delivered",
				slog.Int("client_count", len(clients)),
				slog.Int("fail_count", failCount),
				slog.Int("message_size", len(message)))
		}
	}
}

// Broadcast sends a typed message to every connected client.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	message := h.encode(context.Background(), events.NewEnvelope(messageType, data))
	if message == nil {
		return
	}

	select {
	case h.broadcast <- message:
	case <-h.quit:
	}
}

// NotifyReload tells every client that a new dataset is live. Clients keep
// their sessions and re-send filters to refresh.
func (h *Hub) NotifyReload(ctx context.Context, snap *services.DatasetSnapshot) {
	info := snap.Dataset.Info()
	h.logger.InfoContext(ctx, "broadcasting dataset reload",
		slog.String("fingerprint", snap.Fingerprint),
		slog.Int("clients", h.ClientCount()))

	h.Broadcast(TypeDatasetReloaded, events.DatasetReloaded{
		Fingerprint: snap.Fingerprint,
		LoadedAt:    snap.LoadedAt.Format(time.RFC3339),
		Skipped:     info.Skipped,
		Unmatched:   len(info.Unmatched),
	})
}

func (h *Hub) encode(ctx context.Context, message events.Envelope) []byte {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.ErrorContext(ctx, "marshal message",
			slog.String("error", err.Error()),
			slog.String("message_type", message.Type))
		return nil
	}
	return data
}

// recordDelivery counts a session result that was sent or superseded.
func (h *Hub) recordDelivery(ctx context.Context, delivered bool) {
	h.mu.Lock()
	if delivered {
		h.messagesSent++
	} else {
		h.staleDrops++
	}
	h.mu.Unlock()
	infrastructure.RecordWebSocketDelivery(ctx, h.metrics, delivered)
}

func (h *Hub) recordReceived() {
	h.mu.Lock()
	h.messagesReceived++
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.close()
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Stop gracefully stops the hub and closes every client
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	h.stopOnce.Do(func() { close(h.quit) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.close()
		delete(h.clients, client)
	}
}

// GetHubMetrics returns current hub counters
func (h *Hub) GetHubMetrics() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"messages_received": h.messagesReceived,
		"stale_drops":       h.staleDrops,
	}
}
