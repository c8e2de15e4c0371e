package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"laptop-price-predictor/internal/storage"
)

const (
	writeWait     = 5 * time.Second
	broadcastSize = 100
)

// Event is the message pushed to websocket clients.
type Event struct {
	Type   string         `json:"type"`
	Record storage.Record `json:"record"`
}

// Hub streams newly persisted predictions to connected websocket clients.
// Publish is safe to call from any goroutine and never blocks.
type Hub struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex // also serialises writes to connections
	broadcast chan storage.Record
	stop      chan struct{}
	done      chan struct{}
	running   bool
	stopped   bool
	mu        sync.Mutex
}

// NewHub creates a hub. Call Start before publishing.
func NewHub() *Hub {
	return &Hub{
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan storage.Record, broadcastSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the broadcaster. A stopped hub cannot be restarted.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running || h.stopped {
		return
	}
	h.running = true
	go h.run()
}

// Stop closes every client connection and stops the broadcaster.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	h.stopped = true
	close(h.stop)
	<-h.done

	h.clientsMu.Lock()
	for client := range h.clients {
		client.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.clientsMu.Unlock()
}

// Publish queues rec for broadcast. Records are skipped when the queue is full.
func (h *Hub) Publish(rec storage.Record) {
	select {
	case h.broadcast <- rec:
	default:
		log.Warn().Str("prediction_id", rec.PredictionID).Msg("Dashboard feed full, skipping update")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case rec := <-h.broadcast:
			h.send(Event{Type: "prediction", Record: rec})
		case <-h.stop:
			return
		}
	}
}

func (h *Hub) send(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal dashboard event")
		return
	}

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for client := range h.clients {
		_ = client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Msg("Dropping dashboard client")
			client.Close()
			delete(h.clients, client)
		}
	}
}

// ServeWS upgrades the request and keeps the client registered until it
// disconnects. Clients only receive; anything they send is discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.clientsMu.Lock()
	h.clients[conn] = true
	h.clientsMu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.clientsMu.Lock()
	delete(h.clients, conn)
	h.clientsMu.Unlock()
}
