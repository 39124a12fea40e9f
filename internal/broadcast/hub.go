// Package broadcast fans auction events out to websocket watchers.
// Delivery is fire-and-forget: a slow or dead client is dropped, never
// allowed to stall the pipeline, and a reconnecting client recovers the
// authoritative state through the bid-state query endpoint.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teamdraft/auctiond/internal/events"
	"github.com/teamdraft/auctiond/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1024
	sendBuffer     = 32
)

// ClientRecorder tracks connected watcher counts. Implemented by
// metrics.Metrics.
type ClientRecorder interface {
	ClientConnected()
	ClientDisconnected()
}

// Hub coordinates websocket subscribers grouped by auction.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*client]struct{}
	byAuction map[string]map[*client]struct{}

	upgrader websocket.Upgrader
	recorder ClientRecorder
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	auctions map[string]struct{}
}

// NewHub creates an empty hub. recorder may be nil.
func NewHub(recorder ClientRecorder) *Hub {
	return &Hub{
		clients:   make(map[*client]struct{}),
		byAuction: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients come from arbitrary origins; auth happens
			// at the HTTP layer before the upgrade.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		recorder: recorder,
	}
}

// Broadcast pushes one event to every watcher of the auction. It never
// blocks; clients whose send buffer is full are dropped.
func (h *Hub) Broadcast(auctionID string, event events.Envelope) {
	log := logger.Hub()
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("event marshal failed")
		return
	}

	// Sends happen under the read lock and the channel close under the
	// write lock, so a send can never race the close.
	h.mu.RLock()
	var dropped []*client
	for c := range h.byAuction[auctionID] {
		select {
		case c.send <- data:
		default:
			dropped = append(dropped, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range dropped {
		log.Warn().Str("auction_id", auctionID).Msg("dropping slow watcher")
		h.unregister(c)
	}
}

// WatcherCount returns the number of clients subscribed to an auction.
func (h *Hub) WatcherCount(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byAuction[auctionID])
}

// ServeHTTP upgrades the connection and starts the client pumps. An
// initial subscription may be given with the auction query parameter;
// further subscribe/unsubscribe control messages are accepted on the
// socket.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log := logger.Hub()
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		auctions: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.recorder != nil {
		h.recorder.ClientConnected()
	}

	if auctionID := r.URL.Query().Get("auction"); auctionID != "" {
		h.subscribe(c, auctionID)
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) subscribe(c *client, auctionID string) {
	h.mu.Lock()
	// A subscribe racing an unregister must not re-register the client:
	// its send channel is already closed.
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	watchers, ok := h.byAuction[auctionID]
	if !ok {
		watchers = make(map[*client]struct{})
		h.byAuction[auctionID] = watchers
	}
	watchers[c] = struct{}{}
	h.mu.Unlock()

	c.mu.Lock()
	c.auctions[auctionID] = struct{}{}
	c.mu.Unlock()
}

func (h *Hub) unsubscribe(c *client, auctionID string) {
	h.mu.Lock()
	if watchers, ok := h.byAuction[auctionID]; ok {
		delete(watchers, c)
		if len(watchers) == 0 {
			delete(h.byAuction, auctionID)
		}
	}
	h.mu.Unlock()

	c.mu.Lock()
	delete(c.auctions, auctionID)
	c.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)

	c.mu.Lock()
	for auctionID := range c.auctions {
		if watchers, ok := h.byAuction[auctionID]; ok {
			delete(watchers, c)
			if len(watchers) == 0 {
				delete(h.byAuction, auctionID)
			}
		}
	}
	c.auctions = make(map[string]struct{})
	c.mu.Unlock()
	close(c.send)
	h.mu.Unlock()

	if h.recorder != nil {
		h.recorder.ClientDisconnected()
	}
}

// controlMessage is the client -> server subscription control shape.
type controlMessage struct {
	Action    string `json:"action"` // subscribe | unsubscribe
	AuctionID string `json:"auctionId"`
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.AuctionID == "" {
			continue
		}
		switch msg.Action {
		case "subscribe":
			c.hub.subscribe(c, msg.AuctionID)
		case "unsubscribe":
			c.hub.unsubscribe(c, msg.AuctionID)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
