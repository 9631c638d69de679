package http

import (
	"net/http"
	"sync"

	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// QuoteStreamHub fans refreshed quotes out to websocket subscribers. The
// stream is one-way; anything a client sends is discarded.
type QuoteStreamHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

func NewQuoteStreamHub() *QuoteStreamHub {
	return &QuoteStreamHub{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the stream is read-only public market data, any origin may subscribe
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *QuoteStreamHub) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("quote stream upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	logrus.WithField("remote_addr", conn.RemoteAddr().String()).Info("quote stream client connected")

	// drain until the client goes away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// Broadcast sends the quote to every connected client, dropping clients
// whose writes fail.
func (h *QuoteStreamHub) Broadcast(quote entity.Quote) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(quote); err != nil {
			logrus.Warnf("quote stream write failed: %v", err)
			delete(h.clients, conn)
			_ = conn.Close()
		}
	}
}

func (h *QuoteStreamHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		_ = conn.Close()
		delete(h.clients, conn)
	}
}

func (h *QuoteStreamHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		_ = conn.Close()
	}
	h.mu.Unlock()
}
