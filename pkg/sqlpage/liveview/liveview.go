// Package liveview is a thin, optional collaborator: it pushes a change
// notification over a websocket connection whenever the analyzed-file cache
// invalidates an entry. It is not part of the request pipeline core — the
// file-watching loader that calls Notify is an external collaborator per the
// spec's scope.
package liveview

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bitechdev/ResolveSpec/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub tracks connected live-reload clients and broadcasts path invalidations.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: map[*websocket.Conn]struct{}{}}
}

// ServeHTTP upgrades the connection and keeps it registered until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("liveview upgrade failed: %v", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Notify broadcasts a changed path to every connected client.
func (h *Hub) Notify(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(map[string]string{"changed": path}); err != nil {
			logger.Debug("liveview notify failed: %v", err)
		}
	}
}
