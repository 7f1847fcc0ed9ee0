package rest

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/asaskevich/EventBus"
	"github.com/gorilla/websocket"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/acquisition"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1 << 10,
	WriteBufferSize: 1 << 12,
}

// Hub forwards acquisition updates to the connected websocket clients.
// Slow clients miss updates rather than stall the publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan internal.TaskSnapshot]string
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan internal.TaskSnapshot]string)}
}

func (h *Hub) Register(bus EventBus.BusSubscriber) {
	if bus == nil {
		return
	}
	bus.Subscribe(acquisition.TopicUpdated, h.Broadcast)
	bus.Subscribe(acquisition.TopicFinished, h.Broadcast)
}

func (h *Hub) Broadcast(s internal.TaskSnapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch, task := range h.clients {
		if task != "" && task != s.Id {
			continue
		}
		select {
		case ch <- s:
		default:
		}
	}
}

func (h *Hub) subscribe(task string) chan internal.TaskSnapshot {
	ch := make(chan internal.TaskSnapshot, 16)

	h.mu.Lock()
	h.clients[ch] = task
	h.mu.Unlock()

	return ch
}

func (h *Hub) unsubscribe(ch chan internal.TaskSnapshot) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// Serve upgrades the connection and streams snapshots, optionally only
// those of the task given by the "task" query parameter.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	ch := h.subscribe(r.URL.Query().Get("task"))
	defer h.unsubscribe(ch)

	closed := make(chan struct{})

	// the client never talks, reading only detects the close
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case s := <-ch:
			if err := conn.WriteJSON(s); err != nil {
				return
			}
		}
	}
}
