package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"magic-workflow/internal/service"
	"magic-workflow/log"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer bounds the events queued for one client before it is dropped.
	sendBuffer = 32
)

// Hub fans service events out to websocket clients. A client may subscribe
// to one project with ?pid=; without it every event is delivered.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

type hubClient struct {
	pid  string
	send chan service.Event
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*hubClient]struct{}),
	}
}

var _ service.Notifier = (*Hub)(nil)

// Broadcast queues ev for every matching client and never blocks on a
// socket. A client whose queue is full is dropped.
func (h *Hub) Broadcast(ev service.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		if cl.pid != "" && cl.pid != ev.Pid {
			continue
		}
		select {
		case cl.send <- ev:
		default:
			log.GetLogger().Debug("[Hub] dropping slow client", zap.String("pid", cl.pid))
			delete(h.clients, cl)
			close(cl.send)
		}
	}
}

// Clients reports how many connections are subscribed.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(pid string) *hubClient {
	cl := &hubClient{pid: pid, send: make(chan service.Event, sendBuffer)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	return cl
}

func (h *Hub) unregister(cl *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}

func (h *Hub) ServeEvents(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.GetLogger().Warn("[Hub] websocket upgrade failed", zap.Error(err))
		return
	}
	pid := c.Query("pid")

	cl := h.register(pid)
	log.GetLogger().Info("[Hub] client connected", zap.String("pid", pid))
	go writeEvents(conn, cl.send)

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(cl)
	conn.Close()
}

// writeEvents drains send onto conn until the channel is closed or a write
// fails. Closing conn on failure ends the read loop in ServeEvents.
func writeEvents(conn *websocket.Conn, send <-chan service.Event) {
	defer conn.Close()
	for ev := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			log.GetLogger().Debug("[Hub] write failed", zap.Error(err))
			return
		}
	}
}
