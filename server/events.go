package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abate-Agegnehu/musiccollectionbackend/logger"
	"github.com/abate-Agegnehu/musiccollectionbackend/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type subscriber struct {
	hub  *EventHub
	conn *websocket.Conn
	send chan []byte
}

// EventHub fans record change events out to websocket subscribers.
type EventHub struct {
	clients    map[*subscriber]bool
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:    make(map[*subscriber]bool),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub main loop. It returns after Stop.
func (h *EventHub) Run() {
	for {
		select {
		case s := <-h.register:
			h.mu.Lock()
			h.clients[s] = true
			h.mu.Unlock()
			eventSubscribers.Inc()

		case s := <-h.unregister:
			h.remove(s)

		case msg := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*subscriber, 0, len(h.clients))
			for s := range h.clients {
				clients = append(clients, s)
			}
			h.mu.RUnlock()

			for _, s := range clients {
				select {
				case s.send <- msg:
				default:
					// Slow consumer.
					h.remove(s)
				}
			}

		case <-h.done:
			h.mu.Lock()
			for s := range h.clients {
				close(s.send)
				eventSubscribers.Dec()
			}
			h.clients = make(map[*subscriber]bool)
			h.mu.Unlock()
			return
		}
	}
}

func (h *EventHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *EventHub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[s] {
		delete(h.clients, s)
		close(s.send)
		eventSubscribers.Dec()
	}
}

// ClientCount returns the number of open subscriptions.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues e for every subscriber. It never blocks; events are
// dropped when the queue is full or the hub has stopped.
func (h *EventHub) Publish(e model.MusicEvent) {
	data, err := json.Marshal(e)
	if err != nil {
		logger.Warn("failed to encode music event", logger.ErrorField(err))
		return
	}
	select {
	case <-h.done:
	case h.broadcast <- data:
	default:
		logger.Warn("music event dropped", logger.String("type", string(e.Type)))
	}
}

// ServeWS upgrades the request and streams events until the client leaves.
func (h *EventHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	s := &subscriber{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- s:
	case <-h.done:
		conn.Close()
		return
	}

	go s.writePump()
	s.readPump()
}

// readPump only services control frames; subscribers do not send data.
func (s *subscriber) readPump() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err))
			}
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
