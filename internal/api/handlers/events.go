package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/events"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	eventBufferLen = 64
)

// EventsHandler streams store events to websocket clients as JSON.
type EventsHandler struct {
	store    DataStore
	upgrader websocket.Upgrader
	log      zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(store DataStore, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:  log,
		done: make(chan struct{}),
	}
}

// Close ends every open stream. Hijacked connections are not closed by
// http.Server.Shutdown, so register it with RegisterOnShutdown.
func (h *EventsHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Stream handles GET /api/events. Events are delivered in publish order; a
// client that falls eventBufferLen events behind misses the overflow.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.With().Str("remote_addr", r.RemoteAddr).Logger()
	log.Info().Msg("Event stream opened")

	queue := make(chan events.Event, eventBufferLen)
	var dropped int
	var mu sync.Mutex
	unsubscribe := h.store.SubscribeAll(func(e events.Event) {
		// Runs on the publisher's goroutine, so never block here.
		select {
		case queue <- e:
		default:
			mu.Lock()
			dropped++
			mu.Unlock()
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e := <-queue:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				log.Debug().Err(err).Msg("Event stream write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			mu.Lock()
			log.Info().Int("dropped", dropped).Msg("Event stream closed")
			mu.Unlock()
			return
		case <-h.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case <-r.Context().Done():
			return
		}
	}
}
