package httpserver

import (
	"net/http"
	"strings"
	"time"

	"spot-sandbox/internal/events"
	"spot-sandbox/internal/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteTimeout = 5 * time.Second

// StreamHandler pushes the caller's own order, trade and funding events
// over a websocket.
type StreamHandler struct {
	bus      *events.Bus
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewStreamHandler(bus *events.Bus, origin string, log *zap.Logger) *StreamHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &StreamHandler{
		bus: bus,
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) },
		},
	}
}

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "" || origin == "*" {
		return true
	}
	reqOrigin := r.Header.Get("Origin")
	if reqOrigin == "" {
		return true
	}
	return strings.EqualFold(reqOrigin, origin)
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on a websocket handshake, so the key may
	// also come from the query string.
	account := strings.TrimSpace(r.URL.Query().Get("key"))
	if account == "" {
		account = strings.TrimSpace(r.Header.Get("API-Key"))
	}
	if account == "" {
		http.Error(w, "missing key", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()

	sub := h.bus.Subscribe(account)
	defer h.bus.Unsubscribe(sub)
	h.log.Debug("stream opened", zap.String("account", account))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	for {
		select {
		case evt, ok := <-sub:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				h.log.Debug("stream write failed", zap.String("account", account), zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}
