package realtime

import (
	"net/http"
	"sync"
	"time"

	"kopikita-be/internal/logger"
	"kopikita-be/internal/metrics"
	"kopikita-be/internal/order"
	"kopikita-be/internal/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxReadSize   = 512
	sendQueueSize = 32
)

// WSHandler upgrades authenticated requests and streams their channels.
// Staff receive the cashier broadcast; every account receives its own channel.
type WSHandler struct {
	hub      *Hub
	stats    *metrics.Registry
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, allowedOrigin string, stats *metrics.Registry) *WSHandler {
	return &WSHandler{
		hub:   hub,
		stats: stats,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context())

	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	c := &wsConn{
		client: h.hub.NewClient(),
		send:   make(chan Envelope, sendQueueSize),
		done:   make(chan struct{}),
		stats:  h.stats,
		log:    log,
	}

	// Subscribe before the handshake completes so nothing published after
	// the client sees the upgrade is missed.
	if utils.IsStaff(r.Context()) {
		c.client.On(order.CashierChannel, c.enqueue)
	}
	c.client.On(order.CustomerChannel(userID), c.enqueue)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.client.Close()
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c.conn = conn

	h.stats.Counter(metrics.WebsocketConnections).Inc()
	c.log.Info("websocket connected")

	go c.writePump()
	c.readPump()
}

type wsConn struct {
	conn     *websocket.Conn
	client   *Client
	send     chan Envelope
	done     chan struct{}
	stopOnce sync.Once
	stats    *metrics.Registry
	log      *zap.Logger
}

// enqueue runs on the publisher's goroutine and never blocks it.
func (c *wsConn) enqueue(e Envelope) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- e:
	default:
		c.stats.Counter(metrics.EventsDropped).Inc()
		c.log.Warn("send queue full, event dropped",
			zap.String("channel", e.Channel),
			zap.String("event", e.Event),
		)
	}
}

func (c *wsConn) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.client.Close()
	})
}

// readPump only watches for the peer going away; clients have nothing to say.
func (c *wsConn) readPump() {
	defer func() {
		c.stop()
		c.log.Info("websocket disconnected")
	}()

	c.conn.SetReadLimit(maxReadSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case e := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(e); err != nil {
				c.log.Debug("websocket write failed", zap.Error(err))
				c.stop()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.stop()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
