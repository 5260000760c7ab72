package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"provsurvey/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // admin token is checked before the upgrade
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub     *Hub
	authSvc *service.AuthService
	log     *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, authSvc *service.AuthService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		hub:     hub,
		authSvc: authSvc,
		log:     log,
	}
}

// MonitorWS handles GET /v1/ws/monitor?token=
func (h *Handler) MonitorWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authSvc.ValidateAdminToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", zap.Error(err))
		return
	}

	conn := NewConnection(claims.Username)
	if welcome, err := encode(MsgMonitorWelcome, map[string]string{"admin": claims.Username}); err == nil {
		conn.Send <- welcome
	}
	h.hub.Register(conn)
	h.log.Info("monitor connected", zap.String("admin", claims.Username))

	p := &monitorPump{ws: wsConn, conn: conn, hub: h.hub, log: h.log}
	go p.write()
	go p.read()
}

// monitorPump moves events from one monitor queue onto its socket
type monitorPump struct {
	ws   *websocket.Conn
	conn *Connection
	hub  *Hub
	log  *zap.Logger
}

// read discards client frames; it only exists to observe pongs and close
func (p *monitorPump) read() {
	defer func() {
		p.hub.Unregister(p.conn)
		p.ws.Close()
		p.log.Info("monitor disconnected", zap.String("admin", p.conn.Admin))
	}()

	p.ws.SetReadLimit(maxMessageSize)
	p.ws.SetReadDeadline(time.Now().Add(pongWait))
	p.ws.SetPongHandler(func(string) error {
		return p.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := p.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.log.Warn("monitor read", zap.String("admin", p.conn.Admin), zap.Error(err))
			}
			return
		}
	}
}

// write sends each queued event as its own text frame and pings on idle
func (p *monitorPump) write() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-p.conn.Send:
			if !ok {
				p.ws.SetWriteDeadline(time.Now().Add(writeWait))
				p.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.send(msg); err != nil {
				return
			}
			// drain what queued up meanwhile before sleeping again
			for n := len(p.conn.Send); n > 0; n-- {
				msg, ok := <-p.conn.Send
				if !ok {
					return
				}
				if err := p.send(msg); err != nil {
					return
				}
			}

		case <-ticker.C:
			p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (p *monitorPump) send(msg []byte) error {
	p.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return p.ws.WriteMessage(websocket.TextMessage, msg)
}
