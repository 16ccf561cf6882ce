package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

var (
	ErrChannelClosed = errors.New("channel closed")
	ErrBufferFull    = errors.New("send buffer full")
)

// Message types exchanged with clients.
const (
	TypeConnectionEstablished = "connection_established"
	TypeAuth                  = "auth"
	TypeAuthSuccess           = "auth_success"
	TypeAuthError             = "auth_error"
	TypePing                  = "ping"
	TypePong                  = "pong"
)

// TokenVerifier checks that a bearer token was issued to userID.
type TokenVerifier interface {
	VerifySubject(token, userID string) error
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type inbound struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// Handler upgrades HTTP connections and binds authenticated sockets to
// users in the Registry.
type Handler struct {
	registry *Registry
	verifier TokenVerifier
	logger   zerolog.Logger
}

// NewHandler creates a Handler. A nil verifier accepts the claimed user id
// as-is.
func NewHandler(registry *Registry, verifier TokenVerifier, logger zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		verifier: verifier,
		logger:   logger.With().Str("component", "websocket").Logger(),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.HandleConnect)
}

// HandleConnect upgrades the request and runs the connection until the
// client goes away.
func (h *Handler) HandleConnect(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := newClient(conn)
	go client.writePump()

	client.sendJSON(map[string]string{"type": TypeConnectionEstablished})
	h.readPump(client)
	return nil
}

// CanonicalUserID normalizes uuid-shaped ids so the registry key matches
// the form used by notification recipients.
func CanonicalUserID(raw string) string {
	raw = strings.TrimSpace(raw)
	if id, err := uuid.Parse(raw); err == nil {
		return id.String()
	}
	return raw
}

func (h *Handler) readPump(client *Client) {
	var userID string
	defer func() {
		client.close()
		if userID != "" && h.registry.Release(userID, client) {
			h.logger.Debug().Str("user_id", userID).Str("channel", client.id).Msg("live channel released")
		}
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if gorillawebsocket.IsUnexpectedCloseError(err, gorillawebsocket.CloseGoingAway, gorillawebsocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("channel", client.id).Msg("websocket closed unexpectedly")
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case TypeAuth:
			uid := CanonicalUserID(msg.UserID)
			if uid == "" {
				client.sendJSON(map[string]string{"type": TypeAuthError, "message": "userId is required"})
				continue
			}
			if h.verifier != nil {
				if err := h.verifier.VerifySubject(msg.Token, uid); err != nil {
					h.logger.Warn().Err(err).Str("user_id", uid).Msg("websocket auth rejected")
					client.sendJSON(map[string]string{"type": TypeAuthError, "message": "invalid token"})
					continue
				}
			}
			if userID != "" && userID != uid {
				h.registry.Release(userID, client)
			}
			userID = uid
			h.registry.Register(userID, client)
			client.sendJSON(map[string]string{"type": TypeAuthSuccess, "userId": userID})
		case TypePing:
			client.sendJSON(map[string]string{"type": TypePong})
		}
	}
}

// Client is a single WebSocket connection. It satisfies Channel.
type Client struct {
	id   string
	conn *gorillawebsocket.Conn
	send chan []byte
	done chan struct{}
	open atomic.Bool
	once sync.Once
}

func newClient(conn *gorillawebsocket.Conn) *Client {
	c := &Client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	c.open.Store(true)
	return c
}

func (c *Client) ID() string { return c.id }

func (c *Client) IsOpen() bool { return c.open.Load() }

// Send queues data for the write pump. It never blocks.
func (c *Client) Send(data []byte) error {
	if !c.open.Load() {
		return ErrChannelClosed
	}
	select {
	case <-c.done:
		return ErrChannelClosed
	case c.send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

func (c *Client) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Send(data)
}

func (c *Client) close() {
	c.once.Do(func() {
		c.open.Store(false)
		close(c.done)
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gorillawebsocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
			return
		}
	}
}
