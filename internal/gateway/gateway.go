// Package gateway owns the websocket side of the relay: the authentication
// handshake, join/leave control messages, the heartbeat, and the push
// primitive the channel manager fans out through.
package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"notification-relay/internal/auth"
	"notification-relay/internal/channel"
	"notification-relay/internal/config"
	"notification-relay/internal/models"
	"notification-relay/internal/registry"
)

// Client control messages. Anything else coming in on the socket is ignored.
const (
	actionJoinConversation  = "joinConversation"
	actionLeaveConversation = "leaveConversation"
	actionJoinClass         = "joinClass"
)

// maxControlFrame bounds inbound frames; clients only ever send small
// join/leave messages.
const maxControlFrame = 1024

type Gateway struct {
	verifier *auth.Verifier
	registry *registry.Registry
	channels *channel.Manager
	upgrader websocket.Upgrader
	log      *zap.Logger

	pingInterval time.Duration
	pongTimeout  time.Duration
	sendBuffer   int

	mu      sync.Mutex
	clients map[string]*client
}

func New(cfg *config.Config, verifier *auth.Verifier, reg *registry.Registry, channels *channel.Manager, log *zap.Logger) *Gateway {
	return &Gateway{
		verifier: verifier,
		registry: reg,
		channels: channels,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		log:          log,
		pingInterval: cfg.PingInterval,
		pongTimeout:  cfg.PongTimeout,
		sendBuffer:   cfg.SendBuffer,
		clients:      make(map[string]*client),
	}
}

// originChecker allows any origin when the list is empty, otherwise an exact
// match. Non-browser clients send no Origin header and are always allowed.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleWS runs the full connection lifecycle: verify the token, upgrade,
// register, auto-join the personal channel, then serve control messages until
// the transport goes away.
func (g *Gateway) HandleWS(c *gin.Context) {
	token := connectToken(c)
	identity, err := g.verifier.Verify(token)
	if err != nil {
		g.log.Info("handshake rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		g.log.Info("upgrade failed", zap.Error(err))
		return
	}

	cl := newClient(conn, identity, g.sendBuffer, g.log)
	g.track(cl)
	g.registry.Register(identity, cl.id)
	g.channels.Attach(cl)
	// Every authenticated connection listens on its own personal channel.
	g.channels.Join(cl.id, models.UserChannel(identity.ID))

	cl.log.Info("client connected", zap.String("kind", string(identity.Kind)))
	go cl.writePump(g.pingInterval)

	defer func() {
		g.channels.Detach(cl.id)
		g.registry.Unregister(cl.id)
		g.untrack(cl.id)
		cl.close()
		cl.log.Info("client disconnected")
	}()

	g.readLoop(cl)
}

// readLoop consumes control messages and enforces the heartbeat: the read
// deadline only moves forward when the client answers a ping.
func (g *Gateway) readLoop(cl *client) {
	cl.conn.SetReadLimit(maxControlFrame)
	_ = cl.conn.SetReadDeadline(time.Now().Add(g.pongTimeout))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(g.pongTimeout))
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		// A chatty client counts as alive even if pongs get lost.
		_ = cl.conn.SetReadDeadline(time.Now().Add(g.pongTimeout))
		g.handleControl(cl, data)
	}
}

type controlMessage struct {
	Action string    `json:"action"`
	ID     models.ID `json:"id"`
}

func (g *Gateway) handleControl(cl *client, data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		cl.log.Debug("ignoring unparseable control message", zap.Error(err))
		return
	}
	if msg.ID == "" {
		cl.log.Debug("ignoring control message without id", zap.String("action", msg.Action))
		return
	}

	switch msg.Action {
	case actionJoinConversation:
		g.channels.Join(cl.id, models.ConversationChannel(string(msg.ID)))
	case actionLeaveConversation:
		g.channels.Leave(cl.id, models.ConversationChannel(string(msg.ID)))
	case actionJoinClass:
		g.channels.Join(cl.id, models.ClassChannel(string(msg.ID)))
	default:
		cl.log.Debug("ignoring unknown action", zap.String("action", msg.Action))
	}
}

// Close notifies every live client the server is going away and closes them.
func (g *Gateway) Close() {
	g.mu.Lock()
	clients := make([]*client, 0, len(g.clients))
	for _, cl := range g.clients {
		clients = append(clients, cl)
	}
	g.mu.Unlock()

	for _, cl := range clients {
		cl.closeGoingAway()
	}
}

func (g *Gateway) track(cl *client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[cl.id] = cl
}

func (g *Gateway) untrack(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.clients, id)
}

// connectToken pulls the credential from the query string, falling back to a
// bearer header for clients that can set one.
func connectToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if parts := strings.Split(header, " "); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
