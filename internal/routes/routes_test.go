package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notification-relay/internal/auth"
	"notification-relay/internal/channel"
	"notification-relay/internal/config"
	"notification-relay/internal/gateway"
	"notification-relay/internal/handlers"
	"notification-relay/internal/models"
	"notification-relay/internal/registry"
)

const (
	ingressSecret = "routes-ingress-secret"
	tokenSecret   = "routes-token-secret"
)

func newTestServer(t *testing.T) (*httptest.Server, *auth.Verifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	cfg := &config.Config{
		PingInterval: 10 * time.Second,
		PongTimeout:  30 * time.Second,
		SendBuffer:   16,
	}

	verifier := auth.NewVerifier(tokenSecret)
	reg := registry.New(log)
	channels := channel.NewManager(log)
	gw := gateway.New(cfg, verifier, reg, channels, log)

	r := Setup(Deps{
		Gateway: gw,
		Notify:  handlers.NewNotifyHandler(ingressSecret, channels, log),
		Health:  handlers.NewHealthHandler(reg),
		Log:     log,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, verifier
}

// Full path: browser connects over /ws, backend publishes over /notify, the
// event arrives on the socket and the ack reports one recipient.
func TestEndToEnd_NotificationReachesConnectedUser(t *testing.T) {
	srv, verifier := newTestServer(t)

	token, err := verifier.Sign(models.Identity{ID: "7", Kind: models.KindStudent}, time.Hour)
	require.NoError(t, err)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	// The personal channel is auto-joined, but give the handler goroutine a
	// moment to finish registration before publishing.
	var ack struct {
		Success    bool `json:"success"`
		Recipients int  `json:"recipients"`
	}
	require.Eventually(t, func() bool {
		body, _ := json.Marshal(map[string]any{
			"secret": ingressSecret,
			"userId": "7",
			"data":   map[string]any{"title": "nouvelle note"},
		})
		res, err := http.Post(srv.URL+"/notify/notification", "application/json", bytes.NewReader(body))
		if err != nil {
			return false
		}
		defer res.Body.Close()
		if err := json.NewDecoder(res.Body).Decode(&ack); err != nil {
			return false
		}
		return ack.Success && ack.Recipients == 1
	}, 2*time.Second, 25*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, models.EventNotification, event.Type)
	require.JSONEq(t, `{"title":"nouvelle note"}`, string(event.Payload))
}

func TestHealthRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/notify/message", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.org")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	require.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}
