package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatnet/internal/core/domain"
	"chatnet/internal/core/ports"
	"chatnet/internal/core/services"
	"chatnet/internal/infrastructure/monitoring"
	"chatnet/internal/infrastructure/repositories/memory"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// One collector for the whole package: prometheus registration is global.
var testCollector = monitoring.NewPrometheusCollector()

type gatewayFixture struct {
	server  *WebSocketServer
	ts      *httptest.Server
	authSvc services.AuthService
	roomSvc ports.RoomService
	msgSvc  ports.MessageService
	tokens  map[string]string
	roomID  domain.RoomID
}

func newGatewayFixture(t *testing.T, persist bool) *gatewayFixture {
	t.Helper()

	roomRepo := memory.NewMemoryRoomRepository()
	messageRepo := memory.NewMemoryMessageRepository()
	roomSvc := services.NewRoomService(roomRepo, services.NewKeyedRoomLocker(), domain.DedupLoose)
	msgSvc := services.NewMessageService(messageRepo, roomRepo)
	authSvc := services.NewAuthService("test-secret", 15*time.Minute, 24*time.Hour)

	opts := DefaultOptions()
	opts.PersistMessages = persist
	opts.MembershipCacheTTL = 50 * time.Millisecond

	server := NewWebSocketServer(authSvc, roomSvc, msgSvc, testCollector, opts, zaptest.NewLogger(t).Sugar())
	t.Cleanup(server.Close)

	ts := httptest.NewServer(http.HandlerFunc(server.HandleWebSocket))
	t.Cleanup(ts.Close)

	room, _, err := roomSvc.CreateOrFindRoom(context.Background(), "alice", []domain.UserID{"bob"})
	require.NoError(t, err)

	tokens := make(map[string]string)
	for _, user := range []string{"alice", "bob", "mallory"} {
		token, err := authSvc.GenerateToken(domain.UserID(user), user)
		require.NoError(t, err)
		tokens[user] = token
	}

	return &gatewayFixture{
		server:  server,
		ts:      ts,
		authSvc: authSvc,
		roomSvc: roomSvc,
		msgSvc:  msgSvc,
		tokens:  tokens,
		roomID:  room.ID,
	}
}

func (f *gatewayFixture) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws?token=" + f.tokens[user]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Consume the connected ack
	ack := readEvent(t, conn)
	require.Equal(t, "connected", ack["type"])
	require.Equal(t, user, ack["user_id"])
	require.NotEmpty(t, ack["session_id"])

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event map[string]interface{}
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func send(t *testing.T, conn *websocket.Conn, eventType string, payload interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	}))
}

func TestWebSocketServer_Authentication(t *testing.T) {
	f := newGatewayFixture(t, false)

	t.Run("valid token connects and gets an ack", func(t *testing.T) {
		f.dial(t, "alice")
	})

	t.Run("missing token is refused", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token is refused", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws?token=garbage"
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestWebSocketServer_JoinRoom(t *testing.T) {
	f := newGatewayFixture(t, false)

	t.Run("non-member cannot join", func(t *testing.T) {
		conn := f.dial(t, "mallory")

		send(t, conn, "join_room", map[string]string{"room": string(f.roomID)})

		event := readEvent(t, conn)
		assert.Equal(t, "error", event["type"])
		assert.Contains(t, event["message"], "not found")
	})

	t.Run("unknown room reads like a foreign one", func(t *testing.T) {
		conn := f.dial(t, "alice")

		send(t, conn, "join_room", map[string]string{"room": "no-such-room"})

		event := readEvent(t, conn)
		assert.Equal(t, "error", event["type"])
		assert.Contains(t, event["message"], "not found")
	})

	t.Run("malformed payload is an error event", func(t *testing.T) {
		conn := f.dial(t, "alice")

		send(t, conn, "join_room", map[string]string{})

		event := readEvent(t, conn)
		assert.Equal(t, "error", event["type"])
	})

	t.Run("unknown event type is an error event", func(t *testing.T) {
		conn := f.dial(t, "alice")

		send(t, conn, "dance", nil)

		event := readEvent(t, conn)
		assert.Equal(t, "error", event["type"])
	})
}

func TestWebSocketServer_Broadcast(t *testing.T) {
	f := newGatewayFixture(t, false)

	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")

	send(t, alice, "join_room", map[string]string{"room": string(f.roomID)})
	send(t, bob, "join_room", map[string]string{"room": string(f.roomID)})

	// Both subscriptions must be live before the broadcast
	require.Eventually(t, func() bool {
		return len(f.server.Registry().Subscribers(f.roomID)) == 2
	}, 2*time.Second, 10*time.Millisecond)

	send(t, alice, "chat_message", map[string]string{
		"room":    string(f.roomID),
		"message": "hello room",
	})

	// Delivery includes the sender
	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		event := readEvent(t, conn)
		assert.Equal(t, "message", event["type"], "recipient %s", name)
		assert.Equal(t, "alice", event["user"])
		assert.Equal(t, "hello room", event["message"])
	}
}

func TestWebSocketServer_ChatMessageRequiresMembership(t *testing.T) {
	f := newGatewayFixture(t, false)

	conn := f.dial(t, "mallory")
	send(t, conn, "chat_message", map[string]string{
		"room":    string(f.roomID),
		"message": "let me in",
	})

	event := readEvent(t, conn)
	assert.Equal(t, "error", event["type"])
}

func TestWebSocketServer_PersistsMessages(t *testing.T) {
	f := newGatewayFixture(t, true)

	conn := f.dial(t, "alice")
	send(t, conn, "join_room", map[string]string{"room": string(f.roomID)})
	send(t, conn, "chat_message", map[string]string{
		"room":    string(f.roomID),
		"message": "for the record",
	})

	event := readEvent(t, conn)
	require.Equal(t, "message", event["type"])

	messages, err := f.msgSvc.ListMessages(context.Background(), f.roomID, "alice")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "for the record", messages[0].Content)
	assert.Equal(t, domain.UserID("alice"), messages[0].Sender)
}

func TestWebSocketServer_DisconnectRemovesSubscriptions(t *testing.T) {
	f := newGatewayFixture(t, false)

	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")

	send(t, alice, "join_room", map[string]string{"room": string(f.roomID)})
	send(t, bob, "join_room", map[string]string{"room": string(f.roomID)})

	require.Eventually(t, func() bool {
		return len(f.server.Registry().Subscribers(f.roomID)) == 2
	}, 2*time.Second, 10*time.Millisecond)

	alice.Close()

	require.Eventually(t, func() bool {
		return len(f.server.Registry().Subscribers(f.roomID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The room keeps working for the remaining session
	send(t, bob, "chat_message", map[string]string{
		"room":    string(f.roomID),
		"message": "still here",
	})
	event := readEvent(t, bob)
	assert.Equal(t, "message", event["type"])
	assert.Equal(t, "bob", event["user"])
}

func TestWebSocketServer_LeaveRoom(t *testing.T) {
	f := newGatewayFixture(t, false)

	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")

	send(t, alice, "join_room", map[string]string{"room": string(f.roomID)})
	send(t, bob, "join_room", map[string]string{"room": string(f.roomID)})

	require.Eventually(t, func() bool {
		return len(f.server.Registry().Subscribers(f.roomID)) == 2
	}, 2*time.Second, 10*time.Millisecond)

	send(t, alice, "leave_room", map[string]string{"room": string(f.roomID)})

	require.Eventually(t, func() bool {
		return len(f.server.Registry().Subscribers(f.roomID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Alice no longer receives broadcasts but stays connected
	send(t, bob, "chat_message", map[string]string{
		"room":    string(f.roomID),
		"message": "bye alice",
	})
	event := readEvent(t, bob)
	assert.Equal(t, "message", event["type"])

	alice.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var missed map[string]interface{}
	assert.Error(t, alice.ReadJSON(&missed), "no delivery after leave")
}

func TestWebSocketServer_HealthCheck(t *testing.T) {
	f := newGatewayFixture(t, false)
	f.dial(t, "alice")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	f.server.HealthCheck(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.Contains(t, w.Body.String(), `"connections":1`)
}
