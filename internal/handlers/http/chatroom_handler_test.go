package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chatnet/internal/core/domain"
	"chatnet/internal/core/services"
	httphandlers "chatnet/internal/handlers/http"
	"chatnet/internal/infrastructure/monitoring"
	"chatnet/internal/infrastructure/repositories/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A single collector for the package: prometheus registration is global.
var testCollector = monitoring.NewPrometheusCollector()

// testAPI is a router wired with in-memory stores. Requests authenticate
// with a fake middleware that trusts the X-Test-User header, so handler
// behavior can be exercised without minting tokens.
func testAPI(t *testing.T, policy domain.DedupPolicy) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	roomRepo := memory.NewMemoryRoomRepository()
	messageRepo := memory.NewMemoryMessageRepository()
	roomSvc := services.NewRoomService(roomRepo, services.NewKeyedRoomLocker(), policy)
	msgSvc := services.NewMessageService(messageRepo, roomRepo)

	handler := httphandlers.NewChatRoomHandler(roomSvc, msgSvc, testCollector)

	router := gin.New()
	api := router.Group("/")
	api.Use(func(c *gin.Context) {
		if user := c.GetHeader("X-Test-User"); user != "" {
			c.Set("user_id", domain.UserID(user))
		}
		c.Next()
	})
	handler.SetupRoutes(api)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateRoom(t *testing.T) {
	t.Run("creates a new room", func(t *testing.T) {
		router := testAPI(t, domain.DedupLoose)

		w := doJSON(t, router, "POST", "/chatrooms", "alice", gin.H{"users": []string{"bob"}})
		require.Equal(t, http.StatusCreated, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, "Chat room created", body["msg"])
		assert.NotEmpty(t, body["chatroom_id"])
	})

	t.Run("finds the existing room on a duplicate request", func(t *testing.T) {
		router := testAPI(t, domain.DedupLoose)

		first := decodeBody(t, doJSON(t, router, "POST", "/chatrooms", "alice", gin.H{"users": []string{"bob"}}))

		w := doJSON(t, router, "POST", "/chatrooms", "alice", gin.H{"users": []string{"bob"}})
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, "Chat room already exists", body["msg"])
		assert.Equal(t, first["chatroom_id"], body["chatroom_id"])
	})

	t.Run("empty user list is rejected", func(t *testing.T) {
		router := testAPI(t, domain.DedupLoose)

		w := doJSON(t, router, "POST", "/chatrooms", "alice", gin.H{"users": []string{}})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "At least one user must be specified", decodeBody(t, w)["error"])
	})

	t.Run("user list with only the requester is rejected", func(t *testing.T) {
		router := testAPI(t, domain.DedupLoose)

		w := doJSON(t, router, "POST", "/chatrooms", "alice", gin.H{"users": []string{"alice"}})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "At least one user must be specified", decodeBody(t, w)["error"])
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		router := testAPI(t, domain.DedupLoose)

		req := httptest.NewRequest("POST", "/chatrooms", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-User", "alice")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListRooms(t *testing.T) {
	router := testAPI(t, domain.DedupExact)

	doJSON(t, router, "POST", "/chatrooms", "alice", gin.H{"users": []string{"bob"}})
	doJSON(t, router, "POST", "/chatrooms", "alice", gin.H{"users": []string{"bob", "carol"}})

	t.Run("returns the requester's rooms newest first", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/chatrooms", "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var rooms []map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rooms))
		require.Len(t, rooms, 2)

		users := rooms[0]["users"].([]interface{})
		assert.Len(t, users, 3, "newest room (alice, bob, carol) first")
		assert.NotNil(t, rooms[0]["messages"])
	})

	t.Run("membership filters the listing", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/chatrooms", "carol", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var rooms []map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rooms))
		assert.Len(t, rooms, 1)
	})

	t.Run("stranger sees an empty list", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/chatrooms", "mallory", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})
}

func TestMessages(t *testing.T) {
	router := testAPI(t, domain.DedupLoose)

	created := decodeBody(t, doJSON(t, router, "POST", "/chatrooms", "alice", gin.H{"users": []string{"bob"}}))
	roomID := created["chatroom_id"].(string)

	t.Run("post and list round trip", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/chatrooms/"+roomID+"/messages", "alice", gin.H{"content": "hello bob"})
		require.Equal(t, http.StatusCreated, w.Code)

		msg := decodeBody(t, w)
		assert.Equal(t, "alice", msg["sender"])
		assert.Equal(t, "hello bob", msg["content"])
		assert.Equal(t, roomID, msg["chatroom"])

		w = doJSON(t, router, "GET", "/chatrooms/"+roomID+"/messages", "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var messages []map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &messages))
		require.Len(t, messages, 1)
		assert.Equal(t, "hello bob", messages[0]["content"])
	})

	t.Run("empty content is rejected", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/chatrooms/"+roomID+"/messages", "alice", gin.H{"content": "   "})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Message content cannot be empty", decodeBody(t, w)["error"])
	})

	t.Run("non-member gets 404 on both endpoints", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/chatrooms/"+roomID+"/messages", "mallory", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Chat room not found", decodeBody(t, w)["error"])

		w = doJSON(t, router, "POST", "/chatrooms/"+roomID+"/messages", "mallory", gin.H{"content": "let me in"})
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Chat room not found", decodeBody(t, w)["error"])
	})

	t.Run("non-member posting blank content still gets 404", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/chatrooms/"+roomID+"/messages", "mallory", gin.H{"content": "   "})
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Chat room not found", decodeBody(t, w)["error"])
	})

	t.Run("oversized content is rejected", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/chatrooms/"+roomID+"/messages", "alice",
			gin.H{"content": strings.Repeat("x", 4001)})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid message content", decodeBody(t, w)["error"])
	})

	t.Run("missing room gets the same 404", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/chatrooms/does-not-exist/messages", "alice", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Chat room not found", decodeBody(t, w)["error"])
	})
}

// Two users create DM-style rooms, exchange messages over REST, and a
// third user is kept out everywhere.
func TestChatScenario(t *testing.T) {
	router := testAPI(t, domain.DedupLoose)

	// U1 starts a room with U2
	created := decodeBody(t, doJSON(t, router, "POST", "/chatrooms", "u1", gin.H{"users": []string{"u2"}}))
	roomID := created["chatroom_id"].(string)

	// U2 asking for a room with U1 lands in the same room
	dup := decodeBody(t, doJSON(t, router, "POST", "/chatrooms", "u2", gin.H{"users": []string{"u1"}}))
	require.Equal(t, roomID, dup["chatroom_id"])

	// Both sides talk
	for i, msg := range []struct {
		user, content string
	}{
		{"u1", "hey"},
		{"u2", "hey yourself"},
		{"u1", "how's the migration going?"},
	} {
		w := doJSON(t, router, "POST", "/chatrooms/"+roomID+"/messages", msg.user, gin.H{"content": msg.content})
		require.Equal(t, http.StatusCreated, w.Code, "message %d", i)
	}

	// History reads back in order for both members
	for _, user := range []string{"u1", "u2"} {
		w := doJSON(t, router, "GET", "/chatrooms/"+roomID+"/messages", user, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var messages []map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &messages))
		require.Len(t, messages, 3)
		assert.Equal(t, "hey", messages[0]["content"])
		assert.Equal(t, "how's the migration going?", messages[2]["content"])
	}

	// U3 cannot see the room or its history
	w := doJSON(t, router, "GET", "/chatrooms", "u3", nil)
	assert.JSONEq(t, "[]", w.Body.String())

	w = doJSON(t, router, "GET", fmt.Sprintf("/chatrooms/%s/messages", roomID), "u3", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
