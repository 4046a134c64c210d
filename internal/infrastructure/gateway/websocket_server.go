package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chatnet/internal/core/domain"
	"chatnet/internal/core/ports"
	"chatnet/internal/core/services"
	"chatnet/internal/infrastructure/monitoring"
	"chatnet/pkg/cache"
	"chatnet/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Options configures the gateway's timeouts and behavior.
type Options struct {
	PingInterval       time.Duration
	PongTimeout        time.Duration
	WriteTimeout       time.Duration
	PersistMessages    bool
	MembershipCacheTTL time.Duration
}

// DefaultOptions returns the timeouts used when no configuration is given.
func DefaultOptions() Options {
	return Options{
		PingInterval:       30 * time.Second,
		PongTimeout:        60 * time.Second,
		WriteTimeout:       10 * time.Second,
		PersistMessages:    true,
		MembershipCacheTTL: 30 * time.Second,
	}
}

// WebSocketServer accepts authenticated WebSocket connections and relays
// chat events between sessions subscribed to the same room.
type WebSocketServer struct {
	authService services.AuthService
	roomService ports.RoomService
	messages    ports.MessageService

	registry   *Registry
	membership *cache.Cache
	collector  *monitoring.PrometheusCollector

	opts   Options
	logger *zap.SugaredLogger
}

// Event is the envelope for every client-to-server frame.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinRoomPayload struct {
	Room domain.RoomID `json:"room"`
}

type chatMessagePayload struct {
	Room    domain.RoomID `json:"room"`
	Message string        `json:"message"`
}

func NewWebSocketServer(
	authService services.AuthService,
	roomService ports.RoomService,
	messages ports.MessageService,
	collector *monitoring.PrometheusCollector,
	opts Options,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	return &WebSocketServer{
		authService: authService,
		roomService: roomService,
		messages:    messages,
		registry:    NewRegistry(),
		membership:  cache.New(opts.MembershipCacheTTL),
		collector:   collector,
		opts:        opts,
		logger:      logger,
	}
}

// Registry exposes the session registry, mainly for health reporting.
func (s *WebSocketServer) Registry() *Registry {
	return s.registry
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess := &Session{
		ID:           domain.SessionID(utils.GenerateSessionID()),
		UserID:       claims.UserID,
		conn:         conn,
		writeTimeout: s.opts.WriteTimeout,
		rooms:        make(map[domain.RoomID]struct{}),
	}
	s.registry.Register(sess)
	s.collector.RecordConnect()

	s.logger.Infow("session connected",
		"session_id", sess.ID,
		"user_id", sess.UserID,
	)

	// Ack carries the server-assigned session id and the authenticated
	// identity the session will speak as.
	if err := sess.WriteJSON(map[string]interface{}{
		"type":       "connected",
		"session_id": sess.ID,
		"user_id":    sess.UserID,
	}); err != nil {
		s.logger.Infow("failed to send connected ack", "session_id", sess.ID, "error", err)
		s.disconnect(sess)
		return
	}

	conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.opts.PingInterval)
	defer pingTicker.Stop()

	eventChan := make(chan Event, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
			eventChan <- ev
		}
	}()

	for {
		select {
		case ev := <-eventChan:
			if err := s.handleEvent(r.Context(), sess, ev); err != nil {
				s.logger.Infow("dropping event",
					"session_id", sess.ID,
					"type", ev.Type,
					"error", err,
				)
				s.collector.RecordDroppedEvent(dropReason(ev))
				s.sendError(sess, err.Error())
			}

		case <-pingTicker.C:
			if err := sess.WriteControl(websocket.PingMessage, nil); err != nil {
				s.logger.Infow("error sending ping", "session_id", sess.ID, "error", err)
				s.disconnect(sess)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading from session", "session_id", sess.ID, "error", err)
			}
			s.disconnect(sess)
			return
		}
	}
}

// authenticate resolves the connecting user from the token query parameter.
func (s *WebSocketServer) authenticate(r *http.Request) (*services.Claims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return nil, services.ErrUnauthorized
	}
	return s.authService.ValidateToken(token)
}

func (s *WebSocketServer) disconnect(sess *Session) {
	removed := s.registry.Unregister(sess.ID)
	s.collector.RecordDisconnect()
	s.collector.RecordSubscriptionsRemoved(removed)

	s.logger.Infow("session disconnected",
		"session_id", sess.ID,
		"user_id", sess.UserID,
		"subscriptions_removed", removed,
	)
}

func dropReason(ev Event) string {
	switch ev.Type {
	case "join_room", "leave_room", "chat_message":
		return "rejected"
	default:
		return "unknown_type"
	}
}

func (s *WebSocketServer) handleEvent(ctx context.Context, sess *Session, ev Event) error {
	switch ev.Type {
	case "join_room":
		return s.handleJoinRoom(ctx, sess, ev)
	case "leave_room":
		return s.handleLeaveRoom(sess, ev)
	case "chat_message":
		return s.handleChatMessage(ctx, sess, ev)
	case "":
		return fmt.Errorf("event type is required")
	default:
		return fmt.Errorf("unknown event type: %s", ev.Type)
	}
}

func (s *WebSocketServer) handleJoinRoom(ctx context.Context, sess *Session, ev Event) error {
	var payload joinRoomPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("invalid join_room payload: %w", err)
	}
	if payload.Room == "" {
		return fmt.Errorf("room is required")
	}

	ok, err := s.isMember(ctx, payload.Room, sess.UserID)
	if err != nil {
		return fmt.Errorf("membership check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("room %s not found", payload.Room)
	}

	if s.registry.Join(sess.ID, payload.Room) {
		s.collector.RecordJoin()
		s.logger.Infow("session joined room",
			"session_id", sess.ID,
			"user_id", sess.UserID,
			"room_id", payload.Room,
		)
	}
	return nil
}

func (s *WebSocketServer) handleLeaveRoom(sess *Session, ev Event) error {
	var payload joinRoomPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("invalid leave_room payload: %w", err)
	}
	if payload.Room == "" {
		return fmt.Errorf("room is required")
	}

	if s.registry.Leave(sess.ID, payload.Room) {
		s.collector.RecordLeave()
		s.logger.Infow("session left room",
			"session_id", sess.ID,
			"room_id", payload.Room,
		)
	}
	return nil
}

func (s *WebSocketServer) handleChatMessage(ctx context.Context, sess *Session, ev Event) error {
	var payload chatMessagePayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("invalid chat_message payload: %w", err)
	}
	if payload.Room == "" {
		return fmt.Errorf("room is required")
	}

	ok, err := s.isMember(ctx, payload.Room, sess.UserID)
	if err != nil {
		return fmt.Errorf("membership check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("room %s not found", payload.Room)
	}

	// Persistence is best-effort: a failing store must not block fanout.
	if s.opts.PersistMessages {
		if _, err := s.messages.PostMessage(ctx, payload.Room, sess.UserID, payload.Message); err != nil {
			s.collector.RecordPersistFailure()
			s.logger.Warnw("failed to persist chat message",
				"session_id", sess.ID,
				"room_id", payload.Room,
				"error", err,
			)
		}
	}

	s.broadcast(payload.Room, map[string]interface{}{
		"type":    "message",
		"user":    sess.UserID,
		"message": payload.Message,
	})
	return nil
}

// broadcast delivers an event to every session subscribed to the room,
// the sender's sessions included. Failed writes are counted and dropped.
func (s *WebSocketServer) broadcast(roomID domain.RoomID, event interface{}) {
	start := time.Now()
	delivered, failed := 0, 0

	for _, sub := range s.registry.Subscribers(roomID) {
		if err := sub.WriteJSON(event); err != nil {
			failed++
			s.logger.Infow("delivery failed",
				"session_id", sub.ID,
				"room_id", roomID,
				"error", err,
			)
			continue
		}
		delivered++
	}

	s.collector.RecordBroadcast(time.Since(start).Seconds(), delivered, failed)
}

// isMember answers membership from the TTL cache when possible, falling
// back to the room service.
func (s *WebSocketServer) isMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	key := string(roomID) + ":" + string(userID)
	if v, ok := s.membership.Get(key); ok {
		return v.(bool), nil
	}

	ok, err := s.roomService.IsMember(ctx, roomID, userID)
	if err != nil {
		// Absent rooms and foreign rooms are indistinguishable to callers.
		if errors.Is(err, domain.ErrRoomNotFound) {
			ok = false
		} else {
			return false, err
		}
	}

	// Negative results are cached too: membership is immutable, so a miss
	// only flips when the room is created after the lookup.
	s.membership.Set(key, ok)
	return ok, nil
}

func (s *WebSocketServer) sendError(sess *Session, message string) {
	_ = sess.WriteJSON(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

// Close stops background resources owned by the server.
func (s *WebSocketServer) Close() {
	s.membership.Stop()
}

func (s *WebSocketServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"connections": s.registry.SessionCount(),
		"rooms":       s.registry.RoomCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
