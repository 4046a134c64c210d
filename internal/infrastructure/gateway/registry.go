package gateway

import (
	"sync"
	"time"

	"chatnet/internal/core/domain"

	"github.com/gorilla/websocket"
)

// Session is one live WebSocket connection with its authenticated user
// and the set of rooms it has joined. The write mutex serializes frames:
// gorilla/websocket allows only one concurrent writer per connection.
type Session struct {
	ID     domain.SessionID
	UserID domain.UserID

	conn    *websocket.Conn
	writeMu sync.Mutex

	writeTimeout time.Duration

	rooms map[domain.RoomID]struct{}
}

// WriteJSON sends one JSON frame under the session write lock.
func (s *Session) WriteJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteJSON(v)
}

// WriteControl sends a control frame under the session write lock.
func (s *Session) WriteControl(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.conn.WriteControl(messageType, data, time.Now().Add(s.writeTimeout))
}

// Registry tracks live sessions and per-room subscriptions. It is an
// explicit object owned by the server, so two gateways in one process
// never share state by accident.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*Session
	rooms    map[domain.RoomID]map[domain.SessionID]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*Session),
		rooms:    make(map[domain.RoomID]map[domain.SessionID]*Session),
	}
}

// Register adds a session to the registry.
func (r *Registry) Register(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID] = sess
}

// Unregister removes a session and all of its room subscriptions,
// returning the number of subscriptions removed.
func (r *Registry) Unregister(sessionID domain.SessionID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[sessionID]
	if !exists {
		return 0
	}
	delete(r.sessions, sessionID)

	removed := 0
	for roomID := range sess.rooms {
		if subs, ok := r.rooms[roomID]; ok {
			if _, ok := subs[sessionID]; ok {
				delete(subs, sessionID)
				removed++
			}
			if len(subs) == 0 {
				delete(r.rooms, roomID)
			}
		}
	}
	return removed
}

// Join subscribes a session to a room. Joining twice is a no-op; the
// returned bool is true only for a new subscription.
func (r *Registry) Join(sessionID domain.SessionID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[sessionID]
	if !exists {
		return false
	}
	if _, already := sess.rooms[roomID]; already {
		return false
	}

	sess.rooms[roomID] = struct{}{}
	subs, ok := r.rooms[roomID]
	if !ok {
		subs = make(map[domain.SessionID]*Session)
		r.rooms[roomID] = subs
	}
	subs[sessionID] = sess
	return true
}

// Leave removes one subscription. Leaving a room the session never
// joined is a no-op.
func (r *Registry) Leave(sessionID domain.SessionID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[sessionID]
	if !exists {
		return false
	}
	if _, joined := sess.rooms[roomID]; !joined {
		return false
	}
	delete(sess.rooms, roomID)

	if subs, ok := r.rooms[roomID]; ok {
		delete(subs, sessionID)
		if len(subs) == 0 {
			delete(r.rooms, roomID)
		}
	}
	return true
}

// Subscribers returns a snapshot of the sessions joined to a room,
// including any sessions belonging to the sender.
func (r *Registry) Subscribers(roomID domain.RoomID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.rooms[roomID]
	out := make([]*Session, 0, len(subs))
	for _, sess := range subs {
		out = append(out, sess)
	}
	return out
}

// SessionCount returns the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RoomCount returns the number of rooms with at least one subscriber.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
