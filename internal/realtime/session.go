package realtime

import (
	"sync"
	"time"
)

// wsConn is the slice of *websocket.Conn the hub needs. Narrowed to an
// interface so tests can drive sessions without a network.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// Session is one connected realtime client.
type Session struct {
	id          string
	remoteAddr  string
	connectedAt time.Time

	conn    wsConn
	writeMu sync.Mutex

	mu           sync.Mutex
	lastActivity time.Time
}

func newSession(id, remoteAddr string, conn wsConn) *Session {
	now := time.Now()
	return &Session{
		id:           id,
		remoteAddr:   remoteAddr,
		connectedAt:  now,
		conn:         conn,
		lastActivity: now,
	}
}

func (s *Session) ID() string { return s.id }

// send serializes writes; gorilla connections allow one concurrent writer.
func (s *Session) send(msg ServerMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}
