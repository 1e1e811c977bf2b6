package ws

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const sendBuffer = 64

// Session одно соединение. Запись идет из собственной горутины через буферизованный канал,
// чтобы медленный клиент не задерживал тик.
type Session struct {
	ID   string
	conn *SafeWriter
	send chan any
	done chan struct{}
	once sync.Once

	// stale сессия пропустила обновление и ждет полный снимок
	stale atomic.Bool
}

func newSession(id string, conn *SafeWriter) *Session {
	return &Session{
		ID:   id,
		conn: conn,
		send: make(chan any, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send ставит сообщение в очередь без блокировки
func (s *Session) Send(msg any) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

// Close закрывает соединение; повторный вызов безопасен
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Done закрывается вместе с сессией
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) writeLoop(pingInterval time.Duration, logger *log.Logger) {
	var tick <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			if err := s.conn.WriteJSON(msg); err != nil {
				logger.Printf("[WSServer] write to %s failed: %v", s.ID, err)
				s.Close()
				return
			}
		case <-tick:
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		}
	}
}
