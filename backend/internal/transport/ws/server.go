package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"x-scene/backend/internal/control"
	"x-scene/backend/internal/game"
)

const (
	DefaultPingInterval = 2 * time.Second // Интервал отправки пингов
	DefaultWriteWait    = time.Second
	maxMessageSize      = 4096
)

// StatusSource состояние рантайма для приветствия клиента
type StatusSource interface {
	Status() (game.State, error)
}

// WSServer принимает ввод окна и отдает поток состояния сцены
type WSServer struct {
	upgrader     websocket.Upgrader
	hub          *Hub
	queue        *control.Queue
	status       StatusSource
	pingInterval time.Duration
	writeWait    time.Duration
	logger       *log.Logger
}

// NewWSServer создает новый экземпляр WebSocket сервера. События ввода попадают в queue.
func NewWSServer(hub *Hub, queue *control.Queue, status StatusSource, logger *log.Logger) *WSServer {
	if logger == nil {
		logger = log.Default()
	}
	if hub == nil {
		hub = NewHub(nil, logger)
	}
	return &WSServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		hub:          hub,
		queue:        queue,
		status:       status,
		pingInterval: DefaultPingInterval,
		writeWait:    DefaultWriteWait,
		logger:       logger,
	}
}

// SetPingInterval устанавливает интервал отправки пингов
func (s *WSServer) SetPingInterval(interval time.Duration) {
	s.pingInterval = interval
}

// Hub рассылка кадров
func (s *WSServer) Hub() *Hub {
	return s.hub
}

func (s *WSServer) runtimeStatus() (string, error) {
	if s.status == nil {
		return "unknown", nil
	}
	state, err := s.status.Status()
	if state == game.StateFailed && err == nil {
		err = game.ErrNotLoaded
	}
	if state != game.StateFailed {
		err = nil
	}
	return string(state), err
}

// HandleWS обрабатывает входящие WebSocket соединения
func (s *WSServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("[WSServer] upgrade error: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	safeConn := NewSafeWriter(conn)
	safeConn.SetWriteWait(s.writeWait)
	session := newSession(uuid.NewString(), safeConn)
	s.hub.add(session)
	s.logger.Printf("[WSServer] session %s connected from %s", session.ID, conn.RemoteAddr())

	defer func() {
		s.hub.remove(session)
		session.Close()
		// отпущенные при обрыве клавиши не должны залипать
		if s.queue != nil {
			s.queue.Push(control.Event{Type: control.EventReset})
		}
		s.logger.Printf("[WSServer] session %s closed", session.ID)
	}()

	go session.writeLoop(s.pingInterval, s.logger)

	status, runtimeErr := s.runtimeStatus()
	session.Send(NewInfoMessage(session.ID, status, "connected to x-scene player"))
	if runtimeErr != nil {
		session.Send(NewErrorMessage(runtimeErr.Error()))
	}
	session.Send(s.hub.Snapshot())

	for {
		_, data, err := safeConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Printf("[WSServer] read from %s failed: %v", session.ID, err)
			}
			return
		}
		s.handleMessage(session, data)
	}
}

func (s *WSServer) handleMessage(session *Session, data []byte) {
	msg, err := ParseMessage(data)
	if err != nil {
		session.Send(NewErrorMessage(err.Error()))
		return
	}

	if ping, ok := msg.(*PingMessage); ok {
		session.Send(CreatePongMessage(ping.ClientTime))
		return
	}

	ev, ok := ToEvent(msg)
	if !ok || s.queue == nil {
		return
	}
	if !s.queue.Push(ev) {
		session.Send(NewErrorMessage("input queue is full"))
	}
}

// Close закрывает все сессии
func (s *WSServer) Close() {
	s.hub.closeAll()
}
