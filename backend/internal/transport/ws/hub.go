package ws

import (
	"log"
	"sync"

	"x-scene/backend/internal/telemetry"
	"x-scene/backend/internal/world"
)

// Hub хранит последний кадр сцены и рассылает изменения подключенным сессиям.
// PublishFrame вызывается на горутине тика, остальные методы - из обработчиков соединений.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	frame    []EntityState
	index    map[string]EntityState // пишется только из PublishFrame
	tick     uint64

	collector *telemetry.FrameCollector
	logger    *log.Logger
}

func NewHub(collector *telemetry.FrameCollector, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		sessions:  make(map[string]*Session),
		index:     make(map[string]EntityState),
		collector: collector,
		logger:    logger,
	}
}

// PublishFrame снимает состояние сущностей и рассылает те, что изменились с прошлого кадра.
// Сессия, у которой обновление было отброшено, получает полный снимок.
func (h *Hub) PublishFrame(tick uint64, entities []*world.Entity) {
	frame := make([]EntityState, 0, len(entities))
	index := make(map[string]EntityState, len(entities))
	var changed []EntityState
	for _, e := range entities {
		st := StateOf(e)
		frame = append(frame, st)
		index[st.ID] = st
		if prev, ok := h.index[st.ID]; !ok || prev != st {
			changed = append(changed, st)
		}
	}

	h.mu.Lock()
	h.frame, h.index, h.tick = frame, index, tick
	sessions := h.snapshotSessions()
	h.mu.Unlock()

	var update, snapshot *FrameMessage
	if len(changed) > 0 {
		update = &FrameMessage{
			Type:       MessageTypeUpdate,
			Tick:       tick,
			ServerTime: GetCurrentServerTime(),
			Entities:   changed,
		}
	}
	for _, s := range sessions {
		msg := update
		if s.stale.Load() {
			if snapshot == nil {
				snapshot = &FrameMessage{
					Type:       MessageTypeSnapshot,
					Tick:       tick,
					ServerTime: GetCurrentServerTime(),
					Entities:   frame,
				}
			}
			msg = snapshot
		}
		if msg == nil {
			continue
		}
		if s.Send(msg) {
			s.stale.Store(false)
			continue
		}
		if !s.stale.Swap(true) {
			h.logger.Printf("[Hub] session %s is slow, update %d dropped, resync on next frame", s.ID, tick)
		}
	}
}

// Snapshot полное состояние последнего кадра
func (h *Hub) Snapshot() *FrameMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entities := make([]EntityState, len(h.frame))
	copy(entities, h.frame)
	return &FrameMessage{
		Type:       MessageTypeSnapshot,
		Tick:       h.tick,
		ServerTime: GetCurrentServerTime(),
		Entities:   entities,
	}
}

func (h *Hub) snapshotSessions() []*Session {
	list := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		list = append(list, s)
	}
	return list
}

func (h *Hub) add(s *Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	n := len(h.sessions)
	h.mu.Unlock()
	h.collector.SetClients(n)
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.ID)
	n := len(h.sessions)
	h.mu.Unlock()
	h.collector.SetClients(n)
}

// Count число подключенных сессий
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// closeAll закрывает все сессии
func (h *Hub) closeAll() {
	h.mu.RLock()
	sessions := h.snapshotSessions()
	h.mu.RUnlock()
	for _, s := range sessions {
		s.Close()
	}
}
