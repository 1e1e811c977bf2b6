package control

import (
	"log"
	"sync/atomic"
)

// EventType вид входного события
type EventType int

const (
	EventKey EventType = iota
	EventWheel
	EventPointer
	EventReset
)

// Event входное событие окна. Поля, не относящиеся к типу, пусты.
type Event struct {
	Type    EventType
	Key     KeyEvent
	Wheel   float64
	DX, DY  float64
	Buttons int
}

// Queue очередь событий между сетевыми горутинами и горутиной тика
type Queue struct {
	events  chan Event
	dropped atomic.Int64
	logger  *log.Logger
}

// NewQueue создает очередь заданной емкости
func NewQueue(capacity int, logger *log.Logger) *Queue {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Queue{events: make(chan Event, capacity), logger: logger}
}

// Push добавляет событие без блокировки. При переполнении событие отбрасывается.
func (q *Queue) Push(ev Event) bool {
	select {
	case q.events <- ev:
		return true
	default:
		if n := q.dropped.Add(1); n%100 == 1 {
			q.logger.Printf("[Input] queue full, dropped %d events", n)
		}
		return false
	}
}

// Drain вынимает накопленные события, не больше емкости очереди за вызов
func (q *Queue) Drain(fn func(Event)) int {
	n := 0
	for n < cap(q.events) {
		select {
		case ev := <-q.events:
			fn(ev)
			n++
		default:
			return n
		}
	}
	return n
}

// Dropped число отброшенных событий
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}
