package telemetry

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Vector3 вектор в формате телеметрии
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FromVec переводит вектор mgl64
func FromVec(v mgl64.Vec3) Vector3 {
	return Vector3{X: v.X(), Y: v.Y(), Z: v.Z()}
}

// Sample состояние управляемой сущности за один кадр
type Sample struct {
	Timestamp int64    `json:"timestamp"` // Время в миллисекундах
	EntityID  string   `json:"entity_id"`
	State     string   `json:"state"`     // idle | moving
	Animation string   `json:"animation"` // Играющая анимация
	Position  Vector3  `json:"position"`
	Velocity  Vector3  `json:"velocity"`
	Speed     float64  `json:"speed"` // Горизонтальная скорость
	Yaw       float64  `json:"yaw"`
	Airborne  bool     `json:"airborne"`
	Physics   bool     `json:"physics"`
	Impulse   *Vector3 `json:"impulse,omitempty"`
}

// Recorder кольцевой буфер телеметрии передвижения с периодической сводкой в лог
type Recorder struct {
	enabled   bool
	data      []Sample
	head      int
	full      bool
	mutex     sync.RWMutex
	counters  map[string]int
	lastPrint time.Time
	interval  time.Duration
	logger    *log.Logger
}

// NewRecorder создает буфер на capacity записей
func NewRecorder(capacity int, interval time.Duration, logger *log.Logger) *Recorder {
	if capacity <= 0 {
		capacity = 200
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{
		enabled:   true,
		data:      make([]Sample, capacity),
		counters:  make(map[string]int),
		lastPrint: time.Now(),
		interval:  interval,
		logger:    logger,
	}
}

// Record добавляет запись, вытесняя самую старую
func (r *Recorder) Record(s Sample) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.enabled {
		return
	}
	if s.Timestamp == 0 {
		s.Timestamp = time.Now().UnixMilli()
	}
	s.Speed = horizontalSpeed(s.Velocity)

	r.data[r.head] = s
	r.head = (r.head + 1) % len(r.data)
	if r.head == 0 {
		r.full = true
	}

	r.counters[s.State]++
	if s.Impulse != nil {
		r.counters["impulse"]++
	}
}

// Samples записи от старых к новым
func (r *Recorder) Samples() []Sample {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.full {
		out := make([]Sample, r.head)
		copy(out, r.data[:r.head])
		return out
	}
	out := make([]Sample, 0, len(r.data))
	out = append(out, r.data[r.head:]...)
	return append(out, r.data[:r.head]...)
}

// Last последняя запись
func (r *Recorder) Last() (Sample, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.full && r.head == 0 {
		return Sample{}, false
	}
	i := (r.head - 1 + len(r.data)) % len(r.data)
	return r.data[i], true
}

// Counters число записей по состояниям
func (r *Recorder) Counters() map[string]int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make(map[string]int, len(r.counters))
	for k, v := range r.counters {
		out[k] = v
	}
	return out
}

// PrintSummary пишет сводку не чаще одного раза за интервал. Возвращает true, если написал.
func (r *Recorder) PrintSummary(now time.Time) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.enabled || now.Sub(r.lastPrint) < r.interval {
		return false
	}

	for key, count := range r.counters {
		r.logger.Printf("[Telemetry] %s: %d", key, count)
	}
	if !r.full && r.head == 0 {
		r.logger.Printf("[Telemetry] no samples")
	} else {
		last := r.data[(r.head-1+len(r.data))%len(r.data)]
		r.logger.Printf("[Telemetry] %s %s (%s) pos=(%.2f, %.2f, %.2f) speed=%.2f airborne=%t",
			last.EntityID, last.State, last.Animation,
			last.Position.X, last.Position.Y, last.Position.Z, last.Speed, last.Airborne)
	}

	r.counters = make(map[string]int)
	r.lastPrint = now
	return true
}

// JSON записи в формате JSON
func (r *Recorder) JSON() ([]byte, error) {
	return json.Marshal(r.Samples())
}

// SetEnabled включает или выключает запись
func (r *Recorder) SetEnabled(enabled bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.enabled = enabled
}

// Clear очищает буфер и счетчики
func (r *Recorder) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.head, r.full = 0, false
	r.counters = make(map[string]int)
}

func horizontalSpeed(v Vector3) float64 {
	return mgl64.Vec2{v.X, v.Z}.Len()
}
