package audio

import (
	"log"
	"math"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/world"
)

// volumeEpsilon изменения громкости меньше этого в приемник не передаются
const volumeEpsilon = 1e-3

// Sink внешнее воспроизведение звука
type Sink interface {
	Play(id string, a world.Audio)
	SetVolume(id string, volume float64)
	Stop(id string)
}

// Attenuate закон затухания: полная громкость внутри ref, линейный спад до max
func Attenuate(base, distance, ref, maxDistance float64) float64 {
	if distance <= ref {
		return base
	}
	if maxDistance <= ref {
		return 0
	}
	return base * mgl64.Clamp(1-(distance-ref)/(maxDistance-ref), 0, 1)
}

// Manager пересчитывает громкость пространственных источников относительно активной камеры
type Manager struct {
	entities *world.Manager
	sink     Sink
	sources  []*world.Entity
	logger   *log.Logger
}

func NewManager(entities *world.Manager, sink Sink, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	if sink == nil {
		sink = NewMemorySink()
	}
	return &Manager{entities: entities, sink: sink, logger: logger}
}

// Initialize собирает источники и запускает autoplay
func (m *Manager) Initialize() int {
	m.sources = m.entities.Filter(func(e *world.Entity) bool { return e.Audio != nil })
	for _, e := range m.sources {
		if e.Audio.Playing {
			m.sink.Play(e.ID, *e.Audio)
		}
	}
	m.logger.Printf("[Audio] %d sources", len(m.sources))
	return len(m.sources)
}

// Update один кадр
func (m *Manager) Update() {
	cam, ok := m.entities.ActiveCamera()
	if !ok {
		return
	}
	listener := cam.Camera.Eye(cam)

	for _, e := range m.sources {
		a := e.Audio
		volume := a.BaseVolume
		if a.Spatial {
			d := e.WorldPosition().Sub(listener).Len()
			volume = Attenuate(a.BaseVolume, d, a.RefDistance, a.MaxDistance)
		}
		if !e.Enabled {
			volume = 0
		}
		if math.Abs(volume-a.Volume) < volumeEpsilon {
			continue
		}
		a.Volume = volume
		if a.Playing {
			m.sink.SetVolume(e.ID, volume)
		}
	}
}

// Play запускает источник
func (m *Manager) Play(e *world.Entity) {
	if e.Audio == nil || e.Audio.Playing {
		return
	}
	e.Audio.Playing = true
	m.sink.Play(e.ID, *e.Audio)
}

// Dispose останавливает все играющие источники
func (m *Manager) Dispose() {
	for _, e := range m.sources {
		if e.Audio.Playing {
			e.Audio.Playing = false
			m.sink.Stop(e.ID)
		}
	}
	m.sources = nil
}

// MemorySink приемник, хранящий состояние в памяти
type MemorySink struct {
	playing map[string]float64
	mu      sync.RWMutex
}

func NewMemorySink() *MemorySink {
	return &MemorySink{playing: make(map[string]float64)}
}

func (s *MemorySink) Play(id string, a world.Audio) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing[id] = a.Volume
}

func (s *MemorySink) SetVolume(id string, volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.playing[id]; ok {
		s.playing[id] = volume
	}
}

func (s *MemorySink) Stop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.playing, id)
}

// Volume громкость играющего источника
func (s *MemorySink) Volume(id string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.playing[id]
	return v, ok
}

// Playing id играющих источников
func (s *MemorySink) Playing() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.playing))
	for id := range s.playing {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
