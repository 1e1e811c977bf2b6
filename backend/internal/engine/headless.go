package engine

import (
	"fmt"
	"log"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/world"
)

// HeadlessRenderer рендерер без вывода: ведет учет сущностей и кадров
type HeadlessRenderer struct {
	mu        sync.RWMutex
	entities  map[string]scene.Kind
	settings  scene.Settings
	frames    uint64
	lastEye   mgl64.Vec3
	lastFrame Frame
	logger    *log.Logger

	// OnRender вызывается внутри Render, если задан
	OnRender func(f Frame)
}

// NewHeadlessRenderer создает рендерер
func NewHeadlessRenderer(logger *log.Logger) *HeadlessRenderer {
	if logger == nil {
		logger = log.Default()
	}
	return &HeadlessRenderer{
		entities: make(map[string]scene.Kind),
		logger:   logger,
	}
}

func (r *HeadlessRenderer) AddEntity(e *world.Entity) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("headless: entity without id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[e.ID] = e.Kind
	return nil
}

func (r *HeadlessRenderer) RemoveEntity(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entities, id)
}

func (r *HeadlessRenderer) ApplySettings(s scene.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = s
	if s.Fog != nil {
		r.logger.Printf("[Renderer] fog %s density %.3f", s.Fog.Mode, s.Fog.Density)
	}
	return nil
}

func (r *HeadlessRenderer) Render(f Frame) error {
	r.mu.Lock()
	r.frames++
	r.lastEye = f.Eye
	r.lastFrame = f
	hook := r.OnRender
	r.mu.Unlock()

	if hook != nil {
		hook(f)
	}
	return nil
}

// EntityCount количество сущностей в рендерере
func (r *HeadlessRenderer) EntityCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// Has сущность добавлена
func (r *HeadlessRenderer) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entities[id]
	return ok
}

// Frames количество отрисованных кадров
func (r *HeadlessRenderer) Frames() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frames
}

// LastEye позиция камеры в последнем кадре
func (r *HeadlessRenderer) LastEye() mgl64.Vec3 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastEye
}

// Settings последние примененные настройки сцены
func (r *HeadlessRenderer) Settings() scene.Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}
