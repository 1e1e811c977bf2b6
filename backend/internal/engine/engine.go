package engine

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/world"
)

// Frame данные одного кадра для рендера
type Frame struct {
	Tick       uint64
	Delta      time.Duration
	Camera     *world.Entity
	Eye        mgl64.Vec3
	View       mgl64.Mat4
	Projection mgl64.Mat4
}

// Renderer непрозрачный графический бэкенд
type Renderer interface {
	AddEntity(e *world.Entity) error
	RemoveEntity(id string)
	ApplySettings(s scene.Settings) error
	Render(frame Frame) error
}

// AssetLoader загрузка импортируемых моделей
type AssetLoader interface {
	LoadModel(ctx context.Context, source string) (*Model, error)
}
