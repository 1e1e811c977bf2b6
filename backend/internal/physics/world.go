package physics

import (
	"errors"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/world"
)

var (
	// ErrUnavailable физический движок не инициализирован
	ErrUnavailable = errors.New("physics: engine unavailable")
	// ErrUnsupportedShape форма не поддерживается движком
	ErrUnsupportedShape = errors.New("physics: unsupported shape")
)

// Shape форма обобщенного импостора
type Shape struct {
	Impostor    scene.Impostor
	HalfExtents mgl64.Vec3
}

// BodyOptions параметры создания тела-импостора
type BodyOptions struct {
	ID          string
	Position    mgl64.Vec3
	Shape       Shape
	Mass        float64
	Restitution float64
	Friction    float64
	Sensor      bool
}

// MeshColliderOptions параметры статического треугольного коллайдера.
// Vertices уже умножены на масштаб сущности.
type MeshColliderOptions struct {
	ID       string
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Vertices []mgl64.Vec3
	Indices  []uint32
	Friction float64
}

// World граница физического движка
type World interface {
	CreateBody(opts BodyOptions) (world.Body, error)
	CreateMeshCollider(opts MeshColliderOptions) (world.Body, error)
	RemoveBody(b world.Body)
	Step(dt time.Duration)
	Gravity() mgl64.Vec3
	BodyCount() int
}
