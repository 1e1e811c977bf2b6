package physics

import (
	"fmt"
	"log"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/world"
)

// BindKind что именно привязано к сущности
type BindKind int

const (
	BindNone BindKind = iota
	BindImpostor
	BindMeshCollider
)

func (k BindKind) String() string {
	switch k {
	case BindImpostor:
		return "impostor"
	case BindMeshCollider:
		return "meshCollider"
	}
	return "none"
}

// Binder привязывает физическое поведение к сущностям по их дескрипторам
type Binder struct {
	world  World
	logger *log.Logger
}

// NewBinder создает привязчик. w == nil означает, что физика отключена глобально.
func NewBinder(w World, logger *log.Logger) *Binder {
	if logger == nil {
		logger = log.Default()
	}
	return &Binder{world: w, logger: logger}
}

// Enabled физический мир доступен
func (b *Binder) Enabled() bool {
	return b.world != nil
}

// World текущий физический мир
func (b *Binder) World() World {
	return b.world
}

// Bind применяет правило: нет мира или физика выключена - ничего; meshCollider или
// isCollider на импортированном меше - сырой треугольный коллайдер; иначе импостор.
// Существующее тело удаляется перед созданием нового.
func (b *Binder) Bind(e *world.Entity, d *scene.PhysicsDescriptor) (BindKind, error) {
	if b.world == nil || d == nil || !d.Enabled {
		return BindNone, nil
	}

	b.Unbind(e)

	if d.Impostor == scene.ImpostorMeshCollider || (d.IsCollider && e.IsImportedMesh()) {
		if err := b.bindMeshCollider(e, d); err != nil {
			return BindNone, err
		}
		return BindMeshCollider, nil
	}

	if err := b.bindImpostor(e, d); err != nil {
		return BindNone, err
	}
	return BindImpostor, nil
}

// Unbind удаляет тело сущности, если оно есть
func (b *Binder) Unbind(e *world.Entity) {
	if e.Body == nil {
		return
	}
	if b.world != nil {
		b.world.RemoveBody(e.Body)
	} else {
		e.Body.Dispose()
	}
	e.Body = nil
}

func (b *Binder) bindMeshCollider(e *world.Entity, d *scene.PhysicsDescriptor) error {
	if err := e.Mesh.Validate(); err != nil {
		return fmt.Errorf("mesh collider for %s: %w", e.ID, err)
	}

	scale := e.WorldScale()
	vertices := make([]mgl64.Vec3, e.Mesh.VertexCount())
	for i := range vertices {
		v := e.Mesh.Vertex(i)
		vertices[i] = mgl64.Vec3{v.X() * scale.X(), v.Y() * scale.Y(), v.Z() * scale.Z()}
	}

	body, err := b.world.CreateMeshCollider(MeshColliderOptions{
		ID:       e.ID,
		Position: e.WorldPosition(),
		Rotation: e.WorldRotation(),
		Vertices: vertices,
		Indices:  e.Mesh.Indices,
		Friction: d.Friction,
	})
	if err != nil {
		return fmt.Errorf("mesh collider for %s: %w", e.ID, err)
	}
	e.Body = body

	b.logger.Printf("[Physics] mesh collider for %s: %d triangles", e.ID, len(e.Mesh.Indices)/3)
	return nil
}

func (b *Binder) bindImpostor(e *world.Entity, d *scene.PhysicsDescriptor) error {
	impostor := d.Impostor
	if impostor == "" {
		impostor = scene.ImpostorBox
	}

	scale := e.WorldScale()
	half := mgl64.Vec3{0.5, 0.5, 0.5}
	center := e.WorldPosition()
	if e.Mesh != nil && e.Mesh.VertexCount() > 0 {
		half = e.Mesh.HalfExtents()
	}
	half = mgl64.Vec3{half.X() * scale.X(), half.Y() * scale.Y(), half.Z() * scale.Z()}

	body, err := b.world.CreateBody(BodyOptions{
		ID:          e.ID,
		Position:    center,
		Shape:       Shape{Impostor: impostor, HalfExtents: half},
		Mass:        d.EffectiveMass(),
		Restitution: d.Restitution,
		Friction:    d.Friction,
		Sensor:      d.IsTrigger,
	})
	if err != nil {
		return fmt.Errorf("impostor for %s: %w", e.ID, err)
	}
	e.Body = body
	return nil
}

// SyncEntities переносит позиции динамических тел в сущности после шага симуляции
func SyncEntities(entities []*world.Entity) {
	for _, e := range entities {
		if e.Body == nil || e.Body.Mass() <= 0 {
			continue
		}
		e.SetWorldPosition(e.Body.Position())
	}
}
