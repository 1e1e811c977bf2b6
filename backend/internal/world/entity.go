package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/scene"
)

// Entity живая сущность сцены
type Entity struct {
	ID       string
	Name     string
	Kind     scene.Kind
	StableID string

	// Node исходное описание; только для чтения
	Node *scene.Node

	Local   Transform
	Control ControlState

	Visible bool
	Enabled bool

	Body       Body
	Mesh       *Geometry
	Camera     *Camera
	Light      *Light
	Audio      *Audio
	SpatialUI  *SpatialUI
	Particle   *Particle
	Animations *AnimationSet

	parent   *Entity
	children []*Entity
}

// NewEntity создает сущность по узлу сцены
func NewEntity(node *scene.Node) *Entity {
	return &Entity{
		ID:      node.ID,
		Name:    node.DisplayName(),
		Kind:    node.Kind,
		Node:    node,
		Local:   TransformFromScene(node.Transform),
		Visible: node.IsVisible(),
		Enabled: node.IsEnabled(),
	}
}

// Parent родитель сущности, nil для корневой
func (e *Entity) Parent() *Entity {
	return e.parent
}

// Children дочерние сущности в порядке присоединения
func (e *Entity) Children() []*Entity {
	out := make([]*Entity, len(e.children))
	copy(out, e.children)
	return out
}

// HasChildren есть ли дочерние сущности
func (e *Entity) HasChildren() bool {
	return len(e.children) > 0
}

// SetParent перевешивает сущность в иерархии. Локальная трансформация не меняется.
func (e *Entity) SetParent(parent *Entity) {
	if e.parent == parent || parent == e {
		return
	}
	if e.parent != nil {
		siblings := e.parent.children
		for i, c := range siblings {
			if c == e {
				e.parent.children = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
	}
	e.parent = parent
	if parent != nil {
		parent.children = append(parent.children, e)
	}
}

// WorldMatrix мировая матрица: parent.World * Local
func (e *Entity) WorldMatrix() mgl64.Mat4 {
	local := e.Local.Matrix()
	if e.parent == nil {
		return local
	}
	return e.parent.WorldMatrix().Mul4(local)
}

// WorldPosition позиция в мировых координатах
func (e *Entity) WorldPosition() mgl64.Vec3 {
	return e.WorldMatrix().Col(3).Vec3()
}

// WorldScale масштаб в мировых координатах
func (e *Entity) WorldScale() mgl64.Vec3 {
	x, y, z := mgl64.Extract3DScale(e.WorldMatrix())
	return mgl64.Vec3{x, y, z}
}

// WorldRotation мировой поворот без учета масштаба
func (e *Entity) WorldRotation() mgl64.Quat {
	local := e.Local.Quat()
	if e.parent == nil {
		return local
	}
	return e.parent.WorldRotation().Mul(local).Normalize()
}

// SetWorldPosition задает мировую позицию, пересчитывая ее в систему родителя
func (e *Entity) SetWorldPosition(p mgl64.Vec3) {
	if e.parent == nil {
		e.Local.Position = p
		return
	}
	inv := e.parent.WorldMatrix().Inv()
	e.Local.Position = mgl64.TransformCoordinate(p, inv)
}

// IsImportedMesh сущность - под-меш импортированной модели, а не примитив
func (e *Entity) IsImportedMesh() bool {
	if e.Mesh == nil {
		return false
	}
	return e.Node == nil || e.Node.Mesh == nil || !e.Node.Mesh.IsPrimitive()
}

// BoundingSphere мировая ограничивающая сфера меша
func (e *Entity) BoundingSphere() (center mgl64.Vec3, radius float64, ok bool) {
	if e.Mesh == nil {
		return mgl64.Vec3{}, 0, false
	}
	m := e.WorldMatrix()
	center = mgl64.TransformCoordinate(e.Mesh.Center, m)
	x, y, z := mgl64.Extract3DScale(m)
	return center, e.Mesh.Radius * max(x, y, z), true
}

// IntersectRay пересечение мирового луча с геометрией сущности
func (e *Entity) IntersectRay(origin, dir mgl64.Vec3, maxDistance float64) (float64, bool) {
	if e.Mesh == nil {
		return 0, false
	}
	return e.Mesh.IntersectRay(e.WorldMatrix(), origin, dir, maxDistance)
}
