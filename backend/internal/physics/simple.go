package physics

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/world"
)

const restingSpeed = 0.05

// rigidBody тело встроенной симуляции
type rigidBody struct {
	id          string
	position    mgl64.Vec3
	velocity    mgl64.Vec3
	angular     mgl64.Vec3
	halfExtents mgl64.Vec3
	mass        float64
	restitution float64
	friction    float64
	sensor      bool
	impostor    scene.Impostor

	// треугольники коллайдера в мировых координатах
	triangles []mgl64.Vec3
	bmin      mgl64.Vec3
	bmax      mgl64.Vec3

	owner    *SimpleWorld
	disposed bool
}

func (b *rigidBody) ID() string                      { return b.id }
func (b *rigidBody) Position() mgl64.Vec3            { return b.position }
func (b *rigidBody) SetPosition(p mgl64.Vec3)        { b.position = p }
func (b *rigidBody) LinearVelocity() mgl64.Vec3      { return b.velocity }
func (b *rigidBody) AngularVelocity() mgl64.Vec3     { return b.angular }
func (b *rigidBody) SetAngularVelocity(v mgl64.Vec3) { b.angular = v }
func (b *rigidBody) Mass() float64                   { return b.mass }
func (b *rigidBody) IsSensor() bool                  { return b.sensor }
func (b *rigidBody) isDynamic() bool                 { return b.mass > 0 }
func (b *rigidBody) isMeshCollider() bool            { return b.triangles != nil }
func (b *rigidBody) SetLinearVelocity(v mgl64.Vec3)  { b.velocity = v }

// ApplyImpulse мгновенно меняет скорость на impulse/mass
func (b *rigidBody) ApplyImpulse(impulse mgl64.Vec3) {
	if b.mass <= 0 {
		return
	}
	b.velocity = b.velocity.Add(impulse.Mul(1 / b.mass))
}

// Dispose удаляет тело из мира
func (b *rigidBody) Dispose() {
	if b.disposed {
		return
	}
	b.owner.RemoveBody(b)
}

func (b *rigidBody) aabb() (mgl64.Vec3, mgl64.Vec3) {
	if b.isMeshCollider() {
		return b.bmin, b.bmax
	}
	return b.position.Sub(b.halfExtents), b.position.Add(b.halfExtents)
}

// SimpleWorld встроенный движок: полунеявный Эйлер, гравитация,
// AABB-контакты со статическими телами, опора на треугольные коллайдеры
// через луч вниз. Сенсоры ни с чем не сталкиваются.
type SimpleWorld struct {
	cfg    *SimulationConfig
	bodies []*rigidBody
	mu     sync.Mutex
	logger *log.Logger
	nextID uint64
}

// NewSimpleWorld создает мир с данной конфигурацией (nil - глобальная)
func NewSimpleWorld(cfg *SimulationConfig, logger *log.Logger) *SimpleWorld {
	if cfg == nil {
		cfg = GetSimulationConfig()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SimpleWorld{cfg: cfg, logger: logger}
}

func (w *SimpleWorld) Gravity() mgl64.Vec3 {
	return w.cfg.Gravity
}

func (w *SimpleWorld) SetGravity(g mgl64.Vec3) {
	w.cfg.Gravity = g
}

func (w *SimpleWorld) BodyCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.bodies)
}

func (w *SimpleWorld) bodyID(id string) string {
	w.nextID++
	if id == "" {
		return fmt.Sprintf("body-%d", w.nextID)
	}
	return id
}

// CreateBody создает тело-импостор
func (w *SimpleWorld) CreateBody(opts BodyOptions) (world.Body, error) {
	switch opts.Shape.Impostor {
	case scene.ImpostorBox, scene.ImpostorSphere, scene.ImpostorCapsule, scene.ImpostorCylinder,
		scene.ImpostorMesh, scene.ImpostorConvexHull:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedShape, opts.Shape.Impostor)
	}

	half := opts.Shape.HalfExtents
	for i := 0; i < 3; i++ {
		half[i] = math.Max(math.Abs(half[i]), 0.01)
	}
	friction := opts.Friction
	if friction <= 0 {
		friction = w.cfg.Friction
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	b := &rigidBody{
		id:          w.bodyID(opts.ID),
		position:    opts.Position,
		halfExtents: half,
		mass:        math.Max(opts.Mass, 0),
		restitution: opts.Restitution,
		friction:    friction,
		sensor:      opts.Sensor,
		impostor:    opts.Shape.Impostor,
		owner:       w,
	}
	w.bodies = append(w.bodies, b)
	return b, nil
}

// CreateMeshCollider вставляет статическое тело из треугольников напрямую
func (w *SimpleWorld) CreateMeshCollider(opts MeshColliderOptions) (world.Body, error) {
	if len(opts.Vertices) < 3 || len(opts.Indices) < 3 {
		return nil, world.ErrMissingGeometry
	}

	rot := opts.Rotation
	if rot.Len() == 0 {
		rot = mgl64.QuatIdent()
	}

	var tris []mgl64.Vec3
	n := uint32(len(opts.Vertices))
	bmin := mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	bmax := mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for i := 0; i+2 < len(opts.Indices); i += 3 {
		if opts.Indices[i] >= n || opts.Indices[i+1] >= n || opts.Indices[i+2] >= n {
			continue
		}
		for k := 0; k < 3; k++ {
			v := opts.Position.Add(rot.Rotate(opts.Vertices[opts.Indices[i+k]]))
			tris = append(tris, v)
			for a := 0; a < 3; a++ {
				bmin[a] = math.Min(bmin[a], v[a])
				bmax[a] = math.Max(bmax[a], v[a])
			}
		}
	}
	if len(tris) == 0 {
		return nil, world.ErrMissingGeometry
	}

	friction := opts.Friction
	if friction <= 0 {
		friction = w.cfg.Friction
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	b := &rigidBody{
		id:        w.bodyID(opts.ID),
		position:  opts.Position,
		friction:  friction,
		impostor:  scene.ImpostorMeshCollider,
		triangles: tris,
		bmin:      bmin,
		bmax:      bmax,
		owner:     w,
	}
	w.bodies = append(w.bodies, b)
	return b, nil
}

// RemoveBody удаляет тело; повторное удаление безопасно
func (w *SimpleWorld) RemoveBody(body world.Body) {
	rb, ok := body.(*rigidBody)
	if !ok || rb.owner != w {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for i, b := range w.bodies {
		if b == rb {
			w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
			break
		}
	}
	rb.disposed = true
}

// Step продвигает симуляцию на dt, разбивая длинные шаги
func (w *SimpleWorld) Step(dt time.Duration) {
	total := dt.Seconds()
	if total <= 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	steps := int(math.Ceil(total / w.cfg.MaxStep))
	if steps < 1 {
		steps = 1
	}
	h := total / float64(steps)
	for i := 0; i < steps; i++ {
		w.integrate(h)
	}
}

func (w *SimpleWorld) integrate(h float64) {
	linearKeep := math.Max(0, 1-w.cfg.LinearDamping*h)
	angularKeep := math.Max(0, 1-w.cfg.AngularDamping*h)

	for _, b := range w.bodies {
		if !b.isDynamic() {
			continue
		}
		b.velocity = b.velocity.Add(w.cfg.Gravity.Mul(h)).Mul(linearKeep)
		b.angular = b.angular.Mul(angularKeep)
		b.position = b.position.Add(b.velocity.Mul(h))

		if b.sensor {
			continue
		}
		grounded := false
		for _, other := range w.bodies {
			if other == b || other.sensor || other.isDynamic() {
				continue
			}
			if other.isMeshCollider() {
				grounded = w.groundOnMesh(b, other) || grounded
				continue
			}
			grounded = w.resolveBox(b, other) || grounded
		}
		if grounded {
			w.applyFriction(b, h)
		}
	}
}

// resolveBox выталкивает b из статического тела по оси минимального проникновения.
// Возвращает true, если b опирается на верх тела.
func (w *SimpleWorld) resolveBox(b, s *rigidBody) bool {
	amin, amax := b.aabb()
	bmin, bmax := s.aabb()

	var depth [3]float64
	for a := 0; a < 3; a++ {
		overlap := math.Min(amax[a], bmax[a]) - math.Max(amin[a], bmin[a])
		if overlap <= 0 {
			return false
		}
		depth[a] = overlap
	}

	axis := 0
	for a := 1; a < 3; a++ {
		if depth[a] < depth[axis] {
			axis = a
		}
	}

	sign := 1.0
	if b.position[axis] < s.position[axis] {
		sign = -1
	}
	b.position[axis] += sign * depth[axis]

	if b.velocity[axis]*sign < 0 {
		bounce := -b.velocity[axis] * math.Max(b.restitution, s.restitution)
		if math.Abs(bounce) < restingSpeed*10 {
			bounce = 0
		}
		b.velocity[axis] = bounce
	}
	return axis == 1 && sign > 0
}

// groundOnMesh опускает луч из точки чуть выше низа тела и ставит тело на поверхность
func (w *SimpleWorld) groundOnMesh(b, m *rigidBody) bool {
	amin, amax := b.aabb()
	if amax[0] < m.bmin[0] || amin[0] > m.bmax[0] || amax[2] < m.bmin[2] || amin[2] > m.bmax[2] {
		return false
	}
	if b.velocity.Y() > restingSpeed {
		return false
	}

	bottom := b.position.Y() - b.halfExtents.Y()
	origin := mgl64.Vec3{b.position.X(), bottom + w.cfg.GroundProbe, b.position.Z()}
	down := mgl64.Vec3{0, -1, 0}

	best := math.Inf(1)
	for i := 0; i+2 < len(m.triangles); i += 3 {
		if t, ok := world.RayTriangle(origin, down, m.triangles[i], m.triangles[i+1], m.triangles[i+2]); ok && t < best {
			best = t
		}
	}
	if math.IsInf(best, 1) {
		return false
	}

	surface := origin.Y() - best
	if surface < bottom {
		return false
	}
	b.position[1] = surface + b.halfExtents.Y()
	if b.velocity.Y() < 0 {
		b.velocity[1] = 0
	}
	return true
}

func (w *SimpleWorld) applyFriction(b *rigidBody, h float64) {
	keep := math.Max(0, 1-b.friction*h)
	b.velocity[0] *= keep
	b.velocity[2] *= keep
}
