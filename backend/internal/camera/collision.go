package camera

import (
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/config"
	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/world"
)

const (
	DefaultCollisionDistance = 2.0
	DefaultCushion           = 0.2

	// частота проверок в кадрах
	fastCheckInterval = 2
	slowCheckInterval = 15

	// кадров без движения до перехода на редкие проверки и до полной остановки
	slowAfterFrames = 30
	stopAfterFrames = 120

	// смещение глаза или цели за кадр, считающееся движением
	movementThreshold  = 0.01
	snapEpsilon        = 1e-3
	minSolidVisibility = 0.5
	gridCellSize       = 4.0
)

type collidingCamera struct {
	camera   *world.Entity
	distance float64
	cushion  float64

	frame        int
	staticFrames int
	checked      bool
	lastEye      mgl64.Vec3
	lastTarget   mgl64.Vec3

	colliding bool
	goal      float64
	current   float64
}

// CollisionManager не дает орбитальным и свободным камерам уходить за твердую геометрию.
// Меняет только текущую дистанцию; желаемая остается за пользователем.
type CollisionManager struct {
	manager *world.Manager
	grid    *SpatialGrid
	cameras []*collidingCamera
	cfg     config.CameraConfig
	logger  *log.Logger

	checks int
	casts  int
}

func NewCollisionManager(manager *world.Manager, cfg config.CameraConfig, logger *log.Logger) *CollisionManager {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.CollisionEase <= 0 || cfg.CollisionEase > 1 {
		cfg.CollisionEase = 0.3
	}
	if cfg.MinRadius <= 0 {
		cfg.MinRadius = 0.1
	}
	return &CollisionManager{
		manager: manager,
		grid:    NewSpatialGrid(gridCellSize),
		cfg:     cfg,
		logger:  logger,
	}
}

// Initialize строит кэш твердых мешей и регистрирует камеры с включенными столкновениями
func (cm *CollisionManager) Initialize() int {
	cm.Refresh()

	cm.cameras = cm.cameras[:0]
	for _, e := range cm.manager.GetAllEntities() {
		if e.Camera == nil || e.Node == nil || e.Node.Camera == nil {
			continue
		}
		d := e.Node.Camera.Collision
		if d == nil || !d.Enabled {
			continue
		}
		cc := &collidingCamera{
			camera:   e,
			distance: DefaultCollisionDistance,
			cushion:  DefaultCushion,
			current:  e.Camera.Radius,
			goal:     e.Camera.Radius,
		}
		if d.Distance > 0 {
			cc.distance = d.Distance
		}
		if d.Cushion > 0 {
			cc.cushion = d.Cushion
		}
		cm.cameras = append(cm.cameras, cc)
	}

	cm.logger.Printf("[CameraCollision] %d cameras, %d solid meshes cached", len(cm.cameras), cm.grid.Count())
	return len(cm.cameras)
}

// Refresh перестраивает кэш твердых мешей
func (cm *CollisionManager) Refresh() {
	cm.grid = NewSpatialGrid(gridCellSize)

	excluded := make(map[*world.Entity]bool)
	for _, e := range cm.manager.GetAllEntities() {
		if movable(e) {
			markSubtree(e, excluded)
		}
	}

	for _, e := range cm.manager.GetAllEntities() {
		if excluded[e] || !isSolid(e) {
			continue
		}
		center, radius, ok := e.BoundingSphere()
		if !ok {
			continue
		}
		cm.grid.Add(&solidMesh{Entity: e, Center: center, Radius: radius})
	}
}

// movable сущности, которые двигаются сами и не могут служить препятствием
func movable(e *world.Entity) bool {
	if e.Node == nil {
		return false
	}
	if e.Node.InputControl != nil {
		return true
	}
	p := e.Node.Physics
	return p != nil && p.Enabled && p.Type == scene.PhysicsDynamic && p.EffectiveMass() > 0
}

func markSubtree(e *world.Entity, set map[*world.Entity]bool) {
	set[e] = true
	for _, c := range e.Children() {
		markSubtree(c, set)
	}
}

func isSolid(e *world.Entity) bool {
	if e.Mesh == nil || !e.Enabled || !e.Visible {
		return false
	}
	if e.Node == nil || e.Node.Mesh == nil {
		return true
	}
	d := e.Node.Mesh
	return d.IsPickable() && !d.NonSolid && d.EffectiveVisibility() > minSolidVisibility
}

// Update проверяет камеры по расписанию и вносит текущие дистанции в конвейер
func (cm *CollisionManager) Update(p *Pipeline) {
	for _, cc := range cm.cameras {
		if !cc.camera.Enabled || cc.camera.Camera == nil {
			continue
		}
		cm.updateCamera(cc, p)
	}
}

func (cm *CollisionManager) updateCamera(cc *collidingCamera, p *Pipeline) {
	cam := cc.camera.Camera
	target := p.Target(cc.camera)

	var desiredEye mgl64.Vec3
	if cam.Orbits() {
		desiredEye = target.Add(world.OrbitOffset(cam.Alpha, cam.Beta, cam.DesiredRadius))
	} else {
		// у свободной камеры желаемая дистанция - расстояние от ее позиции до цели
		desiredEye = cc.camera.WorldPosition()
		cam.DesiredRadius = desiredEye.Sub(target).Len()
	}
	desired := cam.DesiredRadius

	moved := !cc.checked ||
		desiredEye.Sub(cc.lastEye).Len() > movementThreshold ||
		target.Sub(cc.lastTarget).Len() > movementThreshold
	resumed := moved && cc.staticFrames > 0
	if moved {
		cc.staticFrames = 0
	} else {
		cc.staticFrames++
	}
	cc.lastEye, cc.lastTarget = desiredEye, target
	cc.frame++

	// движущаяся камера проверяется с частотой fastCheckInterval, сразу только в начале движения
	if !cc.checked || resumed || cm.scheduled(cc) {
		cc.checked = true
		cm.checks++
		if d, hit := cm.cast(cc, target, desiredEye, desired); hit {
			cc.goal = math.Max(cm.cfg.MinRadius, d-cc.cushion)
			cc.colliding = true
		} else {
			cc.colliding = false
		}
	}

	if !cc.colliding {
		cc.goal = desired
	}
	cc.goal = math.Min(cc.goal, desired)

	cc.current += (cc.goal - cc.current) * cm.cfg.CollisionEase
	if math.Abs(cc.goal-cc.current) < snapEpsilon {
		cc.current = cc.goal
	}
	cc.current = math.Min(cc.current, desired)

	p.SetRadius(cc.camera, cc.current)
}

// scheduled проверка по адаптивному расписанию
func (cm *CollisionManager) scheduled(cc *collidingCamera) bool {
	switch {
	case cc.colliding || cc.staticFrames < slowAfterFrames:
		return cc.frame%fastCheckInterval == 0
	case cc.staticFrames < stopAfterFrames:
		return cc.frame%slowCheckInterval == 0
	}
	return false
}

// cast луч от цели к желаемой позиции. Возвращает ближайшее пересечение.
func (cm *CollisionManager) cast(cc *collidingCamera, target, desiredEye mgl64.Vec3, desired float64) (float64, bool) {
	if !cm.near(cc, desiredEye) {
		return 0, false
	}

	toEye := desiredEye.Sub(target)
	length := toEye.Len()
	if length < snapEpsilon {
		return 0, false
	}
	dir := toEye.Mul(1 / length)
	maxDist := math.Min(length, desired)

	best, hit := maxDist, false
	for _, m := range cm.grid.All() {
		e := m.Entity
		if !e.Enabled || !e.Visible {
			continue
		}
		if !world.RaySphere(target, dir, m.Center, m.Radius, best) {
			continue
		}
		cm.casts++
		if t, ok := e.IntersectRay(target, dir, best); ok && t < best {
			best, hit = t, true
		}
	}
	return best, hit
}

// near глаз лежит в пределах distance + радиус хотя бы одного меша
func (cm *CollisionManager) near(cc *collidingCamera, eye mgl64.Vec3) bool {
	for _, m := range cm.grid.Nearby(eye, cc.distance+cm.grid.CellSize) {
		if m.Center.Sub(eye).Len() <= cc.distance+m.Radius {
			return true
		}
	}
	return false
}

// Colliding камера сейчас ограничена препятствием
func (cm *CollisionManager) Colliding(cam *world.Entity) bool {
	for _, cc := range cm.cameras {
		if cc.camera == cam {
			return cc.colliding
		}
	}
	return false
}

// Stats счетчики проверок и точных пересечений
func (cm *CollisionManager) Stats() (checks, casts int) {
	return cm.checks, cm.casts
}

// SolidCount число закэшированных мешей
func (cm *CollisionManager) SolidCount() int {
	return cm.grid.Count()
}

// Count число камер со столкновениями
func (cm *CollisionManager) Count() int {
	return len(cm.cameras)
}
