package game

import (
	"log"
	"time"

	"x-scene/backend/internal/audio"
	"x-scene/backend/internal/camera"
	"x-scene/backend/internal/config"
	"x-scene/backend/internal/control"
	"x-scene/backend/internal/engine"
	"x-scene/backend/internal/logic"
	"x-scene/backend/internal/physics"
	"x-scene/backend/internal/spatialui"
	"x-scene/backend/internal/telemetry"
	"x-scene/backend/internal/world"
)

// Приоритеты систем задают порядок кадра
const (
	PriorityInputDrain      = 5
	PriorityInputControl    = 10
	PriorityPhysics         = 15
	PriorityLogic           = 20
	PriorityCameraTracking  = 30
	PriorityCameraCollision = 35
	PriorityCameraShake     = 40
	PriorityRender          = 50
	PrioritySpatialUI       = 60
	PriorityAudio           = 70
	PriorityStream          = 80
	PrioritySceneStats      = 90
)

// system общие поля систем
type system struct {
	name     string
	priority int
}

func (s system) GetName() string  { return s.name }
func (s system) GetPriority() int { return s.priority }

// InputDrainSystem применяет накопленные события ввода на горутине тика
type InputDrainSystem struct {
	system
	control *control.Manager
}

func NewInputDrainSystem(c *control.Manager) *InputDrainSystem {
	return &InputDrainSystem{system: system{"InputDrainSystem", PriorityInputDrain}, control: c}
}

func (s *InputDrainSystem) Update(time.Duration) error {
	s.control.Drain()
	return nil
}

// InputControlSystem передвижение управляемой сущности и запись телеметрии
type InputControlSystem struct {
	system
	control  *control.Manager
	recorder *telemetry.Recorder
}

// NewInputControlSystem recorder может быть nil
func NewInputControlSystem(c *control.Manager, recorder *telemetry.Recorder) *InputControlSystem {
	return &InputControlSystem{
		system:   system{"InputControlSystem", PriorityInputControl},
		control:  c,
		recorder: recorder,
	}
}

func (s *InputControlSystem) Update(deltaTime time.Duration) error {
	if err := s.control.Update(deltaTime); err != nil {
		return err
	}

	ctl := s.control.Active()
	if s.recorder == nil || ctl == nil {
		return nil
	}
	e := ctl.Entity
	sample := telemetry.Sample{
		EntityID:  e.ID,
		State:     ctl.State().String(),
		Animation: ctl.Animation(),
		Position:  telemetry.FromVec(e.WorldPosition()),
		Yaw:       e.Control.Yaw,
		Airborne:  e.Control.Airborne,
		Physics:   e.Body != nil && e.Body.Mass() > 0,
	}
	if sample.Physics {
		sample.Velocity = telemetry.FromVec(e.Body.LinearVelocity())
	} else {
		sample.Velocity.Y = e.Control.VerticalVelocity
	}
	s.recorder.Record(sample)
	s.recorder.PrintSummary(time.Now())
	return nil
}

// PhysicsSystem шаг симуляции и перенос позиций тел в сущности
type PhysicsSystem struct {
	system
	world    physics.World
	entities *world.Manager
}

func NewPhysicsSystem(w physics.World, entities *world.Manager) *PhysicsSystem {
	return &PhysicsSystem{system: system{"PhysicsSystem", PriorityPhysics}, world: w, entities: entities}
}

func (s *PhysicsSystem) Update(deltaTime time.Duration) error {
	if s.world == nil {
		return nil
	}
	s.world.Step(deltaTime)
	physics.SyncEntities(s.entities.GetAllEntities())
	return nil
}

// LogicSystem покадровое обновление пользовательских поведений
type LogicSystem struct {
	system
	host *logic.Host
}

func NewLogicSystem(h *logic.Host) *LogicSystem {
	return &LogicSystem{system: system{"LogicSystem", PriorityLogic}, host: h}
}

func (s *LogicSystem) Update(deltaTime time.Duration) error {
	return s.host.Update(deltaTime)
}

// CameraTrackingSystem цели камер по отслеживаемым объектам
type CameraTrackingSystem struct {
	system
	tracking *camera.TrackingManager
	pipeline *camera.Pipeline
}

func NewCameraTrackingSystem(t *camera.TrackingManager, p *camera.Pipeline) *CameraTrackingSystem {
	return &CameraTrackingSystem{system: system{"CameraTrackingSystem", PriorityCameraTracking}, tracking: t, pipeline: p}
}

func (s *CameraTrackingSystem) Update(time.Duration) error {
	s.tracking.Update(s.pipeline)
	return nil
}

// CameraCollisionSystem дистанции камер с учетом препятствий
type CameraCollisionSystem struct {
	system
	collision *camera.CollisionManager
	pipeline  *camera.Pipeline
}

func NewCameraCollisionSystem(c *camera.CollisionManager, p *camera.Pipeline) *CameraCollisionSystem {
	return &CameraCollisionSystem{system: system{"CameraCollisionSystem", PriorityCameraCollision}, collision: c, pipeline: p}
}

func (s *CameraCollisionSystem) Update(time.Duration) error {
	s.collision.Update(s.pipeline)
	return nil
}

// CameraShakeSystem фазы тряски и смещения на время рендера
type CameraShakeSystem struct {
	system
	shake    *camera.ShakeManager
	pipeline *camera.Pipeline
}

func NewCameraShakeSystem(sh *camera.ShakeManager, p *camera.Pipeline) *CameraShakeSystem {
	return &CameraShakeSystem{system: system{"CameraShakeSystem", PriorityCameraShake}, shake: sh, pipeline: p}
}

func (s *CameraShakeSystem) Update(deltaTime time.Duration) error {
	s.shake.Update(deltaTime, s.pipeline)
	return nil
}

// RenderSystem применяет вклады камер и рендерит кадр внутри скобки тряски
type RenderSystem struct {
	system
	renderer   engine.Renderer
	pipeline   *camera.Pipeline
	entities   *world.Manager
	gameTicker *GameTicker
	aspect     float64
}

func NewRenderSystem(r engine.Renderer, p *camera.Pipeline, entities *world.Manager, gt *GameTicker, viewport config.ViewportConfig) *RenderSystem {
	aspect := 16.0 / 9.0
	if viewport.Width > 0 && viewport.Height > 0 {
		aspect = float64(viewport.Width) / float64(viewport.Height)
	}
	return &RenderSystem{
		system:     system{"RenderSystem", PriorityRender},
		renderer:   r,
		pipeline:   p,
		entities:   entities,
		gameTicker: gt,
		aspect:     aspect,
	}
}

func (s *RenderSystem) Update(deltaTime time.Duration) error {
	s.pipeline.Compose()

	return s.pipeline.Bracket(func() error {
		frame := engine.Frame{Tick: s.gameTicker.GetTickCount(), Delta: deltaTime}
		if cam, ok := s.entities.ActiveCamera(); ok {
			frame.Camera = cam
			frame.Eye = cam.Camera.Eye(cam)
			frame.View = cam.Camera.View(cam)
			frame.Projection = cam.Camera.Projection(s.aspect)
		}
		return s.renderer.Render(frame)
	})
}

// SpatialUISystem перепроецирует привязанные элементы интерфейса
type SpatialUISystem struct {
	system
	projector *spatialui.Projector
}

func NewSpatialUISystem(p *spatialui.Projector) *SpatialUISystem {
	return &SpatialUISystem{system: system{"SpatialUISystem", PrioritySpatialUI}, projector: p}
}

func (s *SpatialUISystem) Update(time.Duration) error {
	s.projector.Update()
	return nil
}

// AudioSystem громкость источников по расстоянию до камеры
type AudioSystem struct {
	system
	audio *audio.Manager
}

func NewAudioSystem(m *audio.Manager) *AudioSystem {
	return &AudioSystem{system: system{"AudioSystem", PriorityAudio}, audio: m}
}

func (s *AudioSystem) Update(time.Duration) error {
	s.audio.Update()
	return nil
}

// FramePublisher получатель состояния сцены. Вызывается на горутине тика;
// данные сущностей нужно скопировать до возврата.
type FramePublisher interface {
	PublishFrame(tick uint64, entities []*world.Entity)
}

// StreamSystem рассылка состояния сцены с ограничением частоты
type StreamSystem struct {
	system
	gameTicker    *GameTicker
	entities      *world.Manager
	publisher     FramePublisher
	interval      time.Duration
	lastBroadcast time.Time
}

func NewStreamSystem(gt *GameTicker, entities *world.Manager, publisher FramePublisher, interval time.Duration) *StreamSystem {
	return &StreamSystem{
		system:     system{"StreamSystem", PriorityStream},
		gameTicker: gt,
		entities:   entities,
		publisher:  publisher,
		interval:   interval,
	}
}

func (s *StreamSystem) Update(time.Duration) error {
	if s.publisher == nil {
		return nil
	}
	now := time.Now()
	if now.Sub(s.lastBroadcast) < s.interval {
		return nil
	}
	s.lastBroadcast = now
	s.publisher.PublishFrame(s.gameTicker.GetTickCount(), s.entities.GetAllEntities())
	return nil
}

// SceneStatsSystem обновляет метрики размера сцены и периодически пишет их в лог
type SceneStatsSystem struct {
	system
	gameTicker *GameTicker
	entities   *world.Manager
	physics    physics.World
	collision  *camera.CollisionManager
	collector  *telemetry.FrameCollector
	logger     *log.Logger
	every      uint64
}

func NewSceneStatsSystem(gt *GameTicker, entities *world.Manager, w physics.World, c *camera.CollisionManager, collector *telemetry.FrameCollector, logger *log.Logger) *SceneStatsSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &SceneStatsSystem{
		system:     system{"SceneStatsSystem", PrioritySceneStats},
		gameTicker: gt,
		entities:   entities,
		physics:    w,
		collision:  c,
		collector:  collector,
		logger:     logger,
		every:      uint64(gt.targetTPS),
	}
}

func (s *SceneStatsSystem) Update(time.Duration) error {
	tick := s.gameTicker.GetTickCount()
	if tick%s.every != 0 {
		return nil
	}

	bodies := 0
	if s.physics != nil {
		bodies = s.physics.BodyCount()
	}
	solids := s.collision.SolidCount()
	entities := s.entities.Count()
	s.collector.SetSceneCounts(entities, bodies, solids)

	// раз в 30 секунд
	if tick%(s.every*30) == 0 {
		checks, casts := s.collision.Stats()
		s.logger.Printf("[SceneStats] entities %d, bodies %d, solids %d, camera checks %d, casts %d",
			entities, bodies, solids, checks, casts)
	}
	return nil
}
