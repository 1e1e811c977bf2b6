package control

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/config"
	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/world"
)

// ErrMultipleActiveControllers в сцене больше одной активной сущности с управлением
var ErrMultipleActiveControllers = errors.New("control: multiple active controllers")

const (
	DefaultSpeed      = 5.0
	DefaultJumpHeight = 1.0

	// вертикальная скорость, ниже которой тело считается приземлившимся
	landingSpeed = 0.5
	// радиан на пиксель перетаскивания
	pointerSensitivity = 0.005
	betaLimit          = 0.01
	referenceRate      = 60.0
)

// State состояние автомата передвижения
type State int

const (
	StateIdle State = iota
	StateMoving
)

func (s State) String() string {
	if s == StateMoving {
		return "moving"
	}
	return "idle"
}

// Controller управляемая сущность и ее состояние
type Controller struct {
	Entity    *world.Entity
	desc      *scene.InputControlDescriptor
	state     State
	animation string
	jumpHeld  bool
}

// State текущее состояние
func (c *Controller) State() State {
	return c.state
}

// Animation имя выбранной анимации
func (c *Controller) Animation() string {
	return c.animation
}

// Manager переводит клавиатурный ввод в движение единственной активной сущности
type Manager struct {
	entities *world.Manager
	queue    *Queue
	keys     *KeyState
	cfg      config.ControlConfig
	camCfg   config.CameraConfig
	gravity  float64
	active   *Controller
	logger   *log.Logger
}

// NewManager создает менеджер. gravity - модуль ускорения свободного падения.
func NewManager(entities *world.Manager, queue *Queue, cfg config.ControlConfig, camCfg config.CameraConfig, gravity float64, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	if queue == nil {
		queue = NewQueue(0, logger)
	}
	if cfg.DampingFactor <= 0 || cfg.DampingFactor > 1 {
		cfg.DampingFactor = 0.85
	}
	if cfg.BoostMultiplier <= 0 {
		cfg.BoostMultiplier = 2
	}
	if cfg.TurnSpeed <= 0 {
		cfg.TurnSpeed = math.Pi
	}
	if cfg.LandingEpsilon <= 0 {
		cfg.LandingEpsilon = 0.05
	}
	if camCfg.ZoomStep <= 0 {
		camCfg.ZoomStep = 0.01
	}
	if camCfg.MinRadius <= 0 {
		camCfg.MinRadius = 0.1
	}
	if gravity <= 0 {
		gravity = 9.81
	}
	return &Manager{
		entities: entities,
		queue:    queue,
		keys:     NewKeyState(),
		cfg:      cfg,
		camCfg:   camCfg,
		gravity:  math.Abs(gravity),
		logger:   logger,
	}
}

// Initialize находит активную управляемую сущность. При нескольких активных
// управляется первая в порядке документа, а возвращается ErrMultipleActiveControllers.
func (m *Manager) Initialize() error {
	var found []*world.Entity
	for _, e := range m.entities.GetAllEntities() {
		if e.Node != nil && e.Node.InputControl != nil && e.Node.InputControl.Active {
			found = append(found, e)
		}
	}

	m.active = nil
	if len(found) == 0 {
		m.logger.Printf("[Control] no active input controller")
		return nil
	}

	e := found[0]
	e.Control.Yaw = e.Local.Rotation.Y()
	e.Control.GroundY = e.WorldPosition().Y()
	m.active = &Controller{Entity: e, desc: e.Node.InputControl}
	m.selectAnimation(m.active, false, nil)
	m.logger.Printf("[Control] controlling %s (physics: %t)", e.ID, e.Body != nil)

	if len(found) > 1 {
		err := fmt.Errorf("%w: %d entities, driving %s", ErrMultipleActiveControllers, len(found), e.ID)
		m.logger.Printf("[Control] %v", err)
		return err
	}
	return nil
}

// Active текущий контроллер или nil
func (m *Manager) Active() *Controller {
	return m.active
}

// Keys состояние клавиатуры
func (m *Manager) Keys() *KeyState {
	return m.keys
}

// Queue очередь входных событий
func (m *Manager) Queue() *Queue {
	return m.queue
}

// Drain применяет накопленные события. Вызывается на горутине тика.
func (m *Manager) Drain() int {
	return m.queue.Drain(m.apply)
}

func (m *Manager) apply(ev Event) {
	switch ev.Type {
	case EventKey:
		m.keys.Apply(ev.Key)
	case EventReset:
		m.keys.Reset()
	case EventWheel:
		if cam, ok := m.entities.ActiveCamera(); ok && cam.Camera.Orbits() {
			cam.Camera.Zoom(ev.Wheel*m.camCfg.ZoomStep, m.camCfg.MinRadius)
		}
	case EventPointer:
		if ev.Buttons&1 == 0 {
			return
		}
		if cam, ok := m.entities.ActiveCamera(); ok && cam.Camera.Orbits() {
			c := cam.Camera
			c.Alpha -= ev.DX * pointerSensitivity
			c.Beta = mgl64.Clamp(c.Beta-ev.DY*pointerSensitivity, betaLimit, math.Pi-betaLimit)
		}
	}
}

func (m *Manager) matches(b *scene.MovementBinding) bool {
	return b != nil && !b.KeyBinding.IsZero() && m.keys.Matches(b.KeyBinding)
}

// Update один кадр передвижения
func (m *Manager) Update(dt time.Duration) error {
	ctl := m.active
	if ctl == nil || !ctl.Entity.Enabled {
		return nil
	}
	e, d := ctl.Entity, ctl.desc
	sec := dt.Seconds()

	forward := m.matches(d.Forward)
	backward := m.matches(d.Backward)
	left := m.matches(d.TurnLeft)
	right := m.matches(d.TurnRight)
	jump := m.matches(d.Jump)
	boost := d.SpeedBoostEnabled && !d.SpeedBoostKey.IsZero() && m.keys.Matches(d.SpeedBoostKey)

	speed := d.Speed
	if speed <= 0 {
		speed = DefaultSpeed
	}
	if boost {
		mult := d.SpeedBoostMultiplier
		if mult <= 0 {
			mult = m.cfg.BoostMultiplier
		}
		speed *= mult
	}

	turnSpeed := d.TurnSpeed
	if turnSpeed <= 0 {
		turnSpeed = m.cfg.TurnSpeed
	}
	turn := 0.0
	if left {
		turn--
	}
	if right {
		turn++
	}
	if turn != 0 {
		delta := turn * turnSpeed * sec
		e.Control.Yaw += delta
		turnVisual(e, delta)
	}

	dir := 0.0
	if forward {
		dir++
	}
	if backward {
		dir--
	}
	jumpEdge := jump && !ctl.jumpHeld
	ctl.jumpHeld = jump

	if e.Body != nil && e.Body.Mass() > 0 {
		m.moveBody(e, d, dir*speed, jumpEdge, sec)
	} else {
		m.moveDirect(e, d, dir*speed, jumpEdge, sec)
	}

	m.selectAnimation(ctl, boost, []bool{forward, backward, left, right, jump})
	return nil
}

// turnVisual у тела с физикой поворачиваются только дочерние меши
func turnVisual(e *world.Entity, delta float64) {
	if e.Body != nil && e.HasChildren() {
		for _, c := range e.Children() {
			c.Local.Rotation[1] += delta
		}
		return
	}
	e.Local.Rotation[1] += delta
}

func (m *Manager) jumpVelocity(d *scene.InputControlDescriptor) float64 {
	h := d.JumpHeight
	if h <= 0 {
		h = DefaultJumpHeight
	}
	return math.Sqrt(2 * m.gravity * h)
}

// moveBody скорость задается по управляющему рысканию, ориентация тела не трогается
func (m *Manager) moveBody(e *world.Entity, d *scene.InputControlDescriptor, velocity float64, jumpEdge bool, sec float64) {
	b := e.Body
	v := b.LinearVelocity()
	if velocity != 0 {
		f := e.Control.Forward().Mul(velocity)
		b.SetLinearVelocity(mgl64.Vec3{f.X(), v.Y(), f.Z()})
	} else {
		keep := math.Pow(m.cfg.DampingFactor, sec*referenceRate)
		b.SetLinearVelocity(mgl64.Vec3{v.X() * keep, v.Y(), v.Z() * keep})
	}
	av := b.AngularVelocity()
	b.SetAngularVelocity(mgl64.Vec3{0, av.Y(), 0})

	pos := b.Position()
	if vy := b.LinearVelocity().Y(); !e.Control.Airborne && math.Abs(vy) > landingSpeed {
		// падение без прыжка: высота земли неизвестна, приземление по остановке
		e.Control.Airborne = true
		e.Control.GroundY = pos.Y()
		if vy < 0 {
			e.Control.GroundY = math.Inf(1)
		}
	}
	switch {
	case jumpEdge && !e.Control.Airborne:
		b.ApplyImpulse(mgl64.Vec3{0, b.Mass() * m.jumpVelocity(d), 0})
		e.Control.Airborne = true
		e.Control.GroundY = pos.Y()
	case e.Control.Airborne:
		vy := b.LinearVelocity().Y()
		if pos.Y() <= e.Control.GroundY+m.cfg.LandingEpsilon && math.Abs(vy) < landingSpeed {
			e.Control.Airborne = false
		}
	}
}

// moveDirect без физики: интегрирование позиции и вертикальной скорости
func (m *Manager) moveDirect(e *world.Entity, d *scene.InputControlDescriptor, velocity float64, jumpEdge bool, sec float64) {
	pos := e.WorldPosition()
	if velocity != 0 {
		pos = pos.Add(e.Control.Forward().Mul(velocity * sec))
	}

	if jumpEdge && !e.Control.Airborne {
		e.Control.Airborne = true
		e.Control.GroundY = pos.Y()
		e.Control.VerticalVelocity = m.jumpVelocity(d)
	}
	if e.Control.Airborne {
		pos[1] += e.Control.VerticalVelocity * sec
		e.Control.VerticalVelocity -= m.gravity * sec
		if pos.Y() <= e.Control.GroundY {
			pos[1] = e.Control.GroundY
			e.Control.VerticalVelocity = 0
			e.Control.Airborne = false
		}
	}

	e.SetWorldPosition(pos)
	if e.Body != nil {
		e.Body.SetPosition(pos)
	}
}

// selectAnimation приоритет forward > backward > turnLeft > turnRight > jump;
// без удерживаемых слотов играет idle
func (m *Manager) selectAnimation(ctl *Controller, boost bool, held []bool) {
	d := ctl.desc
	slots := []*scene.MovementBinding{d.Forward, d.Backward, d.TurnLeft, d.TurnRight, d.Jump}

	name := ""
	moving := false
	for i, h := range held {
		if !h {
			continue
		}
		moving = true
		if slots[i].Animation == "" {
			continue
		}
		name = slots[i].Animation
		if boost && slots[i].BoostAnimation != "" {
			name = slots[i].BoostAnimation
		}
		break
	}

	if moving {
		ctl.state = StateMoving
	} else {
		ctl.state = StateIdle
		name = d.IdleAnimation
	}
	if name == "" || name == ctl.animation {
		return
	}

	ctl.animation = name
	if set := animationsOf(ctl.Entity); set != nil && !set.Play(name) {
		m.logger.Printf("[Control] %s: animation %q not found", ctl.Entity.ID, name)
	}
}

// animationsOf набор анимаций сущности или ближайшего потомка
func animationsOf(e *world.Entity) *world.AnimationSet {
	if e.Animations != nil {
		return e.Animations
	}
	for _, c := range e.Children() {
		if set := animationsOf(c); set != nil {
			return set
		}
	}
	return nil
}
