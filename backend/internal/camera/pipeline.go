package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/world"
)

const constrainEpsilon = 1e-3

// Delta вклады менеджеров в состояние одной камеры за кадр
type Delta struct {
	target   *mgl64.Vec3
	radius   *float64
	shakePos mgl64.Vec3
	shakeRot mgl64.Vec3
	shakeSet bool
}

// Pipeline собирает вклады трекинга, столкновений и тряски за кадр.
// Compose применяет авторитетные вклады один раз, Bracket накладывает
// тряску только на время рендера.
type Pipeline struct {
	cameras []*world.Entity
	deltas  map[*world.Entity]*Delta
}

// NewPipeline создает конвейер для перечисленных камер
func NewPipeline(cameras []*world.Entity) *Pipeline {
	return &Pipeline{
		cameras: cameras,
		deltas:  make(map[*world.Entity]*Delta),
	}
}

// Cameras камеры конвейера
func (p *Pipeline) Cameras() []*world.Entity {
	return p.cameras
}

func (p *Pipeline) delta(cam *world.Entity) *Delta {
	d, ok := p.deltas[cam]
	if !ok {
		d = &Delta{}
		p.deltas[cam] = d
	}
	return d
}

// SetTarget новая цель камеры
func (p *Pipeline) SetTarget(cam *world.Entity, target mgl64.Vec3) {
	p.delta(cam).target = &target
}

// SetRadius новая текущая дистанция камеры
func (p *Pipeline) SetRadius(cam *world.Entity, radius float64) {
	p.delta(cam).radius = &radius
}

// AddShake добавляет визуальное смещение на время рендера
func (p *Pipeline) AddShake(cam *world.Entity, position, rotation mgl64.Vec3) {
	d := p.delta(cam)
	d.shakePos = d.shakePos.Add(position)
	d.shakeRot = d.shakeRot.Add(rotation)
	d.shakeSet = true
}

// Target цель камеры с учетом еще не примененного вклада
func (p *Pipeline) Target(cam *world.Entity) mgl64.Vec3 {
	if d, ok := p.deltas[cam]; ok && d.target != nil {
		return *d.target
	}
	return cam.Camera.Target
}

// Compose применяет цели и дистанции. Камеры без вклада дистанции
// сразу принимают желаемую дистанцию.
func (p *Pipeline) Compose() {
	for _, cam := range p.cameras {
		c := cam.Camera
		d := p.deltas[cam]

		if d != nil && d.target != nil {
			c.Target = *d.target
		}
		if d != nil && d.radius != nil {
			c.Radius = math.Min(*d.radius, math.Max(c.DesiredRadius, 0))
			c.Constrained = c.Radius < c.DesiredRadius-constrainEpsilon
		} else {
			c.Radius = c.DesiredRadius
			c.Constrained = false
		}

		if d != nil {
			d.target = nil
			d.radius = nil
		}
	}
}

// Bracket накладывает тряску, вызывает render и восстанавливает состояние камер
// даже при ошибке или панике в render.
func (p *Pipeline) Bracket(render func() error) error {
	saved := make(map[*world.Entity]world.Camera)
	for cam, d := range p.deltas {
		if !d.shakeSet || cam.Camera == nil {
			continue
		}
		saved[cam] = *cam.Camera
		applyShake(cam, d.shakePos, d.shakeRot)
	}

	defer func() {
		for cam, state := range saved {
			*cam.Camera = state
		}
		for _, d := range p.deltas {
			d.shakePos, d.shakeRot, d.shakeSet = mgl64.Vec3{}, mgl64.Vec3{}, false
		}
	}()

	return render()
}

// applyShake rotation: X - тангаж, Y - рыскание, Z - крен
func applyShake(cam *world.Entity, pos, rot mgl64.Vec3) {
	c := cam.Camera
	if c.Orbits() {
		c.Alpha += rot.Y()
		c.Beta += rot.X()
	} else {
		eye := c.Eye(cam)
		look := c.Target.Sub(eye)
		up := mgl64.Vec3{0, 1, 0}
		right := look.Cross(up)
		q := mgl64.QuatRotate(rot.Y(), up)
		if right.LenSqr() > 1e-12 {
			q = q.Mul(mgl64.QuatRotate(rot.X(), right.Normalize()))
		}
		c.Target = eye.Add(q.Rotate(look))
	}
	// глаз орбитальной камеры следует за целью
	c.Target = c.Target.Add(pos)
	if !c.Orbits() {
		c.Offset = c.Offset.Add(pos)
	}
	c.Roll += rot.Z()
}
