package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/scene"
)

const (
	DefaultFov    = 0.8
	DefaultRadius = 10.0
	DefaultAlpha  = -math.Pi / 2
	DefaultBeta   = math.Pi / 2.5
	cameraNear    = 0.1
	cameraFar     = 1000.0
)

// Camera состояние камеры. Radius - текущая дистанция (может быть
// ограничена столкновением), DesiredRadius - заданная пользователем.
type Camera struct {
	Type   scene.CameraType
	Active bool
	Fov    float64

	Alpha         float64
	Beta          float64
	Radius        float64
	DesiredRadius float64
	Target        mgl64.Vec3
	Roll          float64

	// Constrained свободная камера придвинута к цели столкновением
	Constrained bool

	// Offset для свободной камеры: позиция глаза сдвигается на него на время рендера
	Offset mgl64.Vec3
}

// Orbits камера вращается вокруг цели
func (c *Camera) Orbits() bool {
	return c.Type == scene.CameraArcRotate || c.Type == scene.CameraFollow
}

// OrbitOffset смещение глаза от цели для углов alpha/beta
func OrbitOffset(alpha, beta, radius float64) mgl64.Vec3 {
	return mgl64.Vec3{
		radius * math.Cos(alpha) * math.Sin(beta),
		radius * math.Cos(beta),
		radius * math.Sin(alpha) * math.Sin(beta),
	}
}

// DesiredEye позиция, которую камера заняла бы без ограничений
func (c *Camera) DesiredEye(e *Entity) mgl64.Vec3 {
	if c.Orbits() {
		return c.Target.Add(OrbitOffset(c.Alpha, c.Beta, c.DesiredRadius))
	}
	return e.WorldPosition()
}

// Eye текущая позиция глаза
func (c *Camera) Eye(e *Entity) mgl64.Vec3 {
	if c.Orbits() {
		return c.Target.Add(OrbitOffset(c.Alpha, c.Beta, c.Radius)).Add(c.Offset)
	}
	desired := e.WorldPosition()
	toEye := desired.Sub(c.Target)
	dist := toEye.Len()
	if !c.Constrained || dist < rayEpsilon || c.Radius >= dist {
		return desired.Add(c.Offset)
	}
	return c.Target.Add(toEye.Mul(c.Radius / dist)).Add(c.Offset)
}

// Zoom меняет только желаемую дистанцию
func (c *Camera) Zoom(delta, minRadius float64) {
	c.DesiredRadius = math.Max(minRadius, c.DesiredRadius+delta)
}

// View матрица вида
func (c *Camera) View(e *Entity) mgl64.Mat4 {
	eye := c.Eye(e)
	forward := c.Target.Sub(eye)
	up := mgl64.Vec3{0, 1, 0}
	if c.Roll != 0 && forward.LenSqr() > rayEpsilon {
		up = mgl64.QuatRotate(c.Roll, forward.Normalize()).Rotate(up)
	}
	return mgl64.LookAtV(eye, c.Target, up)
}

// Projection перспективная проекция
func (c *Camera) Projection(aspect float64) mgl64.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	return mgl64.Perspective(c.Fov, aspect, cameraNear, cameraFar)
}
