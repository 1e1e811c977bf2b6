package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/scene"
)

// Transform локальная трансформация сущности. Rotation - углы Эйлера (рад).
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Vec3
	Scaling  mgl64.Vec3
}

// IdentityTransform трансформация без смещения, поворота и масштаба
func IdentityTransform() Transform {
	return Transform{Scaling: mgl64.Vec3{1, 1, 1}}
}

// TransformFromScene переводит трансформацию документа, применяя значения по умолчанию
func TransformFromScene(t scene.Transform) Transform {
	return Transform{
		Position: t.Position.Mgl(),
		Rotation: t.RotationOrZero().Mgl(),
		Scaling:  t.ScalingOrOne().Mgl(),
	}
}

// Quat поворот в виде кватерниона: yaw (Y), затем pitch (X), затем roll (Z)
func (t Transform) Quat() mgl64.Quat {
	return mgl64.AnglesToQuat(t.Rotation.Y(), t.Rotation.X(), t.Rotation.Z(), mgl64.YXZ)
}

// Matrix T * R * S
func (t Transform) Matrix() mgl64.Mat4 {
	translate := mgl64.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	scale := mgl64.Scale3D(t.Scaling.X(), t.Scaling.Y(), t.Scaling.Z())
	return translate.Mul4(t.Quat().Mat4()).Mul4(scale)
}

// ControlState управляющий слот сущности. Намеренно не синхронизирован
// с визуальной трансформацией: физическое тело остается вертикальным,
// а направление движения берется из Yaw.
type ControlState struct {
	Yaw              float64
	GroundY          float64
	VerticalVelocity float64
	Airborne         bool
}

// Forward единичный вектор движения вперед для текущего Yaw
func (c ControlState) Forward() mgl64.Vec3 {
	return mgl64.Vec3{math.Sin(c.Yaw), 0, math.Cos(c.Yaw)}
}

// Body физическое тело, привязанное к сущности
type Body interface {
	ID() string
	Position() mgl64.Vec3
	SetPosition(p mgl64.Vec3)
	LinearVelocity() mgl64.Vec3
	SetLinearVelocity(v mgl64.Vec3)
	AngularVelocity() mgl64.Vec3
	SetAngularVelocity(v mgl64.Vec3)
	ApplyImpulse(impulse mgl64.Vec3)
	Mass() float64
	IsSensor() bool
	Dispose()
}
