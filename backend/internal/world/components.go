package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/scene"
)

// DefaultLightIntensity интенсивность света по умолчанию
const DefaultLightIntensity = 0.7

type Light struct {
	Type      scene.LightType
	Intensity float64
	Color     string
	Direction mgl64.Vec3
	Angle     float64
	Exponent  float64
	Range     float64
}

type Audio struct {
	Source      string
	BaseVolume  float64
	Volume      float64
	Loop        bool
	Playing     bool
	Spatial     bool
	RefDistance float64
	MaxDistance float64
}

// SpatialUI экранная проекция привязанного UI-фрагмента
type SpatialUI struct {
	ElementID string
	Offset    mgl64.Vec3
	ScreenX   float64
	ScreenY   float64
	Depth     float64
	OnScreen  bool
}

type Particle struct {
	Capacity int
	EmitRate float64
	Texture  string
	Emitting bool
}
