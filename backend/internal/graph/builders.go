package graph

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/world"
)

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func vecOr(v *scene.Vec3, def mgl64.Vec3) mgl64.Vec3 {
	if v == nil {
		return def
	}
	return v.Mgl()
}

// buildCamera ветвится по подтипу: орбитальные (arcRotate, follow) и свободная камера.
// Отслеживающая камера получает цель от менеджера трекинга на первом кадре.
func buildCamera(n *scene.Node) *world.Camera {
	d := n.Camera
	if d == nil {
		d = &scene.CameraDescriptor{}
	}

	c := &world.Camera{
		Type:   d.Type,
		Active: d.Active,
		Fov:    floatOr(d.Fov, world.DefaultFov),
	}
	if c.Type == "" {
		c.Type = scene.CameraArcRotate
	}

	position := n.Transform.Position.Mgl()
	switch c.Type {
	case scene.CameraFree:
		c.Target = vecOr(d.Target, position.Add(mgl64.Vec3{0, 0, 1}))
		c.Radius = position.Sub(c.Target).Len()
	default:
		c.Alpha = floatOr(d.Alpha, world.DefaultAlpha)
		c.Beta = floatOr(d.Beta, world.DefaultBeta)
		c.Radius = floatOr(d.Radius, world.DefaultRadius)
		c.Target = vecOr(d.Target, mgl64.Vec3{})
	}
	c.DesiredRadius = c.Radius
	return c
}

// buildLight ветвится по подтипу источника
func buildLight(n *scene.Node) *world.Light {
	d := n.Light
	if d == nil {
		d = &scene.LightDescriptor{}
	}

	l := &world.Light{
		Type:      d.Type,
		Intensity: floatOr(d.Intensity, world.DefaultLightIntensity),
		Color:     d.Color,
	}
	if l.Color == "" {
		l.Color = "#ffffff"
	}

	switch l.Type {
	case scene.LightDirectional:
		l.Direction = vecOr(d.Direction, mgl64.Vec3{0, -1, 0})
	case scene.LightHemispheric:
		l.Direction = vecOr(d.Direction, mgl64.Vec3{0, 1, 0})
	case scene.LightSpot:
		l.Direction = vecOr(d.Direction, mgl64.Vec3{0, -1, 0})
		l.Angle = floatOr(d.Angle, math.Pi/3)
		l.Exponent = floatOr(d.Exponent, 2)
		l.Range = floatOr(d.Range, 100)
	default:
		l.Type = scene.LightPoint
		l.Range = floatOr(d.Range, 100)
	}
	return l
}

func buildPrimitive(d *scene.MeshDescriptor) *world.Geometry {
	if d == nil || d.Primitive == "" {
		return nil
	}
	size := d.Size
	if size <= 0 {
		size = 1
	}
	pick := func(v float64) float64 {
		if v > 0 {
			return v
		}
		return size
	}

	switch d.Primitive {
	case "sphere":
		diameter := d.Diameter
		if diameter <= 0 {
			diameter = size
		}
		return world.SphereGeometry(diameter, 16)
	case "ground":
		if d.Subdivisions > 1 {
			return world.GridGeometry(pick(d.Width), pick(d.Depth), d.Subdivisions, nil)
		}
		return world.PlaneGeometry(pick(d.Width), pick(d.Depth))
	case "plane":
		return world.PlaneGeometry(pick(d.Width), pick(d.Depth))
	case "terrain":
		return world.TerrainGeometry(world.TerrainOptions{
			Width:        pick(d.Width),
			Depth:        pick(d.Depth),
			Subdivisions: d.Subdivisions,
			MinHeight:    d.MinHeight,
			MaxHeight:    d.MaxHeight,
			Seed:         d.Seed,
		})
	case "cylinder", "capsule":
		diameter := d.Diameter
		if diameter <= 0 {
			diameter = size
		}
		return world.BoxGeometry(diameter, pick(d.Height), diameter)
	default:
		return world.BoxGeometry(pick(d.Width), pick(d.Height), pick(d.Depth))
	}
}

func buildAudio(n *scene.Node) *world.Audio {
	d := n.Audio
	if d == nil {
		return &world.Audio{BaseVolume: 1, Volume: 1}
	}
	a := &world.Audio{
		Source:      d.Source,
		BaseVolume:  d.Volume,
		Volume:      d.Volume,
		Loop:        d.Loop,
		Playing:     d.Autoplay,
		Spatial:     d.Spatial,
		RefDistance: d.RefDistance,
		MaxDistance: d.MaxDistance,
	}
	if a.RefDistance <= 0 {
		a.RefDistance = 1
	}
	if a.MaxDistance <= a.RefDistance {
		a.MaxDistance = a.RefDistance + 100
	}
	return a
}

func buildSpatialUI(n *scene.Node) *world.SpatialUI {
	d := n.SpatialUI
	if d == nil {
		return &world.SpatialUI{ElementID: n.ID}
	}
	return &world.SpatialUI{ElementID: d.ElementID, Offset: vecOr(d.Offset, mgl64.Vec3{})}
}

func buildParticle(n *scene.Node) *world.Particle {
	d := n.Particle
	if d == nil {
		return &world.Particle{Capacity: 100, EmitRate: 10}
	}
	return &world.Particle{Capacity: d.Capacity, EmitRate: d.EmitRate, Texture: d.Texture, Emitting: n.IsEnabled()}
}
