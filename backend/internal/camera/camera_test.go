package camera

import (
	"errors"
	"io"
	"log"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-scene/backend/internal/config"
	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/world"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newOrbitCamera(id string, radius float64, d *scene.CameraDescriptor) *world.Entity {
	if d == nil {
		d = &scene.CameraDescriptor{}
	}
	d.Type = scene.CameraArcRotate
	e := world.NewEntity(&scene.Node{ID: id, Kind: scene.KindCamera, Camera: d})
	e.Camera = &world.Camera{
		Type:          scene.CameraArcRotate,
		Alpha:         -math.Pi / 2,
		Beta:          math.Pi / 2,
		Radius:        radius,
		DesiredRadius: radius,
		Target:        mgl64.Vec3{0, 1, 0},
	}
	return e
}

func newWall(id string, pos mgl64.Vec3) *world.Entity {
	e := world.NewEntity(&scene.Node{ID: id, Kind: scene.KindMesh, Mesh: &scene.MeshDescriptor{Primitive: "box"}})
	e.Local.Position = pos
	e.Mesh = world.BoxGeometry(10, 10, 0.5)
	return e
}

func collidingSetup(t *testing.T) (*world.Manager, *world.Entity, *world.Entity, *CollisionManager, *Pipeline) {
	m := world.NewManager()
	cam := newOrbitCamera("cam", 10, &scene.CameraDescriptor{Collision: &scene.CollisionDescriptor{Enabled: true}})
	wall := newWall("wall", mgl64.Vec3{0.3, 1.7, -5})
	m.AddEntity(cam)
	m.AddEntity(wall)

	cm := NewCollisionManager(m, config.CameraConfig{CollisionEase: 0.3, MinRadius: 0.1}, quietLogger())
	require.Equal(t, 1, cm.Initialize())
	require.Equal(t, 1, cm.SolidCount())
	return m, cam, wall, cm, NewPipeline([]*world.Entity{cam})
}

func step(cm *CollisionManager, p *Pipeline, frames int, each func(r float64)) {
	for i := 0; i < frames; i++ {
		cm.Update(p)
		p.Compose()
		if each != nil {
			each(p.Cameras()[0].Camera.Radius)
		}
	}
}

func TestCollisionConvergesMonotonically(t *testing.T) {
	_, cam, _, cm, p := collidingSetup(t)

	prev := cam.Camera.Radius
	step(cm, p, 60, func(r float64) {
		assert.LessOrEqual(t, r, prev+1e-12)
		assert.LessOrEqual(t, r, 10.0)
		prev = r
	})

	// передняя грань стены на z=-4.75, подушка 0.2
	assert.InDelta(t, 4.55, cam.Camera.Radius, 1e-9)
	assert.Equal(t, 10.0, cam.Camera.DesiredRadius)
	assert.True(t, cam.Camera.Constrained)
	assert.True(t, cm.Colliding(cam))
}

func TestCollisionReturnsToDesiredWhenCleared(t *testing.T) {
	_, cam, wall, cm, p := collidingSetup(t)
	step(cm, p, 60, nil)
	require.InDelta(t, 4.55, cam.Camera.Radius, 1e-9)

	wall.Enabled = false
	prev := cam.Camera.Radius
	step(cm, p, 80, func(r float64) {
		assert.GreaterOrEqual(t, r, prev-1e-12)
		assert.LessOrEqual(t, r, 10.0)
		prev = r
	})

	assert.Equal(t, 10.0, cam.Camera.Radius)
	assert.False(t, cam.Camera.Constrained)
	assert.False(t, cm.Colliding(cam))
}

func TestZoomDuringCollisionIsKept(t *testing.T) {
	_, cam, wall, cm, p := collidingSetup(t)
	step(cm, p, 40, nil)

	cam.Camera.Zoom(4, 0.1)
	step(cm, p, 40, nil)
	assert.InDelta(t, 4.55, cam.Camera.Radius, 1e-9, "zoom does not move a constrained camera")
	assert.Equal(t, 14.0, cam.Camera.DesiredRadius)

	wall.Enabled = false
	step(cm, p, 80, nil)
	assert.Equal(t, 14.0, cam.Camera.Radius)
}

func TestCollisionMinimumRadius(t *testing.T) {
	m := world.NewManager()
	cam := newOrbitCamera("cam", 10, &scene.CameraDescriptor{Collision: &scene.CollisionDescriptor{Enabled: true, Distance: 5, Cushion: 1}})
	m.AddEntity(cam)
	m.AddEntity(newWall("wall", mgl64.Vec3{0.3, 1.7, -0.6}))

	cm := NewCollisionManager(m, config.CameraConfig{}, quietLogger())
	cm.Initialize()
	p := NewPipeline([]*world.Entity{cam})
	step(cm, p, 60, nil)

	assert.InDelta(t, 0.1, cam.Camera.Radius, 1e-9)
}

func TestCollisionSchedule(t *testing.T) {
	m := world.NewManager()
	cam := newOrbitCamera("cam", 10, &scene.CameraDescriptor{Collision: &scene.CollisionDescriptor{Enabled: true}})
	m.AddEntity(cam)
	m.AddEntity(newWall("far", mgl64.Vec3{200, 0, 200}))

	cm := NewCollisionManager(m, config.CameraConfig{}, quietLogger())
	cm.Initialize()
	p := NewPipeline([]*world.Entity{cam})

	step(cm, p, 40, nil)
	before, _ := cm.Stats()
	step(cm, p, 60, nil)
	after, _ := cm.Stats()
	assert.Equal(t, 4, after-before, "static camera is checked every 15 frames")

	step(cm, p, 40, nil)
	before, _ = cm.Stats()
	step(cm, p, 100, nil)
	after, _ = cm.Stats()
	assert.Equal(t, before, after, "long static camera is not checked")

	cam.Camera.Alpha += 0.2
	step(cm, p, 1, nil)
	after, _ = cm.Stats()
	assert.Equal(t, before+1, after, "movement forces a check")

	before = after
	for i := 0; i < 20; i++ {
		cam.Camera.Alpha += 0.05
		step(cm, p, 1, nil)
	}
	after, _ = cm.Stats()
	assert.Equal(t, 10, after-before, "moving camera is checked every other frame")

	_, casts := cm.Stats()
	assert.Zero(t, casts, "far meshes never reach the ray cast")
}

func TestSolidCacheFilters(t *testing.T) {
	m := world.NewManager()
	hidden := 0.3
	notPickable := false

	solid := newWall("solid", mgl64.Vec3{})
	ghost := newWall("ghost", mgl64.Vec3{})
	ghost.Node.Mesh = &scene.MeshDescriptor{Primitive: "box", NonSolid: true}
	faded := newWall("faded", mgl64.Vec3{})
	faded.Node.Mesh = &scene.MeshDescriptor{Primitive: "box", Visibility: &hidden}
	unpickable := newWall("unpickable", mgl64.Vec3{})
	unpickable.Node.Mesh = &scene.MeshDescriptor{Primitive: "box", Pickable: &notPickable}
	disabled := newWall("disabled", mgl64.Vec3{})
	disabled.Enabled = false

	avatar := newWall("avatar", mgl64.Vec3{})
	avatar.Node.InputControl = &scene.InputControlDescriptor{Active: true}
	hat := newWall("hat", mgl64.Vec3{})
	hat.SetParent(avatar)
	crate := newWall("crate", mgl64.Vec3{})
	crate.Node.Physics = &scene.PhysicsDescriptor{Enabled: true, Type: scene.PhysicsDynamic, Mass: 1}

	for _, e := range []*world.Entity{solid, ghost, faded, unpickable, disabled, avatar, hat, crate} {
		m.AddEntity(e)
	}

	cm := NewCollisionManager(m, config.CameraConfig{}, quietLogger())
	cm.Refresh()
	require.Equal(t, 1, cm.SolidCount())
	assert.Equal(t, "solid", cm.grid.All()[0].Entity.ID)
}

func TestPipelineComposeClampsToDesired(t *testing.T) {
	cam := newOrbitCamera("cam", 6, nil)
	other := newOrbitCamera("other", 6, nil)
	other.Camera.Radius = 2
	p := NewPipeline([]*world.Entity{cam, other})

	p.SetRadius(cam, 50)
	p.SetTarget(cam, mgl64.Vec3{1, 2, 3})
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, p.Target(cam))
	p.Compose()

	assert.Equal(t, 6.0, cam.Camera.Radius)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, cam.Camera.Target)
	assert.False(t, cam.Camera.Constrained)
	assert.Equal(t, 6.0, other.Camera.Radius, "camera without contribution takes its desired radius")

	p.SetRadius(cam, 3)
	p.Compose()
	assert.Equal(t, 3.0, cam.Camera.Radius)
	assert.True(t, cam.Camera.Constrained)
}

func TestTrackingFollowsParentedTarget(t *testing.T) {
	m := world.NewManager()
	rig := world.NewEntity(&scene.Node{ID: "rig", Kind: scene.KindMesh})
	rig.Local.Position = mgl64.Vec3{5, 0, 0}
	avatar := world.NewEntity(&scene.Node{ID: "a1", Name: "Avatar", Kind: scene.KindMesh})
	avatar.Local.Position = mgl64.Vec3{0, 2, 0}
	avatar.SetParent(rig)

	cam := newOrbitCamera("cam", 8, &scene.CameraDescriptor{
		TargetMode:   scene.TargetObject,
		TargetObject: "Avatar",
		TargetOffset: &scene.Vec3{Y: 1},
	})
	lost := newOrbitCamera("lost", 8, &scene.CameraDescriptor{TargetMode: scene.TargetObject, TargetObject: "nobody"})
	fixed := newOrbitCamera("fixed", 8, &scene.CameraDescriptor{TargetMode: scene.TargetFixed, TargetObject: "Avatar"})
	for _, e := range []*world.Entity{rig, avatar, cam, lost, fixed} {
		m.AddEntity(e)
	}

	tm := NewTrackingManager(m, quietLogger())
	require.Equal(t, 1, tm.Initialize())

	p := NewPipeline([]*world.Entity{cam, lost, fixed})
	tm.Update(p)
	p.Compose()
	assert.True(t, cam.Camera.Target.ApproxEqualThreshold(mgl64.Vec3{5, 3, 0}, 1e-9))
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, fixed.Camera.Target)

	rig.Local.Position = mgl64.Vec3{-2, 0, 4}
	tm.Update(p)
	p.Compose()
	assert.True(t, cam.Camera.Target.ApproxEqualThreshold(mgl64.Vec3{-2, 3, 4}, 1e-9))
}

func TestTrackingByID(t *testing.T) {
	m := world.NewManager()
	target := world.NewEntity(&scene.Node{ID: "t1", Name: "Box", Kind: scene.KindMesh})
	target.Local.Position = mgl64.Vec3{1, 1, 1}
	cam := newOrbitCamera("cam", 8, &scene.CameraDescriptor{TargetMode: scene.TargetObject, TargetObject: "t1"})
	m.AddEntity(target)
	m.AddEntity(cam)

	tm := NewTrackingManager(m, quietLogger())
	require.Equal(t, 1, tm.Initialize())
	p := NewPipeline([]*world.Entity{cam})
	tm.Update(p)
	p.Compose()
	assert.Equal(t, mgl64.Vec3{1, 1, 1}, cam.Camera.Target)
}

func shakingSetup(t *testing.T, preset string) (*world.Entity, *ShakeManager, *Pipeline) {
	m := world.NewManager()
	cam := newOrbitCamera("cam", 8, &scene.CameraDescriptor{Shake: &scene.ShakeDescriptor{Preset: preset}})
	m.AddEntity(cam)
	sm := NewShakeManager(m, quietLogger())
	sm.Initialize()
	return cam, sm, NewPipeline([]*world.Entity{cam})
}

func TestShakeBracketRestoresState(t *testing.T) {
	cam, sm, p := shakingSetup(t, "earthquake")
	require.Equal(t, 1, sm.Count())
	saved := *cam.Camera

	for i := 0; i < 10; i++ {
		sm.Update(16*time.Millisecond, p)
		p.Compose()

		err := p.Bracket(func() error {
			c := cam.Camera
			assert.NotEqual(t, saved, *c, "shake is visible during render")
			assert.Equal(t, saved.Offset, c.Offset)

			targetShift := c.Target.Sub(saved.Target)
			unshaken := saved.Target.Add(world.OrbitOffset(c.Alpha, c.Beta, c.Radius)).Add(saved.Offset)
			eyeShift := c.Eye(cam).Sub(unshaken)
			assert.True(t, eyeShift.ApproxEqualThreshold(targetShift, 1e-9), "eye %v, target %v", eyeShift, targetShift)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, saved, *cam.Camera, "authoritative state restored after render")
	}
}

func TestShakeRestoresOnRenderFailure(t *testing.T) {
	cam, sm, p := shakingSetup(t, "handheld")
	saved := *cam.Camera

	sm.Update(50*time.Millisecond, p)
	err := p.Bracket(func() error { return errors.New("render failed") })
	assert.Error(t, err)
	assert.Equal(t, saved, *cam.Camera)

	sm.Update(50*time.Millisecond, p)
	assert.Panics(t, func() {
		_ = p.Bracket(func() error { panic("boom") })
	})
	assert.Equal(t, saved, *cam.Camera)

	// без нового вклада тряска не накладывается повторно
	_ = p.Bracket(func() error {
		assert.Equal(t, saved, *cam.Camera)
		return nil
	})
}

func TestShakeNonePresetIgnored(t *testing.T) {
	_, sm, _ := shakingSetup(t, "none")
	assert.Zero(t, sm.Count())
}

func TestShakeDescriptorOverridesPreset(t *testing.T) {
	m := world.NewManager()
	amp := &scene.Vec3{X: 1, Y: 1, Z: 1}
	cam := newOrbitCamera("cam", 8, &scene.CameraDescriptor{Shake: &scene.ShakeDescriptor{
		Preset: "subtle", Strength: 2, Frequency: 3, PositionAmplitude: amp,
	}})
	m.AddEntity(cam)
	sm := NewShakeManager(m, quietLogger())
	require.Equal(t, 1, sm.Initialize())

	preset := sm.cameras[0].preset
	assert.Equal(t, 2.0, preset.Strength)
	assert.Equal(t, 3.0, preset.Frequency)
	assert.Equal(t, mgl64.Vec3{1, 1, 1}, preset.Position)
	assert.Equal(t, ShakePresets["subtle"].Rotation, preset.Rotation)

	for phase := 0.0; phase < 5; phase += 0.37 {
		pos, _ := preset.Offsets(phase)
		for i := 0; i < 3; i++ {
			assert.LessOrEqual(t, math.Abs(pos[i]), 2.0+1e-9)
		}
	}

	pos, _ := preset.Offsets(0.1)
	assert.NotEqual(t, pos.X(), pos.Y(), "axes are decorrelated")
}

func TestFreeCameraShakeKeepsEye(t *testing.T) {
	e := world.NewEntity(&scene.Node{ID: "free", Kind: scene.KindCamera, Camera: &scene.CameraDescriptor{Type: scene.CameraFree}})
	e.Local.Position = mgl64.Vec3{0, 0, -10}
	e.Camera = &world.Camera{Type: scene.CameraFree, Target: mgl64.Vec3{}, Radius: 10, DesiredRadius: 10}
	p := NewPipeline([]*world.Entity{e})

	p.AddShake(e, mgl64.Vec3{}, mgl64.Vec3{0, 0.1, 0})
	_ = p.Bracket(func() error {
		eye := e.Camera.Eye(e)
		assert.True(t, eye.ApproxEqualThreshold(mgl64.Vec3{0, 0, -10}, 1e-9))
		assert.InDelta(t, 10.0, e.Camera.Target.Sub(eye).Len(), 1e-9)
		assert.NotEqual(t, mgl64.Vec3{}, e.Camera.Target)
		return nil
	})
	assert.Equal(t, mgl64.Vec3{}, e.Camera.Target)
}

func TestSpatialGrid(t *testing.T) {
	g := NewSpatialGrid(4)
	near := newWall("near", mgl64.Vec3{})
	far := newWall("far", mgl64.Vec3{100, 0, 0})
	huge := newWall("huge", mgl64.Vec3{-500, 0, 0})

	g.Add(&solidMesh{Entity: near, Center: mgl64.Vec3{1, 0, 0}, Radius: 1})
	g.Add(&solidMesh{Entity: far, Center: mgl64.Vec3{100, 0, 0}, Radius: 1})
	g.Add(&solidMesh{Entity: huge, Center: mgl64.Vec3{-500, 0, 0}, Radius: 100})
	assert.Equal(t, 3, g.Count())

	ids := func(ms []*solidMesh) []string {
		var out []string
		for _, m := range ms {
			out = append(out, m.Entity.ID)
		}
		return out
	}
	got := ids(g.Nearby(mgl64.Vec3{}, 2))
	assert.ElementsMatch(t, []string{"near", "huge"}, got)

	g.Add(&solidMesh{Entity: near, Center: mgl64.Vec3{100, 4, 0}, Radius: 1})
	assert.Equal(t, 3, g.Count())
	assert.ElementsMatch(t, []string{"huge"}, ids(g.Nearby(mgl64.Vec3{}, 2)))

	g.Remove("huge")
	assert.ElementsMatch(t, []string{"far", "near"}, ids(g.Nearby(mgl64.Vec3{100, 0, 0}, 4)))
	assert.Len(t, g.All(), 2)
}
