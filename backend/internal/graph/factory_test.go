package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-scene/backend/internal/engine"
	"x-scene/backend/internal/physics"
	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/world"
)

// fakeAssets отдает модели из памяти
type fakeAssets struct {
	mu       sync.Mutex
	models   map[string]*engine.Model
	inFlight int32
	peak     int32
	delay    time.Duration
}

func (a *fakeAssets) LoadModel(ctx context.Context, source string) (*engine.Model, error) {
	n := atomic.AddInt32(&a.inFlight, 1)
	defer atomic.AddInt32(&a.inFlight, -1)
	for {
		p := atomic.LoadInt32(&a.peak)
		if n <= p || atomic.CompareAndSwapInt32(&a.peak, p, n) {
			break
		}
	}
	if a.delay > 0 {
		time.Sleep(a.delay)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.models[source]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", source, scene.ErrFetch)
	}
	return m, nil
}

func quiet() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newFactory(assets engine.AssetLoader, binder Binder) (*Factory, *world.Manager, *engine.HeadlessRenderer) {
	m := world.NewManager()
	r := engine.NewHeadlessRenderer(quiet())
	return NewFactory(m, r, assets, binder, quiet()), m, r
}

func vec(x, y, z float64) scene.Vec3 {
	return scene.Vec3{X: x, Y: y, Z: z}
}

func houseModel() *engine.Model {
	return &engine.Model{Meshes: []*engine.MeshNode{
		{Name: "Frame", Positions: []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}, Indices: []uint32{0, 1, 2}, Children: []*engine.MeshNode{
			{Name: "Door"},
			{Name: "Door"},
		}},
		{Name: "Chimney"},
	}, Animations: []string{"open"}}
}

func TestParentingReappliesLocalTransform(t *testing.T) {
	f, m, _ := newFactory(nil, nil)
	rot := vec(0, 0.5, 0)
	scl := vec(2, 2, 2)
	g := &scene.Graph{Nodes: []scene.Node{
		{ID: "child", Kind: scene.KindMesh, ParentID: "parent",
			Transform: scene.Transform{Position: vec(1, 2, 3), Rotation: &rot, Scaling: &scl},
			Mesh:      &scene.MeshDescriptor{Primitive: "box"}},
		{ID: "parent", Kind: scene.KindMesh,
			Transform: scene.Transform{Position: vec(10, 0, 0), Rotation: &scene.Vec3{Y: 1.2}},
			Mesh:      &scene.MeshDescriptor{Primitive: "box"}},
	}}

	res, err := f.Instantiate(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Failed)

	child, _ := m.GetEntity("child")
	parent, _ := m.GetEntity("parent")
	require.Equal(t, parent, child.Parent())

	assert.Equal(t, world.TransformFromScene(g.Nodes[0].Transform), child.Local)
	expected := parent.WorldMatrix().Mul4(child.Local.Matrix())
	assert.True(t, child.WorldMatrix().ApproxEqualThreshold(expected, 1e-9))
}

func TestUnresolvedParentStaysAtRoot(t *testing.T) {
	f, m, _ := newFactory(nil, nil)
	g := &scene.Graph{Nodes: []scene.Node{
		{ID: "orphan", Kind: scene.KindLight, ParentID: "ghost"},
		{ID: "lamp", Kind: scene.KindLight},
	}}

	res, err := f.Instantiate(context.Background(), g)
	require.NoError(t, err)

	orphan, ok := m.GetEntity("orphan")
	require.True(t, ok)
	assert.Nil(t, orphan.Parent())
	assert.Equal(t, 1, res.Failed)
	assert.True(t, errors.Is(res.Errors[0], ErrUnresolvedParent))
	assert.Equal(t, 2, res.Created)
}

func TestNodeFailureDoesNotAbort(t *testing.T) {
	f, m, _ := newFactory(nil, nil)
	g := &scene.Graph{Nodes: []scene.Node{
		{ID: "weird", Kind: "hologram"},
		{ID: "cam", Kind: scene.KindCamera},
	}}

	res, err := f.Instantiate(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.True(t, errors.Is(res.Errors[0], ErrUnknownKind))

	_, ok := m.GetEntity("cam")
	assert.True(t, ok)
}

func TestCameraAndLightDefaults(t *testing.T) {
	f, m, _ := newFactory(nil, nil)
	g := &scene.Graph{Nodes: []scene.Node{
		{ID: "cam", Kind: scene.KindCamera, Camera: &scene.CameraDescriptor{TargetMode: scene.TargetObject, TargetObject: "hero"}},
		{ID: "free", Kind: scene.KindCamera, Transform: scene.Transform{Position: vec(0, 0, -5)},
			Camera: &scene.CameraDescriptor{Type: scene.CameraFree, Target: &scene.Vec3{}}},
		{ID: "bulb", Kind: scene.KindLight},
		{ID: "spot", Kind: scene.KindLight, Light: &scene.LightDescriptor{Type: scene.LightSpot}},
	}}

	_, err := f.Instantiate(context.Background(), g)
	require.NoError(t, err)

	cam, _ := m.GetEntity("cam")
	assert.Equal(t, scene.CameraArcRotate, cam.Camera.Type)
	assert.Equal(t, world.DefaultFov, cam.Camera.Fov)
	assert.Equal(t, cam.Camera.Radius, cam.Camera.DesiredRadius)

	free, _ := m.GetEntity("free")
	assert.InDelta(t, 5.0, free.Camera.Radius, 1e-9)

	bulb, _ := m.GetEntity("bulb")
	assert.Equal(t, scene.LightPoint, bulb.Light.Type)
	assert.Equal(t, 0.7, bulb.Light.Intensity)

	spot, _ := m.GetEntity("spot")
	assert.Equal(t, 0.7, spot.Light.Intensity)
	assert.Greater(t, spot.Light.Angle, 0.0)
}

func TestDoorOccurrencesBindDeterministically(t *testing.T) {
	doorA := scene.Node{ID: "house::k1x9", Name: "Door", Kind: scene.KindMesh, ParentID: "house",
		Transform: scene.Transform{Position: vec(1, 0, 0)}}
	doorB := scene.Node{ID: "house::p0q2", Name: "Door", Kind: scene.KindMesh, ParentID: "house",
		Transform: scene.Transform{Position: vec(2, 0, 0)}}
	house := scene.Node{ID: "house", Kind: scene.KindModel, Model: &scene.ModelDescriptor{Source: "house.glb"}}
	lamp := scene.Node{ID: "lamp", Kind: scene.KindLight}

	layouts := [][]scene.Node{
		{house, doorA, doorB, lamp},
		{lamp, doorA, house, doorB},
		{doorA, lamp, doorB, house},
	}

	for i, nodes := range layouts {
		assets := &fakeAssets{models: map[string]*engine.Model{"house.glb": houseModel()}}
		f, m, _ := newFactory(assets, nil)

		res, err := f.Instantiate(context.Background(), &scene.Graph{Nodes: nodes})
		require.NoError(t, err)

		first, ok := m.GetEntity(doorA.ID)
		require.True(t, ok, "layout %d", i)
		second, ok := m.GetEntity(doorB.ID)
		require.True(t, ok, "layout %d", i)

		assert.Equal(t, "Door#0", first.StableID, "layout %d", i)
		assert.Equal(t, "Door#1", second.StableID, "layout %d", i)
		assert.Equal(t, mgl64.Vec3{1, 0, 0}, first.Local.Position)

		// Frame and Chimney have no authored node and were deleted in the editor
		assert.Equal(t, 2, res.Discarded, "layout %d", i)
		assert.Equal(t, "house", first.Parent().ID, "doors under a discarded frame fall back to the model root")
	}
}

func TestDoorOccurrencesUnderParentedModel(t *testing.T) {
	yard := scene.Node{ID: "yard", Kind: scene.KindMesh, Transform: scene.Transform{Position: vec(10, 0, 0)}}
	house := scene.Node{ID: "house", Kind: scene.KindModel, ParentID: "yard",
		Transform: scene.Transform{Position: vec(0, 0, 5)},
		Model:     &scene.ModelDescriptor{Source: "house.glb"}}
	doorA := scene.Node{ID: "house::k1x9", Name: "Door", Kind: scene.KindMesh, ParentID: "house",
		Transform: scene.Transform{Position: vec(1, 0, 0)}}
	doorB := scene.Node{ID: "house::p0q2", Name: "Door", Kind: scene.KindMesh, ParentID: "house",
		Transform: scene.Transform{Position: vec(2, 0, 0)}}

	layouts := [][]scene.Node{
		{yard, house, doorA, doorB},
		{doorA, house, doorB, yard},
		{house, doorB, yard, doorA},
	}

	for i, nodes := range layouts {
		assets := &fakeAssets{models: map[string]*engine.Model{"house.glb": houseModel()}}
		f, m, _ := newFactory(assets, nil)

		res, err := f.Instantiate(context.Background(), &scene.Graph{Nodes: nodes})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Failed, "layout %d", i)

		root, ok := m.GetEntity("house")
		require.True(t, ok)
		require.NotNil(t, root.Parent(), "layout %d", i)
		assert.Equal(t, "yard", root.Parent().ID)
		assert.Equal(t, mgl64.Vec3{0, 0, 5}, root.Local.Position)

		first, _ := m.GetEntity(doorA.ID)
		second, _ := m.GetEntity(doorB.ID)
		require.NotNil(t, first)
		require.NotNil(t, second)
		assert.Equal(t, "Door#0", first.StableID, "layout %d", i)
		assert.Equal(t, "Door#1", second.StableID, "layout %d", i)
		assert.Equal(t, mgl64.Vec3{1, 0, 0}, first.Local.Position)
		assert.Equal(t, mgl64.Vec3{2, 0, 0}, second.Local.Position)

		assert.True(t, first.WorldPosition().ApproxEqual(mgl64.Vec3{11, 0, 5}), "layout %d: %v", i, first.WorldPosition())
		assert.True(t, second.WorldPosition().ApproxEqual(mgl64.Vec3{12, 0, 5}), "layout %d: %v", i, second.WorldPosition())
	}
}

func TestChildMeshColliderBoundAfterParenting(t *testing.T) {
	sim := physics.NewSimpleWorld(physics.DefaultSimulationConfig(), quiet())
	assets := &fakeAssets{models: map[string]*engine.Model{"house.glb": houseModel()}}
	f, m, _ := newFactory(assets, physics.NewBinder(sim, quiet()))

	g := &scene.Graph{Nodes: []scene.Node{
		{ID: "yard", Kind: scene.KindMesh, Transform: scene.Transform{Position: vec(10, 0, 0)}},
		{ID: "house", Kind: scene.KindModel, ParentID: "yard", Model: &scene.ModelDescriptor{Source: "house.glb"}},
		{ID: "house::Frame#0", Name: "Frame", Kind: scene.KindMesh, ParentID: "house",
			Physics: &scene.PhysicsDescriptor{Enabled: true, Type: scene.PhysicsStatic, Impostor: scene.ImpostorMeshCollider}},
	}}

	res, err := f.Instantiate(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Colliders)

	frame, ok := m.GetEntity("house::Frame#0")
	require.True(t, ok)
	require.NotNil(t, frame.Body)
	assert.Equal(t, mgl64.Vec3{10, 0, 0}, frame.WorldPosition())
	assert.Equal(t, frame.WorldPosition(), frame.Body.Position())
}

func TestParentCycleLeavesChildAtRoot(t *testing.T) {
	f, m, _ := newFactory(nil, nil)
	g := &scene.Graph{Nodes: []scene.Node{
		{ID: "a", Kind: scene.KindMesh, ParentID: "b", Transform: scene.Transform{Position: vec(1, 0, 0)}},
		{ID: "b", Kind: scene.KindMesh, ParentID: "a", Transform: scene.Transform{Position: vec(0, 2, 0)}},
		{ID: "c", Kind: scene.KindMesh, ParentID: "c"},
	}}

	res, err := f.Instantiate(context.Background(), g)
	require.NoError(t, err)
	require.Equal(t, 2, res.Failed)
	assert.True(t, errors.Is(res.Errors[0], ErrParentCycle))
	assert.True(t, errors.Is(res.Errors[1], ErrParentCycle))

	a, _ := m.GetEntity("a")
	b, _ := m.GetEntity("b")
	c, _ := m.GetEntity("c")
	assert.Equal(t, b, a.Parent())
	assert.Nil(t, b.Parent())
	assert.Nil(t, c.Parent())
	assert.Equal(t, mgl64.Vec3{1, 2, 0}, a.WorldPosition())
}

func TestUntrackedModelKeepsAllSubMeshes(t *testing.T) {
	assets := &fakeAssets{models: map[string]*engine.Model{"house.glb": houseModel()}}
	f, m, _ := newFactory(assets, nil)
	g := &scene.Graph{Nodes: []scene.Node{
		{ID: "house", Kind: scene.KindModel, Model: &scene.ModelDescriptor{Source: "house.glb", AutoPlay: "open"}},
	}}

	res, err := f.Instantiate(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Discarded)
	assert.Equal(t, 5, m.Count())

	door, ok := m.GetEntity("house::Door#1")
	require.True(t, ok)
	assert.Equal(t, "house::Frame#0", door.Parent().ID)

	root, _ := m.GetEntity("house")
	assert.Equal(t, "open", root.Animations.Current())
}

func TestModelLoadFailureIsRecoverable(t *testing.T) {
	assets := &fakeAssets{models: map[string]*engine.Model{}}
	f, m, _ := newFactory(assets, nil)
	g := &scene.Graph{Nodes: []scene.Node{
		{ID: "ship", Kind: scene.KindModel, Model: &scene.ModelDescriptor{Source: "ship.glb"}},
		{ID: "ship::Hull#0", Name: "Hull", Kind: scene.KindMesh, ParentID: "ship"},
		{ID: "sun", Kind: scene.KindLight},
	}}

	res, err := f.Instantiate(context.Background(), g)
	require.NoError(t, err)

	_, ok := m.GetEntity("ship")
	assert.True(t, ok, "root survives a failed load")
	_, ok = m.GetEntity("sun")
	assert.True(t, ok)
	assert.Equal(t, 2, res.Failed)
	assert.True(t, errors.Is(res.Errors[1], ErrUnmatchedChildMesh))
}

func TestModelsLoadConcurrentlyWithLimit(t *testing.T) {
	assets := &fakeAssets{models: map[string]*engine.Model{}, delay: 20 * time.Millisecond}
	var nodes []scene.Node
	for i := 0; i < 6; i++ {
		src := fmt.Sprintf("m%d.glb", i)
		assets.models[src] = &engine.Model{Meshes: []*engine.MeshNode{{Name: "Part"}}}
		nodes = append(nodes, scene.Node{ID: fmt.Sprintf("m%d", i), Kind: scene.KindModel, Model: &scene.ModelDescriptor{Source: src}})
	}
	f, m, _ := newFactory(assets, nil)
	f.SetLoadParallel(2)

	_, err := f.Instantiate(context.Background(), &scene.Graph{Nodes: nodes})
	require.NoError(t, err)

	assert.LessOrEqual(t, atomic.LoadInt32(&assets.peak), int32(2))
	assert.Equal(t, 12, m.Count())

	var order []string
	for _, e := range m.GetAllEntities() {
		if e.Kind == scene.KindModel {
			order = append(order, e.ID)
		}
	}
	assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4", "m5"}, order, "models are applied in document order")
}

func TestCancelledContextAbortsLoad(t *testing.T) {
	assets := &fakeAssets{models: map[string]*engine.Model{"a": {}}}
	f, _, _ := newFactory(assets, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Instantiate(ctx, &scene.Graph{Nodes: []scene.Node{
		{ID: "a", Kind: scene.KindModel, Model: &scene.ModelDescriptor{Source: "a"}},
	}})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPhysicsBoundAfterParenting(t *testing.T) {
	sim := physics.NewSimpleWorld(physics.DefaultSimulationConfig(), quiet())
	binder := physics.NewBinder(sim, quiet())
	f, m, _ := newFactory(nil, binder)

	g := &scene.Graph{Nodes: []scene.Node{
		{ID: "platform", Kind: scene.KindMesh, Transform: scene.Transform{Position: vec(0, 5, 0)},
			Mesh: &scene.MeshDescriptor{Primitive: "box"}},
		{ID: "crate", Kind: scene.KindMesh, ParentID: "platform", Transform: scene.Transform{Position: vec(0, 1, 0)},
			Mesh:    &scene.MeshDescriptor{Primitive: "box"},
			Physics: &scene.PhysicsDescriptor{Enabled: true, Type: scene.PhysicsStatic, Impostor: scene.ImpostorBox, Mass: 50}},
	}}

	res, err := f.Instantiate(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Bodies)

	crate, _ := m.GetEntity("crate")
	require.NotNil(t, crate.Body)
	assert.Equal(t, 0.0, crate.Body.Mass())
	assert.Equal(t, mgl64.Vec3{0, 6, 0}, crate.Body.Position())
}

func TestDispose(t *testing.T) {
	sim := physics.NewSimpleWorld(physics.DefaultSimulationConfig(), quiet())
	f, m, r := newFactory(nil, physics.NewBinder(sim, quiet()))
	g := &scene.Graph{Nodes: []scene.Node{
		{ID: "box", Kind: scene.KindMesh, Mesh: &scene.MeshDescriptor{Primitive: "box"},
			Physics: &scene.PhysicsDescriptor{Enabled: true, Type: scene.PhysicsDynamic, Impostor: scene.ImpostorBox, Mass: 1}},
	}}

	_, err := f.Instantiate(context.Background(), g)
	require.NoError(t, err)
	require.Equal(t, 1, sim.BodyCount())

	f.Dispose()
	assert.Equal(t, 0, sim.BodyCount())
	assert.Equal(t, 0, m.Count())
	assert.Equal(t, 0, r.EntityCount())
}
