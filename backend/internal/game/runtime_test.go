package game

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-scene/backend/internal/config"
	"x-scene/backend/internal/control"
	"x-scene/backend/internal/engine"
	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/telemetry"
	"x-scene/backend/internal/world"
)

const frame = time.Second / 60

const sceneDoc = `{
  "nodes": [
    {"id": "floor", "kind": "mesh", "transform": {"position": {"x": 0, "y": -0.5, "z": 0}},
     "mesh": {"primitive": "box", "width": 200, "height": 1, "depth": 200},
     "physics": {"enabled": true, "type": "static", "impostor": "box"}},
    {"id": "hero", "kind": "mesh", "transform": {"position": {"x": 0, "y": 0.5, "z": 0}},
     "mesh": {"primitive": "box", "size": 1},
     "physics": {"enabled": true, "type": "dynamic", "impostor": "box", "mass": 2},
     "inputControl": {"active": true, "speed": 5,
       "forward": {"keyBinding": {"key": "w"}}, "backward": {"keyBinding": {"key": "s"}}}},
    {"id": "cam", "kind": "camera",
     "camera": {"type": "arcRotate", "active": true, "radius": 10,
       "targetMode": "object", "targetObject": "hero", "targetOffset": {"x": 0, "y": 1, "z": 0},
       "collision": {"enabled": true}}},
    {"id": "sign", "kind": "spatialui", "transform": {"position": {"x": 0, "y": 2, "z": 0}},
     "spatialUI": {"elementId": "label"}},
    {"id": "speaker", "kind": "audio", "transform": {"position": {"x": 0, "y": 0, "z": 30}},
     "audio": {"source": "hum.ogg", "volume": 1, "autoplay": true, "spatial": true, "refDistance": 1, "maxDistance": 50}}
  ],
  "sceneSettings": {"fog": {"mode": "exp", "density": 0.01}}
}`

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// fakePublisher запоминает опубликованные кадры
type fakePublisher struct {
	mu     sync.Mutex
	frames []uint64
	ids    [][]string
}

func (p *fakePublisher) PublishFrame(tick uint64, entities []*world.Entity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	p.frames = append(p.frames, tick)
	p.ids = append(p.ids, ids)
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func testConfig(dir string) config.Config {
	cfg := config.Default()
	cfg.Runtime.Scene = filepath.Join(dir, "scene.json")
	cfg.Runtime.UIFile = filepath.Join(dir, "ui.yaml")
	cfg.Runtime.LogicManifest = filepath.Join(dir, "logic.json")
	cfg.Runtime.AssetsDir = dir
	return cfg
}

func loadedRuntime(t *testing.T) (*Runtime, *engine.HeadlessRenderer, *telemetry.FrameCollector, *fakePublisher) {
	t.Helper()
	dir := writeFiles(t, map[string]string{
		"scene.json": sceneDoc,
		"ui.yaml":    "elements:\n  - id: label\n    text: Hello\n",
		"logic.json": `{"entities": {"sign": [{"scriptName": "Rotator", "parameters": {"speed": 1}}], "ghost": [{"scriptName": "Rotator"}]}}`,
	})

	collector, err := telemetry.NewFrameCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	renderer := engine.NewHeadlessRenderer(quietLogger())
	publisher := &fakePublisher{}

	rt := NewRuntime(Options{
		Config:    testConfig(dir),
		Renderer:  renderer,
		Collector: collector,
		Publisher: publisher,
		Logger:    quietLogger(),
	})
	require.NoError(t, rt.Load(context.Background()))
	t.Cleanup(rt.Close)
	return rt, renderer, collector, publisher
}

func TestRuntimeLoadRegistersSystemsInFrameOrder(t *testing.T) {
	rt, renderer, collector, _ := loadedRuntime(t)

	state, err := rt.Status()
	assert.Equal(t, StateReady, state)
	assert.NoError(t, err)

	assert.Equal(t, []string{
		"InputDrainSystem",
		"InputControlSystem",
		"PhysicsSystem",
		"LogicSystem",
		"CameraTrackingSystem",
		"CameraCollisionSystem",
		"CameraShakeSystem",
		"RenderSystem",
		"SpatialUISystem",
		"AudioSystem",
		"StreamSystem",
		"SceneStatsSystem",
	}, rt.Ticker.Systems())

	assert.Equal(t, 5, rt.Entities.Count())
	assert.Equal(t, 5, renderer.EntityCount())
	assert.NotNil(t, rt.Physics)
	assert.Equal(t, 2, rt.Physics.BodyCount())
	assert.Equal(t, 1, rt.Logic.Count())
	assert.Equal(t, 1, rt.Logic.Failed())
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.LoadFailures.WithLabelValues("script")))
	require.NotNil(t, rt.Control.Active())
	assert.Equal(t, "hero", rt.Control.Active().Entity.ID)
	assert.Equal(t, "exp", renderer.Settings().Fog.Mode)
}

func TestRuntimeFrameDrivesLocomotionAndCamera(t *testing.T) {
	rt, renderer, collector, publisher := loadedRuntime(t)
	hero, _ := rt.Entities.GetEntity("hero")
	cam, _ := rt.Entities.GetEntity("cam")
	sign, _ := rt.Entities.GetEntity("sign")

	for i := 0; i < 30; i++ {
		rt.Ticker.Step(frame)
	}
	assert.InDelta(t, 0.5, hero.WorldPosition().Y(), 0.05)
	start := hero.WorldPosition().Z()

	rt.Queue.Push(control.Event{Type: control.EventKey, Key: control.KeyEvent{Down: true, Key: "w", Code: "KeyW"}})
	for i := 0; i < 30; i++ {
		rt.Ticker.Step(frame)
	}

	moved := hero.WorldPosition().Z() - start
	assert.InDelta(t, 2.5, moved, 0.3)

	// камера смотрит на текущую позицию героя в том же кадре
	want := hero.WorldPosition().Add(mgl64Up())
	assert.InDelta(t, want.X(), cam.Camera.Target.X(), 1e-9)
	assert.InDelta(t, want.Y(), cam.Camera.Target.Y(), 1e-9)
	assert.InDelta(t, want.Z(), cam.Camera.Target.Z(), 1e-9)

	assert.Equal(t, uint64(60), renderer.Frames())
	assert.Greater(t, sign.Local.Rotation.Y(), 0.9)

	last, ok := rt.Recorder.Last()
	require.True(t, ok)
	assert.Equal(t, "hero", last.EntityID)
	assert.Equal(t, "moving", last.State)
	assert.True(t, last.Physics)

	assert.Equal(t, 5.0, testutil.ToFloat64(collector.Entities))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.Bodies))

	publisher.mu.Lock()
	assert.NotEmpty(t, publisher.frames)
	assert.Contains(t, publisher.ids[0], "hero")
	publisher.mu.Unlock()
}

func TestRuntimeMissingSceneIsFatal(t *testing.T) {
	cfg := testConfig(t.TempDir())
	rt := NewRuntime(Options{Config: cfg, Logger: quietLogger()})
	defer rt.Close()

	err := rt.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, scene.ErrFetch))

	state, loadErr := rt.Status()
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, err, loadErr)
	assert.Zero(t, rt.Entities.Count())

	assert.True(t, errors.Is(rt.Start(), ErrNotLoaded))
}

func TestRuntimeMissingOptionalDocuments(t *testing.T) {
	dir := writeFiles(t, map[string]string{"scene.json": sceneDoc})
	collector, err := telemetry.NewFrameCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	rt := NewRuntime(Options{Config: testConfig(dir), Collector: collector, Logger: quietLogger()})
	defer rt.Close()

	require.NoError(t, rt.Load(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.LoadFailures.WithLabelValues("ui")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.LoadFailures.WithLabelValues("manifest")))
	assert.Zero(t, rt.Logic.Count())
}

func TestRuntimeSceneSettingsDisablePhysics(t *testing.T) {
	doc := `{"nodes": [
    {"id": "hero", "kind": "mesh", "mesh": {"primitive": "box"},
     "physics": {"enabled": true, "type": "dynamic", "mass": 1},
     "inputControl": {"active": true, "speed": 4, "forward": {"keyBinding": {"key": "w"}}}}
  ], "sceneSettings": {"physicsEnabled": false}}`
	dir := writeFiles(t, map[string]string{"scene.json": doc})
	cfg := testConfig(dir)
	cfg.Runtime.UIFile, cfg.Runtime.LogicManifest = "", ""

	rt := NewRuntime(Options{Config: cfg, Logger: quietLogger()})
	defer rt.Close()
	require.NoError(t, rt.Load(context.Background()))

	assert.Nil(t, rt.Physics)
	hero, _ := rt.Entities.GetEntity("hero")
	assert.Nil(t, hero.Body)

	rt.Queue.Push(control.Event{Type: control.EventKey, Key: control.KeyEvent{Down: true, Key: "w"}})
	for i := 0; i < 60; i++ {
		rt.Ticker.Step(frame)
	}
	assert.InDelta(t, 4.0, hero.WorldPosition().Z(), 1e-6)
}

func TestRuntimeStartAndClose(t *testing.T) {
	rt, renderer, _, _ := loadedRuntime(t)

	require.NoError(t, rt.Start())
	state, _ := rt.Status()
	assert.Equal(t, StateRunning, state)

	require.Eventually(t, func() bool { return renderer.Frames() >= 3 }, 2*time.Second, 5*time.Millisecond)

	rt.Close()
	state, _ = rt.Status()
	assert.Equal(t, StateClosed, state)
	assert.Zero(t, renderer.EntityCount())
	assert.Zero(t, rt.Entities.Count())

	frames := renderer.Frames()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, frames, renderer.Frames(), "no frames after close")
}
