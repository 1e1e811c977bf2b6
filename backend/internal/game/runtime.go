package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"x-scene/backend/internal/audio"
	"x-scene/backend/internal/camera"
	"x-scene/backend/internal/config"
	"x-scene/backend/internal/control"
	"x-scene/backend/internal/engine"
	"x-scene/backend/internal/graph"
	"x-scene/backend/internal/logic"
	"x-scene/backend/internal/physics"
	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/spatialui"
	"x-scene/backend/internal/telemetry"
	"x-scene/backend/internal/world"
)

// ErrNotLoaded Start вызван до успешного Load
var ErrNotLoaded = errors.New("runtime: scene not loaded")

// State состояние рантайма
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateRunning State = "running"
	StateFailed  State = "failed"
	StateClosed  State = "closed"
)

// Options внешние зависимости рантайма. Пустые поля заменяются реализациями по умолчанию.
type Options struct {
	Config     config.Config
	Renderer   engine.Renderer
	Assets     engine.AssetLoader
	Physics    physics.World
	Registry   *logic.Registry
	Sink       audio.Sink
	Collector  *telemetry.FrameCollector
	Publisher  FramePublisher
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Runtime оживляет описание сцены: загрузка по фазам и цикл кадров
type Runtime struct {
	cfg    config.Config
	opts   Options
	logger *log.Logger
	tracer trace.Tracer

	Entities  *world.Manager
	Renderer  engine.Renderer
	Physics   physics.World
	Factory   *graph.Factory
	Result    *graph.Result
	Queue     *control.Queue
	Control   *control.Manager
	Pipeline  *camera.Pipeline
	Tracking  *camera.TrackingManager
	Shake     *camera.ShakeManager
	Collision *camera.CollisionManager
	UI        *spatialui.Store
	Projector *spatialui.Projector
	Logic     *logic.Host
	Audio     *audio.Manager
	Recorder  *telemetry.Recorder
	Ticker    *GameTicker

	mu    sync.RWMutex
	state State
	err   error

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRuntime создает рантайм. Очередь ввода доступна сразу, до загрузки сцены.
func NewRuntime(opts Options) *Runtime {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Renderer == nil {
		opts.Renderer = engine.NewHeadlessRenderer(opts.Logger)
	}
	if opts.Assets == nil {
		opts.Assets = engine.NewFileLoader(opts.Config.Runtime.AssetsDir, opts.HTTPClient)
	}
	if opts.Registry == nil {
		opts.Registry = logic.NewRegistry()
		logic.RegisterBuiltins(opts.Registry)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		cfg:      opts.Config,
		opts:     opts,
		logger:   opts.Logger,
		tracer:   telemetry.Tracer(),
		Entities: world.NewManager(),
		Renderer: opts.Renderer,
		Queue:    control.NewQueue(0, opts.Logger),
		UI:       spatialui.NewStore(),
		Recorder: telemetry.NewRecorder(200, 30*time.Second, opts.Logger),
		state:    StateIdle,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Status текущее состояние и фатальная ошибка загрузки
func (r *Runtime) Status() (State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state, r.err
}

func (r *Runtime) setState(s State, err error) {
	r.mu.Lock()
	r.state, r.err = s, err
	r.mu.Unlock()
}

// Load фазы загрузки: физика, сцена (фатально), инстанцирование, UI,
// пространственный UI, пользовательская логика, регистрация систем
func (r *Runtime) Load(ctx context.Context) (err error) {
	r.setState(StateLoading, nil)
	ctx, span := r.tracer.Start(ctx, "runtime.load",
		trace.WithAttributes(attribute.String("scene", r.cfg.Runtime.Scene)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.setState(StateFailed, err)
			r.logger.Printf("[Runtime] load failed: %v", err)
		} else {
			r.setState(StateReady, nil)
		}
		span.End()
	}()

	r.initPhysics(ctx)

	g, err := r.fetchScene(ctx)
	if err != nil {
		return err
	}
	r.applySceneSettings(g.Settings)

	if err := r.instantiate(ctx, g); err != nil {
		return err
	}

	r.loadUI(ctx)
	r.setupManagers(ctx)
	r.loadLogic(ctx)
	r.registerSystems(ctx)

	r.logger.Printf("[Runtime] scene %s ready: %d entities", r.cfg.Runtime.Scene, r.Entities.Count())
	return nil
}

func (r *Runtime) initPhysics(ctx context.Context) {
	_, span := r.tracer.Start(ctx, "physics.init")
	defer span.End()

	if !r.cfg.Physics.Enabled {
		r.logger.Printf("[Runtime] physics disabled by configuration")
		span.SetAttributes(attribute.Bool("enabled", false))
		return
	}
	if r.opts.Physics != nil {
		r.Physics = r.opts.Physics
	} else {
		sim := physics.FromSettings(r.cfg.Physics)
		physics.SetSimulationConfig(sim)
		r.Physics = physics.NewSimpleWorld(sim, r.logger)
	}
	span.SetAttributes(attribute.Bool("enabled", true))
}

func (r *Runtime) fetchScene(ctx context.Context) (*scene.Graph, error) {
	ctx, span := r.tracer.Start(ctx, "scene.fetch")
	defer span.End()

	g, err := scene.Load(ctx, r.opts.HTTPClient, r.cfg.Runtime.Scene)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scene unavailable")
		return nil, fmt.Errorf("load scene %s: %w", r.cfg.Runtime.Scene, err)
	}
	span.SetAttributes(attribute.Int("nodes", len(g.Nodes)))
	return g, nil
}

// applySceneSettings настройки физики из документа сцены поверх конфигурации
func (r *Runtime) applySceneSettings(s scene.Settings) {
	if s.PhysicsEnabled != nil && !*s.PhysicsEnabled && r.Physics != nil {
		r.logger.Printf("[Runtime] physics disabled by scene settings")
		r.Physics = nil
		return
	}
	if s.Gravity == nil || r.Physics == nil {
		return
	}
	if g, ok := r.Physics.(interface{ SetGravity(mgl64.Vec3) }); ok {
		g.SetGravity(s.Gravity.Mgl())
	}
}

func (r *Runtime) instantiate(ctx context.Context, g *scene.Graph) error {
	ctx, span := r.tracer.Start(ctx, "graph.instantiate")
	defer span.End()

	var binder graph.Binder
	if r.Physics != nil {
		binder = physics.NewBinder(r.Physics, r.logger)
	}
	r.Factory = graph.NewFactory(r.Entities, r.Renderer, r.opts.Assets, binder, r.logger)
	r.Factory.SetLoadParallel(r.cfg.Runtime.LoadParallel)

	res, err := r.Factory.Instantiate(ctx, g)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("instantiate scene: %w", err)
	}
	r.Result = res
	for i := 0; i < res.Failed; i++ {
		r.opts.Collector.LoadFailed("node")
	}
	span.SetAttributes(
		attribute.Int("created", res.Created),
		attribute.Int("failed", res.Failed),
		attribute.Int("bodies", res.Bodies),
		attribute.Int("colliders", res.Colliders),
	)
	return nil
}

func (r *Runtime) loadUI(ctx context.Context) {
	if r.cfg.Runtime.UIFile == "" {
		return
	}
	ctx, span := r.tracer.Start(ctx, "ui.load")
	defer span.End()

	n, err := r.UI.Load(ctx, r.opts.HTTPClient, r.cfg.Runtime.UIFile)
	if err != nil {
		span.RecordError(err)
		r.opts.Collector.LoadFailed("ui")
		r.logger.Printf("[Runtime] ui %s not loaded: %v", r.cfg.Runtime.UIFile, err)
		return
	}
	span.SetAttributes(attribute.Int("elements", n))
}

// setupManagers менеджеры камер, управления, пространственного UI и звука
func (r *Runtime) setupManagers(ctx context.Context) {
	_, span := r.tracer.Start(ctx, "managers.setup")
	defer span.End()

	cameras := r.Entities.Filter(func(e *world.Entity) bool { return e.Camera != nil })
	r.Pipeline = camera.NewPipeline(cameras)
	r.Tracking = camera.NewTrackingManager(r.Entities, r.logger)
	r.Tracking.Initialize()
	r.Shake = camera.NewShakeManager(r.Entities, r.logger)
	r.Shake.Initialize()
	r.Collision = camera.NewCollisionManager(r.Entities, r.cfg.Camera, r.logger)
	r.Collision.Initialize()

	gravity := 9.81
	if r.Physics != nil {
		gravity = r.Physics.Gravity().Len()
	} else if g := (mgl64.Vec3{r.cfg.Physics.GravityX, r.cfg.Physics.GravityY, r.cfg.Physics.GravityZ}).Len(); g > 0 {
		gravity = g
	}
	r.Control = control.NewManager(r.Entities, r.Queue, r.cfg.Control, r.cfg.Camera, gravity, r.logger)
	if err := r.Control.Initialize(); err != nil {
		r.opts.Collector.LoadFailed("control")
	}

	r.Projector = spatialui.NewProjector(r.Entities, r.UI, r.cfg.Viewport, r.logger)
	anchors := r.Projector.Initialize()

	r.Audio = audio.NewManager(r.Entities, r.opts.Sink, r.logger)
	r.Audio.Initialize()

	span.SetAttributes(
		attribute.Int("cameras", len(cameras)),
		attribute.Int("camera_solids", r.Collision.SolidCount()),
		attribute.Int("anchors", anchors),
	)
}

func (r *Runtime) loadLogic(ctx context.Context) {
	r.Logic = logic.NewHost(r.Entities, r.Renderer, r.UI, r.opts.Registry, r.logger)
	r.Logic.SetHTTPClient(r.opts.HTTPClient)

	source := r.cfg.Runtime.LogicManifest
	if source == "" {
		return
	}
	ctx, span := r.tracer.Start(ctx, "logic.load")
	defer span.End()

	n, err := r.Logic.Load(ctx, source)
	if err != nil {
		span.RecordError(err)
		r.opts.Collector.LoadFailed("manifest")
		r.logger.Printf("[Runtime] %v", err)
		return
	}
	for i := 0; i < r.Logic.Failed(); i++ {
		r.opts.Collector.LoadFailed("script")
	}
	span.SetAttributes(attribute.Int("scripts", n), attribute.Int("failed", r.Logic.Failed()))

	if r.cfg.Runtime.Watch && !strings.Contains(source, "://") {
		if err := r.Logic.Watch(r.ctx, source); err != nil {
			r.logger.Printf("[Runtime] %v", err)
		}
	}
}

func (r *Runtime) registerSystems(ctx context.Context) {
	_, span := r.tracer.Start(ctx, "systems.register")
	defer span.End()

	r.Ticker = NewGameTicker(r.cfg.Runtime.TPS, r.Entities, r.opts.Collector, r.logger)
	systems := []TickSystem{
		NewInputDrainSystem(r.Control),
		NewInputControlSystem(r.Control, r.Recorder),
		NewPhysicsSystem(r.Physics, r.Entities),
		NewLogicSystem(r.Logic),
		NewCameraTrackingSystem(r.Tracking, r.Pipeline),
		NewCameraCollisionSystem(r.Collision, r.Pipeline),
		NewCameraShakeSystem(r.Shake, r.Pipeline),
		NewRenderSystem(r.Renderer, r.Pipeline, r.Entities, r.Ticker, r.cfg.Viewport),
		NewSpatialUISystem(r.Projector),
		NewAudioSystem(r.Audio),
		NewSceneStatsSystem(r.Ticker, r.Entities, r.Physics, r.Collision, r.opts.Collector, r.logger),
	}
	if r.opts.Publisher != nil {
		systems = append(systems, NewStreamSystem(r.Ticker, r.Entities, r.opts.Publisher, r.cfg.Server.StreamPeriod()))
	}
	for _, s := range systems {
		r.Ticker.RegisterSystem(s)
	}
	span.SetAttributes(attribute.Int("systems", len(systems)))
}

// Start запускает цикл кадров
func (r *Runtime) Start() error {
	state, _ := r.Status()
	if state != StateReady {
		return fmt.Errorf("%w (state %s)", ErrNotLoaded, state)
	}
	if err := r.Ticker.Start(); err != nil {
		return err
	}
	r.setState(StateRunning, nil)
	return nil
}

// Close останавливает цикл, затем отсоединяет логику, звук и удаляет сущности с телами
func (r *Runtime) Close() {
	state, err := r.Status()
	if state == StateClosed {
		return
	}
	if r.Ticker != nil {
		r.Ticker.Stop()
	}
	r.cancel()
	if r.Logic != nil {
		r.Logic.Close()
	}
	if r.Audio != nil {
		r.Audio.Dispose()
	}
	if r.Factory != nil {
		r.Factory.Dispose()
	}
	r.setState(StateClosed, err)
	r.logger.Printf("[Runtime] closed")
}
