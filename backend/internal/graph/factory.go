package graph

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"x-scene/backend/internal/engine"
	"x-scene/backend/internal/physics"
	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/world"
)

var (
	// ErrUnresolvedParent parentId не найден среди живых сущностей
	ErrUnresolvedParent = errors.New("graph: parent not found")
	// ErrUnmatchedChildMesh child-mesh узел не сопоставлен ни с одним под-мешем
	ErrUnmatchedChildMesh = errors.New("graph: child mesh not found in loaded model")
	// ErrUnknownKind неизвестный тип узла
	ErrUnknownKind = errors.New("graph: unknown node kind")
	// ErrParentCycle parentId замыкает цепочку родителей на саму сущность
	ErrParentCycle = errors.New("graph: parent cycle")
)

// Binder привязка физики к сущности
type Binder interface {
	Bind(e *world.Entity, d *scene.PhysicsDescriptor) (physics.BindKind, error)
	Unbind(e *world.Entity)
}

// NodeError ошибка инстанцирования одного узла
type NodeError struct {
	NodeID string
	Pass   int
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (pass %d): %v", e.NodeID, e.Pass, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// Result итог инстанцирования
type Result struct {
	Created   int
	Failed    int
	Discarded int
	Bodies    int
	Colliders int
	Errors    []error
	Models    map[string]*engine.Model
}

func (r *Result) fail(nodeID string, pass int, err error) {
	r.Failed++
	r.Errors = append(r.Errors, &NodeError{NodeID: nodeID, Pass: pass, Err: err})
}

// Factory превращает граф сцены в живые сущности
type Factory struct {
	manager  *world.Manager
	renderer engine.Renderer
	assets   engine.AssetLoader
	binder   Binder
	logger   *log.Logger
	parallel int
}

// NewFactory создает новый экземпляр Factory. binder и assets могут быть nil.
func NewFactory(manager *world.Manager, renderer engine.Renderer, assets engine.AssetLoader, binder Binder, logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &Factory{
		manager:  manager,
		renderer: renderer,
		assets:   assets,
		binder:   binder,
		logger:   logger,
		parallel: 4,
	}
}

// SetLoadParallel ограничивает число одновременных загрузок моделей
func (f *Factory) SetLoadParallel(n int) {
	if n > 0 {
		f.parallel = n
	}
}

// Instantiate выполняет три прохода: обычные узлы (модели грузятся параллельно,
// применяются в порядке документа), child-mesh узлы, родительские связи.
// Ошибка одного узла не прерывает остальные.
func (f *Factory) Instantiate(ctx context.Context, g *scene.Graph) (*Result, error) {
	if g == nil {
		return nil, fmt.Errorf("instantiate: nil graph")
	}
	res := &Result{Models: make(map[string]*engine.Model)}
	index := scene.NewIdentityIndex(g)

	models, loadErrs, err := f.loadModels(ctx, g)
	if err != nil {
		return res, err
	}

	for i := range g.Nodes {
		node := &g.Nodes[i]
		if node.IsChildMesh() {
			continue
		}
		if lerr, ok := loadErrs[node.ID]; ok {
			f.logger.Printf("[Graph] model %s failed to load: %v", node.ID, lerr)
			res.fail(node.ID, 1, lerr)
		}
		if model := models[node.ID]; model != nil {
			res.Models[node.ID] = model
		}
		if err := f.safe(func() error { return f.createNode(node, models[node.ID], index, res) }); err != nil {
			f.logger.Printf("[Graph] failed to create %s: %v", node.ID, err)
			res.fail(node.ID, 1, err)
			continue
		}
		if node.ParentID == "" {
			f.bind(node, 1, res)
		}
	}

	var childMeshes []*scene.Node
	for i := range g.Nodes {
		node := &g.Nodes[i]
		if !node.IsChildMesh() {
			continue
		}
		if err := f.safe(func() error { return f.applyChildMesh(node) }); err != nil {
			f.logger.Printf("[Graph] child mesh %s skipped: %v", node.ID, err)
			res.fail(node.ID, 2, err)
			continue
		}
		childMeshes = append(childMeshes, node)
	}

	for i := range g.Nodes {
		node := &g.Nodes[i]
		if node.ParentID == "" || node.IsChildMesh() {
			continue
		}
		if err := f.safe(func() error { return f.attach(node) }); err != nil {
			f.logger.Printf("[Graph] parenting %s -> %s skipped: %v", node.ID, node.ParentID, err)
			res.fail(node.ID, 3, err)
		}
		if _, ok := f.manager.GetEntity(node.ID); ok {
			f.bind(node, 3, res)
		}
	}

	// коллайдеры под-мешей запекают мировую трансформацию, поэтому только после родителей
	for _, node := range childMeshes {
		f.bind(node, 3, res)
	}

	if f.renderer != nil {
		if err := f.renderer.ApplySettings(g.Settings); err != nil {
			f.logger.Printf("[Graph] scene settings rejected: %v", err)
		}
	}

	f.logger.Printf("[Graph] instantiated %d entities (%d failed, %d sub-meshes discarded, %d bodies, %d colliders)",
		res.Created, res.Failed, res.Discarded, res.Bodies, res.Colliders)
	return res, nil
}

// safe переводит панику в ошибку
func (f *Factory) safe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// loadModels грузит все модели параллельно. Ошибки загрузки возвращаются по узлам,
// общая ошибка только при отмене контекста.
func (f *Factory) loadModels(ctx context.Context, g *scene.Graph) (map[string]*engine.Model, map[string]error, error) {
	models := make(map[string]*engine.Model)
	errs := make(map[string]error)
	if f.assets == nil {
		return models, errs, nil
	}

	type loaded struct {
		model *engine.Model
		err   error
	}
	var ids []string
	var sources []string
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Kind == scene.KindModel && !n.IsChildMesh() && n.Model != nil && n.Model.Source != "" {
			ids = append(ids, n.ID)
			sources = append(sources, n.Model.Source)
		}
	}
	results := make([]loaded, len(ids))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(f.parallel)
	for i := range ids {
		eg.Go(func() error {
			m, err := f.assets.LoadModel(egctx, sources[i])
			results[i] = loaded{model: m, err: err}
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("load models: %w", err)
	}

	for i, id := range ids {
		if results[i].err != nil {
			errs[id] = results[i].err
			continue
		}
		models[id] = results[i].model
	}
	return models, errs, nil
}

func (f *Factory) register(e *world.Entity, res *Result) error {
	if f.renderer != nil {
		if err := f.renderer.AddEntity(e); err != nil {
			return fmt.Errorf("renderer: %w", err)
		}
	}
	f.manager.AddEntity(e)
	res.Created++
	return nil
}

func (f *Factory) createNode(node *scene.Node, model *engine.Model, index *scene.IdentityIndex, res *Result) error {
	e := world.NewEntity(node)

	switch node.Kind {
	case scene.KindCamera:
		e.Camera = buildCamera(node)
	case scene.KindLight:
		e.Light = buildLight(node)
	case scene.KindMesh:
		e.Mesh = buildPrimitive(node.Mesh)
	case scene.KindModel:
		if err := f.register(e, res); err != nil {
			return err
		}
		if model != nil {
			f.expandModel(e, node, model, index, res)
		}
		return nil
	case scene.KindAudio:
		e.Audio = buildAudio(node)
	case scene.KindSpatialUI:
		e.SpatialUI = buildSpatialUI(node)
	case scene.KindParticle:
		e.Particle = buildParticle(node)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, node.Kind)
	}

	return f.register(e, res)
}

// expandModel создает сущности под-мешей. Если граф хранит child-mesh узлы
// для этой модели, несопоставленные под-меши отбрасываются.
func (f *Factory) expandModel(root *world.Entity, node *scene.Node, model *engine.Model, index *scene.IdentityIndex, res *Result) {
	anims := append([]string{}, model.Animations...)
	if node.Model != nil {
		anims = append(anims, node.Model.Animations...)
	}
	if len(anims) > 0 {
		root.Animations = world.NewAnimationSet(anims...)
		if node.Model != nil && node.Model.AutoPlay != "" {
			root.Animations.Play(node.Model.AutoPlay)
		}
	}

	tracked := index.HasContainer(node.ID)
	matches := index.Assign(node.ID, model.SubMeshNames())

	created := make(map[*engine.MeshNode]*world.Entity)
	discarded := 0
	i := 0
	model.Walk(func(mn, parent *engine.MeshNode) {
		m := matches[i]
		i++

		id := m.NodeID
		if id == "" {
			if tracked {
				discarded++
				return
			}
			id = node.ID + scene.ChildMeshSeparator + m.StableID
		}

		sub := world.NewEntity(&scene.Node{
			ID:        id,
			Name:      mn.Name,
			Kind:      scene.KindMesh,
			ParentID:  node.ID,
			Transform: mn.Transform,
		})
		sub.StableID = m.StableID
		if len(mn.Positions) > 0 {
			sub.Mesh = world.NewGeometry(mn.Positions, mn.Indices)
		}

		owner := root
		if p, ok := created[parent]; ok && parent != nil {
			owner = p
		}
		sub.SetParent(owner)

		if err := f.register(sub, res); err != nil {
			res.fail(id, 1, err)
			sub.SetParent(nil)
			return
		}
		created[mn] = sub
	})

	if discarded > 0 {
		res.Discarded += discarded
		f.logger.Printf("[Graph] model %s: %d of %d sub-meshes kept", node.ID, len(created), len(matches))
	}
}

func (f *Factory) applyChildMesh(node *scene.Node) error {
	e, ok := f.manager.GetEntity(node.ID)
	if !ok {
		container, _, _ := scene.SplitChildMeshID(node.ID)
		return fmt.Errorf("%w: container %s", ErrUnmatchedChildMesh, container)
	}

	e.Node = node
	e.Name = node.DisplayName()
	e.Local = world.TransformFromScene(node.Transform)
	e.Visible = node.IsVisible()
	e.Enabled = node.IsEnabled()
	if node.Mesh != nil && e.Mesh == nil && node.Mesh.IsPrimitive() {
		e.Mesh = buildPrimitive(node.Mesh)
	}
	return nil
}

// attach вешает сущность на родителя и заново применяет локальную трансформацию
func (f *Factory) attach(node *scene.Node) error {
	child, ok := f.manager.GetEntity(node.ID)
	if !ok {
		return fmt.Errorf("entity %s was not created", node.ID)
	}
	parent, ok := f.manager.GetEntity(node.ParentID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnresolvedParent, node.ParentID)
	}
	for p := parent; p != nil; p = p.Parent() {
		if p == child {
			return fmt.Errorf("%w: %s -> %s", ErrParentCycle, node.ID, node.ParentID)
		}
	}

	child.SetParent(parent)
	child.Local = world.TransformFromScene(node.Transform)
	return nil
}

func (f *Factory) bind(node *scene.Node, pass int, res *Result) {
	if f.binder == nil || node.Physics == nil {
		return
	}
	e, ok := f.manager.GetEntity(node.ID)
	if !ok {
		return
	}

	kind, err := f.binder.Bind(e, node.Physics)
	if err != nil {
		f.logger.Printf("[Graph] physics for %s: %v", node.ID, err)
		res.fail(node.ID, pass, err)
		return
	}
	switch kind {
	case physics.BindImpostor:
		res.Bodies++
	case physics.BindMeshCollider:
		res.Colliders++
	}
}

// Dispose удаляет все сущности вместе с телами и объектами рендерера
func (f *Factory) Dispose() {
	entities := f.manager.GetAllEntities()
	for i := len(entities) - 1; i >= 0; i-- {
		e := entities[i]
		if f.binder != nil {
			f.binder.Unbind(e)
		} else if e.Body != nil {
			e.Body.Dispose()
			e.Body = nil
		}
		if f.renderer != nil {
			f.renderer.RemoveEntity(e.ID)
		}
		f.manager.RemoveEntity(e.ID)
	}
	f.logger.Printf("[Graph] disposed %d entities", len(entities))
}
