package logic

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"x-scene/backend/internal/engine"
	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/spatialui"
	"x-scene/backend/internal/world"
)

// script подключенное поведение
type script struct {
	ref      string
	name     string
	behavior Behavior
	updater  Updater
	ctx      *Context
}

// prepared запись манифеста с разрешенным именем, готовая к подключению
type prepared struct {
	ref    string
	name   string
	params map[string]any
}

// plan подготовленный манифест; упорядочен: сцена, затем сущности в порядке документа
type plan struct {
	entries []prepared
	failed  int
}

// Host загружает поведения по манифесту и вызывает их жизненный цикл.
// Поведения выполняются с полным доверием; изоляции нет.
type Host struct {
	scene    *world.Manager
	engine   engine.Renderer
	ui       spatialui.Resolver
	registry *Registry
	client   *http.Client
	logger   *log.Logger

	scripts []*script
	failed  int

	pending atomic.Pointer[plan]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewHost создает хост. ui может быть nil.
func NewHost(scene *world.Manager, renderer engine.Renderer, ui spatialui.Resolver, registry *Registry, logger *log.Logger) *Host {
	if logger == nil {
		logger = log.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		scene:    scene,
		engine:   renderer,
		ui:       ui,
		registry: registry,
		client:   http.DefaultClient,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetHTTPClient клиент для загрузки манифеста и скриптов по http
func (h *Host) SetHTTPClient(c *http.Client) {
	if c != nil {
		h.client = c
	}
}

// Registry реестр поведений
func (h *Host) Registry() *Registry {
	return h.registry
}

// Load получает манифест и подключает скрипты. Ошибка только при недоступном манифесте.
func (h *Host) Load(ctx context.Context, source string) (int, error) {
	m, err := LoadManifest(ctx, h.client, source)
	if err != nil {
		return 0, fmt.Errorf("load logic manifest: %w", err)
	}
	h.apply(h.prepare(ctx, m, baseOf(source)))
	return len(h.scripts), nil
}

// LoadManifest подключает скрипты из уже разобранного манифеста
func (h *Host) LoadManifest(ctx context.Context, m *Manifest, baseDir string) int {
	h.apply(h.prepare(ctx, m, baseDir))
	return len(h.scripts)
}

// prepare разрешает имена поведений. Может выполняться вне горутины тика.
func (h *Host) prepare(ctx context.Context, m *Manifest, baseDir string) *plan {
	p := &plan{}

	refs := make([]string, 0, len(m.Entities))
	if _, ok := m.Entities[scene.SceneEntityRef]; ok {
		refs = append(refs, scene.SceneEntityRef)
	}
	known := make(map[string]bool, len(m.Entities))
	for _, e := range h.scene.GetAllEntities() {
		if _, ok := m.Entities[e.ID]; ok {
			refs = append(refs, e.ID)
			known[e.ID] = true
		}
	}
	for ref := range m.Entities {
		if ref != scene.SceneEntityRef && !known[ref] {
			h.logger.Printf("[Logic] entity %s not found, %d scripts skipped", ref, len(m.Entities[ref]))
			p.failed += len(m.Entities[ref])
		}
	}

	for _, ref := range refs {
		for i, entry := range m.Entities[ref] {
			if !entry.IsEnabled() {
				continue
			}
			name, err := resolveName(ctx, h.client, baseDir, entry, h.registry)
			if err != nil {
				h.logger.Printf("[Logic] %s script #%d skipped: %v", ref, i, err)
				p.failed++
				continue
			}
			p.entries = append(p.entries, prepared{ref: ref, name: name, params: entry.Parameters})
		}
	}
	return p
}

// apply подключает подготовленные скрипты. Вызывается на горутине тика.
func (h *Host) apply(p *plan) {
	h.failed += p.failed
	for _, entry := range p.entries {
		var entity *world.Entity
		if entry.ref != scene.SceneEntityRef {
			e, ok := h.scene.GetEntity(entry.ref)
			if !ok {
				h.logger.Printf("[Logic] %s: entity %s disappeared", entry.name, entry.ref)
				h.failed++
				continue
			}
			entity = e
		}

		behavior, err := h.registry.New(entry.name)
		if err != nil {
			h.logger.Printf("[Logic] %s on %s skipped: %v", entry.name, entry.ref, err)
			h.failed++
			continue
		}

		s := &script{ref: entry.ref, name: entry.name, behavior: behavior}
		s.ctx = newContext(h.ctx, h, entity, entry.params)
		if u, ok := behavior.(Updater); ok {
			s.updater = u
		}

		if err := h.safe(s, "attach", func() error { return behavior.Attach(entity, s.ctx) }); err != nil {
			h.failed++
			continue
		}
		h.scripts = append(h.scripts, s)
	}
	h.logger.Printf("[Logic] %d scripts attached, %d failed", len(h.scripts), h.failed)
}

// safe выполняет шаг жизненного цикла, превращая панику в ошибку
func (h *Host) safe(s *script, stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			h.logger.Printf("[Logic] %s on %s: %s failed: %v", s.name, s.ref, stage, err)
		}
	}()
	return fn()
}

// Update один кадр: применяет отложенную перезагрузку и обновляет поведения
func (h *Host) Update(dt time.Duration) error {
	if p := h.pending.Swap(nil); p != nil {
		h.detachAll()
		h.failed = 0
		h.apply(p)
	}

	for _, s := range h.scripts {
		if s.updater == nil {
			continue
		}
		h.safe(s, "update", func() error { return s.updater.Update(dt) })
	}
	return nil
}

func (h *Host) detachAll() {
	for i := len(h.scripts) - 1; i >= 0; i-- {
		s := h.scripts[i]
		h.safe(s, "detach", func() error {
			s.behavior.Detach()
			if d, ok := s.behavior.(Disposer); ok {
				d.Dispose()
			}
			return nil
		})
	}
	h.scripts = nil
}

// Watch следит за файлом манифеста и готовит перезагрузку при изменении.
// Подключение происходит в следующем Update.
func (h *Host) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("logic watcher: %w", err)
	}
	// редакторы часто заменяют файл, поэтому следим за каталогом
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("logic watcher: %w", err)
	}

	target := filepath.Clean(path)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target ||
					!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				h.reload(ctx, path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				h.logger.Printf("[Logic] watcher error: %v", err)
			}
		}
	}()

	h.logger.Printf("[Logic] watching %s", path)
	return nil
}

func (h *Host) reload(ctx context.Context, path string) {
	m, err := LoadManifest(ctx, h.client, path)
	if err != nil {
		h.logger.Printf("[Logic] reload of %s failed: %v", path, err)
		return
	}
	h.pending.Store(h.prepare(ctx, m, baseOf(path)))
	h.logger.Printf("[Logic] manifest %s changed, reload scheduled", path)
}

// ReloadPending есть подготовленная, но еще не примененная перезагрузка
func (h *Host) ReloadPending() bool {
	return h.pending.Load() != nil
}

// Close отсоединяет все поведения и останавливает наблюдение
func (h *Host) Close() {
	h.cancel()
	h.wg.Wait()
	h.detachAll()
}

// Count число подключенных скриптов
func (h *Host) Count() int {
	return len(h.scripts)
}

// Failed число пропущенных скриптов
func (h *Host) Failed() int {
	return h.failed
}

// Attached имена подключенных поведений в порядке подключения
func (h *Host) Attached() []string {
	names := make([]string, len(h.scripts))
	for i, s := range h.scripts {
		names[i] = s.ref + ":" + s.name
	}
	return names
}
