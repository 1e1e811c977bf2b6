package logic

import (
	"context"
	"errors"
	"log"
	"time"

	"x-scene/backend/internal/engine"
	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/spatialui"
	"x-scene/backend/internal/world"
)

// UIPollInterval период опроса резолвера элементов интерфейса
const UIPollInterval = 50 * time.Millisecond

// ErrUIReadOnly резолвер не поддерживает изменение элементов
var ErrUIReadOnly = errors.New("logic: ui resolver is read-only")

// UIWriter резолвер, позволяющий менять текст элементов
type UIWriter interface {
	SetText(id, text string) error
}

// Context возможности, доступные поведению. Выдается на каждый скрипт отдельно.
type Context struct {
	Scene      *world.Manager
	Engine     engine.Renderer
	Entity     *world.Entity
	Parameters map[string]any
	Logger     *log.Logger

	ui   spatialui.Resolver
	done <-chan struct{}
}

// GetByRef сущность по id, затем по имени
func (c *Context) GetByRef(ref string) (*world.Entity, bool) {
	if c.Scene == nil || ref == "" || ref == scene.SceneEntityRef {
		return nil, false
	}
	if e, ok := c.Scene.GetEntity(ref); ok {
		return e, true
	}
	return c.Scene.FindByName(ref)
}

// GetUIElement опрашивает резолвер, пока элемент не появится или не истечет timeout.
// В канал приходит ровно одно значение: элемент или nil.
func (c *Context) GetUIElement(ref string, timeout time.Duration) <-chan *spatialui.Element {
	out := make(chan *spatialui.Element, 1)
	if c.ui == nil {
		out <- nil
		return out
	}
	if el, ok := c.ui.GetElement(ref); ok {
		out <- &el
		return out
	}

	go func() {
		deadline := time.NewTimer(timeout)
		defer deadline.Stop()
		ticker := time.NewTicker(UIPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if el, ok := c.ui.GetElement(ref); ok {
					out <- &el
					return
				}
			case <-deadline.C:
				out <- nil
				return
			case <-c.done:
				out <- nil
				return
			}
		}
	}()
	return out
}

// SetUIText меняет текст элемента, если резолвер это позволяет
func (c *Context) SetUIText(ref, text string) error {
	w, ok := c.ui.(UIWriter)
	if !ok {
		return ErrUIReadOnly
	}
	return w.SetText(ref, text)
}

// Float числовой параметр скрипта
func (c *Context) Float(name string, def float64) float64 {
	switch v := c.Parameters[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// String строковый параметр скрипта
func (c *Context) String(name, def string) string {
	if v, ok := c.Parameters[name].(string); ok {
		return v
	}
	return def
}

// Done закрывается при остановке хоста
func (c *Context) Done() <-chan struct{} {
	return c.done
}

func newContext(parent context.Context, h *Host, entity *world.Entity, params map[string]any) *Context {
	if params == nil {
		params = map[string]any{}
	}
	return &Context{
		Scene:      h.scene,
		Engine:     h.engine,
		Entity:     entity,
		Parameters: params,
		Logger:     h.logger,
		ui:         h.ui,
		done:       parent.Done(),
	}
}
