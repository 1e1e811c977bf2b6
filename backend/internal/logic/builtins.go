package logic

import (
	"fmt"
	"time"

	"x-scene/backend/internal/world"
)

// RegisterBuiltins встроенные поведения: Rotator, Blinker, Label
func RegisterBuiltins(r *Registry) {
	r.MustRegister("Rotator", func() Behavior { return &Rotator{} })
	r.MustRegister("Blinker", func() Behavior { return &Blinker{} })
	r.MustRegister("Label", func() Behavior { return &Label{} })
}

// Rotator вращает сущность вокруг вертикальной оси. Параметр speed - рад/с.
type Rotator struct {
	entity *world.Entity
	speed  float64
}

func (r *Rotator) Attach(entity *world.Entity, ctx *Context) error {
	if entity == nil {
		return fmt.Errorf("rotator needs an entity")
	}
	r.entity = entity
	r.speed = ctx.Float("speed", 1)
	return nil
}

func (r *Rotator) Update(dt time.Duration) error {
	if r.entity != nil && r.entity.Enabled {
		r.entity.Local.Rotation[1] += r.speed * dt.Seconds()
	}
	return nil
}

func (r *Rotator) Detach() {
	r.entity = nil
}

// Blinker переключает видимость с периодом interval (секунды)
type Blinker struct {
	entity   *world.Entity
	interval time.Duration
	elapsed  time.Duration
}

func (b *Blinker) Attach(entity *world.Entity, ctx *Context) error {
	if entity == nil {
		return fmt.Errorf("blinker needs an entity")
	}
	b.entity = entity
	b.interval = time.Duration(ctx.Float("interval", 0.5) * float64(time.Second))
	if b.interval <= 0 {
		return fmt.Errorf("blinker interval must be positive")
	}
	return nil
}

func (b *Blinker) Update(dt time.Duration) error {
	b.elapsed += dt
	for b.elapsed >= b.interval {
		b.elapsed -= b.interval
		b.entity.Visible = !b.entity.Visible
	}
	return nil
}

func (b *Blinker) Detach() {
	if b.entity != nil {
		b.entity.Visible = true
	}
}

// Label пишет текст в элемент интерфейса, когда тот появится.
// Параметры: element, text, timeout (секунды).
type Label struct {
	ctx    *Context
	result <-chan *ElementResult
	done   bool
}

// ElementResult итог ожидания элемента
type ElementResult struct {
	ID    string
	Found bool
}

func (l *Label) Attach(_ *world.Entity, ctx *Context) error {
	id := ctx.String("element", "")
	if id == "" {
		return fmt.Errorf("label needs an element parameter")
	}
	l.ctx = ctx
	text := ctx.String("text", "")
	timeout := time.Duration(ctx.Float("timeout", 2) * float64(time.Second))

	ch := ctx.GetUIElement(id, timeout)
	out := make(chan *ElementResult, 1)
	l.result = out
	go func() {
		el := <-ch
		if el == nil {
			out <- &ElementResult{ID: id}
			return
		}
		if err := ctx.SetUIText(el.ID, text); err != nil {
			ctx.Logger.Printf("[Logic] Label %s: %v", el.ID, err)
		}
		out <- &ElementResult{ID: id, Found: true}
	}()
	return nil
}

func (l *Label) Update(time.Duration) error {
	if l.done {
		return nil
	}
	select {
	case r := <-l.result:
		l.done = true
		if !r.Found {
			return fmt.Errorf("ui element %s not found", r.ID)
		}
	default:
	}
	return nil
}

func (l *Label) Detach() {}
