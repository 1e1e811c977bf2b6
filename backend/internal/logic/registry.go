package logic

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"x-scene/backend/internal/world"
)

// Behavior пользовательское поведение. entity == nil для скриптов уровня сцены.
type Behavior interface {
	Attach(entity *world.Entity, ctx *Context) error
	Detach()
}

// Updater поведение с покадровым обновлением
type Updater interface {
	Update(dt time.Duration) error
}

// Disposer поведение, освобождающее ресурсы после Detach
type Disposer interface {
	Dispose()
}

// Factory создает новый экземпляр поведения
type Factory func() Behavior

// Registry поведения по имени
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register добавляет фабрику. Повторная регистрация имени - ошибка.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" || f == nil {
		return fmt.Errorf("logic: invalid registration %q", name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("logic: behavior %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister как Register, но паникует при ошибке
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// New новый экземпляр поведения name
func (r *Registry) New(name string) (Behavior, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBehavior, name)
	}
	b := f()
	if b == nil {
		return nil, fmt.Errorf("logic: factory %s returned nil", name)
	}
	return b, nil
}

// Names зарегистрированные имена по алфавиту
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
