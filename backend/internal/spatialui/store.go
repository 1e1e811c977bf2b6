package spatialui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"

	"x-scene/backend/internal/scene"
)

// ErrUnknownElement элемент с таким id не зарегистрирован
var ErrUnknownElement = errors.New("spatialui: unknown element")

// Placement экранное положение элемента
type Placement struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Depth   float64 `json:"depth"`
	Visible bool    `json:"visible"`
}

// Element UI-фрагмент
type Element struct {
	ID         string            `json:"id" yaml:"id"`
	Tag        string            `json:"tag,omitempty" yaml:"tag,omitempty"`
	Text       string            `json:"text,omitempty" yaml:"text,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Placement  Placement         `json:"placement" yaml:"-"`
}

// Document описание UI
type Document struct {
	Elements []Element `json:"elements" yaml:"elements"`
}

// Resolver граница поиска UI-элементов
type Resolver interface {
	GetElement(id string) (Element, bool)
}

// Store потокобезопасное хранилище элементов в памяти
type Store struct {
	elements map[string]*Element
	mu       sync.RWMutex
}

func NewStore() *Store {
	return &Store{elements: make(map[string]*Element)}
}

// Load загружает описание UI и добавляет его элементы
func (s *Store) Load(ctx context.Context, client *http.Client, source string) (int, error) {
	data, err := scene.Fetch(ctx, client, source)
	if err != nil {
		return 0, err
	}
	var doc Document
	if err := scene.Decode(data, scene.FormatFromPath(source), &doc); err != nil {
		return 0, fmt.Errorf("ui %s: %w", source, err)
	}
	for _, el := range doc.Elements {
		if el.ID == "" {
			log.Printf("[SpatialUI] %s: element without id skipped", source)
			continue
		}
		s.Put(el)
	}
	return len(doc.Elements), nil
}

// Put добавляет или заменяет элемент, сохраняя текущее размещение
func (s *Store) Put(el Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.elements[el.ID]; ok {
		el.Placement = old.Placement
	}
	s.elements[el.ID] = &el
}

// GetElement копия элемента
func (s *Store) GetElement(id string) (Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.elements[id]
	if !ok {
		return Element{}, false
	}
	return *el, true
}

// Remove удаляет элемент
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.elements, id)
}

// SetText меняет текст элемента
func (s *Store) SetText(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.elements[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	el.Text = text
	return nil
}

// Place записывает экранное положение элемента
func (s *Store) Place(id string, p Placement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.elements[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	el.Placement = p
	return nil
}

// Snapshot копии всех элементов, отсортированные по id
func (s *Store) Snapshot() []Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Element, 0, len(s.elements))
	for _, el := range s.elements {
		out = append(out, *el)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count число элементов
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}
