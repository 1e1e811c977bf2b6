package world

import "sync"

// Manager живой набор сущностей. Порядок добавления совпадает с порядком документа.
type Manager struct {
	entities map[string]*Entity
	order    []string
	mu       sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		entities: make(map[string]*Entity),
	}
}

// AddEntity добавляет сущность, заменяя существующую с тем же id
func (m *Manager) AddEntity(e *Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entities[e.ID]; !exists {
		m.order = append(m.order, e.ID)
	}
	m.entities[e.ID] = e
}

func (m *Manager) GetEntity(id string) (*Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, exists := m.entities[id]
	return e, exists
}

// FindByName первая сущность с данным именем
func (m *Manager) FindByName(name string) (*Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		if e := m.entities[id]; e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// RemoveEntity удаляет сущность и отцепляет ее от иерархии
func (m *Manager) RemoveEntity(id string) (*Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, exists := m.entities[id]
	if !exists {
		return nil, false
	}
	delete(m.entities, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	e.SetParent(nil)
	return e, true
}

// GetAllEntities возвращает все сущности в порядке добавления
func (m *Manager) GetAllEntities() []*Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Entity, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.entities[id])
	}
	return result
}

// Filter сущности, для которых fn вернула true
func (m *Manager) Filter(fn func(*Entity) bool) []*Entity {
	all := m.GetAllEntities()
	result := all[:0]
	for _, e := range all {
		if fn(e) {
			result = append(result, e)
		}
	}
	return result
}

// ActiveCamera первая активная камера, иначе первая камера
func (m *Manager) ActiveCamera() (*Entity, bool) {
	var first *Entity
	for _, e := range m.GetAllEntities() {
		if e.Camera == nil {
			continue
		}
		if e.Camera.Active {
			return e, true
		}
		if first == nil {
			first = e
		}
	}
	return first, first != nil
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}
