package camera

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/world"
)

// maxCellSpan объекты, занимающие больше ячеек по оси, хранятся отдельно
const maxCellSpan = 6

// solidMesh закэшированный твердый меш
type solidMesh struct {
	Entity *world.Entity
	Center mgl64.Vec3
	Radius float64
	cell   cellKey
	span   int
}

type cellKey struct {
	x, y, z int
}

// SpatialGrid пространственная сетка ограничивающих сфер для быстрого отсева
type SpatialGrid struct {
	CellSize  float64
	cells     map[cellKey][]*solidMesh
	objects   map[string]*solidMesh
	oversized map[string]*solidMesh
	mutex     sync.RWMutex
}

// NewSpatialGrid создает новую пространственную сетку
func NewSpatialGrid(cellSize float64) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 4
	}
	return &SpatialGrid{
		CellSize:  cellSize,
		cells:     make(map[cellKey][]*solidMesh),
		objects:   make(map[string]*solidMesh),
		oversized: make(map[string]*solidMesh),
	}
}

func (sg *SpatialGrid) coords(p mgl64.Vec3) cellKey {
	return cellKey{
		x: int(math.Floor(p.X() / sg.CellSize)),
		y: int(math.Floor(p.Y() / sg.CellSize)),
		z: int(math.Floor(p.Z() / sg.CellSize)),
	}
}

func (sg *SpatialGrid) forCells(center cellKey, span int, fn func(k cellKey)) {
	for dx := -span; dx <= span; dx++ {
		for dy := -span; dy <= span; dy++ {
			for dz := -span; dz <= span; dz++ {
				fn(cellKey{center.x + dx, center.y + dy, center.z + dz})
			}
		}
	}
}

// Add добавляет меш в сетку, заменяя предыдущую запись с тем же id
func (sg *SpatialGrid) Add(m *solidMesh) {
	sg.mutex.Lock()
	defer sg.mutex.Unlock()

	sg.remove(m.Entity.ID)

	m.cell = sg.coords(m.Center)
	m.span = int(math.Ceil(m.Radius / sg.CellSize))
	sg.objects[m.Entity.ID] = m

	if m.span > maxCellSpan {
		sg.oversized[m.Entity.ID] = m
		return
	}
	sg.forCells(m.cell, m.span, func(k cellKey) {
		sg.cells[k] = append(sg.cells[k], m)
	})
}

// Remove удаляет меш из сетки
func (sg *SpatialGrid) Remove(id string) {
	sg.mutex.Lock()
	defer sg.mutex.Unlock()
	sg.remove(id)
}

func (sg *SpatialGrid) remove(id string) {
	m, exists := sg.objects[id]
	if !exists {
		return
	}
	delete(sg.objects, id)
	if _, big := sg.oversized[id]; big {
		delete(sg.oversized, id)
		return
	}

	sg.forCells(m.cell, m.span, func(k cellKey) {
		cell := sg.cells[k]
		for i, o := range cell {
			if o == m {
				sg.cells[k] = append(cell[:i], cell[i+1:]...)
				break
			}
		}
		if len(sg.cells[k]) == 0 {
			delete(sg.cells, k)
		}
	})
}

// Nearby меши, чьи ячейки лежат в пределах radius от позиции, плюс крупные меши
func (sg *SpatialGrid) Nearby(pos mgl64.Vec3, radius float64) []*solidMesh {
	sg.mutex.RLock()
	defer sg.mutex.RUnlock()

	seen := make(map[*solidMesh]bool)
	var result []*solidMesh
	sg.forCells(sg.coords(pos), int(math.Ceil(radius/sg.CellSize)), func(k cellKey) {
		for _, m := range sg.cells[k] {
			if !seen[m] {
				seen[m] = true
				result = append(result, m)
			}
		}
	})
	for _, m := range sg.oversized {
		result = append(result, m)
	}
	return result
}

// All все меши сетки
func (sg *SpatialGrid) All() []*solidMesh {
	sg.mutex.RLock()
	defer sg.mutex.RUnlock()

	result := make([]*solidMesh, 0, len(sg.objects))
	for _, m := range sg.objects {
		result = append(result, m)
	}
	return result
}

// Count количество мешей
func (sg *SpatialGrid) Count() int {
	sg.mutex.RLock()
	defer sg.mutex.RUnlock()
	return len(sg.objects)
}
