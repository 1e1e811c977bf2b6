package engine

import (
	"x-scene/backend/internal/scene"
)

// MeshNode узел иерархии импортированной модели
type MeshNode struct {
	Name      string          `json:"name" yaml:"name"`
	Transform scene.Transform `json:"transform" yaml:"transform"`
	Positions []float64       `json:"positions,omitempty" yaml:"positions,omitempty"`
	Indices   []uint32        `json:"indices,omitempty" yaml:"indices,omitempty"`
	Children  []*MeshNode     `json:"children,omitempty" yaml:"children,omitempty"`
}

// Model загруженная модель: дерево под-мешей и имена анимаций
type Model struct {
	Source     string      `json:"-" yaml:"-"`
	Meshes     []*MeshNode `json:"meshes" yaml:"meshes"`
	Animations []string    `json:"animations,omitempty" yaml:"animations,omitempty"`
}

// Walk обходит под-меши в глубину в порядке документа. parent == nil для корневых.
func (m *Model) Walk(fn func(n, parent *MeshNode)) {
	var visit func(n, parent *MeshNode)
	visit = func(n, parent *MeshNode) {
		fn(n, parent)
		for _, c := range n.Children {
			visit(c, n)
		}
	}
	for _, n := range m.Meshes {
		visit(n, nil)
	}
}

// SubMeshNames имена под-мешей в порядке обхода
func (m *Model) SubMeshNames() []string {
	var names []string
	m.Walk(func(n, _ *MeshNode) {
		names = append(names, n.Name)
	})
	return names
}
