package scene

import (
	"fmt"
	"strconv"
	"strings"
)

// ChildMeshSeparator разделяет id контейнера и токен под-меша
const ChildMeshSeparator = "::"

// SplitChildMeshID разбирает составной id "<container>::<token>"
func SplitChildMeshID(id string) (container, token string, ok bool) {
	i := strings.Index(id, ChildMeshSeparator)
	if i <= 0 {
		return "", "", false
	}
	token = id[i+len(ChildMeshSeparator):]
	if token == "" {
		return "", "", false
	}
	return id[:i], token, true
}

// IsChildMesh узел ссылается на под-меш импортированной модели
func (n *Node) IsChildMesh() bool {
	if n.ParentID == "" {
		return false
	}
	_, _, ok := SplitChildMeshID(n.ID)
	return ok
}

// StableID детерминированный идентификатор под-меша
func StableID(name string, occurrence int) string {
	return fmt.Sprintf("%s#%d", name, occurrence)
}

func isStableIDForm(token string) bool {
	i := strings.LastIndex(token, "#")
	if i < 0 || i == len(token)-1 {
		return false
	}
	_, err := strconv.Atoi(token[i+1:])
	return err == nil
}

// SubMeshMatch результат сопоставления одного под-меша
type SubMeshMatch struct {
	WalkIndex int
	Name      string
	StableID  string
	NodeID    string // пусто - под-меш удален в редакторе
}

// Matched под-меш связан с узлом графа
func (m SubMeshMatch) Matched() bool {
	return m.NodeID != ""
}

type containerIndex struct {
	exact   map[string]string
	opaque  map[string][]string
	numeric map[int]string
}

// IdentityIndex двухпроходная структура сопоставления под-мешей:
// сначала индекс строится по графу, затем обходится загруженная модель.
type IdentityIndex struct {
	containers map[string]*containerIndex
}

// NewIdentityIndex строит индекс по всем child-mesh узлам графа в порядке документа
func NewIdentityIndex(g *Graph) *IdentityIndex {
	ix := &IdentityIndex{containers: make(map[string]*containerIndex)}
	if g == nil {
		return ix
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if !n.IsChildMesh() {
			continue
		}
		container, token, _ := SplitChildMeshID(n.ID)
		ci := ix.containers[container]
		if ci == nil {
			ci = &containerIndex{
				exact:   make(map[string]string),
				opaque:  make(map[string][]string),
				numeric: make(map[int]string),
			}
			ix.containers[container] = ci
		}

		switch {
		case isStableIDForm(token):
			if _, dup := ci.exact[token]; !dup {
				ci.exact[token] = n.ID
			}
		default:
			if num, err := strconv.Atoi(token); err == nil {
				if _, dup := ci.numeric[num]; !dup {
					ci.numeric[num] = n.ID
				}
				continue
			}
			ci.opaque[n.Name] = append(ci.opaque[n.Name], n.ID)
		}
	}
	return ix
}

// HasContainer в графе есть child-mesh узлы для контейнера
func (ix *IdentityIndex) HasContainer(containerID string) bool {
	_, ok := ix.containers[containerID]
	return ok
}

// Assign присваивает stableId под-мешам, перечисленным в порядке обхода в глубину,
// и сопоставляет их с узлами: точный токен, затем непрозрачные токены в порядке
// документа для того же имени, затем устаревший числовой токен по индексу обхода.
// Каждый узел связывается не более чем с одним под-мешем.
func (ix *IdentityIndex) Assign(containerID string, names []string) []SubMeshMatch {
	matches := make([]SubMeshMatch, len(names))
	occurrences := make(map[string]int)
	for i, name := range names {
		matches[i] = SubMeshMatch{WalkIndex: i, Name: name, StableID: StableID(name, occurrences[name])}
		occurrences[name]++
	}

	ci := ix.containers[containerID]
	if ci == nil {
		return matches
	}

	used := make(map[string]bool)
	bind := func(m *SubMeshMatch, nodeID string) bool {
		if nodeID == "" || used[nodeID] {
			return false
		}
		used[nodeID] = true
		m.NodeID = nodeID
		return true
	}

	for i := range matches {
		bind(&matches[i], ci.exact[matches[i].StableID])
	}

	cursor := make(map[string]int)
	for i := range matches {
		m := &matches[i]
		if m.Matched() {
			continue
		}
		queue := ci.opaque[m.Name]
		for cursor[m.Name] < len(queue) {
			id := queue[cursor[m.Name]]
			cursor[m.Name]++
			if bind(m, id) {
				break
			}
		}
	}

	for i := range matches {
		m := &matches[i]
		if !m.Matched() {
			bind(m, ci.numeric[m.WalkIndex])
		}
	}
	return matches
}
