package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-scene/backend/internal/scene"
)

func TestManagerKeepsInsertionOrder(t *testing.T) {
	m := NewManager()
	for _, id := range []string{"c", "a", "b"} {
		m.AddEntity(NewEntity(&scene.Node{ID: id, Kind: scene.KindMesh}))
	}

	var ids []string
	for _, e := range m.GetAllEntities() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.Equal(t, 3, m.Count())
}

func TestManagerRemoveDetaches(t *testing.T) {
	m := NewManager()
	parent := NewEntity(&scene.Node{ID: "p", Kind: scene.KindModel})
	child := NewEntity(&scene.Node{ID: "c", Kind: scene.KindMesh})
	child.SetParent(parent)
	m.AddEntity(parent)
	m.AddEntity(child)

	removed, ok := m.RemoveEntity("c")
	require.True(t, ok)
	assert.Nil(t, removed.Parent())
	assert.False(t, parent.HasChildren())

	_, ok = m.GetEntity("c")
	assert.False(t, ok)
}

func TestManagerActiveCamera(t *testing.T) {
	m := NewManager()
	_, ok := m.ActiveCamera()
	assert.False(t, ok)

	first := NewEntity(&scene.Node{ID: "cam1", Kind: scene.KindCamera})
	first.Camera = &Camera{}
	second := NewEntity(&scene.Node{ID: "cam2", Kind: scene.KindCamera})
	second.Camera = &Camera{Active: true}
	m.AddEntity(first)
	m.AddEntity(second)

	cam, ok := m.ActiveCamera()
	require.True(t, ok)
	assert.Equal(t, "cam2", cam.ID)
}

func TestAnimationSetBlend(t *testing.T) {
	s := NewAnimationSet("idle", "walk", "run")

	assert.True(t, s.Play("walk"))
	assert.True(t, s.Play("run"))

	walk, _ := s.Group("walk")
	run, _ := s.Group("run")
	assert.False(t, walk.Playing, "previous group must be stopped")
	assert.True(t, run.Playing)
	assert.Equal(t, "run", s.Current())

	assert.True(t, s.Play("run"))
	assert.Equal(t, 1, run.Starts, "replaying the current group must not restart it")

	assert.False(t, s.Play("swim"))
}
