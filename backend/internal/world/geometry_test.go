package world

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestGeometryValidate(t *testing.T) {
	var g *Geometry
	assert.True(t, errors.Is(g.Validate(), ErrMissingGeometry))
	assert.True(t, errors.Is(NewGeometry(nil, nil).Validate(), ErrMissingGeometry))
	assert.NoError(t, BoxGeometry(1, 1, 1).Validate())
}

func TestBoxBounds(t *testing.T) {
	g := BoxGeometry(2, 2, 2)
	assert.Equal(t, mgl64.Vec3{}, g.Center)
	assert.InDelta(t, math.Sqrt(3), g.Radius, 1e-9)
}

func TestIntersectRayBox(t *testing.T) {
	g := BoxGeometry(2, 2, 2)
	m := mgl64.Translate3D(0, 0, 10)

	dist, ok := g.IntersectRay(m, mgl64.Vec3{}, mgl64.Vec3{0, 0, 1}, 100)
	if !ok {
		t.Fatal("expected hit")
	}
	assert.InDelta(t, 9.0, dist, 1e-9)

	_, ok = g.IntersectRay(m, mgl64.Vec3{}, mgl64.Vec3{0, 0, 1}, 5)
	assert.False(t, ok, "hit beyond max distance must be ignored")

	_, ok = g.IntersectRay(m, mgl64.Vec3{}, mgl64.Vec3{0, 0, -1}, 100)
	assert.False(t, ok)
}

func TestIntersectRayScaledPlane(t *testing.T) {
	e := newTestEntity("floor", Transform{Position: mgl64.Vec3{0, -1, 0}, Scaling: mgl64.Vec3{10, 1, 10}})
	e.Mesh = PlaneGeometry(1, 1)

	dist, ok := e.IntersectRay(mgl64.Vec3{3, 5, 3}, mgl64.Vec3{0, -1, 0}, 100)
	assert.True(t, ok, "scaled plane must cover (3, 3)")
	assert.InDelta(t, 6.0, dist, 1e-9)
}

func TestRaySphere(t *testing.T) {
	origin := mgl64.Vec3{}
	dir := mgl64.Vec3{1, 0, 0}

	assert.True(t, RaySphere(origin, dir, mgl64.Vec3{5, 0.5, 0}, 1, 10))
	assert.False(t, RaySphere(origin, dir, mgl64.Vec3{5, 3, 0}, 1, 10))
	assert.False(t, RaySphere(origin, dir, mgl64.Vec3{-5, 0, 0}, 1, 10))
	assert.False(t, RaySphere(origin, dir, mgl64.Vec3{20, 0, 0}, 1, 10))
}

func TestBoundingSphereWorld(t *testing.T) {
	e := newTestEntity("s", Transform{Position: mgl64.Vec3{1, 2, 3}, Scaling: mgl64.Vec3{1, 4, 2}})
	e.Mesh = SphereGeometry(2, 12)

	center, radius, ok := e.BoundingSphere()
	assert.True(t, ok)
	assert.True(t, center.ApproxEqualThreshold(mgl64.Vec3{1, 2, 3}, 1e-9))
	assert.InDelta(t, 4.0, radius, 1e-6)
}

func TestHalfExtents(t *testing.T) {
	g := BoxGeometry(2, 4, 6)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, g.HalfExtents())
}
