package world

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrMissingGeometry у меша нет позиций или индексов
var ErrMissingGeometry = errors.New("world: mesh has no positions or indices")

const rayEpsilon = 1e-9

// Geometry вершинные и индексные буферы меша в локальных координатах
type Geometry struct {
	Positions []float64 // x, y, z подряд
	Indices   []uint32

	Min    mgl64.Vec3
	Max    mgl64.Vec3
	Center mgl64.Vec3
	Radius float64
}

// NewGeometry создает геометрию и вычисляет ограничивающую сферу
func NewGeometry(positions []float64, indices []uint32) *Geometry {
	g := &Geometry{Positions: positions, Indices: indices}
	g.ComputeBounds()
	return g
}

// Validate проверяет, что из буферов можно собрать треугольники
func (g *Geometry) Validate() error {
	if g == nil || len(g.Positions) < 9 || len(g.Indices) < 3 {
		return ErrMissingGeometry
	}
	return nil
}

// VertexCount количество вершин
func (g *Geometry) VertexCount() int {
	return len(g.Positions) / 3
}

// Vertex i-я вершина
func (g *Geometry) Vertex(i int) mgl64.Vec3 {
	return mgl64.Vec3{g.Positions[3*i], g.Positions[3*i+1], g.Positions[3*i+2]}
}

// ComputeBounds пересчитывает центр (середина AABB) и радиус
func (g *Geometry) ComputeBounds() {
	n := g.VertexCount()
	if n == 0 {
		g.Min, g.Max, g.Center, g.Radius = mgl64.Vec3{}, mgl64.Vec3{}, mgl64.Vec3{}, 0
		return
	}
	lo, hi := g.Vertex(0), g.Vertex(0)
	for i := 1; i < n; i++ {
		v := g.Vertex(i)
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], v[k])
			hi[k] = math.Max(hi[k], v[k])
		}
	}
	g.Min, g.Max = lo, hi
	g.Center = lo.Add(hi).Mul(0.5)
	g.Radius = 0
	for i := 0; i < n; i++ {
		g.Radius = math.Max(g.Radius, g.Vertex(i).Sub(g.Center).Len())
	}
}

// HalfExtents половина размеров AABB
func (g *Geometry) HalfExtents() mgl64.Vec3 {
	return g.Max.Sub(g.Min).Mul(0.5)
}

// Triangles вызывает fn для каждого треугольника, преобразованного матрицей m
func (g *Geometry) Triangles(m mgl64.Mat4, fn func(a, b, c mgl64.Vec3) bool) {
	n := uint32(g.VertexCount())
	for i := 0; i+2 < len(g.Indices); i += 3 {
		i0, i1, i2 := g.Indices[i], g.Indices[i+1], g.Indices[i+2]
		if i0 >= n || i1 >= n || i2 >= n {
			continue
		}
		a := mgl64.TransformCoordinate(g.Vertex(int(i0)), m)
		b := mgl64.TransformCoordinate(g.Vertex(int(i1)), m)
		c := mgl64.TransformCoordinate(g.Vertex(int(i2)), m)
		if !fn(a, b, c) {
			return
		}
	}
}

// IntersectRay ближайшее пересечение мирового луча с геометрией (Möller–Trumbore).
// dir должен быть нормализован; пересечения дальше maxDistance игнорируются.
func (g *Geometry) IntersectRay(m mgl64.Mat4, origin, dir mgl64.Vec3, maxDistance float64) (float64, bool) {
	best := math.Inf(1)
	g.Triangles(m, func(a, b, c mgl64.Vec3) bool {
		if t, ok := RayTriangle(origin, dir, a, b, c); ok && t < best {
			best = t
		}
		return true
	})
	if math.IsInf(best, 1) || best > maxDistance {
		return 0, false
	}
	return best, true
}

// RayTriangle пересечение луча с треугольником, двустороннее
func RayTriangle(origin, dir, a, b, c mgl64.Vec3) (float64, bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < rayEpsilon {
		return 0, false
	}
	inv := 1 / det
	s := origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t <= rayEpsilon {
		return 0, false
	}
	return t, true
}

// RaySphere луч может задеть сферу на отрезке [0, maxDistance]
func RaySphere(origin, dir, center mgl64.Vec3, radius, maxDistance float64) bool {
	toCenter := center.Sub(origin)
	along := toCenter.Dot(dir)
	if along < -radius || along > maxDistance+radius {
		return false
	}
	closest := toCenter.Sub(dir.Mul(along))
	return closest.LenSqr() <= radius*radius
}

// BoxGeometry куб с центром в нуле
func BoxGeometry(width, height, depth float64) *Geometry {
	x, y, z := width/2, height/2, depth/2
	positions := []float64{
		-x, -y, -z, x, -y, -z, x, y, -z, -x, y, -z,
		-x, -y, z, x, -y, z, x, y, z, -x, y, z,
	}
	indices := []uint32{
		0, 1, 2, 0, 2, 3, // -z
		4, 6, 5, 4, 7, 6, // +z
		0, 4, 5, 0, 5, 1, // -y
		3, 2, 6, 3, 6, 7, // +y
		0, 3, 7, 0, 7, 4, // -x
		1, 5, 6, 1, 6, 2, // +x
	}
	return NewGeometry(positions, indices)
}

// PlaneGeometry горизонтальная плоскость в XZ
func PlaneGeometry(width, depth float64) *Geometry {
	x, z := width/2, depth/2
	positions := []float64{-x, 0, -z, x, 0, -z, x, 0, z, -x, 0, z}
	return NewGeometry(positions, []uint32{0, 1, 2, 0, 2, 3})
}

// SphereGeometry UV-сфера
func SphereGeometry(diameter float64, segments int) *Geometry {
	if segments < 3 {
		segments = 8
	}
	r := diameter / 2
	rings := segments
	var positions []float64
	for i := 0; i <= rings; i++ {
		theta := math.Pi * float64(i) / float64(rings)
		for j := 0; j <= segments; j++ {
			phi := 2 * math.Pi * float64(j) / float64(segments)
			positions = append(positions,
				r*math.Sin(theta)*math.Cos(phi),
				r*math.Cos(theta),
				r*math.Sin(theta)*math.Sin(phi))
		}
	}
	var indices []uint32
	stride := uint32(segments + 1)
	for i := uint32(0); i < uint32(rings); i++ {
		for j := uint32(0); j < uint32(segments); j++ {
			a := i*stride + j
			b := a + stride
			indices = append(indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return NewGeometry(positions, indices)
}
