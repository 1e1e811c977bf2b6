package world

import (
	"math"
)

// TerrainOptions параметры процедурного рельефа
type TerrainOptions struct {
	Width        float64
	Depth        float64
	Subdivisions int
	MinHeight    float64
	MaxHeight    float64
	Seed         float64
}

const (
	defaultSubdivisions = 32
	maxSubdivisions     = 256
)

// hashNoise псевдо-шум в [0, 1)
func hashNoise(x, y float64) float64 {
	h := math.Sin(x*12.9898 + y*78.233)
	v := math.Abs(h * 43758.5453)
	return v - math.Floor(v)
}

func smoothstep(t float64) float64 {
	return t * t * (3.0 - 2.0*t)
}

// smoothNoise билинейная интерполяция шума между целыми узлами
func smoothNoise(x, y float64) float64 {
	x0, y0 := math.Floor(x), math.Floor(y)
	sx, sy := smoothstep(x-x0), smoothstep(y-y0)

	n00 := hashNoise(x0, y0)
	n10 := hashNoise(x0+1, y0)
	n01 := hashNoise(x0, y0+1)
	n11 := hashNoise(x0+1, y0+1)

	nx0 := n00 + sx*(n10-n00)
	nx1 := n01 + sx*(n11-n01)
	return nx0 + sy*(nx1-nx0)
}

func clampSubdivisions(n int) int {
	if n <= 0 {
		return defaultSubdivisions
	}
	return min(n, maxSubdivisions)
}

// TerrainHeights высоты узлов сетки (n+1)x(n+1), строками вдоль Z.
// Фрактальный шум нормируется в [MinHeight, MaxHeight].
func TerrainHeights(o TerrainOptions) []float64 {
	n := clampSubdivisions(o.Subdivisions)
	side := n + 1
	heights := make([]float64, side*side)

	scales := []float64{1.0, 0.5, 0.25, 0.125, 0.0625}
	amplitudes := []float64{0.5, 0.25, 0.125, 0.0625, 0.03125}

	lo, hi := math.Inf(1), math.Inf(-1)
	for j := 0; j < side; j++ {
		for i := 0; i < side; i++ {
			nx := float64(i) / float64(n)
			nz := float64(j) / float64(n)
			v := 0.0
			for layer, scale := range scales {
				v += smoothNoise(nx*scale*10+o.Seed, nz*scale*10+o.Seed) * amplitudes[layer]
			}
			heights[j*side+i] = v
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}

	span := o.MaxHeight - o.MinHeight
	for k, v := range heights {
		if span <= 0 || hi-lo < 1e-12 {
			heights[k] = o.MinHeight
			continue
		}
		heights[k] = o.MinHeight + (v-lo)/(hi-lo)*span
	}
	return heights
}

// GridGeometry сетка в XZ с центром в начале координат. heights длиной (n+1)^2
// задает высоты узлов; nil - плоская сетка.
func GridGeometry(width, depth float64, subdivisions int, heights []float64) *Geometry {
	n := clampSubdivisions(subdivisions)
	side := n + 1
	if heights != nil && len(heights) != side*side {
		heights = nil
	}

	positions := make([]float64, 0, side*side*3)
	for j := 0; j < side; j++ {
		z := -depth/2 + depth*float64(j)/float64(n)
		for i := 0; i < side; i++ {
			x := -width/2 + width*float64(i)/float64(n)
			y := 0.0
			if heights != nil {
				y = heights[j*side+i]
			}
			positions = append(positions, x, y, z)
		}
	}

	indices := make([]uint32, 0, n*n*6)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			a := uint32(j*side + i)
			b := a + 1
			c := a + uint32(side) + 1
			d := a + uint32(side)
			indices = append(indices, a, b, c, a, c, d)
		}
	}
	return NewGeometry(positions, indices)
}

// TerrainGeometry сетка с процедурным рельефом
func TerrainGeometry(o TerrainOptions) *Geometry {
	return GridGeometry(o.Width, o.Depth, o.Subdivisions, TerrainHeights(o))
}
