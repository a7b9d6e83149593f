package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestToNormalized(t *testing.T) {
	box := Box{X: 100, Y: 50, W: 800, H: 600}

	tests := []struct {
		name   string
		px, py float64
		want   r2.Vec
	}{
		{"origin", 100, 50, r2.Vec{X: 0, Y: 0}},
		{"center", 500, 350, r2.Vec{X: 0.5, Y: 0.5}},
		{"far corner", 900, 650, r2.Vec{X: 1, Y: 1}},
		{"left of box clamps", 0, 350, r2.Vec{X: 0, Y: 0.5}},
		{"below box clamps", 500, 5000, r2.Vec{X: 0.5, Y: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToNormalized(tt.px, tt.py, box)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
		})
	}
}

func TestToNormalizedDegenerateBox(t *testing.T) {
	for _, b := range []Box{{W: 0, H: 10}, {W: 10, H: 0}, {W: -5, H: -5}, {W: math.NaN(), H: 1}} {
		got := ToNormalized(3, 4, b)
		assert.Equal(t, r2.Vec{}, got)
		assert.False(t, math.IsNaN(got.X) || math.IsNaN(got.Y))
	}
}

func TestToScreenIsUnclamped(t *testing.T) {
	box := Box{X: 10, Y: 20, W: 200, H: 100}

	got := ToScreen(r2.Vec{X: 0.5, Y: 0.5}, box)
	assert.InDelta(t, 110, got.X, 1e-9)
	assert.InDelta(t, 70, got.Y, 1e-9)

	got = ToScreen(r2.Vec{X: -0.1, Y: 1.1}, box)
	assert.InDelta(t, -10, got.X, 1e-9)
	assert.InDelta(t, 130, got.Y, 1e-9)
}

func TestRoundTrip(t *testing.T) {
	box := Box{X: 37, Y: 12, W: 640, H: 480}
	p := r2.Vec{X: 0.25, Y: 0.75}
	s := ToScreen(p, box)
	back := ToNormalized(s.X, s.Y, box)
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)
}

func TestDistanceToSegment(t *testing.T) {
	a := r2.Vec{X: 0, Y: 0}
	b := r2.Vec{X: 1, Y: 0}

	tests := []struct {
		name string
		p    r2.Vec
		want float64
	}{
		{"on segment", r2.Vec{X: 0.5, Y: 0}, 0},
		{"above middle", r2.Vec{X: 0.5, Y: 0.3}, 0.3},
		{"before start", r2.Vec{X: -0.3, Y: 0.4}, 0.5},
		{"past end", r2.Vec{X: 1.3, Y: 0.4}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DistanceToSegment(tt.p, a, b), 1e-9)
		})
	}

	// 退化线段等价于点距离
	assert.InDelta(t, 5.0, DistanceToSegment(r2.Vec{X: 3, Y: 4}, a, a), 1e-9)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-1))
	assert.Equal(t, 1.0, Clamp01(2))
	assert.Equal(t, 0.4, Clamp01(0.4))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
}

func TestFit(t *testing.T) {
	b := Fit(800, 600, Box{W: 400, H: 400})
	assert.InDelta(t, 400, b.W, 1e-9)
	assert.InDelta(t, 300, b.H, 1e-9)
	assert.InDelta(t, 0, b.X, 1e-9)
	assert.InDelta(t, 50, b.Y, 1e-9)

	assert.False(t, Fit(0, 600, Box{W: 400, H: 400}).Valid())
}

func TestBoxContains(t *testing.T) {
	box := Box{X: 100, Y: 50, W: 800, H: 600}
	assert.True(t, box.Contains(100, 50))
	assert.True(t, box.Contains(900, 650))
	assert.True(t, box.Contains(500, 300))
	assert.False(t, box.Contains(99, 300))
	assert.False(t, box.Contains(500, 651))
}
