package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Box 图片在屏幕上的显示区域（像素）
type Box struct {
	X float64 // 左上角 X
	Y float64 // 左上角 Y
	W float64 // 宽度
	H float64 // 高度
}

// Valid 宽高都大于 0 才能用于坐标换算
func (b Box) Valid() bool {
	return b.W > 0 && b.H > 0 && !math.IsNaN(b.W) && !math.IsNaN(b.H)
}

// Contains 判断屏幕坐标是否在显示区域内
func (b Box) Contains(px, py float64) bool {
	return px >= b.X && px <= b.X+b.W && py >= b.Y && py <= b.Y+b.H
}

// Clamp01 将数值限制在 [0,1]，NaN 视为 0
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clamp 将数值限制在 [lo,hi]
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampVec 对点的两个分量分别做 Clamp01
func ClampVec(p r2.Vec) r2.Vec {
	return r2.Vec{X: Clamp01(p.X), Y: Clamp01(p.Y)}
}

// ToNormalized 屏幕坐标转归一化坐标，结果限制在 [0,1]²
// 显示区域退化（宽或高 <= 0）时返回 (0,0)
func ToNormalized(px, py float64, b Box) r2.Vec {
	if !b.Valid() {
		return r2.Vec{}
	}
	return r2.Vec{
		X: Clamp01((px - b.X) / b.W),
		Y: Clamp01((py - b.Y) / b.H),
	}
}

// ToScreen 归一化坐标转屏幕坐标（不做限制，拖拽时可能超出显示区域）
func ToScreen(p r2.Vec, b Box) r2.Vec {
	return r2.Vec{
		X: b.X + p.X*b.W,
		Y: b.Y + p.Y*b.H,
	}
}

// DistanceToSegment 点 p 到线段 ab 的距离
func DistanceToSegment(p, a, b r2.Vec) float64 {
	ab := r2.Sub(b, a)
	l2 := r2.Norm2(ab)
	if l2 == 0 {
		return r2.Norm(r2.Sub(p, a))
	}
	// 投影参数限制在线段内
	t := Clamp01(r2.Dot(r2.Sub(p, a), ab) / l2)
	proj := r2.Add(a, r2.Scale(t, ab))
	return r2.Norm(r2.Sub(p, proj))
}

// Distance 两点距离
func Distance(a, b r2.Vec) float64 {
	return r2.Norm(r2.Sub(b, a))
}

// Fit 将原始尺寸的图片等比缩放居中放入视口，返回显示区域
func Fit(nativeW, nativeH int, viewport Box) Box {
	if nativeW <= 0 || nativeH <= 0 || !viewport.Valid() {
		return Box{}
	}
	scale := math.Min(viewport.W/float64(nativeW), viewport.H/float64(nativeH))
	w := float64(nativeW) * scale
	h := float64(nativeH) * scale
	return Box{
		X: viewport.X + (viewport.W-w)/2,
		Y: viewport.Y + (viewport.H-h)/2,
		W: w,
		H: h,
	}
}
