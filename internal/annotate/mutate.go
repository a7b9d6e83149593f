package annotate

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"scanmark/internal/geom"
)

// Move 整体平移形状。平移量先按形状边界收紧，保证所有坐标留在 [0,1] 且形状不变形
func Move(s Shape, d r2.Vec) Shape {
	switch s := s.(type) {
	case Rect:
		s.Width = geom.Clamp01(s.Width)
		s.Height = geom.Clamp01(s.Height)
		s.X = geom.Clamp(s.X+d.X, 0, 1-s.Width)
		s.Y = geom.Clamp(s.Y+d.Y, 0, 1-s.Height)
		return s
	case Arrow:
		d = clampDelta(d, s.Start(), s.End())
		return Arrow{
			X1: geom.Clamp01(s.X1 + d.X), Y1: geom.Clamp01(s.Y1 + d.Y),
			X2: geom.Clamp01(s.X2 + d.X), Y2: geom.Clamp01(s.Y2 + d.Y),
		}
	case Pen:
		if len(s.Points) == 0 {
			return s
		}
		d = clampDelta(d, s.Points...)
		pts := make([]r2.Vec, len(s.Points))
		for i, p := range s.Points {
			pts[i] = geom.ClampVec(r2.Add(p, d))
		}
		return Pen{Points: pts}
	case Text:
		s.X = geom.Clamp01(s.X + d.X)
		s.Y = geom.Clamp01(s.Y + d.Y)
		return s
	}
	return s
}

// clampDelta 收紧平移量，使所有点平移后仍在 [0,1]
func clampDelta(d r2.Vec, pts ...r2.Vec) r2.Vec {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	// 已经越界的数据（例如外部导入）按 0 平移处理，最终坐标仍会被 Clamp01
	lo, hi := -minX, 1-maxX
	if lo <= hi {
		d.X = geom.Clamp(d.X, lo, hi)
	}
	lo, hi = -minY, 1-maxY
	if lo <= hi {
		d.Y = geom.Clamp(d.Y, lo, hi)
	}
	return d
}

// RectFromCorners 由任意两个对角点构造矩形，结果限制在 [0,1]，宽高非负
func RectFromCorners(a, b r2.Vec) Rect {
	a, b = geom.ClampVec(a), geom.ClampVec(b)
	r := Rect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
	return clampRect(r)
}

// clampRect 保证 x,y ∈ [0,1]，宽高非负且 x+width ≤ 1, y+height ≤ 1
func clampRect(r Rect) Rect {
	r.X = geom.Clamp01(r.X)
	r.Y = geom.Clamp01(r.Y)
	r.Width = geom.Clamp(r.Width, 0, 1-r.X)
	r.Height = geom.Clamp(r.Height, 0, 1-r.Y)
	return r
}

// ResizeRect 拖动一个角调整矩形：拖动的角跟随 corner，相对的角 anchor 固定
func ResizeRect(anchor, corner r2.Vec) Rect {
	return RectFromCorners(anchor, corner)
}

// MoveArrowEndpoint 只移动箭头的一个端点，另一端保持不变
func MoveArrowEndpoint(a Arrow, h Handle, p r2.Vec) Arrow {
	p = geom.ClampVec(p)
	switch h {
	case HandleArrowStart:
		a.X1, a.Y1 = p.X, p.Y
	case HandleArrowEnd:
		a.X2, a.Y2 = p.X, p.Y
	}
	return a
}
