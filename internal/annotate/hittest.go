package annotate

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"scanmark/internal/geom"
)

// Handle 选中标注上的控制手柄
type Handle int

const (
	HandleNone       Handle = iota
	HandleNW                // 左上
	HandleNE                // 右上
	HandleSE                // 右下
	HandleSW                // 左下
	HandleArrowStart        // 箭头起点
	HandleArrowEnd          // 箭头终点
)

// HitTest 返回位于 p（归一化坐标）处最上层标注的 ID。
// 必须逆序遍历，重叠时优先返回最后插入（视觉上最上层）的标注
func HitTest(set Set, p r2.Vec, tolerance float64) (int, bool) {
	for i := len(set) - 1; i >= 0; i-- {
		if hitShape(set[i].Shape, p, tolerance) {
			return set[i].ID, true
		}
	}
	return 0, false
}

func hitShape(s Shape, p r2.Vec, tol float64) bool {
	switch s := s.(type) {
	case Rect:
		return p.X >= s.X-tol && p.X <= s.X+s.Width+tol &&
			p.Y >= s.Y-tol && p.Y <= s.Y+s.Height+tol
	case Text:
		return geom.Distance(p, s.Anchor()) <= tol
	case Arrow:
		return geom.DistanceToSegment(p, s.Start(), s.End()) < tol
	case Pen:
		return penDistance(s, p) < tol
	}
	return false
}

// penDistance 点到折线各段的最小距离
func penDistance(s Pen, p r2.Vec) float64 {
	switch len(s.Points) {
	case 0:
		return math.Inf(1)
	case 1:
		return geom.Distance(p, s.Points[0])
	}
	best := math.Inf(1)
	for i := 1; i < len(s.Points); i++ {
		if d := geom.DistanceToSegment(p, s.Points[i-1], s.Points[i]); d < best {
			best = d
		}
	}
	return best
}

// HandlePoints 返回标注的手柄位置（归一化坐标）。只有矩形和箭头有手柄
func HandlePoints(a Annotation) map[Handle]r2.Vec {
	switch s := a.Shape.(type) {
	case Rect:
		return map[Handle]r2.Vec{
			HandleNW: {X: s.X, Y: s.Y},
			HandleNE: {X: s.X + s.Width, Y: s.Y},
			HandleSE: {X: s.X + s.Width, Y: s.Y + s.Height},
			HandleSW: {X: s.X, Y: s.Y + s.Height},
		}
	case Arrow:
		return map[Handle]r2.Vec{
			HandleArrowStart: s.Start(),
			HandleArrowEnd:   s.End(),
		}
	}
	return nil
}

// handleOrder 固定检测顺序，保证结果确定
var handleOrder = []Handle{HandleNW, HandleNE, HandleSE, HandleSW, HandleArrowStart, HandleArrowEnd}

// HitHandle 检测屏幕坐标 (px,py) 是否落在选中标注的某个手柄上。
// 容差以屏幕像素计，与显示缩放无关
func HitHandle(a Annotation, px, py float64, box geom.Box, radius float64) Handle {
	if !box.Valid() {
		return HandleNone
	}
	pts := HandlePoints(a)
	if len(pts) == 0 {
		return HandleNone
	}
	pointer := r2.Vec{X: px, Y: py}
	best, bestDist := HandleNone, math.Inf(1)
	for _, h := range handleOrder {
		n, ok := pts[h]
		if !ok {
			continue
		}
		d := geom.Distance(pointer, geom.ToScreen(n, box))
		if d <= radius && d < bestDist {
			best, bestDist = h, d
		}
	}
	return best
}

// oppositeCorner 返回矩形中与给定角相对的角
func oppositeCorner(r Rect, h Handle) r2.Vec {
	switch h {
	case HandleNW:
		return r2.Vec{X: r.X + r.Width, Y: r.Y + r.Height}
	case HandleNE:
		return r2.Vec{X: r.X, Y: r.Y + r.Height}
	case HandleSE:
		return r2.Vec{X: r.X, Y: r.Y}
	case HandleSW:
		return r2.Vec{X: r.X + r.Width, Y: r.Y}
	}
	return r2.Vec{X: r.X, Y: r.Y}
}
