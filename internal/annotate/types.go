package annotate

import (
	"image/color"

	"gonum.org/v1/gonum/spatial/r2"
)

// ToolType 标注工具类型
type ToolType int

const (
	ToolSelect ToolType = iota // 选择/移动/调整
	ToolPen                    // 自由画笔
	ToolRect                   // 矩形
	ToolArrow                  // 箭头
	ToolText                   // 文本
	ToolErase                  // 橡皮擦
	ToolCount                  // 工具总数（用于遍历）
)

// ToolName 工具显示名称
var ToolName = map[ToolType]string{
	ToolSelect: "选择",
	ToolPen:    "画笔",
	ToolRect:   "矩形",
	ToolArrow:  "箭头",
	ToolText:   "文本",
	ToolErase:  "橡皮擦",
}

// String 返回工具名称
func (t ToolType) String() string {
	if name, ok := ToolName[t]; ok {
		return name
	}
	return "未知"
}

// Kind 标注类型标识，同时作为持久化格式中的 type 字段
type Kind string

const (
	KindPen   Kind = "pen"
	KindRect  Kind = "rect"
	KindArrow Kind = "arrow"
	KindText  Kind = "text"
)

// Shape 标注的几何部分。只有本包内的四种类型实现它：
// Pen, Rect, Arrow, Text。所有坐标都是归一化坐标 [0,1]
type Shape interface {
	Kind() Kind
	clone() Shape
}

// Pen 自由画笔，按顺序连接的折线
type Pen struct {
	Points []r2.Vec
}

// Rect 矩形，左上角 + 宽高
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Arrow 箭头，起点 (X1,Y1) 指向终点 (X2,Y2)
type Arrow struct {
	X1, Y1 float64
	X2, Y2 float64
}

// Text 文本标签，(X,Y) 为左上角锚点
type Text struct {
	X, Y float64
	Text string
}

func (Pen) Kind() Kind   { return KindPen }
func (Rect) Kind() Kind  { return KindRect }
func (Arrow) Kind() Kind { return KindArrow }
func (Text) Kind() Kind  { return KindText }

func (p Pen) clone() Shape {
	if p.Points == nil {
		return Pen{}
	}
	pts := make([]r2.Vec, len(p.Points))
	copy(pts, p.Points)
	return Pen{Points: pts}
}

func (r Rect) clone() Shape  { return r }
func (a Arrow) clone() Shape { return a }
func (t Text) clone() Shape  { return t }

// Start 起点
func (a Arrow) Start() r2.Vec { return r2.Vec{X: a.X1, Y: a.Y1} }

// End 终点
func (a Arrow) End() r2.Vec { return r2.Vec{X: a.X2, Y: a.Y2} }

// Anchor 文本锚点
func (t Text) Anchor() r2.Vec { return r2.Vec{X: t.X, Y: t.Y} }

// Annotation 单个标注
type Annotation struct {
	ID            int        // 唯一标识，在标注生命周期内不变
	Color         color.RGBA // 颜色
	StrokeSize    int        // 线宽（文本字号随之缩放）
	LinkedFieldID string     // 关联的外部字段 ID，空表示未关联，可能悬空
	Shape         Shape      // 几何形状
}

// Kind 标注类型
func (a Annotation) Kind() Kind {
	if a.Shape == nil {
		return ""
	}
	return a.Shape.Kind()
}

// Clone 深拷贝标注
func (a Annotation) Clone() Annotation {
	if a.Shape != nil {
		a.Shape = a.Shape.clone()
	}
	return a
}

// Bounds 获取标注的归一化边界（文本只有锚点）
func (a Annotation) Bounds() (min, max r2.Vec) {
	switch s := a.Shape.(type) {
	case Pen:
		if len(s.Points) == 0 {
			return
		}
		min, max = s.Points[0], s.Points[0]
		for _, p := range s.Points[1:] {
			if p.X < min.X {
				min.X = p.X
			}
			if p.Y < min.Y {
				min.Y = p.Y
			}
			if p.X > max.X {
				max.X = p.X
			}
			if p.Y > max.Y {
				max.Y = p.Y
			}
		}
	case Rect:
		min = r2.Vec{X: s.X, Y: s.Y}
		max = r2.Vec{X: s.X + s.Width, Y: s.Y + s.Height}
	case Arrow:
		min = r2.Vec{X: minf(s.X1, s.X2), Y: minf(s.Y1, s.Y2)}
		max = r2.Vec{X: maxf(s.X1, s.X2), Y: maxf(s.Y1, s.Y2)}
	case Text:
		min = s.Anchor()
		max = min
	}
	return
}

// LabelFunc 由调用方提供的字段标签解析函数，找不到返回 false
type LabelFunc func(fieldID string) (string, bool)

// UnlinkedLabel 悬空或未关联字段的显示文本
const UnlinkedLabel = "未关联"

// FieldLabel 解析标注关联的字段标签。未关联或字段已删除时返回 UnlinkedLabel
func FieldLabel(a Annotation, labels LabelFunc) (string, bool) {
	if a.LinkedFieldID == "" || labels == nil {
		return UnlinkedLabel, false
	}
	label, ok := labels(a.LinkedFieldID)
	if !ok {
		return UnlinkedLabel, false
	}
	return label, true
}

// 创建阈值与命中容差（归一化空间）
const (
	MinRectSize     = 0.01   // 矩形宽高都必须超过该值
	MinArrowLength  = 0.02   // 箭头长度必须超过该值
	HitTolerance    = 0.02   // 命中测试容差
	HandleHitRadius = 10.0   // 手柄命中半径（屏幕像素）
	PlaceholderText = "Text" // 新建文本的占位内容
)

// DefaultColors 预设颜色面板
var DefaultColors = []color.RGBA{
	{255, 0, 0, 255},     // 红色
	{0, 180, 0, 255},     // 绿色
	{0, 120, 255, 255},   // 蓝色
	{255, 200, 0, 255},   // 黄色
	{255, 128, 0, 255},   // 橙色
	{180, 0, 255, 255},   // 紫色
	{255, 255, 255, 255}, // 白色
	{0, 0, 0, 255},       // 黑色
}

// DefaultStrokeSizes 预设线宽
var DefaultStrokeSizes = []int{2, 3, 5, 8}

// DefaultStrokeSize 默认线宽
const DefaultStrokeSize = 3

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
