package annotate

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"gonum.org/v1/gonum/spatial/r2"

	"scanmark/internal/geom"
)

// ErrExportFailure 导出失败（底图无法解码），不会返回半成品
var ErrExportFailure = errors.New("export failure")

// ExportError 导出失败的具体原因
type ExportError struct {
	Err error
}

// Error implements the error interface
func (e *ExportError) Error() string {
	return fmt.Sprintf("导出失败: %v", e.Err)
}

// Unwrap 返回底层错误
func (e *ExportError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrExportFailure) 成立
func (e *ExportError) Is(target error) bool { return target == ErrExportFailure }

// 装饰样式
var (
	selectionColor = color.RGBA{0, 120, 255, 255}
	handleFill     = color.RGBA{255, 255, 255, 255}
	captionBg      = color.RGBA{0, 0, 0, 160}
	captionFg      = color.RGBA{255, 255, 255, 255}
)

const (
	handleSize    = 8.0 // 手柄边长（像素）
	selectionPad  = 4.0 // 选中虚线框外扩（像素）
	captionSize   = 12  // 字段标签字号
	minArrowHead  = 12.0
	arrowHeadRate = 5.0 // 箭头长度 = 线宽 * arrowHeadRate
)

// Renderer 将标注绘制到画布。实时叠加层和导出共用同一套绘制例程。
// 字体缓存不是并发安全的，每个 goroutine 使用自己的 Renderer
type Renderer struct {
	font  *truetype.Font
	faces map[float64]font.Face
}

// NewRenderer 创建渲染器，文本使用内置的 Go Regular 字体
func NewRenderer() (*Renderer, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("解析字体失败: %w", err)
	}
	return &Renderer{font: f, faces: make(map[float64]font.Face)}, nil
}

// face 获取指定字号的字体（缓存）
func (r *Renderer) face(size float64) font.Face {
	if f, ok := r.faces[size]; ok {
		return f
	}
	f := truetype.NewFace(r.font, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	r.faces[size] = f
	return f
}

// FontSize 文本字号随线宽缩放
func FontSize(strokeSize int) float64 {
	if strokeSize < 1 {
		strokeSize = 1
	}
	return float64(8 + strokeSize*4)
}

// Export 在原始分辨率的离屏画布上绘制底图和所有标注。
// 没有底图时返回 (nil, nil)；底图解码失败返回 ExportError
func (r *Renderer) Export(img BaseImage, set Set) (*image.RGBA, error) {
	if img == nil {
		return nil, nil
	}
	decoded, err := img.Decode()
	if err != nil {
		return nil, &ExportError{Err: err}
	}
	if decoded == nil {
		return nil, &ExportError{Err: errors.New("底图为空")}
	}

	b := decoded.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &ExportError{Err: fmt.Errorf("底图尺寸无效: %dx%d", b.Dx(), b.Dy())}
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), decoded, b.Min, draw.Src)

	dc := gg.NewContextForRGBA(dst)
	box := geom.Box{W: float64(b.Dx()), H: float64(b.Dy())}
	r.DrawAnnotations(dc, set, box)

	Logger().Debug("export rendered", "width", b.Dx(), "height", b.Dy(), "count", len(set))
	return dst, nil
}

// Overlay 绘制实时叠加层：底图缩放到显示区域，再绘制标注、预览和选中装饰。
// base 可以为 nil（只绘制标注）
func (r *Renderer) Overlay(v View, base image.Image, width, height int, background color.Color) *image.RGBA {
	if width <= 0 || height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if background != nil {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	}

	if base != nil && v.Box.Valid() {
		dr := image.Rect(
			int(math.Round(v.Box.X)), int(math.Round(v.Box.Y)),
			int(math.Round(v.Box.X+v.Box.W)), int(math.Round(v.Box.Y+v.Box.H)),
		)
		xdraw.ApproxBiLinear.Scale(dst, dr, base, base.Bounds(), xdraw.Over, nil)
	}

	dc := gg.NewContextForRGBA(dst)
	r.DrawAnnotations(dc, v.Annotations, v.Box)

	if v.Preview != nil {
		r.DrawAnnotation(dc, *v.Preview, v.Box)
	}

	for _, a := range v.Annotations {
		if label, ok := FieldLabel(a, v.Labels); ok {
			r.drawCaption(dc, a, label, v.Box)
		}
	}

	if a, ok := v.Annotations.Get(v.Selected); ok {
		r.drawSelection(dc, a, v.Box, v.Editing == a.ID)
	}
	return dst
}

// DrawAnnotations 按集合顺序绘制所有标注
func (r *Renderer) DrawAnnotations(dc *gg.Context, set Set, box geom.Box) {
	for i := range set {
		r.DrawAnnotation(dc, set[i], box)
	}
}

// DrawAnnotation 绘制单个标注，box 为标注坐标映射到的像素区域
func (r *Renderer) DrawAnnotation(dc *gg.Context, a Annotation, box geom.Box) {
	if !box.Valid() {
		return
	}
	dc.Push()
	defer dc.Pop()

	dc.SetColor(a.Color)
	dc.SetLineWidth(lineWidth(a))
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	switch s := a.Shape.(type) {
	case Rect:
		drawRect(dc, s, box)
	case Arrow:
		drawArrow(dc, s, lineWidth(a), box)
	case Pen:
		drawPen(dc, s, lineWidth(a), box)
	case Text:
		r.drawText(dc, s, FontSize(a.StrokeSize), box)
	}
}

func lineWidth(a Annotation) float64 {
	if a.StrokeSize < 1 {
		return 1
	}
	return float64(a.StrokeSize)
}

// ---------- 矩形 ----------

func drawRect(dc *gg.Context, s Rect, box geom.Box) {
	p := geom.ToScreen(r2.Vec{X: s.X, Y: s.Y}, box)
	dc.DrawRectangle(p.X, p.Y, s.Width*box.W, s.Height*box.H)
	dc.Stroke()
}

// ---------- 箭头 ----------

func drawArrow(dc *gg.Context, s Arrow, width float64, box geom.Box) {
	p0 := geom.ToScreen(s.Start(), box)
	p1 := geom.ToScreen(s.End(), box)

	// 绘制主线段
	dc.DrawLine(p0.X, p0.Y, p1.X, p1.Y)
	dc.Stroke()

	length := geom.Distance(p0, p1)
	if length < 1 {
		return
	}

	// 箭头大小与线宽成比例
	headLen := math.Max(width*arrowHeadRate, minArrowHead)
	angle := math.Atan2(p1.Y-p0.Y, p1.X-p0.X)
	spread := math.Pi / 6

	left := r2.Vec{
		X: p1.X - headLen*math.Cos(angle-spread),
		Y: p1.Y - headLen*math.Sin(angle-spread),
	}
	right := r2.Vec{
		X: p1.X - headLen*math.Cos(angle+spread),
		Y: p1.Y - headLen*math.Sin(angle+spread),
	}

	dc.MoveTo(p1.X, p1.Y)
	dc.LineTo(left.X, left.Y)
	dc.LineTo(right.X, right.Y)
	dc.ClosePath()
	dc.Fill()
}

// ---------- 自由画笔 ----------

func drawPen(dc *gg.Context, s Pen, width float64, box geom.Box) {
	switch len(s.Points) {
	case 0:
		return
	case 1:
		// 单点只在预览中出现，画成圆点
		p := geom.ToScreen(s.Points[0], box)
		dc.DrawCircle(p.X, p.Y, width/2)
		dc.Fill()
		return
	}
	first := geom.ToScreen(s.Points[0], box)
	dc.MoveTo(first.X, first.Y)
	for _, pt := range s.Points[1:] {
		p := geom.ToScreen(pt, box)
		dc.LineTo(p.X, p.Y)
	}
	dc.Stroke()
}

// ---------- 文本 ----------

func (r *Renderer) drawText(dc *gg.Context, s Text, size float64, box geom.Box) {
	if s.Text == "" {
		return
	}
	dc.SetFontFace(r.face(size))
	p := geom.ToScreen(s.Anchor(), box)
	lineHeight := size * 1.2
	for i, line := range strings.Split(s.Text, "\n") {
		dc.DrawStringAnchored(line, p.X, p.Y+float64(i)*lineHeight, 0, 1)
	}
}

// textExtent 文本在屏幕上的宽高
func (r *Renderer) textExtent(dc *gg.Context, s Text, size float64) (float64, float64) {
	dc.SetFontFace(r.face(size))
	lines := strings.Split(s.Text, "\n")
	maxW := 0.0
	for _, line := range lines {
		if w, _ := dc.MeasureString(line); w > maxW {
			maxW = w
		}
	}
	return maxW, float64(len(lines)) * size * 1.2
}

// ---------- 选中装饰 ----------

// screenBounds 标注在屏幕上的外接矩形
func (r *Renderer) screenBounds(dc *gg.Context, a Annotation, box geom.Box) (min, max r2.Vec) {
	lo, hi := a.Bounds()
	min, max = geom.ToScreen(lo, box), geom.ToScreen(hi, box)
	if t, ok := a.Shape.(Text); ok {
		w, h := r.textExtent(dc, t, FontSize(a.StrokeSize))
		max = r2.Vec{X: min.X + w, Y: min.Y + h}
	}
	return min, max
}

func (r *Renderer) drawSelection(dc *gg.Context, a Annotation, box geom.Box, editing bool) {
	dc.Push()
	defer dc.Pop()

	min, max := r.screenBounds(dc, a, box)
	pad := selectionPad + lineWidth(a)/2

	// 虚线外框
	dc.SetColor(selectionColor)
	dc.SetLineWidth(1)
	dc.SetDash(6, 4)
	dc.DrawRectangle(min.X-pad, min.Y-pad, max.X-min.X+2*pad, max.Y-min.Y+2*pad)
	dc.Stroke()
	dc.SetDash()

	// 文本光标
	if editing {
		dc.SetLineWidth(2)
		dc.DrawLine(max.X+2, min.Y, max.X+2, max.Y)
		dc.Stroke()
	}

	// 手柄
	for _, h := range handleOrder {
		n, ok := HandlePoints(a)[h]
		if !ok {
			continue
		}
		p := geom.ToScreen(n, box)
		if h == HandleArrowStart || h == HandleArrowEnd {
			dc.DrawCircle(p.X, p.Y, handleSize/2)
		} else {
			dc.DrawRectangle(p.X-handleSize/2, p.Y-handleSize/2, handleSize, handleSize)
		}
		dc.SetColor(handleFill)
		dc.FillPreserve()
		dc.SetColor(selectionColor)
		dc.SetLineWidth(1)
		dc.Stroke()
	}
}

// drawCaption 在标注左上方绘制关联字段的标签
func (r *Renderer) drawCaption(dc *gg.Context, a Annotation, label string, box geom.Box) {
	dc.Push()
	defer dc.Pop()

	min, _ := r.screenBounds(dc, a, box)
	dc.SetFontFace(r.face(captionSize))
	w, h := dc.MeasureString(label)
	x, y := min.X, min.Y-h-6
	if y < 0 {
		y = 0
	}

	dc.SetColor(captionBg)
	dc.DrawRectangle(x, y, w+6, h+4)
	dc.Fill()
	dc.SetColor(captionFg)
	dc.DrawStringAnchored(label, x+3, y+2, 0, 1)
}
