package annotate

import (
	"fmt"
	"image"
	"image/color"

	"gonum.org/v1/gonum/spatial/r2"

	"scanmark/internal/geom"
)

// State 交互状态
type State int

const (
	StateIdle     State = iota // 空闲
	StateDrawing               // 正在绘制
	StateDragging              // 正在拖拽（移动/调整）
)

// DragMode 拖拽方式
type DragMode int

const (
	DragNone       DragMode = iota
	DragMove                // 整体移动
	DragResize              // 拖动矩形的角
	DragArrowStart          // 拖动箭头起点
	DragArrowEnd            // 拖动箭头终点
)

// EventKind 指针事件类型
type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
)

// PointerEvent 指针事件，坐标为屏幕像素
type PointerEvent struct {
	Kind EventKind
	X, Y float64
}

// BaseImage 底图资源，只关心原始像素尺寸和解码
type BaseImage interface {
	Size() (width, height int)
	Decode() (image.Image, error)
}

// Option 编辑器选项
type Option func(*Editor)

// WithTolerance 设置命中测试容差（归一化空间）
func WithTolerance(tol float64) Option {
	return func(e *Editor) {
		if tol > 0 {
			e.tolerance = tol
		}
	}
}

// WithHandleRadius 设置手柄命中半径（屏幕像素）
func WithHandleRadius(px float64) Option {
	return func(e *Editor) {
		if px > 0 {
			e.handleRadius = px
		}
	}
}

// WithMaxHistory 设置撤销栈深度
func WithMaxHistory(n int) Option {
	return func(e *Editor) { e.history = NewHistory(n) }
}

// WithColor 设置初始绘制颜色
func WithColor(c color.RGBA) Option { return func(e *Editor) { e.color = c } }

// WithStrokeSize 设置初始线宽
func WithStrokeSize(n int) Option {
	return func(e *Editor) {
		if n > 0 {
			e.strokeSize = n
		}
	}
}

// WithLabels 设置字段标签解析函数
func WithLabels(fn LabelFunc) Option { return func(e *Editor) { e.labels = fn } }

// Editor 标注编辑会话：当前工具、绘制/拖拽状态、选中项和历史记录。
// 所有方法都在处理输入事件的同一个线程上同步调用
type Editor struct {
	history *History
	image   BaseImage
	box     geom.Box
	labels  LabelFunc

	// 当前工具状态
	tool         ToolType
	color        color.RGBA
	strokeSize   int
	tolerance    float64
	handleRadius float64

	selected int // 选中标注 ID，0 表示无；可能指向已不存在的标注
	nextID   int

	state State

	// 绘制状态
	startPt   r2.Vec   // 起始点
	currentPt r2.Vec   // 当前点（仅用于预览）
	points    []r2.Vec // 自由画笔的点集

	// 拖拽状态
	dragMode   DragMode
	dragHandle Handle
	dragTarget int
	lastPt     r2.Vec // 上一次移动事件的位置
	anchor     r2.Vec // 调整大小时固定的对角
	corner     r2.Vec // 正在拖动的角/端点
	before     Set    // 拖拽开始时的快照
	dirty      bool   // 本次拖拽是否已经修改过模型

	// 文本输入状态
	textInput  bool
	textTarget int
	textBuffer string
}

// NewEditor 创建编辑器
func NewEditor(opts ...Option) *Editor {
	e := &Editor{
		history:      NewHistory(0),
		tool:         ToolSelect,
		color:        DefaultColors[0],
		strokeSize:   DefaultStrokeSize,
		tolerance:    HitTolerance,
		handleRadius: HandleHitRadius,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// LoadImage 替换底图。标注只对原图有意义，因此清空标注和撤销/重做栈
func (e *Editor) LoadImage(img BaseImage) {
	e.image = img
	e.history.Reset(nil)
	e.selected = 0
	e.resetGesture()
	e.CancelText()

	if img != nil {
		w, h := img.Size()
		Logger().Debug("base image loaded", "width", w, "height", h)
	}
}

// Image 当前底图，可能为 nil
func (e *Editor) Image() BaseImage { return e.image }

// Restore 用外部记录中的标注集合初始化会话（清空历史）。缺少 ID 的标注会被分配新 ID
func (e *Editor) Restore(set Set) {
	set = set.Clone()
	if m := set.MaxID(); m > e.nextID {
		e.nextID = m
	}
	for i := range set {
		if set[i].ID <= 0 || set.Index(set[i].ID) != i {
			set[i].ID = e.newID()
		}
	}
	e.history.Reset(set)
	e.selected = 0
	e.resetGesture()
	e.CancelText()
}

// SetBox 更新底图在屏幕上的显示区域。模型是归一化坐标，不受影响
func (e *Editor) SetBox(b geom.Box) { e.box = b }

// Box 当前显示区域
func (e *Editor) Box() geom.Box { return e.box }

// Annotations 当前标注集合（只读）
func (e *Editor) Annotations() Set { return e.history.Annotations() }

// Labels 字段标签解析函数
func (e *Editor) Labels() LabelFunc { return e.labels }

// SetLabels 替换字段标签解析函数，nil 表示所有字段都未关联
func (e *Editor) SetLabels(fn LabelFunc) { e.labels = fn }

// State 当前交互状态
func (e *Editor) State() State { return e.state }

// DragMode 当前拖拽方式
func (e *Editor) DragMode() DragMode { return e.dragMode }

// Tool 当前工具
func (e *Editor) Tool() ToolType { return e.tool }

// SetTool 切换工具，会取消进行中的手势并提交正在输入的文本
func (e *Editor) SetTool(t ToolType) {
	if t < 0 || t >= ToolCount {
		return
	}
	if e.state != StateIdle {
		e.CancelGesture()
	}
	e.CommitText()
	e.tool = t
}

// Color 当前绘制颜色
func (e *Editor) Color() color.RGBA { return e.color }

// SetColor 设置绘制颜色；有选中标注时同时修改它（一个撤销点）
func (e *Editor) SetColor(c color.RGBA) {
	e.color = c
	e.restyle(func(a *Annotation) { a.Color = c })
}

// StrokeSize 当前线宽
func (e *Editor) StrokeSize() int { return e.strokeSize }

// SetStrokeSize 设置线宽；有选中标注时同时修改它（一个撤销点）
func (e *Editor) SetStrokeSize(n int) {
	if n < 1 {
		n = 1
	}
	e.strokeSize = n
	e.restyle(func(a *Annotation) { a.StrokeSize = n })
}

func (e *Editor) restyle(fn func(a *Annotation)) {
	if e.state != StateIdle {
		return
	}
	a, ok := e.Selected()
	if !ok {
		return
	}
	next := a.Clone()
	fn(&next)
	if next.Color == a.Color && next.StrokeSize == a.StrokeSize {
		return
	}
	e.history.Commit(e.Annotations().Replace(next))
}

// Selected 返回选中的标注。选中 ID 指向的标注不存在（例如被撤销掉）时视为未选中
func (e *Editor) Selected() (Annotation, bool) {
	if e.selected == 0 {
		return Annotation{}, false
	}
	return e.Annotations().Get(e.selected)
}

// Select 选中指定标注
func (e *Editor) Select(id int) bool {
	if _, ok := e.Annotations().Get(id); !ok {
		return false
	}
	e.selected = id
	return true
}

// ClearSelection 取消选中
func (e *Editor) ClearSelection() { e.selected = 0 }

func (e *Editor) newID() int {
	e.nextID++
	return e.nextID
}

func (e *Editor) normalized(px, py float64) r2.Vec {
	return geom.ToNormalized(px, py, e.box)
}

// Dispatch 分发指针事件
func (e *Editor) Dispatch(ev PointerEvent) {
	switch ev.Kind {
	case PointerDown:
		e.PointerDown(ev.X, ev.Y)
	case PointerMove:
		e.PointerMove(ev.X, ev.Y)
	case PointerUp:
		e.PointerUp(ev.X, ev.Y)
	}
}

// PointerDown 处理指针按下
func (e *Editor) PointerDown(px, py float64) {
	if e.state != StateIdle {
		return
	}
	// 如果在文本输入模式，先提交当前文本
	e.CommitText()

	p := e.normalized(px, py)

	switch e.tool {
	case ToolSelect:
		if sel, ok := e.Selected(); ok {
			if h := HitHandle(sel, px, py, e.box, e.handleRadius); h != HandleNone {
				e.beginDrag(sel, h, p)
				return
			}
		}
		if id, ok := HitTest(e.Annotations(), p, e.tolerance); ok {
			e.selected = id
			a, _ := e.Annotations().Get(id)
			e.beginDrag(a, HandleNone, p)
			return
		}
		e.selected = 0

	case ToolPen:
		e.state = StateDrawing
		e.startPt, e.currentPt = p, p
		e.points = []r2.Vec{p}

	case ToolRect, ToolArrow:
		e.state = StateDrawing
		e.startPt, e.currentPt = p, p

	case ToolText:
		a := Annotation{
			ID:         e.newID(),
			Color:      e.color,
			StrokeSize: e.strokeSize,
			Shape:      Text{X: p.X, Y: p.Y, Text: PlaceholderText},
		}
		e.history.Commit(e.Annotations().With(a))
		e.selected = a.ID
		e.textInput = true
		e.textTarget = a.ID
		e.textBuffer = ""
		Logger().Debug("text created", "id", a.ID)

	case ToolErase:
		if id, ok := HitTest(e.Annotations(), p, e.tolerance); ok {
			e.history.Commit(e.Annotations().Without(id))
			if e.selected == id {
				e.selected = 0
			}
			Logger().Debug("annotation erased", "id", id)
		}
	}
}

func (e *Editor) beginDrag(a Annotation, h Handle, p r2.Vec) {
	e.state = StateDragging
	e.dragTarget = a.ID
	e.dragHandle = h
	e.lastPt = p
	e.before = e.Annotations().Clone()
	e.dirty = false

	pts := HandlePoints(a)
	switch {
	case h == HandleArrowStart:
		e.dragMode = DragArrowStart
		e.corner = pts[h]
	case h == HandleArrowEnd:
		e.dragMode = DragArrowEnd
		e.corner = pts[h]
	case h != HandleNone:
		r, _ := a.Shape.(Rect)
		e.dragMode = DragResize
		e.corner = pts[h]
		e.anchor = oppositeCorner(r, h)
	default:
		e.dragMode = DragMove
	}
}

// PointerMove 处理指针移动
func (e *Editor) PointerMove(px, py float64) {
	p := e.normalized(px, py)

	switch e.state {
	case StateDrawing:
		e.currentPt = p
		if e.tool == ToolPen {
			e.points = append(e.points, p)
		}
	case StateDragging:
		e.applyDrag(p)
	}
}

// applyDrag 修改被拖拽的标注：整体移动按增量，拖拽的角点和端点跟随指针。
// 每次移动都立即修改模型，但整次手势只在第一次修改前压入一个撤销点
func (e *Editor) applyDrag(p r2.Vec) {
	d := r2.Sub(p, e.lastPt)
	e.lastPt = p
	if d == (r2.Vec{}) {
		return
	}

	a, ok := e.Annotations().Get(e.dragTarget)
	if !ok {
		e.resetGesture()
		return
	}
	a = a.Clone()

	switch e.dragMode {
	case DragMove:
		a.Shape = Move(a.Shape, d)
	case DragResize:
		if _, ok := a.Shape.(Rect); !ok {
			return
		}
		e.corner = geom.ClampVec(p)
		a.Shape = ResizeRect(e.anchor, e.corner)
	case DragArrowStart, DragArrowEnd:
		arrow, ok := a.Shape.(Arrow)
		if !ok {
			return
		}
		e.corner = geom.ClampVec(p)
		a.Shape = MoveArrowEndpoint(arrow, e.dragHandle, e.corner)
	default:
		return
	}

	if !e.dirty {
		e.history.Checkpoint(e.before)
		e.dirty = true
	}
	e.history.Update(a)
}

// PointerUp 处理指针释放，绘制手势在这里提交或丢弃
func (e *Editor) PointerUp(px, py float64) {
	p := e.normalized(px, py)

	switch e.state {
	case StateDrawing:
		e.currentPt = p
		if a, ok := e.finishShape(p); ok {
			e.history.Commit(e.Annotations().With(a))
			Logger().Debug("annotation committed", "id", a.ID, "kind", a.Kind())
		} else {
			Logger().Debug("degenerate shape discarded", "tool", e.tool.String())
		}
	case StateDragging:
		// 修改已经在移动事件中完成
		Logger().Debug("drag finished", "id", e.dragTarget, "changed", e.dirty)
	}
	e.resetGesture()
}

// finishShape 根据绘制状态生成标注，低于最小尺寸的返回 false
func (e *Editor) finishShape(p r2.Vec) (Annotation, bool) {
	var shape Shape
	switch e.tool {
	case ToolPen:
		pts := e.points
		if n := len(pts); n == 0 || pts[n-1] != p {
			pts = append(pts, p)
		}
		if len(pts) < 2 {
			return Annotation{}, false
		}
		shape = Pen{Points: pts}
	case ToolRect:
		r := RectFromCorners(e.startPt, p)
		if r.Width <= MinRectSize || r.Height <= MinRectSize {
			return Annotation{}, false
		}
		shape = r
	case ToolArrow:
		if geom.Distance(e.startPt, p) <= MinArrowLength {
			return Annotation{}, false
		}
		start, end := geom.ClampVec(e.startPt), geom.ClampVec(p)
		shape = Arrow{X1: start.X, Y1: start.Y, X2: end.X, Y2: end.Y}
	default:
		return Annotation{}, false
	}
	return Annotation{
		ID:         e.newID(),
		Color:      e.color,
		StrokeSize: e.strokeSize,
		Shape:      shape,
	}, true
}

// Preview 正在绘制的临时标注（预览用）
func (e *Editor) Preview() (Annotation, bool) {
	if e.state != StateDrawing {
		return Annotation{}, false
	}
	a := Annotation{Color: e.color, StrokeSize: e.strokeSize}
	switch e.tool {
	case ToolPen:
		a.Shape = Pen{Points: e.points}.clone()
	case ToolRect:
		a.Shape = RectFromCorners(e.startPt, e.currentPt)
	case ToolArrow:
		a.Shape = Arrow{X1: e.startPt.X, Y1: e.startPt.Y, X2: e.currentPt.X, Y2: e.currentPt.Y}
	default:
		return Annotation{}, false
	}
	return a, true
}

// CancelGesture 取消进行中的手势。绘制中的形状被丢弃，拖拽已经完成的修改保留
func (e *Editor) CancelGesture() {
	e.resetGesture()
}

func (e *Editor) resetGesture() {
	e.state = StateIdle
	e.points = nil
	e.dragMode = DragNone
	e.dragHandle = HandleNone
	e.dragTarget = 0
	e.before = nil
	e.dirty = false
}

// TextInput 返回正在编辑的文本标注 ID 和输入缓冲
func (e *Editor) TextInput() (id int, buffer string, ok bool) {
	return e.textTarget, e.textBuffer, e.textInput
}

// EditText 开始编辑已有的文本标注
func (e *Editor) EditText(id int) bool {
	a, ok := e.Annotations().Get(id)
	if !ok {
		return false
	}
	t, ok := a.Shape.(Text)
	if !ok {
		return false
	}
	e.CommitText()
	e.selected = id
	e.textInput = true
	e.textTarget = id
	e.textBuffer = t.Text
	return true
}

// InsertText 向输入缓冲追加文本
func (e *Editor) InsertText(s string) {
	if !e.textInput {
		return
	}
	e.textBuffer += s
}

// Backspace 删除输入缓冲的最后一个字符
func (e *Editor) Backspace() {
	if !e.textInput || e.textBuffer == "" {
		return
	}
	runes := []rune(e.textBuffer)
	e.textBuffer = string(runes[:len(runes)-1])
}

// CommitText 提交文本输入。内容为空或未改变时不产生撤销点
func (e *Editor) CommitText() bool {
	if !e.textInput {
		return false
	}
	id, text := e.textTarget, e.textBuffer
	e.CancelText()
	if text == "" {
		return false
	}

	a, ok := e.Annotations().Get(id)
	if !ok {
		return false
	}
	t, ok := a.Shape.(Text)
	if !ok || t.Text == text {
		return false
	}
	a = a.Clone()
	t.Text = text
	a.Shape = t
	e.history.Commit(e.Annotations().Replace(a))
	return true
}

// CancelText 放弃文本输入，标注保留原内容
func (e *Editor) CancelText() {
	e.textInput = false
	e.textTarget = 0
	e.textBuffer = ""
}

// DeleteSelected 删除选中的标注
func (e *Editor) DeleteSelected() bool {
	if e.state != StateIdle {
		return false
	}
	a, ok := e.Selected()
	if !ok {
		return false
	}
	if e.textTarget == a.ID {
		e.CancelText()
	}
	e.history.Commit(e.Annotations().Without(a.ID))
	e.selected = 0
	return true
}

// ClearAll 删除所有标注（一个撤销点）
func (e *Editor) ClearAll() bool {
	if e.state != StateIdle || len(e.Annotations()) == 0 {
		return false
	}
	e.CancelText()
	e.history.Commit(Set{})
	e.selected = 0
	return true
}

// LinkField 设置或清除标注关联的字段 ID（一个撤销点）
func (e *Editor) LinkField(id int, fieldID string) bool {
	a, ok := e.Annotations().Get(id)
	if !ok || a.LinkedFieldID == fieldID {
		return false
	}
	a = a.Clone()
	a.LinkedFieldID = fieldID
	e.history.Commit(e.Annotations().Replace(a))
	return true
}

// Undo 撤销
func (e *Editor) Undo() bool {
	e.CancelGesture()
	e.CancelText()
	return e.history.Undo()
}

// Redo 重做
func (e *Editor) Redo() bool {
	e.CancelGesture()
	e.CancelText()
	return e.history.Redo()
}

// CanUndo 是否可以撤销
func (e *Editor) CanUndo() bool { return e.history.CanUndo() }

// CanRedo 是否可以重做
func (e *Editor) CanRedo() bool { return e.history.CanRedo() }

// Describe 标注的简短描述，用于列表显示
func (e *Editor) Describe(a Annotation) string {
	label, _ := FieldLabel(a, e.labels)
	return fmt.Sprintf("%s #%d [%s]", kindName[a.Kind()], a.ID, label)
}

var kindName = map[Kind]string{
	KindPen:   ToolName[ToolPen],
	KindRect:  ToolName[ToolRect],
	KindArrow: ToolName[ToolArrow],
	KindText:  ToolName[ToolText],
}

// View 渲染所需的编辑器状态快照
type View struct {
	Box         geom.Box
	Annotations Set
	Selected    int         // 0 表示无选中
	Preview     *Annotation // 绘制中的预览
	Editing     int         // 正在编辑的文本标注 ID，0 表示无
	Labels      LabelFunc
}

// View 生成当前状态快照。文本输入中的缓冲会直接显示在对应标注上
func (e *Editor) View() View {
	v := View{
		Box:         e.box,
		Annotations: e.Annotations(),
		Labels:      e.labels,
	}
	if _, ok := e.Selected(); ok {
		v.Selected = e.selected
	}
	if p, ok := e.Preview(); ok {
		v.Preview = &p
	}
	if e.textInput {
		v.Editing = e.textTarget
		if e.textBuffer != "" {
			if a, ok := v.Annotations.Get(e.textTarget); ok {
				if t, ok := a.Shape.(Text); ok {
					t.Text = e.textBuffer
					a.Shape = t
					v.Annotations = v.Annotations.Replace(a)
				}
			}
		}
	}
	return v
}
