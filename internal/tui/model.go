// Package tui 终端标注编辑器：把鼠标和按键事件交给 annotate.Editor，
// 用半块字符把实时叠加层画到终端
package tui

import (
	"image"
	"image/color"
	"sort"

	tea "github.com/charmbracelet/bubbletea"

	"scanmark/internal/annotate"
	"scanmark/internal/geom"
)

// HandleRadius 终端中的手柄命中半径。每个字符格是 1x2 像素
const HandleRadius = 2.0

// SaveFunc 保存导出结果，返回保存位置
type SaveFunc func(img *image.RGBA) (string, error)

// Options 编辑器界面选项。底图取自 editor.Image()
type Options struct {
	Save    SaveFunc
	Fields  map[string]string // 可关联字段 ID -> 标签
	Palette []color.RGBA
}

// baseLoadedMsg 底图解码完成
type baseLoadedMsg struct {
	img image.Image
	err error
}

// exportDoneMsg 导出完成
type exportDoneMsg struct {
	path string
	err  error
}

// Model bubbletea 模型
type Model struct {
	editor   *annotate.Editor
	overlay  *annotate.Renderer
	exporter *annotate.Renderer
	opts     Options
	fieldIDs []string

	base    image.Image
	width   int // 终端列数
	height  int // 终端行数
	pressed bool

	exporting bool
	status    string
	quitting  bool
}

// New 创建界面模型。overlay 和 exporter 分别用于界面线程和导出 goroutine
func New(editor *annotate.Editor, opts Options) (Model, error) {
	overlay, err := annotate.NewRenderer()
	if err != nil {
		return Model{}, err
	}
	exporter, err := annotate.NewRenderer()
	if err != nil {
		return Model{}, err
	}
	if len(opts.Palette) == 0 {
		opts.Palette = annotate.DefaultColors
	}

	ids := make([]string, 0, len(opts.Fields))
	for id := range opts.Fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		editor.SetLabels(LabelsFor(opts.Fields))
	}

	return Model{
		editor:   editor,
		overlay:  overlay,
		exporter: exporter,
		opts:     opts,
		fieldIDs: ids,
		status:   helpText(),
	}, nil
}

// Editor 底层编辑器
func (m Model) Editor() *annotate.Editor { return m.editor }

// Status 当前状态栏消息
func (m Model) Status() string { return m.status }

// LabelsFor 由字段表构造标签解析函数
func LabelsFor(fields map[string]string) annotate.LabelFunc {
	return func(id string) (string, bool) {
		l, ok := fields[id]
		return l, ok
	}
}

// Init 后台解码底图
func (m Model) Init() tea.Cmd {
	src := m.editor.Image()
	if src == nil {
		return nil
	}
	return func() tea.Msg {
		img, err := src.Decode()
		return baseLoadedMsg{img: img, err: err}
	}
}

// Update 处理消息
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case baseLoadedMsg:
		if msg.err != nil {
			m.status = "底图解码失败: " + msg.err.Error()
			return m, nil
		}
		m.base = msg.img
		return m, nil

	case exportDoneMsg:
		m.exporting = false
		switch {
		case msg.err != nil:
			m.status = msg.err.Error()
		case msg.path == "":
			m.status = "没有可导出的内容"
		default:
			m.status = "已导出: " + msg.path
		}
		return m, nil

	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil

	case tea.KeyMsg:
		if _, _, ok := m.editor.TextInput(); ok {
			return m.handleTextKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

// layout 根据终端尺寸更新底图显示区域（最后一行是状态栏）
func (m *Model) layout() {
	w, h := m.canvasSize()
	src := m.editor.Image()
	if src == nil || w <= 0 || h <= 0 {
		m.editor.SetBox(geom.Box{})
		return
	}
	nw, nh := src.Size()
	m.editor.SetBox(geom.Fit(nw, nh, geom.Box{W: float64(w), H: float64(h)}))
}

// canvasSize 画布像素尺寸
func (m Model) canvasSize() (int, int) {
	rows := m.height - 1
	if rows < 1 || m.width < 1 {
		return 0, 0
	}
	return m.width, rows * 2
}

// handleMouse 鼠标按下/移动/释放转换为指针事件，坐标取字符格中心
func (m *Model) handleMouse(msg tea.MouseMsg) {
	if !m.editor.Box().Valid() {
		return
	}
	px := float64(msg.X) + 0.5
	py := float64(msg.Y)*2 + 1

	switch msg.Type {
	case tea.MouseLeft:
		if m.pressed {
			m.editor.PointerMove(px, py)
			return
		}
		// 按在留白处不开始手势
		if !m.editor.Box().Contains(px, py) {
			return
		}
		m.pressed = true
		m.editor.PointerDown(px, py)
	case tea.MouseMotion:
		if m.pressed {
			m.editor.PointerMove(px, py)
		}
	case tea.MouseRelease:
		if m.pressed {
			m.pressed = false
			m.editor.PointerUp(px, py)
		}
	}
}

var toolKeys = map[string]annotate.ToolType{
	"s": annotate.ToolSelect,
	"p": annotate.ToolPen,
	"r": annotate.ToolRect,
	"a": annotate.ToolArrow,
	"t": annotate.ToolText,
	"e": annotate.ToolErase,
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if t, ok := toolKeys[key]; ok {
		m.editor.SetTool(t)
		m.status = "工具: " + t.String()
		return m, nil
	}

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.editor.CommitText()
		return m, tea.Quit

	case "u", "ctrl+z":
		if !m.editor.Undo() {
			m.status = "没有可撤销的操作"
		}
	case "U", "ctrl+y":
		if !m.editor.Redo() {
			m.status = "没有可重做的操作"
		}

	case "x", "delete", "backspace":
		m.editor.DeleteSelected()
	case "C":
		m.editor.ClearAll()

	case "c":
		m.editor.SetColor(nextColor(m.opts.Palette, m.editor.Color()))
	case "+", "=":
		m.editor.SetStrokeSize(nextStroke(m.editor.StrokeSize(), 1))
	case "-":
		m.editor.SetStrokeSize(nextStroke(m.editor.StrokeSize(), -1))

	case "f":
		m.cycleField()

	case "enter":
		if a, ok := m.editor.Selected(); ok {
			m.editor.EditText(a.ID)
		}

	case "esc":
		if m.editor.State() != annotate.StateIdle {
			m.editor.CancelGesture()
			m.pressed = false
		} else {
			m.editor.ClearSelection()
		}

	case "ctrl+s":
		return m.startExport()
	}
	return m, nil
}

func (m Model) handleTextKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.editor.CancelText()
		return m.handleKey(msg)
	case tea.KeyEnter:
		m.editor.CommitText()
	case tea.KeyEsc:
		m.editor.CancelText()
	case tea.KeyBackspace:
		m.editor.Backspace()
	case tea.KeySpace:
		m.editor.InsertText(" ")
	case tea.KeyRunes:
		m.editor.InsertText(string(msg.Runes))
	}
	return m, nil
}

// cycleField 把选中标注关联到下一个字段，最后一个之后取消关联
func (m *Model) cycleField() {
	a, ok := m.editor.Selected()
	if !ok || len(m.fieldIDs) == 0 {
		return
	}
	next := m.fieldIDs[0]
	for i, id := range m.fieldIDs {
		if id == a.LinkedFieldID {
			next = ""
			if i+1 < len(m.fieldIDs) {
				next = m.fieldIDs[i+1]
			}
			break
		}
	}
	m.editor.LinkField(a.ID, next)
	a, _ = m.editor.Selected()
	m.status = m.editor.Describe(a)
}

// startExport 在后台渲染并保存导出图片
func (m Model) startExport() (tea.Model, tea.Cmd) {
	if m.exporting {
		return m, nil
	}
	m.exporting = true
	m.status = "正在导出..."

	src := m.editor.Image()
	set := m.editor.Annotations().Clone()
	exporter, save := m.exporter, m.opts.Save

	return m, func() tea.Msg {
		img, err := exporter.Export(src, set)
		if err != nil {
			return exportDoneMsg{err: err}
		}
		if img == nil || save == nil {
			return exportDoneMsg{}
		}
		path, err := save(img)
		return exportDoneMsg{path: path, err: err}
	}
}

func nextColor(palette []color.RGBA, cur color.RGBA) color.RGBA {
	for i, c := range palette {
		if c == cur {
			return palette[(i+1)%len(palette)]
		}
	}
	return palette[0]
}

func nextStroke(cur, dir int) int {
	sizes := annotate.DefaultStrokeSizes
	if dir > 0 {
		for _, s := range sizes {
			if s > cur {
				return s
			}
		}
		return sizes[len(sizes)-1]
	}
	for i := len(sizes) - 1; i >= 0; i-- {
		if sizes[i] < cur {
			return sizes[i]
		}
	}
	return sizes[0]
}
