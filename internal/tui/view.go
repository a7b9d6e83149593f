package tui

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"scanmark/internal/annotate"
)

var (
	canvasBg = color.RGBA{24, 24, 27, 255}

	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E6E6E6")).Background(lipgloss.Color("#243141"))
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// halfBlock 上半块：前景色是上方像素，背景色是下方像素
const halfBlock = "▀"

// View 渲染画布和状态栏
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	w, h := m.canvasSize()
	if w == 0 || h == 0 {
		return "窗口太小"
	}

	img := m.overlay.Overlay(m.editor.View(), m.base, w, h, canvasBg)

	var sb strings.Builder
	for row := 0; row < h/2; row++ {
		writeRow(&sb, img, row)
		sb.WriteByte('\n')
	}
	sb.WriteString(m.statusLine())
	return sb.String()
}

// writeRow 把两行像素写成一行字符，相同颜色的连续格合并为一段
func writeRow(sb *strings.Builder, img *image.RGBA, row int) {
	y0, y1 := row*2, row*2+1
	width := img.Bounds().Dx()
	start := 0
	for x := 1; x <= width; x++ {
		if x < width && img.RGBAAt(x, y0) == img.RGBAAt(start, y0) && img.RGBAAt(x, y1) == img.RGBAAt(start, y1) {
			continue
		}
		style := lipgloss.NewStyle().
			Foreground(cellColor(img.RGBAAt(start, y0))).
			Background(cellColor(img.RGBAAt(start, y1)))
		sb.WriteString(style.Render(strings.Repeat(halfBlock, x-start)))
		start = x
	}
}

func cellColor(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

// statusLine 底部状态栏
func (m Model) statusLine() string {
	swatch := lipgloss.NewStyle().Foreground(cellColor(m.editor.Color())).Render("■")

	parts := []string{
		toolStyle.Render(m.editor.Tool().String()),
		swatch,
		fmt.Sprintf("%dpx", m.editor.StrokeSize()),
		fmt.Sprintf("%d 个标注", len(m.editor.Annotations())),
	}
	if a, ok := m.editor.Selected(); ok {
		parts = append(parts, m.editor.Describe(a))
	}
	if _, buf, ok := m.editor.TextInput(); ok {
		parts = append(parts, "输入: "+buf+"▏")
	}

	var hist []string
	if m.editor.CanUndo() {
		hist = append(hist, "u")
	}
	if m.editor.CanRedo() {
		hist = append(hist, "U")
	}
	if len(hist) > 0 {
		parts = append(parts, dimStyle.Render(strings.Join(hist, "/")))
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}

	line := strings.Join(parts, "  ")
	return statusStyle.MaxWidth(m.width).Render(line)
}

// describeTool 工具的快捷键提示
func describeTool(t annotate.ToolType) string {
	for k, v := range toolKeys {
		if v == t {
			return k + t.String()
		}
	}
	return t.String()
}

// helpText 初始状态栏提示
func helpText() string {
	keys := make([]string, 0, int(annotate.ToolCount))
	for t := annotate.ToolSelect; t < annotate.ToolCount; t++ {
		keys = append(keys, describeTool(t))
	}
	return strings.Join(keys, " ") + "  u撤销 U重做  ctrl+s导出 q退出"
}
