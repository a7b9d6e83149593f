package tui

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanmark/internal/annotate"
	"scanmark/internal/imageio"
)

func whiteSource(w, h int) *imageio.MemorySource {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return imageio.NewMemorySource(img)
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func mouse(t tea.MouseEventType, x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Type: t}
}

// send 依次发送消息，返回最后的模型和命令
func send(t *testing.T, m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m, cmd
}

func newModel(t *testing.T, opts Options) Model {
	t.Helper()
	e := annotate.NewEditor(annotate.WithHandleRadius(HandleRadius))
	e.LoadImage(whiteSource(100, 100))
	m, err := New(e, opts)
	require.NoError(t, err)
	// 50 列 x 25 行画布 = 50x50 像素
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 50, Height: 26})
	return m
}

func TestMouseDrawsRect(t *testing.T) {
	m := newModel(t, Options{})
	assert.True(t, m.Editor().Box().Valid())

	m, _ = send(t, m,
		keyRune('r'),
		mouse(tea.MouseLeft, 5, 5),
		mouse(tea.MouseMotion, 15, 10),
		mouse(tea.MouseLeft, 20, 15),
		mouse(tea.MouseRelease, 20, 15),
	)
	set := m.Editor().Annotations()
	require.Len(t, set, 1)
	r := set[0].Shape.(annotate.Rect)
	assert.InDelta(t, 0.11, r.X, 1e-9)
	assert.InDelta(t, 0.22, r.Y, 1e-9)
	assert.InDelta(t, 0.3, r.Width, 1e-9)
	assert.InDelta(t, 0.4, r.Height, 1e-9)

	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlZ})
	assert.Empty(t, m.Editor().Annotations())
	m, _ = send(t, m, keyRune('U'))
	assert.Len(t, m.Editor().Annotations(), 1)
}

func TestMouseIgnoredWithoutLayout(t *testing.T) {
	e := annotate.NewEditor()
	e.LoadImage(whiteSource(100, 100))
	m, err := New(e, Options{})
	require.NoError(t, err)

	m, _ = send(t, m, keyRune('t'), mouse(tea.MouseLeft, 3, 3))
	assert.Empty(t, m.Editor().Annotations())
}

func TestMousePressOutsideImageIgnored(t *testing.T) {
	e := annotate.NewEditor()
	e.LoadImage(whiteSource(100, 50))
	m, err := New(e, Options{})
	require.NoError(t, err)
	// 50x50 像素画布中图片占 y 12.5..37.5
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 50, Height: 26})

	m, _ = send(t, m,
		keyRune('r'),
		mouse(tea.MouseLeft, 5, 2),
		mouse(tea.MouseMotion, 30, 15),
		mouse(tea.MouseRelease, 30, 15),
	)
	assert.Empty(t, m.Editor().Annotations())

	m, _ = send(t, m,
		mouse(tea.MouseLeft, 5, 8),
		mouse(tea.MouseMotion, 30, 15),
		mouse(tea.MouseRelease, 30, 15),
	)
	assert.Len(t, m.Editor().Annotations(), 1)
}

func TestTextInputKeys(t *testing.T) {
	m := newModel(t, Options{})
	m, _ = send(t, m,
		keyRune('t'),
		mouse(tea.MouseLeft, 10, 10),
		mouse(tea.MouseRelease, 10, 10),
		keyRune('h'), keyRune('i'),
		tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}},
		keyRune('x'), // 输入模式下不删除标注
		tea.KeyMsg{Type: tea.KeyBackspace},
		keyRune('!'),
		tea.KeyMsg{Type: tea.KeyEnter},
	)
	set := m.Editor().Annotations()
	require.Len(t, set, 1)
	assert.Equal(t, "hi !", set[0].Shape.(annotate.Text).Text)
	_, _, editing := m.Editor().TextInput()
	assert.False(t, editing)
}

func TestSelectionKeys(t *testing.T) {
	m := newModel(t, Options{Fields: map[string]string{"a": "Name", "b": "Date"}})
	m.Editor().Restore(annotate.Set{{ID: 1, Color: annotate.DefaultColors[0], StrokeSize: 3,
		Shape: annotate.Rect{X: 0.2, Y: 0.2, Width: 0.4, Height: 0.4}}})

	m, _ = send(t, m, mouse(tea.MouseLeft, 20, 10), mouse(tea.MouseRelease, 20, 10))
	_, ok := m.Editor().Selected()
	require.True(t, ok)

	m, _ = send(t, m, keyRune('c'))
	a, _ := m.Editor().Selected()
	assert.Equal(t, annotate.DefaultColors[1], a.Color)

	m, _ = send(t, m, keyRune('+'))
	a, _ = m.Editor().Selected()
	assert.Equal(t, 5, a.StrokeSize)

	m, _ = send(t, m, keyRune('f'))
	a, _ = m.Editor().Selected()
	assert.Equal(t, "a", a.LinkedFieldID)
	assert.Contains(t, m.Status(), "Name")
	m, _ = send(t, m, keyRune('f'), keyRune('f'))
	a, _ = m.Editor().Selected()
	assert.Empty(t, a.LinkedFieldID)

	m, _ = send(t, m, keyRune('x'))
	assert.Empty(t, m.Editor().Annotations())
}

func TestExportCommand(t *testing.T) {
	var saved *image.RGBA
	m := newModel(t, Options{Save: func(img *image.RGBA) (string, error) {
		saved = img
		return "/tmp/out.png", nil
	}})

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	assert.Contains(t, m.Status(), "导出")

	// 导出进行中再次触发被忽略
	_, again := send(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Nil(t, again)

	m, _ = send(t, m, cmd())
	require.NotNil(t, saved)
	assert.Equal(t, 100, saved.Bounds().Dx())
	assert.Contains(t, m.Status(), "/tmp/out.png")
}

type brokenSource struct{}

func (brokenSource) Size() (int, int)             { return 10, 10 }
func (brokenSource) Decode() (image.Image, error) { return nil, errors.New("gone") }

func TestExportFailureReported(t *testing.T) {
	e := annotate.NewEditor()
	e.LoadImage(brokenSource{})
	m, err := New(e, Options{Save: func(*image.RGBA) (string, error) {
		t.Fatal("save must not be called")
		return "", nil
	}})
	require.NoError(t, err)

	m, _ = send(t, m, tea.WindowSizeMsg{Width: 20, Height: 11})
	m, _ = send(t, m, m.Init()())
	assert.Contains(t, m.Status(), "gone")

	_, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	m, _ = send(t, m, cmd())
	assert.Contains(t, m.Status(), "gone")
}

func TestViewDimensions(t *testing.T) {
	m := newModel(t, Options{})
	m, _ = send(t, m, m.Init()())

	v := m.View()
	lines := strings.Split(v, "\n")
	assert.Len(t, lines, 26)
	assert.Contains(t, lines[0], halfBlock)

	m, _ = send(t, m, keyRune('q'))
	assert.Empty(t, m.View())
}

func TestStrokeCycle(t *testing.T) {
	assert.Equal(t, 5, nextStroke(3, 1))
	assert.Equal(t, 8, nextStroke(8, 1))
	assert.Equal(t, 2, nextStroke(3, -1))
	assert.Equal(t, 2, nextStroke(2, -1))
	assert.Equal(t, annotate.DefaultColors[0], nextColor(annotate.DefaultColors, color.RGBA{1, 2, 3, 255}))
}
