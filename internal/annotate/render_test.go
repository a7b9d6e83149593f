package annotate

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanmark/internal/geom"
)

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func isRed(c color.RGBA) bool   { return c.R > 200 && c.G < 60 && c.B < 60 }
func isWhite(c color.RGBA) bool { return c.R > 240 && c.G > 240 && c.B > 240 }

func TestExportRendersAtNativeResolution(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	set := Set{{
		ID:         1,
		Color:      color.RGBA{255, 0, 0, 255},
		StrokeSize: 2,
		Shape:      Rect{X: 0.1, Y: 0.1, Width: 0.4, Height: 0.4},
	}}
	out, err := r.Export(fakeImage{img: whiteImage(800, 600)}, set)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, image.Rect(0, 0, 800, 600), out.Bounds())

	// 矩形 (80,60)-(400,300)
	for _, p := range []image.Point{{80, 180}, {400, 180}, {240, 60}, {240, 300}} {
		assert.True(t, isRed(out.RGBAAt(p.X, p.Y)), "edge pixel %v = %v", p, out.RGBAAt(p.X, p.Y))
	}
	for _, p := range []image.Point{{240, 180}, {60, 180}, {700, 500}} {
		assert.True(t, isWhite(out.RGBAAt(p.X, p.Y)), "pixel %v = %v", p, out.RGBAAt(p.X, p.Y))
	}
}

func TestExportTranslucentColor(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	c, err := ParseColor("#ff000080")
	require.NoError(t, err)
	set := Set{{ID: 1, Color: c, StrokeSize: 4, Shape: Rect{X: 0.1, Y: 0.1, Width: 0.4, Height: 0.4}}}
	out, err := r.Export(fakeImage{img: whiteImage(800, 600)}, set)
	require.NoError(t, err)

	// 半透明红色叠在白底上
	px := out.RGBAAt(80, 180)
	assert.GreaterOrEqual(t, px.R, uint8(250), "%v", px)
	assert.InDelta(t, 127, int(px.G), 8, "%v", px)
	assert.InDelta(t, 127, int(px.B), 8, "%v", px)
}

func TestExportDoesNotModifySource(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	src := whiteImage(100, 100)
	set := Set{{ID: 1, Color: color.RGBA{255, 0, 0, 255}, StrokeSize: 4, Shape: Arrow{X1: 0.1, Y1: 0.5, X2: 0.9, Y2: 0.5}}}
	out, err := r.Export(fakeImage{img: src}, set)
	require.NoError(t, err)
	assert.True(t, isRed(out.RGBAAt(50, 50)))
	assert.True(t, isWhite(src.RGBAAt(50, 50)))
}

func TestExportWithoutImage(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Export(nil, Set{rectAnnotation(1, 0.1, 0.1, 0.2, 0.2)})
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestExportDecodeFailure(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	cause := errors.New("corrupt data")
	out, err := r.Export(fakeImage{err: cause}, nil)
	assert.Nil(t, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExportFailure))
	assert.True(t, errors.Is(err, cause))

	var exportErr *ExportError
	assert.True(t, errors.As(err, &exportErr))
}

func TestExportRendersEveryKind(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	red := color.RGBA{255, 0, 0, 255}
	set := Set{
		{ID: 1, Color: red, StrokeSize: 3, Shape: Pen{Points: vecs(0.1, 0.1, 0.2, 0.1)}},
		{ID: 2, Color: red, StrokeSize: 8, Shape: Text{X: 0.5, Y: 0.5, Text: "MMM\nMMM"}},
	}
	out, err := r.Export(fakeImage{img: whiteImage(200, 200)}, set)
	require.NoError(t, err)
	assert.True(t, isRed(out.RGBAAt(30, 20)), "pen stroke")

	found := false
	for y := 100; y < 200 && !found; y++ {
		for x := 100; x < 200; x++ {
			if isRed(out.RGBAAt(x, y)) {
				found = true
				break
			}
		}
	}
	assert.True(t, found, "text glyphs")
}

func TestOverlay(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	box := geom.Fit(100, 100, geom.Box{W: 200, H: 100})
	preview := Annotation{Color: color.RGBA{0, 200, 0, 255}, StrokeSize: 2, Shape: Rect{X: 0.6, Y: 0.6, Width: 0.3, Height: 0.3}}
	v := View{
		Box:         box,
		Annotations: Set{rectAnnotation(1, 0.1, 0.1, 0.4, 0.4)},
		Selected:    1,
		Preview:     &preview,
		Labels:      func(string) (string, bool) { return "Total", true },
	}
	v.Annotations[0].LinkedFieldID = "total"

	bg := color.RGBA{10, 10, 10, 255}
	out := r.Overlay(v, whiteImage(100, 100), 200, 100, bg)
	assert.Equal(t, image.Rect(0, 0, 200, 100), out.Bounds())

	// 信箱留边保持背景色，显示区域内是底图
	assert.Equal(t, bg, out.RGBAAt(5, 50))
	assert.True(t, isWhite(out.RGBAAt(100, 80)))

	empty := r.Overlay(v, nil, 0, 0, bg)
	assert.Equal(t, 0, empty.Bounds().Dx())
}

func TestFontSizeScalesWithStroke(t *testing.T) {
	assert.Equal(t, 12.0, FontSize(1))
	assert.Equal(t, 20.0, FontSize(3))
	assert.Equal(t, 12.0, FontSize(0))
}
