package annotate

import (
	"encoding/json"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"scanmark/internal/geom"
)

// 持久化格式：每个标注一个对象，type 字段区分类型
//
//	{"type":"rect","x":0.1,"y":0.1,"width":0.4,"height":0.4,"color":"#ff0000","size":3,"linkedFieldId":"f1"}
//
// ID 不持久化，加载时重新分配

type recordHeader struct {
	Type          Kind   `json:"type"`
	Color         string `json:"color"`
	Size          int    `json:"size"`
	LinkedFieldID string `json:"linkedFieldId,omitempty"`
}

type pointRecord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type penRecord struct {
	recordHeader
	Points []pointRecord `json:"points"`
}

type rectRecord struct {
	recordHeader
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type arrowRecord struct {
	recordHeader
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

type textRecord struct {
	recordHeader
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

// MarshalSet 将标注集合编码为持久化 JSON 数组
func MarshalSet(set Set) ([]byte, error) {
	records := make([]interface{}, 0, len(set))
	for _, a := range set {
		h := recordHeader{
			Type:          a.Kind(),
			Color:         FormatColor(a.Color),
			Size:          a.StrokeSize,
			LinkedFieldID: a.LinkedFieldID,
		}
		switch s := a.Shape.(type) {
		case Pen:
			pts := make([]pointRecord, len(s.Points))
			for i, p := range s.Points {
				pts[i] = pointRecord{X: p.X, Y: p.Y}
			}
			records = append(records, penRecord{recordHeader: h, Points: pts})
		case Rect:
			records = append(records, rectRecord{recordHeader: h, X: s.X, Y: s.Y, Width: s.Width, Height: s.Height})
		case Arrow:
			records = append(records, arrowRecord{recordHeader: h, X1: s.X1, Y1: s.Y1, X2: s.X2, Y2: s.Y2})
		case Text:
			records = append(records, textRecord{recordHeader: h, X: s.X, Y: s.Y, Text: s.Text})
		default:
			return nil, fmt.Errorf("标注 #%d 没有形状", a.ID)
		}
	}
	return json.MarshalIndent(records, "", "  ")
}

// UnmarshalSet 解码持久化 JSON 数组。坐标被限制回 [0,1]，ID 按顺序从 1 分配
func UnmarshalSet(data []byte) (Set, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("解析标注失败: %w", err)
	}

	set := make(Set, 0, len(raws))
	for i, raw := range raws {
		a, err := decodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("标注 %d: %w", i, err)
		}
		a.ID = i + 1
		set = append(set, a)
	}
	return set, nil
}

func decodeRecord(raw json.RawMessage) (Annotation, error) {
	var h recordHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return Annotation{}, err
	}
	c, err := ParseColor(h.Color)
	if err != nil {
		return Annotation{}, err
	}
	a := Annotation{
		Color:         c,
		StrokeSize:    h.Size,
		LinkedFieldID: h.LinkedFieldID,
	}
	if a.StrokeSize < 1 {
		a.StrokeSize = DefaultStrokeSize
	}

	switch h.Type {
	case KindPen:
		var r penRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return Annotation{}, err
		}
		if len(r.Points) == 0 {
			return Annotation{}, fmt.Errorf("画笔没有点")
		}
		pts := make([]r2.Vec, len(r.Points))
		for i, p := range r.Points {
			pts[i] = geom.ClampVec(r2.Vec{X: p.X, Y: p.Y})
		}
		a.Shape = Pen{Points: pts}
	case KindRect:
		var r rectRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return Annotation{}, err
		}
		a.Shape = clampRect(Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height})
	case KindArrow:
		var r arrowRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return Annotation{}, err
		}
		a.Shape = Arrow{
			X1: geom.Clamp01(r.X1), Y1: geom.Clamp01(r.Y1),
			X2: geom.Clamp01(r.X2), Y2: geom.Clamp01(r.Y2),
		}
	case KindText:
		var r textRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return Annotation{}, err
		}
		a.Shape = Text{X: geom.Clamp01(r.X), Y: geom.Clamp01(r.Y), Text: r.Text}
	default:
		return Annotation{}, fmt.Errorf("未知的标注类型 %q", h.Type)
	}
	return a, nil
}

// FormatColor 颜色格式化为 #rrggbb，不透明度不足时为 #rrggbbaa（非预乘）
func FormatColor(c color.RGBA) string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.R = unpremul(n.R, c.R, c.A)
	n.G = unpremul(n.G, c.G, c.A)
	n.B = unpremul(n.B, c.B, c.A)
	return fmt.Sprintf("#%02x%02x%02x%02x", n.R, n.G, n.B, n.A)
}

// unpremul 修正取整误差，保证 ParseColor 能还原出同一个预乘值
func unpremul(v, want, a uint8) uint8 {
	for v > 0 && premul(v, a) > want {
		v--
	}
	for v < 255 && premul(v, a) < want {
		v++
	}
	return v
}

func premul(v, a uint8) uint8 {
	return color.RGBAModel.Convert(color.NRGBA{R: v, A: a}).(color.RGBA).R
}

// ParseColor 解析 #rgb / #rrggbb / #rrggbbaa（非预乘），空字符串返回默认颜色
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultColors[0], nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("无效的颜色 %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("无效的颜色 %q", s)
	}
	n := color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
	return color.RGBAModel.Convert(n).(color.RGBA), nil
}
