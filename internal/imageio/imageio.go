// Package imageio 提供编辑器使用的底图资源
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"

	// 注册解码器
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Source 底图资源：原始像素尺寸 + 按需解码
type Source interface {
	Size() (width, height int)
	Decode() (image.Image, error)
}

// FileSource 磁盘上的图片。打开时只读取头部，像素在 Decode 时才解码，
// 文件在此期间被删除或损坏会在 Decode 时报错
type FileSource struct {
	Path   string
	Format string
	width  int
	height int
}

// Open 读取图片头部信息，返回延迟解码的文件资源
func Open(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("无法打开图片: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("无法识别图片格式: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("图片尺寸无效: %dx%d", cfg.Width, cfg.Height)
	}
	return &FileSource{Path: path, Format: format, width: cfg.Width, height: cfg.Height}, nil
}

// Size 原始像素尺寸
func (s *FileSource) Size() (int, int) { return s.width, s.height }

// Decode 重新读取并解码整张图片
func (s *FileSource) Decode() (image.Image, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("无法打开图片: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("无法解码图片: %w", err)
	}
	return img, nil
}

// MemorySource 已经在内存中的图片
type MemorySource struct {
	Image image.Image
}

// NewMemorySource 包装一张已解码的图片
func NewMemorySource(img image.Image) *MemorySource {
	return &MemorySource{Image: img}
}

// FromBytes 从编码后的字节解码图片
func FromBytes(data []byte) (*MemorySource, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("无法解码图片: %w", err)
	}
	return &MemorySource{Image: img}, nil
}

// Size 原始像素尺寸
func (s *MemorySource) Size() (int, int) {
	if s.Image == nil {
		return 0, 0
	}
	b := s.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Decode 返回内存中的图片
func (s *MemorySource) Decode() (image.Image, error) {
	if s.Image == nil {
		return nil, errors.New("图片为空")
	}
	return s.Image, nil
}
