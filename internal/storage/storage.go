package storage

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fogleman/gg"
)

// Storage 导出图片的存储管理
type Storage struct {
	directory string
	format    string
	quality   int
	now       func() time.Time
}

// NewStorage 创建存储管理器
func NewStorage(directory, format string, quality int) *Storage {
	return &Storage{
		directory: expandHome(directory),
		format:    normalizeFormat(format),
		quality:   quality,
		now:       time.Now,
	}
}

// expandHome 展开 ~
func expandHome(dir string) string {
	if len(dir) > 0 && dir[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		dir = filepath.Join(homeDir, dir[1:])
	}
	return dir
}

func normalizeFormat(format string) string {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "jpg"
	default:
		return "png"
	}
}

// SetDirectory 设置保存目录
func (s *Storage) SetDirectory(dir string) error {
	s.directory = expandHome(dir)
	return os.MkdirAll(s.directory, 0755)
}

// GetDirectory 获取保存目录
func (s *Storage) GetDirectory() string {
	return s.directory
}

// Format 输出格式（png 或 jpg）
func (s *Storage) Format() string {
	return s.format
}

// Save 以时间戳文件名保存图片，返回文件路径
func (s *Storage) Save(img image.Image) (string, error) {
	// 确保目录存在
	if err := os.MkdirAll(s.directory, 0755); err != nil {
		return "", fmt.Errorf("无法创建目录: %w", err)
	}

	// 生成文件名
	timestamp := s.now().Format("20060102_150405")
	filename := fmt.Sprintf("annotated_%s.%s", timestamp, s.format)
	path := filepath.Join(s.directory, filename)

	if err := s.SaveAs(path, img); err != nil {
		return "", err
	}
	return path, nil
}

// SaveAs 保存到指定路径，格式由扩展名决定（.jpg/.jpeg 为 JPEG，其余为 PNG）
func (s *Storage) SaveAs(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("无法创建目录: %w", err)
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("无法创建文件: %w", err)
		}
		defer file.Close()
		if err := jpeg.Encode(file, img, &jpeg.Options{Quality: s.quality}); err != nil {
			return fmt.Errorf("无法保存图片: %w", err)
		}
		return file.Close()
	default:
		if err := gg.SavePNG(path, img); err != nil {
			return fmt.Errorf("无法保存图片: %w", err)
		}
		return nil
	}
}

// Encode 按配置的格式编码到 w（例如交给调用方的 PNG 字节流）
func (s *Storage) Encode(w io.Writer, img image.Image) error {
	var err error
	switch s.format {
	case "jpg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: s.quality})
	default:
		err = png.Encode(w, img)
	}
	if err != nil {
		return fmt.Errorf("无法编码图片: %w", err)
	}
	return nil
}

// Cleanup 清理早于 olderThan 的导出文件，只处理本程序生成的文件
func (s *Storage) Cleanup(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-olderThan)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "annotated_") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if os.Remove(filepath.Join(s.directory, entry.Name())) == nil {
				removed++
			}
		}
	}

	return removed, nil
}
