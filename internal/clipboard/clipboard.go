package clipboard

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// Clipboard 剪贴板接口
type Clipboard interface {
	SetText(text string) error
	GetText() (string, error)
}

// SystemClipboard 系统剪贴板实现（Windows/macOS 原生，Linux 需要 xclip、xsel 或 wl-clipboard）
type SystemClipboard struct{}

// NewClipboard 创建剪贴板实例
func NewClipboard() Clipboard {
	return &SystemClipboard{}
}

// Available 当前环境是否可以访问剪贴板
func Available() bool {
	return !clipboard.Unsupported
}

// SetText 设置剪贴板文本
func (c *SystemClipboard) SetText(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("写入剪贴板失败: %w", err)
	}
	return nil
}

// GetText 获取剪贴板文本
func (c *SystemClipboard) GetText() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("读取剪贴板失败: %w", err)
	}
	return text, nil
}

// Memory 内存剪贴板，用于不支持系统剪贴板的环境和测试
type Memory struct {
	text string
}

// SetText 设置文本
func (m *Memory) SetText(text string) error {
	m.text = text
	return nil
}

// GetText 获取文本
func (m *Memory) GetText() (string, error) {
	return m.text, nil
}
