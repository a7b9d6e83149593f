package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"scanmark/internal/annotate"
)

// Editor 编辑器默认值
type Editor struct {
	Tool         string  `json:"tool"`         // select, pen, rect, arrow, text, erase
	Color        string  `json:"color"`        // #rrggbb
	StrokeSize   int     `json:"strokeSize"`   // 线宽（像素）
	Tolerance    float64 `json:"tolerance"`    // 命中容差（归一化）
	HandleRadius float64 `json:"handleRadius"` // 手柄命中半径（屏幕像素）
	MaxHistory   int     `json:"maxHistory"`   // 撤销栈深度
}

// Storage 存储配置
type Storage struct {
	Directory     string `json:"directory"`     // 保存目录
	Format        string `json:"format"`        // 图片格式: png, jpg
	Quality       int    `json:"quality"`       // jpg质量 1-100
	RetentionDays int    `json:"retentionDays"` // 导出文件保留天数，0 表示不清理
}

// Behavior 行为配置
type Behavior struct {
	ShowNotification bool `json:"showNotification"` // 导出后显示通知
	CopyPath         bool `json:"copyPath"`         // 导出后复制文件路径到剪贴板
}

// Config 主配置结构
type Config struct {
	Editor   Editor   `json:"editor"`
	Storage  Storage  `json:"storage"`
	Behavior Behavior `json:"behavior"`

	path string
}

// toolNames 配置中的工具名
var toolNames = map[string]annotate.ToolType{
	"select": annotate.ToolSelect,
	"pen":    annotate.ToolPen,
	"rect":   annotate.ToolRect,
	"arrow":  annotate.ToolArrow,
	"text":   annotate.ToolText,
	"erase":  annotate.ToolErase,
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Editor: Editor{
			Tool:         "select",
			Color:        annotate.FormatColor(annotate.DefaultColors[0]),
			StrokeSize:   annotate.DefaultStrokeSize,
			Tolerance:    annotate.HitTolerance,
			HandleRadius: annotate.HandleHitRadius,
			MaxHistory:   50,
		},
		Storage: Storage{
			Directory: filepath.Join(homeDir, "Pictures", "scanmark"),
			Format:    "png",
			Quality:   90,
		},
		Behavior: Behavior{
			ShowNotification: true,
			CopyPath:         false,
		},
	}
}

// GetConfigPath 获取配置文件路径
func GetConfigPath() string {
	var configDir string

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			homeDir, _ := os.UserHomeDir()
			configDir = filepath.Join(homeDir, "AppData", "Roaming")
		}
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "scanmark", "config.json")
}

// Load 加载默认位置的配置
func Load() (*Config, error) {
	return LoadFile(GetConfigPath())
}

// LoadFile 加载指定路径的配置。文件不存在时写入并返回默认配置
func LoadFile(configPath string) (*Config, error) {
	// 如果配置文件不存在，返回默认配置
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.path = configPath
		// 保存默认配置
		if err := cfg.Save(); err != nil {
			slog.Warn("save default config failed", "path", configPath, "err", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("读取配置失败: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.path = configPath

	// 验证并修正配置
	cfg.Validate()

	return cfg, nil
}

// Validate 验证并修正配置值
func (c *Config) Validate() {
	defaults := DefaultConfig()

	// 验证工具
	tool := strings.ToLower(c.Editor.Tool)
	if _, ok := toolNames[tool]; !ok {
		c.Editor.Tool = defaults.Editor.Tool
	} else {
		c.Editor.Tool = tool
	}

	// 验证颜色
	if _, err := annotate.ParseColor(c.Editor.Color); err != nil || c.Editor.Color == "" {
		c.Editor.Color = defaults.Editor.Color
	}

	// 验证线宽 (1-32)
	if c.Editor.StrokeSize < 1 || c.Editor.StrokeSize > 32 {
		c.Editor.StrokeSize = defaults.Editor.StrokeSize
	}

	// 验证容差 (0-0.2]
	if c.Editor.Tolerance <= 0 || c.Editor.Tolerance > 0.2 {
		c.Editor.Tolerance = defaults.Editor.Tolerance
	}
	if c.Editor.HandleRadius <= 0 || c.Editor.HandleRadius > 64 {
		c.Editor.HandleRadius = defaults.Editor.HandleRadius
	}
	if c.Editor.MaxHistory < 1 {
		c.Editor.MaxHistory = defaults.Editor.MaxHistory
	}

	// 验证图片质量 (1-100)
	if c.Storage.Quality < 1 || c.Storage.Quality > 100 {
		c.Storage.Quality = defaults.Storage.Quality
	}

	// 验证图片格式
	format := strings.ToLower(c.Storage.Format)
	if format != "png" && format != "jpg" && format != "jpeg" {
		c.Storage.Format = defaults.Storage.Format
	} else {
		c.Storage.Format = format
	}

	// 防止路径遍历攻击
	if strings.Contains(c.Storage.Directory, "..") || c.Storage.Directory == "" {
		c.Storage.Directory = defaults.Storage.Directory
	}

	if c.Storage.RetentionDays < 0 {
		c.Storage.RetentionDays = 0
	}
}

// Save 保存配置到加载时的路径（默认位置）
func (c *Config) Save() error {
	configPath := c.path
	if configPath == "" {
		configPath = GetConfigPath()
	}

	// 确保目录存在
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// Path 配置文件路径
func (c *Config) Path() string {
	if c.path == "" {
		return GetConfigPath()
	}
	return c.path
}

// EditorOptions 把编辑器配置转换为 annotate 选项
func (c *Config) EditorOptions() []annotate.Option {
	opts := []annotate.Option{
		annotate.WithStrokeSize(c.Editor.StrokeSize),
		annotate.WithTolerance(c.Editor.Tolerance),
		annotate.WithHandleRadius(c.Editor.HandleRadius),
		annotate.WithMaxHistory(c.Editor.MaxHistory),
	}
	if col, err := annotate.ParseColor(c.Editor.Color); err == nil {
		opts = append(opts, annotate.WithColor(col))
	}
	return opts
}

// Tool 配置的初始工具
func (c *Config) Tool() annotate.ToolType {
	if t, ok := toolNames[strings.ToLower(c.Editor.Tool)]; ok {
		return t
	}
	return annotate.ToolSelect
}
