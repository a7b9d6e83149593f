package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"scanmark/internal/annotate"
	"scanmark/internal/clipboard"
	"scanmark/internal/config"
	"scanmark/internal/imageio"
	"scanmark/internal/notify"
	"scanmark/internal/storage"
	"scanmark/internal/tui"
)

const appVersion = "v1.0.0"

var (
	cfg      *config.Config
	clip     clipboard.Clipboard
	notifier notify.Notifier
	store    *storage.Storage

	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
)

func main() {
	// 命令行参数
	imagePath := flag.String("image", "", "底图路径（png/jpeg/gif/bmp/tiff/webp），- 表示从标准输入读取")
	annotationsPath := flag.String("annotations", "", "标注 JSON 文件，读取并在编辑后写回")
	outPath := flag.String("out", "", "导出路径，默认按时间戳保存到存储目录，- 表示写到标准输出")
	dir := flag.String("dir", "", "存储目录，覆盖配置文件")
	fieldsPath := flag.String("fields", "", "可关联字段 JSON 文件：{\"字段ID\": \"标签\"}")
	edit := flag.Bool("edit", false, "打开终端编辑器")
	configPath := flag.String("config", "", "配置文件路径，默认 "+config.GetConfigPath())
	openDir := flag.Bool("open", false, "打开导出目录")
	debug := flag.Bool("debug", false, "输出调试日志")
	version := flag.Bool("version", false, "显示版本信息")
	flag.Parse()

	if *version {
		fmt.Println("ScanMark", appVersion)
		fmt.Println("扫描件标注工具")
		return
	}

	logFile := setupLogging(*debug, *edit)
	if logFile != nil {
		defer logFile.Close()
	}

	// 加载配置
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "加载配置失败:", err)
	}

	// 初始化模块
	clip = clipboard.NewClipboard()
	notifier = notify.NewNotifier()
	store = storage.NewStorage(cfg.Storage.Directory, cfg.Storage.Format, cfg.Storage.Quality)
	if *dir != "" {
		if err := store.SetDirectory(*dir); err != nil {
			fmt.Fprintln(os.Stderr, "设置存储目录失败:", err)
		}
	}

	if *openDir {
		openExportDir()
		return
	}

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "缺少 -image 参数")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*imagePath, *annotationsPath, *outPath, *fieldsPath, *edit); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging 编辑模式下终端被界面占用，日志写入文件
func setupLogging(debug, edit bool) *os.File {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	var file *os.File
	if edit {
		w = io.Discard
		if debug {
			path := filepath.Join(os.TempDir(), "scanmark_debug.log")
			if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644); err == nil {
				file, w = f, f
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	annotate.SetLogger(logger)
	return file
}

func run(imagePath, annotationsPath, outPath, fieldsPath string, edit bool) error {
	if edit && outPath == "-" {
		return errors.New("编辑模式下不能导出到标准输出")
	}

	src, err := openSource(imagePath)
	if err != nil {
		return err
	}
	w, h := src.Size()
	slog.Debug("base image opened", "path", imagePath, "width", w, "height", h)

	opts := cfg.EditorOptions()
	if edit {
		opts = append(opts, annotate.WithHandleRadius(tui.HandleRadius))
	}
	editor := annotate.NewEditor(opts...)
	editor.LoadImage(src)
	editor.SetTool(cfg.Tool())

	if annotationsPath != "" {
		set, err := readAnnotations(annotationsPath)
		if err != nil {
			return err
		}
		editor.Restore(set)
	}

	save := func(img *image.RGBA) (string, error) {
		return saveExport(img, outPath)
	}

	if !edit {
		r, err := annotate.NewRenderer()
		if err != nil {
			return err
		}
		img, err := r.Export(editor.Image(), editor.Annotations())
		if err != nil {
			notifyResult("导出失败", err.Error())
			return err
		}
		if img == nil {
			fmt.Fprintln(os.Stderr, "没有可导出的内容")
			return nil
		}
		if outPath == "-" {
			return store.Encode(stdout, img)
		}
		path, err := save(img)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, path)
		return nil
	}

	fields, err := readFields(fieldsPath)
	if err != nil {
		return err
	}
	m, err := tui.New(editor, tui.Options{Save: save, Fields: fields})
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("编辑器异常退出: %w", err)
	}

	if annotationsPath != "" {
		fm, ok := final.(tui.Model)
		if !ok {
			return errors.New("编辑器状态无效")
		}
		if err := writeAnnotations(annotationsPath, fm.Editor().Annotations()); err != nil {
			return err
		}
		fmt.Println("标注已保存:", annotationsPath)
	}
	return nil
}

// openSource 打开底图，- 从标准输入读取整张图片
func openSource(path string) (imageio.Source, error) {
	if path != "-" {
		src, err := imageio.Open(path)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("读取标准输入失败: %w", err)
	}
	src, err := imageio.FromBytes(data)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// saveExport 保存导出结果，然后复制路径、显示通知、清理旧文件
func saveExport(img *image.RGBA, outPath string) (string, error) {
	path := outPath
	if path != "" {
		if err := store.SaveAs(path, img); err != nil {
			notifyResult("保存失败", err.Error())
			return "", err
		}
	} else {
		var err error
		if path, err = store.Save(img); err != nil {
			notifyResult("保存失败", err.Error())
			return "", err
		}
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	// 复制路径到剪贴板
	if cfg.Behavior.CopyPath {
		if !clipboard.Available() {
			slog.Warn("clipboard unavailable")
		} else if err := clip.SetText(path); err != nil {
			slog.Warn("copy path failed", "err", err)
		}
	}

	notifyResult("导出完成", path)

	if days := cfg.Storage.RetentionDays; days > 0 && outPath == "" {
		n, err := store.Cleanup(time.Duration(days) * 24 * time.Hour)
		if err != nil {
			slog.Warn("cleanup failed", "err", err)
		} else if n > 0 {
			slog.Info("old exports removed", "count", n)
		}
	}
	return path, nil
}

func notifyResult(title, message string) {
	if !cfg.Behavior.ShowNotification {
		return
	}
	if err := notifier.Show(title, message); err != nil {
		slog.Warn("notification failed", "err", err)
	}
}

func readAnnotations(path string) (annotate.Set, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		// 第一次编辑，文件还不存在
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取标注失败: %w", err)
	}
	set, err := annotate.UnmarshalSet(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

func writeAnnotations(path string, set annotate.Set) error {
	data, err := annotate.MarshalSet(set)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("保存标注失败: %w", err)
	}
	return nil
}

func readFields(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取字段失败: %w", err)
	}
	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("解析字段失败: %w", err)
	}
	return fields, nil
}

func openExportDir() {
	dir := store.GetDirectory()
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Println("创建目录失败:", err)
		return
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("explorer.exe", dir)
	case "darwin":
		cmd = exec.Command("open", dir)
	default:
		cmd = exec.Command("xdg-open", dir)
	}

	if err := cmd.Start(); err != nil {
		fmt.Println("打开目录失败:", err)
	}
}
