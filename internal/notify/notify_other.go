//go:build !windows

package notify

import "log/slog"

// LogNotifier 没有系统通知中心时写入日志
type LogNotifier struct {
	logger *slog.Logger
}

// NewNotifier 创建通知器
func NewNotifier() Notifier {
	return &LogNotifier{logger: slog.Default()}
}

// Show 以 Info 级别记录通知
func (n *LogNotifier) Show(title, message string) error {
	n.logger.Info(message, "title", title)
	return nil
}
