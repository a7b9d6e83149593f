package annotate

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler 丢弃所有日志记录
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger 设置本包使用的日志记录器，默认不输出任何日志。传 nil 恢复静默
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger 返回当前日志记录器
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
