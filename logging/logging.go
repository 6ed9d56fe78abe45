// Package logging 保存整个进程共享的 *slog.Logger。
// 默认不输出任何日志；CLI 或嵌入方通过 SetLogger 打开。
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards all records; Enabled returns false so callers skip formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger 替换全局 logger，nil 恢复为静默。可并发调用。
//
// 使用的级别：
//   - Debug: 导出生命周期状态切换、渲染耗时
//   - Warn: 降级处理（资源缺失、字体回退、占位组跳过）
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger 返回当前 logger。
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// ParseLevel 把配置中的级别名转换为 slog.Level，未知值按 info 处理。
func ParseLevel(name string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
