package export

import (
	"errors"
	"fmt"

	"github.com/ByLCY/cardpress/layout"
)

// 调用方错误：在开始任何工作之前拒绝。
var (
	ErrInvalidDPI        = errors.New("DPI 必须大于 0")
	ErrNoAssignments     = errors.New("批量导出没有任何槽位分配")
	ErrValueMismatch     = errors.New("字段值类型与字段定义不一致")
	ErrUnsupportedFormat = errors.New("不支持的导出格式")
	ErrNoTemplate        = errors.New("缺少正面模板")
	ErrInvalidMode       = errors.New("未知的导出模式")
)

// 致命错误：导出开始后中止。
var (
	ErrNoTemplates     = layout.ErrNoTemplates
	ErrLayoutNotFound  = errors.New("找不到打印版式")
	ErrNothingRendered = errors.New("没有任何卡片渲染成功")
)

// CallerError 表示请求本身无效，导出没有开始。
type CallerError struct {
	Err error
}

func (e *CallerError) Error() string { return "导出请求无效: " + e.Err.Error() }

func (e *CallerError) Unwrap() error { return e.Err }

// FatalError 表示导出在 State 阶段中止，不会返回任何部分输出。
type FatalError struct {
	State State
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("导出在 %s 阶段失败: %v", e.State, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func callerErr(err error, format string, args ...any) error {
	if format != "" {
		err = fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
	}
	return &CallerError{Err: err}
}
