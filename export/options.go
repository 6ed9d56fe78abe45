package export

import (
	"strings"

	"github.com/ByLCY/cardpress/layout"
	"github.com/ByLCY/cardpress/renderer"
)

// Mode 决定没有显式槽位分配时的默认分配方式。
type Mode string

const (
	// ModeQuick 使用调用方直接提供的字段值。
	ModeQuick Mode = "quick"
	// ModeDatabase 为每条选中的记录生成一张正面卡片。
	ModeDatabase Mode = "database"
)

// Options 是单次导出的参数。
type Options struct {
	Format          renderer.Format         `json:"format"`
	DPI             layout.DPI              `json:"resolution"`
	MaintainVectors bool                    `json:"maintainVectors"`
	PrintLayoutID   string                  `json:"printLayoutId,omitempty"`
	Mode            Mode                    `json:"mode"`
	SelectedIDs     []string                `json:"selectedIds,omitempty"`
	SlotAssignments []layout.SlotAssignment `json:"slotAssignments,omitempty"`
	ColorProfileID  string                  `json:"colorProfileId,omitempty"`
}

func (o Options) normalized() Options {
	o.Format = renderer.Format(strings.ToLower(strings.TrimSpace(string(o.Format))))
	if o.Format == "" {
		o.Format = renderer.FormatPDF
	}
	if o.Mode == "" {
		o.Mode = ModeQuick
	}
	return o
}

// validate 只检查请求本身，不依赖任何外部资源。
func (o Options) validate() error {
	if !o.Format.Valid() {
		return callerErr(ErrUnsupportedFormat, "%q", o.Format)
	}
	if !o.DPI.Valid() {
		return callerErr(ErrInvalidDPI, "%v", float64(o.DPI))
	}
	switch o.Mode {
	case ModeQuick, ModeDatabase:
	default:
		return callerErr(ErrInvalidMode, "%q", o.Mode)
	}
	if o.PrintLayoutID != "" && o.Format != renderer.FormatPDF {
		return callerErr(ErrUnsupportedFormat, "打印版式只能输出 pdf，当前为 %s", o.Format)
	}
	if o.Mode == ModeDatabase && len(o.SlotAssignments) == 0 && len(o.SelectedIDs) == 0 {
		return callerErr(ErrNoAssignments, "数据库模式未选择任何记录")
	}
	return nil
}

// assignments 返回最终的槽位分配。显式分配优先；
// quick 模式在有版式时用同一张自定义卡片填满一页，数据库模式每条记录一张正面。
func (o Options) assignments(slotsPerPage int, withLayout bool) []layout.SlotAssignment {
	if len(o.SlotAssignments) > 0 {
		return o.SlotAssignments
	}
	if o.Mode == ModeDatabase {
		out := make([]layout.SlotAssignment, 0, len(o.SelectedIDs))
		for _, id := range o.SelectedIDs {
			out = append(out, layout.SlotAssignment{Source: id, Side: layout.SideFront})
		}
		return out
	}
	n := 1
	if withLayout {
		n = max(slotsPerPage, 1)
	}
	out := make([]layout.SlotAssignment, n)
	for i := range out {
		out[i] = layout.SlotAssignment{Source: layout.SourceCustom, Side: layout.SideFront}
	}
	return out
}
