package layout

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ByLCY/cardpress/logging"
	"github.com/ByLCY/cardpress/svgdoc"
)

var (
	// ErrNoPlaceholders 表示 SVG 版式中没有任何可解析的占位组，无处放置卡片。
	ErrNoPlaceholders = errors.New("版式中没有可用的卡片占位组")
	// ErrZeroPageSize 表示页面尺寸为零或非有限值。
	ErrZeroPageSize = errors.New("页面尺寸无效")
	// ErrMissingViewBox 表示 SVG 版式缺少 viewBox。
	ErrMissingViewBox = svgdoc.ErrNoViewBox
)

// LayoutKind 区分 SVG 版式与网格版式。
type LayoutKind string

const (
	LayoutSVG  LayoutKind = "svg"
	LayoutGrid LayoutKind = "grid"
)

// PrintLayout 是只读的打印版式定义。
type PrintLayout struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Kind LayoutKind `json:"kind"`
	// SVG 版式
	Path         string   `json:"path,omitempty"`
	Placeholders []string `json:"placeholders,omitempty"`
	Markup       []byte   `json:"-"`
	// 网格版式
	Grid *GridLayout `json:"grid,omitempty"`
}

// DisplayName 返回用于文件命名的版式名。
func (l PrintLayout) DisplayName() string {
	switch {
	case l.Name != "":
		return l.Name
	case l.Grid != nil && l.Grid.Name != "":
		return l.Grid.Name
	default:
		return l.ID
	}
}

// ResolvedLayout 是版式解析结果：页面尺寸与槽位均以 pt 为单位，与待放置的卡片数量无关。
type ResolvedLayout struct {
	Name       string     `json:"name"`
	PageWidth  float64    `json:"pageWidth"`
	PageHeight float64    `json:"pageHeight"`
	Slots      []SlotRect `json:"slots"`
	// Background 是移除占位组后的 SVG 背景（仅 SVG 版式）。
	Background []byte    `json:"-"`
	Warnings   []Warning `json:"warnings,omitempty"`
}

// SlotsPerPage 每页槽位数。
func (r *ResolvedLayout) SlotsPerPage() int { return len(r.Slots) }

// SingleCard 返回无打印版式时使用的单卡版式：页面即卡片本身。
func SingleCard(width, height Length) *ResolvedLayout {
	w, h := width.ToPT(), height.ToPT()
	return &ResolvedLayout{
		Name:       "card",
		PageWidth:  w,
		PageHeight: h,
		Slots:      []SlotRect{{X: 0, Y: 0, Width: w, Height: h}},
	}
}

// Resolve 解析版式得到页面尺寸与有序槽位列表。
func Resolve(l PrintLayout) (*ResolvedLayout, error) {
	switch {
	case l.Kind == LayoutGrid || (l.Kind == "" && l.Grid != nil):
		return resolveGrid(l)
	case l.Kind == LayoutSVG || (l.Kind == "" && len(l.Markup) > 0):
		return resolveSVG(l)
	default:
		return nil, fmt.Errorf("版式 %s 类型未知: %q", l.ID, l.Kind)
	}
}

func resolveGrid(l PrintLayout) (*ResolvedLayout, error) {
	if l.Grid == nil {
		return nil, fmt.Errorf("%w: 版式 %s 缺少 grid 定义", ErrInvalidGrid, l.ID)
	}
	if err := l.Grid.Validate(); err != nil {
		return nil, err
	}
	w, h := l.Grid.PageSize()
	return &ResolvedLayout{
		Name:       l.DisplayName(),
		PageWidth:  w,
		PageHeight: h,
		Slots:      l.Grid.Slots(),
	}, nil
}

// resolveSVG 读取 viewBox（原生单位 mm）得到页面尺寸，再从每个占位组的最后一个 rect 取槽位。
// 单个占位组损坏只记录警告；一个都没有则整体失败。
func resolveSVG(l PrintLayout) (*ResolvedLayout, error) {
	if len(l.Markup) == 0 {
		return nil, fmt.Errorf("版式 %s 缺少 SVG 内容", l.ID)
	}
	doc, err := svgdoc.Parse(l.Markup)
	if err != nil {
		return nil, fmt.Errorf("版式 %s: %w", l.ID, err)
	}
	vb, err := doc.ViewBox()
	if err != nil {
		return nil, fmt.Errorf("版式 %s: %w", l.ID, err)
	}
	if vb.W <= 0 || vb.H <= 0 {
		return nil, fmt.Errorf("%w: 版式 %s viewBox %gx%g", ErrZeroPageSize, l.ID, vb.W, vb.H)
	}

	res := &ResolvedLayout{
		Name:       l.DisplayName(),
		PageWidth:  MMToPt(vb.W),
		PageHeight: MMToPt(vb.H),
	}
	groups := placeholderGroups(doc, l.Placeholders)
	if len(l.Placeholders) > 0 && len(groups) < len(l.Placeholders) {
		present := make(map[string]bool, len(groups))
		for _, g := range groups {
			present[g.ID] = true
		}
		for _, name := range l.Placeholders {
			if !present[name] {
				logging.Logger().Warn("占位组不存在", "layout", l.ID, "group", name)
				res.Warnings = append(res.Warnings, NewWarning(WarnPlaceholderSkipped, "版式 %s: 占位组 %s 不存在", l.ID, name))
			}
		}
	}
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
		box, err := g.LastRect()
		if err == nil && !finite(box.X, box.Y, box.W, box.H) {
			err = fmt.Errorf("占位组 %s 几何非有限值", g.ID)
		}
		if err != nil {
			logging.Logger().Warn("跳过无效占位组", "layout", l.ID, "group", g.ID, "err", err)
			res.Warnings = append(res.Warnings, NewWarning(WarnPlaceholderSkipped, "版式 %s: %v", l.ID, err))
			continue
		}
		res.Slots = append(res.Slots, SlotRect{
			X:      MMToPt(box.X - vb.X),
			Y:      MMToPt(box.Y - vb.Y),
			Width:  MMToPt(box.W),
			Height: MMToPt(box.H),
		})
	}
	if len(res.Slots) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPlaceholders, l.ID)
	}

	bg, err := doc.WithoutGroups(ids).Bytes()
	if err != nil {
		return nil, fmt.Errorf("版式 %s 序列化背景失败: %w", l.ID, err)
	}
	res.Background = bg
	return res, nil
}

// placeholderGroups 使用显式的占位组列表时按列表顺序取组，槽位顺序即列表顺序；
// 未指定时按文档顺序匹配 id 以 card 结尾的组（Topcard、Bottomcard…）。
func placeholderGroups(doc *svgdoc.Document, names []string) []svgdoc.Group {
	if len(names) > 0 {
		return doc.GroupsByID(names)
	}
	return doc.Groups(func(id string) bool {
		return strings.HasSuffix(strings.ToLower(id), "card")
	})
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
