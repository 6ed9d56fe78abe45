package layout

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ByLCY/cardpress/dsl"
)

// ErrInvalidGrid 表示网格版式参数无效。
var ErrInvalidGrid = errors.New("网格版式无效")

// GridLayout 是 JSON（或 .cardlayout 文本）描述的网格版式，长度单位为 Unit（in 或 mm，默认 in）。
type GridLayout struct {
	Name         string  `json:"name"`
	Unit         string  `json:"unit,omitempty"`
	PageWidth    float64 `json:"pageWidth"`
	PageHeight   float64 `json:"pageHeight"`
	Orientation  string  `json:"orientation,omitempty"`
	CardsPerRow  int     `json:"cardsPerRow"`
	CardsPerPage int     `json:"cardsPerPage"`
	MarginTop    float64 `json:"marginTop"`
	MarginLeft   float64 `json:"marginLeft"`
	SpacingX     float64 `json:"spacingX"`
	SpacingY     float64 `json:"spacingY"`
	CardWidth    float64 `json:"cardWidth"`
	CardHeight   float64 `json:"cardHeight"`
}

func (g GridLayout) unit() Unit {
	if u := ParseUnit(g.Unit); u == UnitMM || u == UnitCM || u == UnitPT {
		return u
	}
	return UnitIN
}

func (g GridLayout) pt(v float64) float64 {
	return Length{Value: v, Unit: g.unit()}.ToPT()
}

// Validate 检查网格参数。
func (g GridLayout) Validate() error {
	switch {
	case g.PageWidth <= 0 || g.PageHeight <= 0:
		return fmt.Errorf("%w: %s 页面尺寸 %gx%g", ErrZeroPageSize, g.Name, g.PageWidth, g.PageHeight)
	case g.CardsPerRow < 1:
		return fmt.Errorf("%w: %s cardsPerRow=%d", ErrInvalidGrid, g.Name, g.CardsPerRow)
	case g.CardsPerPage < 1:
		return fmt.Errorf("%w: %s cardsPerPage=%d", ErrInvalidGrid, g.Name, g.CardsPerPage)
	case g.CardWidth <= 0 || g.CardHeight <= 0:
		return fmt.Errorf("%w: %s 卡片尺寸 %gx%g", ErrInvalidGrid, g.Name, g.CardWidth, g.CardHeight)
	}
	return nil
}

// PageSize 返回页面尺寸（pt）。landscape 且宽小于高时交换宽高。
func (g GridLayout) PageSize() (float64, float64) {
	w, h := g.pt(g.PageWidth), g.pt(g.PageHeight)
	if strings.EqualFold(g.Orientation, "landscape") && w < h {
		w, h = h, w
	}
	return w, h
}

// Slots 按行优先生成每页恰好 CardsPerPage 个槽位，每一页复用同一组矩形。
func (g GridLayout) Slots() []SlotRect {
	slots := make([]SlotRect, 0, g.CardsPerPage)
	cw, ch := g.pt(g.CardWidth), g.pt(g.CardHeight)
	for i := 0; i < g.CardsPerPage; i++ {
		col := i % g.CardsPerRow
		row := i / g.CardsPerRow
		slots = append(slots, SlotRect{
			X:      g.pt(g.MarginLeft + float64(col)*(g.CardWidth+g.SpacingX)),
			Y:      g.pt(g.MarginTop + float64(row)*(g.CardHeight+g.SpacingY)),
			Width:  cw,
			Height: ch,
		})
	}
	return slots
}

// ParseGridLayouts 解析 .cardlayout 文本中的全部网格版式。
func ParseGridLayouts(r io.Reader) ([]GridLayout, error) {
	doc, err := dsl.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("解析版式文件失败: %w", err)
	}
	out := make([]GridLayout, 0, len(doc.Layouts))
	for _, section := range doc.Layouts {
		g, err := gridFromSection(section)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func gridFromSection(section *dsl.LayoutSection) (GridLayout, error) {
	g := GridLayout{Name: section.Name(), Unit: "in"}
	if section.Block == nil {
		return g, fmt.Errorf("版式 %s 缺少内容", g.Name)
	}
	// 先确定默认单位，带后缀的数值再按自身单位换算
	for _, st := range section.Block.Statements {
		if st.Key == "unit" {
			if vals := values(st); len(vals) > 0 {
				g.Unit = vals[0]
			}
		}
	}
	unit := g.unit()
	for _, st := range section.Block.Statements {
		vals := values(st)
		nums := func(n int) ([]float64, error) {
			if len(vals) < n {
				return nil, fmt.Errorf("版式 %s 的 %s 需要 %d 个数值 (%s)", g.Name, st.Key, n, st.Pos)
			}
			out := make([]float64, n)
			for i := 0; i < n; i++ {
				l := ParseRawLengthStr(vals[i])
				if l.Unit == UnitNone {
					if _, err := strconv.ParseFloat(vals[i], 64); err != nil {
						return nil, fmt.Errorf("版式 %s 的 %s 数值 %q 无法解析 (%s)", g.Name, st.Key, vals[i], st.Pos)
					}
					l.Unit = unit
				}
				out[i] = Length{Value: l.Value, Unit: l.Unit}.To(unit)
			}
			return out, nil
		}
		ints := func() (int, error) {
			if len(vals) < 1 {
				return 0, fmt.Errorf("版式 %s 的 %s 缺少数值 (%s)", g.Name, st.Key, st.Pos)
			}
			n, err := strconv.Atoi(vals[0])
			if err != nil {
				return 0, fmt.Errorf("版式 %s 的 %s 需要整数 (%s)", g.Name, st.Key, st.Pos)
			}
			return n, nil
		}

		var err error
		var pair []float64
		switch st.Key {
		case "unit":
		case "orientation":
			if len(vals) > 0 {
				g.Orientation = vals[0]
			}
		case "columns":
			g.CardsPerRow, err = ints()
		case "cards":
			g.CardsPerPage, err = ints()
		case "page":
			if pair, err = nums(2); err == nil {
				g.PageWidth, g.PageHeight = pair[0], pair[1]
			}
		case "margin":
			if pair, err = nums(2); err == nil {
				g.MarginTop, g.MarginLeft = pair[0], pair[1]
			}
		case "spacing":
			if pair, err = nums(2); err == nil {
				g.SpacingX, g.SpacingY = pair[0], pair[1]
			}
		case "card":
			if pair, err = nums(2); err == nil {
				g.CardWidth, g.CardHeight = pair[0], pair[1]
			}
		default:
			// 未识别的键忽略
		}
		if err != nil {
			return g, err
		}
	}
	return g, g.Validate()
}

// values 丢弃 ',' 与 'x' 分隔符，只保留数值/标识符。
func values(st *dsl.Assignment) []string {
	out := make([]string, 0, len(st.Values))
	for _, v := range st.Values {
		if v.Value == "," || v.Value == "x" {
			continue
		}
		out = append(out, v.Value)
	}
	return out
}
