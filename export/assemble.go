package export

import (
	"image"

	"github.com/ByLCY/cardpress/layout"
	"github.com/ByLCY/cardpress/renderer/svgraster"
)

// assemble 按计划顺序把渲染结果放进页面。页序与槽位序只取决于计划，与渲染完成顺序无关。
// perCardPage 为 true（无打印版式）时每页按其卡片模板的尺寸设置。
func assemble(plan *layout.Plan, renders []image.Image, resolved *layout.ResolvedLayout, background image.Image, perCardPage bool) *layout.Document {
	doc := &layout.Document{Sheets: make([]layout.Sheet, 0, plan.Pages)}
	for page := 0; page < plan.Pages; page++ {
		sheet := layout.Sheet{
			Width:      resolved.PageWidth,
			Height:     resolved.PageHeight,
			Background: background,
		}
		for _, e := range plan.PageEntries(page) {
			if e.Empty() || renders[e.Card] == nil {
				continue
			}
			rect := e.Rect
			if perCardPage {
				w, h := plan.Cards[e.Card].Template.Size()
				sheet.Width, sheet.Height = w.ToPT(), h.ToPT()
				rect = layout.SlotRect{Width: sheet.Width, Height: sheet.Height}
			}
			sheet.Cards = append(sheet.Cards, layout.Placement{Rect: rect, Card: e.Card, Image: renders[e.Card]})
		}
		doc.Sheets = append(doc.Sheets, sheet)
	}
	return doc
}

// layoutBackground 以导出 DPI 光栅化版式中除占位组以外的图形。
func layoutBackground(resolved *layout.ResolvedLayout, dpi layout.DPI) (image.Image, error) {
	if len(resolved.Background) == 0 {
		return nil, nil
	}
	w, h := layout.PixelSize(layout.PT(resolved.PageWidth), layout.PT(resolved.PageHeight), dpi)
	return svgraster.RasterizeAt(resolved.Background, w, h)
}
