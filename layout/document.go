package layout

import "image"

// Placement 是放在某个槽位上的一张已渲染卡片。
type Placement struct {
	Rect  SlotRect    `json:"rect"`
	Card  int         `json:"card"`
	Image image.Image `json:"-"`
}

// Sheet 是输出文档中的一页，尺寸单位 pt。
type Sheet struct {
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	Background image.Image `json:"-"`
	Cards      []Placement `json:"cards"`
}

// Document 是组装前的分页结果。
type Document struct {
	Sheets []Sheet      `json:"sheets"`
	Meta   DocumentMeta `json:"meta"`
}

// FitRect 把 srcW×srcH 等比缩放到 slot 内并居中，永不拉伸。
func FitRect(slot SlotRect, srcW, srcH float64) SlotRect {
	if srcW <= 0 || srcH <= 0 || slot.Width <= 0 || slot.Height <= 0 {
		return SlotRect{X: slot.X, Y: slot.Y}
	}
	scale := min(slot.Width/srcW, slot.Height/srcH)
	w, h := srcW*scale, srcH*scale
	return SlotRect{
		X:      slot.X + (slot.Width-w)/2,
		Y:      slot.Y + (slot.Height-h)/2,
		Width:  w,
		Height: h,
	}
}

// FlipY 把左上角原点的 y 转为 PDF 左下角原点：pageHeight - y - h。
func FlipY(pageHeight float64, r SlotRect) float64 {
	return pageHeight - r.Y - r.Height
}
