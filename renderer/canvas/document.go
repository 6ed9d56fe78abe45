package canvasrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/svg"

	"github.com/ByLCY/cardpress/layout"
	"github.com/ByLCY/cardpress/renderer"
)

// Render 把分页结果写成 PDF：每个 Sheet 一页，卡片等比缩放并居中到槽位内。
// Sheet 尺寸与槽位为 pt（左上角原点），canvas 页面单位为 mm（左下角原点）。
func (r *Renderer) Render(doc *layout.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if len(doc.Sheets) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}
	for i, sheet := range doc.Sheets {
		if sheet.Width <= 0 || sheet.Height <= 0 {
			return nil, fmt.Errorf("%w: 第 %d 页 %gx%g", layout.ErrZeroPageSize, i+1, sheet.Width, sheet.Height)
		}
	}

	var buf bytes.Buffer
	first := doc.Sheets[0]
	writer := pdf.New(&buf, layout.PtToMM(first.Width), layout.PtToMM(first.Height), nil)
	applyMeta(writer, doc.Meta)
	for i, sheet := range doc.Sheets {
		wmm, hmm := layout.PtToMM(sheet.Width), layout.PtToMM(sheet.Height)
		if i > 0 {
			writer.NewPage(wmm, hmm)
		}
		c := canvas.New(wmm, hmm)
		ctx := canvas.NewContext(c)
		if sheet.Background != nil {
			drawImageRect(ctx, sheet.Background, layout.SlotRect{Width: sheet.Width, Height: sheet.Height}, sheet.Height)
		}
		for _, card := range sheet.Cards {
			if card.Image == nil {
				continue
			}
			b := card.Image.Bounds()
			fit := layout.FitRect(card.Rect, float64(b.Dx()), float64(b.Dy()))
			drawImageRect(ctx, card.Image, fit, sheet.Height)
		}
		c.RenderTo(writer)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// drawImageRect 把图片铺满 rect（pt，左上角原点）。PDF 原点在左下角，y 需翻转。
func drawImageRect(ctx *canvas.Context, img image.Image, rect layout.SlotRect, pageHeight float64) {
	if rect.Width <= 0 || rect.Height <= 0 {
		return
	}
	dpmm := float64(img.Bounds().Dx()) / layout.PtToMM(rect.Width)
	ctx.DrawImage(layout.PtToMM(rect.X), layout.PtToMM(layout.FlipY(pageHeight, rect)), img, canvas.DPMM(dpmm))
}

func applyMeta(writer *pdf.PDF, meta layout.DocumentMeta) {
	if writer == nil {
		return
	}
	keywords := strings.Join(meta.Keywords, ", ")
	writer.SetInfo(meta.Title, meta.Subject, keywords, meta.Author, meta.Creator)
}

// EncodeImage 输出单张卡片：png 为原始光栅，svg 为内嵌光栅的 SVG（物理尺寸 width×height pt）。
func (r *Renderer) EncodeImage(img image.Image, width, height float64, format renderer.Format) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("缺少可输出的图像")
	}
	var buf bytes.Buffer
	switch format {
	case renderer.FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("编码 PNG 失败: %w", err)
		}
	case renderer.FormatSVG:
		wmm, hmm := layout.PtToMM(width), layout.PtToMM(height)
		c := canvas.New(wmm, hmm)
		ctx := canvas.NewContext(c)
		drawImageRect(ctx, img, layout.SlotRect{Width: width, Height: height}, height)
		writer := svg.New(&buf, wmm, hmm, nil)
		c.RenderTo(writer)
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("写入 SVG 失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的图像格式 %q", format)
	}
	return buf.Bytes(), nil
}
