package renderer

import (
	"context"
	"image"

	"github.com/ByLCY/cardpress/layout"
)

// Format 是导出文件格式。
type Format string

const (
	FormatPDF Format = "pdf"
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// Valid reports whether f is a supported output format.
func (f Format) Valid() bool {
	return f == FormatPDF || f == FormatPNG || f == FormatSVG
}

// CardRasterizer 以固定 DPI 把一张卡片（模板 + 字段值）渲染为位图。
// 字体与图片通过 assets 显式传入，渲染不读取任何全局资源表。
type CardRasterizer interface {
	RenderCard(ctx context.Context, tpl *layout.Template, data layout.CardData, dpi layout.DPI, assets layout.Assets) (*image.RGBA, []layout.Warning, error)
}

// Renderer 将分页结果输出为最终文件（PDF）。
// Render 返回生成的二进制数据以及可能的错误。
type Renderer interface {
	Render(doc *layout.Document) ([]byte, error)
}

// ImageEncoder 输出单张卡片图像（png / svg），width/height 为物理尺寸（pt）。
type ImageEncoder interface {
	EncodeImage(img image.Image, width, height float64, format Format) ([]byte, error)
}

// VectorCardRenderer 保留模板矢量内容输出单卡 SVG。
type VectorCardRenderer interface {
	RenderSVG(tpl *layout.Template, data layout.CardData, assets layout.Assets) ([]byte, []layout.Warning, error)
}
