package canvasrenderer

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"os"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/cardpress/layout"
	"github.com/ByLCY/cardpress/logging"
	"github.com/ByLCY/cardpress/renderer"
	"github.com/ByLCY/cardpress/renderer/svgraster"
)

// ReferencePreviewWidth 是编辑器预览画布宽度（px）；导出时字号按 画布宽度/ReferencePreviewWidth 缩放，
// 使任意 DPI 下的比例与预览一致。
const ReferencePreviewWidth = 420.0

// Renderer rasterizes cards and assembles documents via github.com/tdewolff/canvas.
type Renderer struct {
	// 注册字体（按字体族名），单次渲染传入的 Assets.Fonts 优先
	fontBlobs map[string][]byte

	fontMu       sync.Mutex
	fontFamilies map[string]*fontFamilyEntry

	imageMu sync.Mutex
	images  map[[32]byte]image.Image
}

var (
	_ renderer.CardRasterizer = (*Renderer)(nil)
	_ renderer.Renderer       = (*Renderer)(nil)
	_ renderer.ImageEncoder   = (*Renderer)(nil)
	_ layout.Typesetter       = (*Renderer)(nil)
)

// Options configures the canvas renderer.
type Options struct {
	Fonts map[string]Resource // 字体族名 → 字体文件
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer creates a renderer that only knows the built-in fallback fonts.
func NewRenderer() *Renderer { return NewRendererWithOptions(Options{}) }

// NewRendererWithOptions creates a renderer with registered fonts.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		fontBlobs:    map[string][]byte{},
		fontFamilies: map[string]*fontFamilyEntry{},
		images:       map[[32]byte]image.Image{},
	}
	for name, res := range opts.Fonts {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			r.fontBlobs[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			data, err := os.ReadFile(res.Path)
			if err != nil {
				// 读取失败按字体缺失处理，渲染时回退并记录警告
				logging.Logger().Warn("读取字体失败", "family", name, "path", res.Path, "err", err)
				continue
			}
			r.fontBlobs[name] = data
		}
	}
	return r
}

// RenderCard 以 dpi 光栅化一张卡片：白底，模板背景按画布尺寸绘制，再按声明顺序叠加字段。
// 单个资源失败（图片、背景、字体、条码）只产生警告，不中断渲染。
func (r *Renderer) RenderCard(ctx context.Context, tpl *layout.Template, data layout.CardData, dpi layout.DPI, assets layout.Assets) (*image.RGBA, []layout.Warning, error) {
	if tpl == nil {
		return nil, nil, fmt.Errorf("模板为空")
	}
	if !dpi.Valid() {
		return nil, nil, fmt.Errorf("DPI 无效: %v", float64(dpi))
	}
	width, height := tpl.Size()
	w, h := layout.PixelSize(width, height, dpi)
	surface := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(surface, surface.Bounds(), image.White, image.Point{}, draw.Src)

	var warnings []layout.Warning
	warn := func(code, field, format string, args ...any) {
		wn := layout.NewWarning(code, format, args...)
		wn.Field = field
		logging.Logger().Warn(wn.Message, "template", tpl.ID, "code", code, "field", field)
		warnings = append(warnings, wn)
	}

	if err := drawBackground(surface, tpl.BackgroundMarkup()); err != nil {
		warn(layout.WarnBackground, "", "模板 %s 背景渲染失败: %v", tpl.ID, err)
	}

	fontScale := float64(w) / ReferencePreviewWidth
	text := &textLayer{w: w, h: h}
	for _, f := range tpl.Fields {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if f.Native() {
			continue
		}
		switch f.Type {
		case layout.FieldImage:
			v, ok := data.Image(f)
			if !ok {
				continue
			}
			raw, ok := assets.Images[v.Src]
			if !ok || len(raw) == 0 {
				warn(layout.WarnImageMissing, f.ID, "图片 %s 不可用，字段 %s 已省略", v.Src, f.ID)
				continue
			}
			src, err := r.decodeImage(raw)
			if err != nil {
				warn(layout.WarnImageDecode, f.ID, "图片 %s: %v", v.Src, err)
				continue
			}
			text.flush(surface)
			drawImageField(surface, imageClip(f, src, w, h), src, v)

		case layout.FieldBarcode:
			value := labelled(data.Text(f), f)
			box := barcodeBox(f, w, h)
			img, err := BarcodeImage(value, f.Style.BarcodeFormat, box.rect().Dx(), box.rect().Dy())
			if err != nil {
				warn(layout.WarnBarcode, f.ID, "字段 %s 条码生成失败，改为绘制文本: %v", f.ID, err)
				if msg := r.drawText(text.context(), value, box, f.Style, fontScale, assets.Fonts); msg != "" {
					warn(layout.WarnFontMissing, f.ID, "%s", msg)
				}
				continue
			}
			text.flush(surface)
			rect := box.rect()
			draw.Draw(surface, rect, img, img.Bounds().Min, draw.Over)

		default:
			value := labelled(data.Text(f), f)
			if msg := r.drawText(text.context(), value, fieldBox(f, w, h), f.Style, fontScale, assets.Fonts); msg != "" {
				warn(layout.WarnFontMissing, f.ID, "%s", msg)
			}
		}
	}
	text.flush(surface)
	return surface, warnings, nil
}

// labelled 空值以字段标签代替，与编辑器预览一致。
func labelled(value string, f layout.FieldDefinition) string {
	if value == "" {
		return f.Label
	}
	return value
}

// drawBackground 把模板 SVG 按画布像素尺寸光栅化后叠加到画布上。
func drawBackground(dst *image.RGBA, markup []byte) error {
	if len(markup) == 0 {
		return nil
	}
	bg, err := svgraster.RasterizeAt(markup, dst.Bounds().Dx(), dst.Bounds().Dy())
	if err != nil {
		return err
	}
	draw.Draw(dst, dst.Bounds(), bg, image.Point{}, draw.Over)
	return nil
}

// textLayer 累积相邻文本字段，在遇到图片/条码或结束时一次性光栅化，保持字段的声明顺序。
// 画布单位为像素（1 单位 = 1 px）。
type textLayer struct {
	w, h int
	c    *canvas.Canvas
	ctx  *canvas.Context
}

func (l *textLayer) context() *canvas.Context {
	if l.c == nil {
		l.c = canvas.New(float64(l.w), float64(l.h))
		l.ctx = canvas.NewContext(l.c)
		l.ctx.SetCoordSystem(canvas.CartesianIV) // 与字段坐标一致，左上角为原点
	}
	return l.ctx
}

func (l *textLayer) flush(dst *image.RGBA) {
	if l.c == nil {
		return
	}
	img := rasterizer.Draw(l.c, canvas.DPMM(1), canvas.DefaultColorSpace)
	draw.Draw(dst, dst.Bounds(), img, image.Point{}, draw.Over)
	l.c, l.ctx = nil, nil
}
