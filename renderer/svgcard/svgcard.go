// Package svgcard renders a single card as SVG while keeping the template's
// vector artwork. Field overlays are added as <text>, <image> and nested <svg>
// elements in template user units.
package svgcard

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"image/png"
	"net/http"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/microcosm-cc/bluemonday"

	"github.com/ByLCY/cardpress/layout"
	"github.com/ByLCY/cardpress/logging"
	"github.com/ByLCY/cardpress/renderer"
	canvasrenderer "github.com/ByLCY/cardpress/renderer/canvas"
	"github.com/ByLCY/cardpress/svgdoc"
)

// 条码在矢量输出中以位图嵌入，长边按该像素数编码，避免查看器插值导致模糊。
const barcodePixels = 1024.0

// Renderer 输出保留矢量内容的单卡 SVG。
type Renderer struct {
	typesetter layout.Typesetter
	policy     *bluemonday.Policy
}

var _ renderer.VectorCardRenderer = (*Renderer)(nil)

// New 使用 typesetter 对文本字段换行。
func New(typesetter layout.Typesetter) *Renderer {
	return &Renderer{typesetter: typesetter, policy: bluemonday.StrictPolicy()}
}

// RenderSVG 在模板 SVG 上叠加字段。模板中与字段 id 同名的元素视为该字段的占位元素，
// 以一次子树替换换成字段内容；没有占位元素的字段追加到根元素末尾。
func (r *Renderer) RenderSVG(tpl *layout.Template, data layout.CardData, assets layout.Assets) ([]byte, []layout.Warning, error) {
	if tpl == nil {
		return nil, nil, fmt.Errorf("模板为空")
	}
	markup := tpl.BackgroundMarkup()
	if len(markup) == 0 {
		markup = []byte(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %s %s"/>`,
			num(tpl.Width), num(tpl.Height)))
	}
	doc, err := svgdoc.Parse(markup)
	if err != nil {
		return nil, nil, fmt.Errorf("模板 %s: %w", tpl.ID, err)
	}
	vb, err := doc.ViewBox()
	if err != nil {
		vb = svgdoc.Box{W: tpl.Width, H: tpl.Height}
	}
	if vb.W <= 0 || vb.H <= 0 {
		return nil, nil, fmt.Errorf("%w: 模板 %s", layout.ErrZeroPageSize, tpl.ID)
	}
	width, height := tpl.Size()
	doc = doc.WithSize(num(width.ToMM())+"mm", num(height.ToMM())+"mm")

	var warnings []layout.Warning
	warn := func(code, field, format string, args ...any) {
		wn := layout.NewWarning(code, format, args...)
		wn.Field = field
		logging.Logger().Warn(wn.Message, "template", tpl.ID, "code", code, "field", field)
		warnings = append(warnings, wn)
	}

	fontScale := vb.W / canvasrenderer.ReferencePreviewWidth
	for _, f := range tpl.Fields {
		if f.Native() {
			continue
		}
		box := fieldBox(f, vb)
		var (
			el   *etree.Element
			ferr error
		)
		switch f.Type {
		case layout.FieldImage:
			v, ok := data.Image(f)
			if !ok {
				continue
			}
			raw := assets.Images[v.Src]
			if len(raw) == 0 {
				warn(layout.WarnImageMissing, f.ID, "图片 %s 不可用，字段 %s 已省略", v.Src, f.ID)
				continue
			}
			el = imageElement(f.ID, box, raw, v)
		case layout.FieldBarcode:
			value := labelled(data.Text(f), f)
			el, ferr = barcodeElement(f.ID, box, value, f.Style.BarcodeFormat)
			if ferr != nil {
				warn(layout.WarnBarcode, f.ID, "字段 %s 条码生成失败，改为绘制文本: %v", f.ID, ferr)
				el, ferr = r.textElement(f, box, value, fontScale)
			}
		default:
			el, ferr = r.textElement(f, box, labelled(data.Text(f), f), fontScale)
		}
		if ferr != nil {
			warn(layout.WarnRenderFailed, f.ID, "字段 %s 排版失败: %v", f.ID, ferr)
			continue
		}
		if el == nil {
			continue
		}
		if doc.Has(f.ID) {
			if doc, err = doc.Splice(f.ID, el); err != nil {
				return nil, warnings, err
			}
			continue
		}
		doc = doc.Append(el)
	}

	out, err := doc.Bytes()
	if err != nil {
		return nil, warnings, fmt.Errorf("序列化 SVG 失败: %w", err)
	}
	return out, warnings, nil
}

type box struct{ X, Y, W, H float64 }

// fieldBox 把百分比坐标换算为模板用户单位（viewBox 坐标系）。
func fieldBox(f layout.FieldDefinition, vb svgdoc.Box) box {
	b := box{X: vb.X + layout.PercentToAbs(f.X, vb.W), Y: vb.Y + layout.PercentToAbs(f.Y, vb.H)}
	if f.Width > 0 {
		b.W = layout.PercentToAbs(f.Width, vb.W)
	}
	if f.Height > 0 {
		b.H = layout.PercentToAbs(f.Height, vb.H)
	}
	return b
}

func labelled(value string, f layout.FieldDefinition) string {
	if value == "" {
		return f.Label
	}
	return value
}

// textElement 生成多行 <text>；字段值先去除任何标记，只保留纯文本。
func (r *Renderer) textElement(f layout.FieldDefinition, b box, value string, fontScale float64) (*etree.Element, error) {
	value = html.UnescapeString(r.policy.Sanitize(value))
	size := f.Style.FontSize
	if size <= 0 {
		size = 16
	}
	size *= fontScale
	lineHeight := layout.CardLineHeight.Resolve(size)
	lines, err := r.typesetter.LayoutLines(value, b.W, layout.FontResource{Family: f.Style.FontFamily, Style: f.Style.FontWeight}, size, lineHeight)
	if err != nil {
		return nil, err
	}

	anchor, x := "start", b.X
	switch strings.ToLower(f.Style.Align) {
	case "center", "middle":
		anchor, x = "middle", b.X+b.W/2
	case "right", "end":
		anchor, x = "end", b.X+b.W
	}

	el := etree.NewElement("text")
	el.CreateAttr("id", f.ID)
	el.CreateAttr("x", num(x))
	el.CreateAttr("y", num(b.Y))
	el.CreateAttr("font-size", num(size))
	if f.Style.FontFamily != "" {
		el.CreateAttr("font-family", f.Style.FontFamily)
	}
	if f.Style.FontWeight != "" {
		el.CreateAttr("font-weight", f.Style.FontWeight)
	}
	el.CreateAttr("fill", layout.ResolveColor(f.Style.Color).Hex())
	el.CreateAttr("text-anchor", anchor)
	// 首行基线约为字号的 0.8 倍
	dy := size * 0.8
	for _, line := range lines {
		span := el.CreateElement("tspan")
		span.CreateAttr("x", num(x))
		span.CreateAttr("dy", num(dy))
		span.SetText(line.Content)
		dy = lineHeight
	}
	return el, nil
}

// imageElement 用嵌套 <svg> 作为裁剪框：图片按 scale 放大、居中并偏移，框外部分被裁掉。
func imageElement(id string, b box, raw []byte, v layout.ImageValue) *etree.Element {
	if b.W <= 0 {
		b.W = b.H
	}
	if b.H <= 0 {
		b.H = b.W
	}
	clip := etree.NewElement("svg")
	clip.CreateAttr("id", id)
	clip.CreateAttr("x", num(b.X))
	clip.CreateAttr("y", num(b.Y))
	clip.CreateAttr("width", num(b.W))
	clip.CreateAttr("height", num(b.H))
	clip.CreateAttr("overflow", "hidden")

	dw, dh := b.W*v.Scale, b.H*v.Scale
	img := clip.CreateElement("image")
	img.CreateAttr("x", num((b.W-dw)/2+v.OffsetX*b.W))
	img.CreateAttr("y", num((b.H-dh)/2+v.OffsetY*b.H))
	img.CreateAttr("width", num(dw))
	img.CreateAttr("height", num(dh))
	img.CreateAttr("preserveAspectRatio", "none")
	img.CreateAttr("href", dataURI(raw))
	return clip
}

func barcodeElement(id string, b box, value, format string) (*etree.Element, error) {
	if b.W <= 0 || b.H <= 0 {
		return nil, fmt.Errorf("条码字段 %s 缺少宽高", id)
	}
	scale := barcodePixels / max(b.W, b.H)
	code, err := canvasrenderer.BarcodeImage(value, format, max(int(b.W*scale), 1), max(int(b.H*scale), 1))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, err
	}
	el := etree.NewElement("image")
	el.CreateAttr("id", id)
	el.CreateAttr("x", num(b.X))
	el.CreateAttr("y", num(b.Y))
	el.CreateAttr("width", num(b.W))
	el.CreateAttr("height", num(b.H))
	el.CreateAttr("preserveAspectRatio", "xMidYMid meet")
	el.CreateAttr("href", dataURI(buf.Bytes()))
	return el, nil
}

func dataURI(raw []byte) string {
	mime := http.DetectContentType(raw)
	if strings.HasPrefix(mime, "text/xml") || strings.HasPrefix(mime, "text/plain") {
		if bytes.Contains(raw, []byte("<svg")) {
			mime = "image/svg+xml"
		}
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
