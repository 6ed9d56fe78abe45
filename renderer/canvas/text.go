package canvasrenderer

import (
	"image/color"
	"math"
	"strings"
	"unicode"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/cardpress/fonts"
	"github.com/ByLCY/cardpress/layout"
)

// defaultFontSize 是未指定字号时的编辑器预览字号（px）。
const defaultFontSize = 16.0

// LayoutLines 实现 layout.Typesetter 接口，使用贪心换行算法。
// 约定：width/fontSize/lineHeight 使用同一画布单位；超宽的单词独占一行，不在词内拆分。
func (r *Renderer) LayoutLines(content string, width float64, font layout.FontResource, fontSize, lineHeight float64) ([]layout.TextLine, error) {
	rf, err := r.fontFor(font)
	if err != nil {
		return nil, err
	}
	face := rf.face(fontSize, canvas.Black)

	lines := greedyWrap(content, width, face.TextWidth)
	textHeight := face.Metrics().LineHeight
	if textHeight <= 0 {
		textHeight = lineHeight
	}
	leading := math.Max(lineHeight-textHeight, 0)
	for i := range lines {
		lines[i].Height = textHeight
		if i > 0 {
			lines[i].GapBefore = leading
		}
	}
	return lines, nil
}

// fontFor 解析 FontResource：embed: 前缀指向内置字体，否则按字体族名查找已注册字体。
func (r *Renderer) fontFor(font layout.FontResource) (resolvedFont, error) {
	if strings.HasPrefix(font.Src, "embed:") {
		data, err := fonts.Load(font.Src)
		if err != nil {
			return resolvedFont{}, err
		}
		style := parseFontStyle(font.Style)
		fam, err := r.ensureFontFamily(font.Src, style, data)
		if err != nil {
			return resolvedFont{}, err
		}
		return resolvedFont{family: fam, style: style}, nil
	}
	return r.resolveFont(font.Family, font.Style, nil), nil
}

// drawText 在 box 内绘制文本字段：按框宽贪心换行，行高 1.2 倍字号，按对齐方式确定锚点。
// 返回字体回退信息（为空表示字体可用）。
func (r *Renderer) drawText(ctx *canvas.Context, text string, box pxBox, st layout.FieldStyle, fontScale float64, available map[string][]byte) string {
	size := st.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	size *= fontScale
	rf := r.resolveFont(st.FontFamily, st.FontWeight, available)
	face := rf.face(size, colorFromLayout(layout.ResolveColor(st.Color)))

	align, anchorX := alignment(st.Align, box)
	lineHeight := layout.CardLineHeight.Resolve(size)
	ascent := face.Metrics().Ascent
	cursorY := box.Y
	for _, line := range greedyWrap(text, box.W, face.TextWidth) {
		if line.Content != "" {
			ctx.DrawText(anchorX, cursorY+ascent, canvas.NewTextLine(face, line.Content, align))
		}
		cursorY += lineHeight
	}
	return rf.warning
}

// alignment 返回对齐方式与绘制锚点：left 为框左边，center 为框中心，right 为框右边。
func alignment(align string, box pxBox) (canvas.TextAlign, float64) {
	switch strings.ToLower(align) {
	case "center", "middle":
		return canvas.Center, box.X + box.W/2
	case "right", "end":
		return canvas.Right, box.X + box.W
	default:
		return canvas.Left, box.X
	}
}

// greedyWrap 在空白处贪心换行；limit <= 0 表示不限宽。显式换行总是生效，空白不出现在行首。
func greedyWrap(content string, limit float64, measure func(string) float64) []layout.TextLine {
	if limit <= 0 {
		limit = math.MaxFloat64
	}
	var lines []layout.TextLine
	var builder strings.Builder
	pending := ""

	emit := func(force bool) {
		pending = ""
		if builder.Len() == 0 {
			if force {
				lines = append(lines, layout.TextLine{Content: "", Width: 0})
			}
			return
		}
		lineStr := builder.String()
		lines = append(lines, layout.TextLine{Content: lineStr, Width: measure(lineStr)})
		builder.Reset()
	}

	for _, token := range tokenizeContent(content) {
		switch {
		case token == "\n":
			emit(true)
		case strings.TrimSpace(token) == "":
			if builder.Len() > 0 {
				pending += token
			}
		default:
			if builder.Len() > 0 && measure(builder.String()+pending+token) > limit {
				emit(false)
			}
			if builder.Len() > 0 {
				builder.WriteString(pending)
			}
			pending = ""
			builder.WriteString(token)
		}
	}
	emit(true)
	return lines
}

func tokenizeContent(s string) []string {
	var tokens []string
	var builder strings.Builder
	lastWasSpace := false
	flush := func() {
		if builder.Len() == 0 {
			return
		}
		tokens = append(tokens, builder.String())
		builder.Reset()
	}

	for _, r := range s {
		if r == '\r' {
			continue
		}
		if r == '\n' {
			flush()
			tokens = append(tokens, "\n")
			lastWasSpace = false
			continue
		}
		isSpace := unicode.IsSpace(r)
		if builder.Len() == 0 {
			lastWasSpace = isSpace
		} else if lastWasSpace != isSpace {
			flush()
			lastWasSpace = isSpace
		}
		builder.WriteRune(r)
	}
	flush()
	return tokens
}

func colorFromLayout(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}
