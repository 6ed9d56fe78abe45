package canvasrenderer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/cardpress/fonts"
	"github.com/ByLCY/cardpress/layout"
	"github.com/ByLCY/cardpress/logging"
)

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

// resolvedFont 是一次字体解析的结果；warning 非空表示使用了回退字体。
type resolvedFont struct {
	family  *canvas.FontFamily
	style   canvas.FontStyle
	warning string
}

// face 创建字号为 size（画布单位）的字体面。画布单位约定为 mm，字体系统按 pt 计，这里做一次换算。
func (f resolvedFont) face(size float64, col color.Color) *canvas.FontFace {
	return f.family.Face(size*layout.MmToPt, col, f.style, canvas.FontNormal)
}

// resolveFont 按字体族名查找字体字节：本次调用传入的 available 优先，其次是渲染器注册的字体，
// 都没有时回退到内置字体。
func (r *Renderer) resolveFont(family, weight string, available map[string][]byte) resolvedFont {
	style := parseFontStyle(weight)
	data := available[family]
	if len(data) == 0 {
		data = r.fontBlobs[family]
	}
	if len(data) > 0 {
		fam, err := r.ensureFontFamily(family, style, data)
		if err == nil {
			return resolvedFont{family: fam, style: style}
		}
		logging.Logger().Warn("字体加载失败，使用回退字体", "family", family, "err", err)
		return r.fallback(family, weight, fmt.Sprintf("字体 %s 加载失败: %v", family, err))
	}
	if family == "" {
		return r.fallback(family, weight, "")
	}
	return r.fallback(family, weight, fmt.Sprintf("字体 %s 不可用，已使用回退字体", family))
}

func (r *Renderer) fallback(family, weight string, warning string) resolvedFont {
	w := strings.ToLower(weight)
	bold := strings.Contains(w, "bold") || strings.Contains(w, "black")
	if fields := strings.Fields(w); len(fields) > 0 {
		if n, err := strconv.Atoi(fields[0]); err == nil && n >= 600 {
			bold = true
		}
	}
	italic := strings.Contains(w, "italic") || strings.Contains(w, "oblique")
	name, data := fonts.Fallback(family, bold, italic)
	fam, err := r.ensureFontFamily("builtin:"+name, canvas.FontRegular, data)
	if err != nil {
		// 内置字体解析失败只可能是构建问题
		panic(fmt.Sprintf("内置字体 %s 无法加载: %v", name, err))
	}
	return resolvedFont{family: fam, style: canvas.FontRegular, warning: warning}
}

// ensureFontFamily 缓存已解析的字体；缓存键包含字体内容摘要，不同调用传入的同名字体互不干扰。
func (r *Renderer) ensureFontFamily(name string, style canvas.FontStyle, data []byte) (*canvas.FontFamily, error) {
	key := fontCacheKey(name, style, data)
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if entry, ok := r.fontFamilies[key]; ok {
		return entry.family, nil
	}
	family := canvas.NewFontFamily(name)
	if err := family.LoadFont(data, 0, style); err != nil {
		return nil, err
	}
	r.fontFamilies[key] = &fontFamilyEntry{family: family, style: style}
	return family, nil
}

// parseFontStyle 接受 CSS 风格的字重：normal/bold/600/"bold italic" 等。
func parseFontStyle(style string) canvas.FontStyle {
	if strings.TrimSpace(style) == "" {
		return canvas.FontRegular
	}
	s := strings.ToLower(style)
	result := canvas.FontRegular
	fields := strings.Fields(s)
	if n, err := strconv.Atoi(fields[0]); err == nil {
		switch {
		case n >= 900:
			result = canvas.FontBlack
		case n >= 800:
			result = canvas.FontExtraBold
		case n >= 700:
			result = canvas.FontBold
		case n >= 600:
			result = canvas.FontSemiBold
		case n >= 500:
			result = canvas.FontMedium
		case n >= 300 && n < 400:
			result = canvas.FontLight
		case n < 300:
			result = canvas.FontExtraLight
		}
	} else {
		switch {
		case strings.Contains(s, "black"):
			result = canvas.FontBlack
		case strings.Contains(s, "extrabold"):
			result = canvas.FontExtraBold
		case strings.Contains(s, "semibold"), strings.Contains(s, "demibold"):
			result = canvas.FontSemiBold
		case strings.Contains(s, "bold"), strings.Contains(s, "bolder"):
			result = canvas.FontBold
		case strings.Contains(s, "medium"):
			result = canvas.FontMedium
		case strings.Contains(s, "light"):
			result = canvas.FontLight
		}
	}
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		result |= canvas.FontItalic
	}
	return result
}

func fontCacheKey(name string, style canvas.FontStyle, data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s|%d|%s", name, style, hex.EncodeToString(sum[:8]))
}
