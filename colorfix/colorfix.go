// Package colorfix applies a pre-computed hex→hex color correction map to
// rendered cards. It does no color science: a color either has an entry in
// the map or is left untouched.
package colorfix

import (
	"fmt"
	"image"
	"image/color"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"gopkg.in/yaml.v3"

	"github.com/ByLCY/cardpress/layout"
	"github.com/ByLCY/cardpress/svgdoc"
)

// Map 把 #rrggbb 映射到校正后的 #rrggbb。键与值都已规范化为小写六位形式。
type Map map[string]string

var hexPattern = regexp.MustCompile(`#(?:[0-9a-fA-F]{6}|[0-9a-fA-F]{3})\b`)

// colorAttrs 是可能携带颜色的 SVG 展示属性。
var colorAttrs = map[string]bool{
	"fill": true, "stroke": true, "stop-color": true, "color": true,
	"flood-color": true, "lighting-color": true, "style": true,
}

// Parse 解析 YAML（或 JSON）形式的颜色映射，例如 {"#ff0000": "#f01010"}。
func Parse(data []byte) (Map, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("解析颜色校正表失败: %w", err)
	}
	return New(raw)
}

// New 规范化并校验映射表。
func New(raw map[string]string) (Map, error) {
	m := make(Map, len(raw))
	for from, to := range raw {
		src, err := layout.ParseColor(from)
		if err != nil {
			return nil, fmt.Errorf("颜色校正表键 %q: %w", from, err)
		}
		dst, err := layout.ParseColor(to)
		if err != nil {
			return nil, fmt.Errorf("颜色校正表值 %q: %w", to, err)
		}
		m[src.Hex()] = dst.Hex()
	}
	return m, nil
}

// Lookup 返回 hex 对应的校正颜色；不在表中时原样返回。
func (m Map) Lookup(hex string) string {
	c, err := layout.ParseColor(hex)
	if err != nil {
		return hex
	}
	if out, ok := m[c.Hex()]; ok {
		return out
	}
	return hex
}

// ApplyImage 逐像素替换表中出现的颜色，透明度保持不变。
func (m Map) ApplyImage(img image.Image) *image.NRGBA {
	table := make(map[[3]uint8]color.NRGBA, len(m))
	for from, to := range m {
		src, _ := layout.ParseColor(from)
		dst, _ := layout.ParseColor(to)
		table[[3]uint8{uint8(src.R), uint8(src.G), uint8(src.B)}] = color.NRGBA{R: uint8(dst.R), G: uint8(dst.G), B: uint8(dst.B)}
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		if out, ok := table[[3]uint8{c.R, c.G, c.B}]; ok {
			out.A = c.A
			return out
		}
		return c
	})
}

// ApplyMarkup 替换 SVG 展示属性与 style 中的十六进制颜色，不改动其他内容。
func (m Map) ApplyMarkup(markup []byte) ([]byte, error) {
	doc, err := svgdoc.Parse(markup)
	if err != nil {
		return nil, err
	}
	return doc.RewriteAttrs(func(_, name, value string) string {
		if !colorAttrs[strings.ToLower(name)] {
			return value
		}
		return hexPattern.ReplaceAllStringFunc(value, m.Lookup)
	}).Bytes()
}
