package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTextColor 是未指定颜色时的文本颜色。
var DefaultTextColor = Color{R: 0, G: 0, B: 0}

// ParseColor 解析 #rgb / #rrggbb / #rrggbbaa 形式的十六进制颜色（alpha 被忽略）。
func ParseColor(value string) (Color, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "#")
	switch len(value) {
	case 3:
		r := strings.Repeat(string(value[0]), 2)
		g := strings.Repeat(string(value[1]), 2)
		b := strings.Repeat(string(value[2]), 2)
		return hexColor(r, g, b)
	case 6, 8:
		return hexColor(value[0:2], value[2:4], value[4:6])
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

// ResolveColor 解析颜色，失败时回退为默认文本颜色。
func ResolveColor(value string) Color {
	if value == "" {
		return DefaultTextColor
	}
	c, err := ParseColor(value)
	if err != nil {
		return DefaultTextColor
	}
	return c
}

// Hex 返回小写的 #rrggbb 形式。
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R&0xff, c.G&0xff, c.B&0xff)
}

func hexColor(r, g, b string) (Color, error) {
	var out [3]int
	for i, s := range []string{r, g, b} {
		v, err := strconv.ParseUint(s, 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("颜色分量 %s 无法解析: %w", s, err)
		}
		out[i] = int(v)
	}
	return Color{R: out[0], G: out[1], B: out[2]}, nil
}
