package fonts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-fonts/latin-modern/lmroman10bold"
	"github.com/go-fonts/latin-modern/lmroman10italic"
	"github.com/go-fonts/latin-modern/lmroman10regular"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// 内置字体：模板引用的字体缺失时用于回退。
var builtin = map[string][]byte{
	"sans":         goregular.TTF,
	"sans-bold":    gobold.TTF,
	"sans-italic":  goitalic.TTF,
	"mono":         gomono.TTF,
	"serif":        lmroman10regular.TTF,
	"serif-bold":   lmroman10bold.TTF,
	"serif-italic": lmroman10italic.TTF,
}

// Load 返回内置字体的字节数据，name 可写为 "embed:serif-bold" 或直接 "serif-bold"。
func Load(name string) ([]byte, error) {
	key := strings.ToLower(strings.TrimPrefix(name, "embed:"))
	data, ok := builtin[key]
	if !ok {
		return nil, fmt.Errorf("读取内置字体 %s 失败: 未知字体", name)
	}
	return data, nil
}

// Names 按字母序列出内置字体名。
func Names() []string {
	out := make([]string, 0, len(builtin))
	for k := range builtin {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Fallback 按 CSS 字体族名与字重/字形挑选最接近的内置字体。
func Fallback(family string, bold, italic bool) (string, []byte) {
	base := "sans"
	lower := strings.ToLower(family)
	switch {
	case strings.Contains(lower, "mono"), strings.Contains(lower, "courier"):
		return "mono", builtin["mono"]
	case strings.Contains(lower, "serif") && !strings.Contains(lower, "sans"),
		strings.Contains(lower, "times"), strings.Contains(lower, "georgia"), strings.Contains(lower, "roman"):
		base = "serif"
	}
	name := base
	switch {
	case bold:
		name += "-bold"
	case italic:
		name += "-italic"
	}
	return name, builtin[name]
}
