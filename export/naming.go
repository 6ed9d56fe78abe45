package export

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ByLCY/cardpress/renderer"
)

// FileName 生成确定性的输出文件名：单卡为 <模板>.<格式>，
// 批量为 <模板>-batch-<n>-cards[-<版式>].<格式>。
func FileName(templateName string, format renderer.Format, cards int, layoutName string, batch bool) string {
	base := sanitize(templateName)
	if base == "" {
		base = "card"
	}
	if batch {
		base = fmt.Sprintf("%s-batch-%d-cards", base, cards)
		if l := sanitize(layoutName); l != "" {
			base += "-" + l
		}
	}
	return base + "." + string(format)
}

// sanitize 只保留字母、数字、'-'、'_' 与 '.'，其余替换为单个 '-'。
func sanitize(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-.")
}
