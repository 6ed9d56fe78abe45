package binding

import (
	"strings"
	"time"
)

// DefaultDateLayout 是日期字段的默认输出格式。
const DefaultDateLayout = "2006-01-02"

// Formatter 是默认的字段格式化器：标准字段名 → 记录值 → 卡片文本。
type Formatter struct {
	// DateLayout 为空时使用 DefaultDateLayout。
	DateLayout string
}

// composite 列出可由多个记录字段拼出的标准字段。
var composite = map[string][]string{
	"fullName": {"firstName", "middleName", "lastName"},
	"address":  {"street", "city", "state", "zip"},
}

// FormatField 实现 layout.FieldFormatter。
// custom 非空时视为 ${path} 模板在记录上展开，无法解析的占位符输出为空。
func (f Formatter) FormatField(standardName string, record map[string]any, custom string) string {
	if custom != "" {
		return strings.TrimSpace(interpolate(custom, record))
	}
	if record == nil || standardName == "" {
		return ""
	}
	if val, ok := Lookup(record, standardName); ok {
		if s, ok := val.(string); ok && isDateName(standardName) {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t.Format(f.dateLayout())
			}
		}
		return Stringify(val, f.dateLayout())
	}
	if parts, ok := composite[standardName]; ok {
		sep := " "
		if standardName == "address" {
			sep = ", "
		}
		var out []string
		for _, p := range parts {
			if v, ok := record[p]; ok {
				if s := Stringify(v, f.dateLayout()); s != "" {
					out = append(out, s)
				}
			}
		}
		return strings.Join(out, sep)
	}
	return ""
}

func (f Formatter) dateLayout() string {
	if f.DateLayout != "" {
		return f.DateLayout
	}
	return DefaultDateLayout
}

func isDateName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, "date") || strings.HasSuffix(lower, "dob") || strings.Contains(lower, "birth")
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	default:
		return time.Time{}, false
	}
}
