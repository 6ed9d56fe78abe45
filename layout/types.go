package layout

// 该文件定义模板、字段与卡片数据模型，供规划、光栅化与调试 JSON 共用。

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// FieldType 字段类型。
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldImage   FieldType = "image"
	FieldBarcode FieldType = "barcode"
	FieldDate    FieldType = "date"
)

// Side 卡片正反面。
type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

// SourceCustom 表示槽位使用调用方直接提供的字段值。
const SourceCustom = "custom"

// TemplateMeta 描述一个卡片模板。加载后不可变，渲染期间仅借用。
type TemplateMeta struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Width   float64  `json:"width"`
	Height  float64  `json:"height"`
	Unit    string   `json:"unit"` // px | mm
	ViewBox string   `json:"viewBox,omitempty"`
	SVG     string   `json:"svg,omitempty"` // 模板 SVG 路径，由调用方加载进 Markup
	Fonts   []string `json:"fonts,omitempty"`
	Markup  []byte   `json:"-"`
}

// Size returns the physical card size in millimeters. px 模板按 CSS 像素（96dpi）解释。
func (t TemplateMeta) Size() (Length, Length) {
	if ParseUnit(t.Unit) == UnitPX {
		return MM(PxToMM(t.Width, CSSPxDPI)), MM(PxToMM(t.Height, CSSPxDPI))
	}
	return MM(t.Width), MM(t.Height)
}

// Template 由模板元信息与按声明顺序排列的字段组成。
type Template struct {
	TemplateMeta
	Fields []FieldDefinition `json:"fields"`
}

// FieldStyle 是字段的类型相关样式。字号单位为编辑器预览像素。
type FieldStyle struct {
	FontFamily    string  `json:"fontFamily,omitempty"`
	FontSize      float64 `json:"fontSize,omitempty"`
	FontWeight    string  `json:"fontWeight,omitempty"`
	Color         string  `json:"color,omitempty"`
	Align         string  `json:"align,omitempty"` // left | center | right
	BarcodeFormat string  `json:"barcodeFormat,omitempty"`
}

// FieldDefinition 描述一个绑定在模板上的字段，坐标为模板百分比。
// Width/Height 为 0 表示未设置。
type FieldDefinition struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Type     FieldType  `json:"type"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	Width    float64    `json:"width,omitempty"`
	Height   float64    `json:"height,omitempty"`
	Style    FieldStyle `json:"style,omitempty"`
	SourceID string     `json:"sourceId,omitempty"`
}

// Native 报告字段是否由模板背景自身绘制（图片字段或文本字段设置了 sourceId）。
// 光栅化时必须跳过这类字段，避免重复绘制。
func (f FieldDefinition) Native() bool {
	if f.SourceID == "" {
		return false
	}
	return f.Type == FieldImage || f.Type == FieldText
}

// ImageValue 图片字段的值：scale ≥ 0，偏移为以字段框尺寸归一化的 [-0.5,0.5]。
type ImageValue struct {
	Src     string  `json:"src"`
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// Normalized 钳制 scale 与偏移到合法区间。
func (v ImageValue) Normalized() ImageValue {
	if math.IsNaN(v.Scale) || v.Scale < 0 {
		v.Scale = 0
	}
	v.OffsetX = clampOffset(v.OffsetX)
	v.OffsetY = clampOffset(v.OffsetY)
	return v
}

func clampOffset(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(0.5, math.Max(-0.5, v))
}

// Value 是字段值：纯字符串（文本/日期/条码）或图片引用。
type Value struct {
	Text  string
	Image *ImageValue
}

// TextValue / ImageRef 构造字段值。
func TextValue(s string) Value { return Value{Text: s} }

func ImageRef(src string, scale, offsetX, offsetY float64) Value {
	return Value{Image: &ImageValue{Src: src, Scale: scale, OffsetX: offsetX, OffsetY: offsetY}}
}

// IsImage reports whether the value holds an image reference.
func (v Value) IsImage() bool { return v.Image != nil }

// MarshalJSON 文本值序列化为字符串，图片值序列化为对象。
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Image != nil {
		return json.Marshal(v.Image)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON 接受字符串或 {src, scale, offsetX, offsetY} 对象；scale 缺省为 1。
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = Value{}
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value{Text: s}
		return nil
	}
	var raw struct {
		Src     string   `json:"src"`
		Scale   *float64 `json:"scale"`
		OffsetX float64  `json:"offsetX"`
		OffsetY float64  `json:"offsetY"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("字段值既不是字符串也不是图片对象: %w", err)
	}
	img := &ImageValue{Src: raw.Src, Scale: 1, OffsetX: raw.OffsetX, OffsetY: raw.OffsetY}
	if raw.Scale != nil {
		img.Scale = *raw.Scale
	}
	*v = Value{Image: img}
	return nil
}

// CardData 字段 id → 字段值。每张卡片实例一份，渲染前临时构造。
type CardData map[string]Value

// Text 返回文本类字段的字符串值；类型不匹配视为空。
func (d CardData) Text(f FieldDefinition) string {
	v, ok := d[f.ID]
	if !ok || v.IsImage() || f.Type == FieldImage {
		return ""
	}
	return v.Text
}

// Image 返回图片字段的值；类型不匹配或缺失时 ok 为 false。
func (d CardData) Image(f FieldDefinition) (ImageValue, bool) {
	v, ok := d[f.ID]
	if !ok || !v.IsImage() || f.Type != FieldImage || v.Image.Src == "" {
		return ImageValue{}, false
	}
	return v.Image.Normalized(), true
}

// Mismatches 列出值类型与字段类型不一致的字段 id（按字段声明顺序）。
func (d CardData) Mismatches(fields []FieldDefinition) []string {
	var out []string
	for _, f := range fields {
		v, ok := d[f.ID]
		if !ok {
			continue
		}
		if (f.Type == FieldImage) != v.IsImage() {
			out = append(out, f.ID)
		}
	}
	return out
}

// Fingerprint 对卡片数据做规范化摘要：键排序后逐项写入，内容相同则摘要相同。
func (d CardData) Fingerprint() string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		v := d[k]
		h.Write([]byte(strconv.Quote(k)))
		if v.Image != nil {
			img := v.Image.Normalized()
			fmt.Fprintf(h, "=img(%q,%s,%s,%s);", img.Src,
				strconv.FormatFloat(img.Scale, 'g', -1, 64),
				strconv.FormatFloat(img.OffsetX, 'g', -1, 64),
				strconv.FormatFloat(img.OffsetY, 'g', -1, 64))
			continue
		}
		fmt.Fprintf(h, "=txt(%q);", v.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Record 是数据库模式下的一条用户记录。
type Record map[string]any

// FieldMapping 记录字段 → 标准字段名的映射，Custom 为可选的自定义格式覆盖。
type FieldMapping struct {
	FieldID      string `json:"fieldId"`
	StandardName string `json:"standardName"`
	Custom       string `json:"custom,omitempty"`
}

// SlotAssignment 是单个槽位的数据来源、正反面与可选模板覆盖。
type SlotAssignment struct {
	Source     string `json:"source"`
	Side       Side   `json:"side"`
	TemplateID string `json:"templateId,omitempty"`
}

// SlotRect 以 pt 为单位、左上角为原点的槽位矩形。
type SlotRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Assets 是单次渲染显式传入的资源：可用字体与已取回的图片字节。
// 字体名不在 Fonts 中即视为缺失。
type Assets struct {
	Fonts  map[string][]byte
	Images map[string][]byte
}

// Warning 记录一次降级处理。Page/Slot 为 -1 表示不适用。
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Page    int    `json:"page"`
	Slot    int    `json:"slot"`
	Field   string `json:"field,omitempty"`
}

// Warning codes.
const (
	WarnFontMissing        = "font-missing"
	WarnImageMissing       = "image-missing"
	WarnImageDecode        = "image-decode"
	WarnBackground         = "background"
	WarnBarcode            = "barcode"
	WarnTemplateMissing    = "template-missing"
	WarnRecordMissing      = "record-missing"
	WarnMappingMissing     = "mapping-missing"
	WarnPlaceholderSkipped = "placeholder-skipped"
	WarnRenderFailed       = "render-failed"
	WarnColorProfile       = "color-profile"
)

// NewWarning 构造与页面/槽位无关的警告。
func NewWarning(code, format string, args ...any) Warning {
	return Warning{Code: code, Message: fmt.Sprintf(format, args...), Page: -1, Slot: -1}
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// DocumentMeta 保存 PDF 元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}
