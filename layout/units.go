package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// This file defines unit-safe types and helpers for lengths.
// 卡片坐标涉及三套体系：模板百分比、物理尺寸（mm/in/pt）以及给定 DPI 下的设备像素。
// 所有换算都必须经过这里的函数，DPI 由调用方逐层显式传入，不读取任何全局状态。

// Unit represents the unit a length value was authored in.
type Unit int

const (
	UnitNone    Unit = iota // unit-less numbers like factors
	UnitMM                  // millimeters
	UnitCM                  // centimeters
	UnitIN                  // inches
	UnitPT                  // points
	UnitPX                  // device pixels (需要 DPI)
	UnitPercent             // percentage of a container
)

// Conversion constants.
const (
	MmPerInch = 25.4
	PtPerInch = 72.0
	CSSPxDPI  = 96.0 // 模板单位为 px 时按 CSS 像素解释

	PtToMm = MmPerInch / PtPerInch
	MmToPt = PtPerInch / MmPerInch
)

// UnitToString returns a short string for a Unit value.
func UnitToString(u Unit) string {
	switch u {
	case UnitMM:
		return "mm"
	case UnitCM:
		return "cm"
	case UnitIN:
		return "in"
	case UnitPT:
		return "pt"
	case UnitPX:
		return "px"
	case UnitPercent:
		return "%"
	default:
		return ""
	}
}

// ParseUnit maps a unit name to Unit. Unknown names map to UnitNone.
func ParseUnit(s string) Unit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mm":
		return UnitMM
	case "cm":
		return UnitCM
	case "in", "inch", "inches":
		return UnitIN
	case "pt":
		return UnitPT
	case "px":
		return UnitPX
	case "%":
		return UnitPercent
	default:
		return UnitNone
	}
}

// DPI is the raster resolution fixed for one export call.
type DPI float64

// Valid reports whether the resolution can be used for rendering.
func (d DPI) Valid() bool {
	f := float64(d)
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// MM / IN / PT are shorthands for physical lengths.
func MM(v float64) Length { return Length{Value: v, Unit: UnitMM} }

func IN(v float64) Length { return Length{Value: v, Unit: UnitIN} }

func PT(v float64) Length { return Length{Value: v, Unit: UnitPT} }

func (l Length) IsZero() bool { return l.Value == 0 }

func (l Length) String() string {
	return strconv.FormatFloat(l.Value, 'f', -1, 64) + UnitToString(l.Unit)
}

// ToMM converts a physical length to millimeters. px 长度按 CSS 像素（96dpi）换算；
// 需要指定 DPI 的换算请使用 PxToMM。UnitNone 视为 mm。
func (l Length) ToMM() float64 {
	mustFinite(l.Value)
	switch l.Unit {
	case UnitCM:
		return l.Value * 10
	case UnitIN:
		return InchToMM(l.Value)
	case UnitPT:
		return PtToMM(l.Value)
	case UnitPX:
		return PxToMM(l.Value, CSSPxDPI)
	case UnitPercent:
		panic(fmt.Sprintf("layout: 百分比长度 %s 缺少容器尺寸，无法换算为 mm", l))
	default:
		return l.Value
	}
}

func (l Length) ToPT() float64 { return MMToPt(l.ToMM()) }

func (l Length) ToIN() float64 { return MMToInch(l.ToMM()) }

// ToPx converts a physical length to device pixels at dpi.
func (l Length) ToPx(dpi DPI) float64 {
	if l.Unit == UnitPX {
		mustFinite(l.Value)
		return l.Value
	}
	return MMToPx(l.ToMM(), dpi)
}

// To converts this length to target unit. Supported targets: UnitMM, UnitIN, UnitPT.
func (l Length) To(target Unit) float64 {
	switch target {
	case UnitIN:
		return l.ToIN()
	case UnitPT:
		return l.ToPT()
	case UnitCM:
		return l.ToMM() / 10
	default:
		return l.ToMM()
	}
}

func MMToInch(mm float64) float64 {
	mustFinite(mm)
	return mm / MmPerInch
}

func InchToMM(in float64) float64 {
	mustFinite(in)
	return in * MmPerInch
}

func InchToPt(in float64) float64 {
	mustFinite(in)
	return in * PtPerInch
}

func PtToInch(pt float64) float64 {
	mustFinite(pt)
	return pt / PtPerInch
}

func MMToPt(mm float64) float64 {
	mustFinite(mm)
	return mm * MmToPt
}

func PtToMM(pt float64) float64 {
	mustFinite(pt)
	return pt * PtToMm
}

// MMToPx converts millimeters to device pixels at dpi.
func MMToPx(mm float64, dpi DPI) float64 {
	mustFinite(mm)
	return InchToPx(mm/MmPerInch, dpi)
}

// PxToMM converts device pixels at dpi back to millimeters.
func PxToMM(px float64, dpi DPI) float64 {
	return PxToInch(px, dpi) * MmPerInch
}

func InchToPx(in float64, dpi DPI) float64 {
	mustFinite(in)
	mustFinite(float64(dpi))
	return in * float64(dpi)
}

func PxToInch(px float64, dpi DPI) float64 {
	mustFinite(px)
	if !dpi.Valid() {
		panic(fmt.Sprintf("layout: 非法 DPI %v", float64(dpi)))
	}
	return px / float64(dpi)
}

// PercentToAbs resolves a percentage against a container size. 百分比先被钳制到 [0,100]。
func PercentToAbs(pct, container float64) float64 {
	mustFinite(container)
	return ClampPercent(pct) / 100 * container
}

// ClampPercent clamps p into [0,100].
func ClampPercent(p float64) float64 {
	mustFinite(p)
	return math.Min(100, math.Max(0, p))
}

// PixelSize converts a physical width/height to an integer raster size, at least 1×1.
func PixelSize(width, height Length, dpi DPI) (int, int) {
	w := int(math.Round(width.ToPx(dpi)))
	h := int(math.Round(height.ToPx(dpi)))
	return max(w, 1), max(h, 1)
}

// mustFinite 对非有限数值直接 panic：这类输入只可能来自损坏的模板，属于程序错误。
func mustFinite(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		panic(fmt.Sprintf("layout: 非有限数值 %v", v))
	}
}

// ParseRawLengthStr parses a length string preserving its unit.
func ParseRawLengthStr(value string) Length {
	v := strings.TrimSpace(value)
	if v == "" {
		return Length{Value: 0, Unit: UnitNone}
	}
	lower := strings.ToLower(v)
	unit := UnitNone
	num := lower
	for _, suf := range []struct {
		s string
		u Unit
	}{{"mm", UnitMM}, {"cm", UnitCM}, {"in", UnitIN}, {"pt", UnitPT}, {"px", UnitPX}, {"%", UnitPercent}} {
		if strings.HasSuffix(lower, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(lower, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Length{Value: 0, Unit: UnitNone}
	}
	return Length{Value: f, Unit: unit}
}

// LineHeightKind distinguishes factor-based vs absolute line-height specification.
type LineHeightKind int

const (
	LineHeightFactor LineHeightKind = iota
	LineHeightAbsolute
)

// LineHeightSpec preserves original author intent: either a factor (e.g., 1.2x) or an absolute length.
type LineHeightSpec struct {
	Kind   LineHeightKind `json:"kind"`
	Factor float64        `json:"factor,omitempty"`
	Len    Length         `json:"len,omitempty"`
}

// CardLineHeight 是卡片文本字段的固定行高：1.2 倍字号。
var CardLineHeight = LineHeightSpec{Kind: LineHeightFactor, Factor: 1.2}

// Resolve computes the absolute line height for fontSize, both in the same (caller chosen) unit.
func (s LineHeightSpec) Resolve(fontSize float64) float64 {
	switch s.Kind {
	case LineHeightFactor:
		return fontSize * s.Factor
	case LineHeightAbsolute:
		return s.Len.Value
	default:
		return fontSize * 1.2
	}
}
