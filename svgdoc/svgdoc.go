// Package svgdoc 把外部 SVG 当作不可变的解析树来使用：
// 查询只返回几何信息与元素句柄，任何修改都在副本上以一次完整的子树拼接完成，
// 出错时原始文档保持不变，不会留下改了一半的状态。
package svgdoc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

// ErrNoViewBox 表示根元素缺少可用的 viewBox。
var ErrNoViewBox = errors.New("svg 缺少 viewBox")

// Box 是 SVG 用户坐标下的矩形。
type Box struct {
	X, Y, W, H float64
}

// Document 包装一份已解析的 SVG。
type Document struct {
	doc *etree.Document
}

// Parse 解析 SVG 标记，支持非 UTF-8 编码声明。
func Parse(markup []byte) (*Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	if err := doc.ReadFromBytes(markup); err != nil {
		return nil, fmt.Errorf("解析 SVG 失败: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "svg" {
		return nil, fmt.Errorf("解析 SVG 失败: 根元素不是 <svg>")
	}
	return &Document{doc: doc}, nil
}

func (d *Document) root() *etree.Element { return d.doc.Root() }

// Clone 深拷贝整棵树。
func (d *Document) Clone() *Document {
	return &Document{doc: d.doc.Copy()}
}

// Bytes 序列化文档。
func (d *Document) Bytes() ([]byte, error) {
	return d.doc.WriteToBytes()
}

// Attr 返回根元素属性。
func (d *Document) Attr(name string) string {
	return d.root().SelectAttrValue(name, "")
}

// ViewBox 解析根元素的 viewBox。
func (d *Document) ViewBox() (Box, error) {
	raw := strings.TrimSpace(d.Attr("viewBox"))
	if raw == "" {
		return Box{}, ErrNoViewBox
	}
	return ParseViewBox(raw)
}

// ParseViewBox 解析 "minx miny width height"（空白或逗号分隔）。
func ParseViewBox(raw string) (Box, error) {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(parts) != 4 {
		return Box{}, fmt.Errorf("viewBox %q 需要 4 个数值", raw)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := ParseNumber(p)
		if err != nil {
			return Box{}, fmt.Errorf("viewBox %q: %w", raw, err)
		}
		vals[i] = v
	}
	return Box{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

// ParseNumber 解析 SVG 数值属性，忽略 px/mm 等单位后缀；拒绝非有限值。
func ParseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '%'
	})
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("无法解析数值 %q", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("数值 %q 不是有限值", raw)
	}
	return v, nil
}

// cssPixels 是每种长度单位对应的 CSS 像素数（96 dpi），即 SVG 用户单位。
var cssPixels = map[string]float64{
	"":   1,
	"px": 1,
	"mm": 96 / 25.4,
	"cm": 96 / 2.54,
	"in": 96,
	"pt": 96.0 / 72,
	"pc": 16,
}

// ParseLength 解析根元素 width/height 这类长度，并按单位换算为用户单位（CSS 像素）。
// 百分比等相对单位无法换算，返回错误。
func ParseLength(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	i := len(s)
	for i > 0 && (s[i-1] >= 'a' && s[i-1] <= 'z' || s[i-1] >= 'A' && s[i-1] <= 'Z' || s[i-1] == '%') {
		i--
	}
	scale, ok := cssPixels[strings.ToLower(s[i:])]
	if !ok {
		return 0, fmt.Errorf("长度 %q 的单位无法换算", raw)
	}
	v, err := ParseNumber(s[:i])
	if err != nil {
		return 0, err
	}
	return v * scale, nil
}

// WithSize 返回强制设置了根 width/height 的副本。
// 光栅化前必须显式写入目标尺寸，否则内嵌字号会按原始尺寸错误缩放。
func (d *Document) WithSize(width, height string) *Document {
	out := d.Clone()
	root := out.root()
	root.CreateAttr("width", width)
	root.CreateAttr("height", height)
	if root.SelectAttr("viewBox") == nil {
		// 没有 viewBox 时保留原尺寸作为坐标系，避免内容随 width/height 被裁切
		if w, errW := ParseLength(d.Attr("width")); errW == nil {
			if h, errH := ParseLength(d.Attr("height")); errH == nil {
				root.CreateAttr("viewBox", fmt.Sprintf("0 0 %s %s", formatNumber(w), formatNumber(h)))
			}
		}
	}
	return out
}

// WithViewBox 返回设置了根 viewBox 的副本。
func (d *Document) WithViewBox(b Box) *Document {
	out := d.Clone()
	out.root().CreateAttr("viewBox", fmt.Sprintf("%s %s %s %s",
		formatNumber(b.X), formatNumber(b.Y), formatNumber(b.W), formatNumber(b.H)))
	return out
}

// Group 是带 id 的 <g> 元素句柄。
type Group struct {
	ID string
	el *etree.Element
}

// Groups 按文档顺序返回 id 满足 match 的所有 <g>。
func (d *Document) Groups(match func(id string) bool) []Group {
	var out []Group
	walk(d.root(), func(el *etree.Element) bool {
		if el.Tag == "g" {
			if id := el.SelectAttrValue("id", ""); id != "" && match(id) {
				out = append(out, Group{ID: id, el: el})
			}
		}
		return true
	})
	return out
}

// GroupsByID 按 ids 的顺序返回对应的 <g>；文档中不存在的 id 被跳过。
func (d *Document) GroupsByID(ids []string) []Group {
	found := make(map[string]*etree.Element, len(ids))
	walk(d.root(), func(el *etree.Element) bool {
		if el.Tag == "g" {
			if id := el.SelectAttrValue("id", ""); id != "" && found[id] == nil {
				found[id] = el
			}
		}
		return true
	})
	out := make([]Group, 0, len(ids))
	for _, id := range ids {
		if el := found[id]; el != nil {
			out = append(out, Group{ID: id, el: el})
		}
	}
	return out
}

// LastRect 返回组内最后一个 <rect> 后代的几何。
// 约定：组内最后一个 rect 才是真正的槽位边界，之前的 rect 可能只是装饰。
func (g Group) LastRect() (Box, error) {
	var last *etree.Element
	walk(g.el, func(el *etree.Element) bool {
		if el.Tag == "rect" {
			last = el
		}
		return true
	})
	if last == nil {
		return Box{}, fmt.Errorf("占位组 %s 中没有 <rect>", g.ID)
	}
	var b Box
	for _, a := range []struct {
		name string
		dst  *float64
		def  string
	}{{"x", &b.X, "0"}, {"y", &b.Y, "0"}, {"width", &b.W, ""}, {"height", &b.H, ""}} {
		v, err := ParseNumber(last.SelectAttrValue(a.name, a.def))
		if err != nil {
			return Box{}, fmt.Errorf("占位组 %s 的 rect.%s: %w", g.ID, a.name, err)
		}
		*a.dst = v
	}
	if b.W <= 0 || b.H <= 0 {
		return Box{}, fmt.Errorf("占位组 %s 的 rect 尺寸无效: %gx%g", g.ID, b.W, b.H)
	}
	return b, nil
}

// WithoutGroups 返回移除了指定 id 的 <g> 子树的副本。
func (d *Document) WithoutGroups(ids []string) *Document {
	out := d.Clone()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	for _, g := range out.Groups(func(id string) bool { return drop[id] }) {
		if parent := g.el.Parent(); parent != nil {
			parent.RemoveChild(g.el)
		}
	}
	return out
}

// Has reports whether an element with the given id exists.
func (d *Document) Has(id string) bool {
	found := false
	walk(d.root(), func(el *etree.Element) bool {
		if el.SelectAttrValue("id", "") == id {
			found = true
			return false
		}
		return true
	})
	return found
}

// Splice 在副本中用 replacement 替换 id 对应的元素。
func (d *Document) Splice(id string, replacement *etree.Element) (*Document, error) {
	out := d.Clone()
	var target *etree.Element
	walk(out.root(), func(el *etree.Element) bool {
		if el.SelectAttrValue("id", "") == id {
			target = el
			return false
		}
		return true
	})
	if target == nil {
		return nil, fmt.Errorf("svg 中找不到 id=%s 的元素", id)
	}
	parent := target.Parent()
	if parent == nil {
		return nil, fmt.Errorf("不能替换根元素 %s", id)
	}
	idx := target.Index()
	parent.RemoveChild(target)
	parent.InsertChildAt(idx, replacement.Copy())
	return out, nil
}

// Append 返回在根元素末尾追加了 elems 的副本。
func (d *Document) Append(elems ...*etree.Element) *Document {
	out := d.Clone()
	root := out.root()
	for _, el := range elems {
		root.AddChild(el.Copy())
	}
	return out
}

// RewriteAttrs 返回副本，其中每个属性值都经过 fn 改写。
func (d *Document) RewriteAttrs(fn func(tag, name, value string) string) *Document {
	out := d.Clone()
	walk(out.root(), func(el *etree.Element) bool {
		for i := range el.Attr {
			a := &el.Attr[i]
			a.Value = fn(el.Tag, a.Key, a.Value)
		}
		return true
	})
	return out
}

// walk 先序遍历，visit 返回 false 时停止。
func walk(el *etree.Element, visit func(*etree.Element) bool) bool {
	if !visit(el) {
		return false
	}
	for _, child := range el.ChildElements() {
		if !walk(child, visit) {
			return false
		}
	}
	return true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
