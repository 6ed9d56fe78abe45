package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ByLCY/cardpress/logging"
	"github.com/ByLCY/cardpress/svgdoc"
)

// LoadTemplate 读取模板 JSON；svg 字段为相对模板文件的路径时一并读入 Markup。
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取模板 %s 失败: %w", path, err)
	}
	var tpl Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("解析模板 %s 失败: %w", path, err)
	}
	if tpl.Width <= 0 || tpl.Height <= 0 {
		return nil, fmt.Errorf("%w: 模板 %s 尺寸 %gx%g", ErrZeroPageSize, path, tpl.Width, tpl.Height)
	}
	if tpl.ID == "" {
		tpl.ID = tpl.Name
	}
	if tpl.SVG != "" {
		svgPath := tpl.SVG
		if !filepath.IsAbs(svgPath) {
			svgPath = filepath.Join(filepath.Dir(path), svgPath)
		}
		markup, err := os.ReadFile(svgPath)
		if err != nil {
			return nil, fmt.Errorf("读取模板 SVG %s 失败: %w", svgPath, err)
		}
		tpl.Markup = markup
	}
	return &tpl, nil
}

// BackgroundMarkup 返回模板 SVG。SVG 本身没有 viewBox 时使用元信息中的 viewBox，
// 保证背景按模板坐标系缩放；元信息的 viewBox 无效时原样返回。
func (t TemplateMeta) BackgroundMarkup() []byte {
	if t.ViewBox == "" || len(t.Markup) == 0 {
		return t.Markup
	}
	doc, err := svgdoc.Parse(t.Markup)
	if err != nil || doc.Attr("viewBox") != "" {
		return t.Markup
	}
	vb, err := svgdoc.ParseViewBox(t.ViewBox)
	if err != nil || vb.W <= 0 || vb.H <= 0 {
		logging.Logger().Warn("忽略无效的模板 viewBox", "template", t.ID, "viewBox", t.ViewBox)
		return t.Markup
	}
	out, err := doc.WithViewBox(vb).Bytes()
	if err != nil {
		return t.Markup
	}
	return out
}
