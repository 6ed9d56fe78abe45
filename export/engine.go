// Package export 串联一次导出：版式解析 → 槽位规划 → 卡片渲染 → 文档组装。
//
// 一次导出要么完整失败并给出原因，要么成功产出文档；
// 成功时缺失的槽位或字段以 Result.Warnings 说明。
package export

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/ByLCY/cardpress/binding"
	"github.com/ByLCY/cardpress/colorfix"
	"github.com/ByLCY/cardpress/fonts"
	"github.com/ByLCY/cardpress/layout"
	"github.com/ByLCY/cardpress/logging"
	"github.com/ByLCY/cardpress/renderer"
)

// AssetSource 取回版式 SVG 与图片等外部资源。
type AssetSource interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
	Collect(ctx context.Context, refs []string, code string) (map[string][]byte, []layout.Warning)
}

// Engine 持有导出所需的协作者，可被多次并发使用。
type Engine struct {
	Rasterizer renderer.CardRasterizer
	Assembler  renderer.Renderer
	Encoder    renderer.ImageEncoder
	// Vector 为 nil 时 maintainVectors 退化为内嵌光栅的 SVG。
	Vector renderer.VectorCardRenderer
	// Formatter 为 nil 时使用 binding.Formatter。
	Formatter layout.FieldFormatter
	Assets    AssetSource
	Layouts   func(id string) (*layout.PrintLayout, bool)
	// ColorProfiles 按配置 id 返回颜色校正表。
	ColorProfiles func(id string) (colorfix.Map, error)
	Workers       int
	// OnState 接收每一次生命周期切换，可为 nil。
	OnState func(State)
}

// Request 是一次导出的全部输入。模板与记录只读借用。
type Request struct {
	Front     *layout.Template
	Back      *layout.Template
	Templates map[string]*layout.Template
	Custom    layout.CardData
	Records   map[string]layout.Record
	Mappings  map[string][]layout.FieldMapping
	// Fonts 是可用字体（族名 → 字体文件），不在其中的字体视为缺失。
	Fonts map[string][]byte
	// Images 是已取回的图片，其余图片通过 Engine.Assets 取回。
	Images  map[string][]byte
	Meta    layout.DocumentMeta
	Options Options
}

// Result 是成功导出的文档。
type Result struct {
	Data     []byte
	FileName string
	Format   renderer.Format
	Pages    int
	Plan     *layout.Plan
	Warnings []layout.Warning
}

// Export 执行一次导出。请求无效时返回 *CallerError，中途失败时返回 *FatalError，
// 取消时错误链中包含 ctx.Err()。
func (e *Engine) Export(ctx context.Context, req Request) (*Result, error) {
	opts := req.Options.normalized()
	if err := e.check(req, opts); err != nil {
		return nil, err
	}

	lc := &lifecycle{observe: e.OnState}
	lc.to(Planning)
	var warnings []layout.Warning

	resolved, withLayout, err := e.resolveLayout(ctx, req, opts)
	if err != nil {
		return nil, lc.fail(err)
	}
	warnings = append(warnings, resolved.Warnings...)

	assignments := opts.assignments(resolved.SlotsPerPage(), withLayout)
	plan, err := layout.BuildPlan(assignments, resolved.Slots, e.sources(req))
	if plan != nil {
		warnings = append(warnings, plan.Warnings...)
	}
	if err != nil {
		return nil, lc.fail(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, lc.fail(err)
	}
	logging.Logger().Debug("导出计划完成", "layout", resolved.Name, "pages", plan.Pages, "cards", len(plan.Cards), "filled", plan.Filled())

	lc.to(Rendering)
	assets, ws := e.collectAssets(ctx, req, plan)
	warnings = append(warnings, ws...)
	warnings = append(warnings, missingFonts(plan, assets.Fonts)...)
	colors, ws := e.colorMap(opts)
	warnings = append(warnings, ws...)

	res := &Result{
		Format:   opts.Format,
		FileName: FileName(templateName(req.Front), opts.Format, plan.Filled(), resolved.Name, withLayout || len(assignments) > 1),
		Pages:    plan.Pages,
		Plan:     plan,
	}

	if opts.Format == renderer.FormatSVG && opts.MaintainVectors && e.Vector != nil {
		data, ws, err := e.renderVector(plan, assets, colors)
		warnings = append(warnings, ws...)
		if err != nil {
			return nil, lc.fail(err)
		}
		lc.to(Assembling)
		if err := ctx.Err(); err != nil {
			return nil, lc.fail(err)
		}
		lc.to(Done)
		res.Data, res.Pages, res.Warnings = data, 1, warnings
		return res, nil
	}

	comp := &Compositor{Rasterizer: e.Rasterizer, Workers: e.Workers}
	if len(colors) > 0 {
		comp.Correct = func(img image.Image) image.Image { return colors.ApplyImage(img) }
	}
	renders, ws, err := comp.Composite(ctx, plan, opts.DPI, assets)
	if err != nil {
		return nil, lc.fail(err)
	}
	warnings = append(warnings, ws...)
	if !anyRendered(renders) {
		return nil, lc.fail(ErrNothingRendered)
	}

	lc.to(Assembling)
	switch opts.Format {
	case renderer.FormatPDF:
		var bg image.Image
		if withLayout {
			if bg, err = layoutBackground(resolved, opts.DPI); err != nil {
				logging.Logger().Warn("版式背景渲染失败", "layout", resolved.Name, "err", err)
				warnings = append(warnings, layout.NewWarning(layout.WarnBackground, "版式 %s 背景渲染失败: %v", resolved.Name, err))
				bg = nil
			}
		}
		doc := assemble(plan, renders, resolved, bg, !withLayout)
		doc.Meta = documentMeta(req.Meta, res.FileName)
		res.Data, err = e.Assembler.Render(doc)
	default:
		card := plan.Cards[0]
		w, h := card.Template.Size()
		res.Data, err = e.Encoder.EncodeImage(renders[0], w.ToPT(), h.ToPT(), opts.Format)
		res.Pages = 1
	}
	if err != nil {
		return nil, lc.fail(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, lc.fail(err)
	}
	lc.to(Done)
	res.Warnings = warnings
	return res, nil
}

// check 拒绝无效请求，此时生命周期尚未开始。
func (e *Engine) check(req Request, opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}
	if req.Front == nil {
		return callerErr(ErrNoTemplate, "")
	}
	if opts.PrintLayoutID == "" && opts.Format != renderer.FormatPDF && len(opts.assignments(1, false)) > 1 {
		return callerErr(ErrUnsupportedFormat, "%s 只能导出单张卡片", opts.Format)
	}
	for _, tpl := range customTemplates(req, opts) {
		if ids := req.Custom.Mismatches(tpl.Fields); len(ids) > 0 {
			return callerErr(ErrValueMismatch, "模板 %s 字段 %s", templateName(tpl), strings.Join(ids, ", "))
		}
	}
	switch {
	case e.Rasterizer == nil:
		return fmt.Errorf("export: 缺少卡片光栅化器")
	case opts.Format == renderer.FormatPDF && e.Assembler == nil:
		return fmt.Errorf("export: 缺少 PDF 组装器")
	case opts.Format != renderer.FormatPDF && e.Encoder == nil:
		return fmt.Errorf("export: 缺少图像编码器")
	}
	return nil
}

// customTemplates 返回可能使用自定义字段值的模板。
func customTemplates(req Request, opts Options) []*layout.Template {
	out := []*layout.Template{req.Front}
	if req.Back != nil {
		out = append(out, req.Back)
	}
	for _, a := range opts.SlotAssignments {
		if a.Source != layout.SourceCustom && a.Source != "" {
			continue
		}
		if tpl, ok := req.Templates[a.TemplateID]; ok && tpl != nil {
			out = append(out, tpl)
		}
	}
	return out
}

func (e *Engine) resolveLayout(ctx context.Context, req Request, opts Options) (*layout.ResolvedLayout, bool, error) {
	if opts.PrintLayoutID == "" {
		w, h := req.Front.Size()
		return layout.SingleCard(w, h), false, nil
	}
	var pl *layout.PrintLayout
	if e.Layouts != nil {
		pl, _ = e.Layouts(opts.PrintLayoutID)
	}
	if pl == nil {
		return nil, true, fmt.Errorf("%w: %s", ErrLayoutNotFound, opts.PrintLayoutID)
	}
	l := *pl
	if l.Grid == nil && len(l.Markup) == 0 && l.Path != "" {
		if e.Assets == nil {
			return nil, true, fmt.Errorf("版式 %s 需要读取 %s，但没有配置资源来源", l.ID, l.Path)
		}
		markup, err := e.Assets.Fetch(ctx, l.Path)
		if err != nil {
			return nil, true, fmt.Errorf("读取版式 %s 失败: %w", l.ID, err)
		}
		l.Markup = markup
	}
	resolved, err := layout.Resolve(l)
	if err != nil {
		return nil, true, err
	}
	return resolved, true, nil
}

func (e *Engine) sources(req Request) layout.Sources {
	formatter := e.Formatter
	if formatter == nil {
		formatter = binding.Formatter{}
	}
	return layout.Sources{
		Front: req.Front,
		Back:  req.Back,
		Template: func(id string) (*layout.Template, bool) {
			tpl, ok := req.Templates[id]
			return tpl, ok
		},
		Record: func(id string) (layout.Record, bool) {
			r, ok := req.Records[id]
			return r, ok
		},
		Mappings: func(templateID string) []layout.FieldMapping {
			return req.Mappings[templateID]
		},
		Formatter: formatter,
		Custom:    req.Custom,
	}
}

// collectAssets 取回计划中引用但调用方尚未提供的图片；取不到的图片按缺失处理。
func (e *Engine) collectAssets(ctx context.Context, req Request, plan *layout.Plan) (layout.Assets, []layout.Warning) {
	images := make(map[string][]byte, len(req.Images))
	for k, v := range req.Images {
		images[k] = v
	}
	var refs []string
	for _, card := range plan.Cards {
		for _, v := range card.Data {
			if v.Image == nil || v.Image.Src == "" {
				continue
			}
			if _, ok := images[v.Image.Src]; !ok {
				refs = append(refs, v.Image.Src)
			}
		}
	}
	var warnings []layout.Warning
	if len(refs) > 0 && e.Assets != nil {
		var fetched map[string][]byte
		fetched, warnings = e.Assets.Collect(ctx, refs, layout.WarnImageMissing)
		for k, v := range fetched {
			images[k] = v
		}
	}
	return layout.Assets{Fonts: req.Fonts, Images: images}, warnings
}

// missingFonts 检查模板声明引用的字体：既未提供又不是内置字体的，渲染时走回退字体。
func missingFonts(plan *layout.Plan, available map[string][]byte) []layout.Warning {
	builtin := map[string]bool{}
	for _, name := range fonts.Names() {
		builtin[name] = true
	}
	seen := map[string]bool{}
	var warnings []layout.Warning
	for _, card := range plan.Cards {
		for _, family := range card.Template.Fonts {
			if family == "" || seen[family] {
				continue
			}
			seen[family] = true
			if len(available[family]) > 0 || builtin[strings.ToLower(family)] {
				continue
			}
			logging.Logger().Warn("模板字体缺失", "template", card.TemplateID, "family", family)
			warnings = append(warnings, layout.NewWarning(layout.WarnFontMissing, "模板 %s 引用的字体 %s 不可用，将使用回退字体", card.TemplateID, family))
		}
	}
	return warnings
}

// colorMap 查找颜色校正表；找不到时不做校正并记录警告。
func (e *Engine) colorMap(opts Options) (colorfix.Map, []layout.Warning) {
	if opts.ColorProfileID == "" {
		return nil, nil
	}
	if e.ColorProfiles == nil {
		return nil, []layout.Warning{layout.NewWarning(layout.WarnColorProfile, "未配置颜色校正，忽略配置 %s", opts.ColorProfileID)}
	}
	m, err := e.ColorProfiles(opts.ColorProfileID)
	if err != nil {
		logging.Logger().Warn("颜色校正表不可用", "profile", opts.ColorProfileID, "err", err)
		return nil, []layout.Warning{layout.NewWarning(layout.WarnColorProfile, "颜色校正配置 %s 不可用: %v", opts.ColorProfileID, err)}
	}
	return m, nil
}

func (e *Engine) renderVector(plan *layout.Plan, assets layout.Assets, colors colorfix.Map) ([]byte, []layout.Warning, error) {
	card := plan.Cards[0]
	data, warnings, err := e.Vector.RenderSVG(card.Template, card.Data, assets)
	if err != nil {
		return nil, warnings, err
	}
	if len(colors) > 0 {
		if data, err = colors.ApplyMarkup(data); err != nil {
			return nil, warnings, fmt.Errorf("颜色校正失败: %w", err)
		}
	}
	return data, warnings, nil
}

func anyRendered(renders []image.Image) bool {
	for _, img := range renders {
		if img != nil {
			return true
		}
	}
	return false
}

func documentMeta(meta layout.DocumentMeta, fileName string) layout.DocumentMeta {
	if meta.Title == "" {
		meta.Title = strings.TrimSuffix(fileName, ".pdf")
	}
	if meta.Creator == "" {
		meta.Creator = "cardpress"
	}
	return meta
}

func templateName(tpl *layout.Template) string {
	if tpl == nil {
		return ""
	}
	if tpl.Name != "" {
		return tpl.Name
	}
	return tpl.ID
}
