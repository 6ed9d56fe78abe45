package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/ByLCY/cardpress/assets"
	"github.com/ByLCY/cardpress/colorfix"
	"github.com/ByLCY/cardpress/config"
	"github.com/ByLCY/cardpress/export"
	"github.com/ByLCY/cardpress/layout"
	"github.com/ByLCY/cardpress/logging"
	"github.com/ByLCY/cardpress/renderer"
	canvasrenderer "github.com/ByLCY/cardpress/renderer/canvas"
	"github.com/ByLCY/cardpress/renderer/svgcard"
)

// cliArgs 汇总命令行参数。
type cliArgs struct {
	configPath  string
	front       string
	back        string
	templates   string
	data        string
	records     string
	mappings    string
	slots       string
	layoutID    string
	format      string
	dpi         float64
	mode        string
	ids         string
	vector      bool
	profile     string
	outDir      string
	debug       string
	listLayouts bool
}

func main() {
	var args cliArgs
	flag.StringVar(&args.configPath, "config", "cardpress.yaml", "配置文件路径")
	flag.StringVar(&args.front, "template", "", "正面模板 JSON")
	flag.StringVar(&args.back, "back", "", "背面模板 JSON")
	flag.StringVar(&args.templates, "templates", "", "可被槽位覆盖引用的其他模板 JSON，逗号分隔")
	flag.StringVar(&args.data, "data", "", "自定义字段值 JSON 文件")
	flag.StringVar(&args.records, "records", "", "用户记录 JSON 文件（id → 记录）")
	flag.StringVar(&args.mappings, "mappings", "", "字段映射 JSON 文件（模板 id → 映射列表）")
	flag.StringVar(&args.slots, "slots", "", "槽位分配 JSON 文件")
	flag.StringVar(&args.layoutID, "layout", "", "打印版式 id（在 layoutsDir 中查找）")
	flag.StringVar(&args.format, "format", "pdf", "输出格式 pdf|png|svg")
	flag.Float64Var(&args.dpi, "dpi", 0, "光栅分辨率，0 表示使用配置值")
	flag.StringVar(&args.mode, "mode", "quick", "quick|database")
	flag.StringVar(&args.ids, "ids", "", "数据库模式选中的记录 id，逗号分隔")
	flag.BoolVar(&args.vector, "vector", false, "svg 输出保留模板矢量")
	flag.StringVar(&args.profile, "profile", "", "颜色校正配置 id")
	flag.StringVar(&args.outDir, "out", "output", "输出目录")
	flag.StringVar(&args.debug, "debug", "", "放置计划调试 JSON 输出路径")
	flag.BoolVar(&args.listLayouts, "list-layouts", false, "列出可用打印版式后退出")
	flag.Parse()

	cfg, err := config.Load(args.configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logging.ParseLevel(cfg.LogLevel)})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if args.listLayouts {
		if err := listLayouts(cfg); err != nil {
			log.Fatalf("读取版式失败: %v", err)
		}
		return
	}

	res, err := run(ctx, args, cfg)
	if err != nil {
		log.Fatalf("导出失败: %v", err)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "警告 [%s] %s\n", w.Code, w.Message)
	}
	fmt.Printf("已生成 %s：%d 页，%d 条警告\n", filepath.Join(args.outDir, res.FileName), res.Pages, len(res.Warnings))
}

// run 读取输入、执行导出并写出文件。
func run(ctx context.Context, args cliArgs, cfg config.Config) (*export.Result, error) {
	if args.front == "" {
		return nil, fmt.Errorf("必须通过 -template 指定正面模板")
	}
	fetcher := &assets.Fetcher{
		BaseDir: filepath.Dir(args.front),
		Timeout: cfg.AssetTimeout.Std(),
		Workers: cfg.Workers,
	}

	req, err := buildRequest(args, cfg)
	if err != nil {
		return nil, err
	}
	fonts, fontWarnings := fetcher.CollectFonts(ctx, cfg.Fonts)
	req.Fonts = fonts

	var catalog map[string]*layout.PrintLayout
	if args.layoutID != "" {
		if catalog, err = layout.LoadCatalog(cfg.LayoutsDir, cfg.Placeholders); err != nil {
			return nil, err
		}
	}

	r := canvasrenderer.NewRenderer()
	engine := &export.Engine{
		Rasterizer: r,
		Assembler:  r,
		Encoder:    r,
		Vector:     svgcard.New(r),
		Assets:     fetcher,
		Workers:    cfg.Workers,
		Layouts: func(id string) (*layout.PrintLayout, bool) {
			l, ok := catalog[id]
			return l, ok
		},
		ColorProfiles: func(id string) (colorfix.Map, error) {
			path, ok := cfg.ColorProfiles[id]
			if !ok {
				return nil, fmt.Errorf("未配置颜色校正 %s", id)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return colorfix.Parse(data)
		},
		OnState: func(s export.State) {
			logging.Logger().Info("导出进度", "state", s.String())
		},
	}

	res, err := engine.Export(ctx, req)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(fontWarnings, res.Warnings...)

	if args.debug != "" {
		if err := writeDebug(res.Plan, args.debug); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(args.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(filepath.Join(args.outDir, res.FileName), res.Data, 0o644); err != nil {
		return nil, fmt.Errorf("写入输出文件失败: %w", err)
	}
	return res, nil
}

func buildRequest(args cliArgs, cfg config.Config) (export.Request, error) {
	req := export.Request{
		Templates: map[string]*layout.Template{},
		Meta:      layout.DocumentMeta{Author: cfg.Meta.Author, Creator: cfg.Meta.Creator},
		Options: export.Options{
			Format:          renderer.Format(args.format),
			DPI:             layout.DPI(cfg.DPI),
			MaintainVectors: args.vector,
			PrintLayoutID:   args.layoutID,
			Mode:            export.Mode(args.mode),
			SelectedIDs:     splitList(args.ids),
			ColorProfileID:  args.profile,
		},
	}
	if args.dpi != 0 {
		req.Options.DPI = layout.DPI(args.dpi)
	}

	var err error
	if req.Front, err = layout.LoadTemplate(args.front); err != nil {
		return req, err
	}
	req.Templates[req.Front.ID] = req.Front
	if args.back != "" {
		if req.Back, err = layout.LoadTemplate(args.back); err != nil {
			return req, err
		}
		req.Templates[req.Back.ID] = req.Back
	}
	for _, path := range splitList(args.templates) {
		tpl, err := layout.LoadTemplate(path)
		if err != nil {
			return req, err
		}
		req.Templates[tpl.ID] = tpl
	}

	inputs := []struct {
		path string
		dst  any
	}{
		{args.data, &req.Custom},
		{args.records, &req.Records},
		{args.mappings, &req.Mappings},
		{args.slots, &req.Options.SlotAssignments},
	}
	for _, in := range inputs {
		if in.path == "" {
			continue
		}
		if err := readJSON(in.path, in.dst); err != nil {
			return req, err
		}
	}
	return req, nil
}

func listLayouts(cfg config.Config) error {
	catalog, err := layout.LoadCatalog(cfg.LayoutsDir, cfg.Placeholders)
	if err != nil {
		return err
	}
	for _, id := range layout.CatalogIDs(catalog) {
		l := catalog[id]
		fmt.Printf("%s\t%s\t%s\n", id, l.Kind, l.DisplayName())
	}
	return nil
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeDebug(plan *layout.Plan, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(plan, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
