package export

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/cardpress/colorfix"
	"github.com/ByLCY/cardpress/layout"
	"github.com/ByLCY/cardpress/renderer"
	canvasrenderer "github.com/ByLCY/cardpress/renderer/canvas"
)

func newEngine(rast *solidRasterizer, asm *captureAssembler, enc *captureEncoder) (*Engine, *[]State) {
	var states []State
	e := &Engine{
		Rasterizer: rast,
		Layouts:    layoutsOf(twoUpGrid()),
		OnState:    func(s State) { states = append(states, s) },
	}
	if asm != nil {
		e.Assembler = asm
	}
	if enc != nil {
		e.Encoder = enc
	}
	return e, &states
}

func TestExportPaginatesAndDeduplicates(t *testing.T) {
	rast, asm := &solidRasterizer{}, &captureAssembler{}
	engine, states := newEngine(rast, asm, nil)
	custom := layout.SlotAssignment{Source: layout.SourceCustom, Side: layout.SideFront}
	res, err := engine.Export(context.Background(), Request{
		Front:  badge("badge"),
		Custom: layout.CardData{"name": layout.TextValue("Ada")},
		Options: Options{
			Format:          renderer.FormatPDF,
			DPI:             150,
			PrintLayoutID:   "two-up",
			SlotAssignments: []layout.SlotAssignment{custom, custom, custom},
		},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if diff := cmp.Diff([]State{Planning, Rendering, Assembling, Done}, *states); diff != "" {
		t.Fatalf("states mismatch (-want +got):\n%s", diff)
	}
	if rast.calls != 1 {
		t.Fatalf("identical cards should render once, got %d renders", rast.calls)
	}
	if res.Pages != 2 || len(asm.doc.Sheets) != 2 {
		t.Fatalf("expected 2 pages, got %d/%d", res.Pages, len(asm.doc.Sheets))
	}
	if n0, n1 := len(asm.doc.Sheets[0].Cards), len(asm.doc.Sheets[1].Cards); n0 != 2 || n1 != 1 {
		t.Fatalf("expected 2+1 placed cards, got %d+%d", n0, n1)
	}
	if asm.doc.Sheets[0].Cards[0].Image != asm.doc.Sheets[1].Cards[0].Image {
		t.Fatalf("duplicate slots should share one raster")
	}
	if got := asm.doc.Sheets[0].Cards[1].Rect.Y; math.Abs(got-layout.MMToPt(69)) > 1e-6 {
		t.Fatalf("second slot y = %v", got)
	}
	if res.FileName != "Staff-Badge-batch-3-cards-Two-Up.pdf" {
		t.Fatalf("file name = %q", res.FileName)
	}
	if asm.doc.Meta.Title != "Staff-Badge-batch-3-cards-Two-Up" {
		t.Fatalf("title = %q", asm.doc.Meta.Title)
	}
}

func TestExportQuickModeFillsOnePage(t *testing.T) {
	rast, asm := &solidRasterizer{}, &captureAssembler{}
	engine, _ := newEngine(rast, asm, nil)
	res, err := engine.Export(context.Background(), Request{
		Front:   badge("badge"),
		Options: Options{DPI: 96, PrintLayoutID: "two-up"},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Pages != 1 || len(asm.doc.Sheets[0].Cards) != 2 || rast.calls != 1 {
		t.Fatalf("quick mode should fill one page with one render: pages=%d cards=%d calls=%d",
			res.Pages, len(asm.doc.Sheets[0].Cards), rast.calls)
	}
}

func TestExportDatabaseMode(t *testing.T) {
	rast, asm := &solidRasterizer{}, &captureAssembler{}
	engine, _ := newEngine(rast, asm, nil)
	tpl := badge("badge")
	res, err := engine.Export(context.Background(), Request{
		Front: tpl,
		Records: map[string]layout.Record{
			"u1": {"firstName": "Ada", "lastName": "Lovelace"},
			"u2": {"firstName": "Alan", "lastName": "Turing"},
		},
		Mappings: map[string][]layout.FieldMapping{
			"badge": {{FieldID: "name", StandardName: "fullName"}},
		},
		Options: Options{
			DPI:           96,
			Mode:          ModeDatabase,
			PrintLayoutID: "two-up",
			SelectedIDs:   []string{"u1", "ghost", "u2"},
		},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if rast.calls != 2 || len(res.Plan.Cards) != 2 {
		t.Fatalf("expected 2 distinct cards, got %d renders", rast.calls)
	}
	if got := res.Plan.Cards[0].Data["name"].Text; got != "Ada Lovelace" {
		t.Fatalf("formatted name = %q", got)
	}
	if res.Pages != 2 || len(asm.doc.Sheets[0].Cards) != 1 {
		t.Fatalf("missing record leaves its slot empty: pages=%d", res.Pages)
	}
	if !hasWarning(res.Warnings, layout.WarnRecordMissing) {
		t.Fatalf("expected record-missing warning, got %+v", res.Warnings)
	}
}

func TestExportRejectsCallerErrors(t *testing.T) {
	base := func() Request {
		return Request{Front: badge("badge"), Options: Options{DPI: 150}}
	}
	cases := []struct {
		name   string
		mutate func(*Request)
		want   error
	}{
		{"zero dpi", func(r *Request) { r.Options.DPI = 0 }, ErrInvalidDPI},
		{"unknown format", func(r *Request) { r.Options.Format = "tiff" }, ErrUnsupportedFormat},
		{"png with layout", func(r *Request) {
			r.Options.Format = renderer.FormatPNG
			r.Options.PrintLayoutID = "two-up"
		}, ErrUnsupportedFormat},
		{"png batch", func(r *Request) {
			r.Options.Format = renderer.FormatPNG
			r.Options.Mode = ModeDatabase
			r.Options.SelectedIDs = []string{"a", "b"}
		}, ErrUnsupportedFormat},
		{"empty database batch", func(r *Request) { r.Options.Mode = ModeDatabase }, ErrNoAssignments},
		{"value mismatch", func(r *Request) {
			r.Custom = layout.CardData{"photo": layout.TextValue("not an image")}
		}, ErrValueMismatch},
		{"no template", func(r *Request) { r.Front = nil }, ErrNoTemplate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, states := newEngine(&solidRasterizer{}, &captureAssembler{}, &captureEncoder{})
			req := base()
			tc.mutate(&req)
			_, err := engine.Export(context.Background(), req)
			var ce *CallerError
			if !errors.As(err, &ce) || !errors.Is(err, tc.want) {
				t.Fatalf("expected caller error %v, got %v", tc.want, err)
			}
			if len(*states) != 0 {
				t.Fatalf("rejected requests must not start: %v", *states)
			}
		})
	}
}

func TestExportFatalErrors(t *testing.T) {
	engine, states := newEngine(&solidRasterizer{}, &captureAssembler{}, nil)
	_, err := engine.Export(context.Background(), Request{
		Front:   badge("badge"),
		Options: Options{DPI: 150, PrintLayoutID: "missing"},
	})
	var fe *FatalError
	if !errors.As(err, &fe) || fe.State != Planning || !errors.Is(err, ErrLayoutNotFound) {
		t.Fatalf("expected fatal layout error, got %v", err)
	}
	if diff := cmp.Diff([]State{Planning, Failed}, *states); diff != "" {
		t.Fatalf("states mismatch (-want +got):\n%s", diff)
	}

	_, err = engine.Export(context.Background(), Request{
		Front:   badge("badge"),
		Options: Options{DPI: 150, Mode: ModeDatabase, SelectedIDs: []string{"nobody"}},
	})
	if !errors.Is(err, ErrNoTemplates) {
		t.Fatalf("expected ErrNoTemplates, got %v", err)
	}

	broken, _ := newEngine(&solidRasterizer{failOn: "badge"}, &captureAssembler{}, nil)
	_, err = broken.Export(context.Background(), Request{Front: badge("badge"), Options: Options{DPI: 150}})
	if !errors.As(err, &fe) || fe.State != Rendering || !errors.Is(err, ErrNothingRendered) {
		t.Fatalf("expected fatal render error, got %v", err)
	}
}

func TestExportPartialFailureWarns(t *testing.T) {
	rast, asm := &solidRasterizer{failOn: "back"}, &captureAssembler{}
	engine, _ := newEngine(rast, asm, nil)
	res, err := engine.Export(context.Background(), Request{
		Front: badge("badge"),
		Back:  badge("back"),
		Options: Options{
			DPI:           96,
			PrintLayoutID: "two-up",
			SlotAssignments: []layout.SlotAssignment{
				{Source: layout.SourceCustom, Side: layout.SideFront},
				{Source: layout.SourceCustom, Side: layout.SideBack},
			},
		},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(asm.doc.Sheets) != 1 || len(asm.doc.Sheets[0].Cards) != 1 {
		t.Fatalf("failed card should leave its slot empty")
	}
	if !hasWarning(res.Warnings, layout.WarnRenderFailed) {
		t.Fatalf("expected render-failed warning, got %+v", res.Warnings)
	}
}

func TestExportCancellationReturnsNoOutput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rast := &solidRasterizer{onCall: func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	}}
	engine, states := newEngine(rast, &captureAssembler{}, nil)
	res, err := engine.Export(ctx, Request{Front: badge("badge"), Options: Options{DPI: 96}})
	if res != nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v %v", res, err)
	}
	if last := (*states)[len(*states)-1]; last != Failed {
		t.Fatalf("last state = %s", last)
	}
}

func TestExportSingleCardImage(t *testing.T) {
	enc := &captureEncoder{}
	engine, _ := newEngine(&solidRasterizer{}, nil, enc)
	res, err := engine.Export(context.Background(), Request{
		Front:   badge("badge"),
		Options: Options{Format: renderer.FormatPNG, DPI: 150},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.FileName != "Staff-Badge.png" || res.Pages != 1 || enc.format != renderer.FormatPNG {
		t.Fatalf("unexpected result %q pages=%d format=%s", res.FileName, res.Pages, enc.format)
	}
	if math.Abs(enc.width-layout.MMToPt(85.6)) > 1e-9 || math.Abs(enc.height-layout.MMToPt(54)) > 1e-9 {
		t.Fatalf("physical size = %vx%v", enc.width, enc.height)
	}
}

func TestExportWarnsAboutMissingTemplateFonts(t *testing.T) {
	engine, _ := newEngine(&solidRasterizer{}, nil, &captureEncoder{})
	tpl := badge("badge")
	tpl.Fonts = []string{"Brand Sans", "serif", "Inter", "Brand Sans"}
	res, err := engine.Export(context.Background(), Request{
		Front:   tpl,
		Fonts:   map[string][]byte{"Inter": []byte("ttf")},
		Options: Options{Format: renderer.FormatPNG, DPI: 72},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var missing []string
	for _, w := range res.Warnings {
		if w.Code == layout.WarnFontMissing {
			missing = append(missing, w.Message)
		}
	}
	if len(missing) != 1 || !strings.Contains(missing[0], "Brand Sans") {
		t.Fatalf("expected one warning for Brand Sans, got %v", missing)
	}
}

func TestExportSingleCardPDFPagePerCard(t *testing.T) {
	asm := &captureAssembler{}
	engine, _ := newEngine(&solidRasterizer{}, asm, nil)
	wide := badge("wide")
	wide.Width, wide.Height = 100, 60
	_, err := engine.Export(context.Background(), Request{
		Front:     badge("badge"),
		Templates: map[string]*layout.Template{"wide": wide},
		Options: Options{DPI: 72, SlotAssignments: []layout.SlotAssignment{
			{Source: layout.SourceCustom},
			{Source: layout.SourceCustom, TemplateID: "wide"},
		}},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(asm.doc.Sheets) != 2 {
		t.Fatalf("expected one page per card, got %d", len(asm.doc.Sheets))
	}
	if got := asm.doc.Sheets[1].Width; math.Abs(got-layout.MMToPt(100)) > 1e-9 {
		t.Fatalf("second page should match its card, width = %v", got)
	}
}

func TestExportColorCorrection(t *testing.T) {
	asm := &captureAssembler{}
	engine, _ := newEngine(&solidRasterizer{}, asm, nil)
	engine.ColorProfiles = func(id string) (colorfix.Map, error) {
		if id != "office" {
			return nil, errors.New("unknown profile")
		}
		return colorfix.Map{"#ff0000": "#0000ff"}, nil
	}
	if _, err := engine.Export(context.Background(), Request{
		Front:   badge("badge"),
		Options: Options{DPI: 72, ColorProfileID: "office"},
	}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	r, g, b, _ := asm.doc.Sheets[0].Cards[0].Image.At(1, 1).RGBA()
	if r != 0 || g != 0 || b != 0xffff {
		t.Fatalf("expected corrected blue card, got %v %v %v", r, g, b)
	}

	res, err := engine.Export(context.Background(), Request{
		Front:   badge("badge"),
		Options: Options{DPI: 72, ColorProfileID: "lab"},
	})
	if err != nil {
		t.Fatalf("an unknown profile only degrades: %v", err)
	}
	if !hasWarning(res.Warnings, layout.WarnColorProfile) {
		t.Fatalf("expected color-profile warning, got %+v", res.Warnings)
	}
}

type stubVector struct{}

func (stubVector) RenderSVG(tpl *layout.Template, data layout.CardData, assets layout.Assets) ([]byte, []layout.Warning, error) {
	return []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><rect fill="#ff0000" width="10" height="10"/></svg>`), nil, nil
}

func TestExportVectorSVG(t *testing.T) {
	engine, _ := newEngine(&solidRasterizer{}, nil, &captureEncoder{})
	engine.Vector = stubVector{}
	engine.ColorProfiles = func(string) (colorfix.Map, error) { return colorfix.Map{"#ff0000": "#00ff00"}, nil }
	res, err := engine.Export(context.Background(), Request{
		Front:   badge("badge"),
		Options: Options{Format: renderer.FormatSVG, DPI: 300, MaintainVectors: true, ColorProfileID: "p"},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(string(res.Data), `fill="#00ff00"`) || res.FileName != "Staff-Badge.svg" {
		t.Fatalf("unexpected vector output %s (%s)", res.Data, res.FileName)
	}
}

func TestExportFetchesSVGLayoutAndImages(t *testing.T) {
	asm := &captureAssembler{}
	engine, _ := newEngine(&solidRasterizer{}, asm, nil)
	engine.Layouts = layoutsOf(&layout.PrintLayout{ID: "tray", Name: "Tray", Kind: layout.LayoutSVG, Path: "layouts/tray.svg"})
	engine.Assets = memoryAssets{
		"layouts/tray.svg": []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 210 297">
  <rect width="210" height="297" fill="#eeeeee"/>
  <g id="Topcard"><rect x="10" y="10" width="85.6" height="54"/></g>
  <g id="Bottomcard"><rect x="10" y="100" width="85.6" height="54"/></g>
</svg>`),
	}
	res, err := engine.Export(context.Background(), Request{
		Front:   badge("badge"),
		Custom:  layout.CardData{"photo": layout.ImageRef("missing.png", 1, 0, 0)},
		Options: Options{DPI: 30, PrintLayoutID: "tray"},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	sheet := asm.doc.Sheets[0]
	if len(sheet.Cards) != 2 || sheet.Background == nil {
		t.Fatalf("expected both placeholders filled over the tray artwork")
	}
	if math.Abs(sheet.Height-layout.MMToPt(297)) > 1e-9 {
		t.Fatalf("page height = %v", sheet.Height)
	}
	if !hasWarning(res.Warnings, layout.WarnImageMissing) {
		t.Fatalf("missing image should be reported, got %+v", res.Warnings)
	}
}

func TestExportWithCanvasRenderer(t *testing.T) {
	r := canvasrenderer.NewRenderer()
	engine := &Engine{Rasterizer: r, Assembler: r, Encoder: r}
	tpl := badge("badge")
	res, err := engine.Export(context.Background(), Request{
		Front:   tpl,
		Custom:  layout.CardData{"name": layout.TextValue("Ada")},
		Options: Options{Format: renderer.FormatPNG, DPI: 150},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 506 || b.Dy() != 319 {
		t.Fatalf("raster size = %dx%d, want 506x319", b.Dx(), b.Dy())
	}
	if c := color.RGBAModel.Convert(img.At(0, 0)).(color.RGBA); c.A != 255 {
		t.Fatalf("card surface should be opaque, got %v", c)
	}

	res, err = engine.Export(context.Background(), Request{Front: tpl, Options: Options{DPI: 72}})
	if err != nil {
		t.Fatalf("Export pdf: %v", err)
	}
	if !bytes.HasPrefix(res.Data, []byte("%PDF")) {
		t.Fatalf("expected a PDF document")
	}
}

func hasWarning(ws []layout.Warning, code string) bool {
	for _, w := range ws {
		if w.Code == code {
			return true
		}
	}
	return false
}
