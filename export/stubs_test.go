package export

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/ByLCY/cardpress/layout"
	"github.com/ByLCY/cardpress/renderer"
)

// solidRasterizer 以模板 id 决定的纯色渲染卡片，并记录调用次数。
type solidRasterizer struct {
	mu     sync.Mutex
	calls  int
	fill   color.RGBA
	failOn string
	onCall func(ctx context.Context) error
}

func (s *solidRasterizer) RenderCard(ctx context.Context, tpl *layout.Template, data layout.CardData, dpi layout.DPI, assets layout.Assets) (*image.RGBA, []layout.Warning, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.onCall != nil {
		if err := s.onCall(ctx); err != nil {
			return nil, nil, err
		}
	}
	if tpl.ID == s.failOn {
		return nil, nil, fmt.Errorf("字体损坏")
	}
	w, h := layout.PixelSize(layout.MM(tpl.Width), layout.MM(tpl.Height), dpi)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := s.fill
	if fill.A == 0 {
		fill = color.RGBA{R: 255, A: 255}
	}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)
	return img, nil, nil
}

// captureAssembler 记录最后一次组装的文档。
type captureAssembler struct {
	doc *layout.Document
}

func (c *captureAssembler) Render(doc *layout.Document) ([]byte, error) {
	c.doc = doc
	return []byte("%PDF-stub"), nil
}

type captureEncoder struct {
	img           image.Image
	width, height float64
	format        renderer.Format
}

func (c *captureEncoder) EncodeImage(img image.Image, width, height float64, format renderer.Format) ([]byte, error) {
	c.img, c.width, c.height, c.format = img, width, height, format
	return []byte("image-stub"), nil
}

type memoryAssets map[string][]byte

func (m memoryAssets) Fetch(_ context.Context, ref string) ([]byte, error) {
	data, ok := m[ref]
	if !ok {
		return nil, fmt.Errorf("%s 不存在", ref)
	}
	return data, nil
}

func (m memoryAssets) Collect(ctx context.Context, refs []string, code string) (map[string][]byte, []layout.Warning) {
	out := map[string][]byte{}
	var warnings []layout.Warning
	for _, ref := range refs {
		data, err := m.Fetch(ctx, ref)
		if err != nil {
			warnings = append(warnings, layout.NewWarning(code, "%v", err))
			continue
		}
		out[ref] = data
	}
	return out, warnings
}

func badge(id string) *layout.Template {
	return &layout.Template{
		TemplateMeta: layout.TemplateMeta{ID: id, Name: "Staff Badge", Width: 85.6, Height: 54, Unit: "mm"},
		Fields: []layout.FieldDefinition{
			{ID: "name", Label: "Name", Type: layout.FieldText, X: 10, Y: 10, Width: 80},
			{ID: "photo", Label: "Photo", Type: layout.FieldImage, X: 60, Y: 20, Width: 30, Height: 60},
		},
	}
}

func twoUpGrid() *layout.PrintLayout {
	return &layout.PrintLayout{
		ID:   "two-up",
		Name: "Two Up",
		Kind: layout.LayoutGrid,
		Grid: &layout.GridLayout{
			Name: "Two Up", Unit: "mm", PageWidth: 210, PageHeight: 297,
			CardsPerRow: 1, CardsPerPage: 2, MarginTop: 10, MarginLeft: 10,
			SpacingY: 5, CardWidth: 85.6, CardHeight: 54,
		},
	}
}

func layoutsOf(ls ...*layout.PrintLayout) func(string) (*layout.PrintLayout, bool) {
	return func(id string) (*layout.PrintLayout, bool) {
		for _, l := range ls {
			if l.ID == id {
				return l, true
			}
		}
		return nil, false
	}
}
