package export

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/ByLCY/cardpress/layout"
)

func planOf(t *testing.T, tpls ...*layout.Template) *layout.Plan {
	t.Helper()
	plan := &layout.Plan{SlotsPerPage: 1, Pages: len(tpls)}
	for i, tpl := range tpls {
		plan.Cards = append(plan.Cards, layout.PlannedCard{Key: tpl.ID, TemplateID: tpl.ID, Template: tpl, Uses: 1})
		plan.Entries = append(plan.Entries, layout.PlanEntry{Page: i, Card: i, Assignment: i})
	}
	return plan
}

func TestCompositeKeepsPlanOrder(t *testing.T) {
	plan := planOf(t, badge("a"), badge("b"), badge("c"), badge("d"), badge("e"))
	rast := &solidRasterizer{}
	renders, warnings, err := (&Compositor{Rasterizer: rast, Workers: 2}).Composite(context.Background(), plan, 72, layout.Assets{})
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if len(renders) != 5 || len(warnings) != 0 || rast.calls != 5 {
		t.Fatalf("renders=%d warnings=%v calls=%d", len(renders), warnings, rast.calls)
	}
	for i, img := range renders {
		if img == nil {
			t.Fatalf("card %d missing", i)
		}
	}
}

func TestCompositeAbsorbsSingleFailure(t *testing.T) {
	plan := planOf(t, badge("ok"), badge("broken"))
	renders, warnings, err := (&Compositor{Rasterizer: &solidRasterizer{failOn: "broken"}}).Composite(context.Background(), plan, 72, layout.Assets{})
	if err != nil {
		t.Fatalf("a single bad card must not abort the batch: %v", err)
	}
	if renders[0] == nil || renders[1] != nil {
		t.Fatalf("unexpected renders %v", renders)
	}
	if len(warnings) != 1 || warnings[0].Code != layout.WarnRenderFailed {
		t.Fatalf("expected render-failed warning, got %+v", warnings)
	}
}

func TestCompositeAppliesCorrection(t *testing.T) {
	plan := planOf(t, badge("a"))
	blue := color.RGBA{B: 255, A: 255}
	comp := &Compositor{
		Rasterizer: &solidRasterizer{},
		Correct: func(img image.Image) image.Image {
			out := image.NewRGBA(img.Bounds())
			for i := range out.Pix {
				out.Pix[i] = []byte{blue.R, blue.G, blue.B, blue.A}[i%4]
			}
			return out
		},
	}
	renders, _, err := comp.Composite(context.Background(), plan, 72, layout.Assets{})
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if got := renders[0].At(0, 0); got != blue {
		t.Fatalf("correction not applied, got %v", got)
	}
}

func TestCompositeCancellationDiscardsResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rast := &solidRasterizer{onCall: func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	}}
	renders, _, err := (&Compositor{Rasterizer: rast, Workers: 1}).Composite(ctx, planOf(t, badge("a"), badge("b")), 72, layout.Assets{})
	if !errors.Is(err, context.Canceled) || renders != nil {
		t.Fatalf("expected cancellation without results, got %v %v", renders, err)
	}
}
