package layout

import (
	"math"
	"testing"
)

// TestPtMmRoundTrip 验证 pt↔mm 换算的往返精度（允许极小的浮点误差）。
func TestPtMmRoundTrip(t *testing.T) {
	samples := []float64{0, 0.001, 1, 12, 14.4, 72, 96, 144, 1000}
	for _, pt := range samples {
		back := MMToPt(PtToMM(pt))
		if diff := math.Abs(back - pt); diff > 1e-9 {
			t.Fatalf("pt→mm→pt 往返误差过大: in=%gpt back=%g diff=%g", pt, back, diff)
		}
	}
	for _, mm := range samples {
		back := PtToMM(MMToPt(mm))
		if diff := math.Abs(back - mm); diff > 1e-9 {
			t.Fatalf("mm→pt→mm 往返误差过大: in=%gmm back=%g diff=%g", mm, back, diff)
		}
	}
}

func TestPxMmRoundTrip(t *testing.T) {
	for _, dpi := range []DPI{1, 72, 96, 150, 300, 600, 1200.5} {
		for _, mm := range []float64{0, 0.1, 1, 54, 85.6, 210, 297} {
			back := PxToMM(MMToPx(mm, dpi), dpi)
			if diff := math.Abs(back - mm); diff > 1e-9 {
				t.Fatalf("dpi=%g: mm→px→mm 往返误差过大: in=%g back=%g", float64(dpi), mm, back)
			}
		}
	}
}

// TestLengthToConversions 覆盖 Length 在常见单位上的转换正确性（到 mm/pt）。
func TestLengthToConversions(t *testing.T) {
	// 1 in = 25.4 mm
	if got := IN(1).ToMM(); math.Abs(got-25.4) > 1e-9 {
		t.Fatalf("1in 转 mm 期望 25.4，实际 %g", got)
	}
	// 2.54 cm = 25.4 mm
	cm := Length{Value: 2.54, Unit: UnitCM}
	if got := cm.ToMM(); math.Abs(got-25.4) > 1e-9 {
		t.Fatalf("2.54cm 转 mm 期望 25.4，实际 %g", got)
	}
	if got := PT(12).ToMM(); math.Abs(got-12*PtToMm) > 1e-9 {
		t.Fatalf("12pt 转 mm 期望 %g，实际 %g", 12*PtToMm, got)
	}
	if got := MM(10).ToPT(); math.Abs(got-10*MmToPt) > 1e-9 {
		t.Fatalf("10mm 转 pt 期望 %g，实际 %g", 10*MmToPt, got)
	}
	// 96 CSS px = 1 in
	px := Length{Value: 96, Unit: UnitPX}
	if got := px.ToMM(); math.Abs(got-25.4) > 1e-9 {
		t.Fatalf("96px 转 mm 期望 25.4，实际 %g", got)
	}
	if got := IN(8.5).ToPT(); math.Abs(got-612) > 1e-9 {
		t.Fatalf("8.5in 转 pt 期望 612，实际 %g", got)
	}
}

func TestPixelSizeCR80At150DPI(t *testing.T) {
	w, h := PixelSize(MM(85.6), MM(54), 150)
	wantW := int(math.Round(85.6 / 25.4 * 150))
	wantH := int(math.Round(54 / 25.4 * 150))
	if w != wantW || h != wantH {
		t.Fatalf("期望 %dx%d，实际 %dx%d", wantW, wantH, w, h)
	}
	if w != 506 || h != 319 {
		t.Fatalf("CR80 @150dpi 期望 506x319，实际 %dx%d", w, h)
	}
}

func TestPixelSizeAtLeastOne(t *testing.T) {
	w, h := PixelSize(MM(0.01), MM(0), 72)
	if w != 1 || h != 1 {
		t.Fatalf("最小尺寸应为 1x1，实际 %dx%d", w, h)
	}
}

func TestPercentClamp(t *testing.T) {
	cases := []struct {
		pct, want float64
	}{
		{150, 100},
		{-20, 0},
		{50, 50},
	}
	for _, c := range cases {
		if got := PercentToAbs(c.pct, 200); got != c.want/100*200 {
			t.Fatalf("PercentToAbs(%g, 200) = %g, want %g", c.pct, got, c.want/100*200)
		}
	}
}

func TestNonFinitePanics(t *testing.T) {
	for name, fn := range map[string]func(){
		"nan mm":      func() { MMToPt(math.NaN()) },
		"inf inch":    func() { InchToMM(math.Inf(1)) },
		"zero dpi":    func() { PxToMM(10, 0) },
		"percent len": func() { Length{Value: 10, Unit: UnitPercent}.ToMM() },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("期望 panic")
				}
			}()
			fn()
		})
	}
}

func TestParseRawLengthStr(t *testing.T) {
	cases := map[string]Length{
		"85.6mm": {Value: 85.6, Unit: UnitMM},
		"3.5in":  {Value: 3.5, Unit: UnitIN},
		" 12pt ": {Value: 12, Unit: UnitPT},
		"40%":    {Value: 40, Unit: UnitPercent},
		"7":      {Value: 7, Unit: UnitNone},
		"abc":    {Value: 0, Unit: UnitNone},
	}
	for in, want := range cases {
		if got := ParseRawLengthStr(in); got != want {
			t.Fatalf("ParseRawLengthStr(%q) = %+v, want %+v", in, got, want)
		}
	}
}

// TestLineHeightResolve 验证行高解析：倍数与绝对值两种语义。
func TestLineHeightResolve(t *testing.T) {
	if got := CardLineHeight.Resolve(20); math.Abs(got-24) > 1e-9 {
		t.Fatalf("1.2x 行高错误: got=%g want=24", got)
	}
	abs := LineHeightSpec{Kind: LineHeightAbsolute, Len: PT(18)}
	if got := abs.Resolve(12); got != 18 {
		t.Fatalf("绝对行高错误: got=%g want=18", got)
	}
}
