package svgraster

import "testing"

func TestRasterizeFillsTarget(t *testing.T) {
	markup := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="40" height="20" viewBox="0 0 4 2">
  <rect x="0" y="0" width="2" height="2" fill="#ff0000"/>
</svg>`)
	img, err := Rasterize(markup, 40, 20)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Fatalf("unexpected bounds %v", b)
	}
	if got := img.RGBAAt(5, 10); got.R < 250 || got.G > 5 || got.A < 250 {
		t.Fatalf("left half should be red, got %v", got)
	}
	if got := img.RGBAAt(35, 10); got.A != 0 {
		t.Fatalf("right half should stay transparent, got %v", got)
	}
}

func TestRasterizeRejectsEmptyTarget(t *testing.T) {
	if _, err := Rasterize([]byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`), 0, 10); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestRasterizeAtForcesSize(t *testing.T) {
	markup := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="4" height="2"><rect width="4" height="2" fill="#0000ff"/></svg>`)
	img, err := RasterizeAt(markup, 40, 20)
	if err != nil {
		t.Fatalf("RasterizeAt: %v", err)
	}
	if got := img.RGBAAt(35, 15); got.B < 250 || got.A < 250 {
		t.Fatalf("markup should cover the whole target, got %v", got)
	}
}

func TestRasterizeAtScalesPhysicalSize(t *testing.T) {
	// 85.6mm ≈ 323.5 用户单位，右半幅从 x=162 开始
	markup := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="85.6mm" height="54mm"><rect x="162" width="162" height="205" fill="#ff0000"/></svg>`)
	img, err := RasterizeAt(markup, 100, 63)
	if err != nil {
		t.Fatalf("RasterizeAt: %v", err)
	}
	if got := img.RGBAAt(75, 30); got.R < 250 || got.A < 250 {
		t.Fatalf("right half should be red, got %v", got)
	}
	if got := img.RGBAAt(25, 30); got.A != 0 {
		t.Fatalf("left half should stay transparent, got %v", got)
	}
}
