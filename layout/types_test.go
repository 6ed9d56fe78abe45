package layout

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCardDataJSONAcceptsStringsAndImages(t *testing.T) {
	raw := `{"name":"Ada","photo":{"src":"ada.png","offsetX":0.9},"empty":null}`
	var data CardData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := CardData{
		"name":  TextValue("Ada"),
		"photo": ImageRef("ada.png", 1, 0.9, 0),
		"empty": {},
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("card data mismatch (-want +got):\n%s", diff)
	}
	img, ok := data.Image(FieldDefinition{ID: "photo", Type: FieldImage})
	if !ok || img.OffsetX != 0.5 {
		t.Fatalf("offset should be clamped to 0.5, got %+v", img)
	}
}

func TestCardDataTypeMismatchIsEmpty(t *testing.T) {
	fields := []FieldDefinition{
		{ID: "name", Type: FieldText},
		{ID: "photo", Type: FieldImage},
		{ID: "code", Type: FieldBarcode},
	}
	data := CardData{
		"name":  ImageRef("x.png", 1, 0, 0),
		"photo": TextValue("not an image"),
		"code":  TextValue("12345"),
	}
	if got := data.Text(fields[0]); got != "" {
		t.Fatalf("image value in text field should read as empty, got %q", got)
	}
	if _, ok := data.Image(fields[1]); ok {
		t.Fatalf("text value in image field should read as empty")
	}
	if diff := cmp.Diff([]string{"name", "photo"}, data.Mismatches(fields)); diff != "" {
		t.Fatalf("mismatches (-want +got):\n%s", diff)
	}
}

func TestFieldNative(t *testing.T) {
	cases := []struct {
		f    FieldDefinition
		want bool
	}{
		{FieldDefinition{Type: FieldImage, SourceID: "img1"}, true},
		{FieldDefinition{Type: FieldText, SourceID: "t1"}, true},
		{FieldDefinition{Type: FieldBarcode, SourceID: "b1"}, false},
		{FieldDefinition{Type: FieldText}, false},
	}
	for _, c := range cases {
		if got := c.f.Native(); got != c.want {
			t.Fatalf("Native(%+v) = %v, want %v", c.f, got, c.want)
		}
	}
}

func TestTemplateSizePx(t *testing.T) {
	w, h := TemplateMeta{Width: 96, Height: 48, Unit: "px"}.Size()
	if w.ToMM() != 25.4 || h.ToMM() != 12.7 {
		t.Fatalf("px template should use 96dpi, got %v x %v", w, h)
	}
}

func TestParseColor(t *testing.T) {
	for in, want := range map[string]Color{
		"#fff":      {255, 255, 255},
		"#1e90ff":   {30, 144, 255},
		"1E90FFAA":  {30, 144, 255},
		"not-a-hex": DefaultTextColor,
	} {
		if got := ResolveColor(in); got != want {
			t.Fatalf("ResolveColor(%q) = %+v, want %+v", in, got, want)
		}
	}
	if got := (Color{30, 144, 255}).Hex(); got != "#1e90ff" {
		t.Fatalf("Hex = %s", got)
	}
}
