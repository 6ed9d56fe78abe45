package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"tray.svg":         `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 210 297"/>`,
		"letter.json":      `{"name":"Letter 10-up","unit":"in","pageWidth":8.5,"pageHeight":11,"cardsPerRow":2,"cardsPerPage":10,"cardWidth":3.5,"cardHeight":2}`,
		"custom.json":      `{"id":"pvc","name":"PVC tray","kind":"svg","path":"art/pvc.svg","placeholders":["Slot1"]}`,
		"stock.cardlayout": `layout cr80 { unit: mm; page: 210 297; columns: 2; cards: 8; card: 85.6 54 }`,
		"notes.txt":        "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	catalog, err := LoadCatalog(dir, []string{"Topcard", "Bottomcard"})
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if diff := cmp.Diff([]string{"cr80", "letter", "pvc", "tray"}, CatalogIDs(catalog)); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	if got := catalog["tray"]; got.Kind != LayoutSVG || got.Path != filepath.Join(dir, "tray.svg") {
		t.Fatalf("unexpected svg layout %+v", got)
	}
	if diff := cmp.Diff([]string{"Topcard", "Bottomcard"}, catalog["tray"].Placeholders); diff != "" {
		t.Fatalf("default placeholders mismatch (-want +got):\n%s", diff)
	}
	if got := catalog["pvc"]; got.Path != filepath.Join(dir, "art", "pvc.svg") || got.Placeholders[0] != "Slot1" {
		t.Fatalf("unexpected json svg layout %+v", got)
	}
	letter := catalog["letter"]
	if letter.Kind != LayoutGrid || letter.DisplayName() != "Letter 10-up" {
		t.Fatalf("unexpected grid layout %+v", letter)
	}
	resolved, err := Resolve(*letter)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.SlotsPerPage() != 10 {
		t.Fatalf("slots = %d", resolved.SlotsPerPage())
	}
	if g := catalog["cr80"].Grid; g == nil || g.CardsPerPage != 8 {
		t.Fatalf("unexpected dsl layout %+v", catalog["cr80"])
	}
}
