package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadCatalog 读取版式目录：*.json 为 PrintLayout，*.svg 为 SVG 版式（id 取文件名），
// *.cardlayout 中每个网格版式按名称登记。placeholders 作为未声明占位组时的默认值。
func LoadCatalog(dir string, placeholders []string) (map[string]*PrintLayout, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取版式目录 %s 失败: %w", dir, err)
	}
	out := map[string]*PrintLayout{}
	add := func(l *PrintLayout) error {
		if _, dup := out[l.ID]; dup {
			return fmt.Errorf("版式 id %s 重复", l.ID)
		}
		if l.Kind != LayoutGrid && len(l.Placeholders) == 0 {
			l.Placeholders = placeholders
		}
		out[l.ID] = l
		return nil
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		switch ext {
		case ".svg":
			if err := add(&PrintLayout{ID: stem, Name: stem, Kind: LayoutSVG, Path: path}); err != nil {
				return nil, err
			}
		case ".json":
			l, err := readLayoutJSON(path, stem)
			if err != nil {
				return nil, err
			}
			if err := add(l); err != nil {
				return nil, err
			}
		case ".cardlayout":
			file, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			grids, err := ParseGridLayouts(file)
			file.Close()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			for i := range grids {
				g := grids[i]
				if err := add(&PrintLayout{ID: g.Name, Name: g.Name, Kind: LayoutGrid, Grid: &g}); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

// readLayoutJSON 接受 PrintLayout，或直接是一个网格版式对象。
func readLayoutJSON(path, stem string) (*PrintLayout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l PrintLayout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("解析版式 %s 失败: %w", path, err)
	}
	if l.Kind == "" && l.Grid == nil && l.Path == "" {
		var g GridLayout
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("解析网格版式 %s 失败: %w", path, err)
		}
		l = PrintLayout{Name: g.Name, Kind: LayoutGrid, Grid: &g}
	}
	if l.ID == "" {
		l.ID = stem
	}
	if l.Kind == "" {
		l.Kind = LayoutGrid
		if l.Grid == nil {
			l.Kind = LayoutSVG
		}
	}
	if l.Path != "" && !filepath.IsAbs(l.Path) {
		l.Path = filepath.Join(filepath.Dir(path), l.Path)
	}
	return &l, nil
}

// CatalogIDs 返回排好序的版式 id。
func CatalogIDs(catalog map[string]*PrintLayout) []string {
	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
