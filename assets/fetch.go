// Package assets 取回渲染所需的外部资源（图片、字体、版式 SVG）。
// 每次取回都有独立超时；取不到的资源由调用方按缺失处理。
package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/cardpress/layout"
	"github.com/ByLCY/cardpress/logging"
)

// DefaultTimeout 是单个资源的默认取回超时。
const DefaultTimeout = 10 * time.Second

// maxAssetSize 限制单个资源的大小。
const maxAssetSize = 64 << 20

// ErrEmptyRef 表示资源引用为空。
var ErrEmptyRef = errors.New("资源引用为空")

// Fetcher resolves file paths, file:// and http(s):// URLs and data: URIs.
type Fetcher struct {
	// BaseDir 是相对路径的基准目录。
	BaseDir string
	// Timeout 为 0 时使用 DefaultTimeout。
	Timeout time.Duration
	// Client 为 nil 时使用 http.DefaultClient。
	Client *http.Client
	// Workers 限制 Collect 的并发数，≤0 表示 4。
	Workers int
}

// Fetch 取回单个资源。
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrEmptyRef
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch {
	case strings.HasPrefix(ref, "data:"):
		return decodeDataURI(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return f.fetchHTTP(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("资源地址 %s 无效: %w", ref, err)
		}
		return readFile(ctx, u.Path)
	default:
		return readFile(ctx, f.resolve(ref))
	}
}

// Collect 并发取回一组资源。失败的资源不会出现在结果中，只产生警告；
// 警告按 refs 中首次出现的顺序排列，与取回完成的先后无关。
func (f *Fetcher) Collect(ctx context.Context, refs []string, code string) (map[string][]byte, []layout.Warning) {
	unique := make([]string, 0, len(refs))
	seen := map[string]bool{}
	for _, ref := range refs {
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		unique = append(unique, ref)
	}

	blobs := make([][]byte, len(unique))
	errs := make([]error, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	workers := f.Workers
	if workers <= 0 {
		workers = 4
	}
	g.SetLimit(workers)
	for i, ref := range unique {
		g.Go(func() error {
			blobs[i], errs[i] = f.Fetch(gctx, ref)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string][]byte, len(unique))
	var warnings []layout.Warning
	for i, ref := range unique {
		if err := errs[i]; err != nil {
			logging.Logger().Warn("资源取回失败", "ref", shorten(ref), "err", err)
			warnings = append(warnings, layout.NewWarning(code, "资源 %s 不可用: %v", shorten(ref), err))
			continue
		}
		out[ref] = blobs[i]
	}
	return out, warnings
}

// CollectFonts 按字体族名取回字体文件；取回失败的族名视为缺失。
func (f *Fetcher) CollectFonts(ctx context.Context, fonts map[string]string) (map[string][]byte, []layout.Warning) {
	refs := make([]string, 0, len(fonts))
	for _, path := range fonts {
		refs = append(refs, path)
	}
	sort.Strings(refs)
	blobs, warnings := f.Collect(ctx, refs, layout.WarnFontMissing)
	out := make(map[string][]byte, len(fonts))
	for family, path := range fonts {
		if data, ok := blobs[path]; ok {
			out[family] = data
		}
	}
	return out, warnings
}

func (f *Fetcher) resolve(path string) string {
	if filepath.IsAbs(path) || f.BaseDir == "" {
		return path
	}
	return filepath.Join(f.BaseDir, path)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, ref string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("下载 %s 失败: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载 %s 失败: HTTP %d", ref, resp.StatusCode)
	}
	return readLimited(resp.Body)
}

// readFile 在 ctx 到期时放弃等待。
func readFile(ctx context.Context, path string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		file, err := os.Open(path)
		if err != nil {
			done <- result{err: err}
			return
		}
		defer file.Close()
		data, err := readLimited(file)
		done <- result{data: data, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("读取 %s 超时: %w", path, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("读取 %s 失败: %w", path, res.err)
		}
		return res.data, nil
	}
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxAssetSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxAssetSize {
		return nil, fmt.Errorf("资源超过 %d 字节", maxAssetSize)
	}
	return data, nil
}

// decodeDataURI 支持 data:[<mediatype>][;base64],<data>。
func decodeDataURI(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("data URI 缺少 ','")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("data URI base64 解码失败: %w", err)
		}
		return data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data URI 解码失败: %w", err)
	}
	return []byte(text), nil
}

func shorten(ref string) string {
	if strings.HasPrefix(ref, "data:") && len(ref) > 48 {
		return ref[:48] + "…"
	}
	return ref
}
