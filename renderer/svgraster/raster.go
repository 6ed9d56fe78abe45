// Package svgraster rasterizes template backgrounds and layout artwork by
// wrapping oksvg and rasterx.
package svgraster

import (
	"bytes"
	"fmt"
	"image"
	"strconv"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/ByLCY/cardpress/svgdoc"
)

// RasterizeAt 先把 width/height 写入根元素，再光栅化为同样大小的位图。
func RasterizeAt(markup []byte, width, height int) (*image.RGBA, error) {
	doc, err := svgdoc.Parse(markup)
	if err != nil {
		return nil, err
	}
	sized, err := doc.WithSize(strconv.Itoa(width), strconv.Itoa(height)).Bytes()
	if err != nil {
		return nil, err
	}
	return Rasterize(sized, width, height)
}

// Rasterize 把 SVG 绘制到 width×height 的透明画布上，按 viewBox 拉伸到整个画布。
// 调用方应先把同样的 width/height 写回 SVG 根元素，否则内嵌字号会按原尺寸解释。
func Rasterize(markup []byte, width, height int) (img *image.RGBA, err error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("光栅尺寸无效: %dx%d", width, height)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(markup), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("解析 SVG 失败: %w", err)
	}
	// oksvg 在个别畸形路径上会 panic，这里转成普通错误
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("光栅化 SVG 失败: %v", r)
		}
	}()
	icon.SetTarget(0, 0, float64(width), float64(height))
	img = image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(width, height, scanner), 1.0)
	return img, nil
}
