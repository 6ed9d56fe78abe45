package canvasrenderer

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/qr"
	"github.com/disintegration/imaging"

	"github.com/ByLCY/cardpress/layout"
)

// 未设置宽高的条码字段默认占画布的百分比。
const (
	defaultBarcodeWidth  = 40.0
	defaultBarcodeHeight = 15.0
)

// barcodeBox 返回条码的绘制框；qr 码取正方形。
func barcodeBox(f layout.FieldDefinition, w, h int) pxBox {
	box := fieldBox(f, w, h)
	if box.W <= 0 {
		box.W = math.Min(layout.PercentToAbs(defaultBarcodeWidth, float64(w)), float64(w)-box.X)
	}
	if box.H <= 0 {
		box.H = math.Min(layout.PercentToAbs(defaultBarcodeHeight, float64(h)), float64(h)-box.Y)
	}
	if isQR(f.Style.BarcodeFormat) {
		side := math.Min(box.W, box.H)
		box.W, box.H = side, side
	}
	return box
}

func isQR(format string) bool {
	return strings.EqualFold(format, "qr") || strings.EqualFold(format, "qrcode")
}

// BarcodeImage 编码条码并缩放到 w×h。目标比条码模块数还窄时 barcode.Scale 会失败，改用最近邻缩放。
func BarcodeImage(value, format string, w, h int) (image.Image, error) {
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("条码尺寸无效: %dx%d", w, h)
	}
	var (
		code barcode.Barcode
		err  error
	)
	switch {
	case isQR(format):
		code, err = qr.Encode(value, qr.M, qr.Auto)
	case format == "" || strings.EqualFold(format, "code128"):
		code, err = code128.Encode(value)
	default:
		return nil, fmt.Errorf("不支持的条码格式 %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("编码条码 %q 失败: %w", value, err)
	}
	if scaled, err := barcode.Scale(code, w, h); err == nil {
		return scaled, nil
	}
	return imaging.Resize(code, w, h, imaging.NearestNeighbor), nil
}
