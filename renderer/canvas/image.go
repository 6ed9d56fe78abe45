package canvasrenderer

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"

	"github.com/ByLCY/cardpress/layout"
)

// pxBox 是字段在光栅画布上的矩形（像素，左上角原点）。
type pxBox struct {
	X, Y, W, H float64
}

func (b pxBox) rect() image.Rectangle {
	return image.Rect(
		int(math.Round(b.X)), int(math.Round(b.Y)),
		int(math.Round(b.X+b.W)), int(math.Round(b.Y+b.H)),
	)
}

// fieldBox 把字段的百分比坐标换算为画布像素；越界百分比被钳制到 [0,100]，宽高不超出画布。
func fieldBox(f layout.FieldDefinition, w, h int) pxBox {
	fw, fh := float64(w), float64(h)
	box := pxBox{X: layout.PercentToAbs(f.X, fw), Y: layout.PercentToAbs(f.Y, fh)}
	if f.Width > 0 {
		box.W = math.Min(layout.PercentToAbs(f.Width, fw), fw-box.X)
	}
	if f.Height > 0 {
		box.H = math.Min(layout.PercentToAbs(f.Height, fh), fh-box.Y)
	}
	return box
}

// defaultImageWidth 是未设置宽度的图片字段所占画布宽度百分比。
const defaultImageWidth = 25.0

// imageClip 返回图片字段的裁剪框；未设置高度时按源图宽高比推算。
func imageClip(f layout.FieldDefinition, src image.Image, w, h int) image.Rectangle {
	box := fieldBox(f, w, h)
	if box.W <= 0 {
		box.W = math.Min(layout.PercentToAbs(defaultImageWidth, float64(w)), float64(w)-box.X)
	}
	if box.H <= 0 {
		b := src.Bounds()
		if b.Dx() > 0 {
			box.H = math.Min(box.W*float64(b.Dy())/float64(b.Dx()), float64(h)-box.Y)
		}
	}
	return box.rect()
}

// drawImageField 把源图缩放为裁剪框的 scale 倍，居中后按 offset×裁剪框尺寸平移，只绘制裁剪框内的部分。
func drawImageField(dst draw.Image, clip image.Rectangle, src image.Image, v layout.ImageValue) {
	clip = clip.Intersect(dst.Bounds())
	if clip.Empty() {
		return
	}
	cw, ch := float64(clip.Dx()), float64(clip.Dy())
	dw, dh := cw*v.Scale, ch*v.Scale
	if dw < 1 || dh < 1 {
		return
	}
	x := float64(clip.Min.X) + (cw-dw)/2 + v.OffsetX*cw
	y := float64(clip.Min.Y) + (ch-dh)/2 + v.OffsetY*ch
	target := image.Rect(
		int(math.Round(x)), int(math.Round(y)),
		int(math.Round(x+dw)), int(math.Round(y+dh)),
	)
	resized := imaging.Resize(src, target.Dx(), target.Dy(), imaging.CatmullRom)
	draw.Draw(dst, clip, resized, clip.Min.Sub(target.Min), draw.Over)
}

// decodeImage 解码图片字节（自动处理 EXIF 方向），按内容摘要缓存，缓存只读共享。
func (r *Renderer) decodeImage(data []byte) (image.Image, error) {
	key := sha256.Sum256(data)
	r.imageMu.Lock()
	img, ok := r.images[key]
	r.imageMu.Unlock()
	if ok {
		return img, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("解码图片失败: %w", err)
	}
	r.imageMu.Lock()
	r.images[key] = img
	r.imageMu.Unlock()
	return img, nil
}
