package export

import (
	"context"
	"image"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/cardpress/layout"
	"github.com/ByLCY/cardpress/logging"
	"github.com/ByLCY/cardpress/renderer"
)

// DefaultWorkers 是未配置时的并发渲染数。
const DefaultWorkers = 4

// Compositor 为计划中的每张去重卡片调用一次光栅化器。
// 结果按 Plan.Cards 的下标返回，与完成顺序无关。
type Compositor struct {
	Rasterizer renderer.CardRasterizer
	Workers    int
	// Correct 在缓存结果之前作用于渲染好的卡片，可为 nil。
	Correct func(image.Image) image.Image
}

// Composite 渲染 plan.Cards。单张卡片失败只产生警告，对应槽位留空；
// ctx 取消时丢弃全部结果并返回取消原因。
func (c *Compositor) Composite(ctx context.Context, plan *layout.Plan, dpi layout.DPI, assets layout.Assets) ([]image.Image, []layout.Warning, error) {
	renders := make([]image.Image, len(plan.Cards))
	perCard := make([][]layout.Warning, len(plan.Cards))

	workers := c.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range plan.Cards {
		card := plan.Cards[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			img, warnings, err := c.Rasterizer.RenderCard(gctx, card.Template, card.Data, dpi, assets)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logging.Logger().Warn("卡片渲染失败", "template", card.TemplateID, "err", err)
				perCard[i] = append(warnings, layout.NewWarning(layout.WarnRenderFailed,
					"模板 %s 的卡片渲染失败，%d 个槽位留空: %v", card.TemplateID, card.Uses, err))
				return nil
			}
			if c.Correct != nil {
				renders[i] = c.Correct(img)
			} else {
				renders[i] = img
			}
			perCard[i] = warnings
			logging.Logger().Debug("卡片渲染完成", "template", card.TemplateID, "uses", card.Uses, "elapsed", time.Since(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var warnings []layout.Warning
	for _, ws := range perCard {
		warnings = append(warnings, ws...)
	}
	return renders, warnings, nil
}
