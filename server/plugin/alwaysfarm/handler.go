package alwaysfarm

import (
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/dm-vev/alwaysfarm/server/block/legacy"
	"github.com/dm-vev/alwaysfarm/server/world"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
)

// growthGuard cancels native random growth of the crops the farm grows itself. Fertiliser is left alone.
type growthGuard[S any, C any] struct {
	world.NopHandler
	p *Plugin[S, C]
}

// HandleCropGrow ...
func (g growthGuard[S, C]) HandleCropGrow(ctx *world.Context, _ cube.Pos, b farm.Block, _ int, cause world.GrowCause) {
	if cause == world.GrowRandomTick && g.p.farm.Manages(b.Type) {
		ctx.Cancel()
	}
}

// tracker observes the outcome of world events and mirrors it into the farm. It runs as a monitor, after
// every other handler has had the chance to cancel the event.
type tracker[S any, C any] struct {
	world.NopHandler
	p *Plugin[S, C]
}

// HandleBlockPlace ...
func (t tracker[S, C]) HandleBlockPlace(ctx *world.Context, pos cube.Pos, b farm.Block) {
	if ctx.Cancelled() {
		return
	}
	t.p.farm.Place(ctx.Val().Name(), pos, b.Type)
}

// HandleBlockBreak ...
func (t tracker[S, C]) HandleBlockBreak(ctx *world.Context, pos cube.Pos, b farm.Block) {
	w := ctx.Val()
	if legacy.Fruit(b.Type) {
		// A fruit that is gone lets its stems grow a new one, even if the break itself was cancelled.
		if !ctx.Cancelled() || w.Block(pos).Type == legacy.Air {
			t.p.farm.HarvestFruit(w.Name(), pos)
		}
		return
	}
	if ctx.Cancelled() {
		return
	}
	t.p.farm.Remove(w.Name(), pos)
}

// HandleChunkLoad ...
func (t tracker[S, C]) HandleChunkLoad(w *world.World, pos world.ChunkPos) {
	t.p.farm.LoadChunk(w.Name(), pos.X(), pos.Z())
}
