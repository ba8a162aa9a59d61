package world

import (
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/event"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
)

// Context is passed to cancellable world events. Cancelling it prevents the World from carrying out the
// action the event describes.
type Context = event.Context[*World]

// GrowCause describes what made a crop grow natively.
type GrowCause uint8

const (
	// GrowRandomTick is growth caused by the random ticking of a loaded chunk.
	GrowRandomTick GrowCause = iota
	// GrowFertiliser is growth caused by applying fertiliser to a crop.
	GrowFertiliser
)

// String ...
func (c GrowCause) String() string {
	switch c {
	case GrowRandomTick:
		return "random_tick"
	case GrowFertiliser:
		return "fertiliser"
	}
	return "unknown"
}

// Handler handles events that are called by a World. Implementations of Handler may be used to listen to
// specific events such as the placement of a block.
type Handler interface {
	// HandleBlockPlace handles a block being placed at a position. ctx.Cancel() may be called to prevent
	// the block from being placed.
	HandleBlockPlace(ctx *Context, pos cube.Pos, b farm.Block)
	// HandleBlockBreak handles a block being broken at a position. ctx.Cancel() may be called to keep the
	// block in place.
	HandleBlockBreak(ctx *Context, pos cube.Pos, b farm.Block)
	// HandleCropGrow handles a crop advancing to a new growth stage natively. ctx.Cancel() may be called
	// to keep the crop at its current stage.
	HandleCropGrow(ctx *Context, pos cube.Pos, b farm.Block, stage int, cause GrowCause)
	// HandleChunkLoad handles a chunk column being loaded.
	HandleChunkLoad(w *World, pos ChunkPos)
	// HandleChunkUnload handles a chunk column being unloaded.
	HandleChunkUnload(w *World, pos ChunkPos)
	// HandleClose handles the World being closed.
	HandleClose(w *World)
}

// Compile time check to make sure NopHandler implements Handler.
var _ Handler = NopHandler{}

// NopHandler implements the Handler interface but does not execute any code when an event is called. The
// default Handler of a World is NopHandler. Users may embed NopHandler to avoid having to implement each
// method.
type NopHandler struct{}

func (NopHandler) HandleBlockPlace(*Context, cube.Pos, farm.Block)                {}
func (NopHandler) HandleBlockBreak(*Context, cube.Pos, farm.Block)                {}
func (NopHandler) HandleCropGrow(*Context, cube.Pos, farm.Block, int, GrowCause) {}
func (NopHandler) HandleChunkLoad(*World, ChunkPos)                              {}
func (NopHandler) HandleChunkUnload(*World, ChunkPos)                            {}
func (NopHandler) HandleClose(*World)                                            {}
