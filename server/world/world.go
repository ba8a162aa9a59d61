package world

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync/atomic"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/event"
	"github.com/dm-vev/alwaysfarm/server/block/legacy"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
)

// Config holds the parameters of a World.
type Config struct {
	// Log is the Logger used for diagnostics. If nil, slog.Default() is used.
	Log *slog.Logger
	// Name is the name of the World. It identifies the region of every block in the World and may not
	// contain dots.
	Name string
	// Generator produces the blocks that were never modified. If nil, NopGenerator is used.
	Generator Generator
	// RandomTickSpeed specifies the chance out of 4096 that a crop in a loaded chunk grows by one stage
	// every tick. Setting this value to -1 or lower stops random ticking altogether. If left as 0, the
	// speed defaults to 3.
	RandomTickSpeed int
	// Rand is the source used for random ticks and fertiliser. If nil, a randomly seeded source is used.
	Rand *rand.Rand
}

// World implements a single region of voxel blocks split up in chunk columns. Columns keep their blocks
// when unloaded, but they do not tick and are not reported as loaded until loaded again.
// A World is not safe for concurrent use. The server serialises access to it on its own goroutine.
type World struct {
	conf    Config
	handler atomic.Pointer[Handler]
	columns map[ChunkPos]*Column
	closed  bool
}

// New creates a new World. An error is returned if the name of the World cannot be used as a region.
func (conf Config) New() (*World, error) {
	if !farm.ValidRegionName(conf.Name) {
		return nil, fmt.Errorf("create world %q: invalid name", conf.Name)
	}
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	conf.Log = conf.Log.With("world", conf.Name)
	if conf.Generator == nil {
		conf.Generator = NopGenerator{}
	}
	if conf.RandomTickSpeed == 0 {
		conf.RandomTickSpeed = 3
	}
	if conf.Rand == nil {
		conf.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	w := &World{conf: conf, columns: make(map[ChunkPos]*Column)}
	w.Handle(nil)
	return w, nil
}

// Name returns the name of the World.
func (w *World) Name() string {
	return w.conf.Name
}

// Handle changes the current Handler of the World. As a result, events called by the World will call
// handlers of the Handler passed. Handle sets the World's Handler to NopHandler if nil is passed.
func (w *World) Handle(h Handler) {
	if h == nil {
		h = NopHandler{}
	}
	h = wrapWorldHandler(w, h)
	w.handler.Store(&h)
}

// Handler returns the Handler of the World.
func (w *World) Handler() Handler {
	return *w.handler.Load()
}

// Block reads the block at pos. Blocks in unloaded chunks may be read too.
func (w *World) Block(pos cube.Pos) farm.Block {
	if col, ok := w.columns[chunkPosFromBlockPos(pos)]; ok {
		if b, ok := col.block(pos); ok {
			return b
		}
	}
	return w.conf.Generator.Block(pos)
}

// SetBlock replaces the block at pos with a block of type t at growth stage zero. No events are called.
func (w *World) SetBlock(pos cube.Pos, t farm.BlockType) {
	w.setBlock(pos, farm.Block{Type: t})
}

// SetGrowth changes the growth stage of the block at pos, keeping its type. No events are called.
func (w *World) SetGrowth(pos cube.Pos, stage int) {
	b := w.Block(pos)
	b.Meta = uint8(min(max(stage, 0), 15))
	w.setBlock(pos, b)
}

// ChunkLoaded reports if the chunk column holding pos is loaded.
func (w *World) ChunkLoaded(pos cube.Pos) bool {
	col, ok := w.columns[chunkPosFromBlockPos(pos)]
	return ok && col.loaded
}

// LoadChunk loads the chunk column at pos and calls HandleChunkLoad. It returns false if the column was
// already loaded.
func (w *World) LoadChunk(pos ChunkPos) bool {
	col := w.column(pos)
	if col.loaded {
		return false
	}
	col.loaded = true
	w.Handler().HandleChunkLoad(w, pos)
	return true
}

// UnloadChunk unloads the chunk column at pos and calls HandleChunkUnload. The blocks of the column are
// kept. It returns false if the column was not loaded.
func (w *World) UnloadChunk(pos ChunkPos) bool {
	col, ok := w.columns[pos]
	if !ok || !col.loaded {
		return false
	}
	col.loaded = false
	w.Handler().HandleChunkUnload(w, pos)
	return true
}

// LoadedChunks returns the positions of all loaded chunk columns, sorted by X and then Z.
func (w *World) LoadedChunks() []ChunkPos {
	out := make([]ChunkPos, 0, len(w.columns))
	for pos, col := range w.columns {
		if col.loaded {
			out = append(out, pos)
		}
	}
	slices.SortFunc(out, func(a, b ChunkPos) int {
		if a[0] != b[0] {
			return int(a[0]) - int(b[0])
		}
		return int(a[1]) - int(b[1])
	})
	return out
}

// PlaceBlock places b at pos as a player would, calling HandleBlockPlace first. It reports if the block
// was placed.
func (w *World) PlaceBlock(pos cube.Pos, b farm.Block) bool {
	ctx := event.C(w)
	if w.Handler().HandleBlockPlace(ctx, pos, b); ctx.Cancelled() {
		return false
	}
	w.setBlock(pos, b)
	return true
}

// BreakBlock breaks the block at pos as a player would, calling HandleBlockBreak first. It reports if a
// block was broken.
func (w *World) BreakBlock(pos cube.Pos) bool {
	b := w.Block(pos)
	if b.Type == legacy.Air {
		return false
	}
	ctx := event.C(w)
	if w.Handler().HandleBlockBreak(ctx, pos, b); ctx.Cancelled() {
		return false
	}
	w.setBlock(pos, farm.Block{Type: legacy.Air})
	return true
}

// RandomTick grows the crop at pos by a single stage, calling HandleCropGrow first. It reports if the
// crop grew.
func (w *World) RandomTick(pos cube.Pos) bool {
	return w.grow(pos, 1, GrowRandomTick)
}

// Fertilise grows the crop at pos by two to five stages, calling HandleCropGrow first. It reports if the
// crop grew.
func (w *World) Fertilise(pos cube.Pos) bool {
	return w.grow(pos, 2+w.conf.Rand.IntN(4), GrowFertiliser)
}

func (w *World) grow(pos cube.Pos, stages int, cause GrowCause) bool {
	b := w.Block(pos)
	if !legacy.Crop(b.Type) || int(b.Meta) >= legacy.MaxGrowth {
		return false
	}
	stage := min(int(b.Meta)+stages, legacy.MaxGrowth)
	ctx := event.C(w)
	if w.Handler().HandleCropGrow(ctx, pos, b, stage, cause); ctx.Cancelled() {
		return false
	}
	b.Meta = uint8(stage)
	w.setBlock(pos, b)
	return true
}

// Close closes the World and calls HandleClose. Calling Close more than once is a no-op.
func (w *World) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.conf.Log.Debug("Closing world.", "columns", len(w.columns))
	w.Handler().HandleClose(w)
	w.Handle(nil)
	return nil
}

// column returns the column at pos, creating an unloaded one if it does not exist yet.
func (w *World) column(pos ChunkPos) *Column {
	col, ok := w.columns[pos]
	if !ok {
		col = newColumn()
		w.columns[pos] = col
	}
	return col
}

func (w *World) setBlock(pos cube.Pos, b farm.Block) {
	w.column(chunkPosFromBlockPos(pos)).setBlock(pos, b)
}
