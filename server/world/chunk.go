package world

import (
	"maps"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/dm-vev/alwaysfarm/server/block/legacy"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
)

// ChunkPos holds the position of a 16x16 chunk column.
type ChunkPos [2]int32

// X returns the X coordinate of the chunk position.
func (p ChunkPos) X() int32 { return p[0] }

// Z returns the Z coordinate of the chunk position.
func (p ChunkPos) Z() int32 { return p[1] }

// chunkPosFromBlockPos returns the ChunkPos of the chunk column that a block at pos is in.
func chunkPosFromBlockPos(pos cube.Pos) ChunkPos {
	return ChunkPos{int32(pos[0] >> 4), int32(pos[2] >> 4)}
}

// Column holds the blocks of a chunk column that differ from what the Generator of its World produces.
// Blocks are stored as legacy block states.
type Column struct {
	blocks map[cube.Pos]uint16
	loaded bool
}

func newColumn() *Column {
	return &Column{blocks: make(map[cube.Pos]uint16)}
}

// Loaded reports if the column is currently loaded.
func (c *Column) Loaded() bool {
	return c.loaded
}

// Len returns the number of modified blocks held by the column.
func (c *Column) Len() int {
	return len(c.blocks)
}

func (c *Column) block(pos cube.Pos) (farm.Block, bool) {
	state, ok := c.blocks[pos]
	if !ok {
		return farm.Block{}, false
	}
	return legacy.Unpack(state), true
}

func (c *Column) setBlock(pos cube.Pos, b farm.Block) {
	c.blocks[pos] = legacy.Pack(b)
}

// positions returns a copy of the positions of all blocks held by the column.
func (c *Column) positions() map[cube.Pos]uint16 {
	return maps.Clone(c.blocks)
}
