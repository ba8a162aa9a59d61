package farm

import "github.com/df-mc/dragonfly/server/block/cube"

// BlockType is the numeric identifier of a block type as known by the host catalog.
type BlockType int

// Block is the live state of a single block as reported by a World.
type Block struct {
	Type BlockType
	Meta uint8
}

// World is the live state of a single region. The farm reads and writes blocks through it and never
// keeps references to host objects between calls.
type World interface {
	// Block returns the block currently at pos.
	Block(pos cube.Pos) Block
	// SetGrowth sets the growth stage of the block at pos, keeping its type.
	SetGrowth(pos cube.Pos, stage int)
	// SetBlock replaces the block at pos with a fresh block of type t.
	SetBlock(pos cube.Pos, t BlockType)
	// ChunkLoaded reports if the chunk holding pos is currently loaded.
	ChunkLoaded(pos cube.Pos) bool
}

// RegionResolver reports whether a region name refers to a region known by the host.
type RegionResolver interface {
	Resolve(region string) bool
}

// Worlds looks up the World of a region by its name.
type Worlds interface {
	RegionResolver
	World(region string) (World, bool)
}

// Catalog describes the block types of the host.
type Catalog interface {
	// Lookup resolves a symbolic block name, such as WHEAT_BLOCK, to its block type.
	Lookup(name string) (BlockType, bool)
	// Fruit returns the fruit grown by a stem type. ok is false if t is not a stem.
	Fruit(t BlockType) (fruit BlockType, ok bool)
	// MaxGrowth returns the highest growth stage of t.
	MaxGrowth(t BlockType) int
	// Soil reports if a fruit may rest on a block of type t.
	Soil(t BlockType) bool
	// Air returns the block type of an empty cell.
	Air() BlockType
}
