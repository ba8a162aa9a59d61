package world

import (
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/dm-vev/alwaysfarm/server/block/legacy"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
)

// Generator produces the blocks of a World that were never modified.
type Generator interface {
	// Block returns the generated block at pos.
	Block(pos cube.Pos) farm.Block
}

// NopGenerator implements a Generator that produces only air.
type NopGenerator struct{}

// Block ...
func (NopGenerator) Block(cube.Pos) farm.Block { return farm.Block{Type: legacy.Air} }

// Flat implements a Generator that produces a flat world with a grass surface at Surface, three layers
// of dirt below it and stone underneath.
type Flat struct {
	Surface int
}

// Block ...
func (f Flat) Block(pos cube.Pos) farm.Block {
	switch y := pos[1]; {
	case y > f.Surface:
		return farm.Block{Type: legacy.Air}
	case y == f.Surface:
		return farm.Block{Type: legacy.Grass}
	case y >= f.Surface-3:
		return farm.Block{Type: legacy.Dirt}
	}
	return farm.Block{Type: legacy.Stone}
}
