// Package legacy describes the numeric block ids used by the farm and the host world, together with the
// crop specific properties of each id.
package legacy

import (
	"strconv"

	"github.com/dm-vev/alwaysfarm/server/world/farm"
)

// Block ids known to the catalog.
const (
	Air         farm.BlockType = 0
	Stone       farm.BlockType = 1
	Grass       farm.BlockType = 2
	Dirt        farm.BlockType = 3
	Wheat       farm.BlockType = 59
	Farmland    farm.BlockType = 60
	Pumpkin     farm.BlockType = 86
	Melon       farm.BlockType = 103
	PumpkinStem farm.BlockType = 104
	MelonStem   farm.BlockType = 105
	Carrot      farm.BlockType = 141
	Potato      farm.BlockType = 142
	Beetroot    farm.BlockType = 244
)

// MaxGrowth is the growth stage of a fully grown crop or stem.
const MaxGrowth = 7

// names maps every symbolic block name accepted in the settings document to its id. Several names may
// refer to the same id.
var names = map[string]farm.BlockType{
	"AIR":            Air,
	"STONE":          Stone,
	"GRASS":          Grass,
	"DIRT":           Dirt,
	"WHEAT_BLOCK":    Wheat,
	"FARMLAND":       Farmland,
	"PUMPKIN":        Pumpkin,
	"MELON_BLOCK":    Melon,
	"PUMPKIN_STEM":   PumpkinStem,
	"MELON_STEM":     MelonStem,
	"CARROT_BLOCK":   Carrot,
	"CARROTS":        Carrot,
	"POTATO_BLOCK":   Potato,
	"POTATOES":       Potato,
	"BEETROOT_BLOCK": Beetroot,
}

// canonical holds the preferred name of every id.
var canonical = map[farm.BlockType]string{
	Air:         "AIR",
	Stone:       "STONE",
	Grass:       "GRASS",
	Dirt:        "DIRT",
	Wheat:       "WHEAT_BLOCK",
	Farmland:    "FARMLAND",
	Pumpkin:     "PUMPKIN",
	Melon:       "MELON_BLOCK",
	PumpkinStem: "PUMPKIN_STEM",
	MelonStem:   "MELON_STEM",
	Carrot:      "CARROTS",
	Potato:      "POTATOES",
	Beetroot:    "BEETROOT_BLOCK",
}

// Catalog implements farm.Catalog for the legacy block ids.
type Catalog struct{}

// Lookup resolves a block name such as WHEAT_BLOCK, or the decimal id of a known block, to its id.
func (Catalog) Lookup(name string) (farm.BlockType, bool) {
	if t, ok := names[name]; ok {
		return t, true
	}
	id, err := strconv.Atoi(name)
	if err != nil {
		return 0, false
	}
	if _, ok := canonical[farm.BlockType(id)]; !ok {
		return 0, false
	}
	return farm.BlockType(id), true
}

// Fruit ...
func (Catalog) Fruit(t farm.BlockType) (farm.BlockType, bool) {
	switch t {
	case PumpkinStem:
		return Pumpkin, true
	case MelonStem:
		return Melon, true
	}
	return 0, false
}

// MaxGrowth ...
func (Catalog) MaxGrowth(farm.BlockType) int {
	return MaxGrowth
}

// Soil reports if a pumpkin or melon may rest on t.
func (Catalog) Soil(t farm.BlockType) bool {
	return t == Farmland || t == Grass || t == Dirt
}

// Air ...
func (Catalog) Air() farm.BlockType {
	return Air
}

// Name returns the preferred name of t, or its decimal id if t is unknown.
func Name(t farm.BlockType) string {
	if name, ok := canonical[t]; ok {
		return name
	}
	return strconv.Itoa(int(t))
}

// Fruit reports if t is grown by a stem.
func Fruit(t farm.BlockType) bool {
	return t == Pumpkin || t == Melon
}

// Crop reports if t has growth stages.
func Crop(t farm.BlockType) bool {
	switch t {
	case Wheat, Carrot, Potato, Beetroot, PumpkinStem, MelonStem:
		return true
	}
	return false
}

// Pack encodes b into a single block state of the form id<<4 | meta. Only the low four bits of the meta
// value are kept.
func Pack(b farm.Block) uint16 {
	return uint16(b.Type)<<4 | uint16(b.Meta&0xf)
}

// Unpack decodes a block state created by Pack.
func Unpack(state uint16) farm.Block {
	return farm.Block{Type: farm.BlockType(state >> 4), Meta: uint8(state & 0xf)}
}
