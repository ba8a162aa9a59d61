package farm

import (
	"encoding/json"
	"fmt"
)

// State is the tracked growth state of one block. The growth stage itself lives in the world and is not
// stored here.
type State struct {
	// Type is the block type that was planted. A record whose live block no longer has this type is stale.
	Type BlockType
	// PlantedAt is the unix time in seconds at which tracking started or was last reset.
	PlantedAt int64
	// FruitAt is the unix time in seconds from which a mature stem may grow a fruit. Zero if not yet set.
	FruitAt int64
}

// FruitScheduled reports if a fruit time has been assigned to the state.
func (s State) FruitScheduled() bool {
	return s.FruitAt != 0
}

// MarshalJSON encodes the state as [type, plantedAt] or [type, plantedAt, fruitAt].
func (s State) MarshalJSON() ([]byte, error) {
	if s.FruitScheduled() {
		return json.Marshal([3]int64{int64(s.Type), s.PlantedAt, s.FruitAt})
	}
	return json.Marshal([2]int64{int64(s.Type), s.PlantedAt})
}

// UnmarshalJSON ...
func (s *State) UnmarshalJSON(b []byte) error {
	var fields []int64
	if err := json.Unmarshal(b, &fields); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	switch len(fields) {
	case 2:
		*s = State{Type: BlockType(fields[0]), PlantedAt: fields[1]}
	case 3:
		*s = State{Type: BlockType(fields[0]), PlantedAt: fields[1], FruitAt: fields[2]}
	default:
		return fmt.Errorf("decode state: expected 2 or 3 fields, got %d", len(fields))
	}
	return nil
}

// Entry pairs a position key with its state.
type Entry struct {
	Key   PositionKey
	State State
}
