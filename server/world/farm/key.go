package farm

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrMalformedKey is returned when a key cannot be decoded back into a position.
var ErrMalformedKey = errors.New("malformed key")

// PositionKey identifies a block position within a region. It is of the form x.y.z.region with floored
// integer coordinates.
type PositionKey string

// ChunkKey identifies a 16x16 chunk column within a region. It is of the form x.z in chunk coordinates.
type ChunkKey string

const keySeparator = "."

// EncodePosition returns the key of pos in region.
func EncodePosition(pos cube.Pos, region string) PositionKey {
	var b strings.Builder
	b.Grow(len(region) + 24)
	b.WriteString(strconv.Itoa(pos[0]))
	b.WriteString(keySeparator)
	b.WriteString(strconv.Itoa(pos[1]))
	b.WriteString(keySeparator)
	b.WriteString(strconv.Itoa(pos[2]))
	b.WriteString(keySeparator)
	b.WriteString(region)
	return PositionKey(b.String())
}

// EncodeVec3 returns the key of the block position holding v.
func EncodeVec3(v mgl64.Vec3, region string) PositionKey {
	return EncodePosition(BlockPosOf(v), region)
}

// BlockPosOf floors the components of v to the block position holding it.
func BlockPosOf(v mgl64.Vec3) cube.Pos {
	return cube.Pos{int(math.Floor(v[0])), int(math.Floor(v[1])), int(math.Floor(v[2]))}
}

// DecodePosition returns the position and region encoded in key. An error wrapping ErrMalformedKey is
// returned if key does not hold exactly three integer coordinates followed by a region known to r, or if
// key is not the canonical form EncodePosition produces for them. A nil r accepts any non-empty region.
func DecodePosition(key PositionKey, r RegionResolver) (cube.Pos, string, error) {
	fields := strings.Split(string(key), keySeparator)
	if len(fields) != 4 {
		return cube.Pos{}, "", fmt.Errorf("decode position %q: %w: expected 4 fields, got %d", key, ErrMalformedKey, len(fields))
	}
	var pos cube.Pos
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return cube.Pos{}, "", fmt.Errorf("decode position %q: %w: %v", key, ErrMalformedKey, err)
		}
		pos[i] = v
	}
	region := fields[3]
	if region == "" || (r != nil && !r.Resolve(region)) {
		return cube.Pos{}, "", fmt.Errorf("decode position %q: %w: unknown region %q", key, ErrMalformedKey, region)
	}
	if EncodePosition(pos, region) != key {
		return cube.Pos{}, "", fmt.Errorf("decode position %q: %w: not canonical", key, ErrMalformedKey)
	}
	return pos, region, nil
}

// EncodeChunk returns the key of the chunk column at chunk coordinates x and z.
func EncodeChunk(x, z int32) ChunkKey {
	return ChunkKey(strconv.FormatInt(int64(x), 10) + keySeparator + strconv.FormatInt(int64(z), 10))
}

// ChunkOf returns the key of the chunk column holding pos.
func ChunkOf(pos cube.Pos) ChunkKey {
	return EncodeChunk(int32(pos[0]>>4), int32(pos[2]>>4))
}

// DecodeChunk returns the chunk coordinates encoded in key.
func DecodeChunk(key ChunkKey) (x, z int32, err error) {
	fields := strings.Split(string(key), keySeparator)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("decode chunk %q: %w", key, ErrMalformedKey)
	}
	cx, err := strconv.ParseInt(fields[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("decode chunk %q: %w: %v", key, ErrMalformedKey, err)
	}
	cz, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("decode chunk %q: %w: %v", key, ErrMalformedKey, err)
	}
	if EncodeChunk(int32(cx), int32(cz)) != key {
		return 0, 0, fmt.Errorf("decode chunk %q: %w: not canonical", key, ErrMalformedKey)
	}
	return int32(cx), int32(cz), nil
}

// ValidRegionName reports if name can be used as a region in keys. Names holding the key separator or
// characters that need escaping in JSON are rejected.
func ValidRegionName(name string) bool {
	return name != "" && !strings.ContainsAny(name, keySeparator+`"\`)
}

// MarshalText ...
func (k PositionKey) MarshalText() ([]byte, error) { return []byte(k), nil }

// UnmarshalText ...
func (k *PositionKey) UnmarshalText(b []byte) error {
	*k = PositionKey(b)
	return nil
}

// MarshalText ...
func (k ChunkKey) MarshalText() ([]byte, error) { return []byte(k), nil }

// UnmarshalText ...
func (k *ChunkKey) UnmarshalText(b []byte) error {
	*k = ChunkKey(b)
	return nil
}
