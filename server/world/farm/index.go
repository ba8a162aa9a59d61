package farm

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type (
	chunkEntries = orderedmap.OrderedMap[PositionKey, State]
	regionChunks = orderedmap.OrderedMap[ChunkKey, *chunkEntries]
)

// Index is the durable record of every tracked block, grouped by region and chunk column. It holds
// records regardless of whether they still need ticking, and is the source from which chunks are
// re-materialised when they load.
type Index struct {
	regions *orderedmap.OrderedMap[string, *regionChunks]
	n       int
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{regions: orderedmap.New[string, *regionChunks]()}
}

// Put inserts or replaces the state stored for key.
func (idx *Index) Put(key PositionKey, chunk ChunkKey, region string, s State) {
	chunks, ok := idx.regions.Get(region)
	if !ok {
		chunks = orderedmap.New[ChunkKey, *chunkEntries]()
		idx.regions.Set(region, chunks)
	}
	entries, ok := chunks.Get(chunk)
	if !ok {
		entries = orderedmap.New[PositionKey, State]()
		chunks.Set(chunk, entries)
	}
	if _, existed := entries.Set(key, s); !existed {
		idx.n++
	}
}

// Remove deletes the state stored for key. Empty chunk and region maps are left in place.
func (idx *Index) Remove(key PositionKey, chunk ChunkKey, region string) bool {
	entries, ok := idx.entries(region, chunk)
	if !ok {
		return false
	}
	if _, existed := entries.Delete(key); existed {
		idx.n--
		return true
	}
	return false
}

// Get returns the state stored for key.
func (idx *Index) Get(key PositionKey, chunk ChunkKey, region string) (State, bool) {
	entries, ok := idx.entries(region, chunk)
	if !ok {
		return State{}, false
	}
	return entries.Get(key)
}

// EntriesForChunk returns a copy of all records of a chunk column in insertion order.
func (idx *Index) EntriesForChunk(region string, chunk ChunkKey) []Entry {
	entries, ok := idx.entries(region, chunk)
	if !ok || entries.Len() == 0 {
		return nil
	}
	out := make([]Entry, 0, entries.Len())
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Entry{Key: pair.Key, State: pair.Value})
	}
	return out
}

// Regions returns the names of all regions that ever held a record.
func (idx *Index) Regions() []string {
	names := make([]string, 0, idx.regions.Len())
	for pair := idx.regions.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Chunks returns the chunk keys of a region along with the number of records in each.
func (idx *Index) Chunks(region string) map[ChunkKey]int {
	chunks, ok := idx.regions.Get(region)
	if !ok {
		return nil
	}
	out := make(map[ChunkKey]int, chunks.Len())
	for pair := chunks.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value.Len()
	}
	return out
}

// Len returns the number of records in the index.
func (idx *Index) Len() int {
	return idx.n
}

func (idx *Index) entries(region string, chunk ChunkKey) (*chunkEntries, bool) {
	chunks, ok := idx.regions.Get(region)
	if !ok {
		return nil, false
	}
	return chunks.Get(chunk)
}

// MarshalJSON encodes the index as region -> chunk -> position -> state.
func (idx *Index) MarshalJSON() ([]byte, error) {
	return json.Marshal(idx.regions)
}

// UnmarshalJSON replaces the contents of the index with the document in b.
func (idx *Index) UnmarshalJSON(b []byte) error {
	regions := orderedmap.New[string, *regionChunks]()
	if err := json.Unmarshal(b, regions); err != nil {
		return fmt.Errorf("decode farm document: %w", err)
	}
	n := 0
	for r := regions.Oldest(); r != nil; r = r.Next() {
		if r.Value == nil {
			r.Value = orderedmap.New[ChunkKey, *chunkEntries]()
			continue
		}
		for c := r.Value.Oldest(); c != nil; c = c.Next() {
			if c.Value == nil {
				c.Value = orderedmap.New[PositionKey, State]()
				continue
			}
			n += c.Value.Len()
		}
	}
	idx.regions, idx.n = regions, n
	return nil
}
