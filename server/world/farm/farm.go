package farm

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
)

// Farm tracks planted crops and stems across regions and grows them over wall-clock time, regardless of
// whether their chunks are loaded. Every tracked block lives in the Index. Blocks that still need
// periodic evaluation are also held in the Queue. A Farm is not safe for concurrent use: the host must
// call all of its methods from the same goroutine.
type Farm struct {
	conf    Config
	log     *slog.Logger
	rates   *Rates
	index   *Index
	queue   *Queue
	metrics *Metrics
	closed  bool
}

// horizontalFaces are the four faces next to which a stem may grow its fruit.
var horizontalFaces = []cube.Face{cube.FaceNorth, cube.FaceEast, cube.FaceSouth, cube.FaceWest}

// locator holds everything needed to address one record in the index and queue.
type locator struct {
	pos    cube.Pos
	region string
	key    PositionKey
	chunk  ChunkKey
}

func locate(region string, pos cube.Pos) locator {
	return locator{pos: pos, region: region, key: EncodePosition(pos, region), chunk: ChunkOf(pos)}
}

// Place starts tracking the block of type t placed at pos, replacing any record held for pos. It returns
// false if t is not managed by the farm, in which case any previous record for pos is dropped.
func (f *Farm) Place(region string, pos cube.Pos, t BlockType) bool {
	if !ValidRegionName(region) {
		f.log.Warn("Ignored placement in region with invalid name.", "region", region, "pos", pos)
		return false
	}
	l := locate(region, pos)
	f.untrack(l)
	if !f.rates.Tracked(t) {
		return false
	}
	f.track(l, State{Type: t, PlantedAt: f.now()})
	return true
}

// Remove stops tracking the block at pos. It reports if a record existed.
func (f *Farm) Remove(region string, pos cube.Pos) bool {
	if !ValidRegionName(region) {
		return false
	}
	l := locate(region, pos)
	_, ok := f.index.Get(l.key, l.chunk, l.region)
	f.untrack(l)
	return ok
}

// HarvestFruit handles the removal of a fruit at pos. Any record for pos is dropped and every tracked
// stem next to it is given a new fruit time and queued again. The number of stems rescheduled is
// returned.
func (f *Farm) HarvestFruit(region string, pos cube.Pos) int {
	if !ValidRegionName(region) {
		return 0
	}
	f.untrack(locate(region, pos))
	w, ok := f.conf.Worlds.World(region)
	if !ok {
		return 0
	}
	now, n := f.now(), 0
	for _, face := range horizontalFaces {
		side := pos.Side(face)
		l := locate(region, side)
		s, ok := f.index.Get(l.key, l.chunk, l.region)
		if !ok {
			continue
		}
		if _, stem := f.conf.Catalog.Fruit(s.Type); !stem || w.Block(side).Type != s.Type {
			continue
		}
		s.FruitAt = now + f.fruitDelay()
		f.track(l, s)
		n++
	}
	return n
}

// LoadChunk re-evaluates every record of a chunk column that was just loaded, so that blocks catch up on
// the growth they missed while unloaded. The number of records evaluated is returned.
func (f *Farm) LoadChunk(region string, x, z int32) int {
	entries := f.index.EntriesForChunk(region, EncodeChunk(x, z))
	if len(entries) == 0 {
		return 0
	}
	chunk, n := EncodeChunk(x, z), 0
	for _, e := range entries {
		// An earlier evaluation may have changed or dropped the record.
		s, ok := f.index.Get(e.Key, chunk, region)
		if !ok {
			continue
		}
		o, _ := f.evaluate(e.Key, s, true)
		f.metrics.AddOutcome(region, o)
		n++
	}
	f.metrics.SetSizes(f.queue.Len(), f.index.Len())
	f.log.Debug("Re-evaluated loaded chunk.", "region", region, "x", x, "z", z, "records", n)
	return n
}

// Manages reports if blocks of type t are grown by the farm instead of the host.
func (f *Farm) Manages(t BlockType) bool {
	return f.rates.Tracked(t)
}

// Tracked returns the record held for pos.
func (f *Farm) Tracked(region string, pos cube.Pos) (State, bool) {
	l := locate(region, pos)
	return f.index.Get(l.key, l.chunk, l.region)
}

// Queued reports if the block at pos is waiting for periodic evaluation.
func (f *Farm) Queued(region string, pos cube.Pos) bool {
	return f.queue.Contains(EncodePosition(pos, region))
}

// TrackedAt returns the record held for the block holding v, such as the position an entity looks at.
func (f *Farm) TrackedAt(region string, v mgl64.Vec3) (State, bool) {
	pos := BlockPosOf(v)
	return f.index.Get(EncodeVec3(v, region), ChunkOf(pos), region)
}

// QueuedAt reports if the block holding v is waiting for periodic evaluation.
func (f *Farm) QueuedAt(region string, v mgl64.Vec3) bool {
	return f.queue.Contains(EncodeVec3(v, region))
}

// QueueLen returns the number of blocks waiting for periodic evaluation.
func (f *Farm) QueueLen() int { return f.queue.Len() }

// TrackedLen returns the number of records in the index.
func (f *Farm) TrackedLen() int { return f.index.Len() }

// Rates returns the growth durations in use.
func (f *Farm) Rates() *Rates { return f.rates }

// Metrics returns the counters of the farm.
func (f *Farm) Metrics() *Metrics { return f.metrics }

// Save writes the settings, index and queue documents to the Provider. Every document is attempted, and
// the errors of all failed documents are returned together.
func (f *Farm) Save() error {
	var errs []error
	for _, doc := range Documents {
		data, err := f.encode(doc)
		if err == nil {
			err = f.conf.Provider.Save(doc, data)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("save %v document: %w", doc, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	f.log.Debug("Saved farm snapshot.", "tracked", f.index.Len(), "queued", f.queue.Len())
	return nil
}

// Close saves the farm and closes its Provider. Calling Close more than once is a no-op.
func (f *Farm) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return errors.Join(f.Save(), f.conf.Provider.Close())
}

func (f *Farm) encode(doc Document) ([]byte, error) {
	switch doc {
	case DocumentSettings:
		return json.MarshalIndent(f.rates.Document(), "", "  ")
	case DocumentFarm:
		return json.Marshal(f.index)
	case DocumentQueue:
		return json.Marshal(f.queue)
	}
	return nil, fmt.Errorf("unknown document %v", doc)
}

// track stores s for l in the index and queues it.
func (f *Farm) track(l locator, s State) {
	f.index.Put(l.key, l.chunk, l.region, s)
	f.queue.Enqueue(l.key, s)
}

// write stores s for l in the index and, if l is queued, updates its queued state in place.
func (f *Farm) write(l locator, s State) {
	f.index.Put(l.key, l.chunk, l.region, s)
	if f.queue.Contains(l.key) {
		f.queue.Enqueue(l.key, s)
	}
}

// untrack drops l from both the queue and the index.
func (f *Farm) untrack(l locator) {
	f.queue.Remove(l.key)
	f.index.Remove(l.key, l.chunk, l.region)
}

func (f *Farm) now() int64 {
	return f.conf.Clock().Unix()
}

// fruitDelay returns a random delay in seconds within the configured fruit delay bounds.
func (f *Farm) fruitDelay() int64 {
	lo, hi := int64(f.conf.FruitDelayMin.Seconds()), int64(f.conf.FruitDelayMax.Seconds())
	return lo + f.conf.Rand.Int64N(hi-lo+1)
}

// load restores the rates, index and queue from the Provider. A document that is missing or cannot be
// decoded is replaced by its default.
func (f *Farm) load() {
	var overrides map[string]json.RawMessage
	if data, ok := f.loadDocument(DocumentSettings); ok {
		if err := json.Unmarshal(data, &overrides); err != nil {
			f.log.Warn("Settings document is invalid, using default rates.", "err", err)
			overrides = nil
		}
	}
	f.rates = LoadRates(overrides, f.conf.Catalog)

	if data, ok := f.loadDocument(DocumentFarm); ok {
		idx := NewIndex()
		if err := idx.UnmarshalJSON(data); err != nil {
			f.log.Warn("Farm document is invalid, starting with an empty index.", "err", err)
		} else {
			f.index = idx
		}
	}

	if data, ok := f.loadDocument(DocumentQueue); ok {
		q := NewQueue()
		if err := q.UnmarshalJSON(data); err != nil {
			f.log.Warn("Queue document is invalid, starting with an empty queue.", "err", err)
		} else {
			f.restoreQueue(q)
		}
	}
	f.metrics.SetSizes(f.queue.Len(), f.index.Len())
	f.log.Info("Loaded farm snapshot.", "rates", f.rates.Len(), "tracked", f.index.Len(), "queued", f.queue.Len())
}

// restoreQueue queues the entries of q in order. The index holds the authoritative state of a key, and
// entries the index lost are indexed again.
func (f *Farm) restoreQueue(q *Queue) {
	for _, e := range q.Entries() {
		pos, region, err := DecodePosition(e.Key, nil)
		if err != nil {
			f.log.Warn("Dropped queued block with malformed key.", "key", e.Key, "err", err)
			continue
		}
		chunk := ChunkOf(pos)
		if s, ok := f.index.Get(e.Key, chunk, region); ok {
			f.queue.Enqueue(e.Key, s)
			continue
		}
		f.index.Put(e.Key, chunk, region, e.State)
		f.queue.Enqueue(e.Key, e.State)
	}
}

func (f *Farm) loadDocument(doc Document) ([]byte, bool) {
	data, err := f.conf.Provider.Load(doc)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			f.log.Debug("Farm document not found, using default.", "document", doc.String())
		} else {
			f.log.Warn("Could not load farm document, using default.", "document", doc.String(), "err", err)
		}
		return nil, false
	}
	return data, true
}
