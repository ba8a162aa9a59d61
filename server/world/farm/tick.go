package farm

import (
	"slices"

	"github.com/df-mc/dragonfly/server/block/cube"
)

// TickResult summarises a single tick pass.
type TickResult struct {
	// Processed is the number of queued blocks evaluated.
	Processed int
	// Outcomes counts the evaluations by their outcome.
	Outcomes [outcomeCount]int
	// Aborted is true if the pass stopped early because a key came up a second time.
	Aborted bool
}

// Count returns the number of evaluations that ended with o.
func (r TickResult) Count(o Outcome) int {
	if o >= outcomeCount {
		return 0
	}
	return r.Outcomes[o]
}

// Tick evaluates up to ProcessingLimit blocks from the front of the queue. The number of blocks dequeued
// never exceeds the size of the queue at the start of the pass, even when blocks are queued again during
// it.
func (f *Farm) Tick() TickResult {
	var res TickResult
	limit := min(f.conf.ProcessingLimit, f.queue.Len())
	visited := make(map[PositionKey]struct{}, limit)

	for i := 0; i < limit; i++ {
		key, s, err := f.queue.Front()
		if err != nil {
			break
		}
		if _, ok := visited[key]; ok {
			if f.conf.Revisit == RevisitAbort {
				res.Aborted = true
				break
			}
			f.queue.Remove(key)
			f.queue.Enqueue(key, s)
			continue
		}
		visited[key] = struct{}{}
		f.queue.DequeueFront()

		o, region := f.evaluate(key, s, false)
		res.Processed++
		res.Outcomes[o]++
		f.metrics.AddOutcome(region, o)
	}
	f.metrics.ObserveTick(res.Aborted, f.queue.Len(), f.index.Len())
	return res
}

// evaluate brings the block at key up to date with the time elapsed since it was planted. The entry has
// already been taken off the queue by the caller or was never queued, and is queued again only if it
// still needs periodic evaluation. If force is false, blocks in unloaded chunks are left alone. The
// outcome and region of the evaluation are returned.
func (f *Farm) evaluate(key PositionKey, s State, force bool) (Outcome, string) {
	pos, region, err := DecodePosition(key, f.conf.Worlds)
	if err != nil {
		f.queue.Remove(key)
		f.log.Debug("Dropped queued block with malformed key.", "key", key, "err", err)
		return OutcomeMalformed, ""
	}
	w, ok := f.conf.Worlds.World(region)
	if !ok {
		f.queue.Remove(key)
		return OutcomeUnloaded, region
	}
	l := locator{pos: pos, region: region, key: key, chunk: ChunkOf(pos)}
	if !force && !w.ChunkLoaded(pos) {
		f.queue.Remove(key)
		return OutcomeUnloaded, region
	}

	c := f.conf.Catalog
	live := w.Block(pos)
	if live.Type == c.Air() || live.Type != s.Type || !f.rates.Tracked(s.Type) {
		f.untrack(l)
		return OutcomeStale, region
	}

	required, _ := f.rates.RequiredSeconds(s.Type)
	now := f.now()
	elapsed := max(now-s.PlantedAt, 0)
	maxStage := c.MaxGrowth(s.Type)

	if elapsed < int64(required) {
		w.SetGrowth(pos, int(elapsed*int64(maxStage)/int64(required)))
		if !f.queue.Contains(key) {
			f.queue.Enqueue(key, s)
		}
		return OutcomeGrown, region
	}

	w.SetGrowth(pos, maxStage)
	fruit, stem := c.Fruit(s.Type)
	if !stem {
		f.queue.Remove(key)
		return OutcomeMatured, region
	}
	return f.evaluateStem(w, l, s, fruit, now), region
}

// evaluateStem handles a fully grown stem. A stem is done once a fruit is next to it. Otherwise it is
// given a fruit time if it has none, grows a fruit on a free spot once that time has passed, and stays
// queued until it managed to do so.
func (f *Farm) evaluateStem(w World, l locator, s State, fruit BlockType, now int64) Outcome {
	for _, face := range horizontalFaces {
		if w.Block(l.pos.Side(face)).Type == fruit {
			f.queue.Remove(l.key)
			return OutcomeMatured
		}
	}
	if !s.FruitScheduled() {
		s.FruitAt = now + f.fruitDelay()
		f.write(l, s)
	}
	if s.FruitAt <= now && f.spawnFruit(w, l.pos, fruit) {
		f.queue.Remove(l.key)
		return OutcomeFruitSpawned
	}
	f.queue.Enqueue(l.key, s)
	return OutcomeWaiting
}

// spawnFruit places fruit on a random free cell next to pos that rests on soil. It reports if a cell was
// found.
func (f *Farm) spawnFruit(w World, pos cube.Pos, fruit BlockType) bool {
	faces := slices.Clone(horizontalFaces)
	f.conf.Rand.Shuffle(len(faces), func(i, j int) {
		faces[i], faces[j] = faces[j], faces[i]
	})
	c := f.conf.Catalog
	for _, face := range faces {
		side := pos.Side(face)
		if w.Block(side).Type != c.Air() || !c.Soil(w.Block(side.Side(cube.FaceDown)).Type) {
			continue
		}
		w.SetBlock(side, fruit)
		return true
	}
	return false
}
