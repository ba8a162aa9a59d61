package world

import "github.com/dm-vev/alwaysfarm/server/block/legacy"

// subChunkVolume is the number of blocks in a 16x16x16 sub chunk, the base of the random tick speed.
const subChunkVolume = 4096

// Tick performs random ticks on the crops of every loaded chunk column. Each crop grows with a chance of
// RandomTickSpeed out of 4096. The number of crops that grew is returned.
func (w *World) Tick() int {
	speed := w.conf.RandomTickSpeed
	if speed < 0 || w.closed {
		return 0
	}
	n := 0
	for _, pos := range w.LoadedChunks() {
		for bp, state := range w.columns[pos].positions() {
			if !legacy.Crop(legacy.Unpack(state).Type) {
				continue
			}
			if w.conf.Rand.IntN(subChunkVolume) >= speed {
				continue
			}
			if w.RandomTick(bp) {
				n++
			}
		}
	}
	return n
}
