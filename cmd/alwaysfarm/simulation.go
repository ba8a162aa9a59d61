package main

import (
	"log/slog"
	"math/rand/v2"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/dm-vev/alwaysfarm/server"
	"github.com/dm-vev/alwaysfarm/server/block/legacy"
	"github.com/dm-vev/alwaysfarm/server/world"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
	"github.com/segmentio/fasthash/fnv1a"
)

var plantable = []farm.BlockType{
	legacy.Wheat, legacy.Carrot, legacy.Potato, legacy.Beetroot, legacy.PumpkinStem, legacy.MelonStem,
}

// simulation plants crops on the flat worlds of a server and loads and unloads chunks around the origin,
// so that the farm has work to do without players.
type simulation struct {
	srv *server.Server
	log *slog.Logger

	radius                  int32
	surface                 int
	plantEvery, unloadEvery int
	plantCount              int
	seed                    uint64
	rands                   map[string]*rand.Rand
}

func newSimulation(srv *server.Server, uc server.UserConfig, log *slog.Logger) *simulation {
	return &simulation{
		srv:         srv,
		log:         log.With("component", "simulation"),
		radius:      int32(max(uc.Simulation.Radius, 0)),
		surface:     uc.Server.Surface,
		plantEvery:  uc.Simulation.PlantInterval,
		unloadEvery: uc.Simulation.UnloadInterval,
		plantCount:  uc.Simulation.PlantCount,
		seed:        uc.Simulation.Seed,
		rands:       make(map[string]*rand.Rand),
	}
}

// start loads the chunks in range of the simulation and schedules planting and chunk cycling. It must be
// called on the server goroutine.
func (s *simulation) start() {
	for _, w := range s.srv.Worlds().All() {
		s.forChunks(func(pos world.ChunkPos) { w.LoadChunk(pos) })
	}
	s.srv.ScheduleRepeating(s.plantEvery, s.plant)
	s.srv.ScheduleRepeating(s.unloadEvery, s.cycle)
	s.log.Info("Simulation started.", "radius", s.radius, "worlds", s.srv.Worlds().Len())
}

// rand returns the random source of a world. Every world gets its own stream derived from its name, so
// that runs with the same seed plant the same crops.
func (s *simulation) rand(name string) *rand.Rand {
	r, ok := s.rands[name]
	if !ok {
		r = rand.New(rand.NewPCG(fnv1a.HashString64(name)^s.seed, s.seed))
		s.rands[name] = r
	}
	return r
}

func (s *simulation) plant() {
	for _, w := range s.srv.Worlds().All() {
		r := s.rand(w.Name())
		planted := 0
		for range s.plantCount {
			span := int(2*s.radius + 1)
			x := (r.IntN(span)-int(s.radius))*16 + r.IntN(16)
			z := (r.IntN(span)-int(s.radius))*16 + r.IntN(16)
			pos := cube.Pos{x, s.surface + 1, z}
			if w.Block(pos).Type != legacy.Air {
				continue
			}
			w.SetBlock(pos.Side(cube.FaceDown), legacy.Farmland)
			if w.PlaceBlock(pos, farm.Block{Type: plantable[r.IntN(len(plantable))]}) {
				planted++
			}
		}
		s.log.Debug("Planted crops.", "world", w.Name(), "count", planted)
	}
}

// cycle unloads roughly half of the loaded chunks in range and loads the rest again.
func (s *simulation) cycle() {
	for _, w := range s.srv.Worlds().All() {
		r := s.rand(w.Name())
		s.forChunks(func(pos world.ChunkPos) {
			loaded := w.ChunkLoaded(cube.Pos{int(pos.X()) << 4, 0, int(pos.Z()) << 4})
			switch {
			case loaded && r.IntN(2) == 0:
				w.UnloadChunk(pos)
			case !loaded:
				w.LoadChunk(pos)
			}
		})
	}
}

func (s *simulation) forChunks(f func(pos world.ChunkPos)) {
	for x := -s.radius; x <= s.radius; x++ {
		for z := -s.radius; z <= s.radius; z++ {
			f(world.ChunkPos{x, z})
		}
	}
}
