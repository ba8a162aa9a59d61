package farm

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
)

const (
	testAir      BlockType = 0
	testStone    BlockType = 1
	testGrass    BlockType = 2
	testDirt     BlockType = 3
	testWheat    BlockType = 59
	testFarmland BlockType = 60
	testPumpkin  BlockType = 86
	testMelon    BlockType = 103
	testPStem    BlockType = 104
	testMStem    BlockType = 105
	testCarrot   BlockType = 141
	testPotato   BlockType = 142
	testBeetroot BlockType = 244
)

type testCatalog struct{}

var testNames = map[string]BlockType{
	"AIR":            testAir,
	"GRASS":          testGrass,
	"DIRT":           testDirt,
	"WHEAT_BLOCK":    testWheat,
	"FARMLAND":       testFarmland,
	"PUMPKIN":        testPumpkin,
	"MELON_BLOCK":    testMelon,
	"PUMPKIN_STEM":   testPStem,
	"MELON_STEM":     testMStem,
	"CARROT_BLOCK":   testCarrot,
	"CARROTS":        testCarrot,
	"POTATOES":       testPotato,
	"POTATO_BLOCK":   testPotato,
	"BEETROOT_BLOCK": testBeetroot,
}

func (testCatalog) Lookup(name string) (BlockType, bool) {
	t, ok := testNames[name]
	return t, ok
}

func (testCatalog) Fruit(t BlockType) (BlockType, bool) {
	switch t {
	case testPStem:
		return testPumpkin, true
	case testMStem:
		return testMelon, true
	}
	return 0, false
}

func (testCatalog) MaxGrowth(BlockType) int { return 7 }

func (testCatalog) Soil(t BlockType) bool {
	return t == testFarmland || t == testGrass || t == testDirt
}

func (testCatalog) Air() BlockType { return testAir }

type testWorld struct {
	blocks   map[cube.Pos]Block
	unloaded map[ChunkKey]bool
	onGrowth func(pos cube.Pos, stage int)
}

func newTestWorld() *testWorld {
	return &testWorld{blocks: make(map[cube.Pos]Block), unloaded: make(map[ChunkKey]bool)}
}

func (w *testWorld) Block(pos cube.Pos) Block { return w.blocks[pos] }

func (w *testWorld) SetGrowth(pos cube.Pos, stage int) {
	b := w.blocks[pos]
	b.Meta = uint8(stage)
	w.blocks[pos] = b
	if w.onGrowth != nil {
		w.onGrowth(pos, stage)
	}
}

func (w *testWorld) SetBlock(pos cube.Pos, t BlockType) { w.blocks[pos] = Block{Type: t} }

func (w *testWorld) ChunkLoaded(pos cube.Pos) bool { return !w.unloaded[ChunkOf(pos)] }

func (w *testWorld) count(t BlockType) int {
	n := 0
	for _, b := range w.blocks {
		if b.Type == t {
			n++
		}
	}
	return n
}

type testWorlds map[string]*testWorld

func (ws testWorlds) Resolve(region string) bool {
	_, ok := ws[region]
	return ok
}

func (ws testWorlds) World(region string) (World, bool) {
	w, ok := ws[region]
	if !ok {
		return nil, false
	}
	return w, true
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type memProvider struct {
	docs   map[Document][]byte
	closed bool
}

func newMemProvider() *memProvider { return &memProvider{docs: make(map[Document][]byte)} }

func (p *memProvider) Load(doc Document) ([]byte, error) {
	data, ok := p.docs[doc]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return data, nil
}

func (p *memProvider) Save(doc Document, data []byte) error {
	p.docs[doc] = append([]byte(nil), data...)
	return nil
}

func (p *memProvider) Close() error {
	p.closed = true
	return nil
}

type testEnv struct {
	farm     *Farm
	world    *testWorld
	clock    *testClock
	provider *memProvider
}

func newTestEnv(t *testing.T, conf Config) *testEnv {
	t.Helper()
	env := &testEnv{world: newTestWorld(), clock: &testClock{now: time.Unix(1_700_000_000, 0)}}
	if p, ok := conf.Provider.(*memProvider); ok {
		env.provider = p
	} else if conf.Provider == nil {
		env.provider = newMemProvider()
		conf.Provider = env.provider
	}
	conf.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	conf.Worlds = testWorlds{"world": env.world}
	conf.Catalog = testCatalog{}
	conf.Clock = env.clock.Now
	if conf.Rand == nil {
		conf.Rand = rand.New(rand.NewPCG(1, 2))
	}
	f, err := conf.New()
	if err != nil {
		t.Fatalf("create farm: %v", err)
	}
	env.farm = f
	return env
}

// plant sets a block of type t at pos on farmland and starts tracking it.
func (env *testEnv) plant(t *testing.T, pos cube.Pos, bt BlockType) {
	t.Helper()
	env.world.blocks[pos] = Block{Type: bt}
	env.world.blocks[pos.Side(cube.FaceDown)] = Block{Type: testFarmland}
	if !env.farm.Place("world", pos, bt) {
		t.Fatalf("expected block type %d to be tracked", bt)
	}
}
