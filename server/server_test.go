package server

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/dm-vev/alwaysfarm/server/block/legacy"
	"github.com/dm-vev/alwaysfarm/server/plugin/alwaysfarm"
	"github.com/dm-vev/alwaysfarm/server/world"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
)

func newTestServer(t *testing.T, now *time.Time) *Server {
	t.Helper()
	conf := Config{
		Log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		RandomTickSpeed: -1,
	}
	conf.Plugins.Directory = t.TempDir()
	conf.Farm.Clock = func() time.Time { return *now }
	conf.Farm.Rand = rand.New(rand.NewPCG(1, 2))

	srv, err := conf.New()
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestExecRunsOnStep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	srv := newTestServer(t, &now)

	ran := false
	done := srv.Exec(func() { ran = true })
	select {
	case <-done:
		t.Fatalf("expected exec to wait for the next tick")
	default:
	}
	srv.step()
	<-done
	if !ran {
		t.Fatalf("expected exec function to run")
	}
}

func TestScheduleRepeating(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	srv := newTestServer(t, &now)

	count := 0
	cancel := srv.ScheduleRepeating(5, func() { count++ })
	for range 10 {
		srv.step()
	}
	if count != 2 {
		t.Fatalf("expected 2 runs in 10 ticks, got %d", count)
	}
	cancel()
	for range 10 {
		srv.step()
	}
	if count != 2 {
		t.Fatalf("expected no runs after cancel, got %d", count)
	}
	if srv.ScheduleRepeating(0, func() {}) == nil {
		t.Fatalf("expected a cancel function for an invalid interval")
	}
}

func TestFarmGrowsCropsOnServerTicks(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	srv := newTestServer(t, &now)

	w, ok := srv.World("world")
	if !ok {
		t.Fatalf("expected default world")
	}
	w.LoadChunk(world.ChunkPos{})
	pos := cube.Pos{3, 65, 3}
	if !w.PlaceBlock(pos, farm.Block{Type: legacy.Wheat}) {
		t.Fatalf("expected placement to succeed")
	}

	now = now.Add(30 * time.Minute)
	for range 20 {
		srv.step()
	}
	if got := w.Block(pos).Meta; got != legacy.MaxGrowth {
		t.Fatalf("expected mature wheat, got stage %d", got)
	}
}

func TestCloseSavesFarm(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	srv := newTestServer(t, &now)

	w, _ := srv.World("world")
	w.PlaceBlock(cube.Pos{0, 65, 0}, farm.Block{Type: legacy.Carrot})
	infos := srv.Plugins().Infos()
	if len(infos) != 1 || infos[0].Name != alwaysfarm.Name {
		t.Fatalf("expected the farm plugin to be enabled, got %+v", infos)
	}
	dir := infos[0].DataDirectory

	if err := srv.Close(); err != nil {
		t.Fatalf("close server: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op: %v", err)
	}
	if srv.Worlds().Len() != 0 {
		t.Fatalf("expected worlds to be closed")
	}
	if _, err := os.Stat(farm.FileProvider{Dir: dir}.Path(farm.DocumentFarm)); err != nil {
		t.Fatalf("expected farm snapshot on disk: %v", err)
	}
}

func TestStartAndClose(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	srv := newTestServer(t, &now)
	srv.Start()
	if srv.StartTime().IsZero() {
		t.Fatalf("expected start time to be set")
	}
	<-srv.Exec(func() {})
	if err := srv.Close(); err != nil {
		t.Fatalf("close server: %v", err)
	}
}

func TestDisableFarm(t *testing.T) {
	srv, err := Config{Log: slog.New(slog.NewTextHandler(io.Discard, nil)), DisableFarm: true}.New()
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	defer srv.Close()
	if srv.Plugins().Enabled() {
		t.Fatalf("expected plugins to stay disabled")
	}
	if _, err := srv.Plugins().Enable("x", nil); err != ErrPluginsDisabled {
		t.Fatalf("expected disabled plugin subsystem, got %v", err)
	}
}

func TestInvalidWorldName(t *testing.T) {
	_, err := Config{
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Worlds: []world.Config{{Name: "a.b"}},
	}.New()
	if err == nil {
		t.Fatalf("expected invalid world name to fail")
	}
}

func TestReadUserConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.toml")
	uc, err := ReadUserConfig(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}
	if uc.Farm.ProcessingLimit != 700 {
		t.Fatalf("expected default processing limit, got %d", uc.Farm.ProcessingLimit)
	}

	if err := os.WriteFile(path, []byte("[Farm]\nProcessingLimit = 50\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	uc, err = ReadUserConfig(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if uc.Farm.ProcessingLimit != 50 || uc.Farm.TickInterval != 20 {
		t.Fatalf("expected overridden limit and default interval, got %d, %d", uc.Farm.ProcessingLimit, uc.Farm.TickInterval)
	}
}

func TestUserConfigConversion(t *testing.T) {
	uc := DefaultConfig()
	conf, err := uc.Config(nil)
	if err != nil {
		t.Fatalf("convert config: %v", err)
	}
	if conf.Farm.FruitDelayMin != 7*time.Minute || conf.Farm.FruitDelayMax != 17*time.Minute {
		t.Fatalf("unexpected fruit delays %v, %v", conf.Farm.FruitDelayMin, conf.Farm.FruitDelayMax)
	}
	if conf.Farm.Revisit != farm.RevisitAbort || conf.Farm.Backend != alwaysfarm.BackendFile {
		t.Fatalf("unexpected farm settings %+v", conf.Farm)
	}
	if len(conf.Worlds) != 1 || conf.Worlds[0].Name != "world" {
		t.Fatalf("unexpected worlds %+v", conf.Worlds)
	}

	bad := []func(*UserConfig){
		func(c *UserConfig) { c.Storage.Backend = "redis" },
		func(c *UserConfig) { c.Farm.Revisit = "retry" },
		func(c *UserConfig) { c.Farm.FruitDelayMin = "soon" },
		func(c *UserConfig) { c.Farm.FruitDelayMin, c.Farm.FruitDelayMax = "10m", "5m" },
	}
	for i, edit := range bad {
		c := DefaultConfig()
		edit(&c)
		if _, err := c.Config(nil); err == nil {
			t.Fatalf("case %d: expected conversion to fail", i)
		}
	}
}
