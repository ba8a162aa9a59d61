package server

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dm-vev/alwaysfarm/server/plugin"
	"github.com/dm-vev/alwaysfarm/server/plugin/alwaysfarm"
	"github.com/dm-vev/alwaysfarm/server/world"
	"github.com/pelletier/go-toml"
)

// Config contains options for starting a server.
type Config struct {
	// Log is the Logger to use for logging information. If nil, Log is set to
	// slog.Default().
	Log *slog.Logger
	// Name is the name of the server.
	Name string
	// TickInterval is the duration of a single server tick. If 0, the server
	// ticks 20 times per second.
	TickInterval time.Duration
	// Worlds holds the configuration of every world created by the server. If
	// empty, a single flat world named "world" is created.
	Worlds []world.Config
	// RandomTickSpeed is used for worlds in Worlds that do not set their own
	// random tick speed. Setting this value to -1 or lower stops random
	// ticking altogether.
	RandomTickSpeed int
	// Plugins controls the plugin manager. The manager is always enabled
	// unless DisableFarm is set.
	Plugins plugin.Config
	// DisableFarm stops the server from enabling the AlwaysFarm plugin, leaving
	// crops to grow natively.
	DisableFarm bool
	// Farm holds the settings of the AlwaysFarm plugin.
	Farm alwaysfarm.Config
}

// New creates a Server using fields of conf. The worlds of the Server are
// created and the AlwaysFarm plugin is enabled, but the Server does not tick
// until Start is called.
func (conf Config) New() (*Server, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Name == "" {
		conf.Name = "AlwaysFarm Server"
	}
	if conf.TickInterval <= 0 {
		conf.TickInterval = time.Second / 20
	}
	if len(conf.Worlds) == 0 {
		conf.Worlds = []world.Config{{Name: "world", Generator: world.Flat{Surface: 64}}}
	}
	// Copy worlds so that the slice can't be edited afterward.
	conf.Worlds = slices.Clone(conf.Worlds)
	if !conf.DisableFarm {
		conf.Plugins.Enabled = true
	}

	srv := &Server{
		conf:    conf,
		worlds:  world.NewRegistry(),
		tasks:   make(map[uint64]*repeatingTask),
		closing: make(chan struct{}),
	}
	srv.plugins = plugin.NewManager[*Server, Config](newPluginHost(srv), conf.Plugins)
	if srv.plugins.Enabled() {
		world.SetHandlerWrap(srv.plugins.WorldHandlerWrap)
	}

	for _, wc := range conf.Worlds {
		if wc.Log == nil {
			wc.Log = conf.Log
		}
		if wc.RandomTickSpeed == 0 {
			wc.RandomTickSpeed = conf.RandomTickSpeed
		}
		w, err := wc.New()
		if err == nil {
			err = srv.worlds.Add(w)
		}
		if err != nil {
			return nil, srv.abort(fmt.Errorf("create world: %w", err))
		}
	}

	if !conf.DisableFarm {
		if _, err := srv.plugins.Enable(alwaysfarm.Name, alwaysfarm.Factory[*Server, Config](conf.Farm)); err != nil {
			return nil, srv.abort(fmt.Errorf("enable farm: %w", err))
		}
	}
	return srv, nil
}

// UserConfig is the user configuration of a server. It may be serialised to
// TOML and can be converted to a Config by calling UserConfig.Config().
type UserConfig struct {
	Server struct {
		// Name is the name of the server.
		Name string
		// Worlds lists the names of the worlds to create. World names may not
		// contain dots or quotes.
		Worlds []string
		// Surface is the height of the grass surface of the flat worlds.
		Surface int
		// RandomTickSpeed is the chance out of 4096 that a crop grows natively
		// every tick. Set to -1 to disable native growth entirely.
		RandomTickSpeed int
	}
	Farm struct {
		// Enabled controls if crops grow through the farm.
		Enabled bool
		// ProcessingLimit caps the number of queued blocks evaluated per farm
		// tick.
		ProcessingLimit int
		// TickInterval is the number of server ticks between farm ticks.
		TickInterval int
		// AutosaveInterval is the number of server ticks between snapshot
		// saves. Set to 0 to only save on shutdown.
		AutosaveInterval int
		// Revisit is either "abort" or "skip" and controls what a farm tick
		// does with a block that comes up twice in the same pass.
		Revisit string
		// FruitDelayMin and FruitDelayMax bound the delay before a mature stem
		// grows its fruit, for example "7m".
		FruitDelayMin, FruitDelayMax string
	}
	Storage struct {
		// Backend is one of "file", "leveldb", "pebble" or "none".
		Backend string
		// Compress enables compression of the stored snapshot.
		Compress bool
	}
	Plugins struct {
		// Directory is the base directory of plugin state.
		Directory string
		// DataDirectory is the directory that holds plugin data, relative to
		// Directory.
		DataDirectory string
	}
	Metrics struct {
		// Enabled controls if Prometheus metrics are served.
		Enabled bool
		// Address is the address the metrics endpoint listens on.
		Address string
	}
	Simulation struct {
		// Enabled controls if crops are planted and chunks are loaded and
		// unloaded automatically.
		Enabled bool
		// Radius is the radius in chunks around the origin of every world that
		// the simulation plants in.
		Radius int
		// PlantInterval is the number of server ticks between plantings.
		PlantInterval int
		// PlantCount is the number of crops planted at once.
		PlantCount int
		// UnloadInterval is the number of server ticks between chunk
		// unload/reload cycles.
		UnloadInterval int
		// Seed seeds the random planting of every world, mixed with the name
		// of the world.
		Seed uint64
	}
}

// Config converts a UserConfig to a Config, so that it may be used for
// creating a Server. An error is returned if a setting holds an invalid value.
func (uc UserConfig) Config(log *slog.Logger) (Config, error) {
	conf := Config{
		Log:             log,
		Name:            uc.Server.Name,
		RandomTickSpeed: uc.Server.RandomTickSpeed,
		DisableFarm:     !uc.Farm.Enabled,
		Plugins: plugin.Config{
			Enabled:       true,
			Directory:     uc.Plugins.Directory,
			DataDirectory: uc.Plugins.DataDirectory,
		},
	}
	for _, name := range uc.Server.Worlds {
		name = strings.TrimSpace(name)
		conf.Worlds = append(conf.Worlds, world.Config{Name: name, Generator: world.Flat{Surface: uc.Server.Surface}})
	}

	var err error
	fc := &conf.Farm
	fc.ProcessingLimit = uc.Farm.ProcessingLimit
	fc.TickInterval = uc.Farm.TickInterval
	fc.AutosaveInterval = uc.Farm.AutosaveInterval
	fc.Compress = uc.Storage.Compress
	if fc.Backend, err = alwaysfarm.ParseBackend(uc.Storage.Backend); err != nil {
		return conf, fmt.Errorf("storage: %w", err)
	}
	if fc.Revisit, err = alwaysfarm.ParseRevisit(uc.Farm.Revisit); err != nil {
		return conf, fmt.Errorf("farm: %w", err)
	}
	if fc.FruitDelayMin, err = parseDuration(uc.Farm.FruitDelayMin); err != nil {
		return conf, fmt.Errorf("farm: fruit delay min: %w", err)
	}
	if fc.FruitDelayMax, err = parseDuration(uc.Farm.FruitDelayMax); err != nil {
		return conf, fmt.Errorf("farm: fruit delay max: %w", err)
	}
	if fc.FruitDelayMin > fc.FruitDelayMax && fc.FruitDelayMax != 0 {
		return conf, fmt.Errorf("farm: fruit delay min %v exceeds max %v", fc.FruitDelayMin, fc.FruitDelayMax)
	}
	return conf, nil
}

func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// DefaultConfig returns a configuration with the default values filled out.
func DefaultConfig() UserConfig {
	c := UserConfig{}
	c.Server.Name = "AlwaysFarm Server"
	c.Server.Worlds = []string{"world"}
	c.Server.Surface = 64
	c.Server.RandomTickSpeed = 3
	c.Farm.Enabled = true
	c.Farm.ProcessingLimit = 700
	c.Farm.TickInterval = 20
	c.Farm.AutosaveInterval = 6000
	c.Farm.Revisit = "abort"
	c.Farm.FruitDelayMin = "7m"
	c.Farm.FruitDelayMax = "17m"
	c.Storage.Backend = string(alwaysfarm.BackendFile)
	c.Plugins.Directory = "plugins"
	c.Plugins.DataDirectory = "data"
	c.Metrics.Address = ":9100"
	c.Simulation.Radius = 4
	c.Simulation.PlantInterval = 20
	c.Simulation.PlantCount = 8
	c.Simulation.UnloadInterval = 1200
	return c
}

// ReadUserConfig reads the user configuration stored in the TOML file at
// path. Settings missing from the file keep their default value. If the file
// does not exist yet, it is created holding DefaultConfig().
func ReadUserConfig(path string) (UserConfig, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return c, fmt.Errorf("read config: %w", err)
		}
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return c, fmt.Errorf("create config directory: %w", err)
			}
		}
		encoded, err := toml.Marshal(c)
		if err != nil {
			return c, fmt.Errorf("encode default config: %w", err)
		}
		if err := os.WriteFile(path, encoded, 0o644); err != nil {
			return c, fmt.Errorf("write default config: %w", err)
		}
		return c, nil
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}
