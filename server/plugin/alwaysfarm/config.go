package alwaysfarm

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/df-mc/goleveldb/leveldb/opt"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
	"github.com/dm-vev/alwaysfarm/server/world/farm/farmdb"
	"github.com/dm-vev/alwaysfarm/server/world/farm/farmpebble"
)

// Backend names the storage of the farm snapshot.
type Backend string

const (
	// BackendFile stores the snapshot as JSON documents in the plugin data directory.
	BackendFile Backend = "file"
	// BackendLevelDB stores the snapshot in a LevelDB database in the plugin data directory.
	BackendLevelDB Backend = "leveldb"
	// BackendPebble stores the snapshot in a Pebble database in the plugin data directory.
	BackendPebble Backend = "pebble"
	// BackendNone keeps the farm in memory only.
	BackendNone Backend = "none"
)

// ParseBackend parses a backend name case-insensitively. An empty name is parsed as BackendFile.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(name))); b {
	case "":
		return BackendFile, nil
	case BackendFile, BackendLevelDB, BackendPebble, BackendNone:
		return b, nil
	}
	return "", fmt.Errorf("unknown farm backend %q", name)
}

// ParseRevisit parses the name of a farm.RevisitPolicy. An empty name is parsed as farm.RevisitAbort.
func ParseRevisit(name string) (farm.RevisitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "abort":
		return farm.RevisitAbort, nil
	case "skip":
		return farm.RevisitSkip, nil
	}
	return 0, fmt.Errorf("unknown revisit policy %q", name)
}

// Config holds the settings of the plugin.
type Config struct {
	// ProcessingLimit caps the number of queued blocks evaluated per farm tick. Defaults to 700.
	ProcessingLimit int
	// TickInterval is the number of server ticks between farm ticks. Defaults to 20.
	TickInterval int
	// AutosaveInterval is the number of server ticks between snapshot saves. Zero or less disables
	// autosaving, in which case the snapshot is only written when the plugin is disabled.
	AutosaveInterval int
	// Backend selects where the snapshot is stored. Defaults to BackendFile.
	Backend Backend
	// Compress enables zstd compression of file documents and snappy compression of LevelDB blocks.
	Compress bool
	// Revisit controls how a farm tick reacts to a block that comes up twice.
	Revisit farm.RevisitPolicy
	// FruitDelayMin and FruitDelayMax bound the delay before a mature stem grows its fruit.
	FruitDelayMin, FruitDelayMax time.Duration
	// Metrics receives the counters of the farm. If nil, the farm creates its own.
	Metrics *farm.Metrics
	// Clock and Rand override the time and randomness source of the farm.
	Clock func() time.Time
	Rand  *rand.Rand
}

func (conf Config) withDefaults() Config {
	if conf.TickInterval <= 0 {
		conf.TickInterval = 20
	}
	if conf.Backend == "" {
		conf.Backend = BackendFile
	}
	return conf
}

// provider opens the snapshot storage of the farm in dir.
func (conf Config) provider(dir string, log *slog.Logger) (farm.Provider, error) {
	switch conf.Backend {
	case BackendFile:
		return farm.FileProvider{Dir: dir, Compress: conf.Compress}, nil
	case BackendLevelDB:
		compression := opt.NoCompression
		if conf.Compress {
			compression = opt.SnappyCompression
		}
		db, err := farmdb.Config{Log: log, Compression: compression}.Open(filepath.Join(dir, "farm.db"))
		if err != nil {
			return nil, err
		}
		return db, nil
	case BackendPebble:
		db, err := farmpebble.Config{Log: log}.Open(filepath.Join(dir, "farm.pebble"))
		if err != nil {
			return nil, err
		}
		return db, nil
	case BackendNone:
		return farm.NopProvider{}, nil
	}
	return nil, fmt.Errorf("unknown farm backend %q", conf.Backend)
}
