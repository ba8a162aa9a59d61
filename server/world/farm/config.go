package farm

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RevisitPolicy controls what a tick pass does when it reaches a key it already evaluated in the same
// pass.
type RevisitPolicy uint8

const (
	// RevisitAbort ends the pass as soon as a key comes up a second time.
	RevisitAbort RevisitPolicy = iota
	// RevisitSkip moves the repeated key to the back of the queue and continues the pass.
	RevisitSkip
)

// Config holds the tunable parameters of a Farm. Worlds and Catalog are required, every other field has a
// usable zero value.
type Config struct {
	// Log is the Logger used for diagnostics. If nil, slog.Default() is used.
	Log *slog.Logger
	// Worlds resolves regions to their live world state.
	Worlds Worlds
	// Catalog describes the block types of the host.
	Catalog Catalog
	// Provider stores the snapshot documents. If nil, nothing is persisted.
	Provider Provider
	// ProcessingLimit caps the number of queued blocks evaluated by a single Tick. Defaults to 700.
	ProcessingLimit int
	// FruitDelayMin and FruitDelayMax bound the random delay after which a mature stem may grow its
	// fruit. They default to 7 and 17 minutes.
	FruitDelayMin, FruitDelayMax time.Duration
	// Revisit controls how a tick pass reacts to a key it already evaluated.
	Revisit RevisitPolicy
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// Rand is the source of fruit delays and spawn directions. If nil, a randomly seeded source is used.
	Rand *rand.Rand
	// Metrics receives per-region counters. If nil, a new Metrics is created.
	Metrics *Metrics
}

const (
	defaultProcessingLimit = 700
	defaultFruitDelayMin   = 7 * time.Minute
	defaultFruitDelayMax   = 17 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.Provider == nil {
		c.Provider = NopProvider{}
	}
	if c.ProcessingLimit <= 0 {
		c.ProcessingLimit = defaultProcessingLimit
	}
	if c.FruitDelayMin <= 0 {
		c.FruitDelayMin = defaultFruitDelayMin
	}
	if c.FruitDelayMax < c.FruitDelayMin {
		c.FruitDelayMax = max(c.FruitDelayMin, defaultFruitDelayMax)
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if c.Metrics == nil {
		c.Metrics = NewMetrics()
	}
	return c
}

// New creates a Farm and restores its state from the documents of the Provider. Documents that are
// missing or cannot be decoded are replaced by defaults, so New only fails on an incomplete Config.
func (c Config) New() (*Farm, error) {
	if c.Worlds == nil {
		return nil, errors.New("farm: config requires worlds")
	}
	if c.Catalog == nil {
		return nil, errors.New("farm: config requires catalog")
	}
	c = c.withDefaults()
	f := &Farm{
		conf:    c,
		log:     c.Log.With("subsystem", "farm"),
		index:   NewIndex(),
		queue:   NewQueue(),
		metrics: c.Metrics,
	}
	f.load()
	return f, nil
}
