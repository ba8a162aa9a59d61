// Package farmpebble implements a farm.Provider on a Pebble database.
package farmpebble

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cockroachdb/pebble"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
)

const keyPrefix = "alwaysfarm/"

// Config holds the optional parameters of a DB.
type Config struct {
	// Log is the Logger used for diagnostics. If nil, slog.Default() is used.
	Log *slog.Logger
	// ReadOnly opens an existing database without write access.
	ReadOnly bool
}

// DB stores every farm document under its own key of a Pebble database. Writes are synced before Save
// returns.
type DB struct {
	conf Config
	db   *pebble.DB
}

// Open opens the database in dir. Unless ReadOnly is set, the database is created if it does not exist.
func (conf Config) Open(dir string) (*DB, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	conf.Log = conf.Log.With("provider", "farmpebble")
	opts := pebble.Options{
		ReadOnly:         conf.ReadOnly,
		ErrorIfNotExists: conf.ReadOnly,
	}
	db, err := pebble.Open(dir, &opts)
	if err != nil {
		return nil, fmt.Errorf("open farm pebble db: %w", err)
	}
	return &DB{conf: conf, db: db}, nil
}

// Load ...
func (db *DB) Load(doc farm.Document) ([]byte, error) {
	v, closer, err := db.db.Get(key(doc))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, farm.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("read %v document: %w", doc, err)
	}
	// v is only valid until closer is closed.
	data := slices.Clone(v)
	if err := closer.Close(); err != nil {
		return nil, fmt.Errorf("read %v document: %w", doc, err)
	}
	return data, nil
}

// Save ...
func (db *DB) Save(doc farm.Document, data []byte) error {
	if db.conf.ReadOnly {
		return fmt.Errorf("write %v document: database is read only", doc)
	}
	if err := db.db.Set(key(doc), data, pebble.Sync); err != nil {
		return fmt.Errorf("write %v document: %w", doc, err)
	}
	return nil
}

// Close closes the underlying database.
func (db *DB) Close() error {
	db.conf.Log.Debug("Closing farm pebble db.")
	return db.db.Close()
}

func key(doc farm.Document) []byte {
	return []byte(keyPrefix + doc.String())
}
