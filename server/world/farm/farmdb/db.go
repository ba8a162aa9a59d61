// Package farmdb implements a farm.Provider that keeps the farm documents in a LevelDB database, next to
// or inside the world database of a server.
package farmdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/opt"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
)

// ErrChecksum is returned when a stored document does not match its checksum.
var ErrChecksum = errors.New("document checksum mismatch")

const (
	keyPrefix    = "alwaysfarm:"
	checksumSize = 8
)

// Config holds the optional parameters of a DB.
type Config struct {
	// Log is the Logger used for diagnostics. If nil, slog.Default() is used.
	Log *slog.Logger
	// Compression is the block compression used by LevelDB. The LevelDB default is used if left empty.
	Compression opt.Compression
	// ReadOnly opens the database without write access. Save returns an error in this mode.
	ReadOnly bool
}

// DB implements farm.Provider on a LevelDB database. Every document is stored under its own key, with
// the xxhash of the document prefixed to it.
type DB struct {
	conf Config
	ldb  *leveldb.DB
}

// Open opens the LevelDB database in dir, creating it if it does not exist.
func (conf Config) Open(dir string) (*DB, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	conf.Log = conf.Log.With("provider", "farmdb")
	ldb, err := leveldb.OpenFile(dir, &opt.Options{
		Compression: conf.Compression,
		ReadOnly:    conf.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("open farm db: %w", err)
	}
	return &DB{conf: conf, ldb: ldb}, nil
}

// Open opens the database in dir with the default Config.
func Open(dir string) (*DB, error) {
	var conf Config
	return conf.Open(dir)
}

// Load ...
func (db *DB) Load(doc farm.Document) ([]byte, error) {
	v, err := db.ldb.Get(key(doc), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, farm.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("read %v document: %w", doc, err)
	}
	if len(v) < checksumSize {
		return nil, fmt.Errorf("read %v document: %w: value of %d bytes", doc, ErrChecksum, len(v))
	}
	sum, data := binary.LittleEndian.Uint64(v[:checksumSize]), v[checksumSize:]
	if xxhash.Sum64(data) != sum {
		return nil, fmt.Errorf("read %v document: %w", doc, ErrChecksum)
	}
	return data, nil
}

// Save ...
func (db *DB) Save(doc farm.Document, data []byte) error {
	v := make([]byte, checksumSize, checksumSize+len(data))
	binary.LittleEndian.PutUint64(v, xxhash.Sum64(data))
	v = append(v, data...)
	if err := db.ldb.Put(key(doc), v, nil); err != nil {
		return fmt.Errorf("write %v document: %w", doc, err)
	}
	return nil
}

// Close closes the underlying database.
func (db *DB) Close() error {
	db.conf.Log.Debug("Closing farm db.")
	return db.ldb.Close()
}

func key(doc farm.Document) []byte {
	return []byte(keyPrefix + doc.String())
}
