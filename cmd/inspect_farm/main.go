package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/df-mc/goleveldb/leveldb/opt"
	"github.com/dm-vev/alwaysfarm/server/block/legacy"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
	"github.com/dm-vev/alwaysfarm/server/world/farm/farmdb"
	"github.com/dm-vev/alwaysfarm/server/world/farm/farmpebble"
)

// inspect_farm prints a summary of a stored farm snapshot: the number of tracked blocks per region and
// chunk column, and the head of the active queue.
func main() {
	var (
		dir      = flag.String("dir", "plugins/data/alwaysfarm", "data directory of the farm")
		backend  = flag.String("backend", "file", "storage backend, file, leveldb or pebble")
		compress = flag.Bool("compress", false, "snapshot documents of the file backend are compressed")
		head     = flag.Int("head", 10, "number of queued blocks to print")
	)
	flag.Parse()

	if err := inspect(*dir, *backend, *compress, *head); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func inspect(dir, backend string, compress bool, head int) error {
	var prov farm.Provider
	switch backend {
	case "file":
		prov = farm.FileProvider{Dir: dir, Compress: compress}
	case "leveldb":
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		db, err := farmdb.Config{Log: log, Compression: opt.DefaultCompression, ReadOnly: true}.Open(filepath.Join(dir, "farm.db"))
		if err != nil {
			return err
		}
		prov = db
	case "pebble":
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		db, err := farmpebble.Config{Log: log, ReadOnly: true}.Open(filepath.Join(dir, "farm.pebble"))
		if err != nil {
			return err
		}
		prov = db
	default:
		return fmt.Errorf("unknown backend %q", backend)
	}
	defer prov.Close()

	idx := farm.NewIndex()
	if data, err := prov.Load(farm.DocumentFarm); err == nil {
		if err := idx.UnmarshalJSON(data); err != nil {
			return err
		}
	} else if !errors.Is(err, farm.ErrDocumentNotFound) {
		return err
	}
	fmt.Printf("tracked blocks: %d\n", idx.Len())
	for _, region := range idx.Regions() {
		chunks := idx.Chunks(region)
		keys := make([]farm.ChunkKey, 0, len(chunks))
		total := 0
		for k, n := range chunks {
			keys = append(keys, k)
			total += n
		}
		slices.Sort(keys)
		fmt.Printf("region %s: %d blocks in %d chunks\n", region, total, len(chunks))
		for _, k := range keys {
			x, z, err := farm.DecodeChunk(k)
			if err != nil {
				fmt.Printf("  malformed chunk key %q\n", k)
				continue
			}
			fmt.Printf("  chunk %d,%d: %d\n", x, z, chunks[k])
		}
	}

	q := farm.NewQueue()
	if data, err := prov.Load(farm.DocumentQueue); err == nil {
		if err := q.UnmarshalJSON(data); err != nil {
			return err
		}
	} else if !errors.Is(err, farm.ErrDocumentNotFound) {
		return err
	}
	fmt.Printf("queued blocks: %d\n", q.Len())
	for i, e := range q.Entries() {
		if i >= head {
			break
		}
		pos, region, err := farm.DecodePosition(e.Key, nil)
		if err != nil {
			fmt.Printf("  malformed key %q\n", e.Key)
			continue
		}
		fmt.Printf("  %s %v %s planted=%d fruit=%d\n", region, pos, legacy.Name(e.State.Type), e.State.PlantedAt, e.State.FruitAt)
	}
	return nil
}
