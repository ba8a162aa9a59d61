package farmpebble

import (
	"errors"
	"testing"

	"github.com/dm-vev/alwaysfarm/server/world/farm"
)

func TestDBRoundTrip(t *testing.T) {
	dir := t.TempDir()
	db, err := Config{}.Open(dir)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := db.Load(farm.DocumentFarm); !errors.Is(err, farm.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := db.Save(farm.DocumentFarm, []byte(`{"world":{}}`)); err != nil {
		t.Fatalf("save document: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	db, err = Config{ReadOnly: true}.Open(dir)
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	data, err := db.Load(farm.DocumentFarm)
	if err != nil {
		t.Fatalf("load document: %v", err)
	}
	if string(data) != `{"world":{}}` {
		t.Fatalf("expected document to survive, got %s", data)
	}
	if err := db.Save(farm.DocumentFarm, nil); err == nil {
		t.Fatalf("expected save on a read only database to fail")
	}
}

func TestReadOnlyRequiresDatabase(t *testing.T) {
	if _, err := (Config{ReadOnly: true}).Open(t.TempDir() + "/missing"); err == nil {
		t.Fatalf("expected opening a missing database read only to fail")
	}
}
