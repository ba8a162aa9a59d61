package farm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// ErrDocumentNotFound is returned by a Provider if a document was never saved.
var ErrDocumentNotFound = errors.New("document not found")

// Document identifies one of the snapshot documents of a farm.
type Document uint8

const (
	// DocumentSettings holds the growth duration overrides by block name.
	DocumentSettings Document = iota
	// DocumentFarm holds the region index.
	DocumentFarm
	// DocumentQueue holds the active queue.
	DocumentQueue
)

// Documents lists all documents in the order they are loaded.
var Documents = []Document{DocumentSettings, DocumentFarm, DocumentQueue}

// String ...
func (d Document) String() string {
	switch d {
	case DocumentSettings:
		return "setting"
	case DocumentFarm:
		return "farm"
	case DocumentQueue:
		return "queue"
	}
	return fmt.Sprintf("document(%d)", uint8(d))
}

// Provider stores the snapshot documents of a farm. Documents are opaque JSON blobs to a Provider.
type Provider interface {
	// Load returns the document last saved. ErrDocumentNotFound is returned if there is none.
	Load(doc Document) ([]byte, error)
	// Save replaces the document stored.
	Save(doc Document, data []byte) error
	// Close releases the resources held by the Provider.
	Close() error
}

// NopProvider implements a Provider that never stores anything.
type NopProvider struct{}

// Load ...
func (NopProvider) Load(Document) ([]byte, error) { return nil, ErrDocumentNotFound }

// Save ...
func (NopProvider) Save(Document, []byte) error { return nil }

// Close ...
func (NopProvider) Close() error { return nil }

// FileProvider stores every document as a JSON file in a directory. If Compress is true, documents are
// zstd compressed and stored with a .json.zst extension.
type FileProvider struct {
	Dir      string
	Compress bool
}

// Path returns the file that holds doc.
func (p FileProvider) Path(doc Document) string {
	name := doc.String() + ".json"
	if p.Compress {
		name += ".zst"
	}
	return filepath.Join(p.Dir, name)
}

// Load ...
func (p FileProvider) Load(doc Document) ([]byte, error) {
	data, err := os.ReadFile(p.Path(doc))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("read %v document: %w", doc, err)
	}
	if !p.Compress {
		return data, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %v document: %w", doc, err)
	}
	return out, nil
}

// Save writes doc to a temporary file first and renames it, so that an interrupted save never leaves a
// truncated document behind.
func (p FileProvider) Save(doc Document, data []byte) error {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("create farm directory: %w", err)
	}
	if p.Compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("create zstd writer: %w", err)
		}
		data = enc.EncodeAll(data, nil)
		_ = enc.Close()
	}
	path := p.Path(doc)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %v document: %w", doc, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %v document: %w", doc, err)
	}
	return nil
}

// Close ...
func (FileProvider) Close() error { return nil }
