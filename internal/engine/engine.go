// Package engine implements the Persistence Engine: per-collection file
// layout under a base directory, append, full-log replay, and atomic
// compaction. Every collection name maps to exactly one file, <name>.aev,
// a concatenation of frames in the codec package's format.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kartikbazzad/docstore/internal/codec"
)

const fileExt = ".aev"

// Engine owns the base directory and serializes per-file append/compact
// operations with a mutex. The collection controller holds a coarser
// database-wide lock above this; the mutex here only protects concurrent
// os.File handles from interleaving writes to the same path.
type Engine struct {
	mu       sync.Mutex
	basePath string
}

func New(basePath string) *Engine {
	return &Engine{basePath: basePath}
}

// Init ensures the base directory exists. A filesystem failure here is
// fatal to the caller — there is no degraded mode without a data directory.
func (e *Engine) Init() error {
	if err := os.MkdirAll(e.basePath, 0o755); err != nil {
		return fmt.Errorf("engine: init base directory %q: %w", e.basePath, err)
	}
	return nil
}

func (e *Engine) path(collection string) string {
	return filepath.Join(e.basePath, collection+fileExt)
}

// ListCollections returns the stems of all *.aev files in the base
// directory.
func (e *Engine) ListCollections() ([]string, error) {
	entries, err := os.ReadDir(e.basePath)
	if err != nil {
		return nil, fmt.Errorf("engine: list collections: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, fileExt) {
			names = append(names, strings.TrimSuffix(name, fileExt))
		}
	}
	return names, nil
}

// LoadLog returns the frames of a collection's log in file order. A
// missing file is not an error — it means the collection has never been
// written — and returns an empty slice.
func (e *Engine) LoadLog(collection string) ([][]byte, error) {
	f, err := os.Open(e.path(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("engine: open %q: %w", collection, err)
	}
	defer f.Close()

	frames, err := codec.ReadFrames(f)
	if err != nil {
		return frames, fmt.Errorf("engine: read %q: %w", collection, err)
	}
	return frames, nil
}

// Append writes one frame to the collection's log and flushes. The return
// value reports write-stream health; a false return means the caller
// should not trust the frame as durable, even though any prior in-memory
// state change already happened.
func (e *Engine) Append(collection string, payload []byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := os.OpenFile(e.path(collection), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false
	}
	defer f.Close()

	if err := codec.WriteFrame(f, payload); err != nil {
		return false
	}
	return f.Sync() == nil
}

// Compact rewrites a collection's log to contain exactly the given active
// payloads, one frame each, via write-to-temp-then-atomic-rename. On any
// error the temp file is removed and the live file is left untouched.
func (e *Engine) Compact(collection string, activePayloads [][]byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	tmpPath := e.path(collection) + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return false
	}

	for _, payload := range activePayloads {
		if err := codec.WriteFrame(f, payload); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return false
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return false
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return false
	}

	if err := os.Rename(tmpPath, e.path(collection)); err != nil {
		os.Remove(tmpPath)
		return false
	}
	return true
}
