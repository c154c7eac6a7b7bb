package storage

import (
	"fmt"
	"os"
)

// Config is the configuration surface the storage facade consumes from
// the layer above it: a data directory and a buffer-pool size. A logs
// directory is accepted even though this package does not itself log
// (see cmd/pagestore-server for where logging happens).
type Config struct {
	DataDir        string
	LogsDir        string
	BufferPoolSize int

	// WrapFileManager, when non-nil, decorates the disk file manager at
	// construction time, so layers like page encryption or I/O
	// accounting can sit between the buffer pool and the disk without
	// this package knowing about them.
	WrapFileManager func(FileManager) (FileManager, error)
}

// DefaultConfig returns a small, usable configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir:        "./data",
		LogsDir:        "./logs",
		BufferPoolSize: 128,
	}
}

// Validate checks the configuration surface's stated constraints:
// DataDir must be non-empty, BufferPoolSize strictly positive.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("storage: data directory must not be empty")
	}
	if c.BufferPoolSize <= 0 {
		return fmt.Errorf("storage: buffer pool size must be a positive integer, got %d", c.BufferPoolSize)
	}
	return nil
}

// Engine is the thin storage facade in front of the buffer pool, file
// catalog and file manager: NewPage / ReadPage / WritePage for layers
// above the core.
type Engine struct {
	config      *Config
	catalog     *FileCatalog
	fileManager FileManager
	disk        *DiskFileManager
	pool        *BufferPool
}

// NewEngine wires a disk-backed engine rooted at config.DataDir.
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}

	catalog := NewFileCatalog()
	disk := NewDiskFileManager(catalog)
	var fm FileManager = disk
	if config.WrapFileManager != nil {
		wrapped, err := config.WrapFileManager(fm)
		if err != nil {
			return nil, fmt.Errorf("storage: wrap file manager: %w", err)
		}
		fm = wrapped
	}
	pool := NewBufferPool(config.BufferPoolSize, fm)

	return &Engine{config: config, catalog: catalog, fileManager: fm, disk: disk, pool: pool}, nil
}

// NewInMemoryEngine wires an engine over an InMemoryFileManager, for
// tests that don't want a temp directory.
func NewInMemoryEngine(bufferPoolSize int) *Engine {
	catalog := NewFileCatalog()
	fm := NewInMemoryFileManager()
	pool := NewBufferPool(bufferPoolSize, fm)
	return &Engine{
		config:      &Config{DataDir: ":memory:", BufferPoolSize: bufferPoolSize},
		catalog:     catalog,
		fileManager: fm,
		pool:        pool,
	}
}

// Catalog exposes the file catalog so callers can register files before
// addressing pages inside them.
func (e *Engine) Catalog() *FileCatalog { return e.catalog }

// FileManager exposes the file manager the buffer pool reads and writes
// through: the one returned by Config.WrapFileManager when that hook is
// set, otherwise the DiskFileManager itself.
func (e *Engine) FileManager() FileManager { return e.fileManager }

// BufferPoolStats reports the pool's cumulative hit/miss/error counters
// for the admin metrics surface.
func (e *Engine) BufferPoolStats() BufferPoolStats { return e.pool.Stats() }

// NewPage claims a free frame for pageID and returns an exclusive latch
// on a zeroed frame. The caller must call guard.Page().Initialize.
func (e *Engine) NewPage(pageID PageID) (*PageWriteGuard, error) {
	guard, err := e.pool.AllocateNewPage(pageID)
	if err != nil {
		return nil, pageErr(pageID, OpNewPage, err)
	}
	return guard, nil
}

// ReadPage returns a shared latch on a resident page, loading it from
// disk on a cold cache.
func (e *Engine) ReadPage(pageID PageID) (*PageReadGuard, error) {
	guard, err := e.pool.ReadPage(pageID)
	if err != nil {
		return nil, pageErr(pageID, OpReadPage, err)
	}
	return guard, nil
}

// ReadPageMut returns an exclusive latch on a resident page, loading it
// from disk on a cold cache.
func (e *Engine) ReadPageMut(pageID PageID) (*PageWriteGuard, error) {
	guard, err := e.pool.ReadPageMut(pageID)
	if err != nil {
		return nil, pageErr(pageID, OpReadPage, err)
	}
	return guard, nil
}

// WritePage consumes an exclusive latch, writing the page back to disk
// and releasing the latch.
func (e *Engine) WritePage(pageID PageID, guard *PageWriteGuard) error {
	if err := e.pool.WritePage(guard); err != nil {
		return pageErr(pageID, OpWritePage, err)
	}
	return nil
}

// Close releases any OS resources the engine holds (open file handles).
func (e *Engine) Close() error {
	if e.disk != nil {
		return e.disk.Close()
	}
	return nil
}
