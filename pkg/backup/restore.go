package backup

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mnohosten/pagestore/pkg/compression"
	"github.com/mnohosten/pagestore/pkg/storage"
)

// Restorer writes a snapshot's captured files back to disk and
// re-registers them with a fresh FileCatalog.
type Restorer struct {
	decompressor *compression.Compressor
}

// NewRestorer returns a Restorer able to decompress snapshots written
// with config's algorithm. A nil config uses zstd at level 3, matching
// NewSnapshotter's default.
func NewRestorer(config *compression.Config) (*Restorer, error) {
	if config == nil {
		config = compression.ZstdConfig(3)
	}
	c, err := compression.NewCompressor(config)
	if err != nil {
		return nil, fmt.Errorf("backup: create decompressor: %w", err)
	}
	return &Restorer{decompressor: c}, nil
}

// Close releases the restorer's decompressor resources.
func (r *Restorer) Close() error {
	return r.decompressor.Close()
}

// RestoreFromFile reads a snapshot from path, writing each captured
// file to targetDir/<basename> and registering it with catalog under
// its original FileID.
func (r *Restorer) RestoreFromFile(path, targetDir string, catalog *storage.FileCatalog) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("backup: open snapshot file: %w", err)
	}
	defer file.Close()

	return r.RestoreFromReader(file, targetDir, catalog)
}

// RestoreFromReader reads a snapshot from r, writing each captured file
// to targetDir/<basename> and registering it with catalog.
func (r *Restorer) RestoreFromReader(reader io.Reader, targetDir string, catalog *storage.FileCatalog) (*Manifest, error) {
	br := bufio.NewReader(reader)

	var magic, version uint32
	if err := binary.Read(br, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("backup: read magic: %w", err)
	}
	if magic != snapshotMagic {
		return nil, fmt.Errorf("backup: not a pagestore snapshot (bad magic %#x)", magic)
	}
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("backup: read version: %w", err)
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("backup: unsupported snapshot version %d", version)
	}

	var fileCount uint32
	if err := binary.Read(br, binary.LittleEndian, &fileCount); err != nil {
		return nil, fmt.Errorf("backup: read file count: %w", err)
	}

	if targetDir != "" {
		if err := os.MkdirAll(targetDir, 0o755); err != nil {
			return nil, fmt.Errorf("backup: create restore directory: %w", err)
		}
	}

	manifest := &Manifest{Version: version}
	for i := uint32(0); i < fileCount; i++ {
		entry, err := r.restoreOneFile(br, targetDir, catalog)
		if err != nil {
			return nil, err
		}
		manifest.Files = append(manifest.Files, *entry)
	}

	return manifest, nil
}

func (r *Restorer) restoreOneFile(br *bufio.Reader, targetDir string, catalog *storage.FileCatalog) (*FileManifest, error) {
	var fileID uint32
	if err := binary.Read(br, binary.LittleEndian, &fileID); err != nil {
		return nil, fmt.Errorf("backup: read file id: %w", err)
	}

	var pathLen uint32
	if err := binary.Read(br, binary.LittleEndian, &pathLen); err != nil {
		return nil, fmt.Errorf("backup: read path length: %w", err)
	}
	pathBytes := make([]byte, pathLen)
	if _, err := io.ReadFull(br, pathBytes); err != nil {
		return nil, fmt.Errorf("backup: read path: %w", err)
	}
	originalPath := string(pathBytes)

	var uncompressedSize, compressedSize uint64
	if err := binary.Read(br, binary.LittleEndian, &uncompressedSize); err != nil {
		return nil, fmt.Errorf("backup: read uncompressed size: %w", err)
	}
	if err := binary.Read(br, binary.LittleEndian, &compressedSize); err != nil {
		return nil, fmt.Errorf("backup: read compressed size: %w", err)
	}

	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(br, compressed); err != nil {
		return nil, fmt.Errorf("backup: read compressed payload: %w", err)
	}

	raw, err := r.decompressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("backup: decompress %s: %w", originalPath, err)
	}
	if uint64(len(raw)) != uncompressedSize {
		return nil, fmt.Errorf("backup: %s: decompressed size %d does not match manifest %d", originalPath, len(raw), uncompressedSize)
	}

	restorePath := originalPath
	if targetDir != "" {
		restorePath = filepath.Join(targetDir, filepath.Base(originalPath))
	}
	if err := os.WriteFile(restorePath, raw, 0o644); err != nil {
		return nil, fmt.Errorf("backup: write %s: %w", restorePath, err)
	}

	if catalog != nil {
		catalog.AddFile(storage.FileID(fileID), restorePath)
	}

	return &FileManifest{
		FileID:           storage.FileID(fileID),
		Path:             restorePath,
		UncompressedSize: int64(uncompressedSize),
		CompressedSize:   int64(compressedSize),
	}, nil
}
