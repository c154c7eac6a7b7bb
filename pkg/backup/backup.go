package backup

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mnohosten/pagestore/pkg/compression"
	"github.com/mnohosten/pagestore/pkg/storage"
)

// snapshotMagic identifies a pagestore snapshot stream. snapshotVersion
// is bumped whenever the frame layout below changes incompatibly.
const (
	snapshotMagic   uint32 = 0x50414753 // "PAGS"
	snapshotVersion uint32 = 1
)

// Manifest describes one snapshot: the format version, when it was
// taken, and the set of files captured.
type Manifest struct {
	Version   uint32         `json:"version"`
	Timestamp time.Time      `json:"timestamp"`
	Files     []FileManifest `json:"files"`
}

// FileManifest records one captured file's identity and size, the way
// a restore needs to re-register it with a fresh FileCatalog.
type FileManifest struct {
	FileID           storage.FileID `json:"file_id"`
	Path             string         `json:"path"`
	UncompressedSize int64          `json:"uncompressed_size"`
	CompressedSize   int64          `json:"compressed_size"`
}

// Snapshotter walks a FileCatalog's registered files and writes their
// raw contents to a single compressed snapshot stream. It reads files
// directly off disk rather than through the buffer pool, the way a
// physical backup tool bypasses the cache it is backing up.
type Snapshotter struct {
	compressor *compression.Compressor
}

// NewSnapshotter returns a Snapshotter compressing each captured file
// with config. A nil config uses zstd at level 3.
func NewSnapshotter(config *compression.Config) (*Snapshotter, error) {
	if config == nil {
		config = compression.ZstdConfig(3)
	}
	c, err := compression.NewCompressor(config)
	if err != nil {
		return nil, fmt.Errorf("backup: create compressor: %w", err)
	}
	return &Snapshotter{compressor: c}, nil
}

// Close releases the snapshotter's compressor resources.
func (s *Snapshotter) Close() error {
	return s.compressor.Close()
}

// SnapshotToFile captures every file registered with catalog into path.
func (s *Snapshotter) SnapshotToFile(catalog *storage.FileCatalog, path string) (*Manifest, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("backup: create snapshot directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("backup: create snapshot file: %w", err)
	}
	defer file.Close()

	return s.SnapshotToWriter(catalog, file)
}

// SnapshotToWriter captures every file registered with catalog into w.
func (s *Snapshotter) SnapshotToWriter(catalog *storage.FileCatalog, w io.Writer) (*Manifest, error) {
	bw := bufio.NewWriter(w)

	manifest := &Manifest{Version: snapshotVersion, Timestamp: time.Now()}

	if err := binary.Write(bw, binary.LittleEndian, snapshotMagic); err != nil {
		return nil, fmt.Errorf("backup: write magic: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, snapshotVersion); err != nil {
		return nil, fmt.Errorf("backup: write version: %w", err)
	}

	fileIDs := catalog.FileIDs()
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(fileIDs))); err != nil {
		return nil, fmt.Errorf("backup: write file count: %w", err)
	}

	for _, fileID := range fileIDs {
		path, ok := catalog.GetFileName(fileID)
		if !ok {
			continue
		}

		entry, err := s.snapshotOneFile(bw, fileID, path)
		if err != nil {
			return nil, err
		}
		manifest.Files = append(manifest.Files, *entry)
	}

	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("backup: flush snapshot: %w", err)
	}

	return manifest, nil
}

func (s *Snapshotter) snapshotOneFile(bw *bufio.Writer, fileID storage.FileID, path string) (*FileManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("backup: read %s: %w", path, err)
	}

	compressed, err := s.compressor.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("backup: compress %s: %w", path, err)
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(fileID)); err != nil {
		return nil, fmt.Errorf("backup: write file id: %w", err)
	}
	pathBytes := []byte(path)
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(pathBytes))); err != nil {
		return nil, fmt.Errorf("backup: write path length: %w", err)
	}
	if _, err := bw.Write(pathBytes); err != nil {
		return nil, fmt.Errorf("backup: write path: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(raw))); err != nil {
		return nil, fmt.Errorf("backup: write uncompressed size: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(compressed))); err != nil {
		return nil, fmt.Errorf("backup: write compressed size: %w", err)
	}
	if _, err := bw.Write(compressed); err != nil {
		return nil, fmt.Errorf("backup: write compressed payload: %w", err)
	}

	return &FileManifest{
		FileID:           fileID,
		Path:             path,
		UncompressedSize: int64(len(raw)),
		CompressedSize:   int64(len(compressed)),
	}, nil
}
