package backup

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mnohosten/pagestore/pkg/compression"
	"github.com/mnohosten/pagestore/pkg/storage"
)

// writePageFile writes a page file under dir with count initialized
// pages, registers it with catalog, and returns its path.
func writePageFile(t *testing.T, dir string, catalog *storage.FileCatalog, fileID storage.FileID, count int) string {
	t.Helper()

	path := filepath.Join(dir, fmt.Sprintf("file_%d.pages", fileID))
	catalog.AddFile(fileID, path)
	fm := storage.NewDiskFileManager(catalog)
	defer fm.Close()

	for p := 0; p < count; p++ {
		pageID := storage.PageID{FileID: fileID, PageNumber: uint32(p)}
		page := storage.NewPage(pageID)
		if err := page.Initialize(pageID, storage.PageTypeUnsorted); err != nil {
			t.Fatalf("Initialize: %v", err)
		}
		row := bytes.Repeat([]byte{byte(p + 1)}, 64)
		plan, err := page.PlanInsert(len(row))
		if err != nil {
			t.Fatalf("PlanInsert: %v", err)
		}
		if _, err := page.InsertHeap(plan, row); err != nil {
			t.Fatalf("InsertHeap: %v", err)
		}
		if err := fm.WritePage(pageID, page.Data); err != nil {
			t.Fatalf("WritePage: %v", err)
		}
	}
	return path
}

func TestSnapshotToFile(t *testing.T) {
	dir := t.TempDir()
	catalog := storage.NewFileCatalog()
	writePageFile(t, dir, catalog, 1, 3)
	writePageFile(t, dir, catalog, 2, 1)

	snap, err := NewSnapshotter(nil)
	if err != nil {
		t.Fatalf("NewSnapshotter: %v", err)
	}
	defer snap.Close()

	snapshotPath := filepath.Join(dir, "backups", "snap.pagestore")
	manifest, err := snap.SnapshotToFile(catalog, snapshotPath)
	if err != nil {
		t.Fatalf("SnapshotToFile: %v", err)
	}

	if manifest.Version != snapshotVersion {
		t.Errorf("manifest version = %d, want %d", manifest.Version, snapshotVersion)
	}
	if len(manifest.Files) != 2 {
		t.Fatalf("manifest captured %d files, want 2", len(manifest.Files))
	}
	for _, entry := range manifest.Files {
		if entry.UncompressedSize%storage.PageSize != 0 {
			t.Errorf("file %d uncompressed size %d is not page-aligned", entry.FileID, entry.UncompressedSize)
		}
		if entry.CompressedSize <= 0 {
			t.Errorf("file %d compressed size = %d, want > 0", entry.FileID, entry.CompressedSize)
		}
	}

	if _, err := os.Stat(snapshotPath); err != nil {
		t.Errorf("snapshot file missing: %v", err)
	}
}

func TestSnapshotToWriterStreamLayout(t *testing.T) {
	dir := t.TempDir()
	catalog := storage.NewFileCatalog()
	writePageFile(t, dir, catalog, 7, 2)

	snap, err := NewSnapshotter(compression.ZstdConfig(3))
	if err != nil {
		t.Fatalf("NewSnapshotter: %v", err)
	}
	defer snap.Close()

	var buf bytes.Buffer
	manifest, err := snap.SnapshotToWriter(catalog, &buf)
	if err != nil {
		t.Fatalf("SnapshotToWriter: %v", err)
	}
	if len(manifest.Files) != 1 {
		t.Fatalf("manifest captured %d files, want 1", len(manifest.Files))
	}

	stream := buf.Bytes()
	if len(stream) < 12 {
		t.Fatalf("stream is %d bytes, too short for the header", len(stream))
	}
	if got := binary.LittleEndian.Uint32(stream[0:4]); got != snapshotMagic {
		t.Errorf("stream magic = %#x, want %#x", got, snapshotMagic)
	}
	if got := binary.LittleEndian.Uint32(stream[4:8]); got != snapshotVersion {
		t.Errorf("stream version = %d, want %d", got, snapshotVersion)
	}
	if got := binary.LittleEndian.Uint32(stream[8:12]); got != 1 {
		t.Errorf("stream file count = %d, want 1", got)
	}
}

func TestSnapshotEmptyCatalog(t *testing.T) {
	snap, err := NewSnapshotter(nil)
	if err != nil {
		t.Fatalf("NewSnapshotter: %v", err)
	}
	defer snap.Close()

	var buf bytes.Buffer
	manifest, err := snap.SnapshotToWriter(storage.NewFileCatalog(), &buf)
	if err != nil {
		t.Fatalf("SnapshotToWriter on empty catalog: %v", err)
	}
	if len(manifest.Files) != 0 {
		t.Errorf("manifest captured %d files from an empty catalog", len(manifest.Files))
	}
}

func TestSnapshotMissingFileFails(t *testing.T) {
	catalog := storage.NewFileCatalog()
	catalog.AddFile(1, filepath.Join(t.TempDir(), "never-written"))

	snap, err := NewSnapshotter(nil)
	if err != nil {
		t.Fatalf("NewSnapshotter: %v", err)
	}
	defer snap.Close()

	var buf bytes.Buffer
	if _, err := snap.SnapshotToWriter(catalog, &buf); err == nil {
		t.Error("SnapshotToWriter succeeded with an unreadable registered file")
	}
}
