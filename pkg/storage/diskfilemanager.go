//go:build unix

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// DiskFileManager is the on-disk FileManager: one open file handle per
// FileID, opened lazily under double-checked locking, with positional
// I/O through the OS-native pread/pwrite primitive rather than the
// portable os.File.ReadAt/WriteAt wrapper.
type DiskFileManager struct {
	catalog *FileCatalog

	mu    sync.RWMutex
	files map[FileID]*os.File
}

// NewDiskFileManager returns a DiskFileManager resolving paths through
// catalog. Files are opened on first access, not eagerly.
func NewDiskFileManager(catalog *FileCatalog) *DiskFileManager {
	return &DiskFileManager{catalog: catalog, files: make(map[FileID]*os.File)}
}

func (m *DiskFileManager) getOrOpenFile(fileID FileID) (*os.File, error) {
	m.mu.RLock()
	f, ok := m.files[fileID]
	m.mu.RUnlock()
	if ok {
		return f, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[fileID]; ok {
		return f, nil
	}

	path, ok := m.catalog.GetFileName(fileID)
	if !ok {
		return nil, fmt.Errorf("disk file manager: file id %d not registered in catalog", fileID)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("disk file manager: create parent dir for %s: %w", path, err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("disk file manager: open %s: %w", path, err)
	}
	m.files[fileID] = f
	return f, nil
}

// ReadPage reads PageSize bytes at pageID's logical offset. Returns
// false (not an error at this layer) if fewer than PageSize bytes were
// available — reading a hole past the end of the file.
func (m *DiskFileManager) ReadPage(pageID PageID, dest []byte) bool {
	f, err := m.getOrOpenFile(pageID.FileID)
	if err != nil {
		return false
	}
	offset := int64(pageID.PageNumber) * PageSize

	fd := int(f.Fd())
	total := 0
	for total < len(dest) {
		n, err := unix.Pread(fd, dest[total:], offset+int64(total))
		if err != nil || n == 0 {
			return false
		}
		total += n
	}
	return true
}

// WritePage writes exactly PageSize bytes at pageID's logical offset,
// looping over partial writes until the full page is written.
func (m *DiskFileManager) WritePage(pageID PageID, src []byte) error {
	f, err := m.getOrOpenFile(pageID.FileID)
	if err != nil {
		return err
	}
	offset := int64(pageID.PageNumber) * PageSize

	fd := int(f.Fd())
	total := 0
	for total < len(src) {
		n, err := unix.Pwrite(fd, src[total:], offset+int64(total))
		if err != nil {
			return fmt.Errorf("disk file manager: write page %s: %w", pageID, err)
		}
		if n == 0 {
			return fmt.Errorf("disk file manager: write page %s: zero-byte write", pageID)
		}
		total += n
	}
	return nil
}

// Close closes every open file handle. Not part of the FileManager
// interface; called during shutdown by the storage facade.
func (m *DiskFileManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for id, f := range m.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("disk file manager: close file id %d: %w", id, err)
		}
	}
	m.files = make(map[FileID]*os.File)
	return firstErr
}
