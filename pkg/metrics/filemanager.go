package metrics

import "github.com/mnohosten/pagestore/pkg/storage"

// TrackedFileManager decorates a storage.FileManager, crediting every
// successful page read and write to a ResourceTracker. cmd/pagestore-server
// wraps the disk manager with it directly, beneath the encryption
// decorator when one is configured, so the admin surface can report
// physical page I/O without the storage core knowing about metrics at all.
type TrackedFileManager struct {
	inner   storage.FileManager
	tracker *ResourceTracker
}

// NewTrackedFileManager wraps inner.
func NewTrackedFileManager(inner storage.FileManager, tracker *ResourceTracker) *TrackedFileManager {
	return &TrackedFileManager{inner: inner, tracker: tracker}
}

// ReadPage delegates to the wrapped manager, counting a page read when
// it succeeds. A miss (hole) is not counted.
func (m *TrackedFileManager) ReadPage(pageID storage.PageID, dest []byte) bool {
	ok := m.inner.ReadPage(pageID, dest)
	if ok {
		m.tracker.RecordPageRead()
	}
	return ok
}

// WritePage delegates to the wrapped manager, counting a page write
// when it succeeds.
func (m *TrackedFileManager) WritePage(pageID storage.PageID, src []byte) error {
	if err := m.inner.WritePage(pageID, src); err != nil {
		return err
	}
	m.tracker.RecordPageWrite()
	return nil
}
