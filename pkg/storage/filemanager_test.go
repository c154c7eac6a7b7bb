package storage

import "testing"

func TestInMemoryFileManager_WriteThenRead(t *testing.T) {
	fm := NewInMemoryFileManager()
	pageID := PageID{FileID: 1, PageNumber: 4}

	src := bytesOf(PageSize, 0xAB)
	if err := fm.WritePage(pageID, src); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	dest := make([]byte, PageSize)
	ok := fm.ReadPage(pageID, dest)
	if !ok {
		t.Fatal("ReadPage returned false for a written page")
	}
	for i, b := range dest {
		if b != 0xAB {
			t.Fatalf("byte %d = %#x, want 0xab", i, b)
		}
	}
}

func TestInMemoryFileManager_ReadPageHole(t *testing.T) {
	fm := NewInMemoryFileManager()
	dest := make([]byte, PageSize)
	if fm.ReadPage(PageID{FileID: 1, PageNumber: 0}, dest) {
		t.Fatal("ReadPage should return false for a page never written (a hole, not an error)")
	}
}

func TestInMemoryFileManager_WriteSizeMismatch(t *testing.T) {
	fm := NewInMemoryFileManager()
	err := fm.WritePage(PageID{FileID: 1, PageNumber: 0}, make([]byte, PageSize-1))
	if err == nil {
		t.Fatal("expected an error writing a short page")
	}
}
