package encryption

import (
	"bytes"
	"testing"

	"github.com/mnohosten/pagestore/pkg/storage"
)

func fullPage(b byte) []byte {
	buf := make([]byte, storage.PageSize)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func TestEncryptedFileManager_GCM_RoundTrip(t *testing.T) {
	config, err := NewConfigFromPassword("correct horse battery staple", AlgorithmAES256GCM)
	if err != nil {
		t.Fatalf("NewConfigFromPassword: %v", err)
	}
	efm, err := NewEncryptedFileManager(storage.NewInMemoryFileManager(), config)
	if err != nil {
		t.Fatalf("NewEncryptedFileManager: %v", err)
	}

	pageID := storage.PageID{FileID: 1, PageNumber: 3}
	plaintext := fullPage(0x5A)

	if err := efm.WritePage(pageID, plaintext); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got := make([]byte, storage.PageSize)
	if !efm.ReadPage(pageID, got) {
		t.Fatal("ReadPage returned false for a page that was just written")
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("round-tripped page does not match what was written")
	}
}

func TestEncryptedFileManager_CiphertextNotPlaintext(t *testing.T) {
	config, _ := NewConfigFromPassword("hunter2", AlgorithmAES256GCM)
	inner := storage.NewInMemoryFileManager()
	efm, err := NewEncryptedFileManager(inner, config)
	if err != nil {
		t.Fatalf("NewEncryptedFileManager: %v", err)
	}

	pageID := storage.PageID{FileID: 1, PageNumber: 0}
	plaintext := fullPage(0x11)
	if err := efm.WritePage(pageID, plaintext); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	physA, _ := physicalPages(pageID)
	raw := make([]byte, storage.PageSize)
	if !inner.ReadPage(physA, raw) {
		t.Fatal("expected the first physical page to be readable directly")
	}
	if bytes.Contains(raw, bytes.Repeat([]byte{0x11}, 64)) {
		t.Fatal("physical bytes on disk should not contain a long run of plaintext bytes")
	}
}

func TestEncryptedFileManager_ReadPage_MissingHole(t *testing.T) {
	config, _ := NewConfigFromPassword("pw", AlgorithmAES256GCM)
	efm, err := NewEncryptedFileManager(storage.NewInMemoryFileManager(), config)
	if err != nil {
		t.Fatalf("NewEncryptedFileManager: %v", err)
	}
	dest := make([]byte, storage.PageSize)
	if efm.ReadPage(storage.PageID{FileID: 1, PageNumber: 0}, dest) {
		t.Fatal("ReadPage should return false for a page never written")
	}
}

func TestEncryptedFileManager_WrongKeyFailsToDecrypt(t *testing.T) {
	inner := storage.NewInMemoryFileManager()
	config1, _ := NewConfigFromPassword("password-one", AlgorithmAES256GCM)
	writer, err := NewEncryptedFileManager(inner, config1)
	if err != nil {
		t.Fatalf("NewEncryptedFileManager: %v", err)
	}

	pageID := storage.PageID{FileID: 1, PageNumber: 0}
	if err := writer.WritePage(pageID, fullPage(0x42)); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	config2, _ := NewConfigFromPassword("password-two", AlgorithmAES256GCM)
	reader, err := NewEncryptedFileManager(inner, config2)
	if err != nil {
		t.Fatalf("NewEncryptedFileManager: %v", err)
	}

	dest := make([]byte, storage.PageSize)
	if reader.ReadPage(pageID, dest) {
		t.Fatal("ReadPage with the wrong key should fail GCM authentication")
	}
}

func TestEncryptedFileManager_AlgorithmNone_PassesThrough(t *testing.T) {
	efm, err := NewEncryptedFileManager(storage.NewInMemoryFileManager(), DefaultConfig())
	if err != nil {
		t.Fatalf("NewEncryptedFileManager: %v", err)
	}
	if efm.Algorithm() != AlgorithmNone {
		t.Fatalf("Algorithm() = %v, want AlgorithmNone", efm.Algorithm())
	}

	pageID := storage.PageID{FileID: 1, PageNumber: 7}
	plaintext := fullPage(0x99)
	if err := efm.WritePage(pageID, plaintext); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	got := make([]byte, storage.PageSize)
	if !efm.ReadPage(pageID, got) {
		t.Fatal("ReadPage returned false")
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("round-trip mismatch with AlgorithmNone")
	}
}
