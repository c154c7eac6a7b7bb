package encryption

import (
	"encoding/binary"
	"fmt"

	"github.com/mnohosten/pagestore/pkg/storage"
)

// lengthPrefixSize is the width of the ciphertext-length prefix stored
// ahead of the ciphertext itself.
const lengthPrefixSize = 4

// EncryptedFileManager wraps a storage.FileManager with transparent
// per-page encryption. AES-256-GCM ciphertext (nonce + tag overhead)
// does not fit back into a single PageSize slot, so each logical page
// is packed into two consecutive physical page numbers in the
// underlying manager: logical page N occupies physical pages 2N and
// 2N+1. This keeps storage.FileManager's fixed-PageSize contract
// intact on both sides of the wrapper at the cost of roughly doubling
// on-disk footprint.
type EncryptedFileManager struct {
	inner     storage.FileManager
	encryptor *Encryptor
}

// NewEncryptedFileManager wraps inner with config's algorithm.
func NewEncryptedFileManager(inner storage.FileManager, config *Config) (*EncryptedFileManager, error) {
	encryptor, err := NewEncryptor(config)
	if err != nil {
		return nil, fmt.Errorf("encryption: create encryptor: %w", err)
	}
	return &EncryptedFileManager{inner: inner, encryptor: encryptor}, nil
}

func physicalPages(pageID storage.PageID) (a, b storage.PageID) {
	base := pageID.PageNumber * 2
	return storage.PageID{FileID: pageID.FileID, PageNumber: base},
		storage.PageID{FileID: pageID.FileID, PageNumber: base + 1}
}

// ReadPage decrypts a logical page out of its two backing physical
// pages into dest (exactly storage.PageSize bytes). Any failure —
// a missing physical page, a truncated record, or a failed GCM open —
// is reported as false, the same "hole, not an error" signal
// storage.FileManager document for a page that was never written.
func (m *EncryptedFileManager) ReadPage(pageID storage.PageID, dest []byte) bool {
	physA, physB := physicalPages(pageID)

	bufA := make([]byte, storage.PageSize)
	if !m.inner.ReadPage(physA, bufA) {
		return false
	}
	bufB := make([]byte, storage.PageSize)
	if !m.inner.ReadPage(physB, bufB) {
		return false
	}
	combined := append(bufA, bufB...)

	if len(combined) < lengthPrefixSize {
		return false
	}
	length := binary.LittleEndian.Uint32(combined[:lengthPrefixSize])
	end := lengthPrefixSize + int(length)
	if end > len(combined) {
		return false
	}
	ciphertext := combined[lengthPrefixSize:end]

	plaintext, err := m.encryptor.Decrypt(ciphertext)
	if err != nil {
		return false
	}
	if len(plaintext) != len(dest) {
		return false
	}
	copy(dest, plaintext)
	return true
}

// WritePage encrypts src (exactly storage.PageSize bytes) and writes
// the resulting record across pageID's two physical pages.
func (m *EncryptedFileManager) WritePage(pageID storage.PageID, src []byte) error {
	if len(src) != storage.PageSize {
		return &storage.WriteSliceSizeMismatchError{SrcLen: len(src), TargetLen: storage.PageSize}
	}

	ciphertext, err := m.encryptor.Encrypt(src)
	if err != nil {
		return fmt.Errorf("encryption: encrypt page %s: %w", pageID, err)
	}
	if lengthPrefixSize+len(ciphertext) > 2*storage.PageSize {
		return fmt.Errorf("encryption: ciphertext for page %s (%d bytes) exceeds the two physical pages reserved for it",
			pageID, len(ciphertext))
	}

	record := make([]byte, 2*storage.PageSize)
	binary.LittleEndian.PutUint32(record[:lengthPrefixSize], uint32(len(ciphertext)))
	copy(record[lengthPrefixSize:], ciphertext)

	physA, physB := physicalPages(pageID)
	if err := m.inner.WritePage(physA, record[:storage.PageSize]); err != nil {
		return fmt.Errorf("encryption: write page %s (physical %s): %w", pageID, physA, err)
	}
	if err := m.inner.WritePage(physB, record[storage.PageSize:]); err != nil {
		return fmt.Errorf("encryption: write page %s (physical %s): %w", pageID, physB, err)
	}
	return nil
}

// Algorithm reports the configured cipher, for stats/admin surfaces.
func (m *EncryptedFileManager) Algorithm() Algorithm { return m.encryptor.config.Algorithm }
