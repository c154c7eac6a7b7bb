package compression

import (
	"encoding/binary"
	"fmt"

	"github.com/mnohosten/pagestore/pkg/storage"
)

// CompressedPageHeaderSize is the size of the compressed page header:
// [1-byte algorithm][4-byte original size][4-byte compressed size].
const CompressedPageHeaderSize = 9

// CompressedPage compresses and decompresses storage.Page byte buffers
// for archival copies of single cold pages (the backup snapshot format
// compresses whole files with Compressor instead) — never for pages resident in the buffer pool, which stay at a fixed
// PageSize for the slotted-page layout to work at all.
type CompressedPage struct {
	compressor *Compressor
}

// NewCompressedPage creates a new compressed page handler.
func NewCompressedPage(config *Config) (*CompressedPage, error) {
	compressor, err := NewCompressor(config)
	if err != nil {
		return nil, err
	}
	return &CompressedPage{compressor: compressor}, nil
}

// CompressPage compresses page.Data, returning [header][compressed data].
func (cp *CompressedPage) CompressPage(page *storage.Page) ([]byte, error) {
	compressed, err := cp.compressor.Compress(page.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to compress page %s: %w", page.ID, err)
	}

	result := make([]byte, CompressedPageHeaderSize+len(compressed))
	result[0] = byte(cp.compressor.config.Algorithm)
	binary.LittleEndian.PutUint32(result[1:5], uint32(len(page.Data)))
	binary.LittleEndian.PutUint32(result[5:9], uint32(len(compressed)))
	copy(result[CompressedPageHeaderSize:], compressed)

	return result, nil
}

// DecompressPage decompresses data produced by CompressPage back into a
// *storage.Page for the given id.
func (cp *CompressedPage) DecompressPage(id storage.PageID, data []byte) (*storage.Page, error) {
	if len(data) < CompressedPageHeaderSize {
		return nil, fmt.Errorf("invalid compressed page data: too short")
	}

	algorithm := Algorithm(data[0])
	originalSize := binary.LittleEndian.Uint32(data[1:5])
	compressedSize := binary.LittleEndian.Uint32(data[5:9])

	if algorithm != cp.compressor.config.Algorithm {
		return nil, fmt.Errorf("algorithm mismatch: expected %v, got %v",
			cp.compressor.config.Algorithm, algorithm)
	}
	if len(data)-CompressedPageHeaderSize != int(compressedSize) {
		return nil, fmt.Errorf("compressed size mismatch: expected %d, got %d",
			compressedSize, len(data)-CompressedPageHeaderSize)
	}

	decompressed, err := cp.compressor.Decompress(data[CompressedPageHeaderSize:])
	if err != nil {
		return nil, fmt.Errorf("failed to decompress page %s: %w", id, err)
	}
	if len(decompressed) != int(originalSize) {
		return nil, fmt.Errorf("decompressed size mismatch: expected %d, got %d",
			originalSize, len(decompressed))
	}
	if len(decompressed) != storage.PageSize {
		return nil, fmt.Errorf("decompressed page %s is %d bytes, want %d", id, len(decompressed), storage.PageSize)
	}

	return &storage.Page{ID: id, Data: decompressed}, nil
}

// Close releases the underlying compressor's resources.
func (cp *CompressedPage) Close() error {
	return cp.compressor.Close()
}

// PageCompressionStats holds statistics about one page's compression.
type PageCompressionStats struct {
	PageID         storage.PageID
	OriginalSize   int
	CompressedSize int
	Ratio          float64
	SpaceSavings   float64
	Algorithm      string
}

// GetPageCompressionStats reports the compression ratio CompressPage
// would achieve for page, without keeping the compressed bytes around.
func (cp *CompressedPage) GetPageCompressionStats(page *storage.Page) (*PageCompressionStats, error) {
	compressed, err := cp.compressor.Compress(page.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to compress page %s: %w", page.ID, err)
	}

	originalSize := len(page.Data)
	compressedSize := len(compressed)

	return &PageCompressionStats{
		PageID:         page.ID,
		OriginalSize:   originalSize,
		CompressedSize: compressedSize,
		Ratio:          CompressionRatio(originalSize, compressedSize),
		SpaceSavings:   SpaceSavings(originalSize, compressedSize),
		Algorithm:      cp.compressor.config.Algorithm.String(),
	}, nil
}
