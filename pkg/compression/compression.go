// Package compression compresses page images and snapshot streams. It
// is never applied to pages resident in the buffer pool — the slotted
// layout needs its fixed size — only to cold copies: backup archives
// and archival page records.
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

// Algorithm selects the compression codec.
type Algorithm int

const (
	// AlgorithmNone stores bytes verbatim.
	AlgorithmNone Algorithm = iota
	// AlgorithmSnappy trades ratio for speed.
	AlgorithmSnappy
	// AlgorithmZstd balances speed and ratio; the default.
	AlgorithmZstd
	// AlgorithmGzip is kept for interoperability with external tooling.
	AlgorithmGzip
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmSnappy:
		return "snappy"
	case AlgorithmZstd:
		return "zstd"
	case AlgorithmGzip:
		return "gzip"
	default:
		return "unknown"
	}
}

// Config selects an algorithm and its level. Level is ignored by snappy
// and by none.
type Config struct {
	Algorithm Algorithm
	Level     int
}

// DefaultConfig returns zstd at level 3.
func DefaultConfig() *Config {
	return &Config{Algorithm: AlgorithmZstd, Level: 3}
}

// SnappyConfig returns a snappy configuration.
func SnappyConfig() *Config {
	return &Config{Algorithm: AlgorithmSnappy}
}

// GzipConfig returns a gzip configuration, clamping an out-of-range
// level to gzip's default.
func GzipConfig(level int) *Config {
	if level < gzip.NoCompression || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &Config{Algorithm: AlgorithmGzip, Level: level}
}

// ZstdConfig returns a zstd configuration, clamping an out-of-range
// level to 3.
func ZstdConfig(level int) *Config {
	if level < 1 || level > 19 {
		level = 3
	}
	return &Config{Algorithm: AlgorithmZstd, Level: level}
}

// Compressor encodes and decodes byte buffers under one Config. The
// zstd encoder/decoder pair is built once at construction; Compress and
// Decompress allocate their outputs per call and are safe for
// concurrent use.
type Compressor struct {
	config  *Config
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
}

// NewCompressor prepares a compressor for config. A nil config uses
// DefaultConfig.
func NewCompressor(config *Config) (*Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	c := &Compressor{config: config}
	if config.Algorithm == AlgorithmZstd {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(config.Level)))
		if err != nil {
			return nil, fmt.Errorf("compression: create zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			enc.Close()
			return nil, fmt.Errorf("compression: create zstd decoder: %w", err)
		}
		c.zstdEnc = enc
		c.zstdDec = dec
	}
	return c, nil
}

// Compress encodes data. Empty input passes through untouched.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	switch c.config.Algorithm {
	case AlgorithmNone:
		return data, nil
	case AlgorithmSnappy:
		return snappy.Encode(nil, data), nil
	case AlgorithmZstd:
		return c.zstdEnc.EncodeAll(data, nil), nil
	case AlgorithmGzip:
		return c.compressGzip(data)
	default:
		return nil, fmt.Errorf("compression: unsupported algorithm: %v", c.config.Algorithm)
	}
}

// Decompress decodes data produced by Compress under the same config.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	switch c.config.Algorithm {
	case AlgorithmNone:
		return data, nil
	case AlgorithmSnappy:
		decoded, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("compression: snappy decode: %w", err)
		}
		return decoded, nil
	case AlgorithmZstd:
		decoded, err := c.zstdDec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("compression: zstd decode: %w", err)
		}
		return decoded, nil
	case AlgorithmGzip:
		return c.decompressGzip(data)
	default:
		return nil, fmt.Errorf("compression: unsupported algorithm: %v", c.config.Algorithm)
	}
}

func (c *Compressor) compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.config.Level)
	if err != nil {
		return nil, fmt.Errorf("compression: create gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compression: gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compression: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Compressor) decompressGzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("compression: create gzip reader: %w", err)
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("compression: gzip read: %w", err)
	}
	return buf.Bytes(), nil
}

// Close releases the zstd encoder/decoder pair. The compressor must not
// be used after Close.
func (c *Compressor) Close() error {
	if c.zstdEnc != nil {
		c.zstdEnc.Close()
	}
	if c.zstdDec != nil {
		c.zstdDec.Close()
	}
	return nil
}

// CompressionRatio reports compressed size over original size.
func CompressionRatio(originalSize, compressedSize int) float64 {
	if originalSize == 0 {
		return 0
	}
	return float64(compressedSize) / float64(originalSize)
}

// SpaceSavings reports the percentage of space saved by compression.
func SpaceSavings(originalSize, compressedSize int) float64 {
	if originalSize == 0 {
		return 0
	}
	return (1.0 - CompressionRatio(originalSize, compressedSize)) * 100
}
