// Package compression wraps the zstd codec the write-ahead log uses to
// shrink each LogRecord before it is framed and checksummed
// (pkg/wal.Open never selects anything but DefaultConfig).
package compression

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Algorithm identifies a codec a Compressor can run.
type Algorithm int

const (
	// AlgorithmNone passes data through unchanged; useful for tests that
	// want to exercise WAL framing without the codec in the loop.
	AlgorithmNone Algorithm = iota
	// AlgorithmZstd is the only codec the engine ever selects.
	AlgorithmZstd
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Config holds compression configuration.
type Config struct {
	Algorithm Algorithm
	Level     int // zstd level; ignored by AlgorithmNone
}

// DefaultConfig returns zstd at a balanced level. This is the only
// configuration pkg/wal ever constructs a Compressor with.
func DefaultConfig() *Config {
	return &Config{
		Algorithm: AlgorithmZstd,
		Level:     3,
	}
}

// ZstdConfig returns configuration for zstd at the given level (1 fastest,
// 19 best ratio; out-of-range falls back to the default level).
func ZstdConfig(level int) *Config {
	if level < 1 || level > 19 {
		level = 3
	}
	return &Config{
		Algorithm: AlgorithmZstd,
		Level:     level,
	}
}

// Compressor compresses and decompresses LogRecord payloads.
type Compressor struct {
	config  *Config
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
}

// NewCompressor creates a Compressor for config, pre-building the zstd
// encoder/decoder pair when the algorithm calls for one.
func NewCompressor(config *Config) (*Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	c := &Compressor{config: config}

	if config.Algorithm == AlgorithmZstd {
		var err error
		encLevel := zstd.EncoderLevelFromZstd(config.Level)
		c.zstdEnc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}

		c.zstdDec, err = zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
	}

	return c, nil
}

// Compress compresses data per the Compressor's configured algorithm.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	switch c.config.Algorithm {
	case AlgorithmNone:
		return data, nil
	case AlgorithmZstd:
		return c.zstdEnc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %v", c.config.Algorithm)
	}
}

// Decompress reverses Compress.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	switch c.config.Algorithm {
	case AlgorithmNone:
		return data, nil
	case AlgorithmZstd:
		decoded, err := c.zstdDec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decode zstd: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %v", c.config.Algorithm)
	}
}

// Close releases the zstd encoder/decoder, if any were created.
func (c *Compressor) Close() error {
	if c.zstdEnc != nil {
		c.zstdEnc.Close()
	}
	if c.zstdDec != nil {
		c.zstdDec.Close()
	}
	return nil
}

// CompressionRatio is compressedSize/originalSize.
func CompressionRatio(originalSize, compressedSize int) float64 {
	if originalSize == 0 {
		return 0
	}
	return float64(compressedSize) / float64(originalSize)
}

// SpaceSavings is the percentage of originalSize that compression removed.
func SpaceSavings(originalSize, compressedSize int) float64 {
	if originalSize == 0 {
		return 0
	}
	return (1.0 - CompressionRatio(originalSize, compressedSize)) * 100
}
