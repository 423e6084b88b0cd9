package compression

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressorNone(t *testing.T) {
	config := &Config{Algorithm: AlgorithmNone}
	compressor, err := NewCompressor(config)
	if err != nil {
		t.Fatalf("Failed to create compressor: %v", err)
	}
	defer compressor.Close()

	data := []byte("hello world")
	compressed, err := compressor.Compress(data)
	if err != nil {
		t.Fatalf("Failed to compress: %v", err)
	}

	if !bytes.Equal(compressed, data) {
		t.Errorf("Expected no compression, got different data")
	}

	decompressed, err := compressor.Decompress(compressed)
	if err != nil {
		t.Fatalf("Failed to decompress: %v", err)
	}

	if !bytes.Equal(decompressed, data) {
		t.Errorf("Decompressed data doesn't match original")
	}
}

func TestCompressorZstd(t *testing.T) {
	config := ZstdConfig(3)
	compressor, err := NewCompressor(config)
	if err != nil {
		t.Fatalf("Failed to create compressor: %v", err)
	}
	defer compressor.Close()

	data := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 100))

	compressed, err := compressor.Compress(data)
	if err != nil {
		t.Fatalf("Failed to compress: %v", err)
	}

	t.Logf("Original: %d bytes, Compressed: %d bytes, Ratio: %.2f%%",
		len(data), len(compressed), CompressionRatio(len(data), len(compressed))*100)

	if len(compressed) >= len(data) {
		t.Errorf("Zstd should compress repeating data efficiently")
	}

	decompressed, err := compressor.Decompress(compressed)
	if err != nil {
		t.Fatalf("Failed to decompress: %v", err)
	}

	if !bytes.Equal(decompressed, data) {
		t.Errorf("Decompressed data doesn't match original")
	}
}

func TestCompressionRatios(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		dataSize int
	}{
		{"Zstd-Fast", ZstdConfig(1), 10000},
		{"Zstd-Default", ZstdConfig(3), 10000},
		{"Zstd-High", ZstdConfig(9), 10000},
	}

	createData := func(size int) []byte {
		pattern := `{"tx_id":123,"row_id":"(1,42)","begin_ts":7,"end_ts":null}`
		var buf bytes.Buffer
		for buf.Len() < size {
			buf.WriteString(pattern)
		}
		return buf.Bytes()[:size]
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressor, err := NewCompressor(tt.config)
			if err != nil {
				t.Fatalf("Failed to create compressor: %v", err)
			}
			defer compressor.Close()

			data := createData(tt.dataSize)
			compressed, err := compressor.Compress(data)
			if err != nil {
				t.Fatalf("Failed to compress: %v", err)
			}

			ratio := CompressionRatio(len(data), len(compressed))
			savings := SpaceSavings(len(data), len(compressed))

			t.Logf("Algorithm: %s, Original: %d, Compressed: %d, Ratio: %.2f%%, Savings: %.2f%%",
				tt.config.Algorithm, len(data), len(compressed), ratio*100, savings)

			decompressed, err := compressor.Decompress(compressed)
			if err != nil {
				t.Fatalf("Failed to decompress: %v", err)
			}

			if !bytes.Equal(decompressed, data) {
				t.Errorf("Decompressed data doesn't match original")
			}
		})
	}
}

func TestEmptyData(t *testing.T) {
	compressor, err := NewCompressor(DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create compressor: %v", err)
	}
	defer compressor.Close()

	data := []byte{}
	compressed, err := compressor.Compress(data)
	if err != nil {
		t.Fatalf("Failed to compress empty data: %v", err)
	}

	if len(compressed) != 0 {
		t.Errorf("Expected empty compressed data, got %d bytes", len(compressed))
	}

	decompressed, err := compressor.Decompress(compressed)
	if err != nil {
		t.Fatalf("Failed to decompress empty data: %v", err)
	}

	if len(decompressed) != 0 {
		t.Errorf("Expected empty decompressed data, got %d bytes", len(decompressed))
	}
}

func TestByteRampData(t *testing.T) {
	compressor, err := NewCompressor(ZstdConfig(3))
	if err != nil {
		t.Fatalf("Failed to create compressor: %v", err)
	}
	defer compressor.Close()

	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i % 256)
	}

	compressed, err := compressor.Compress(data)
	if err != nil {
		t.Fatalf("Failed to compress: %v", err)
	}

	decompressed, err := compressor.Decompress(compressed)
	if err != nil {
		t.Fatalf("Failed to decompress: %v", err)
	}

	if !bytes.Equal(decompressed, data) {
		t.Errorf("Decompressed data doesn't match original")
	}

	t.Logf("Byte ramp data: Original %d, Compressed %d, Ratio: %.2f%%",
		len(data), len(compressed), CompressionRatio(len(data), len(compressed))*100)
}

func TestCompressionRatioCalculation(t *testing.T) {
	tests := []struct {
		original   int
		compressed int
		wantRatio  float64
		wantSaving float64
	}{
		{1000, 500, 0.5, 50.0},
		{1000, 250, 0.25, 75.0},
		{1000, 1000, 1.0, 0.0},
		{0, 0, 0.0, 0.0},
	}

	for _, tt := range tests {
		ratio := CompressionRatio(tt.original, tt.compressed)
		savings := SpaceSavings(tt.original, tt.compressed)

		if ratio != tt.wantRatio {
			t.Errorf("CompressionRatio(%d, %d) = %f, want %f",
				tt.original, tt.compressed, ratio, tt.wantRatio)
		}

		if savings != tt.wantSaving {
			t.Errorf("SpaceSavings(%d, %d) = %f, want %f",
				tt.original, tt.compressed, savings, tt.wantSaving)
		}
	}
}

func TestAlgorithmString(t *testing.T) {
	tests := []struct {
		algo Algorithm
		want string
	}{
		{AlgorithmNone, "none"},
		{AlgorithmZstd, "zstd"},
		{Algorithm(999), "unknown"},
	}

	for _, tt := range tests {
		got := tt.algo.String()
		if got != tt.want {
			t.Errorf("Algorithm(%d).String() = %s, want %s", tt.algo, got, tt.want)
		}
	}
}
