package transport

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/fleetsignal/idsclient/internal/model"
)

// compress encodes data under algo. Identity is a no-op copy-free pass.
func compress(algo model.CompressionAlgorithm, data []byte) ([]byte, error) {
	if algo == model.CompressionIdentity {
		return data, nil
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("transport: create zstd encoder: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, fmt.Errorf("transport: zstd compress: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("transport: close zstd encoder: %w", err)
	}
	return buf.Bytes(), nil
}
