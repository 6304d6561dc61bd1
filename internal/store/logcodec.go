package store

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Raw sandbox logs are mostly repeated status lines and compress well.
var (
	logEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	logDecoder, _ = zstd.NewReader(nil)
)

func compressLog(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	return logEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/4))
}

func decompressLog(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	out, err := logDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress raw log: %w", err)
	}
	return out, nil
}
