package cache

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Payload framing: the first byte tells whether the JSON body is compressed.
const (
	framePlain byte = 0
	frameZstd  byte = 1
)

// DefaultCompressThreshold is the JSON size from which payloads are compressed.
const DefaultCompressThreshold = 4 << 10

// Codec serializes cached values as JSON and compresses large ones with zstd.
// It is safe for concurrent use.
type Codec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewCodec creates a codec compressing payloads of at least threshold bytes.
// A threshold <= 0 uses DefaultCompressThreshold.
func NewCodec(threshold int) (*Codec, error) {
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Codec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

// Encode marshals v.
func (c *Codec) Encode(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	if len(body) < c.threshold {
		return append([]byte{framePlain}, body...), nil
	}
	out := make([]byte, 1, len(body)/2+1)
	out[0] = frameZstd
	return c.encoder.EncodeAll(body, out), nil
}

// Decode unmarshals data produced by Encode into v.
func (c *Codec) Decode(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty payload")
	}
	body := data[1:]
	switch data[0] {
	case framePlain:
	case frameZstd:
		var err error
		body, err = c.decoder.DecodeAll(body, nil)
		if err != nil {
			return fmt.Errorf("decompress: %w", err)
		}
	default:
		return fmt.Errorf("unknown payload frame %d", data[0])
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

// Compressed reports whether data holds a compressed payload.
func Compressed(data []byte) bool {
	return len(data) > 0 && data[0] == frameZstd
}
