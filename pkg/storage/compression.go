package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/vjranagit/tickstats/pkg/types"
)

// Compressor encodes block columns with zstd
type Compressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressor creates a compressor. level ranges from 1 (fastest) to 4
// (best compression); anything else uses the zstd default.
func NewCompressor(level int) (*Compressor, error) {
	encLevel := zstd.SpeedDefault
	switch level {
	case 1:
		encLevel = zstd.SpeedFastest
	case 2:
		encLevel = zstd.SpeedDefault
	case 3:
		encLevel = zstd.SpeedBetterCompression
	case 4:
		encLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &Compressor{
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// CompressTimestamps stores the first timestamp followed by varint
// delta-of-deltas. Samples taken on a fixed period collapse to runs of zero.
func (c *Compressor) CompressTimestamps(timestamps []int64) []byte {
	if len(timestamps) == 0 {
		return nil
	}

	buf := make([]byte, 0, len(timestamps)*2+binary.MaxVarintLen64)
	buf = binary.AppendVarint(buf, timestamps[0])

	var prevDelta int64
	for i := 1; i < len(timestamps); i++ {
		delta := timestamps[i] - timestamps[i-1]
		buf = binary.AppendVarint(buf, delta-prevDelta)
		prevDelta = delta
	}

	return c.encoder.EncodeAll(buf, make([]byte, 0, len(buf)))
}

// DecompressTimestamps reverses CompressTimestamps
func (c *Compressor) DecompressTimestamps(data []byte, count int) ([]int64, error) {
	if count == 0 {
		return nil, nil
	}

	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}

	timestamps := make([]int64, count)
	var prevDelta int64
	for i := 0; i < count; i++ {
		v, n := binary.Varint(raw)
		if n <= 0 {
			return nil, fmt.Errorf("corrupt timestamp column at %d of %d", i, count)
		}
		raw = raw[n:]

		if i == 0 {
			timestamps[0] = v
			continue
		}
		delta := v + prevDelta
		timestamps[i] = timestamps[i-1] + delta
		prevDelta = delta
	}

	return timestamps, nil
}

// fieldRecord keeps the value kind across the JSON round trip
type fieldRecord struct {
	Key   string   `json:"k"`
	Int   *int64   `json:"i,omitempty"`
	Float *float64 `json:"f,omitempty"`
	Str   *string  `json:"s,omitempty"`
}

func toRecords(fields []types.Field) []fieldRecord {
	out := make([]fieldRecord, len(fields))
	for i, f := range fields {
		r := fieldRecord{Key: f.Key}
		switch f.Value.Kind() {
		case types.KindInt:
			v := f.Value.Int()
			r.Int = &v
		case types.KindFloat:
			v := f.Value.Float()
			r.Float = &v
		case types.KindString:
			v := f.Value.Str()
			r.Str = &v
		}
		out[i] = r
	}
	return out
}

func fromRecords(records []fieldRecord) []types.Field {
	out := make([]types.Field, 0, len(records))
	for _, r := range records {
		switch {
		case r.Int != nil:
			out = append(out, types.Field{Key: r.Key, Value: types.IntValue(*r.Int)})
		case r.Float != nil:
			out = append(out, types.Field{Key: r.Key, Value: types.FloatValue(*r.Float)})
		case r.Str != nil:
			out = append(out, types.Field{Key: r.Key, Value: types.StringValue(*r.Str)})
		}
	}
	return out
}

// CompressFields encodes the field sets of a block, one entry per point
func (c *Compressor) CompressFields(rows [][]types.Field) ([]byte, error) {
	records := make([][]fieldRecord, len(rows))
	for i, row := range rows {
		records[i] = toRecords(row)
	}

	raw, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// DecompressFields reverses CompressFields
func (c *Compressor) DecompressFields(data []byte, count int) ([][]types.Field, error) {
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}

	var records [][]fieldRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	if len(records) != count {
		return nil, fmt.Errorf("field column has %d rows, expected %d", len(records), count)
	}

	rows := make([][]types.Field, count)
	for i, r := range records {
		rows[i] = fromRecords(r)
	}
	return rows, nil
}

// Close closes the compressor resources
func (c *Compressor) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}
