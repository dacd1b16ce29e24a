/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package compression provides configurable compression for sync payloads.

Supported algorithms:

 1. LZ4: fast compression/decompression, moderate ratio.
 2. Snappy: very fast, lower ratio.
 3. Zstd: best ratio; the DefaultConfig algorithm. The encoder always
    runs at zstd's default speed, whatever Config.Level says.
 4. Gzip: stdlib codec.

AlgorithmNone passes data through uncompressed.

Batch compression collects several changelog/node/edge records before
compressing, which improves the ratio over compressing each record on its
own. The sync engine and the HTTP transport do not call this package;
SyncPayload messages travel uncompressed.
*/
package compression

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm.
type Algorithm int

const (
	AlgorithmNone Algorithm = iota
	AlgorithmGzip
	AlgorithmLZ4
	AlgorithmSnappy
	AlgorithmZstd
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmGzip:
		return "gzip"
	case AlgorithmLZ4:
		return "lz4"
	case AlgorithmSnappy:
		return "snappy"
	case AlgorithmZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseAlgorithm parses a compression algorithm from a string.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "none", "":
		return AlgorithmNone, nil
	case "gzip":
		return AlgorithmGzip, nil
	case "lz4":
		return AlgorithmLZ4, nil
	case "snappy":
		return AlgorithmSnappy, nil
	case "zstd":
		return AlgorithmZstd, nil
	default:
		return AlgorithmNone, fmt.Errorf("unknown compression algorithm: %s", s)
	}
}

// Level represents a compression level.
type Level int

const (
	LevelFastest Level = 1
	LevelDefault Level = 5
	LevelBest    Level = 9
)

// Config holds compression configuration.
type Config struct {
	Algorithm        Algorithm `json:"algorithm"`
	Level            Level     `json:"level"`
	MinSize          int       `json:"min_size"`
	BatchSize        int       `json:"batch_size"`
	BatchTimeout     int       `json:"batch_timeout_ms"`
	DictionaryEnable bool      `json:"dictionary_enable"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Algorithm:        AlgorithmZstd,
		Level:            LevelDefault,
		MinSize:          256,
		BatchSize:        100,
		BatchTimeout:     10,
		DictionaryEnable: false,
	}
}

var (
	ErrDataTooSmall     = errors.New("data too small to compress")
	ErrInvalidHeader    = errors.New("invalid compression header")
	ErrUnsupportedAlgo  = errors.New("unsupported compression algorithm")
	ErrDecompressFailed = errors.New("decompression failed")
)

// Compressor compresses/decompresses SyncPayload bodies.
type Compressor struct {
	config     Config
	gzipPool   sync.Pool
	bufferPool sync.Pool
	zstdOnce   sync.Once
	zstdEnc    *zstd.Encoder
	zstdDec    *zstd.Decoder
}

// NewCompressor creates a new compressor.
func NewCompressor(config Config) *Compressor {
	return &Compressor{
		config: config,
		gzipPool: sync.Pool{
			New: func() interface{} { return gzip.NewWriter(nil) },
		},
		bufferPool: sync.Pool{
			New: func() interface{} { return new(bytes.Buffer) },
		},
	}
}

func (c *Compressor) zstdCodec() (*zstd.Encoder, *zstd.Decoder) {
	c.zstdOnce.Do(func() {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err == nil {
			c.zstdEnc = enc
		}
		dec, err := zstd.NewReader(nil)
		if err == nil {
			c.zstdDec = dec
		}
	})
	return c.zstdEnc, c.zstdDec
}

// Compress compresses data using the compressor's configured algorithm.
// Data shorter than config.MinSize is not compressed: Compress returns
// nil and ErrDataTooSmall, signaling the caller to send the original
// data raw.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) < c.config.MinSize {
		return nil, ErrDataTooSmall
	}
	switch c.config.Algorithm {
	case AlgorithmNone:
		return data, nil
	case AlgorithmGzip:
		return c.compressGzip(data)
	case AlgorithmLZ4:
		return compressLZ4(data)
	case AlgorithmSnappy:
		return snappy.Encode(nil, data), nil
	case AlgorithmZstd:
		enc, _ := c.zstdCodec()
		if enc == nil {
			return nil, ErrUnsupportedAlgo
		}
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, ErrUnsupportedAlgo
	}
}

// Decompress reverses Compress for the given algorithm.
func (c *Compressor) Decompress(data []byte, algo Algorithm) ([]byte, error) {
	switch algo {
	case AlgorithmNone:
		return data, nil
	case AlgorithmGzip:
		return decompressGzip(data)
	case AlgorithmLZ4:
		return decompressLZ4(data)
	case AlgorithmSnappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		return out, nil
	case AlgorithmZstd:
		_, dec := c.zstdCodec()
		if dec == nil {
			return nil, ErrUnsupportedAlgo
		}
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		return out, nil
	default:
		return nil, ErrUnsupportedAlgo
	}
}

func (c *Compressor) compressGzip(data []byte) ([]byte, error) {
	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	gw := c.gzipPool.Get().(*gzip.Writer)
	gw.Reset(buf)
	defer c.gzipPool.Put(gw)

	if _, err := gw.Write(data); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decompressGzip(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
	}
	defer gr.Close()
	out, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
	}
	return out, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLZ4(data []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
	}
	return out, nil
}

// BatchCompressor accumulates several entries (e.g. changelog records)
// and compresses them as a single unit, improving the ratio over
// per-record compression. Entries are length-prefixed so the batch can be
// split back apart after decompression.
type BatchCompressor struct {
	config  Config
	entries [][]byte
}

// NewBatchCompressor creates a batch compressor for config.
func NewBatchCompressor(config Config) *BatchCompressor {
	return &BatchCompressor{config: config}
}

// Add appends an entry to the pending batch.
func (b *BatchCompressor) Add(entry []byte) {
	b.entries = append(b.entries, entry)
}

// Flush compresses the accumulated batch and resets it.
func (b *BatchCompressor) Flush() ([]byte, error) {
	var raw bytes.Buffer
	lenBuf := make([]byte, 4)
	for _, e := range b.entries {
		binary.BigEndian.PutUint32(lenBuf, uint32(len(e)))
		raw.Write(lenBuf)
		raw.Write(e)
	}
	b.entries = nil

	c := NewCompressor(b.config)
	compressed, err := c.Compress(raw.Bytes())
	if errors.Is(err, ErrDataTooSmall) {
		return raw.Bytes(), nil
	}
	return compressed, err
}

// DecompressBatch reverses Flush, returning the original entries in order.
func (b *BatchCompressor) DecompressBatch(data []byte, algo Algorithm) ([][]byte, error) {
	c := NewCompressor(b.config)
	raw, err := c.Decompress(data, algo)
	if err != nil {
		return nil, err
	}

	var entries [][]byte
	for len(raw) > 0 {
		if len(raw) < 4 {
			return nil, ErrInvalidHeader
		}
		n := binary.BigEndian.Uint32(raw[:4])
		raw = raw[4:]
		if uint32(len(raw)) < n {
			return nil, ErrInvalidHeader
		}
		entries = append(entries, raw[:n])
		raw = raw[n:]
	}
	return entries, nil
}
