// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"errors"
	"maps"
	"sync"
	"sync/atomic"
)

// DecodeInfo describes the chunk being decompressed.
type DecodeInfo struct {
	Compression     Compression
	Photometric     Photometric
	JPEGTables      []byte
	Width, Height   int // Stored chunk dimensions in pixels.
	SamplesPerPixel int // Samples stored in this chunk.
	BitsPerSample   int
	ExpectedLength  int // Uncompressed length implied by the chunk geometry.
}

// Decoder decompresses one tile or strip.
// Implementations must be safe for concurrent use.
type Decoder interface {
	Decode(b []byte, info DecodeInfo) ([]byte, error)
}

// DecoderFunc is a function that implements Decoder.
type DecoderFunc func(b []byte, info DecodeInfo) ([]byte, error)

func (f DecoderFunc) Decode(b []byte, info DecodeInfo) ([]byte, error) {
	return f(b, info)
}

// DecoderRegistry maps compression methods to decoders.
// Lookups never lock; Register replaces the whole table.
type DecoderRegistry struct {
	mu       sync.Mutex // Serializes Register.
	decoders atomic.Pointer[map[Compression]Decoder]
}

// NewDecoderRegistry returns a registry with the built-in decoders registered.
func NewDecoderRegistry() *DecoderRegistry {
	r := &DecoderRegistry{}
	m := builtinDecoders()
	r.decoders.Store(&m)
	return r
}

// Register inserts or replaces the decoder for c.
func (r *DecoderRegistry) Register(c Compression, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var m map[Compression]Decoder
	if old := r.decoders.Load(); old != nil {
		m = maps.Clone(*old)
	} else {
		m = make(map[Compression]Decoder)
	}
	m[c] = d
	r.decoders.Store(&m)
}

// RegisterFunc registers f as the decoder for c.
func (r *DecoderRegistry) RegisterFunc(c Compression, f DecoderFunc) {
	r.Register(c, f)
}

// Lookup returns the decoder for c.
func (r *DecoderRegistry) Lookup(c Compression) (Decoder, bool) {
	m := r.decoders.Load()
	if m == nil {
		return nil, false
	}
	d, ok := (*m)[c]
	return d, ok
}

// Compressions returns the registered compression methods.
func (r *DecoderRegistry) Compressions() []Compression {
	m := r.decoders.Load()
	if m == nil {
		return nil
	}
	var cs []Compression
	for c := range *m {
		cs = append(cs, c)
	}
	return cs
}

// Decode decompresses b with the decoder registered for info.Compression.
func (r *DecoderRegistry) Decode(b []byte, info DecodeInfo) ([]byte, error) {
	d, ok := r.Lookup(info.Compression)
	if !ok {
		return nil, &UnsupportedCompressionError{Compression: info.Compression}
	}
	out, err := d.Decode(b, info)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			if de.Compression == 0 {
				de.Compression = info.Compression
			}
			return nil, err
		}
		if IsUnsupportedCompression(err) {
			return nil, err
		}
		return nil, &DecodeError{Compression: info.Compression, Err: err}
	}
	return out, nil
}

var defaultRegistry = NewDecoderRegistry()

// DefaultDecoderRegistry returns the registry used when Options.Decoders is nil.
func DefaultDecoderRegistry() *DecoderRegistry {
	return defaultRegistry
}
