// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package store

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"

	"github.com/bep/asynctiff"
)

var _ asynctiff.RangeSource = (*Memory)(nil)

// Memory is an in-memory RangeSource.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte

	requests atomic.Int64
}

// NewMemory returns an empty Memory source.
func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

// Put stores b under path, replacing any previous content.
func (m *Memory) Put(path string, b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = b
}

// Requests returns the number of GetRange and GetRanges calls so far.
func (m *Memory) Requests() int64 {
	return m.requests.Load()
}

func (m *Memory) GetRange(ctx context.Context, path string, r asynctiff.ByteRange) ([]byte, error) {
	m.requests.Add(1)
	return m.get(ctx, path, r)
}

func (m *Memory) GetRanges(ctx context.Context, path string, rs []asynctiff.ByteRange) ([][]byte, error) {
	m.requests.Add(1)
	out := make([][]byte, len(rs))
	for i, r := range rs {
		b, err := m.get(ctx, path, r)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func (m *Memory) get(ctx context.Context, path string, r asynctiff.ByteRange) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	b, ok := m.files[path]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound(path)
	}
	start, end := clamp(r, uint64(len(b)))
	return bytes.Clone(b[start:end]), nil
}
