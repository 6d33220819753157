// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"context"
	"log/slog"
	"math"
	"sync"
)

// metadataFetcher fetches the bytes needed to parse the header and the IFDs.
// The returned slices may be shorter than requested at the end of the file.
type metadataFetcher interface {
	fetch(ctx context.Context, r ByteRange) ([]byte, error)
	fetchRanges(ctx context.Context, rs []ByteRange) ([][]byte, error)
}

// sourceFetcher fetches directly from the RangeSource.
type sourceFetcher struct {
	src    RangeSource
	path   string
	logger *slog.Logger
}

func (f *sourceFetcher) fetch(ctx context.Context, r ByteRange) ([]byte, error) {
	f.logger.Debug("fetch metadata", "path", f.path, "start", r.Start, "end", r.End)
	b, err := f.src.GetRange(ctx, f.path, r)
	if err != nil {
		return nil, classifyFetchError(f.path, r, err)
	}
	return b, nil
}

func (f *sourceFetcher) fetchRanges(ctx context.Context, rs []ByteRange) ([][]byte, error) {
	if len(rs) == 0 {
		return nil, nil
	}
	if len(rs) == 1 {
		b, err := f.fetch(ctx, rs[0])
		if err != nil {
			return nil, err
		}
		return [][]byte{b}, nil
	}
	f.logger.Debug("fetch metadata ranges", "path", f.path, "count", len(rs))
	bs, err := f.src.GetRanges(ctx, f.path, rs)
	if err != nil {
		return nil, classifyFetchError(f.path, rs[0], err)
	}
	if len(bs) != len(rs) {
		return nil, &IOError{Path: f.path, Range: rs[0], Err: errShortRead}
	}
	return bs, nil
}

// prefetchBuffer holds the first bytes of the file, fetched once on open.
// Fetches fully inside the buffer are served from it, everything else is
// forwarded.
type prefetchBuffer struct {
	inner metadataFetcher
	buf   []byte
}

func newPrefetchBuffer(ctx context.Context, inner metadataFetcher, size uint64) (*prefetchBuffer, error) {
	buf, err := inner.fetch(ctx, ByteRange{Start: 0, End: size})
	if err != nil {
		return nil, err
	}
	return &prefetchBuffer{inner: inner, buf: buf}, nil
}

func (p *prefetchBuffer) covers(r ByteRange) bool {
	return r.End <= uint64(len(p.buf))
}

func (p *prefetchBuffer) fetch(ctx context.Context, r ByteRange) ([]byte, error) {
	if p.covers(r) {
		return p.buf[r.Start:r.End:r.End], nil
	}
	return p.inner.fetch(ctx, r)
}

func (p *prefetchBuffer) fetchRanges(ctx context.Context, rs []ByteRange) ([][]byte, error) {
	out := make([][]byte, len(rs))
	var (
		missing    []ByteRange
		missingIdx []int
	)
	for i, r := range rs {
		if p.covers(r) {
			out[i] = p.buf[r.Start:r.End:r.End]
			continue
		}
		missing = append(missing, r)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	bs, err := p.inner.fetchRanges(ctx, missing)
	if err != nil {
		return nil, err
	}
	for i, b := range bs {
		out[missingIdx[i]] = b
	}
	return out, nil
}

const (
	defaultReadaheadMultiplier = 2.0
)

// readaheadCache caches metadata in growing blocks read sequentially from
// the start of the file. Each fetch past the cached prefix reads at least
// the previous cached length times the multiplier.
// The lock is never held while fetching.
type readaheadCache struct {
	inner      metadataFetcher
	initial    uint64
	multiplier float64

	mu   sync.Mutex
	data []byte
	eof  bool
}

func newReadaheadCache(inner metadataFetcher, initial uint64, multiplier float64) *readaheadCache {
	if multiplier < 1 {
		multiplier = defaultReadaheadMultiplier
	}
	return &readaheadCache{inner: inner, initial: initial, multiplier: multiplier}
}

func (c *readaheadCache) nextFetchSize(existing uint64) uint64 {
	if existing == 0 {
		return c.initial
	}
	n := math.Round(float64(existing) * c.multiplier)
	if n >= math.MaxUint64/2 {
		return math.MaxUint64 / 2
	}
	return uint64(n)
}

func (c *readaheadCache) fetch(ctx context.Context, r ByteRange) ([]byte, error) {
	for {
		c.mu.Lock()
		size := uint64(len(c.data))
		if r.End <= size || c.eof {
			b := c.sliceLocked(r)
			c.mu.Unlock()
			return b, nil
		}
		fetchSize := max(c.nextFetchSize(size), r.End-size)
		c.mu.Unlock()

		want := ByteRange{Start: size, End: size + fetchSize}
		b, err := c.inner.fetch(ctx, want)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// Another fetch may have extended the cache in the meantime.
		if uint64(len(c.data)) == size {
			c.data = append(c.data, b...)
			if uint64(len(b)) < fetchSize {
				c.eof = true
			}
		}
		c.mu.Unlock()
	}
}

func (c *readaheadCache) sliceLocked(r ByteRange) []byte {
	size := uint64(len(c.data))
	start, end := min(r.Start, size), min(r.End, size)
	return c.data[start:end:end]
}

func (c *readaheadCache) fetchRanges(ctx context.Context, rs []ByteRange) ([][]byte, error) {
	out := make([][]byte, len(rs))
	for i, r := range rs {
		b, err := c.fetch(ctx, r)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
