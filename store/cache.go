// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"

	"github.com/bep/asynctiff"
	"github.com/hashicorp/golang-lru/arc/v2"
)

var _ asynctiff.RangeSource = (*Cache)(nil)

const (
	// DefaultBlockSize is the size of the blocks cached by Cache.
	DefaultBlockSize = 64 << 10

	// DefaultCacheBlocks is the number of blocks kept by Cache.
	DefaultCacheBlocks = 1024
)

type blockKey struct {
	path  string
	index uint64
}

// Cache wraps a RangeSource with an ARC cache of fixed size blocks.
// Ranges are served from cached blocks; missing blocks for one call are
// fetched from the inner source in one GetRanges request.
type Cache struct {
	inner     asynctiff.RangeSource
	blockSize uint64
	blocks    *arc.ARCCache[blockKey, []byte]
}

// NewCache returns a Cache holding up to numBlocks blocks of blockSize bytes.
// Zero values select the defaults.
func NewCache(inner asynctiff.RangeSource, blockSize uint64, numBlocks int) (*Cache, error) {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	if numBlocks == 0 {
		numBlocks = DefaultCacheBlocks
	}
	blocks, err := arc.NewARC[blockKey, []byte](numBlocks)
	if err != nil {
		return nil, fmt.Errorf("store: create cache: %w", err)
	}
	return &Cache{inner: inner, blockSize: blockSize, blocks: blocks}, nil
}

// Len returns the number of cached blocks.
func (c *Cache) Len() int {
	return c.blocks.Len()
}

// Purge drops all cached blocks.
func (c *Cache) Purge() {
	c.blocks.Purge()
}

func (c *Cache) GetRange(ctx context.Context, path string, r asynctiff.ByteRange) ([]byte, error) {
	bs, err := c.GetRanges(ctx, path, []asynctiff.ByteRange{r})
	if err != nil {
		return nil, err
	}
	return bs[0], nil
}

func (c *Cache) GetRanges(ctx context.Context, path string, rs []asynctiff.ByteRange) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blocks := make(map[uint64][]byte)

	var missing []uint64
	for _, r := range rs {
		if r.Len() == 0 {
			continue
		}
		for i := r.Start / c.blockSize; i <= (r.End-1)/c.blockSize; i++ {
			if _, seen := blocks[i]; seen {
				continue
			}
			if b, ok := c.blocks.Get(blockKey{path: path, index: i}); ok {
				blocks[i] = b
				continue
			}
			blocks[i] = nil
			missing = append(missing, i)
		}
	}

	if len(missing) > 0 {
		want := make([]asynctiff.ByteRange, len(missing))
		for j, i := range missing {
			want[j] = asynctiff.ByteRange{Start: i * c.blockSize, End: (i + 1) * c.blockSize}
		}
		fetched, err := c.inner.GetRanges(ctx, path, want)
		if err != nil {
			return nil, err
		}
		if len(fetched) != len(want) {
			return nil, fmt.Errorf("store: inner source returned %d ranges, want %d", len(fetched), len(want))
		}
		for j, i := range missing {
			blocks[i] = fetched[j]
			c.blocks.Add(blockKey{path: path, index: i}, fetched[j])
		}
	}

	out := make([][]byte, len(rs))
	for k, r := range rs {
		out[k] = c.assemble(r, blocks)
	}
	return out, nil
}

// assemble copies r out of blocks, stopping at the first short block.
func (c *Cache) assemble(r asynctiff.ByteRange, blocks map[uint64][]byte) []byte {
	out := make([]byte, 0, r.Len())
	for pos := r.Start; pos < r.End; {
		i := pos / c.blockSize
		b := blocks[i]
		off := pos - i*c.blockSize
		if off >= uint64(len(b)) {
			break
		}
		end := min(uint64(len(b)), r.End-i*c.blockSize)
		out = append(out, b[off:end]...)
		pos = i*c.blockSize + end
		if uint64(len(b)) < c.blockSize {
			break
		}
	}
	return out
}
