// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"context"
	"fmt"
	"sort"
)

// RangeSource fetches byte ranges from a named resource.
// Implementations must be safe for concurrent use and must wrap ErrNotFound
// (or fs.ErrNotExist) when the resource does not exist.
//
// See the store package for implementations.
type RangeSource interface {
	// GetRange returns the bytes in r.
	GetRange(ctx context.Context, path string, r ByteRange) ([]byte, error)

	// GetRanges returns the bytes for each of rs, in order.
	GetRanges(ctx context.Context, path string, rs []ByteRange) ([][]byte, error)
}

// ByteRange is the half-open byte range [Start, End).
type ByteRange struct {
	Start uint64
	End   uint64
}

// Len returns the number of bytes in the range.
func (r ByteRange) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether o is fully inside r.
func (r ByteRange) Contains(o ByteRange) bool {
	return o.Start >= r.Start && o.End <= r.End
}

func (r ByteRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// mergeRanges sorts rs and merges ranges that overlap or are separated by at
// most maxGap bytes. It returns the merged ranges and, for each input range,
// the index of the merged range that covers it.
func mergeRanges(rs []ByteRange, maxGap uint64) ([]ByteRange, []int) {
	if len(rs) == 0 {
		return nil, nil
	}

	order := make([]int, len(rs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return rs[order[i]].Start < rs[order[j]].Start
	})

	owner := make([]int, len(rs))
	merged := []ByteRange{rs[order[0]]}
	owner[order[0]] = 0

	for _, idx := range order[1:] {
		r := rs[idx]
		last := &merged[len(merged)-1]
		if r.Start <= last.End+maxGap {
			if r.End > last.End {
				last.End = r.End
			}
		} else {
			merged = append(merged, r)
		}
		owner[idx] = len(merged) - 1
	}

	return merged, owner
}
