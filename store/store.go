// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Package store provides asynctiff.RangeSource implementations for memory,
// local files and HTTP, and a block cache that wraps any of them.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bep/asynctiff"
	"github.com/hashicorp/go-multierror"
)

// DefaultConcurrency is the number of ranges fetched in parallel by GetRanges
// for sources without a native batch operation.
const DefaultConcurrency = 8

// Open returns a RangeSource and the path to use with it for uri.
// URIs starting with http:// or https:// are fetched with HTTP range requests,
// everything else is read from the local file system.
func Open(uri string) (asynctiff.RangeSource, string, error) {
	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return NewHTTP(HTTPOptions{}), uri, nil
	case strings.HasPrefix(uri, "file://"):
		return NewFile(""), strings.TrimPrefix(uri, "file://"), nil
	case strings.Contains(uri, "://"):
		return nil, "", fmt.Errorf("store: unsupported URI scheme in %q", uri)
	default:
		return NewFile(""), uri, nil
	}
}

// getRangesConcurrently fetches rs with up to concurrency parallel calls to get.
// All failures are returned as a *multierror.Error.
func getRangesConcurrently(ctx context.Context, rs []asynctiff.ByteRange, concurrency int, get func(context.Context, asynctiff.ByteRange) ([]byte, error)) ([][]byte, error) {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	var (
		out = make([][]byte, len(rs))
		sem = make(chan struct{}, concurrency)
		g   multierror.Group
		mu  sync.Mutex
	)

	for i, r := range rs {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			b, err := get(ctx, r)
			if err != nil {
				return err
			}
			mu.Lock()
			out[i] = b
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait().ErrorOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// clamp returns the part of r inside a resource of the given size.
func clamp(r asynctiff.ByteRange, size uint64) (start, end uint64) {
	start, end = min(r.Start, size), min(r.End, size)
	if end < start {
		end = start
	}
	return
}

func notFound(path string) error {
	return fmt.Errorf("%s: %w", path, asynctiff.ErrNotFound)
}
