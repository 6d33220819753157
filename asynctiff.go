// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Package asynctiff reads TIFF, BigTIFF and Cloud Optimized GeoTIFF files
// from any RangeSource, fetching only the byte ranges it needs.
package asynctiff

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Options contains the options for Open.
type Options struct {
	// The source to read from. Required.
	Source RangeSource

	// The path of the file in Source. Required.
	Path string

	// PrefetchSize is the number of bytes fetched from the start of the file
	// in one request before parsing. Metadata reads inside it are served from
	// memory. If set to 0, nothing is prefetched.
	PrefetchSize uint64

	// ReadaheadSize enables a sequential metadata cache starting with a
	// fetch of this many bytes. Each following fetch is ReadaheadMultiplier
	// times the cached size.
	// If set to 0, the cache is disabled.
	ReadaheadSize uint64

	// Default value is 2.
	ReadaheadMultiplier float64

	// Decoders used to decompress tiles.
	// Default is DefaultDecoderRegistry().
	Decoders *DecoderRegistry

	// Pool runs decompression. If nil, Open creates a pool with Workers
	// workers which is stopped by TIFF.Close.
	Pool *WorkerPool

	// Workers is the size of the pool created when Pool is nil.
	// Default value is runtime.GOMAXPROCS(0).
	Workers int

	// Logger receives debug logs about fetches and decoding.
	// Default is to discard.
	Logger *slog.Logger

	// Warnf will be called for each warning.
	Warnf func(string, ...any)

	// Timeout is the maximum time Open will spend reading metadata.
	// If set to 0, Open will not time out.
	Timeout time.Duration

	// LimitNumIFDs is the maximum length of the IFD chain.
	// Default value is 256.
	LimitNumIFDs int

	// LimitNumEntries is the maximum number of entries in one IFD.
	// Default value is 10000.
	LimitNumEntries int

	// LimitTagSize is the maximum size in bytes of a tag value.
	// Default value is 64 MiB.
	LimitTagSize uint64

	// MaxBatchGap is the largest gap in bytes between two out-of-line tag
	// values that are fetched in one range.
	// Default value is 64 KiB.
	MaxBatchGap uint64
}

const (
	defaultLimitNumIFDs    = 256
	defaultLimitNumEntries = 10000
	defaultLimitTagSize    = 64 << 20
	defaultMaxBatchGap     = 64 << 10
)

func (o *Options) init() error {
	if o.Source == nil {
		return errors.New("asynctiff: no source provided")
	}
	if o.Path == "" {
		return errors.New("asynctiff: no path provided")
	}
	if o.Decoders == nil {
		o.Decoders = DefaultDecoderRegistry()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Warnf == nil {
		o.Warnf = func(string, ...any) {}
	}
	if o.ReadaheadMultiplier == 0 {
		o.ReadaheadMultiplier = defaultReadaheadMultiplier
	}
	if o.LimitNumIFDs == 0 {
		o.LimitNumIFDs = defaultLimitNumIFDs
	}
	if o.LimitNumEntries == 0 {
		o.LimitNumEntries = defaultLimitNumEntries
	}
	if o.LimitTagSize == 0 {
		o.LimitTagSize = defaultLimitTagSize
	}
	if o.MaxBatchGap == 0 {
		o.MaxBatchGap = defaultMaxBatchGap
	}
	return nil
}

// TIFF is an opened TIFF file.
// It is safe for concurrent use.
type TIFF struct {
	src       RangeSource
	path      string
	byteOrder binary.ByteOrder
	bigTIFF   bool
	ifds      []*IFD

	decoders *DecoderRegistry
	pool     *WorkerPool
	ownsPool bool
	logger   *slog.Logger
}

// Open reads the header and the full IFD chain of the file at opts.Path.
//
// It fails with a *NotFoundError if the file does not exist, an *IOError if
// the source fails and a *FormatError if the file is not a valid TIFF.
func Open(ctx context.Context, opts Options) (tiff *TIFF, err error) {
	if err := opts.init(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			tiff = nil
			err = recoveredFormatError(r)
		}
	}()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	logger := opts.Logger.With("path", opts.Path)

	var fetcher metadataFetcher = &sourceFetcher{src: opts.Source, path: opts.Path, logger: logger}
	if opts.ReadaheadSize > 0 {
		fetcher = newReadaheadCache(fetcher, opts.ReadaheadSize, opts.ReadaheadMultiplier)
	}
	if opts.PrefetchSize > 0 {
		fetcher, err = newPrefetchBuffer(ctx, fetcher, opts.PrefetchSize)
		if err != nil {
			return nil, err
		}
	}

	b, err := fetcher.fetch(ctx, ByteRange{Start: 0, End: headerSize})
	if err != nil {
		return nil, err
	}
	h, err := parseHeader(b)
	if err != nil {
		return nil, err
	}

	logger.Debug("parsed header", "bigtiff", h.bigTIFF, "first_ifd", h.firstIFDOffset)

	p := &ifdParser{
		fetcher:   fetcher,
		byteOrder: h.byteOrder,
		bigTIFF:   h.bigTIFF,
		opts:      opts,
		logger:    logger,
	}

	ifds, err := p.parseChain(ctx, h.firstIFDOffset)
	if err != nil {
		return nil, err
	}
	if len(ifds) == 0 {
		return nil, newFormatErrorf("no IFDs")
	}

	tiff = &TIFF{
		src:       opts.Source,
		path:      opts.Path,
		byteOrder: h.byteOrder,
		bigTIFF:   h.bigTIFF,
		ifds:      ifds,
		decoders:  opts.Decoders,
		pool:      opts.Pool,
		logger:    logger,
	}
	if tiff.pool == nil {
		tiff.pool = NewWorkerPool(opts.Workers)
		tiff.ownsPool = true
	}

	return tiff, nil
}

// Path returns the path the file was opened with.
func (t *TIFF) Path() string {
	return t.path
}

// ByteOrder returns the byte order of the file.
func (t *TIFF) ByteOrder() binary.ByteOrder {
	return t.byteOrder
}

// BigTIFF reports whether the file uses the BigTIFF variant.
func (t *TIFF) BigTIFF() bool {
	return t.bigTIFF
}

// IFDs returns the parsed IFDs in file order. Index 0 is the primary image.
func (t *TIFF) IFDs() []*IFD {
	return t.ifds
}

// IFD returns the IFD with the given index.
func (t *TIFF) IFD(i int) (*IFD, error) {
	if i < 0 || i >= len(t.ifds) {
		return nil, fmt.Errorf("IFD index %d not in [0, %d): %w", i, len(t.ifds), ErrTileIndexOutOfRange)
	}
	return t.ifds[i], nil
}

// Close stops the worker pool if it was created by Open.
func (t *TIFF) Close() error {
	if t.ownsPool {
		return t.pool.Close()
	}
	return nil
}
