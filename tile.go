// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
)

// TileState is the progress of a tile through the decode pipeline.
type TileState int32

const (
	TileCreated TileState = iota
	TileFetching
	TileDecompressing
	TileUnpacking
	TileDecoded
	TileFailed
)

var tileStateNames = map[TileState]string{
	TileCreated:       "created",
	TileFetching:      "fetching",
	TileDecompressing: "decompressing",
	TileUnpacking:     "unpacking",
	TileDecoded:       "decoded",
	TileFailed:        "failed",
}

func (s TileState) String() string {
	if n, ok := tileStateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("TileState(%d)", int32(s))
}

// Tile is a tile or strip that has been located but not yet fetched.
type Tile struct {
	tiff *TIFF
	ifd  *IFD

	// IFDIndex is the index of the IFD in TIFF.IFDs.
	IFDIndex int

	// Col and Row of the tile. Row is the strip number for stripped images.
	Col, Row int

	// Compression is the method used for the stored data.
	Compression Compression

	// Locations holds one location per stored plane:
	// one for chunky data, SamplesPerPixel for planar data.
	Locations []ChunkLocation

	state atomic.Int32

	mu  sync.Mutex
	err error
}

// State returns the current pipeline state.
func (t *Tile) State() TileState {
	return TileState(t.state.Load())
}

// Err returns the error of the last failed Decode.
func (t *Tile) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Tile) setState(s TileState) {
	t.state.Store(int32(s))
}

func (t *Tile) fail(err error) error {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	t.setState(TileFailed)
	return err
}

// Ranges returns the byte ranges of the stored planes.
func (t *Tile) Ranges() []ByteRange {
	rs := make([]ByteRange, len(t.Locations))
	for i, loc := range t.Locations {
		rs[i] = loc.Range
	}
	return rs
}

// Shape returns the shape of the Array Decode will return.
func (t *Tile) Shape() [3]int {
	loc := t.Locations[0]
	if t.ifd.PlanarConfiguration == PlanarPlanar {
		return [3]int{len(t.Locations), loc.Height, loc.Width}
	}
	return [3]int{loc.Height, loc.Width, loc.Samples}
}

// Decode fetches, decompresses and unpacks the tile.
// Every call fetches the data again.
func (t *Tile) Decode(ctx context.Context) (*Array, error) {
	t.setState(TileFetching)
	bs, err := t.tiff.fetchChunks(ctx, t.Ranges())
	if err != nil {
		return nil, t.fail(err)
	}
	return t.decodeFetched(ctx, bs)
}

// decodeFetched decodes the compressed planes in bs.
func (t *Tile) decodeFetched(ctx context.Context, bs [][]byte) (*Array, error) {
	dt := t.ifd.DataType()
	if dt == DataTypeUnknown {
		return nil, t.fail(&DecodeError{
			Compression: t.Compression,
			Msg:         fmt.Sprintf("unsupported sample layout: formats %v, bits %v", t.ifd.SampleFormat, t.ifd.BitsPerSample),
		})
	}

	t.setState(TileDecompressing)
	raws := make([][]byte, len(t.Locations))
	for i, loc := range t.Locations {
		raw, err := runOnPool(ctx, t.tiff.pool, func() ([]byte, error) {
			return t.decompress(bs[i], loc)
		})
		if err != nil {
			return nil, t.fail(err)
		}
		raws[i] = raw
	}

	t.setState(TileUnpacking)
	var data []byte
	for i, loc := range t.Locations {
		plane, err := t.unpack(raws[i], loc, dt)
		if err != nil {
			return nil, t.fail(err)
		}
		data = append(data, plane...)
	}

	arr, err := NewArray(data, t.Shape(), dt, binary.LittleEndian)
	if err != nil {
		return nil, t.fail(&DecodeError{Compression: t.Compression, Err: err})
	}

	t.setState(TileDecoded)
	return arr, nil
}

func (t *Tile) expectedLength(loc ChunkLocation) int {
	return rowBytes(loc.ChunkWidth, loc.Samples, int(t.ifd.BitsPerSample[0])) * loc.ChunkHeight
}

// decompress runs the registered decoder and validates the output length.
func (t *Tile) decompress(b []byte, loc ChunkLocation) ([]byte, error) {
	expected := t.expectedLength(loc)

	if loc.Sparse {
		return make([]byte, expected), nil
	}
	if loc.Range.Len() == 0 {
		return nil, &DecodeError{
			Compression: t.Compression,
			Msg:         fmt.Sprintf("chunk %d: empty byte range at offset %d", loc.Index, loc.Range.Start),
		}
	}
	if uint64(len(b)) < loc.Range.Len() {
		return nil, &DecodeError{
			Compression: t.Compression,
			Msg:         fmt.Sprintf("chunk %d: got %d of %d compressed bytes", loc.Index, len(b), loc.Range.Len()),
		}
	}

	info := DecodeInfo{
		Compression:     t.Compression,
		Photometric:     t.ifd.PhotometricInterpretation,
		JPEGTables:      t.ifd.JPEGTables,
		Width:           loc.ChunkWidth,
		Height:          loc.ChunkHeight,
		SamplesPerPixel: loc.Samples,
		BitsPerSample:   int(t.ifd.BitsPerSample[0]),
		ExpectedLength:  expected,
	}

	t.tiff.logger.Debug("decompress chunk", "index", loc.Index, "compression", t.Compression, "bytes", len(b))

	out, err := t.tiff.decoders.Decode(b, info)
	if err != nil {
		return nil, err
	}
	if len(out) != expected {
		return nil, &DecodeError{
			Compression: t.Compression,
			Msg:         fmt.Sprintf("chunk %d: decompressed to %d bytes, expected %d", loc.Index, len(out), expected),
		}
	}
	return out, nil
}

// unpack undoes the predictor, normalizes the byte order, expands 1-bit
// samples and crops the chunk to its logical extent.
func (t *Tile) unpack(raw []byte, loc ChunkLocation, dt DataType) ([]byte, error) {
	bits := int(t.ifd.BitsPerSample[0])
	size := max(bits/8, 1)

	wrap := func(err error) error {
		return &DecodeError{Compression: t.Compression, Msg: fmt.Sprintf("chunk %d", loc.Index), Err: err}
	}

	switch t.ifd.Predictor {
	case PredictorNone, 0:
		swapToLittleEndian(raw, size, t.tiff.byteOrder)
	case PredictorHorizontal:
		swapToLittleEndian(raw, size, t.tiff.byteOrder)
		if err := undoHorizontal(raw, loc.ChunkWidth, loc.ChunkHeight, loc.Samples, bits); err != nil {
			return nil, wrap(err)
		}
	case PredictorFloatingPoint:
		if err := undoFloatingPoint(raw, loc.ChunkWidth, loc.ChunkHeight, loc.Samples, bits); err != nil {
			return nil, wrap(err)
		}
	default:
		return nil, wrap(fmt.Errorf("unsupported predictor %d", t.ifd.Predictor))
	}

	if bits == 1 {
		raw = unpackBits(raw, loc.ChunkWidth, loc.ChunkHeight, loc.Samples)
	}

	if loc.Width == loc.ChunkWidth && loc.Height == loc.ChunkHeight {
		return raw, nil
	}

	srcRow := loc.ChunkWidth * loc.Samples * dt.Size()
	dstRow := loc.Width * loc.Samples * dt.Size()
	out := make([]byte, dstRow*loc.Height)
	for y := range loc.Height {
		copy(out[y*dstRow:(y+1)*dstRow], raw[y*srcRow:])
	}
	return out, nil
}

// FetchTile locates the tile at col, row in the IFD with the given index.
// For stripped images col must be 0 and row is the strip number.
// No data is fetched until Tile.Decode is called.
func (t *TIFF) FetchTile(col, row, ifdIndex int) (*Tile, error) {
	ifd, err := t.IFD(ifdIndex)
	if err != nil {
		return nil, err
	}

	tile := &Tile{
		tiff:        t,
		ifd:         ifd,
		IFDIndex:    ifdIndex,
		Col:         col,
		Row:         row,
		Compression: ifd.Compression,
	}

	for plane := range ifd.Planes() {
		loc, err := ifd.LocateTile(col, row, plane)
		if err != nil {
			return nil, err
		}
		tile.Locations = append(tile.Locations, loc)
	}

	return tile, nil
}

// TileCoord identifies a tile in an IFD.
type TileCoord struct {
	Col, Row int
}

// DecodeTiles fetches the given tiles of one IFD in a single batched
// request and decodes them concurrently.
//
// The returned slice has one entry per coordinate, nil for tiles that failed.
// Failures are returned together as a *multierror.Error.
func (t *TIFF) DecodeTiles(ctx context.Context, ifdIndex int, coords []TileCoord) ([]*Array, error) {
	var (
		result    *multierror.Error
		tiles     = make([]*Tile, len(coords))
		ranges    []ByteRange
		rangeIdx  = make([]int, len(coords))
		arrays    = make([]*Array, len(coords))
		resultsMu sync.Mutex
	)

	for i, c := range coords {
		tile, err := t.FetchTile(c.Col, c.Row, ifdIndex)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("tile (%d, %d): %w", c.Col, c.Row, err))
			continue
		}
		tiles[i] = tile
		rangeIdx[i] = len(ranges)
		ranges = append(ranges, tile.Ranges()...)
	}

	if len(ranges) == 0 {
		return arrays, result.ErrorOrNil()
	}

	for _, tile := range tiles {
		if tile != nil {
			tile.setState(TileFetching)
		}
	}
	bs, err := t.fetchChunks(ctx, ranges)
	if err != nil {
		for _, tile := range tiles {
			if tile != nil {
				tile.fail(err)
			}
		}
		return arrays, multierror.Append(result, err).ErrorOrNil()
	}

	var wg sync.WaitGroup
	for i, tile := range tiles {
		if tile == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := rangeIdx[i]
			arr, err := tile.decodeFetched(ctx, bs[start:start+len(tile.Locations)])
			resultsMu.Lock()
			defer resultsMu.Unlock()
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("tile (%d, %d): %w", tile.Col, tile.Row, err))
				return
			}
			arrays[i] = arr
		}()
	}
	wg.Wait()

	return arrays, result.ErrorOrNil()
}

// fetchChunks fetches the compressed data of one or more chunks.
// Empty ranges are not fetched.
func (t *TIFF) fetchChunks(ctx context.Context, rs []ByteRange) ([][]byte, error) {
	out := make([][]byte, len(rs))
	var (
		want    []ByteRange
		wantIdx []int
	)
	for i, r := range rs {
		if r.Len() > 0 {
			want = append(want, r)
			wantIdx = append(wantIdx, i)
		}
	}
	if len(want) == 0 {
		return out, nil
	}

	t.logger.Debug("fetch chunks", "path", t.path, "count", len(want))

	var bs [][]byte
	if len(want) == 1 {
		b, err := t.src.GetRange(ctx, t.path, want[0])
		if err != nil {
			return nil, classifyFetchError(t.path, want[0], err)
		}
		bs = [][]byte{b}
	} else {
		var err error
		bs, err = t.src.GetRanges(ctx, t.path, want)
		if err != nil {
			return nil, classifyFetchError(t.path, want[0], err)
		}
		if len(bs) != len(want) {
			return nil, &IOError{Path: t.path, Range: want[0], Err: errShortRead}
		}
	}

	for i, b := range bs {
		out[wantIdx[i]] = b
	}
	return out, nil
}
