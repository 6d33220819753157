// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
)

// IFD is a parsed Image File Directory.
//
// Well known tags are decoded into the named fields, all other tags are kept
// in Other with their decoded values.
type IFD struct {
	NewSubfileType uint32

	ImageWidth  uint32
	ImageHeight uint32

	BitsPerSample             []uint16
	Compression               Compression
	PhotometricInterpretation Photometric
	SamplesPerPixel           uint16
	PlanarConfiguration       PlanarConfiguration
	SampleFormat              []SampleFormat
	Predictor                 Predictor
	ExtraSamples              []uint16
	Orientation               uint16

	// Stripped layout.
	StripOffsets    []uint64
	StripByteCounts []uint64
	RowsPerStrip    uint32

	// Tiled layout.
	TileWidth      uint32
	TileHeight     uint32
	TileOffsets    []uint64
	TileByteCounts []uint64

	MinSampleValue []uint16
	MaxSampleValue []uint16

	XResolution    float64
	YResolution    float64
	ResolutionUnit ResolutionUnit

	DocumentName     string
	ImageDescription string
	Software         string
	DateTime         string
	Artist           string
	HostComputer     string
	Copyright        string

	// ColorMap holds all red, then all green, then all blue values.
	// See Colormap for an (n, 3) view.
	ColorMap   []uint16
	JPEGTables []byte

	ModelPixelScale     []float64
	ModelTiepoint       []float64
	ModelTransformation []float64
	GeoKeyDirectory     *GeoKeyDirectory

	GDALMetadata string
	GDALNoData   string

	// Other holds all tags not decoded into the fields above.
	Other map[Tag]any
}

// IsTiled reports whether the image data is organized in tiles rather than strips.
func (ifd *IFD) IsTiled() bool {
	return ifd.TileWidth > 0 && ifd.TileHeight > 0
}

// Colormap returns the color map as (n, 3) red, green and blue values,
// or nil if the IFD has no color map.
func (ifd *IFD) Colormap() Colormap {
	if len(ifd.ColorMap) == 0 {
		return nil
	}
	n := len(ifd.ColorMap) / 3
	cm := make(Colormap, n)
	for i := range cm {
		cm[i] = [3]uint16{ifd.ColorMap[i], ifd.ColorMap[n+i], ifd.ColorMap[2*n+i]}
	}
	return cm
}

// Colormap is a palette of 16-bit red, green and blue values.
type Colormap [][3]uint16

// Shape returns the (entries, 3) shape of the color map.
func (c Colormap) Shape() [2]int {
	return [2]int{len(c), 3}
}

// ifdEntry is a directory entry with its value bytes not yet resolved.
type ifdEntry struct {
	tag    Tag
	typ    tagType
	count  uint64
	inline []byte    // Set when the value fits in the entry.
	rng    ByteRange // Set when the value is stored elsewhere.
}

// ifdParser walks the IFD chain of one file.
type ifdParser struct {
	fetcher   metadataFetcher
	byteOrder binary.ByteOrder
	bigTIFF   bool
	opts      Options
	logger    *slog.Logger
}

func (p *ifdParser) countSize() uint64 {
	if p.bigTIFF {
		return 8
	}
	return 2
}

func (p *ifdParser) entrySize() uint64 {
	if p.bigTIFF {
		return 20
	}
	return 12
}

func (p *ifdParser) offsetSize() uint64 {
	if p.bigTIFF {
		return 8
	}
	return 4
}

// parseChain parses all IFDs starting at offset.
func (p *ifdParser) parseChain(ctx context.Context, offset uint64) ([]*IFD, error) {
	var (
		ifds []*IFD
		seen = make(map[uint64]bool)
	)

	for offset != 0 {
		if len(ifds) >= p.opts.LimitNumIFDs {
			return nil, newFormatErrorf("IFD chain exceeds limit of %d", p.opts.LimitNumIFDs)
		}
		if seen[offset] {
			return nil, newFormatErrorf("IFD chain loops back to offset %d", offset)
		}
		seen[offset] = true

		ifd, next, err := p.parseIFD(ctx, offset)
		if err != nil {
			return nil, fmt.Errorf("IFD %d at offset %d: %w", len(ifds), offset, err)
		}
		ifds = append(ifds, ifd)
		offset = next
	}

	return ifds, nil
}

// parseIFD parses the IFD at offset and returns it together with the offset
// of the next IFD, 0 if this is the last one.
func (p *ifdParser) parseIFD(ctx context.Context, offset uint64) (*IFD, uint64, error) {
	b, err := p.fetchExact(ctx, ByteRange{Start: offset, End: offset + p.countSize()})
	if err != nil {
		return nil, 0, err
	}

	var numEntries uint64
	if p.bigTIFF {
		numEntries = p.byteOrder.Uint64(b)
	} else {
		numEntries = uint64(p.byteOrder.Uint16(b))
	}

	if numEntries == 0 {
		return nil, 0, newFormatErrorf("IFD has no entries")
	}
	if numEntries > uint64(p.opts.LimitNumEntries) {
		return nil, 0, newFormatErrorf("IFD has %d entries, limit is %d", numEntries, p.opts.LimitNumEntries)
	}

	start := offset + p.countSize()
	b, err = p.fetchExact(ctx, ByteRange{Start: start, End: start + numEntries*p.entrySize() + p.offsetSize()})
	if err != nil {
		return nil, 0, err
	}

	entries, next, err := p.parseEntries(b, int(numEntries))
	if err != nil {
		return nil, 0, err
	}

	values, err := p.resolveValues(ctx, entries)
	if err != nil {
		return nil, 0, err
	}

	ifd, err := newIFD(entries, values, p.opts.Warnf)
	if err != nil {
		return nil, 0, err
	}

	return ifd, next, nil
}

// A tag is represented in 12 (BigTIFF: 20) bytes:
//   - 2 bytes for the tag ID
//   - 2 bytes for the data type
//   - 4 (8) bytes for the number of values
//   - 4 (8) bytes for the value itself if it fits, otherwise for an offset
//     to where the value may be found.
func (p *ifdParser) parseEntries(b []byte, n int) (entries []ifdEntry, next uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoveredFormatError(r)
		}
	}()

	c := newCursor(b, p.byteOrder, p.bigTIFF)
	inlineSize := uint64(c.offsetSize())
	seen := make(map[Tag]bool, n)
	entries = make([]ifdEntry, 0, n)

	for range n {
		e := ifdEntry{
			tag: Tag(c.read2()),
			typ: tagType(c.read2()),
		}
		e.count = c.readOffset()
		field := c.readBytesVolatile(int(inlineSize))

		if seen[e.tag] {
			return nil, 0, newFormatErrorf("duplicate tag %s", e.tag)
		}
		seen[e.tag] = true

		size, ok := tagTypeSize[e.typ]
		if !ok {
			return nil, 0, newFormatErrorf("tag %s: unknown field type %d", e.tag, e.typ)
		}
		if e.count > p.opts.LimitTagSize/size {
			return nil, 0, newFormatErrorf("tag %s: value of %d x %d bytes exceeds limit %d", e.tag, e.count, size, p.opts.LimitTagSize)
		}

		valLen := size * e.count
		if valLen <= inlineSize {
			e.inline = field[:valLen]
		} else {
			var valueOffset uint64
			if p.bigTIFF {
				valueOffset = p.byteOrder.Uint64(field)
			} else {
				valueOffset = uint64(p.byteOrder.Uint32(field))
			}
			e.rng = ByteRange{Start: valueOffset, End: valueOffset + valLen}
		}
		entries = append(entries, e)
	}

	next = c.readOffset()

	return entries, next, nil
}

// resolveValues decodes the value of every entry. Values stored outside of
// the directory are fetched in as few round trips as possible.
func (p *ifdParser) resolveValues(ctx context.Context, entries []ifdEntry) ([]any, error) {
	var (
		pending    []ByteRange
		pendingIdx []int
	)
	for i, e := range entries {
		if e.inline == nil {
			pending = append(pending, e.rng)
			pendingIdx = append(pendingIdx, i)
		}
	}

	raw := make([][]byte, len(entries))
	for i, e := range entries {
		raw[i] = e.inline
	}

	if len(pending) > 0 {
		merged, owner := mergeRanges(pending, p.opts.MaxBatchGap)
		p.logger.Debug("resolve IFD values", "values", len(pending), "fetches", len(merged))
		bs, err := p.fetcher.fetchRanges(ctx, merged)
		if err != nil {
			return nil, err
		}
		for j, r := range pending {
			m := merged[owner[j]]
			b := bs[owner[j]]
			lo, hi := r.Start-m.Start, r.End-m.Start
			if hi > uint64(len(b)) {
				return nil, newFormatErrorf("tag %s: value at %s is past the end of the file", entries[pendingIdx[j]].tag, r)
			}
			raw[pendingIdx[j]] = b[lo:hi]
		}
	}

	values := make([]any, len(entries))
	for i, e := range entries {
		v, err := decodeValues(raw[i], e.typ, e.count, p.byteOrder)
		if err != nil {
			return nil, fmt.Errorf("tag %s: %w", e.tag, err)
		}
		values[i] = v
	}

	return values, nil
}

// fetchExact fetches r and fails with a FormatError if the file ends before r does.
func (p *ifdParser) fetchExact(ctx context.Context, r ByteRange) ([]byte, error) {
	b, err := p.fetcher.fetch(ctx, r)
	if err != nil {
		return nil, err
	}
	if uint64(len(b)) < r.Len() {
		return nil, newFormatErrorf("unexpected end of file reading %s", r)
	}
	return b, nil
}

// newIFD builds an IFD from the decoded entry values.
func newIFD(entries []ifdEntry, values []any, warnf func(string, ...any)) (*IFD, error) {
	ifd := &IFD{
		Compression:         CompressionNone,
		SamplesPerPixel:     1,
		PlanarConfiguration: PlanarChunky,
		Predictor:           PredictorNone,
		ResolutionUnit:      ResolutionUnitInch,
	}

	var (
		hasPhotometric bool
		geoShorts      []uint16
		geoDoubles     []float64
		geoASCII       string
	)

	for i, e := range entries {
		v := values[i]
		var err error

		switch e.tag {
		case TagNewSubfileType:
			err = setUint(&ifd.NewSubfileType, e.tag, v)
		case TagImageWidth:
			err = setUint(&ifd.ImageWidth, e.tag, v)
		case TagImageLength:
			err = setUint(&ifd.ImageHeight, e.tag, v)
		case TagBitsPerSample:
			ifd.BitsPerSample, err = uint16sOf(e.tag, v)
		case TagCompression:
			err = setUint(&ifd.Compression, e.tag, v)
		case TagPhotometricInterpretation:
			hasPhotometric = true
			err = setUint(&ifd.PhotometricInterpretation, e.tag, v)
			if err == nil {
				if _, known := photometricNames[ifd.PhotometricInterpretation]; !known {
					warnf("unknown photometric interpretation %d", ifd.PhotometricInterpretation)
				}
			}
		case TagSamplesPerPixel:
			err = setUint(&ifd.SamplesPerPixel, e.tag, v)
		case TagPlanarConfiguration:
			err = setUint(&ifd.PlanarConfiguration, e.tag, v)
			if err == nil && ifd.PlanarConfiguration != PlanarChunky && ifd.PlanarConfiguration != PlanarPlanar {
				err = newFormatErrorf("invalid planar configuration %d", ifd.PlanarConfiguration)
			}
		case TagSampleFormat:
			var formats []uint16
			formats, err = uint16sOf(e.tag, v)
			for _, f := range formats {
				ifd.SampleFormat = append(ifd.SampleFormat, SampleFormat(f))
			}
		case TagPredictor:
			err = setUint(&ifd.Predictor, e.tag, v)
		case TagExtraSamples:
			ifd.ExtraSamples, err = uint16sOf(e.tag, v)
		case TagOrientation:
			err = setUint(&ifd.Orientation, e.tag, v)
		case TagStripOffsets:
			ifd.StripOffsets, err = uint64sOf(e.tag, v)
		case TagStripByteCounts:
			ifd.StripByteCounts, err = uint64sOf(e.tag, v)
		case TagRowsPerStrip:
			var rows uint64
			rows, err = uint64Of(e.tag, v)
			ifd.RowsPerStrip = uint32(min(rows, uint64(^uint32(0))))
		case TagTileWidth:
			err = setUint(&ifd.TileWidth, e.tag, v)
		case TagTileLength:
			err = setUint(&ifd.TileHeight, e.tag, v)
		case TagTileOffsets:
			ifd.TileOffsets, err = uint64sOf(e.tag, v)
		case TagTileByteCounts:
			ifd.TileByteCounts, err = uint64sOf(e.tag, v)
		case TagMinSampleValue:
			ifd.MinSampleValue, err = uint16sOf(e.tag, v)
		case TagMaxSampleValue:
			ifd.MaxSampleValue, err = uint16sOf(e.tag, v)
		case TagXResolution:
			ifd.XResolution, err = float64Of(e.tag, v)
		case TagYResolution:
			ifd.YResolution, err = float64Of(e.tag, v)
		case TagResolutionUnit:
			err = setUint(&ifd.ResolutionUnit, e.tag, v)
		case TagDocumentName:
			ifd.DocumentName, err = stringOf(e.tag, v)
		case TagImageDescription:
			ifd.ImageDescription, err = stringOf(e.tag, v)
		case TagSoftware:
			ifd.Software, err = stringOf(e.tag, v)
		case TagDateTime:
			ifd.DateTime, err = stringOf(e.tag, v)
		case TagArtist:
			ifd.Artist, err = stringOf(e.tag, v)
		case TagHostComputer:
			ifd.HostComputer, err = stringOf(e.tag, v)
		case TagCopyright:
			ifd.Copyright, err = stringOf(e.tag, v)
		case TagColorMap:
			ifd.ColorMap, err = uint16sOf(e.tag, v)
			if err == nil && len(ifd.ColorMap)%3 != 0 {
				err = newFormatErrorf("ColorMap length %d is not a multiple of 3", len(ifd.ColorMap))
			}
		case TagJPEGTables:
			b, ok := v.([]byte)
			if !ok {
				err = newFormatErrorf("tag %s: unexpected value type %T", e.tag, v)
			}
			ifd.JPEGTables = b
		case TagModelPixelScale:
			ifd.ModelPixelScale, err = float64sOf(e.tag, v)
		case TagModelTiepoint:
			ifd.ModelTiepoint, err = float64sOf(e.tag, v)
		case TagModelTransformation:
			ifd.ModelTransformation, err = float64sOf(e.tag, v)
		case TagGeoKeyDirectory:
			geoShorts, err = uint16sOf(e.tag, v)
		case TagGeoDoubleParams:
			geoDoubles, err = float64sOf(e.tag, v)
		case TagGeoASCIIParams:
			geoASCII, err = stringOf(e.tag, v)
		case TagGDALMetadata:
			ifd.GDALMetadata, err = stringOf(e.tag, v)
		case TagGDALNoData:
			ifd.GDALNoData, err = stringOf(e.tag, v)
		default:
			if ifd.Other == nil {
				ifd.Other = make(map[Tag]any)
			}
			ifd.Other[e.tag] = v
		}

		if err != nil {
			return nil, err
		}
	}

	for _, s := range []*string{&ifd.DocumentName, &ifd.Software, &ifd.DateTime, &ifd.Artist, &ifd.HostComputer, &ifd.Copyright} {
		*s = printableString(*s)
	}

	if !hasPhotometric {
		warnf("missing photometric interpretation, assuming BlackIsZero")
		ifd.PhotometricInterpretation = PhotometricBlackIsZero
	}

	if geoShorts != nil {
		gkd, err := ParseGeoKeyDirectory(geoShorts, geoDoubles, geoASCII)
		if err != nil {
			return nil, err
		}
		ifd.GeoKeyDirectory = gkd
	}

	if err := ifd.normalize(); err != nil {
		return nil, err
	}

	return ifd, nil
}

// normalize fills in defaults and validates the invariants between fields.
func (ifd *IFD) normalize() error {
	if ifd.ImageWidth == 0 || ifd.ImageHeight == 0 {
		return newFormatErrorf("invalid image dimensions %dx%d", ifd.ImageWidth, ifd.ImageHeight)
	}
	if ifd.SamplesPerPixel == 0 {
		return newFormatErrorf("SamplesPerPixel is 0")
	}
	spp := int(ifd.SamplesPerPixel)

	if len(ifd.BitsPerSample) == 0 {
		ifd.BitsPerSample = []uint16{1}
	}
	if len(ifd.BitsPerSample) == 1 && spp > 1 {
		ifd.BitsPerSample = broadcast(ifd.BitsPerSample[0], spp)
	}
	if len(ifd.BitsPerSample) != spp {
		return newFormatErrorf("BitsPerSample has %d values, SamplesPerPixel is %d", len(ifd.BitsPerSample), spp)
	}
	for _, bits := range ifd.BitsPerSample {
		if bits == 0 || bits > 64 {
			return newFormatErrorf("invalid BitsPerSample %d", bits)
		}
	}

	if len(ifd.SampleFormat) == 0 {
		ifd.SampleFormat = []SampleFormat{SampleFormatUint}
	}
	if len(ifd.SampleFormat) == 1 && spp > 1 {
		ifd.SampleFormat = broadcast(ifd.SampleFormat[0], spp)
	}
	if len(ifd.SampleFormat) != spp {
		return newFormatErrorf("SampleFormat has %d values, SamplesPerPixel is %d", len(ifd.SampleFormat), spp)
	}

	if ifd.IsTiled() {
		if len(ifd.TileOffsets) == 0 {
			return newFormatErrorf("tiled image without TileOffsets")
		}
		return validateChunkTables(ifd.TileOffsets, ifd.TileByteCounts, ifd.chunkCount(), "Tile")
	}

	if ifd.TileWidth != 0 || ifd.TileHeight != 0 {
		return newFormatErrorf("invalid tile size %dx%d", ifd.TileWidth, ifd.TileHeight)
	}
	if len(ifd.StripOffsets) == 0 {
		return newFormatErrorf("image has neither strips nor tiles")
	}
	if ifd.RowsPerStrip == 0 || ifd.RowsPerStrip > ifd.ImageHeight {
		ifd.RowsPerStrip = ifd.ImageHeight
	}
	return validateChunkTables(ifd.StripOffsets, ifd.StripByteCounts, ifd.chunkCount(), "Strip")
}

func validateChunkTables(offsets, byteCounts []uint64, expected int, kind string) error {
	if len(offsets) != len(byteCounts) {
		return newFormatErrorf("%sOffsets has %d values, %sByteCounts has %d", kind, len(offsets), kind, len(byteCounts))
	}
	if len(offsets) != expected {
		return newFormatErrorf("%sOffsets has %d values, image geometry implies %d", kind, len(offsets), expected)
	}
	return nil
}

func broadcast[T any](v T, n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func setUint[T ~uint16 | ~uint32](dst *T, tag Tag, v any) error {
	u, err := uint64Of(tag, v)
	if err != nil {
		return err
	}
	if u > uint64(^T(0)) {
		return newFormatErrorf("tag %s: value %d out of range", tag, u)
	}
	*dst = T(u)
	return nil
}

func uint64Of(tag Tag, v any) (uint64, error) {
	u, ok := toUint64(v)
	if !ok {
		return 0, newFormatErrorf("tag %s: expected a single unsigned integer, got %T", tag, v)
	}
	return u, nil
}

func uint64sOf(tag Tag, v any) ([]uint64, error) {
	u, ok := toUint64s(v)
	if !ok {
		return nil, newFormatErrorf("tag %s: expected unsigned integers, got %T", tag, v)
	}
	return u, nil
}

func uint16sOf(tag Tag, v any) ([]uint16, error) {
	u, ok := toUint16s(v)
	if !ok {
		return nil, newFormatErrorf("tag %s: expected unsigned shorts, got %T", tag, v)
	}
	return u, nil
}

func float64Of(tag Tag, v any) (float64, error) {
	f, ok := toFloat64s(v)
	if !ok || len(f) != 1 {
		return 0, newFormatErrorf("tag %s: expected a single number, got %T", tag, v)
	}
	return f[0], nil
}

func float64sOf(tag Tag, v any) ([]float64, error) {
	f, ok := toFloat64s(v)
	if !ok {
		return nil, newFormatErrorf("tag %s: expected numbers, got %T", tag, v)
	}
	return f, nil
}

func stringOf(tag Tag, v any) (string, error) {
	s, ok := toStringValue(v)
	if !ok {
		return "", newFormatErrorf("tag %s: expected ASCII, got %T", tag, v)
	}
	return s, nil
}

// recoveredFormatError converts a recovered parser panic into an error.
func recoveredFormatError(r any) error {
	err, ok := r.(error)
	if !ok {
		return &FormatError{Msg: fmt.Sprintf("unknown panic: %v", r)}
	}
	if isFormatErrorCandidate(err) {
		return &FormatError{Msg: "corrupt data", Err: err}
	}
	return err
}
