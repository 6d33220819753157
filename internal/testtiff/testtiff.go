// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Package testtiff writes small TIFF files for tests.
package testtiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Field types.
const (
	TypeByte      = 1
	TypeASCII     = 2
	TypeShort     = 3
	TypeLong      = 4
	TypeRational  = 5
	TypeUndefined = 7
	TypeDouble    = 12
	TypeLong8     = 16
)

// Field is a tag to write.
//
// Values may be []uint16, []uint32, []uint64, []float64, []byte or string.
// If Raw is set it is written as-is with Type and Count.
type Field struct {
	Tag    uint16
	Values any

	Type  uint16
	Count uint64
	Raw   []byte
}

// Image describes one IFD.
type Image struct {
	Width, Height         int
	TileWidth, TileHeight int // Zero for stripped images.
	RowsPerStrip          int
	SamplesPerPixel       int // Default 1.
	BitsPerSample         int // Default 8.
	SampleFormat          int // Default 1 (unsigned).
	Photometric           int // Default 1 (BlackIsZero).
	Planar                int // Default 1 (chunky).
	Compression           int // Default 1 (none).
	Predictor             int
	SubfileType           int

	// Chunks are the stored tiles or strips in index order.
	// A nil chunk is written with offset and byte count 0.
	Chunks [][]byte

	ColorMap     []uint16
	GeoKeys      []uint16
	GeoDoubles   []float64
	GeoASCII     string
	PixelScale   []float64
	Tiepoint     []float64
	NoData       string
	GDALMetadata string
	Description  string
	Software     string

	// Extra fields, written after the ones above.
	Extra []Field
}

// Options for Encode.
type Options struct {
	ByteOrder ByteOrder // Default little endian.
	BigTIFF   bool

	// Cyclic makes the last IFD point back to the first.
	Cyclic bool
}

// ByteOrder is satisfied by binary.LittleEndian and binary.BigEndian.
type ByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

type writer struct {
	buf     bytes.Buffer
	order   ByteOrder
	bigTIFF bool
}

func (w *writer) u16(v uint16) { w.buf.Write(w.order.AppendUint16(nil, v)) }
func (w *writer) u32(v uint32) { w.buf.Write(w.order.AppendUint32(nil, v)) }
func (w *writer) u64(v uint64) { w.buf.Write(w.order.AppendUint64(nil, v)) }

func (w *writer) offset(v uint64) {
	if w.bigTIFF {
		w.u64(v)
	} else {
		w.u32(uint32(v))
	}
}

func (w *writer) putOffsetAt(pos int, v uint64) {
	b := w.buf.Bytes()
	if w.bigTIFF {
		w.order.PutUint64(b[pos:], v)
	} else {
		w.order.PutUint32(b[pos:], uint32(v))
	}
}

func (w *writer) align() {
	if w.buf.Len()%2 == 1 {
		w.buf.WriteByte(0)
	}
}

// Encode writes images as a TIFF file.
func Encode(opts Options, images ...Image) []byte {
	if opts.ByteOrder == nil {
		opts.ByteOrder = binary.LittleEndian
	}
	w := &writer{order: opts.ByteOrder, bigTIFF: opts.BigTIFF}

	if opts.ByteOrder == binary.BigEndian {
		w.buf.WriteString("MM")
	} else {
		w.buf.WriteString("II")
	}
	var nextPos int
	if opts.BigTIFF {
		w.u16(43)
		w.u16(8)
		w.u16(0)
		nextPos = w.buf.Len()
		w.u64(0)
	} else {
		w.u16(42)
		nextPos = w.buf.Len()
		w.u32(0)
	}

	var first uint64
	for _, img := range images {
		ifdOffset := w.writeImage(img)
		if first == 0 {
			first = ifdOffset
		}
		w.putOffsetAt(nextPos, ifdOffset)
		nextPos = w.buf.Len() - w.offsetSize()
	}
	if opts.Cyclic {
		w.putOffsetAt(nextPos, first)
	}

	return w.buf.Bytes()
}

func (w *writer) offsetSize() int {
	if w.bigTIFF {
		return 8
	}
	return 4
}

func (img *Image) defaults() {
	if img.SamplesPerPixel == 0 {
		img.SamplesPerPixel = 1
	}
	if img.BitsPerSample == 0 {
		img.BitsPerSample = 8
	}
	if img.SampleFormat == 0 {
		img.SampleFormat = 1
	}
	if img.Photometric == 0 {
		img.Photometric = 1
	}
	if img.Planar == 0 {
		img.Planar = 1
	}
	if img.Compression == 0 {
		img.Compression = 1
	}
	if img.TileWidth == 0 && img.RowsPerStrip == 0 {
		img.RowsPerStrip = img.Height
	}
}

func repeat16(v, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = uint16(v)
	}
	return out
}

// writeImage writes the chunks, the out-of-line values and the IFD of img,
// returning the IFD offset. The IFD's next pointer is left at 0.
func (w *writer) writeImage(img Image) uint64 {
	img.defaults()

	offsets := make([]uint64, len(img.Chunks))
	counts := make([]uint64, len(img.Chunks))
	for i, c := range img.Chunks {
		if c == nil {
			// Sparse.
			continue
		}
		w.align()
		offsets[i] = uint64(w.buf.Len())
		counts[i] = uint64(len(c))
		w.buf.Write(c)
	}

	offsetField := func(tag uint16, v []uint64) Field {
		if w.bigTIFF {
			return Field{Tag: tag, Values: v}
		}
		v32 := make([]uint32, len(v))
		for i, x := range v {
			v32[i] = uint32(x)
		}
		return Field{Tag: tag, Values: v32}
	}

	spp := img.SamplesPerPixel
	fields := []Field{
		{Tag: 256, Values: []uint32{uint32(img.Width)}},
		{Tag: 257, Values: []uint32{uint32(img.Height)}},
		{Tag: 258, Values: repeat16(img.BitsPerSample, spp)},
		{Tag: 259, Values: []uint16{uint16(img.Compression)}},
		{Tag: 262, Values: []uint16{uint16(img.Photometric)}},
		{Tag: 277, Values: []uint16{uint16(spp)}},
		{Tag: 284, Values: []uint16{uint16(img.Planar)}},
		{Tag: 339, Values: repeat16(img.SampleFormat, spp)},
	}
	if img.SubfileType != 0 {
		fields = append(fields, Field{Tag: 254, Values: []uint32{uint32(img.SubfileType)}})
	}
	if img.Predictor != 0 {
		fields = append(fields, Field{Tag: 317, Values: []uint16{uint16(img.Predictor)}})
	}
	if img.TileWidth > 0 {
		fields = append(fields,
			Field{Tag: 322, Values: []uint32{uint32(img.TileWidth)}},
			Field{Tag: 323, Values: []uint32{uint32(img.TileHeight)}},
			offsetField(324, offsets),
			offsetField(325, counts),
		)
	} else {
		fields = append(fields,
			Field{Tag: 278, Values: []uint32{uint32(img.RowsPerStrip)}},
			offsetField(273, offsets),
			offsetField(279, counts),
		)
	}
	if img.Description != "" {
		fields = append(fields, Field{Tag: 270, Values: img.Description})
	}
	if img.Software != "" {
		fields = append(fields, Field{Tag: 305, Values: img.Software})
	}
	if img.ColorMap != nil {
		fields = append(fields, Field{Tag: 320, Values: img.ColorMap})
	}
	if img.PixelScale != nil {
		fields = append(fields, Field{Tag: 33550, Values: img.PixelScale})
	}
	if img.Tiepoint != nil {
		fields = append(fields, Field{Tag: 33922, Values: img.Tiepoint})
	}
	if img.GeoKeys != nil {
		fields = append(fields, Field{Tag: 34735, Values: img.GeoKeys})
	}
	if img.GeoDoubles != nil {
		fields = append(fields, Field{Tag: 34736, Values: img.GeoDoubles})
	}
	if img.GeoASCII != "" {
		fields = append(fields, Field{Tag: 34737, Values: img.GeoASCII})
	}
	if img.GDALMetadata != "" {
		fields = append(fields, Field{Tag: 42112, Values: img.GDALMetadata})
	}
	if img.NoData != "" {
		fields = append(fields, Field{Tag: 42113, Values: img.NoData})
	}
	fields = append(fields, img.Extra...)

	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Tag < fields[j].Tag })

	type encoded struct {
		typ   uint16
		count uint64
		data  []byte
	}
	encs := make([]encoded, len(fields))
	for i, f := range fields {
		typ, count, data := w.encodeField(f)
		encs[i] = encoded{typ, count, data}
	}

	// Out-of-line values.
	inline := uint64(w.offsetSize())
	valueOffsets := make([]uint64, len(encs))
	for i, e := range encs {
		if uint64(len(e.data)) > inline {
			w.align()
			valueOffsets[i] = uint64(w.buf.Len())
			w.buf.Write(e.data)
		}
	}

	w.align()
	ifdOffset := uint64(w.buf.Len())
	if w.bigTIFF {
		w.u64(uint64(len(encs)))
	} else {
		w.u16(uint16(len(encs)))
	}
	for i, e := range encs {
		w.u16(fields[i].Tag)
		w.u16(e.typ)
		w.offset(e.count)
		if uint64(len(e.data)) > inline {
			w.offset(valueOffsets[i])
		} else {
			field := make([]byte, inline)
			copy(field, e.data)
			w.buf.Write(field)
		}
	}
	w.offset(0)

	return ifdOffset
}

func (w *writer) encodeField(f Field) (typ uint16, count uint64, data []byte) {
	if f.Raw != nil || f.Values == nil {
		return f.Type, f.Count, f.Raw
	}
	o := w.order
	switch v := f.Values.(type) {
	case []uint16:
		for _, x := range v {
			data = o.AppendUint16(data, x)
		}
		return TypeShort, uint64(len(v)), data
	case []uint32:
		for _, x := range v {
			data = o.AppendUint32(data, x)
		}
		return TypeLong, uint64(len(v)), data
	case []uint64:
		for _, x := range v {
			data = o.AppendUint64(data, x)
		}
		return TypeLong8, uint64(len(v)), data
	case []float64:
		for _, x := range v {
			data = o.AppendUint64(data, math.Float64bits(x))
		}
		return TypeDouble, uint64(len(v)), data
	case []byte:
		return TypeUndefined, uint64(len(v)), v
	case string:
		data = append([]byte(v), 0)
		return TypeASCII, uint64(len(data)), data
	default:
		panic(fmt.Sprintf("testtiff: unsupported field value %T", f.Values))
	}
}

// Tiles splits a chunky image of bytesPerPixel bytes per pixel into tiles,
// padding edge tiles with zeros.
func Tiles(img []byte, width, height, tileWidth, tileHeight, bytesPerPixel int) [][]byte {
	across := (width + tileWidth - 1) / tileWidth
	down := (height + tileHeight - 1) / tileHeight
	var tiles [][]byte
	for ty := range down {
		for tx := range across {
			tile := make([]byte, tileWidth*tileHeight*bytesPerPixel)
			for y := range tileHeight {
				iy := ty*tileHeight + y
				if iy >= height {
					break
				}
				for x := range tileWidth {
					ix := tx*tileWidth + x
					if ix >= width {
						break
					}
					src := (iy*width + ix) * bytesPerPixel
					dst := (y*tileWidth + x) * bytesPerPixel
					copy(tile[dst:dst+bytesPerPixel], img[src:src+bytesPerPixel])
				}
			}
			tiles = append(tiles, tile)
		}
	}
	return tiles
}

// Strips splits an image into strips of rowsPerStrip rows.
// The last strip holds only the remaining rows.
func Strips(img []byte, width, height, rowsPerStrip, bytesPerPixel int) [][]byte {
	rowLen := width * bytesPerPixel
	var strips [][]byte
	for y := 0; y < height; y += rowsPerStrip {
		end := min(y+rowsPerStrip, height)
		strips = append(strips, bytes.Clone(img[y*rowLen:end*rowLen]))
	}
	return strips
}

// Gradient returns a width*height*samples image with 8-bit sample values
// (x + y*width + s) mod 256.
func Gradient(width, height, samples int) []byte {
	out := make([]byte, width*height*samples)
	for y := range height {
		for x := range width {
			for s := range samples {
				out[(y*width+x)*samples+s] = byte(x + y*width + s)
			}
		}
	}
	return out
}

// GeoKeys builds a GeoKeyDirectory tag value from (key, location, count, value) tuples.
func GeoKeys(entries ...[4]uint16) []uint16 {
	out := []uint16{1, 1, 0, uint16(len(entries))}
	for _, e := range entries {
		out = append(out, e[:]...)
	}
	return out
}
