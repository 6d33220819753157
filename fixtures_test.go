// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"

	"github.com/bep/asynctiff"
	"github.com/bep/asynctiff/internal/testtiff"
	"github.com/bep/asynctiff/store"
	qt "github.com/frankban/quicktest"
	"github.com/klauspost/compress/zlib"
)

const testPath = "test.tif"

const (
	geoWidth, geoHeight = 100, 70
	geoTileSize         = 32
	geoCitation         = "WGS 84 / UTM zone 33N"
	geoEPSG             = 32633
)

// geoImage returns a 3 band, tiled, uncompressed GeoTIFF image.
func geoImage() testtiff.Image {
	pix := testtiff.Gradient(geoWidth, geoHeight, 3)
	ascii := geoCitation + "|"
	return testtiff.Image{
		Width:           geoWidth,
		Height:          geoHeight,
		TileWidth:       geoTileSize,
		TileHeight:      geoTileSize,
		SamplesPerPixel: 3,
		Photometric:     2,
		Chunks:          testtiff.Tiles(pix, geoWidth, geoHeight, geoTileSize, geoTileSize, 3),
		GeoKeys: testtiff.GeoKeys(
			[4]uint16{1024, 0, 1, 1},
			[4]uint16{1025, 0, 1, 1},
			[4]uint16{1026, 34737, uint16(len(ascii)), 0},
			[4]uint16{3072, 0, 1, geoEPSG},
		),
		GeoASCII:     ascii,
		PixelScale:   []float64{10, 10, 0},
		Tiepoint:     []float64{0, 0, 0, 500000, 6000000, 0},
		NoData:       "0",
		GDALMetadata: `<GDALMetadata><Item name="AREA_OR_POINT">Area</Item><Item name="STATISTICS_MEAN" sample="0">127.5</Item></GDALMetadata>`,
		Description:  "asynctiff test image",
	}
}

// overviewImage returns a half resolution overview of geoImage.
func overviewImage() testtiff.Image {
	w, h := geoWidth/2, geoHeight/2
	return testtiff.Image{
		Width:           w,
		Height:          h,
		TileWidth:       geoTileSize,
		TileHeight:      geoTileSize,
		SamplesPerPixel: 3,
		Photometric:     2,
		SubfileType:     1,
		Chunks:          testtiff.Tiles(testtiff.Gradient(w, h, 3), w, h, geoTileSize, geoTileSize, 3),
	}
}

// maskImage returns a 1-bit transparency mask with all pixels set.
func maskImage(width, height, tileSize int) testtiff.Image {
	across := (width + tileSize - 1) / tileSize
	down := (height + tileSize - 1) / tileSize
	tileBytes := (tileSize + 7) / 8 * tileSize
	chunks := make([][]byte, across*down)
	for i := range chunks {
		chunks[i] = bytes.Repeat([]byte{0xff}, tileBytes)
	}
	return testtiff.Image{
		Width:         width,
		Height:        height,
		TileWidth:     tileSize,
		TileHeight:    tileSize,
		BitsPerSample: 1,
		Photometric:   4,
		SubfileType:   4,
		Chunks:        chunks,
	}
}

func newSource(b []byte) *store.Memory {
	mem := store.NewMemory()
	mem.Put(testPath, b)
	return mem
}

// openTIFF opens b from a memory source.
// opts.Source and opts.Path are set if empty.
func openTIFF(c *qt.C, b []byte, opts asynctiff.Options) (*asynctiff.TIFF, *store.Memory) {
	c.Helper()
	mem := newSource(b)
	if opts.Source == nil {
		opts.Source = mem
	}
	if opts.Path == "" {
		opts.Path = testPath
	}
	tf, err := asynctiff.Open(context.Background(), opts)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { tf.Close() })
	return tf, mem
}

func decodeTile(c *qt.C, tf *asynctiff.TIFF, col, row, ifd int) *asynctiff.Array {
	c.Helper()
	tile, err := tf.FetchTile(col, row, ifd)
	c.Assert(err, qt.IsNil)
	arr, err := tile.Decode(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(tile.State(), qt.Equals, asynctiff.TileDecoded)
	return arr
}

// expectedTile crops the chunky image pix to the given tile.
func expectedTile(pix []byte, width, height, tileWidth, tileHeight, bytesPerPixel, col, row int) []byte {
	var out []byte
	x0, y0 := col*tileWidth, row*tileHeight
	x1, y1 := min(x0+tileWidth, width), min(y0+tileHeight, height)
	for y := y0; y < y1; y++ {
		out = append(out, pix[(y*width+x0)*bytesPerPixel:(y*width+x1)*bytesPerPixel]...)
	}
	return out
}

func deflate(c *qt.C, b []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(b)
	c.Assert(err, qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)
	return buf.Bytes()
}

// packBitsLiteral encodes b as PackBits literal runs.
func packBitsLiteral(b []byte) []byte {
	var out []byte
	for len(b) > 0 {
		n := min(len(b), 128)
		out = append(out, byte(n-1))
		out = append(out, b[:n]...)
		b = b[n:]
	}
	return out
}

// lzwLiteral encodes b as TIFF LZW, emitting a clear code before every
// literal so the code width stays at 9 bits.
func lzwLiteral(b []byte) []byte {
	var (
		out   []byte
		acc   uint32
		nbits uint
	)
	write := func(code uint32) {
		acc = acc<<9 | code
		nbits += 9
		for nbits >= 8 {
			out = append(out, byte(acc>>(nbits-8)))
			nbits -= 8
		}
	}
	for _, x := range b {
		write(256)
		write(uint32(x))
	}
	write(257)
	if nbits > 0 {
		out = append(out, byte(acc<<(8-nbits)))
	}
	return out
}

// uint16Image returns width*height samples (x*7 + y*1000 + s) in the given byte order.
func uint16Image(width, height, samples int, order binary.AppendByteOrder) ([]uint16, []byte) {
	vals := make([]uint16, 0, width*height*samples)
	for y := range height {
		for x := range width {
			for s := range samples {
				vals = append(vals, uint16(x*7+y*1000+s))
			}
		}
	}
	var b []byte
	for _, v := range vals {
		b = order.AppendUint16(b, v)
	}
	return vals, b
}

// horizontalDiff16 applies the horizontal predictor to little endian 16-bit rows.
func horizontalDiff16(b []byte, width, samples int) []byte {
	out := bytes.Clone(b)
	stride := width * samples * 2
	le := binary.LittleEndian
	for y := 0; y*stride < len(out); y++ {
		row := out[y*stride : (y+1)*stride]
		for i := width*samples - 1; i >= samples; i-- {
			le.PutUint16(row[i*2:], le.Uint16(row[i*2:])-le.Uint16(row[(i-samples)*2:]))
		}
	}
	return out
}

// floatPredict applies the floating point predictor to rows of float32 samples.
func floatPredict(vals []float32, width int) []byte {
	var out []byte
	for y := 0; y*width < len(vals); y++ {
		row := vals[y*width : (y+1)*width]
		planes := make([]byte, width*4)
		for i, v := range row {
			bits := math.Float32bits(v)
			for k := range 4 {
				planes[k*width+i] = byte(bits >> (24 - 8*k))
			}
		}
		for i := len(planes) - 1; i > 0; i-- {
			planes[i] -= planes[i-1]
		}
		out = append(out, planes...)
	}
	return out
}
