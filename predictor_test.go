// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"encoding/binary"
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestRowBytes(t *testing.T) {
	c := qt.New(t)
	c.Assert(rowBytes(10, 1, 1), qt.Equals, 2)
	c.Assert(rowBytes(8, 1, 1), qt.Equals, 1)
	c.Assert(rowBytes(3, 3, 16), qt.Equals, 18)
}

func TestSwapToLittleEndian(t *testing.T) {
	c := qt.New(t)
	b := []byte{0x01, 0x02, 0x03, 0x04}
	swapToLittleEndian(b, 2, binary.BigEndian)
	c.Assert(b, qt.DeepEquals, []byte{0x02, 0x01, 0x04, 0x03})

	swapToLittleEndian(b, 2, binary.LittleEndian)
	c.Assert(b, qt.DeepEquals, []byte{0x02, 0x01, 0x04, 0x03})

	b = []byte{1, 2, 3, 4}
	swapToLittleEndian(b, 4, binary.BigEndian)
	c.Assert(b, qt.DeepEquals, []byte{4, 3, 2, 1})
}

func TestUndoHorizontal(t *testing.T) {
	c := qt.New(t)

	c.Run("8 bit RGB", func(c *qt.C) {
		// Two rows of two pixels.
		b := []byte{
			10, 20, 30, 1, 2, 3,
			0, 0, 0, 255, 1, 0,
		}
		c.Assert(undoHorizontal(b, 2, 2, 3, 8), qt.IsNil)
		c.Assert(b, qt.DeepEquals, []byte{
			10, 20, 30, 11, 22, 33,
			0, 0, 0, 255, 1, 0,
		})
	})

	c.Run("16 bit", func(c *qt.C) {
		le := binary.LittleEndian
		var b []byte
		for _, v := range []uint16{1000, 1, 1, 65535} {
			b = le.AppendUint16(b, v)
		}
		c.Assert(undoHorizontal(b, 4, 1, 1, 16), qt.IsNil)
		var got []uint16
		for i := 0; i < len(b); i += 2 {
			got = append(got, le.Uint16(b[i:]))
		}
		c.Assert(got, qt.DeepEquals, []uint16{1000, 1001, 1002, 1001})
	})

	c.Run("Unsupported", func(c *qt.C) {
		c.Assert(undoHorizontal(make([]byte, 4), 4, 1, 1, 12), qt.ErrorMatches, ".*12 bits per sample")
	})
}

// encodeFloatingPoint applies the floating point predictor to little endian
// float32 samples, one row.
func encodeFloatingPoint(vals []float32) []byte {
	n := len(vals)
	planes := make([]byte, n*4)
	for i, v := range vals {
		bits := math.Float32bits(v)
		for k := range 4 {
			// Most significant byte first.
			planes[k*n+i] = byte(bits >> (24 - 8*k))
		}
	}
	for i := len(planes) - 1; i > 0; i-- {
		planes[i] -= planes[i-1]
	}
	return planes
}

func TestUndoFloatingPoint(t *testing.T) {
	c := qt.New(t)
	vals := []float32{1.5, -2.25, 1e10, 0}
	b := encodeFloatingPoint(vals)
	c.Assert(undoFloatingPoint(b, len(vals), 1, 1, 32), qt.IsNil)

	for i, want := range vals {
		got := math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
		c.Assert(got, qt.Equals, want)
	}

	c.Assert(undoFloatingPoint(b, 4, 1, 1, 8), qt.ErrorMatches, ".*8 bits per sample")
}

func TestUnpackBits(t *testing.T) {
	c := qt.New(t)
	// 10 pixels per row, rows padded to 2 bytes.
	b := []byte{
		0b10110000, 0b01000000,
		0xff, 0xff,
	}
	got := unpackBits(b, 10, 2, 1)
	c.Assert(got, qt.DeepEquals, []byte{
		1, 0, 1, 1, 0, 0, 0, 0, 0, 1,
		1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	})
}

func TestDecodePackBits(t *testing.T) {
	c := qt.New(t)
	// The example from the TIFF 6.0 specification.
	in := []byte{0xfe, 0xaa, 0x02, 0x80, 0x00, 0x2a, 0xfd, 0xaa, 0x03, 0x80, 0x00, 0x2a, 0x22, 0xf7, 0xaa}
	want := []byte{0xaa, 0xaa, 0xaa, 0x80, 0x00, 0x2a, 0xaa, 0xaa, 0xaa, 0xaa, 0x80, 0x00, 0x2a, 0x22, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}
	got, err := decodePackBits(in, DecodeInfo{ExpectedLength: len(want)})
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, want)

	_, err = decodePackBits([]byte{0x05, 0x01}, DecodeInfo{})
	c.Assert(err, qt.ErrorMatches, "packbits: literal run past end of input")
	_, err = decodePackBits([]byte{0xfe}, DecodeInfo{})
	c.Assert(err, qt.ErrorMatches, "packbits: repeat run past end of input")
}

func TestSpliceJPEGTables(t *testing.T) {
	c := qt.New(t)
	tables := []byte{0xff, 0xd8, 0xff, 0xdb, 0x01, 0xff, 0xd9}
	tile := []byte{0xff, 0xd8, 0xff, 0xda, 0x02, 0xff, 0xd9}
	c.Assert(spliceJPEGTables(tables, tile), qt.DeepEquals, []byte{0xff, 0xd8, 0xff, 0xdb, 0x01, 0xff, 0xda, 0x02, 0xff, 0xd9})
	c.Assert(spliceJPEGTables(nil, tile), qt.DeepEquals, tile)
}
