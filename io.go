// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"encoding/binary"
)

const (
	byteOrderBigEndian    = 0x4d4d
	byteOrderLittleEndian = 0x4949

	magicClassic = 42
	magicBigTIFF = 43
)

// cursor is a wrapper around a fetched buffer that provides methods to read binary data.
// Reads past the end of the buffer panic with errShortRead, which the
// parser entry points recover into a FormatError.
// Note that this is not thread safe.
type cursor struct {
	b         []byte
	pos       int
	byteOrder binary.ByteOrder
	bigTIFF   bool
}

func newCursor(b []byte, byteOrder binary.ByteOrder, bigTIFF bool) *cursor {
	return &cursor{b: b, byteOrder: byteOrder, bigTIFF: bigTIFF}
}

// offsetSize is the size in bytes of offsets and counts in the file variant.
func (c *cursor) offsetSize() int {
	if c.bigTIFF {
		return 8
	}
	return 4
}

func (c *cursor) next(n int) []byte {
	if n < 0 || c.pos+n > len(c.b) {
		panic(errShortRead)
	}
	b := c.b[c.pos : c.pos+n]
	c.pos += n
	return b
}

func (c *cursor) read2() uint16 {
	return c.byteOrder.Uint16(c.next(2))
}

func (c *cursor) read4() uint32 {
	return c.byteOrder.Uint32(c.next(4))
}

func (c *cursor) read8() uint64 {
	return c.byteOrder.Uint64(c.next(8))
}

// readOffset reads a 4 or 8 byte offset or count depending on the variant.
func (c *cursor) readOffset() uint64 {
	if c.bigTIFF {
		return c.read8()
	}
	return uint64(c.read4())
}

// readBytesVolatile returns the next n bytes.
// The slice shares memory with the underlying buffer.
func (c *cursor) readBytesVolatile(n int) []byte {
	return c.next(n)
}

// header is the parsed file header.
type header struct {
	byteOrder      binary.ByteOrder
	bigTIFF        bool
	firstIFDOffset uint64
}

// headerSize is the number of bytes needed to parse any header variant.
const headerSize = 16

// parseHeader parses a classic or BigTIFF header from b.
func parseHeader(b []byte) (header, error) {
	var h header
	if len(b) < 8 {
		return h, newFormatErrorf("file too short for a TIFF header: %d bytes", len(b))
	}

	switch binary.BigEndian.Uint16(b[:2]) {
	case byteOrderBigEndian:
		h.byteOrder = binary.BigEndian
	case byteOrderLittleEndian:
		h.byteOrder = binary.LittleEndian
	default:
		return h, newFormatErrorf("invalid byte order marker %q", b[:2])
	}

	switch magic := h.byteOrder.Uint16(b[2:4]); magic {
	case magicClassic:
		h.firstIFDOffset = uint64(h.byteOrder.Uint32(b[4:8]))
	case magicBigTIFF:
		if len(b) < headerSize {
			return h, newFormatErrorf("file too short for a BigTIFF header: %d bytes", len(b))
		}
		offsetSize := h.byteOrder.Uint16(b[4:6])
		reserved := h.byteOrder.Uint16(b[6:8])
		if offsetSize != 8 || reserved != 0 {
			return h, newFormatErrorf("invalid BigTIFF header: offsetSize=%d, reserved=%d", offsetSize, reserved)
		}
		h.bigTIFF = true
		h.firstIFDOffset = h.byteOrder.Uint64(b[8:16])
	default:
		return h, newFormatErrorf("invalid magic number %d", magic)
	}

	if h.firstIFDOffset == 0 {
		return h, newFormatErrorf("no IFD in file")
	}

	return h, nil
}
