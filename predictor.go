// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"encoding/binary"
	"fmt"
)

// rowBytes returns the number of bytes in one stored row.
// Rows of samples narrower than a byte are padded to a byte boundary.
func rowBytes(width, samples, bitsPerSample int) int {
	return (width*samples*bitsPerSample + 7) / 8
}

// swapToLittleEndian converts samples of the given byte width from
// big endian to little endian in place.
func swapToLittleEndian(b []byte, bytesPerSample int, byteOrder binary.ByteOrder) {
	if byteOrder != binary.BigEndian || bytesPerSample < 2 {
		return
	}
	for i := 0; i+bytesPerSample <= len(b); i += bytesPerSample {
		s := b[i : i+bytesPerSample]
		for l, r := 0, len(s)-1; l < r; l, r = l+1, r-1 {
			s[l], s[r] = s[r], s[l]
		}
	}
}

// undoHorizontal reverses horizontal differencing on little endian samples.
func undoHorizontal(b []byte, width, rows, samples, bitsPerSample int) error {
	stride := width * samples
	switch bitsPerSample {
	case 8:
		for y := range rows {
			row := b[y*stride : (y+1)*stride]
			for i := samples; i < len(row); i++ {
				row[i] += row[i-samples]
			}
		}
	case 16:
		le := binary.LittleEndian
		for y := range rows {
			row := b[y*stride*2 : (y+1)*stride*2]
			for i := samples; i < stride; i++ {
				le.PutUint16(row[i*2:], le.Uint16(row[i*2:])+le.Uint16(row[(i-samples)*2:]))
			}
		}
	case 32:
		le := binary.LittleEndian
		for y := range rows {
			row := b[y*stride*4 : (y+1)*stride*4]
			for i := samples; i < stride; i++ {
				le.PutUint32(row[i*4:], le.Uint32(row[i*4:])+le.Uint32(row[(i-samples)*4:]))
			}
		}
	case 64:
		le := binary.LittleEndian
		for y := range rows {
			row := b[y*stride*8 : (y+1)*stride*8]
			for i := samples; i < stride; i++ {
				le.PutUint64(row[i*8:], le.Uint64(row[i*8:])+le.Uint64(row[(i-samples)*8:]))
			}
		}
	default:
		return fmt.Errorf("horizontal predictor with %d bits per sample", bitsPerSample)
	}
	return nil
}

// undoFloatingPoint reverses the floating point predictor.
//
// Each row is stored as byte planes, most significant byte first, with the
// bytes differenced across the row. The result is written as little endian
// samples.
func undoFloatingPoint(b []byte, width, rows, samples, bitsPerSample int) error {
	if bitsPerSample != 16 && bitsPerSample != 32 && bitsPerSample != 64 {
		return fmt.Errorf("floating point predictor with %d bits per sample", bitsPerSample)
	}
	size := bitsPerSample / 8
	count := width * samples
	rowLen := count * size
	tmp := make([]byte, rowLen)

	for y := range rows {
		row := b[y*rowLen : (y+1)*rowLen]
		for i := samples; i < rowLen; i++ {
			row[i] += row[i-samples]
		}
		copy(tmp, row)
		for i := range count {
			for k := range size {
				row[i*size+size-1-k] = tmp[k*count+i]
			}
		}
	}
	return nil
}

// unpackBits expands 1-bit samples, most significant bit first, to one
// byte per sample. Each stored row is padded to a byte boundary.
func unpackBits(b []byte, width, rows, samples int) []byte {
	n := width * samples
	stride := rowBytes(width, samples, 1)
	out := make([]byte, n*rows)
	for y := range rows {
		row := b[y*stride:]
		for i := range n {
			out[y*n+i] = (row[i/8] >> (7 - uint(i%8))) & 1
		}
	}
	return out
}
