// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/image/tiff/lzw"
)

func builtinDecoders() map[Compression]Decoder {
	return map[Compression]Decoder{
		CompressionNone:       DecoderFunc(decodeNone),
		CompressionLZW:        DecoderFunc(decodeLZW),
		CompressionDeflate:    DecoderFunc(decodeDeflate),
		CompressionOldDeflate: DecoderFunc(decodeDeflate),
		CompressionPackBits:   DecoderFunc(decodePackBits),
		CompressionZSTD:       DecoderFunc(decodeZSTD),
		CompressionModernJPEG: DecoderFunc(decodeJPEG),
	}
}

func decodeNone(b []byte, info DecodeInfo) ([]byte, error) {
	return bytes.Clone(b), nil
}

func decodeLZW(b []byte, info DecodeInfo) ([]byte, error) {
	r := lzw.NewReader(bytes.NewReader(b), lzw.MSB, 8)
	defer r.Close()
	return readExpected(r, info.ExpectedLength)
}

func decodeDeflate(b []byte, info DecodeInfo) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readExpected(r, info.ExpectedLength)
}

// readExpected reads the expected number of bytes from r.
// Streams that end early return what was read; the caller validates the length.
// A stream with more data fails. A missing end of stream marker after the
// expected bytes is accepted.
func readExpected(r io.Reader, expected int) ([]byte, error) {
	if expected <= 0 {
		return io.ReadAll(r)
	}
	out := make([]byte, expected)
	n, err := io.ReadFull(r, out)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return out[:n], nil
		}
		return nil, err
	}
	extra, err := io.Copy(io.Discard, r)
	if extra > 0 {
		return nil, overlongError(expected, extra)
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return out, nil
}

func overlongError(expected int, extra int64) error {
	return &DecodeError{Msg: fmt.Sprintf("decompressed to %d bytes, expected %d", int64(expected)+extra, expected)}
}

// decodePackBits decodes the Apple PackBits run length encoding.
func decodePackBits(b []byte, info DecodeInfo) ([]byte, error) {
	out := make([]byte, 0, max(info.ExpectedLength, 0))
	for i := 0; i < len(b); {
		n := int(int8(b[i]))
		i++
		switch {
		case n >= 0:
			// Copy the next n+1 bytes literally.
			end := i + n + 1
			if end > len(b) {
				return nil, errors.New("packbits: literal run past end of input")
			}
			out = append(out, b[i:end]...)
			i = end
		case n > -128:
			// Repeat the next byte 1-n times.
			if i >= len(b) {
				return nil, errors.New("packbits: repeat run past end of input")
			}
			for range 1 - n {
				out = append(out, b[i])
			}
			i++
		default:
			// -128 is a no-op.
		}
	}
	if info.ExpectedLength > 0 && len(out) > info.ExpectedLength {
		return nil, overlongError(info.ExpectedLength, int64(len(out)-info.ExpectedLength))
	}
	return out, nil
}

var zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
})

func decodeZSTD(b []byte, info DecodeInfo) ([]byte, error) {
	dec, err := zstdDecoder()
	if err != nil {
		return nil, err
	}
	return dec.DecodeAll(b, make([]byte, 0, max(info.ExpectedLength, 0)))
}

var (
	jpegSOI = []byte{0xff, 0xd8}
	jpegEOI = []byte{0xff, 0xd9}
)

// spliceJPEGTables inserts the quantization and Huffman tables shared by all
// tiles in front of the tile's own stream.
func spliceJPEGTables(tables, b []byte) []byte {
	if len(tables) < 4 || !bytes.HasPrefix(b, jpegSOI) {
		return b
	}
	tables = bytes.TrimSuffix(tables, jpegEOI)
	out := make([]byte, 0, len(tables)+len(b))
	out = append(out, tables...)
	return append(out, b[len(jpegSOI):]...)
}

func decodeJPEG(b []byte, info DecodeInfo) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(spliceJPEGTables(info.JPEGTables, b)))
	if err != nil {
		return nil, err
	}

	w, h := info.Width, info.Height
	bounds := img.Bounds()
	if w <= 0 || h <= 0 {
		w, h = bounds.Dx(), bounds.Dy()
	}

	switch m := img.(type) {
	case *image.Gray:
		if info.SamplesPerPixel != 1 {
			return nil, fmt.Errorf("jpeg: grayscale image for %d samples per pixel", info.SamplesPerPixel)
		}
		out := make([]byte, w*h)
		for y := 0; y < min(h, bounds.Dy()); y++ {
			copy(out[y*w:y*w+min(w, bounds.Dx())], m.Pix[y*m.Stride:])
		}
		return out, nil
	case *image.YCbCr:
		if info.SamplesPerPixel != 3 {
			return nil, fmt.Errorf("jpeg: color image for %d samples per pixel", info.SamplesPerPixel)
		}
		out := make([]byte, w*h*3)
		for y := 0; y < min(h, bounds.Dy()); y++ {
			for x := 0; x < min(w, bounds.Dx()); x++ {
				c := m.YCbCrAt(bounds.Min.X+x, bounds.Min.Y+y)
				i := (y*w + x) * 3
				out[i], out[i+1], out[i+2] = color.YCbCrToRGB(c.Y, c.Cb, c.Cr)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("jpeg: unsupported color model %T", img)
	}
}
