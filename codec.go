// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// tagType represents the basic TIFF field data types.
type tagType uint16

const (
	tagTypeByte      tagType = 1
	tagTypeASCII     tagType = 2
	tagTypeShort     tagType = 3
	tagTypeLong      tagType = 4
	tagTypeRational  tagType = 5
	tagTypeSByte     tagType = 6
	tagTypeUndefined tagType = 7
	tagTypeSShort    tagType = 8
	tagTypeSLong     tagType = 9
	tagTypeSRational tagType = 10
	tagTypeFloat     tagType = 11
	tagTypeDouble    tagType = 12
	tagTypeIFD       tagType = 13
	tagTypeLong8     tagType = 16
	tagTypeSLong8    tagType = 17
	tagTypeIFD8      tagType = 18
)

// Size in bytes of each type.
var tagTypeSize = map[tagType]uint64{
	tagTypeByte:      1,
	tagTypeASCII:     1,
	tagTypeShort:     2,
	tagTypeLong:      4,
	tagTypeRational:  8,
	tagTypeSByte:     1,
	tagTypeUndefined: 1,
	tagTypeSShort:    2,
	tagTypeSLong:     4,
	tagTypeSRational: 8,
	tagTypeFloat:     4,
	tagTypeDouble:    8,
	tagTypeIFD:       4,
	tagTypeLong8:     8,
	tagTypeSLong8:    8,
	tagTypeIFD8:      8,
}

// decodeValues decodes count values of typ from b.
//
// A single value is returned as a scalar, multiple values as a slice.
// BYTE and UNDEFINED values are always returned as []byte and ASCII
// as a string, or a []string when the field holds several NUL separated strings.
func decodeValues(b []byte, typ tagType, count uint64, byteOrder binary.ByteOrder) (any, error) {
	size, ok := tagTypeSize[typ]
	if !ok {
		return nil, newFormatErrorf("unknown field type %d", typ)
	}
	if count == 0 {
		return nil, nil
	}
	if count > uint64(len(b))/size {
		return nil, newFormatErrorf("field of %d values of type %d needs %d bytes, have %d", count, typ, count*size, len(b))
	}
	b = b[:count*size]

	switch typ {
	case tagTypeByte, tagTypeUndefined:
		return bytes.Clone(b), nil
	case tagTypeASCII:
		return decodeASCII(b), nil
	}

	n := int(count)

	switch typ {
	case tagTypeSByte:
		vals := make([]int8, n)
		for i := range vals {
			vals[i] = int8(b[i])
		}
		return scalarOrSlice(vals), nil
	case tagTypeShort:
		vals := make([]uint16, n)
		for i := range vals {
			vals[i] = byteOrder.Uint16(b[i*2:])
		}
		return scalarOrSlice(vals), nil
	case tagTypeSShort:
		vals := make([]int16, n)
		for i := range vals {
			vals[i] = int16(byteOrder.Uint16(b[i*2:]))
		}
		return scalarOrSlice(vals), nil
	case tagTypeLong, tagTypeIFD:
		vals := make([]uint32, n)
		for i := range vals {
			vals[i] = byteOrder.Uint32(b[i*4:])
		}
		return scalarOrSlice(vals), nil
	case tagTypeSLong:
		vals := make([]int32, n)
		for i := range vals {
			vals[i] = int32(byteOrder.Uint32(b[i*4:]))
		}
		return scalarOrSlice(vals), nil
	case tagTypeLong8, tagTypeIFD8:
		vals := make([]uint64, n)
		for i := range vals {
			vals[i] = byteOrder.Uint64(b[i*8:])
		}
		return scalarOrSlice(vals), nil
	case tagTypeSLong8:
		vals := make([]int64, n)
		for i := range vals {
			vals[i] = int64(byteOrder.Uint64(b[i*8:]))
		}
		return scalarOrSlice(vals), nil
	case tagTypeFloat:
		vals := make([]float32, n)
		for i := range vals {
			vals[i] = math.Float32frombits(byteOrder.Uint32(b[i*4:]))
		}
		return scalarOrSlice(vals), nil
	case tagTypeDouble:
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = math.Float64frombits(byteOrder.Uint64(b[i*8:]))
		}
		return scalarOrSlice(vals), nil
	case tagTypeRational:
		vals := make([]Rational[uint32], n)
		for i := range vals {
			vals[i] = Rational[uint32]{Num: byteOrder.Uint32(b[i*8:]), Den: byteOrder.Uint32(b[i*8+4:])}
		}
		return scalarOrSlice(vals), nil
	case tagTypeSRational:
		vals := make([]Rational[int32], n)
		for i := range vals {
			vals[i] = Rational[int32]{Num: int32(byteOrder.Uint32(b[i*8:])), Den: int32(byteOrder.Uint32(b[i*8+4:]))}
		}
		return scalarOrSlice(vals), nil
	default:
		return nil, newFormatErrorf("unknown field type %d", typ)
	}
}

func scalarOrSlice[T any](vals []T) any {
	if len(vals) == 1 {
		return vals[0]
	}
	return vals
}

// decodeASCII decodes a NUL terminated ASCII field.
// Fields with more than one NUL terminated string return a []string.
func decodeASCII(b []byte) any {
	b = bytes.TrimRight(b, "\x00")
	parts := bytes.Split(b, []byte{0})
	if len(parts) == 1 {
		return latin1String(parts[0])
	}
	ss := make([]string, len(parts))
	for i, p := range parts {
		ss[i] = latin1String(p)
	}
	return ss
}

// latin1String returns b as a string, decoding it as ISO-8859-1 if it's not valid UTF-8.
func latin1String(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "")
	}
	return string(s)
}

// Conversion helpers for decoded values.

func toUint64s(v any) ([]uint64, bool) {
	switch vv := v.(type) {
	case uint8:
		return []uint64{uint64(vv)}, true
	case []byte:
		out := make([]uint64, len(vv))
		for i, x := range vv {
			out[i] = uint64(x)
		}
		return out, true
	case uint16:
		return []uint64{uint64(vv)}, true
	case []uint16:
		out := make([]uint64, len(vv))
		for i, x := range vv {
			out[i] = uint64(x)
		}
		return out, true
	case uint32:
		return []uint64{uint64(vv)}, true
	case []uint32:
		out := make([]uint64, len(vv))
		for i, x := range vv {
			out[i] = uint64(x)
		}
		return out, true
	case uint64:
		return []uint64{vv}, true
	case []uint64:
		return vv, true
	default:
		return nil, false
	}
}

func toUint64(v any) (uint64, bool) {
	vals, ok := toUint64s(v)
	if !ok || len(vals) != 1 {
		return 0, false
	}
	return vals[0], true
}

func toUint16s(v any) ([]uint16, bool) {
	vals, ok := toUint64s(v)
	if !ok {
		return nil, false
	}
	out := make([]uint16, len(vals))
	for i, x := range vals {
		if x > math.MaxUint16 {
			return nil, false
		}
		out[i] = uint16(x)
	}
	return out, true
}

func toFloat64s(v any) ([]float64, bool) {
	switch vv := v.(type) {
	case float64:
		return []float64{vv}, true
	case []float64:
		return vv, true
	case float32:
		return []float64{float64(vv)}, true
	case []float32:
		out := make([]float64, len(vv))
		for i, x := range vv {
			out[i] = float64(x)
		}
		return out, true
	case Rational[uint32]:
		return []float64{vv.Float64()}, true
	case []Rational[uint32]:
		out := make([]float64, len(vv))
		for i, x := range vv {
			out[i] = x.Float64()
		}
		return out, true
	case Rational[int32]:
		return []float64{vv.Float64()}, true
	case []Rational[int32]:
		out := make([]float64, len(vv))
		for i, x := range vv {
			out[i] = x.Float64()
		}
		return out, true
	}
	if u, ok := toUint64s(v); ok {
		out := make([]float64, len(u))
		for i, x := range u {
			out[i] = float64(x)
		}
		return out, true
	}
	return nil, false
}

func toStringValue(v any) (string, bool) {
	switch vv := v.(type) {
	case string:
		return vv, true
	case []string:
		return strings.Join(vv, "\x00"), true
	case []byte:
		return latin1String(bytes.TrimRight(vv, "\x00")), true
	default:
		return "", false
	}
}
