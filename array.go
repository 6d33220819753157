// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// DataType describes the element format of an Array.
type DataType int

const (
	DataTypeUnknown DataType = iota
	DataTypeBool             // 1-bit samples, unpacked to one byte each.
	DataTypeUint8
	DataTypeInt8
	DataTypeUint16
	DataTypeInt16
	DataTypeUint32
	DataTypeInt32
	DataTypeUint64
	DataTypeInt64
	DataTypeFloat16
	DataTypeFloat32
	DataTypeFloat64
)

var dataTypeNames = map[DataType]string{
	DataTypeUnknown: "unknown",
	DataTypeBool:    "bool",
	DataTypeUint8:   "uint8",
	DataTypeInt8:    "int8",
	DataTypeUint16:  "uint16",
	DataTypeInt16:   "int16",
	DataTypeUint32:  "uint32",
	DataTypeInt32:   "int32",
	DataTypeUint64:  "uint64",
	DataTypeInt64:   "int64",
	DataTypeFloat16: "float16",
	DataTypeFloat32: "float32",
	DataTypeFloat64: "float64",
}

func (d DataType) String() string {
	if s, ok := dataTypeNames[d]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

// Size returns the size in bytes of one element, 0 for DataTypeUnknown.
func (d DataType) Size() int {
	switch d {
	case DataTypeBool, DataTypeUint8, DataTypeInt8:
		return 1
	case DataTypeUint16, DataTypeInt16, DataTypeFloat16:
		return 2
	case DataTypeUint32, DataTypeInt32, DataTypeFloat32:
		return 4
	case DataTypeUint64, DataTypeInt64, DataTypeFloat64:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether d is a floating point type.
func (d DataType) IsFloat() bool {
	return d == DataTypeFloat16 || d == DataTypeFloat32 || d == DataTypeFloat64
}

// IsSigned reports whether d is a signed type.
func (d DataType) IsSigned() bool {
	switch d {
	case DataTypeInt8, DataTypeInt16, DataTypeInt32, DataTypeInt64:
		return true
	}
	return d.IsFloat()
}

func (d DataType) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// dataTypeFor returns the DataType for one sample format and bit depth.
func dataTypeFor(format SampleFormat, bits uint16) DataType {
	switch format {
	case SampleFormatUint, SampleFormatVoid:
		switch bits {
		case 1:
			return DataTypeBool
		case 8:
			return DataTypeUint8
		case 16:
			return DataTypeUint16
		case 32:
			return DataTypeUint32
		case 64:
			return DataTypeUint64
		}
	case SampleFormatInt:
		switch bits {
		case 8:
			return DataTypeInt8
		case 16:
			return DataTypeInt16
		case 32:
			return DataTypeInt32
		case 64:
			return DataTypeInt64
		}
	case SampleFormatFloat:
		switch bits {
		case 16:
			return DataTypeFloat16
		case 32:
			return DataTypeFloat32
		case 64:
			return DataTypeFloat64
		}
	}
	return DataTypeUnknown
}

// DataType returns the element type of decoded pixels, DataTypeUnknown if the
// samples differ in format or bit depth or the combination isn't supported.
func (ifd *IFD) DataType() DataType {
	if len(ifd.SampleFormat) == 0 || len(ifd.BitsPerSample) != len(ifd.SampleFormat) {
		return DataTypeUnknown
	}
	dt := dataTypeFor(ifd.SampleFormat[0], ifd.BitsPerSample[0])
	for i := 1; i < len(ifd.SampleFormat); i++ {
		if dataTypeFor(ifd.SampleFormat[i], ifd.BitsPerSample[i]) != dt {
			return DataTypeUnknown
		}
	}
	return dt
}

// Array is a decoded, immutable pixel buffer.
type Array struct {
	data      []byte
	shape     [3]int
	dataType  DataType
	byteOrder binary.ByteOrder
}

// NewArray creates an Array from raw bytes.
// The length of data must match the shape and data type.
// A nil byteOrder means little endian.
func NewArray(data []byte, shape [3]int, dataType DataType, byteOrder binary.ByteOrder) (*Array, error) {
	size := dataType.Size()
	if size == 0 {
		return nil, fmt.Errorf("asynctiff: unsupported data type %s", dataType)
	}
	for _, n := range shape {
		if n < 0 {
			return nil, fmt.Errorf("asynctiff: invalid shape %v", shape)
		}
	}
	if want := shape[0] * shape[1] * shape[2] * size; len(data) != want {
		return nil, fmt.Errorf("asynctiff: %d bytes do not match shape %v of %s (%d bytes)", len(data), shape, dataType, want)
	}
	if byteOrder == nil {
		byteOrder = binary.LittleEndian
	}
	return &Array{data: data, shape: shape, dataType: dataType, byteOrder: byteOrder}, nil
}

// Shape returns the dimensions of the array.
// This is (rows, cols, samples) for chunky data and (samples, rows, cols)
// for planar data.
func (a *Array) Shape() [3]int {
	return a.shape
}

// DataType returns the element type.
func (a *Array) DataType() DataType {
	return a.dataType
}

// ByteOrder returns the byte order of the elements.
func (a *Array) ByteOrder() binary.ByteOrder {
	return a.byteOrder
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return a.shape[0] * a.shape[1] * a.shape[2]
}

// Bytes returns a copy of the raw element bytes.
func (a *Array) Bytes() []byte {
	return bytes.Clone(a.data)
}

func (a *Array) String() string {
	return fmt.Sprintf("Array(%s, %v)", a.dataType, a.shape)
}

func (a *Array) checkType(want ...DataType) error {
	for _, w := range want {
		if a.dataType == w {
			return nil
		}
	}
	return fmt.Errorf("asynctiff: array has data type %s, not %s", a.dataType, want[0])
}

func convert[T any](a *Array, size int, read func([]byte) T) []T {
	out := make([]T, a.Len())
	for i := range out {
		out[i] = read(a.data[i*size:])
	}
	return out
}

// Bools returns the elements of a DataTypeBool array.
func (a *Array) Bools() ([]bool, error) {
	if err := a.checkType(DataTypeBool); err != nil {
		return nil, err
	}
	return convert(a, 1, func(b []byte) bool { return b[0] != 0 }), nil
}

// Uint8s returns the elements of a DataTypeUint8 or DataTypeBool array.
func (a *Array) Uint8s() ([]uint8, error) {
	if err := a.checkType(DataTypeUint8, DataTypeBool); err != nil {
		return nil, err
	}
	return bytes.Clone(a.data), nil
}

// Int8s returns the elements of a DataTypeInt8 array.
func (a *Array) Int8s() ([]int8, error) {
	if err := a.checkType(DataTypeInt8); err != nil {
		return nil, err
	}
	return convert(a, 1, func(b []byte) int8 { return int8(b[0]) }), nil
}

// Uint16s returns the elements of a DataTypeUint16 array.
func (a *Array) Uint16s() ([]uint16, error) {
	if err := a.checkType(DataTypeUint16, DataTypeFloat16); err != nil {
		return nil, err
	}
	return convert(a, 2, a.byteOrder.Uint16), nil
}

// Int16s returns the elements of a DataTypeInt16 array.
func (a *Array) Int16s() ([]int16, error) {
	if err := a.checkType(DataTypeInt16); err != nil {
		return nil, err
	}
	return convert(a, 2, func(b []byte) int16 { return int16(a.byteOrder.Uint16(b)) }), nil
}

// Uint32s returns the elements of a DataTypeUint32 array.
func (a *Array) Uint32s() ([]uint32, error) {
	if err := a.checkType(DataTypeUint32); err != nil {
		return nil, err
	}
	return convert(a, 4, a.byteOrder.Uint32), nil
}

// Int32s returns the elements of a DataTypeInt32 array.
func (a *Array) Int32s() ([]int32, error) {
	if err := a.checkType(DataTypeInt32); err != nil {
		return nil, err
	}
	return convert(a, 4, func(b []byte) int32 { return int32(a.byteOrder.Uint32(b)) }), nil
}

// Uint64s returns the elements of a DataTypeUint64 array.
func (a *Array) Uint64s() ([]uint64, error) {
	if err := a.checkType(DataTypeUint64); err != nil {
		return nil, err
	}
	return convert(a, 8, a.byteOrder.Uint64), nil
}

// Int64s returns the elements of a DataTypeInt64 array.
func (a *Array) Int64s() ([]int64, error) {
	if err := a.checkType(DataTypeInt64); err != nil {
		return nil, err
	}
	return convert(a, 8, func(b []byte) int64 { return int64(a.byteOrder.Uint64(b)) }), nil
}

// Float32s returns the elements of a DataTypeFloat32 array.
func (a *Array) Float32s() ([]float32, error) {
	if err := a.checkType(DataTypeFloat32); err != nil {
		return nil, err
	}
	return convert(a, 4, func(b []byte) float32 { return math.Float32frombits(a.byteOrder.Uint32(b)) }), nil
}

// Float64s returns the elements of a DataTypeFloat64 array.
func (a *Array) Float64s() ([]float64, error) {
	if err := a.checkType(DataTypeFloat64); err != nil {
		return nil, err
	}
	return convert(a, 8, func(b []byte) float64 { return math.Float64frombits(a.byteOrder.Uint64(b)) }), nil
}
