// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestArrayRoundTrip(t *testing.T) {
	c := qt.New(t)

	c.Run("Uint8", func(c *qt.C) {
		data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
		a, err := NewArray(data, [3]int{2, 2, 3}, DataTypeUint8, nil)
		c.Assert(err, qt.IsNil)
		c.Assert(a.Shape(), qt.Equals, [3]int{2, 2, 3})
		c.Assert(a.DataType(), qt.Equals, DataTypeUint8)
		c.Assert(a.ByteOrder(), qt.Equals, binary.ByteOrder(binary.LittleEndian))
		c.Assert(a.Len(), qt.Equals, 12)
		c.Assert(a.Bytes(), qt.DeepEquals, data)
		vals, err := a.Uint8s()
		c.Assert(err, qt.IsNil)
		c.Assert(vals, qt.DeepEquals, data)
		c.Assert(a.String(), qt.Equals, "Array(uint8, [2 2 3])")
	})

	c.Run("Uint16 big endian", func(c *qt.C) {
		var data []byte
		for _, v := range []uint16{1, 256, 65535} {
			data = binary.BigEndian.AppendUint16(data, v)
		}
		a, err := NewArray(data, [3]int{1, 3, 1}, DataTypeUint16, binary.BigEndian)
		c.Assert(err, qt.IsNil)
		vals, err := a.Uint16s()
		c.Assert(err, qt.IsNil)
		c.Assert(vals, qt.DeepEquals, []uint16{1, 256, 65535})
	})

	c.Run("Int16", func(c *qt.C) {
		var data []byte
		for _, v := range []int16{-1, 2, -32768, 32767} {
			data = binary.LittleEndian.AppendUint16(data, uint16(v))
		}
		a, err := NewArray(data, [3]int{2, 2, 1}, DataTypeInt16, nil)
		c.Assert(err, qt.IsNil)
		vals, err := a.Int16s()
		c.Assert(err, qt.IsNil)
		c.Assert(vals, qt.DeepEquals, []int16{-1, 2, -32768, 32767})
	})

	c.Run("Float32", func(c *qt.C) {
		want := []float32{0.5, -1, float32(math.Inf(1)), 3.25}
		var data []byte
		for _, v := range want {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
		}
		a, err := NewArray(data, [3]int{1, 4, 1}, DataTypeFloat32, nil)
		c.Assert(err, qt.IsNil)
		vals, err := a.Float32s()
		c.Assert(err, qt.IsNil)
		c.Assert(vals, qt.DeepEquals, want)

		_, err = a.Uint32s()
		c.Assert(err, qt.ErrorMatches, "asynctiff: array has data type float32, not uint32")
	})

	c.Run("Float64", func(c *qt.C) {
		var data []byte
		for _, v := range []float64{1e300, -2} {
			data = binary.LittleEndian.AppendUint64(data, math.Float64bits(v))
		}
		a, err := NewArray(data, [3]int{2, 1, 1}, DataTypeFloat64, nil)
		c.Assert(err, qt.IsNil)
		vals, err := a.Float64s()
		c.Assert(err, qt.IsNil)
		c.Assert(vals, qt.DeepEquals, []float64{1e300, -2})
	})

	c.Run("Bool", func(c *qt.C) {
		a, err := NewArray([]byte{1, 0, 1}, [3]int{1, 3, 1}, DataTypeBool, nil)
		c.Assert(err, qt.IsNil)
		vals, err := a.Bools()
		c.Assert(err, qt.IsNil)
		c.Assert(vals, qt.DeepEquals, []bool{true, false, true})
	})

	c.Run("Bytes is a copy", func(c *qt.C) {
		a, err := NewArray([]byte{1, 2}, [3]int{1, 2, 1}, DataTypeUint8, nil)
		c.Assert(err, qt.IsNil)
		b := a.Bytes()
		b[0] = 99
		c.Assert(a.Bytes()[0], qt.Equals, byte(1))
	})
}

func TestNewArrayErrors(t *testing.T) {
	c := qt.New(t)
	_, err := NewArray([]byte{1, 2, 3}, [3]int{2, 2, 1}, DataTypeUint8, nil)
	c.Assert(err, qt.ErrorMatches, `asynctiff: 3 bytes do not match shape \[2 2 1\] of uint8 \(4 bytes\)`)
	_, err = NewArray(nil, [3]int{0, 0, 0}, DataTypeUnknown, nil)
	c.Assert(err, qt.ErrorMatches, "asynctiff: unsupported data type unknown")
	_, err = NewArray(nil, [3]int{-1, 0, 1}, DataTypeUint8, nil)
	c.Assert(err, qt.ErrorMatches, `asynctiff: invalid shape .*`)
}

func TestDataType(t *testing.T) {
	c := qt.New(t)
	c.Assert(dataTypeFor(SampleFormatUint, 1), qt.Equals, DataTypeBool)
	c.Assert(dataTypeFor(SampleFormatInt, 16), qt.Equals, DataTypeInt16)
	c.Assert(dataTypeFor(SampleFormatFloat, 32), qt.Equals, DataTypeFloat32)
	c.Assert(dataTypeFor(SampleFormatFloat, 8), qt.Equals, DataTypeUnknown)
	c.Assert(dataTypeFor(SampleFormatUint, 12), qt.Equals, DataTypeUnknown)

	c.Assert(DataTypeFloat16.Size(), qt.Equals, 2)
	c.Assert(DataTypeFloat16.IsFloat(), qt.IsTrue)
	c.Assert(DataTypeFloat16.IsSigned(), qt.IsTrue)
	c.Assert(DataTypeUint64.IsSigned(), qt.IsFalse)

	ifd := &IFD{
		BitsPerSample: []uint16{8, 8, 16},
		SampleFormat:  []SampleFormat{SampleFormatUint, SampleFormatUint, SampleFormatUint},
	}
	c.Assert(ifd.DataType(), qt.Equals, DataTypeUnknown)
	ifd.BitsPerSample[2] = 8
	c.Assert(ifd.DataType(), qt.Equals, DataTypeUint8)

	b, err := json.Marshal(map[string]DataType{"dtype": DataTypeInt32})
	c.Assert(err, qt.IsNil)
	c.Assert(string(b), qt.Equals, `{"dtype":"int32"}`)
}
