// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestStringer(t *testing.T) {
	c := qt.New(t)
	c.Assert(TagImageWidth.String(), qt.Equals, "ImageWidth")
	c.Assert(TagGeoKeyDirectory.String(), qt.Equals, "GeoKeyDirectory")
	c.Assert(Tag(65000).String(), qt.Equals, "UnknownTag_0xfde8")

	c.Assert(CompressionDeflate.String(), qt.Equals, "Deflate")
	c.Assert(Compression(4242).String(), qt.Equals, "Compression(4242)")
	c.Assert(PhotometricTransparencyMask.String(), qt.Equals, "TransparencyMask")
	c.Assert(PlanarPlanar.String(), qt.Equals, "Planar")
	c.Assert(PredictorHorizontal.String(), qt.Equals, "Horizontal")
	c.Assert(SampleFormatFloat.String(), qt.Equals, "Float")

	c.Assert(DataTypeUint16.String(), qt.Equals, "uint16")
	c.Assert(DataType(99).String(), qt.Equals, "DataType(99)")
	c.Assert(TileDecoded.String(), qt.Equals, "decoded")
	c.Assert(GeoKeyProjectedType.String(), qt.Equals, "GeoKey(3072)")
}

func BenchmarkPrintableString(b *testing.B) {
	runBench := func(b *testing.B, name, s string) {
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = printableString(s)
			}
		})
	}

	runBench(b, "ASCII", "GDAL 3.8.4")
	runBench(b, "ASCII with whitespace", "   GDAL 3.8.4   ")
	runBench(b, "UTF-8", "Bjørn Erik Pedersen")
	runBench(b, "Unprintable", "GDAL\x00 3.8.4")
}

func TestPrintableString(t *testing.T) {
	c := qt.New(t)
	c.Assert(printableString("  GDAL\x00 3.8\n"), qt.Equals, "GDAL 3.8")
}

func TestCeilDiv(t *testing.T) {
	c := qt.New(t)
	c.Assert(ceilDiv(10, 5), qt.Equals, uint64(2))
	c.Assert(ceilDiv(11, 5), qt.Equals, uint64(3))
	c.Assert(ceilDiv(0, 5), qt.Equals, uint64(0))
	c.Assert(ceilDiv(5, 0), qt.Equals, uint64(0))
}
