// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
)

func tiledIFD(width, height, tileWidth, tileHeight uint32, spp uint16, planar PlanarConfiguration) *IFD {
	ifd := &IFD{
		ImageWidth:          width,
		ImageHeight:         height,
		TileWidth:           tileWidth,
		TileHeight:          tileHeight,
		SamplesPerPixel:     spp,
		PlanarConfiguration: planar,
		BitsPerSample:       []uint16{8},
	}
	n := ifd.ChunkCount()
	for i := range n {
		ifd.TileOffsets = append(ifd.TileOffsets, uint64(1000+i*100))
		ifd.TileByteCounts = append(ifd.TileByteCounts, 50)
	}
	return ifd
}

func TestLocateTiled(t *testing.T) {
	c := qt.New(t)
	ifd := tiledIFD(100, 70, 32, 32, 3, PlanarChunky)

	c.Assert(ifd.ChunksAcross(), qt.Equals, 4)
	c.Assert(ifd.ChunksDown(), qt.Equals, 3)
	c.Assert(ifd.ChunkCount(), qt.Equals, 12)

	loc, err := ifd.LocateTile(0, 0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(loc, qt.DeepEquals, ChunkLocation{
		Index: 0, Range: ByteRange{Start: 1000, End: 1050},
		Width: 32, Height: 32, ChunkWidth: 32, ChunkHeight: 32, Samples: 3,
	})

	// Edge tile.
	loc, err = ifd.LocateTile(3, 2, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(loc.Index, qt.Equals, 11)
	c.Assert(loc.Width, qt.Equals, 4)
	c.Assert(loc.Height, qt.Equals, 6)
	c.Assert(loc.ChunkWidth, qt.Equals, 32)
	c.Assert(loc.ChunkHeight, qt.Equals, 32)
	c.Assert(loc.Range, qt.Equals, ByteRange{Start: 2100, End: 2150})

	for _, test := range [][3]int{{4, 0, 0}, {0, 3, 0}, {-1, 0, 0}, {0, 0, 1}} {
		_, err := ifd.LocateTile(test[0], test[1], test[2])
		c.Assert(errors.Is(err, ErrTileIndexOutOfRange), qt.IsTrue, qt.Commentf("%v", test))
	}

	_, err = ifd.Locate(12)
	var tie *TileIndexError
	c.Assert(errors.As(err, &tie), qt.IsTrue)
	c.Assert(tie.Count, qt.Equals, 12)
	c.Assert(tie.Plane, qt.Equals, 1)
}

func TestLocatePlanar(t *testing.T) {
	c := qt.New(t)
	ifd := tiledIFD(64, 64, 32, 32, 3, PlanarPlanar)
	c.Assert(ifd.Planes(), qt.Equals, 3)
	c.Assert(ifd.ChunkCount(), qt.Equals, 12)

	loc, err := ifd.LocateTile(1, 1, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(loc.Index, qt.Equals, 2*4+1*2+1)
	c.Assert(loc.Samples, qt.Equals, 1)
	c.Assert(loc.Plane, qt.Equals, 2)
}

func TestLocateStrips(t *testing.T) {
	c := qt.New(t)
	ifd := &IFD{
		ImageWidth:          10,
		ImageHeight:         25,
		RowsPerStrip:        10,
		SamplesPerPixel:     1,
		PlanarConfiguration: PlanarChunky,
		BitsPerSample:       []uint16{8},
		StripOffsets:        []uint64{8, 108, 208},
		StripByteCounts:     []uint64{100, 100, 50},
	}
	c.Assert(ifd.IsTiled(), qt.IsFalse)
	c.Assert(ifd.ChunksAcross(), qt.Equals, 1)
	c.Assert(ifd.ChunksDown(), qt.Equals, 3)

	loc, err := ifd.LocateTile(0, 2, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(loc.Height, qt.Equals, 5)
	c.Assert(loc.ChunkHeight, qt.Equals, 5)
	c.Assert(loc.Width, qt.Equals, 10)
	c.Assert(loc.Range, qt.Equals, ByteRange{Start: 208, End: 258})

	_, err = ifd.LocateTile(1, 0, 0)
	c.Assert(IsTileIndexOutOfRange(err), qt.IsTrue)
}

func TestLocateSparse(t *testing.T) {
	c := qt.New(t)
	ifd := tiledIFD(64, 32, 32, 32, 1, PlanarChunky)
	ifd.TileOffsets[0], ifd.TileByteCounts[0] = 0, 0
	ifd.TileByteCounts[1] = 0

	loc, err := ifd.LocateTile(0, 0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(loc.Sparse, qt.IsTrue)

	// An empty range at a real offset is not sparse.
	loc, err = ifd.LocateTile(1, 0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(loc.Sparse, qt.IsFalse)
	c.Assert(loc.Range.Len(), qt.Equals, uint64(0))
}

func BenchmarkLocateTile(b *testing.B) {
	ifd := tiledIFD(40000, 40000, 512, 512, 1, PlanarChunky)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ifd.LocateTile(i%78, (i/78)%78, 0); err != nil {
			b.Fatal(err)
		}
	}
}
