// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

// ChunkLocation is the position, byte range and shape of one tile or strip.
type ChunkLocation struct {
	// Index is the flat index into the offset and byte count tables.
	Index int

	// Range is where the compressed chunk is stored.
	Range ByteRange

	// Sparse is set when both the offset and the byte count are 0.
	// A sparse chunk decodes to zeros without a fetch.
	Sparse bool

	Col, Row, Plane int

	// Width and Height are the logical dimensions, clipped to the image.
	Width, Height int

	// ChunkWidth and ChunkHeight are the stored dimensions.
	// For tiles they include the padding of edge tiles.
	ChunkWidth, ChunkHeight int

	// Samples is the number of samples per pixel in this chunk,
	// 1 for planar data.
	Samples int
}

// ChunkWidth returns the stored width of a tile or strip in pixels.
func (ifd *IFD) ChunkWidth() int {
	if ifd.IsTiled() {
		return int(ifd.TileWidth)
	}
	return int(ifd.ImageWidth)
}

// ChunkHeight returns the stored height of a tile or strip in pixels.
func (ifd *IFD) ChunkHeight() int {
	if ifd.IsTiled() {
		return int(ifd.TileHeight)
	}
	return int(ifd.RowsPerStrip)
}

// ChunksAcross returns the number of tile columns, 1 for stripped images.
func (ifd *IFD) ChunksAcross() int {
	return int(ceilDiv(uint64(ifd.ImageWidth), uint64(ifd.ChunkWidth())))
}

// ChunksDown returns the number of tile rows or strips per plane.
func (ifd *IFD) ChunksDown() int {
	return int(ceilDiv(uint64(ifd.ImageHeight), uint64(ifd.ChunkHeight())))
}

// Planes returns the number of separately stored sample planes.
func (ifd *IFD) Planes() int {
	if ifd.PlanarConfiguration == PlanarPlanar {
		return int(ifd.SamplesPerPixel)
	}
	return 1
}

func (ifd *IFD) chunkCount() int {
	return ifd.ChunksAcross() * ifd.ChunksDown() * ifd.Planes()
}

// ChunkCount returns the number of tiles or strips implied by the image geometry.
func (ifd *IFD) ChunkCount() int {
	return ifd.chunkCount()
}

func (ifd *IFD) chunkTables() (offsets, byteCounts []uint64) {
	if ifd.IsTiled() {
		return ifd.TileOffsets, ifd.TileByteCounts
	}
	return ifd.StripOffsets, ifd.StripByteCounts
}

// ChunkIndex maps a tile column, row and plane to a flat index.
// For stripped images col must be 0 and row is the strip number.
func (ifd *IFD) ChunkIndex(col, row, plane int) (int, error) {
	across, down, planes := ifd.ChunksAcross(), ifd.ChunksDown(), ifd.Planes()
	index := plane*across*down + row*across + col
	if col < 0 || col >= across || row < 0 || row >= down || plane < 0 || plane >= planes {
		return 0, &TileIndexError{Col: col, Row: row, Plane: plane, Index: index, Count: across * down * planes}
	}
	return index, nil
}

// Locate returns the location of the tile or strip with the given flat index.
func (ifd *IFD) Locate(index int) (ChunkLocation, error) {
	across, down := ifd.ChunksAcross(), ifd.ChunksDown()
	count := ifd.chunkCount()
	offsets, byteCounts := ifd.chunkTables()

	if index < 0 || index >= count || index >= len(offsets) {
		loc := &TileIndexError{Index: index, Count: count, Col: -1, Row: -1, Plane: -1}
		if index >= 0 && across > 0 && down > 0 {
			loc.Plane = index / (across * down)
			loc.Row = (index % (across * down)) / across
			loc.Col = index % across
		}
		return ChunkLocation{}, loc
	}

	perPlane := across * down
	loc := ChunkLocation{
		Index:       index,
		Plane:       index / perPlane,
		Row:         (index % perPlane) / across,
		Col:         index % across,
		ChunkWidth:  ifd.ChunkWidth(),
		ChunkHeight: ifd.ChunkHeight(),
		Samples:     int(ifd.SamplesPerPixel),
	}
	if ifd.PlanarConfiguration == PlanarPlanar {
		loc.Samples = 1
	}

	loc.Width = min(loc.ChunkWidth, int(ifd.ImageWidth)-loc.Col*loc.ChunkWidth)
	loc.Height = min(loc.ChunkHeight, int(ifd.ImageHeight)-loc.Row*loc.ChunkHeight)

	if !ifd.IsTiled() {
		// The last strip only stores the remaining rows.
		loc.ChunkHeight = loc.Height
	}

	start := offsets[index]
	loc.Range = ByteRange{Start: start, End: start + byteCounts[index]}
	loc.Sparse = start == 0 && byteCounts[index] == 0

	return loc, nil
}

// LocateTile returns the location of the tile or strip at col, row in plane.
func (ifd *IFD) LocateTile(col, row, plane int) (ChunkLocation, error) {
	index, err := ifd.ChunkIndex(col, row, plane)
	if err != nil {
		return ChunkLocation{}, err
	}
	return ifd.Locate(index)
}
