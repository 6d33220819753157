// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// AffineTransform maps pixel coordinates to model coordinates:
//
//	x = a*col + b*row + c
//	y = d*col + e*row + f
type AffineTransform [6]float64

// Apply returns the model coordinates of the pixel corner at col, row.
func (a AffineTransform) Apply(col, row float64) (x, y float64) {
	return a[0]*col + a[1]*row + a[2], a[3]*col + a[4]*row + a[5]
}

// Transform returns the pixel to model transform from either
// ModelPixelScale and ModelTiepoint or ModelTransformation.
func (ifd *IFD) Transform() (AffineTransform, bool) {
	if len(ifd.ModelPixelScale) >= 2 && len(ifd.ModelTiepoint) >= 6 {
		sx, sy := ifd.ModelPixelScale[0], ifd.ModelPixelScale[1]
		tp := ifd.ModelTiepoint
		return AffineTransform{
			sx, 0, tp[3] - tp[0]*sx,
			0, -sy, tp[4] + tp[1]*sy,
		}, true
	}
	if m := ifd.ModelTransformation; len(m) == 16 {
		return AffineTransform{m[0], m[1], m[3], m[4], m[5], m[7]}, true
	}
	return AffineTransform{}, false
}

// Bounds returns the model space extent of the image.
func (ifd *IFD) Bounds() (orb.Bound, bool) {
	return ifd.regionBounds(0, 0, float64(ifd.ImageWidth), float64(ifd.ImageHeight))
}

// TileBounds returns the model space extent of the tile at col, row,
// clipped to the image.
func (ifd *IFD) TileBounds(col, row int) (orb.Bound, bool) {
	loc, err := ifd.LocateTile(col, row, 0)
	if err != nil {
		return orb.Bound{}, false
	}
	x0 := float64(col * loc.ChunkWidth)
	y0 := float64(row * ifd.ChunkHeight())
	return ifd.regionBounds(x0, y0, x0+float64(loc.Width), y0+float64(loc.Height))
}

func (ifd *IFD) regionBounds(col0, row0, col1, row1 float64) (orb.Bound, bool) {
	t, ok := ifd.Transform()
	if !ok {
		return orb.Bound{}, false
	}
	var corners orb.MultiPoint
	for _, c := range [][2]float64{{col0, row0}, {col1, row0}, {col0, row1}, {col1, row1}} {
		x, y := t.Apply(c[0], c[1])
		corners = append(corners, orb.Point{x, y})
	}
	return corners.Bound(), true
}

// NoData returns the GDAL nodata value, if set.
func (ifd *IFD) NoData() (float64, bool) {
	s := strings.TrimSpace(strings.TrimRight(ifd.GDALNoData, "\x00"))
	if s == "" {
		return 0, false
	}
	if strings.EqualFold(s, "nan") {
		return math.NaN(), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// EPSG returns the EPSG code of the projected or geographic coordinate
// system, if the IFD has a GeoKey directory with one.
func (ifd *IFD) EPSG() (uint16, bool) {
	if ifd.GeoKeyDirectory == nil {
		return 0, false
	}
	return ifd.GeoKeyDirectory.EPSG()
}
