// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package server

import (
	"sort"

	"github.com/bep/asynctiff"
)

// IFDSummary is the JSON and YAML view of one IFD.
type IFDSummary struct {
	Index           int      `json:"index" yaml:"index"`
	Width           uint32   `json:"width" yaml:"width"`
	Height          uint32   `json:"height" yaml:"height"`
	SamplesPerPixel uint16   `json:"samplesPerPixel" yaml:"samplesPerPixel"`
	BitsPerSample   []uint16 `json:"bitsPerSample" yaml:"bitsPerSample"`
	DataType        string   `json:"dataType" yaml:"dataType"`
	Compression     string   `json:"compression" yaml:"compression"`
	Photometric     string   `json:"photometric" yaml:"photometric"`
	Planar          string   `json:"planar" yaml:"planar"`
	Predictor       string   `json:"predictor" yaml:"predictor"`

	Tiled        bool    `json:"tiled" yaml:"tiled"`
	ChunkWidth   int     `json:"chunkWidth" yaml:"chunkWidth"`
	ChunkHeight  int     `json:"chunkHeight" yaml:"chunkHeight"`
	ChunksAcross int     `json:"chunksAcross" yaml:"chunksAcross"`
	ChunksDown   int     `json:"chunksDown" yaml:"chunksDown"`
	Chunks       int     `json:"chunks" yaml:"chunks"`
	Mask         bool    `json:"mask,omitempty" yaml:"mask,omitempty"`
	Colormap     *[2]int `json:"colormap,omitempty" yaml:"colormap,omitempty"`

	EPSG         uint16      `json:"epsg,omitempty" yaml:"epsg,omitempty"`
	Citation     string      `json:"citation,omitempty" yaml:"citation,omitempty"`
	ProjCitation string      `json:"projCitation,omitempty" yaml:"projCitation,omitempty"`
	Transform    []float64   `json:"transform,omitempty" yaml:"transform,omitempty"`
	Bounds       []float64   `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	NoData       string      `json:"noData,omitempty" yaml:"noData,omitempty"`
	GDAL         []GDALEntry `json:"gdal,omitempty" yaml:"gdal,omitempty"`

	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Software    string   `json:"software,omitempty" yaml:"software,omitempty"`
	OtherTags   []string `json:"otherTags,omitempty" yaml:"otherTags,omitempty"`
}

// GDALEntry is one GDAL metadata item.
type GDALEntry struct {
	Name   string `json:"name" yaml:"name"`
	Sample int    `json:"sample" yaml:"sample"`
	Value  string `json:"value" yaml:"value"`
}

// Summarize returns the summary of the IFD at index i.
func Summarize(i int, ifd *asynctiff.IFD) IFDSummary {
	s := IFDSummary{
		Index:           i,
		Width:           ifd.ImageWidth,
		Height:          ifd.ImageHeight,
		SamplesPerPixel: ifd.SamplesPerPixel,
		BitsPerSample:   ifd.BitsPerSample,
		DataType:        ifd.DataType().String(),
		Compression:     ifd.Compression.String(),
		Photometric:     ifd.PhotometricInterpretation.String(),
		Planar:          ifd.PlanarConfiguration.String(),
		Predictor:       ifd.Predictor.String(),
		Tiled:           ifd.IsTiled(),
		ChunkWidth:      ifd.ChunkWidth(),
		ChunkHeight:     ifd.ChunkHeight(),
		ChunksAcross:    ifd.ChunksAcross(),
		ChunksDown:      ifd.ChunksDown(),
		Chunks:          ifd.ChunkCount(),
		Mask:            ifd.PhotometricInterpretation == asynctiff.PhotometricTransparencyMask,
		NoData:          ifd.GDALNoData,
		Description:     ifd.ImageDescription,
		Software:        ifd.Software,
	}

	if cm := ifd.Colormap(); cm != nil {
		shape := cm.Shape()
		s.Colormap = &shape
	}

	if epsg, ok := ifd.EPSG(); ok {
		s.EPSG = epsg
	}
	if g := ifd.GeoKeyDirectory; g != nil {
		if g.Citation != nil {
			s.Citation = *g.Citation
		}
		if g.ProjCitation != nil {
			s.ProjCitation = *g.ProjCitation
		}
	}
	if t, ok := ifd.Transform(); ok {
		s.Transform = t[:]
	}
	if b, ok := ifd.Bounds(); ok {
		s.Bounds = []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
	}
	if items, err := ifd.GDALMetadataItems(); err == nil {
		for _, it := range items {
			s.GDAL = append(s.GDAL, GDALEntry{Name: it.Name, Sample: it.Sample, Value: it.Value})
		}
	}

	for tag := range ifd.Other {
		s.OtherTags = append(s.OtherTags, tag.String())
	}
	sort.Strings(s.OtherTags)

	return s
}

// SummarizeAll returns the summaries of all IFDs in t.
func SummarizeAll(t *asynctiff.TIFF) []IFDSummary {
	ifds := t.IFDs()
	out := make([]IFDSummary, len(ifds))
	for i, ifd := range ifds {
		out[i] = Summarize(i, ifd)
	}
	return out
}
