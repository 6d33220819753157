// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import "fmt"

// Tag is a TIFF tag identifier.
type Tag uint16

// Tags recognized by the IFD parser.
const (
	TagNewSubfileType            Tag = 254
	TagImageWidth                Tag = 256
	TagImageLength               Tag = 257
	TagBitsPerSample             Tag = 258
	TagCompression               Tag = 259
	TagPhotometricInterpretation Tag = 262
	TagDocumentName              Tag = 269
	TagImageDescription          Tag = 270
	TagStripOffsets              Tag = 273
	TagOrientation               Tag = 274
	TagSamplesPerPixel           Tag = 277
	TagRowsPerStrip              Tag = 278
	TagStripByteCounts           Tag = 279
	TagMinSampleValue            Tag = 280
	TagMaxSampleValue            Tag = 281
	TagXResolution               Tag = 282
	TagYResolution               Tag = 283
	TagPlanarConfiguration       Tag = 284
	TagResolutionUnit            Tag = 296
	TagSoftware                  Tag = 305
	TagDateTime                  Tag = 306
	TagArtist                    Tag = 315
	TagHostComputer              Tag = 316
	TagPredictor                 Tag = 317
	TagColorMap                  Tag = 320
	TagTileWidth                 Tag = 322
	TagTileLength                Tag = 323
	TagTileOffsets               Tag = 324
	TagTileByteCounts            Tag = 325
	TagExtraSamples              Tag = 338
	TagSampleFormat              Tag = 339
	TagJPEGTables                Tag = 347
	TagCopyright                 Tag = 33432
	TagModelPixelScale           Tag = 33550
	TagModelTiepoint             Tag = 33922
	TagModelTransformation       Tag = 34264
	TagGeoKeyDirectory           Tag = 34735
	TagGeoDoubleParams           Tag = 34736
	TagGeoASCIIParams            Tag = 34737
	TagGDALMetadata              Tag = 42112
	TagGDALNoData                Tag = 42113
)

var tagNames = map[Tag]string{
	TagNewSubfileType:            "NewSubfileType",
	TagImageWidth:                "ImageWidth",
	TagImageLength:               "ImageLength",
	TagBitsPerSample:             "BitsPerSample",
	TagCompression:               "Compression",
	TagPhotometricInterpretation: "PhotometricInterpretation",
	TagDocumentName:              "DocumentName",
	TagImageDescription:          "ImageDescription",
	TagStripOffsets:              "StripOffsets",
	TagOrientation:               "Orientation",
	TagSamplesPerPixel:           "SamplesPerPixel",
	TagRowsPerStrip:              "RowsPerStrip",
	TagStripByteCounts:           "StripByteCounts",
	TagMinSampleValue:            "MinSampleValue",
	TagMaxSampleValue:            "MaxSampleValue",
	TagXResolution:               "XResolution",
	TagYResolution:               "YResolution",
	TagPlanarConfiguration:       "PlanarConfiguration",
	TagResolutionUnit:            "ResolutionUnit",
	TagSoftware:                  "Software",
	TagDateTime:                  "DateTime",
	TagArtist:                    "Artist",
	TagHostComputer:              "HostComputer",
	TagPredictor:                 "Predictor",
	TagColorMap:                  "ColorMap",
	TagTileWidth:                 "TileWidth",
	TagTileLength:                "TileLength",
	TagTileOffsets:               "TileOffsets",
	TagTileByteCounts:            "TileByteCounts",
	TagExtraSamples:              "ExtraSamples",
	TagSampleFormat:              "SampleFormat",
	TagJPEGTables:                "JPEGTables",
	TagCopyright:                 "Copyright",
	TagModelPixelScale:           "ModelPixelScale",
	TagModelTiepoint:             "ModelTiepoint",
	TagModelTransformation:       "ModelTransformation",
	TagGeoKeyDirectory:           "GeoKeyDirectory",
	TagGeoDoubleParams:           "GeoDoubleParams",
	TagGeoASCIIParams:            "GeoAsciiParams",
	TagGDALMetadata:              "GDALMetadata",
	TagGDALNoData:                "GDALNoData",
}

// UnknownPrefix is used as prefix for the names of unknown tags.
const UnknownPrefix = "UnknownTag_"

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return fmt.Sprintf("%s0x%x", UnknownPrefix, uint16(t))
}

// Compression is the compression method of the image data.
type Compression uint16

const (
	CompressionNone       Compression = 1
	CompressionHuffman    Compression = 2
	CompressionFax3       Compression = 3
	CompressionFax4       Compression = 4
	CompressionLZW        Compression = 5
	CompressionJPEG       Compression = 6
	CompressionModernJPEG Compression = 7
	CompressionDeflate    Compression = 8
	CompressionPackBits   Compression = 32773
	CompressionOldDeflate Compression = 32946
	CompressionJPEG2000   Compression = 34712
	CompressionLERC       Compression = 34887
	CompressionLZMA       Compression = 34925
	CompressionZSTD       Compression = 50000
	CompressionWebP       Compression = 50001
	CompressionJPEGXL     Compression = 50002
)

var compressionNames = map[Compression]string{
	CompressionNone:       "None",
	CompressionHuffman:    "Huffman",
	CompressionFax3:       "Fax3",
	CompressionFax4:       "Fax4",
	CompressionLZW:        "LZW",
	CompressionJPEG:       "JPEG",
	CompressionModernJPEG: "ModernJPEG",
	CompressionDeflate:    "Deflate",
	CompressionPackBits:   "PackBits",
	CompressionOldDeflate: "OldDeflate",
	CompressionJPEG2000:   "JPEG2000",
	CompressionLERC:       "LERC",
	CompressionLZMA:       "LZMA",
	CompressionZSTD:       "ZSTD",
	CompressionWebP:       "WebP",
	CompressionJPEGXL:     "JPEGXL",
}

func (c Compression) String() string {
	if s, ok := compressionNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Compression(%d)", uint16(c))
}

// Photometric is the photometric interpretation of the image data.
type Photometric uint16

const (
	PhotometricWhiteIsZero      Photometric = 0
	PhotometricBlackIsZero      Photometric = 1
	PhotometricRGB              Photometric = 2
	PhotometricPalette          Photometric = 3
	PhotometricTransparencyMask Photometric = 4
	PhotometricCMYK             Photometric = 5
	PhotometricYCbCr            Photometric = 6
	PhotometricCIELab           Photometric = 8
)

var photometricNames = map[Photometric]string{
	PhotometricWhiteIsZero:      "WhiteIsZero",
	PhotometricBlackIsZero:      "BlackIsZero",
	PhotometricRGB:              "RGB",
	PhotometricPalette:          "Palette",
	PhotometricTransparencyMask: "TransparencyMask",
	PhotometricCMYK:             "CMYK",
	PhotometricYCbCr:            "YCbCr",
	PhotometricCIELab:           "CIELab",
}

func (p Photometric) String() string {
	if s, ok := photometricNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Photometric(%d)", uint16(p))
}

// PlanarConfiguration tells whether samples are interleaved per pixel or
// stored as separate planes.
type PlanarConfiguration uint16

const (
	PlanarChunky PlanarConfiguration = 1
	PlanarPlanar PlanarConfiguration = 2
)

func (p PlanarConfiguration) String() string {
	switch p {
	case PlanarChunky:
		return "Chunky"
	case PlanarPlanar:
		return "Planar"
	default:
		return fmt.Sprintf("PlanarConfiguration(%d)", uint16(p))
	}
}

// Predictor is the transform applied before compression.
type Predictor uint16

const (
	PredictorNone          Predictor = 1
	PredictorHorizontal    Predictor = 2
	PredictorFloatingPoint Predictor = 3
)

func (p Predictor) String() string {
	switch p {
	case PredictorNone:
		return "None"
	case PredictorHorizontal:
		return "Horizontal"
	case PredictorFloatingPoint:
		return "FloatingPoint"
	default:
		return fmt.Sprintf("Predictor(%d)", uint16(p))
	}
}

// SampleFormat tells how to interpret each data sample in a pixel.
type SampleFormat uint16

const (
	SampleFormatUint  SampleFormat = 1
	SampleFormatInt   SampleFormat = 2
	SampleFormatFloat SampleFormat = 3
	SampleFormatVoid  SampleFormat = 4
)

func (s SampleFormat) String() string {
	switch s {
	case SampleFormatUint:
		return "Uint"
	case SampleFormatInt:
		return "Int"
	case SampleFormatFloat:
		return "Float"
	case SampleFormatVoid:
		return "Void"
	default:
		return fmt.Sprintf("SampleFormat(%d)", uint16(s))
	}
}

// ResolutionUnit is the unit of XResolution and YResolution.
type ResolutionUnit uint16

const (
	ResolutionUnitNone       ResolutionUnit = 1
	ResolutionUnitInch       ResolutionUnit = 2
	ResolutionUnitCentimeter ResolutionUnit = 3
)

func (r ResolutionUnit) String() string {
	switch r {
	case ResolutionUnitNone:
		return "None"
	case ResolutionUnitInch:
		return "Inch"
	case ResolutionUnitCentimeter:
		return "Centimeter"
	default:
		return fmt.Sprintf("ResolutionUnit(%d)", uint16(r))
	}
}
