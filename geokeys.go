// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"fmt"
	"strings"
)

// GeoKey is a GeoTIFF key identifier.
type GeoKey uint16

// GeoKeys as defined by the GeoTIFF specification.
const (
	GeoKeyModelType       GeoKey = 1024
	GeoKeyRasterType      GeoKey = 1025
	GeoKeyCitation        GeoKey = 1026
	GeoKeyGeographicType  GeoKey = 2048
	GeoKeyGeogCitation    GeoKey = 2049
	GeoKeyGeodeticDatum   GeoKey = 2050
	GeoKeyPrimeMeridian   GeoKey = 2051
	GeoKeyGeogLinearUnits GeoKey = 2052
	GeoKeyGeogLinearSize  GeoKey = 2053
	GeoKeyGeogAngular     GeoKey = 2054
	GeoKeyGeogAngularSize GeoKey = 2055
	GeoKeyEllipsoid       GeoKey = 2056
	GeoKeySemiMajorAxis   GeoKey = 2057
	GeoKeySemiMinorAxis   GeoKey = 2058
	GeoKeyInvFlattening   GeoKey = 2059
	GeoKeyAzimuthUnits    GeoKey = 2060
	GeoKeyPrimeMeridianLg GeoKey = 2061

	GeoKeyProjectedType        GeoKey = 3072
	GeoKeyProjCitation         GeoKey = 3073
	GeoKeyProjection           GeoKey = 3074
	GeoKeyProjCoordTrans       GeoKey = 3075
	GeoKeyProjLinearUnits      GeoKey = 3076
	GeoKeyProjLinearUnitSize   GeoKey = 3077
	GeoKeyProjStdParallel1     GeoKey = 3078
	GeoKeyProjStdParallel2     GeoKey = 3079
	GeoKeyProjNatOriginLong    GeoKey = 3080
	GeoKeyProjNatOriginLat     GeoKey = 3081
	GeoKeyProjFalseEasting     GeoKey = 3082
	GeoKeyProjFalseNorthing    GeoKey = 3083
	GeoKeyProjFalseOriginLong  GeoKey = 3084
	GeoKeyProjFalseOriginLat   GeoKey = 3085
	GeoKeyProjFalseOriginEast  GeoKey = 3086
	GeoKeyProjFalseOriginNorth GeoKey = 3087
	GeoKeyProjCenterLong       GeoKey = 3088
	GeoKeyProjCenterLat        GeoKey = 3089
	GeoKeyProjCenterEasting    GeoKey = 3090
	GeoKeyProjCenterNorthing   GeoKey = 3091
	GeoKeyProjScaleAtNatOrigin GeoKey = 3092
	GeoKeyProjScaleAtCenter    GeoKey = 3093
	GeoKeyProjAzimuthAngle     GeoKey = 3094
	GeoKeyProjStraightVertPole GeoKey = 3095

	GeoKeyVertical         GeoKey = 4096
	GeoKeyVerticalCitation GeoKey = 4097
	GeoKeyVerticalDatum    GeoKey = 4098
	GeoKeyVerticalUnits    GeoKey = 4099
)

// GeoKeyDirectory holds the decoded GeoTIFF keys of one IFD.
// Keys not present in the file are nil.
type GeoKeyDirectory struct {
	Version, Revision, MinorRevision uint16

	ModelType  *uint16
	RasterType *uint16
	Citation   *string

	GeographicType        *uint16
	GeogCitation          *string
	GeogGeodeticDatum     *uint16
	GeogPrimeMeridian     *uint16
	GeogLinearUnits       *uint16
	GeogLinearUnitSize    *float64
	GeogAngularUnits      *uint16
	GeogAngularUnitSize   *float64
	GeogEllipsoid         *uint16
	GeogSemiMajorAxis     *float64
	GeogSemiMinorAxis     *float64
	GeogInvFlattening     *float64
	GeogAzimuthUnits      *uint16
	GeogPrimeMeridianLong *float64

	ProjectedType            *uint16
	ProjCitation             *string
	Projection               *uint16
	ProjCoordTrans           *uint16
	ProjLinearUnits          *uint16
	ProjLinearUnitSize       *float64
	ProjStdParallel1         *float64
	ProjStdParallel2         *float64
	ProjNatOriginLong        *float64
	ProjNatOriginLat         *float64
	ProjFalseEasting         *float64
	ProjFalseNorthing        *float64
	ProjFalseOriginLong      *float64
	ProjFalseOriginLat       *float64
	ProjFalseOriginEasting   *float64
	ProjFalseOriginNorthing  *float64
	ProjCenterLong           *float64
	ProjCenterLat            *float64
	ProjCenterEasting        *float64
	ProjCenterNorthing       *float64
	ProjScaleAtNatOrigin     *float64
	ProjScaleAtCenter        *float64
	ProjAzimuthAngle         *float64
	ProjStraightVertPoleLong *float64

	Vertical         *uint16
	VerticalCitation *string
	VerticalDatum    *uint16
	VerticalUnits    *uint16

	// Other holds keys not listed above.
	// Values are uint16, []uint16, float64, []float64 or string.
	Other map[GeoKey]any
}

// EPSG returns the projected or geographic EPSG code, if set.
func (g *GeoKeyDirectory) EPSG() (uint16, bool) {
	if g == nil {
		return 0, false
	}
	if g.ProjectedType != nil && *g.ProjectedType != 32767 {
		return *g.ProjectedType, true
	}
	if g.GeographicType != nil && *g.GeographicType != 32767 {
		return *g.GeographicType, true
	}
	return 0, false
}

// ParseGeoKeyDirectory decodes the GeoKeyDirectory, GeoDoubleParams and
// GeoAsciiParams tag values into a GeoKeyDirectory.
func ParseGeoKeyDirectory(shorts []uint16, doubles []float64, ascii string) (*GeoKeyDirectory, error) {
	if len(shorts) < 4 {
		return nil, newFormatErrorf("GeoKey directory too short: %d values", len(shorts))
	}

	g := &GeoKeyDirectory{
		Version:       shorts[0],
		Revision:      shorts[1],
		MinorRevision: shorts[2],
	}

	numKeys := int(shorts[3])
	if 4+numKeys*4 > len(shorts) {
		return nil, newFormatErrorf("GeoKey directory declares %d keys but holds only %d values", numKeys, len(shorts))
	}

	for i := 0; i < numKeys; i++ {
		entry := shorts[4+i*4 : 8+i*4]
		key, location, count, valueOrIndex := GeoKey(entry[0]), Tag(entry[1]), int(entry[2]), int(entry[3])

		var value any
		switch location {
		case 0:
			value = uint16(valueOrIndex)
		case TagGeoKeyDirectory:
			if valueOrIndex+count > len(shorts) {
				return nil, newFormatErrorf("GeoKey %d: short index %d+%d out of bounds (%d)", key, valueOrIndex, count, len(shorts))
			}
			vals := shorts[valueOrIndex : valueOrIndex+count]
			if count == 1 {
				value = vals[0]
			} else {
				value = append([]uint16(nil), vals...)
			}
		case TagGeoDoubleParams:
			if valueOrIndex+count > len(doubles) {
				return nil, newFormatErrorf("GeoKey %d: double index %d+%d out of bounds (%d)", key, valueOrIndex, count, len(doubles))
			}
			vals := doubles[valueOrIndex : valueOrIndex+count]
			if count == 1 {
				value = vals[0]
			} else {
				value = append([]float64(nil), vals...)
			}
		case TagGeoASCIIParams:
			if valueOrIndex+count > len(ascii) {
				return nil, newFormatErrorf("GeoKey %d: ascii index %d+%d out of bounds (%d)", key, valueOrIndex, count, len(ascii))
			}
			s := ascii[valueOrIndex : valueOrIndex+count]
			value = strings.TrimRight(s, "|\x00")
		default:
			return nil, newFormatErrorf("GeoKey %d: unknown location tag %d", key, location)
		}

		if err := g.set(key, value); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func (g *GeoKeyDirectory) set(key GeoKey, v any) error {
	short := func(dst **uint16) error {
		u, ok := v.(uint16)
		if !ok {
			return newFormatErrorf("GeoKey %d: expected a short value, got %T", key, v)
		}
		*dst = &u
		return nil
	}
	double := func(dst **float64) error {
		switch f := v.(type) {
		case float64:
			*dst = &f
		case uint16:
			ff := float64(f)
			*dst = &ff
		default:
			return newFormatErrorf("GeoKey %d: expected a double value, got %T", key, v)
		}
		return nil
	}
	str := func(dst **string) error {
		s, ok := v.(string)
		if !ok {
			return newFormatErrorf("GeoKey %d: expected an ASCII value, got %T", key, v)
		}
		*dst = &s
		return nil
	}

	switch key {
	case GeoKeyModelType:
		return short(&g.ModelType)
	case GeoKeyRasterType:
		return short(&g.RasterType)
	case GeoKeyCitation:
		return str(&g.Citation)
	case GeoKeyGeographicType:
		return short(&g.GeographicType)
	case GeoKeyGeogCitation:
		return str(&g.GeogCitation)
	case GeoKeyGeodeticDatum:
		return short(&g.GeogGeodeticDatum)
	case GeoKeyPrimeMeridian:
		return short(&g.GeogPrimeMeridian)
	case GeoKeyGeogLinearUnits:
		return short(&g.GeogLinearUnits)
	case GeoKeyGeogLinearSize:
		return double(&g.GeogLinearUnitSize)
	case GeoKeyGeogAngular:
		return short(&g.GeogAngularUnits)
	case GeoKeyGeogAngularSize:
		return double(&g.GeogAngularUnitSize)
	case GeoKeyEllipsoid:
		return short(&g.GeogEllipsoid)
	case GeoKeySemiMajorAxis:
		return double(&g.GeogSemiMajorAxis)
	case GeoKeySemiMinorAxis:
		return double(&g.GeogSemiMinorAxis)
	case GeoKeyInvFlattening:
		return double(&g.GeogInvFlattening)
	case GeoKeyAzimuthUnits:
		return short(&g.GeogAzimuthUnits)
	case GeoKeyPrimeMeridianLg:
		return double(&g.GeogPrimeMeridianLong)
	case GeoKeyProjectedType:
		return short(&g.ProjectedType)
	case GeoKeyProjCitation:
		return str(&g.ProjCitation)
	case GeoKeyProjection:
		return short(&g.Projection)
	case GeoKeyProjCoordTrans:
		return short(&g.ProjCoordTrans)
	case GeoKeyProjLinearUnits:
		return short(&g.ProjLinearUnits)
	case GeoKeyProjLinearUnitSize:
		return double(&g.ProjLinearUnitSize)
	case GeoKeyProjStdParallel1:
		return double(&g.ProjStdParallel1)
	case GeoKeyProjStdParallel2:
		return double(&g.ProjStdParallel2)
	case GeoKeyProjNatOriginLong:
		return double(&g.ProjNatOriginLong)
	case GeoKeyProjNatOriginLat:
		return double(&g.ProjNatOriginLat)
	case GeoKeyProjFalseEasting:
		return double(&g.ProjFalseEasting)
	case GeoKeyProjFalseNorthing:
		return double(&g.ProjFalseNorthing)
	case GeoKeyProjFalseOriginLong:
		return double(&g.ProjFalseOriginLong)
	case GeoKeyProjFalseOriginLat:
		return double(&g.ProjFalseOriginLat)
	case GeoKeyProjFalseOriginEast:
		return double(&g.ProjFalseOriginEasting)
	case GeoKeyProjFalseOriginNorth:
		return double(&g.ProjFalseOriginNorthing)
	case GeoKeyProjCenterLong:
		return double(&g.ProjCenterLong)
	case GeoKeyProjCenterLat:
		return double(&g.ProjCenterLat)
	case GeoKeyProjCenterEasting:
		return double(&g.ProjCenterEasting)
	case GeoKeyProjCenterNorthing:
		return double(&g.ProjCenterNorthing)
	case GeoKeyProjScaleAtNatOrigin:
		return double(&g.ProjScaleAtNatOrigin)
	case GeoKeyProjScaleAtCenter:
		return double(&g.ProjScaleAtCenter)
	case GeoKeyProjAzimuthAngle:
		return double(&g.ProjAzimuthAngle)
	case GeoKeyProjStraightVertPole:
		return double(&g.ProjStraightVertPoleLong)
	case GeoKeyVertical:
		return short(&g.Vertical)
	case GeoKeyVerticalCitation:
		return str(&g.VerticalCitation)
	case GeoKeyVerticalDatum:
		return short(&g.VerticalDatum)
	case GeoKeyVerticalUnits:
		return short(&g.VerticalUnits)
	default:
		if g.Other == nil {
			g.Other = make(map[GeoKey]any)
		}
		g.Other[key] = v
		return nil
	}
}

func (k GeoKey) String() string {
	return fmt.Sprintf("GeoKey(%d)", uint16(k))
}
