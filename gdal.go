// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// GDALMetadataItem is one item in the GDAL metadata XML stored in tag 42112.
type GDALMetadataItem struct {
	Name   string
	Domain string
	Role   string

	// Sample is the band the item applies to, -1 for the whole dataset.
	Sample int

	Value string
}

type gdalMetadata struct {
	XMLName xml.Name      `xml:"GDALMetadata"`
	Items   []gdalItemXML `xml:"Item"`
}

type gdalItemXML struct {
	Attrs []xml.Attr `xml:",any,attr"`
	Value string     `xml:",chardata"`
}

// ParseGDALMetadata parses the GDAL metadata XML format.
func ParseGDALMetadata(s string) ([]GDALMetadataItem, error) {
	s = strings.TrimRight(s, "\x00")
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var md gdalMetadata
	if err := xml.Unmarshal([]byte(s), &md); err != nil {
		return nil, fmt.Errorf("failed to parse GDAL metadata: %w", err)
	}

	items := make([]GDALMetadataItem, 0, len(md.Items))
	for _, it := range md.Items {
		item := GDALMetadataItem{Sample: -1, Value: strings.TrimSpace(it.Value)}
		for _, attr := range it.Attrs {
			switch attr.Name.Local {
			case "name":
				item.Name = attr.Value
			case "domain":
				item.Domain = attr.Value
			case "role":
				item.Role = attr.Value
			case "sample":
				n, err := strconv.Atoi(attr.Value)
				if err != nil {
					return nil, fmt.Errorf("GDAL metadata item %q: invalid sample %q", item.Name, attr.Value)
				}
				item.Sample = n
			}
		}
		items = append(items, item)
	}

	return items, nil
}

// GDALMetadataItems returns the parsed GDALMetadata tag.
func (ifd *IFD) GDALMetadataItems() ([]GDALMetadataItem, error) {
	return ParseGDALMetadata(ifd.GDALMetadata)
}
