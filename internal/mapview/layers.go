package mapview

import "strings"

// ImageryLayer is a selectable daily true-color layer on the GIBS WMS.
type ImageryLayer struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// ReferenceLayer is an overlay drawn above the imagery at a fixed index.
type ReferenceLayer struct {
	Name       string  `json:"name"`
	Identifier string  `json:"identifier"`
	Index      int     `json:"index"`
	Opacity    float64 `json:"opacity"`
}

// PrimaryLayerIndex is the position of the imagery layer in the map stack
const PrimaryLayerIndex = 0

// ImageryLayers mirrors the most useful Worldview true-color options
var ImageryLayers = []ImageryLayer{
	{Name: "VIIRS SNPP True Color", Identifier: "VIIRS_SNPP_CorrectedReflectance_TrueColor"},
	{Name: "MODIS Aqua True Color", Identifier: "MODIS_Aqua_CorrectedReflectance_TrueColor"},
	{Name: "MODIS Terra True Color", Identifier: "MODIS_Terra_CorrectedReflectance_TrueColor"},
	{Name: "VIIRS NOAA-20 True Color", Identifier: "VIIRS_NOAA20_CorrectedReflectance_TrueColor"},
	{Name: "VIIRS NOAA-21 True Color", Identifier: "VIIRS_NOAA21_CorrectedReflectance_TrueColor"},
}

// ReferenceLayers are toggled by index from the reference controls
var ReferenceLayers = []ReferenceLayer{
	{Name: "Coastlines", Identifier: "Coastlines_15m", Index: 1, Opacity: 0.7},
	{Name: "Borders", Identifier: "Reference_Features_15m", Index: 2, Opacity: 0.7},
	{Name: "Labels", Identifier: "Reference_Labels_15m", Index: 3, Opacity: 0.8},
}

// DefaultImageryLayer is the layer shown on startup
var DefaultImageryLayer = ImageryLayers[0].Identifier

// FindImageryLayer looks a layer up by display name or WMS identifier.
func FindImageryLayer(nameOrID string) (ImageryLayer, bool) {
	for _, l := range ImageryLayers {
		if l.Identifier == nameOrID || strings.EqualFold(l.Name, nameOrID) {
			return l, true
		}
	}
	return ImageryLayer{}, false
}

// FindReferenceLayer returns the reference layer at a map index.
func FindReferenceLayer(index int) (ReferenceLayer, bool) {
	for _, l := range ReferenceLayers {
		if l.Index == index {
			return l, true
		}
	}
	return ReferenceLayer{}, false
}
