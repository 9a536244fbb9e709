package gibs

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// BBox is minx, miny, maxx, maxy in EPSG:4326 degrees
type BBox [4]float64

// WorldBounds is the full EPSG:4326 extent
var WorldBounds = BBox{-180, -90, 180, 90}

// AdjustBBox limits the longitude span to 360 degrees and clamps the box to
// the world bounds so GIBS never returns a repeated world.
func AdjustBBox(b BBox) BBox {
	minx, miny, maxx, maxy := b[0], b[1], b[2], b[3]

	if maxx-minx > 360 {
		maxx = minx + 360
		log.Printf("[GIBS] Longitude span too large, limiting to 360 degrees")
	}

	minx = max(WorldBounds[0], minx)
	miny = max(WorldBounds[1], miny)
	maxx = min(WorldBounds[2], maxx)
	maxy = min(WorldBounds[3], maxy)

	return BBox{minx, miny, maxx, maxy}
}

// Valid reports whether the box has a positive area
func (b BBox) Valid() bool {
	return b[2] > b[0] && b[3] > b[1]
}

// String formats the box as a WMS BBOX parameter
func (b BBox) String() string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// ParseBBox parses "minx,miny,maxx,maxy"
func ParseBBox(s string) (BBox, error) {
	var b BBox
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return b, fmt.Errorf("bbox must have 4 comma separated values, got %d", len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return b, fmt.Errorf("invalid bbox value %q: %w", p, err)
		}
		b[i] = v
	}
	return b, nil
}
