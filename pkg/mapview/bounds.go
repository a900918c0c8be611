// Package mapview derives the map viewport and marker set from a project
// collection. Everything here is a pure function of its inputs.
package mapview

import (
	"math"

	"floodguard-be/pkg/protocol"
)

const (
	// PaddingFraction expands the fitted box by this share of its span on
	// every side.
	PaddingFraction = 0.1
	// MinPadding keeps a single project, or a tight cluster, from fitting to
	// a zero-area box.
	MinPadding = 0.05
)

// DefaultRegion covers the Philippine archipelago.
var DefaultRegion = protocol.BBox{{116.9, 4.6}, {126.6, 21.1}}

// Source tells which input determined the bounds.
type Source string

const (
	SourceProjects Source = "projects"
	SourceHint     Source = "hint"
	SourceDefault  Source = "default"
)

// ComputeBounds returns the padded box around every placeable project.
// With no placeable project it falls back to hint, then to DefaultRegion.
func ComputeBounds(projects []protocol.Project, hint *protocol.BBox) protocol.BBox {
	box, _ := Fit(projects, hint)
	return box
}

// Fit is ComputeBounds that also reports where the box came from.
func Fit(projects []protocol.Project, hint *protocol.BBox) (protocol.BBox, Source) {
	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	placed := 0
	for _, p := range projects {
		if !p.Placeable() {
			continue
		}
		c := p.Coordinate
		minLon = math.Min(minLon, c.Lon)
		maxLon = math.Max(maxLon, c.Lon)
		minLat = math.Min(minLat, c.Lat)
		maxLat = math.Max(maxLat, c.Lat)
		placed++
	}

	if placed == 0 {
		if hint != nil {
			return *hint, SourceHint
		}
		return DefaultRegion, SourceDefault
	}

	padLon := math.Max((maxLon-minLon)*PaddingFraction, MinPadding)
	padLat := math.Max((maxLat-minLat)*PaddingFraction, MinPadding)
	return protocol.BBox{
		{math.Max(minLon-padLon, -180), math.Max(minLat-padLat, -90)},
		{math.Min(maxLon+padLon, 180), math.Min(maxLat+padLat, 90)},
	}, SourceProjects
}
