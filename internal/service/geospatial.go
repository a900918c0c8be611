package service

import (
	"math"

	"floodguard-be/pkg/protocol"
)

const earthRadiusKm = 6371.0

// HaversineKm is the great-circle distance between two points.
func HaversineKm(a, b protocol.Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// radiusBBox is a box that contains every point within radiusKm of center.
// It is used as an index-friendly prefilter before the exact distance test.
func radiusBBox(center protocol.Coordinate, radiusKm float64) protocol.BBox {
	dLat := radiusKm / 111.0
	cos := math.Cos(center.Lat * math.Pi / 180)
	dLon := 180.0
	if cos > 1e-6 {
		dLon = math.Min(180, radiusKm/(111.0*cos))
	}
	return protocol.BBox{
		{math.Max(-180, center.Lon-dLon), math.Max(-90, center.Lat-dLat)},
		{math.Min(180, center.Lon+dLon), math.Min(90, center.Lat+dLat)},
	}
}

// padBounds is the server-side map hint: the projects' extent plus a fixed
// margin in degrees. ok is false when no project has usable coordinates.
func padBounds(projects []protocol.Project, padding float64) (protocol.BBox, bool) {
	var box protocol.BBox
	found := false
	for _, p := range projects {
		if !p.Placeable() {
			continue
		}
		c := *p.Coordinate
		if !found {
			box = protocol.BBox{{c.Lon, c.Lat}, {c.Lon, c.Lat}}
			found = true
			continue
		}
		box[0][0] = math.Min(box[0][0], c.Lon)
		box[0][1] = math.Min(box[0][1], c.Lat)
		box[1][0] = math.Max(box[1][0], c.Lon)
		box[1][1] = math.Max(box[1][1], c.Lat)
	}
	if !found {
		return box, false
	}
	box[0][0] -= padding
	box[0][1] -= padding
	box[1][0] += padding
	box[1][1] += padding
	return box, true
}
