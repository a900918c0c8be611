package mapview

import (
	"errors"
	"math"
	"sort"

	"floodguard-be/pkg/protocol"
)

// DefaultCellDeg is the clustering grid size in degrees.
const DefaultCellDeg = 0.25

var ErrNoSuchProject = errors.New("mapview: marker has no project at that index")

// Selector receives a project picked on the map.
type Selector interface {
	SelectProject(p protocol.Project)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(p protocol.Project)

func (f SelectorFunc) SelectProject(p protocol.Project) { f(p) }

// Marker is one rendered pin. A marker with more than one project is a
// cluster; its center is the mean of its members.
type Marker struct {
	Center   protocol.Coordinate
	Projects []protocol.Project
}

// Size is the number of projects behind the marker.
func (m Marker) Size() int { return len(m.Projects) }

// Activate reports the i-th project of the marker to sel.
func (m Marker) Activate(sel Selector, i int) error {
	if i < 0 || i >= len(m.Projects) {
		return ErrNoSuchProject
	}
	sel.SelectProject(m.Projects[i])
	return nil
}

type cellKey struct {
	row, col int
}

// Cluster groups placeable projects into grid cells of cellDeg degrees.
// Output order is by cell (south to north, then west to east); projects keep
// their input order inside a cell. A non-positive cellDeg uses
// DefaultCellDeg.
func Cluster(projects []protocol.Project, cellDeg float64) []Marker {
	if cellDeg <= 0 {
		cellDeg = DefaultCellDeg
	}

	cells := make(map[cellKey][]protocol.Project)
	var keys []cellKey
	for _, p := range projects {
		if !p.Placeable() {
			continue
		}
		k := cellKey{
			row: int(math.Floor(p.Coordinate.Lat / cellDeg)),
			col: int(math.Floor(p.Coordinate.Lon / cellDeg)),
		}
		if _, ok := cells[k]; !ok {
			keys = append(keys, k)
		}
		cells[k] = append(cells[k], p)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].row != keys[j].row {
			return keys[i].row < keys[j].row
		}
		return keys[i].col < keys[j].col
	})

	markers := make([]Marker, 0, len(keys))
	for _, k := range keys {
		members := cells[k]
		var lat, lon float64
		for _, p := range members {
			lat += p.Coordinate.Lat
			lon += p.Coordinate.Lon
		}
		n := float64(len(members))
		markers = append(markers, Marker{
			Center:   protocol.Coordinate{Lat: lat / n, Lon: lon / n},
			Projects: members,
		})
	}
	return markers
}
