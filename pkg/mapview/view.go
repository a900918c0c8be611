package mapview

import "floodguard-be/pkg/protocol"

// View is what the map renders for one state.
type View struct {
	Markers  []Marker
	Bounds   protocol.BBox
	Source   Source
	Unplaced int
}

// Derive computes markers and bounds for the current project set.
func Derive(projects []protocol.Project, hint *protocol.BBox, cellDeg float64) View {
	bounds, src := Fit(projects, hint)
	markers := Cluster(projects, cellDeg)

	placed := 0
	for _, m := range markers {
		placed += m.Size()
	}
	return View{
		Markers:  markers,
		Bounds:   bounds,
		Source:   src,
		Unplaced: len(projects) - placed,
	}
}

// Locate finds the marker and member index holding the project with id.
func (v View) Locate(id string) (Marker, int, bool) {
	for _, m := range v.Markers {
		for i, p := range m.Projects {
			if p.ID == id {
				return m, i, true
			}
		}
	}
	return Marker{}, 0, false
}

// Flatten lists placeable projects in marker order, the order the terminal
// client numbers them for selection.
func (v View) Flatten() []protocol.Project {
	var out []protocol.Project
	for _, m := range v.Markers {
		out = append(out, m.Projects...)
	}
	return out
}
