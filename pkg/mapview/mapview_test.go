package mapview

import (
	"testing"

	"floodguard-be/pkg/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(id string, lat, lon float64) protocol.Project {
	return protocol.Project{ID: id, Coordinate: &protocol.Coordinate{Lat: lat, Lon: lon}}
}

func assertBox(t *testing.T, want, got protocol.BBox) {
	t.Helper()
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, want[i][j], got[i][j], 1e-9, "bbox[%d][%d]", i, j)
		}
	}
}

func TestComputeBounds(t *testing.T) {
	hint := protocol.BBox{{119.5, 15.8}, {120.5, 16.5}}

	tests := []struct {
		name     string
		projects []protocol.Project
		hint     *protocol.BBox
		want     protocol.BBox
		source   Source
	}{
		{
			name:     "padded span",
			projects: []protocol.Project{at("a", 16.0, 120.0), at("b", 16.5, 121.0)},
			hint:     &hint,
			want:     protocol.BBox{{119.9, 15.95}, {121.1, 16.55}},
			source:   SourceProjects,
		},
		{
			name:     "single project gets minimum padding",
			projects: []protocol.Project{at("a", 16.0, 120.0)},
			want:     protocol.BBox{{119.95, 15.95}, {120.05, 16.05}},
			source:   SourceProjects,
		},
		{
			name:     "no coordinates uses hint",
			projects: []protocol.Project{{ID: "x"}, at("zero", 0, 0)},
			hint:     &hint,
			want:     hint,
			source:   SourceHint,
		},
		{
			name:   "nothing falls back to default region",
			want:   DefaultRegion,
			source: SourceDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, src := Fit(tt.projects, tt.hint)
			assertBox(t, tt.want, got)
			assert.Equal(t, tt.source, src)
		})
	}
}

func TestComputeBoundsIsDeterministic(t *testing.T) {
	projects := []protocol.Project{at("a", 15.9, 119.8), at("b", 16.3, 120.4), {ID: "c"}}
	first := ComputeBounds(projects, nil)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ComputeBounds(projects, nil))
	}
}

func TestClusterGroupsByCell(t *testing.T) {
	projects := []protocol.Project{
		at("north", 16.40, 120.10),
		at("a", 16.01, 120.01),
		{ID: "unplaced"},
		at("b", 16.03, 120.05),
	}

	markers := Cluster(projects, 0.25)
	require.Len(t, markers, 2)

	assert.Equal(t, 2, markers[0].Size())
	assert.Equal(t, "a", markers[0].Projects[0].ID)
	assert.Equal(t, "b", markers[0].Projects[1].ID)
	assert.InDelta(t, 16.02, markers[0].Center.Lat, 1e-9)
	assert.InDelta(t, 120.03, markers[0].Center.Lon, 1e-9)

	assert.Equal(t, "north", markers[1].Projects[0].ID)
}

func TestMarkerActivate(t *testing.T) {
	m := Marker{Projects: []protocol.Project{at("a", 16, 120), at("b", 16, 120)}}

	var picked []string
	sel := SelectorFunc(func(p protocol.Project) { picked = append(picked, p.ID) })

	require.NoError(t, m.Activate(sel, 1))
	assert.ErrorIs(t, m.Activate(sel, 2), ErrNoSuchProject)
	assert.Equal(t, []string{"b"}, picked)
}

func TestDerive(t *testing.T) {
	projects := []protocol.Project{at("a", 16.0, 120.0), {ID: "b"}, at("c", 17.0, 121.0)}
	v := Derive(projects, nil, DefaultCellDeg)

	assert.Equal(t, SourceProjects, v.Source)
	assert.Equal(t, 1, v.Unplaced)
	assert.Len(t, v.Flatten(), 2)

	m, i, ok := v.Locate("c")
	require.True(t, ok)
	assert.Equal(t, "c", m.Projects[i].ID)

	_, _, ok = v.Locate("b")
	assert.False(t, ok)
}
