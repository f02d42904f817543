package plan

import (
	"testing"

	"github.com/districtr/districtr-v2-sub000/internal/geography"

	"github.com/stretchr/testify/assert"
)

// scenarioIndex builds the map A={a,e}, B={b,c,d}, C={f}.
func scenarioIndex() *geography.HierarchyIndex {
	return geography.NewHierarchyIndex([]geography.ParentChildEdge{
		{MapID: "m1", ParentPath: "A", ChildPath: "a"},
		{MapID: "m1", ParentPath: "A", ChildPath: "e"},
		{MapID: "m1", ParentPath: "B", ChildPath: "b"},
		{MapID: "m1", ParentPath: "B", ChildPath: "c"},
		{MapID: "m1", ParentPath: "B", ChildPath: "d"},
		{MapID: "m1", ParentPath: "C", ChildPath: "f"},
	})
}

func TestStageRows_DenseZoneNumberingIsFirstSeen(t *testing.T) {
	st := stageRows([]ImportRow{
		{GeoID: "x", ZoneLabel: "north"},
		{GeoID: "y", ZoneLabel: "south"},
		{GeoID: "z", ZoneLabel: "north"},
	}, nil)

	assert.Equal(t, 1, st.zones["x"])
	assert.Equal(t, 2, st.zones["y"])
	assert.Equal(t, 1, st.zones["z"]) // same label, same dense zone
}

func TestStageRows_DropsNullLabels(t *testing.T) {
	st := stageRows([]ImportRow{
		{GeoID: "x", ZoneLabel: "1"},
		{GeoID: "y", ZoneLabel: ""},
	}, nil)

	assert.Equal(t, 1, st.droppedNull)
	assert.NotContains(t, st.zones, "y")
}

func TestStageRows_EnforcesDistrictBound(t *testing.T) {
	two := 2
	st := stageRows([]ImportRow{
		{GeoID: "x", ZoneLabel: "1"},
		{GeoID: "y", ZoneLabel: "2"},
		{GeoID: "z", ZoneLabel: "3"},
	}, &two)

	assert.Equal(t, 1, st.droppedInvalid)
	assert.NotContains(t, st.zones, "z")
	assert.Len(t, st.zones, 2)
}

func TestStageRows_RepeatedGeoIDLastWins(t *testing.T) {
	st := stageRows([]ImportRow{
		{GeoID: "x", ZoneLabel: "1"},
		{GeoID: "x", ZoneLabel: "2"},
	}, nil)

	assert.Equal(t, 2, st.zones["x"])
	assert.Equal(t, []string{"x"}, st.order)
}

func TestHealStaged_Scenario(t *testing.T) {
	st := stageRows([]ImportRow{
		{GeoID: "a", ZoneLabel: "1"},
		{GeoID: "b", ZoneLabel: "2"},
		{GeoID: "c", ZoneLabel: "2"},
		{GeoID: "d", ZoneLabel: "2"},
		{GeoID: "e", ZoneLabel: "1"},
		{GeoID: "f", ZoneLabel: "3"},
	}, nil)

	healStaged(&st, scenarioIndex(), false)

	// A and B heal to parent level; C has a single child and the
	// default policy keeps f at child level
	assert.Equal(t, map[string]int{"A": 1, "B": 2, "f": 3}, st.zones)
}

func TestHealStaged_SingleChildPolicy(t *testing.T) {
	st := stageRows([]ImportRow{{GeoID: "f", ZoneLabel: "3"}}, nil)
	healStaged(&st, scenarioIndex(), true)
	assert.Equal(t, map[string]int{"C": 1}, st.zones)
}

func TestHealStaged_PartialGroupLeftShattered(t *testing.T) {
	st := stageRows([]ImportRow{
		{GeoID: "b", ZoneLabel: "2"},
		{GeoID: "c", ZoneLabel: "2"},
		// d missing: B must not heal
	}, nil)

	healStaged(&st, scenarioIndex(), false)
	assert.Equal(t, map[string]int{"b": 1, "c": 1}, st.zones)
}

func TestHealStaged_NonUniformGroupLeftShattered(t *testing.T) {
	st := stageRows([]ImportRow{
		{GeoID: "b", ZoneLabel: "1"},
		{GeoID: "c", ZoneLabel: "1"},
		{GeoID: "d", ZoneLabel: "2"},
	}, nil)

	healStaged(&st, scenarioIndex(), false)
	assert.NotContains(t, st.zones, "B")
	assert.Len(t, st.zones, 3)
}

func TestAssignments_FiltersUnknownGeoIDs(t *testing.T) {
	st := stageRows([]ImportRow{
		{GeoID: "known", ZoneLabel: "1"},
		{GeoID: "bogus", ZoneLabel: "1"},
	}, nil)

	rows := st.assignments("doc1", map[string]struct{}{"known": {}})
	assert.Len(t, rows, 1)
	assert.Equal(t, "known", rows[0].GeoID)
	assert.Equal(t, 1, st.droppedInvalid)
}
