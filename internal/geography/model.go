package geography

import (
	"time"
)

// Layer names a granularity of geography within a map.
const (
	LayerParent = "parent"
	LayerChild  = "child"
)

// MapConfiguration describes one redistricting base map. A map with a
// child layer is shatterable: parent units can be split into their
// child units while editing.
type MapConfiguration struct {
	ID           string  `gorm:"primaryKey" json:"id"`
	Name         string  `json:"name"`
	ParentLayer  string  `gorm:"not null" json:"parent_layer"`
	ChildLayer   *string `json:"child_layer"`
	NumDistricts *int    `json:"num_districts"`
	CreatedAt    time.Time
}

// Shatterable reports whether the map carries a child layer.
func (m *MapConfiguration) Shatterable() bool {
	return m.ChildLayer != nil && *m.ChildLayer != ""
}

// EffectiveLayerName returns the graph layer to use for connectivity
// queries given whether the document currently has child-level rows.
func (m *MapConfiguration) EffectiveLayerName(hasShatteredChildren bool) string {
	if m.Shatterable() && hasShatteredChildren {
		return *m.ChildLayer
	}
	return m.ParentLayer
}

// GeoUnit is immutable reference data: one geographic unit (census
// block, VTD, precinct) in one layer of one map. Population is carried
// so district totals can be aggregated without a geometry engine.
type GeoUnit struct {
	ID         uint   `gorm:"primaryKey"`
	MapID      string `gorm:"index:idx_geo_units_map_layer;uniqueIndex:idx_geo_units_map_geo" json:"map_id"`
	GeoID      string `gorm:"uniqueIndex:idx_geo_units_map_geo" json:"geo_id"`
	Layer      string `gorm:"index:idx_geo_units_map_layer" json:"layer"`
	Population int64  `json:"population"`
}

// ParentChildEdge is the covering relation between layers: each child
// geo_id maps to exactly one parent geo_id within a map. Computed once
// at map setup (geometric containment, external) and never mutated.
type ParentChildEdge struct {
	ID         uint   `gorm:"primaryKey"`
	MapID      string `gorm:"index;uniqueIndex:idx_edges_map_child" json:"map_id"`
	ParentPath string `gorm:"index" json:"parent_path"`
	ChildPath  string `gorm:"uniqueIndex:idx_edges_map_child" json:"child_path"`
}

func (MapConfiguration) TableName() string {
	return "map_configurations"
}

func (GeoUnit) TableName() string {
	return "geo_units"
}

func (ParentChildEdge) TableName() string {
	return "parent_child_edges"
}
