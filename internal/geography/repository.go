package geography

import (
	"context"

	"gorm.io/gorm"
)

// Repository is the read side of the authoritative geography tables.
type Repository interface {
	FindMapByID(ctx context.Context, mapID string) (*MapConfiguration, error)
	EdgesForMap(ctx context.Context, mapID string) ([]ParentChildEdge, error)
	HierarchyFor(ctx context.Context, mapID string) (*HierarchyIndex, error)
	// FilterKnownGeoIDs returns the subset of geoIDs that exist in the
	// given layers of the map ("" in layers means any layer).
	FilterKnownGeoIDs(ctx context.Context, mapID string, layers []string, geoIDs []string) (map[string]struct{}, error)
	PopulationByGeoID(ctx context.Context, mapID string, geoIDs []string) (map[string]int64, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new geography repository
func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) FindMapByID(ctx context.Context, mapID string) (*MapConfiguration, error) {
	var m MapConfiguration
	err := r.db.WithContext(ctx).First(&m, "id = ?", mapID).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *RepositoryImpl) EdgesForMap(ctx context.Context, mapID string) ([]ParentChildEdge, error) {
	var edges []ParentChildEdge
	err := r.db.WithContext(ctx).
		Where("map_id = ?", mapID).
		Find(&edges).Error
	return edges, err
}

func (r *RepositoryImpl) HierarchyFor(ctx context.Context, mapID string) (*HierarchyIndex, error) {
	edges, err := r.EdgesForMap(ctx, mapID)
	if err != nil {
		return nil, err
	}
	return NewHierarchyIndex(edges), nil
}

// chunkSize keeps IN lists comfortably under postgres parameter limits.
const chunkSize = 5000

func (r *RepositoryImpl) FilterKnownGeoIDs(ctx context.Context, mapID string, layers []string, geoIDs []string) (map[string]struct{}, error) {
	known := make(map[string]struct{}, len(geoIDs))
	for start := 0; start < len(geoIDs); start += chunkSize {
		end := min(start+chunkSize, len(geoIDs))

		q := r.db.WithContext(ctx).Model(&GeoUnit{}).
			Where("map_id = ? AND geo_id IN ?", mapID, geoIDs[start:end])
		if len(layers) > 0 {
			q = q.Where("layer IN ?", layers)
		}

		var found []string
		if err := q.Pluck("geo_id", &found).Error; err != nil {
			return nil, err
		}
		for _, id := range found {
			known[id] = struct{}{}
		}
	}
	return known, nil
}

func (r *RepositoryImpl) PopulationByGeoID(ctx context.Context, mapID string, geoIDs []string) (map[string]int64, error) {
	pops := make(map[string]int64, len(geoIDs))
	for start := 0; start < len(geoIDs); start += chunkSize {
		end := min(start+chunkSize, len(geoIDs))

		var rows []GeoUnit
		err := r.db.WithContext(ctx).
			Select("geo_id", "population").
			Where("map_id = ? AND geo_id IN ?", mapID, geoIDs[start:end]).
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, u := range rows {
			pops[u.GeoID] = u.Population
		}
	}
	return pops, nil
}
