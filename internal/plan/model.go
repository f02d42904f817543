package plan

import (
	"errors"
	"time"
)

// Document is one redistricting plan built on a MapConfiguration.
type Document struct {
	ID        string `gorm:"primaryKey" json:"id"`
	MapID     string `gorm:"index;not null" json:"map_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assignment maps one geo_id to a zone within a document. The geo_id
// may live at either parent or child granularity; the frontier
// invariant guarantees never both along one parent/child chain.
// A NULL zone is a present-but-unassigned unit, which occurs for the
// siblings of a painted block inside a shattered parent.
type Assignment struct {
	DocumentID string `gorm:"primaryKey;size:64" json:"document_id"`
	GeoID      string `gorm:"primaryKey" json:"geo_id"`
	Zone       *int   `json:"zone"`
}

// DistrictUnion is the cached per-zone rollup: unit count and summed
// population. Derived data, recomputed when stale.
type DistrictUnion struct {
	DocumentID string    `gorm:"primaryKey" json:"document_id"`
	Zone       int       `gorm:"primaryKey" json:"zone"`
	UnitCount  int       `json:"unit_count"`
	TotalPop   int64     `json:"total_pop"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}

func (Assignment) TableName() string {
	return "assignments"
}

func (DistrictUnion) TableName() string {
	return "district_unions"
}

// Typed failures surfaced to callers; handlers map them to stable codes.
var (
	ErrConflict         = errors.New("target document already has assignments for these geo_ids")
	ErrNotShatterable   = errors.New("map has no child layer")
	ErrNoSuchParent     = errors.New("geo_id does not resolve to a parent unit")
	ErrCorruptHierarchy = errors.New("child references a parent missing from the hierarchy")
)
