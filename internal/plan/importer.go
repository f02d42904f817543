package plan

import (
	"time"

	"github.com/districtr/districtr-v2-sub000/internal/geography"
)

// ImportRow is one raw input row of unknown granularity: the geo_id
// may be a parent unit, a child unit, or garbage to be filtered out.
type ImportRow struct {
	GeoID     string `json:"geo_id" binding:"required"`
	ZoneLabel string `json:"zone_label"`
}

// ImportResult reports what the import kept and what it dropped.
type ImportResult struct {
	Inserted       int64     `json:"inserted"`
	DroppedNull    int       `json:"dropped_null"`
	DroppedInvalid int       `json:"dropped_invalid"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type stagedImport struct {
	// zones holds the surviving geo_id/dense-zone pairs. A geo_id
	// repeated in the input keeps its last row, mirroring upsert.
	zones map[string]int
	// order preserves input order of surviving geo_ids so the final
	// insert is deterministic.
	order          []string
	droppedNull    int
	droppedInvalid int
}

// stageRows maps arbitrary zone labels to dense integers in first-seen
// order, starting at 1. Rows with an empty label are dropped and
// counted; rows whose dense zone would exceed numDistricts (when set)
// are dropped as import errors, never fatal to the batch.
func stageRows(rows []ImportRow, numDistricts *int) stagedImport {
	st := stagedImport{zones: make(map[string]int, len(rows))}
	labelZones := make(map[string]int)

	for _, row := range rows {
		if row.ZoneLabel == "" {
			st.droppedNull++
			continue
		}
		zone, ok := labelZones[row.ZoneLabel]
		if !ok {
			zone = len(labelZones) + 1
			labelZones[row.ZoneLabel] = zone
		}
		if numDistricts != nil && zone > *numDistricts {
			st.droppedInvalid++
			continue
		}
		if _, seen := st.zones[row.GeoID]; !seen {
			st.order = append(st.order, row.GeoID)
		}
		st.zones[row.GeoID] = zone
	}
	return st
}

// healStaged collapses every parent whose complete child set is staged
// with one uniform zone into a single parent-level pair, before any
// validity filtering. Healing first is what lets a uniform group of
// otherwise-unknown child ids still resolve to a known parent.
//
// Whether a parent with exactly one child is healed is a policy
// decision (healSingleChild); the observed reference behavior keeps
// such units at child level.
func healStaged(st *stagedImport, idx *geography.HierarchyIndex, healSingleChild bool) {
	byParent := make(map[string][]string)
	for geoID := range st.zones {
		if parent, ok := idx.ParentOf(geoID); ok {
			byParent[parent] = append(byParent[parent], geoID)
		}
	}

	for parent, staged := range byParent {
		all := idx.ChildrenOf(parent)
		if len(staged) != len(all) {
			continue
		}
		if len(all) == 1 && !healSingleChild {
			continue
		}
		zone := st.zones[staged[0]]
		uniform := true
		for _, child := range staged[1:] {
			if st.zones[child] != zone {
				uniform = false
				break
			}
		}
		if !uniform {
			continue
		}

		for _, child := range staged {
			delete(st.zones, child)
		}
		if _, already := st.zones[parent]; !already {
			st.order = append(st.order, parent)
		}
		st.zones[parent] = zone
	}
}

// assignments materializes the staged pairs in input order, keeping
// only geo_ids present in known (the authoritative geography filter).
// Filtered ids are counted as invalid.
func (st *stagedImport) assignments(docID string, known map[string]struct{}) []Assignment {
	rows := make([]Assignment, 0, len(st.zones))
	for _, geoID := range st.order {
		zone, ok := st.zones[geoID]
		if !ok {
			continue // consumed by healing
		}
		if _, exists := known[geoID]; !exists {
			st.droppedInvalid++
			continue
		}
		z := zone
		rows = append(rows, Assignment{DocumentID: docID, GeoID: geoID, Zone: &z})
	}
	return rows
}

func (st *stagedImport) geoIDs() []string {
	ids := make([]string, 0, len(st.zones))
	for _, geoID := range st.order {
		if _, ok := st.zones[geoID]; ok {
			ids = append(ids, geoID)
		}
	}
	return ids
}
