package plan

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssignmentRepository owns the per-document assignment rows plus the
// document and union tables. Every mutating call runs in a single
// transaction and bumps the owning document's updated_at, so a crash
// mid-operation can never leave a half-applied shatter or import.
type AssignmentRepository interface {
	CreateDocument(ctx context.Context, doc *Document) error
	FindDocumentByID(ctx context.Context, docID string) (*Document, error)
	DeleteDocument(ctx context.Context, docID string) error

	Upsert(ctx context.Context, docID string, rows []Assignment) (int64, time.Time, error)
	// Replace swaps the document's entire assignment set for rows in one
	// transaction; the import path uses it so stale rows at the other
	// granularity can never survive alongside fresh ones.
	Replace(ctx context.Context, docID string, rows []Assignment) (int64, time.Time, error)
	DuplicateInto(ctx context.Context, fromDoc, toDoc string) (int64, time.Time, error)
	Reset(ctx context.Context, docID string) (time.Time, error)
	Read(ctx context.Context, docID string) (map[string]*int, error)

	// RowsForGeoIDs reads the assignment rows for a specific id set.
	RowsForGeoIDs(ctx context.Context, docID string, geoIDs []string) ([]Assignment, error)
	// SwapRows deletes and inserts rows atomically; the shatter/heal
	// row exchange both compile down to this.
	SwapRows(ctx context.Context, docID string, removeGeoIDs []string, insert []Assignment) (time.Time, error)

	// ReadZones groups assigned geo_ids by zone, skipping NULL zones.
	ReadZones(ctx context.Context, docID string) (map[int][]string, error)
	// HasChildAssignments reports whether any assignment row sits at
	// child granularity for the given map.
	HasChildAssignments(ctx context.Context, docID, mapID string) (bool, error)

	UnionsFor(ctx context.Context, docID string) ([]DistrictUnion, error)
	ReplaceUnions(ctx context.Context, docID string, unions []DistrictUnion) error
}

type AssignmentRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new assignment repository
func NewRepository(db *gorm.DB) AssignmentRepository {
	return &AssignmentRepositoryImpl{db: db}
}

// deleteChunk keeps IN lists under postgres parameter limits.
const deleteChunk = 5000

func (r *AssignmentRepositoryImpl) CreateDocument(ctx context.Context, doc *Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *AssignmentRepositoryImpl) FindDocumentByID(ctx context.Context, docID string) (*Document, error) {
	var doc Document
	err := r.db.WithContext(ctx).First(&doc, "id = ?", docID).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *AssignmentRepositoryImpl) DeleteDocument(ctx context.Context, docID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", docID).Delete(&Assignment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", docID).Delete(&DistrictUnion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Document{}, "id = ?", docID).Error
	})
}

// touchDocument bumps updated_at inside the caller's transaction.
func touchDocument(tx *gorm.DB, docID string, now time.Time) error {
	return tx.Model(&Document{}).
		Where("id = ?", docID).
		Update("updated_at", now).Error
}

func (r *AssignmentRepositoryImpl) Upsert(ctx context.Context, docID string, rows []Assignment) (int64, time.Time, error) {
	now := time.Now().UTC()
	if len(rows) == 0 {
		return 0, now, nil
	}
	for i := range rows {
		rows[i].DocumentID = docID
	}

	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}, {Name: "geo_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"zone"}),
		}).CreateInBatches(rows, 1000)
		if res.Error != nil {
			return res.Error
		}
		count = int64(len(rows))
		return touchDocument(tx, docID, now)
	})
	return count, now, err
}

func (r *AssignmentRepositoryImpl) Replace(ctx context.Context, docID string, rows []Assignment) (int64, time.Time, error) {
	now := time.Now().UTC()
	for i := range rows {
		rows[i].DocumentID = docID
	}

	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", docID).Delete(&Assignment{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 1000).Error; err != nil {
				return err
			}
		}
		count = int64(len(rows))
		return touchDocument(tx, docID, now)
	})
	return count, now, err
}

func (r *AssignmentRepositoryImpl) DuplicateInto(ctx context.Context, fromDoc, toDoc string) (int64, time.Time, error) {
	now := time.Now().UTC()
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var overlap int64
		err := tx.Raw(`
			SELECT COUNT(*)
			FROM assignments t
			JOIN assignments f ON f.geo_id = t.geo_id AND f.document_id = ?
			WHERE t.document_id = ?
		`, fromDoc, toDoc).Scan(&overlap).Error
		if err != nil {
			return err
		}
		if overlap > 0 {
			return ErrConflict
		}

		res := tx.Exec(`
			INSERT INTO assignments (document_id, geo_id, zone)
			SELECT ?, geo_id, zone
			FROM assignments
			WHERE document_id = ?
		`, toDoc, fromDoc)
		if res.Error != nil {
			return res.Error
		}
		count = res.RowsAffected
		return touchDocument(tx, toDoc, now)
	})
	return count, now, err
}

func (r *AssignmentRepositoryImpl) Reset(ctx context.Context, docID string) (time.Time, error) {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", docID).Delete(&Assignment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", docID).Delete(&DistrictUnion{}).Error; err != nil {
			return err
		}
		return touchDocument(tx, docID, now)
	})
	return now, err
}

func (r *AssignmentRepositoryImpl) Read(ctx context.Context, docID string) (map[string]*int, error) {
	var rows []Assignment
	err := r.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]*int, len(rows))
	for _, row := range rows {
		out[row.GeoID] = row.Zone
	}
	return out, nil
}

func (r *AssignmentRepositoryImpl) RowsForGeoIDs(ctx context.Context, docID string, geoIDs []string) ([]Assignment, error) {
	var all []Assignment
	for start := 0; start < len(geoIDs); start += deleteChunk {
		end := min(start+deleteChunk, len(geoIDs))

		var rows []Assignment
		err := r.db.WithContext(ctx).
			Where("document_id = ? AND geo_id IN ?", docID, geoIDs[start:end]).
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

func (r *AssignmentRepositoryImpl) SwapRows(ctx context.Context, docID string, removeGeoIDs []string, insert []Assignment) (time.Time, error) {
	now := time.Now().UTC()
	for i := range insert {
		insert[i].DocumentID = docID
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(removeGeoIDs); start += deleteChunk {
			end := min(start+deleteChunk, len(removeGeoIDs))
			err := tx.Where("document_id = ? AND geo_id IN ?", docID, removeGeoIDs[start:end]).
				Delete(&Assignment{}).Error
			if err != nil {
				return err
			}
		}
		if len(insert) > 0 {
			if err := tx.CreateInBatches(insert, 1000).Error; err != nil {
				return err
			}
		}
		return touchDocument(tx, docID, now)
	})
	return now, err
}

func (r *AssignmentRepositoryImpl) ReadZones(ctx context.Context, docID string) (map[int][]string, error) {
	var rows []Assignment
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND zone IS NOT NULL", docID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	zones := make(map[int][]string)
	for _, row := range rows {
		zones[*row.Zone] = append(zones[*row.Zone], row.GeoID)
	}
	return zones, nil
}

func (r *AssignmentRepositoryImpl) HasChildAssignments(ctx context.Context, docID, mapID string) (bool, error) {
	var exists bool
	err := r.db.WithContext(ctx).Raw(`
		SELECT EXISTS (
			SELECT 1
			FROM assignments a
			JOIN parent_child_edges e ON e.child_path = a.geo_id AND e.map_id = ?
			WHERE a.document_id = ?
		)
	`, mapID, docID).Scan(&exists).Error
	return exists, err
}

func (r *AssignmentRepositoryImpl) UnionsFor(ctx context.Context, docID string) ([]DistrictUnion, error) {
	var unions []DistrictUnion
	err := r.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("zone ASC").
		Find(&unions).Error
	return unions, err
}

func (r *AssignmentRepositoryImpl) ReplaceUnions(ctx context.Context, docID string, unions []DistrictUnion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", docID).Delete(&DistrictUnion{}).Error; err != nil {
			return err
		}
		if len(unions) == 0 {
			return nil
		}
		return tx.CreateInBatches(unions, 1000).Error
	})
}
