package lock

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockRepository defines the data access for edit locks
type LockRepository interface {
	Find(ctx context.Context, docID string) (*EditLock, error)
	// TryInsert inserts a lock row unless one already exists; inserted
	// is false when another row won the race.
	TryInsert(ctx context.Context, docID, userID string) (inserted bool, err error)
	Touch(ctx context.Context, docID, userID string) error
	DeleteOwned(ctx context.Context, docID, userID string) error
	DeleteExpired(ctx context.Context, cutoff time.Time) ([]string, error)
}

type LockRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new lock repository
func NewRepository(db *gorm.DB) LockRepository {
	return &LockRepositoryImpl{db: db}
}

func (r *LockRepositoryImpl) Find(ctx context.Context, docID string) (*EditLock, error) {
	var l EditLock
	err := r.db.WithContext(ctx).First(&l, "document_id = ?", docID).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LockRepositoryImpl) TryInsert(ctx context.Context, docID, userID string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}},
		DoNothing: true,
	}).Create(&EditLock{
		DocumentID: docID,
		UserID:     userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *LockRepositoryImpl) Touch(ctx context.Context, docID, userID string) error {
	return r.db.WithContext(ctx).Model(&EditLock{}).
		Where("document_id = ? AND user_id = ?", docID, userID).
		Update("updated_at", time.Now().UTC()).Error
}

func (r *LockRepositoryImpl) DeleteOwned(ctx context.Context, docID, userID string) error {
	return r.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", docID, userID).
		Delete(&EditLock{}).Error
}

func (r *LockRepositoryImpl) DeleteExpired(ctx context.Context, cutoff time.Time) ([]string, error) {
	var freed []string
	err := r.db.WithContext(ctx).Raw(`
		DELETE FROM edit_locks
		WHERE updated_at < ?
		RETURNING document_id
	`, cutoff).Scan(&freed).Error
	return freed, err
}
