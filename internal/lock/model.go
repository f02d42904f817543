package lock

import (
	"time"
)

// Status of a checkout attempt.
const (
	StatusCheckedOut = "checked_out"
	StatusLocked     = "locked"
)

// EditLock is the single-writer row for a document: at most one row
// per document, owned by an opaque user id. Advisory only; it gates
// the write routes but does not serialize storage writes itself.
type EditLock struct {
	DocumentID string    `gorm:"primaryKey" json:"document_id"`
	UserID     string    `gorm:"not null" json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `gorm:"index" json:"updated_at"`
}

func (EditLock) TableName() string {
	return "edit_locks"
}
