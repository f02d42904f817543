package lock

import (
	"context"
	defError "errors"
	"time"

	"github.com/districtr/districtr-v2-sub000/internal/errors"

	"gorm.io/gorm"
)

// Service defines the interface for edit lock management
type Service interface {
	// Checkout grants exclusive edit ownership, idempotently for the
	// current owner; a document held by someone else reports locked
	// without mutating anything.
	Checkout(ctx context.Context, docID, userID string) (string, error)
	// Release drops the lock when owned by userID; a no-op otherwise.
	Release(ctx context.Context, docID, userID string) error
	// CheckWritable errors when another user holds the lock. Advisory:
	// a racing stale client still degrades to last write wins.
	CheckWritable(ctx context.Context, docID, userID string) error
	// SweepExpired frees locks idle longer than maxIdle and returns
	// the freed document ids.
	SweepExpired(ctx context.Context, maxIdle time.Duration) ([]string, error)
}

type DefaultService struct {
	repository LockRepository
}

// NewService creates a new lock service
func NewService(repository LockRepository) Service {
	return &DefaultService{repository: repository}
}

func (s *DefaultService) Checkout(ctx context.Context, docID, userID string) (string, error) {
	if userID == "" {
		return "", errors.BadRequest("user_id is required", nil)
	}

	inserted, err := s.repository.TryInsert(ctx, docID, userID)
	if err != nil {
		return "", err
	}
	if inserted {
		return StatusCheckedOut, nil
	}

	existing, err := s.repository.Find(ctx, docID)
	if err != nil {
		// the holder released between the insert attempt and the read;
		// a retry by the client will win the row
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return StatusLocked, nil
		}
		return "", err
	}
	if existing.UserID != userID {
		return StatusLocked, nil
	}

	// idempotent re-entry by the owner keeps the lock fresh
	if err := s.repository.Touch(ctx, docID, userID); err != nil {
		return "", err
	}
	return StatusCheckedOut, nil
}

func (s *DefaultService) Release(ctx context.Context, docID, userID string) error {
	return s.repository.DeleteOwned(ctx, docID, userID)
}

func (s *DefaultService) CheckWritable(ctx context.Context, docID, userID string) error {
	existing, err := s.repository.Find(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if existing.UserID != userID {
		return errors.Locked("Document is locked by another editor", nil)
	}
	return nil
}

func (s *DefaultService) SweepExpired(ctx context.Context, maxIdle time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-maxIdle)
	return s.repository.DeleteExpired(ctx, cutoff)
}
