package sequence

import (
	"context"
	"errors"
	"time"

	"github.com/aman-churiwal/credit-gateway/internal/keylock"
	"github.com/aman-churiwal/credit-gateway/internal/models"
	"github.com/aman-churiwal/credit-gateway/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps counters in the sequence_counters table. The row is locked
// with SELECT ... FOR UPDATE, and callers in this process additionally queue
// on an in-process key lock so they do not pile up on the database.
type GormStore struct {
	db       *storage.Database
	locks    *keylock.Table
	lockWait time.Duration
	logger   *zap.Logger
}

func NewGormStore(db *storage.Database, lockWait time.Duration, logger *zap.Logger) *GormStore {
	return &GormStore{
		db:       db,
		locks:    keylock.New(),
		lockWait: lockWait,
		logger:   logger,
	}
}

func (s *GormStore) NextValue(ctx context.Context, merchant string) (int64, error) {
	key := SanitizeKey(merchant)

	lockCtx := ctx
	if s.lockWait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockWait)
		defer cancel()
	}

	unlock, err := s.locks.Lock(lockCtx, key)
	if err != nil {
		return degrade(s.logger, merchant, err)
	}
	defer unlock()

	var next int64
	err = s.db.Transaction(ctx, func(tx *gorm.DB) error {
		seed := models.SequenceCounter{MerchantKey: key}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		var counter models.SequenceCounter
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("merchant_key = ?", key).
			First(&counter).Error
		if err != nil {
			return err
		}

		next = counter.Value + 1
		return tx.Model(&counter).Update("value", next).Error
	})
	if err != nil {
		return degrade(s.logger, merchant, err)
	}

	return next, nil
}

func (s *GormStore) Peek(ctx context.Context, merchant string) (int64, error) {
	var counter models.SequenceCounter
	err := s.db.DB.WithContext(ctx).
		Where("merchant_key = ?", SanitizeKey(merchant)).
		First(&counter).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return counter.Value, nil
}
