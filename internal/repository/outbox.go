package repository

import (
	"context"
	"mpesa-checkout-service/internal/model"
	"time"

	"gorm.io/gorm"
)

type OutboxRepository interface {
	Enqueue(ctx context.Context, tx *gorm.DB, entries []*model.NotificationOutbox) error
	ClaimPending(ctx context.Context, limit int) ([]*model.NotificationOutbox, error)
	MarkSent(ctx context.Context, id string) error
	MarkAttemptFailed(ctx context.Context, id string, cause string, maxAttempts int) error
	RequeueStuck(ctx context.Context, olderThan time.Time) (int64, error)
}

type outboxRepoImpl struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepoImpl{
		db: db,
	}
}

func (r *outboxRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *outboxRepoImpl) Enqueue(ctx context.Context, tx *gorm.DB, entries []*model.NotificationOutbox) error {
	if len(entries) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).Create(&entries).Error
}

// ClaimPending flips up to limit pending rows to processing. A row is only
// returned to the caller that won its conditional update, so concurrent
// relays never send the same notification twice.
func (r *outboxRepoImpl) ClaimPending(ctx context.Context, limit int) ([]*model.NotificationOutbox, error) {
	var candidates []*model.NotificationOutbox
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxPending).
		Order("created_at").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]*model.NotificationOutbox, 0, len(candidates))
	for _, entry := range candidates {
		res := r.db.WithContext(ctx).Model(&model.NotificationOutbox{}).
			Where("id = ? AND status = ?", entry.ID, model.OutboxPending).
			Updates(map[string]interface{}{
				"status":     model.OutboxProcessing,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 1 {
			entry.Status = model.OutboxProcessing
			claimed = append(claimed, entry)
		}
	}

	return claimed, nil
}

func (r *outboxRepoImpl) MarkSent(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.OutboxSent,
			"attempts":     gorm.Expr("attempts + ?", 1),
			"last_error":   "",
			"processed_at": now,
			"updated_at":   now,
		}).Error
}

// MarkAttemptFailed puts the row back to pending, or to failed once
// maxAttempts is reached.
func (r *outboxRepoImpl) MarkAttemptFailed(ctx context.Context, id string, cause string, maxAttempts int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry model.NotificationOutbox
		if err := tx.Where("id = ?", id).First(&entry).Error; err != nil {
			return err
		}

		attempts := entry.Attempts + 1
		status := model.OutboxPending
		updates := map[string]interface{}{
			"attempts":   attempts,
			"last_error": cause,
			"updated_at": time.Now(),
		}
		if attempts >= maxAttempts {
			status = model.OutboxFailed
			updates["processed_at"] = time.Now()
		}
		updates["status"] = status

		return tx.Model(&model.NotificationOutbox{}).
			Where("id = ?", id).
			Updates(updates).Error
	})
}

// RequeueStuck releases rows left in processing by a relay that stopped mid-send.
func (r *outboxRepoImpl) RequeueStuck(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.NotificationOutbox{}).
		Where("status = ? AND updated_at < ?", model.OutboxProcessing, olderThan).
		Updates(map[string]interface{}{
			"status":     model.OutboxPending,
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}
