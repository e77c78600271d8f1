package repository

import (
	"context"
	"mpesa-checkout-service/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReceiptSequenceRepository interface {
	Next(ctx context.Context, year int) (int64, error)
}

type receiptSequenceRepoImpl struct {
	db *gorm.DB
}

func NewReceiptSequenceRepository(db *gorm.DB) ReceiptSequenceRepository {
	return &receiptSequenceRepoImpl{
		db: db,
	}
}

// Next increments the year's counter and returns the new value.
func (r *receiptSequenceRepoImpl) Next(ctx context.Context, year int) (int64, error) {
	var seq model.ReceiptSequence
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "year"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"value":      gorm.Expr("receipt_sequences.value + ?", 1),
				"updated_at": time.Now(),
			}),
		}).Create(&model.ReceiptSequence{
			Year:  year,
			Value: 1,
		}).Error
		if err != nil {
			return err
		}

		return tx.Where("year = ?", year).First(&seq).Error
	})
	if err != nil {
		return 0, err
	}

	return seq.Value, nil
}
