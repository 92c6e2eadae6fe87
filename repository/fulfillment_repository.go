package repository

import (
	"context"

	"fulfillment-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FulfillmentRepository interface {
	Upsert(ctx context.Context, f *models.Fulfillment) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.Fulfillment, error)
}

type gormFulfillmentRepo struct {
	db *gorm.DB
}

func NewGormFulfillmentRepo(db *gorm.DB) FulfillmentRepository {
	return &gormFulfillmentRepo{db: db}
}

// Upsert inserts the fulfillment record, or overwrites the outcome columns
// of an earlier attempt for the same session. Redelivered webhooks after a
// failed attempt land here.
func (r *gormFulfillmentRepo) Upsert(ctx context.Context, f *models.Fulfillment) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "attachment_count", "message_id", "error", "updated_at",
		}),
	}).Create(f).Error
}

// GetBySessionID returns gorm.ErrRecordNotFound when the session has never
// been fulfilled.
func (r *gormFulfillmentRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Fulfillment, error) {
	var f models.Fulfillment
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}
