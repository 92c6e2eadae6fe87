package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Fulfillment status values.
const (
	StatusDelivered    = "delivered"
	StatusFailed       = "failed"
	StatusSkippedEmpty = "skipped_empty"
)

// Fulfillment is the durable record of one delivery attempt for a checkout
// session. The unique session index is what makes webhook redelivery safe.
type Fulfillment struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey"`
	SessionID       string         `gorm:"type:varchar(255);uniqueIndex;not null"`
	CustomerEmail   string         `gorm:"type:varchar(320);not null"`
	Status          string         `gorm:"type:varchar(20);not null"`
	AttachmentCount int            `gorm:"not null"`
	MessageID       *string        `gorm:"type:varchar(255)"`
	Error           *string        `gorm:"type:text"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime"`
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

// Delivered reports whether this record represents a completed delivery
// (or a deliberate empty skip) that should not be repeated.
func (f *Fulfillment) Delivered() bool {
	return f.Status == StatusDelivered || f.Status == StatusSkippedEmpty
}
