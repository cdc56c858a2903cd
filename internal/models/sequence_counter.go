package models

import "time"

// Per-merchant order counter, keyed by the sanitized merchant identifier
type SequenceCounter struct {
	MerchantKey string    `gorm:"column:merchant_key;primaryKey;size:255" json:"merchant_key"`
	Value       int64     `gorm:"not null;default:0" json:"value"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (SequenceCounter) TableName() string {
	return "sequence_counters"
}
