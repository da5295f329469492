package models

import "time"

// RFMSegment holds one user's Recency/Frequency/Monetary classification.
// Exactly one row per user, replaced on recomputation; a row older than
// the freshness window is treated as stale and recomputed on demand.
type RFMSegment struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	UserID     uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	ExternalID string `gorm:"not null" json:"external_id"`

	// Scores, each 1-5.
	RecencyScore   int `gorm:"not null" json:"recency_score"`
	FrequencyScore int `gorm:"not null" json:"frequency_score"`
	MonetaryScore  int `gorm:"not null" json:"monetary_score"`

	Segment string `gorm:"not null;index" json:"segment"`

	// Raw metrics behind the scores.
	RecencyDays    int   `gorm:"not null" json:"recency_days"`
	FrequencyCount int   `gorm:"not null" json:"frequency_count"`
	MonetaryValue  int64 `gorm:"type:bigint;not null" json:"monetary_value"`

	CalculatedAt time.Time `gorm:"not null;index" json:"calculated_at"`
}
