package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FeatureAlternatives identifies the exercise-alternatives feature in quota
// keys and per-feature usage breakdowns.
const FeatureAlternatives = "alternatives"

// AIUsageRecord mirrors an organization's consumption for one monthly period.
// The authoritative counters live in Redis; these rows are the billing-facing
// mirror and are written best-effort after each successful consume.
type AIUsageRecord struct {
	gorm.Model
	OrganizationID     uuid.UUID `gorm:"type:uuid;index:idx_org_period,unique"`
	Period             string    `gorm:"index:idx_org_period,unique"` // "2006-01", UTC
	TokensUsed         int64
	RequestCount       int64
	AlternativesCount  int64
	OtherFeaturesCount int64
}

// UserAIUsageRecord mirrors a single member's consumption for one period.
type UserAIUsageRecord struct {
	gorm.Model
	UserID         uuid.UUID `gorm:"type:uuid;index:idx_user_period,unique"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index"`
	Period         string    `gorm:"index:idx_user_period,unique"`
	TokensUsed     int64
	RequestCount   int64
}
