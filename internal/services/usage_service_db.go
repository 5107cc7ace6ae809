package services

import (
	"gymstack_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DefaultUsageService struct {
	db *gorm.DB
}

func NewUsageServiceDB(db *gorm.DB) UsageServiceDB {
	return &DefaultUsageService{db: db}
}

// IncrementOrgUsageDB upserts the organization's record for the period and
// bumps its counters in a single statement. Counters only move forward; there
// is no decrement path.
func (s *DefaultUsageService) IncrementOrgUsageDB(orgID uuid.UUID, period string, tokens int64, feature string) error {
	record := models.AIUsageRecord{
		OrganizationID: orgID,
		Period:         period,
		TokensUsed:     tokens,
		RequestCount:   1,
	}
	featureColumn := "other_features_count"
	if feature == models.FeatureAlternatives {
		record.AlternativesCount = 1
		featureColumn = "alternatives_count"
	} else {
		record.OtherFeaturesCount = 1
	}

	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "organization_id"}, {Name: "period"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"tokens_used":   gorm.Expr("ai_usage_records.tokens_used + ?", tokens),
			"request_count": gorm.Expr("ai_usage_records.request_count + 1"),
			featureColumn:   gorm.Expr("ai_usage_records." + featureColumn + " + 1"),
		}),
	}).Create(&record).Error
}

func (s *DefaultUsageService) IncrementUserUsageDB(userID, orgID uuid.UUID, period string, tokens int64) error {
	record := models.UserAIUsageRecord{
		UserID:         userID,
		OrganizationID: orgID,
		Period:         period,
		TokensUsed:     tokens,
		RequestCount:   1,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "period"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"tokens_used":   gorm.Expr("user_ai_usage_records.tokens_used + ?", tokens),
			"request_count": gorm.Expr("user_ai_usage_records.request_count + 1"),
		}),
	}).Create(&record).Error
}

func (s *DefaultUsageService) GetOrgUsageDB(orgID uuid.UUID, period string) (*models.AIUsageRecord, error) {
	var record models.AIUsageRecord
	err := s.db.Where("organization_id = ? AND period = ?", orgID, period).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *DefaultUsageService) GetUserUsageDB(userID uuid.UUID, period string) (*models.UserAIUsageRecord, error) {
	var record models.UserAIUsageRecord
	err := s.db.Where("user_id = ? AND period = ?", userID, period).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}
