package services

import (
	"context"

	"gymstack_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DefaultExerciseCatalog struct {
	db *gorm.DB
}

func NewExerciseCatalogDB(db *gorm.DB) ExerciseCatalogDB {
	return &DefaultExerciseCatalog{db: db}
}

func (s *DefaultExerciseCatalog) GetExerciseByID(ctx context.Context, exerciseID uuid.UUID) (*models.Exercise, error) {
	var exercise models.Exercise
	err := s.db.WithContext(ctx).Where("exercise_id = ?", exerciseID).First(&exercise).Error
	if err != nil {
		return nil, err
	}
	return &exercise, nil
}

// ListCandidateExercises returns every exercise visible to the organization
// (global catalog rows plus the org's own), excluding the source. Rows come
// back in insertion order, which downstream scoring relies on for stable ties.
func (s *DefaultExerciseCatalog) ListCandidateExercises(ctx context.Context, orgID uuid.UUID, sourceID uuid.UUID) ([]models.Exercise, error) {
	var exercises []models.Exercise
	err := s.db.WithContext(ctx).
		Where("organization_id IN ?", []uuid.UUID{uuid.Nil, orgID}).
		Where("exercise_id <> ?", sourceID).
		Order("id ASC").
		Find(&exercises).Error
	if err != nil {
		return nil, err
	}
	return exercises, nil
}

func (s *DefaultExerciseCatalog) GetEquipmentInventory(ctx context.Context, orgID uuid.UUID) (*models.EquipmentInventory, error) {
	var inventory models.EquipmentInventory
	err := s.db.WithContext(ctx).Where("organization_id = ?", orgID).First(&inventory).Error
	if err == gorm.ErrRecordNotFound {
		// No inventory configured yet: nothing beyond bodyweight is available.
		return &models.EquipmentInventory{OrganizationID: orgID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &inventory, nil
}

func (s *DefaultExerciseCatalog) GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	err := s.db.WithContext(ctx).Where("organization_id = ?", orgID).First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}
