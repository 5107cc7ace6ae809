package services

import (
	"context"
	"time"

	"gymstack_go_backend/internal/models"

	"github.com/google/uuid"
)

// ExerciseCatalogDB is the read surface of the exercise/equipment catalog the
// pipeline consumes. The catalog itself is owned by the catalog-management
// product surface; this module only reads it.
type ExerciseCatalogDB interface {
	GetExerciseByID(ctx context.Context, exerciseID uuid.UUID) (*models.Exercise, error)
	ListCandidateExercises(ctx context.Context, orgID uuid.UUID, sourceID uuid.UUID) ([]models.Exercise, error)
	GetEquipmentInventory(ctx context.Context, orgID uuid.UUID) (*models.EquipmentInventory, error)
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
}

// CandidateSelector narrows the catalog down to plausible substitutes.
type CandidateSelector interface {
	FilterCandidates(source *models.Exercise, pool []models.Exercise, effectiveEquipment []string, difficultyFilter string) []models.Exercise
}

// AlternativeScorer ranks candidates deterministically without external calls.
type AlternativeScorer interface {
	ScoreCandidates(source *models.Exercise, candidates []models.Exercise, effectiveEquipment []string) []AlternativeCandidate
}

// ResultCacheManager stores completed rankings keyed by the request fingerprint.
type ResultCacheManager interface {
	Lookup(ctx context.Context, key string) (*CachedAlternatives, bool, error)
	Store(ctx context.Context, key string, entry *CachedAlternatives, ttl time.Duration) error
}

// UsageMeterManager tracks per-organization and per-user AI consumption.
// Check never commits; Consume commits atomically across all tiers.
type UsageMeterManager interface {
	Check(ctx context.Context, org *models.Organization, userID uuid.UUID, feature string) (Allowance, error)
	Consume(ctx context.Context, org *models.Organization, userID uuid.UUID, feature string, tokens int64) (ConsumeResult, error)
}

// RerankerManager is the optional enhancement stage. Implementations send one
// bounded request to the external generative service; any failure is returned
// as an error and the caller falls back to the rule-based ranking.
type RerankerManager interface {
	Rerank(ctx context.Context, source *models.Exercise, candidates []AlternativeCandidate, availableEquipment []string) ([]AlternativeCandidate, int64, error)
}

// UsageServiceDB persists the billing-facing usage mirrors.
type UsageServiceDB interface {
	IncrementOrgUsageDB(orgID uuid.UUID, period string, tokens int64, feature string) error
	IncrementUserUsageDB(userID, orgID uuid.UUID, period string, tokens int64) error
	GetOrgUsageDB(orgID uuid.UUID, period string) (*models.AIUsageRecord, error)
	GetUserUsageDB(userID uuid.UUID, period string) (*models.UserAIUsageRecord, error)
}
