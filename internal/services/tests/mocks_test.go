package services_test

import (
	"context"
	"time"

	"gymstack_go_backend/internal/models"
	"gymstack_go_backend/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockExerciseCatalogDB struct {
	mock.Mock
}

func (m *MockExerciseCatalogDB) GetExerciseByID(ctx context.Context, exerciseID uuid.UUID) (*models.Exercise, error) {
	args := m.Called(ctx, exerciseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Exercise), args.Error(1)
}

func (m *MockExerciseCatalogDB) ListCandidateExercises(ctx context.Context, orgID uuid.UUID, sourceID uuid.UUID) ([]models.Exercise, error) {
	args := m.Called(ctx, orgID, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Exercise), args.Error(1)
}

func (m *MockExerciseCatalogDB) GetEquipmentInventory(ctx context.Context, orgID uuid.UUID) (*models.EquipmentInventory, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EquipmentInventory), args.Error(1)
}

func (m *MockExerciseCatalogDB) GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

type MockResultCache struct {
	mock.Mock
}

func (m *MockResultCache) Lookup(ctx context.Context, key string) (*services.CachedAlternatives, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*services.CachedAlternatives), args.Bool(1), args.Error(2)
}

func (m *MockResultCache) Store(ctx context.Context, key string, entry *services.CachedAlternatives, ttl time.Duration) error {
	args := m.Called(ctx, key, entry, ttl)
	return args.Error(0)
}

type MockUsageMeter struct {
	mock.Mock
}

func (m *MockUsageMeter) Check(ctx context.Context, org *models.Organization, userID uuid.UUID, feature string) (services.Allowance, error) {
	args := m.Called(ctx, org, userID, feature)
	return args.Get(0).(services.Allowance), args.Error(1)
}

func (m *MockUsageMeter) Consume(ctx context.Context, org *models.Organization, userID uuid.UUID, feature string, tokens int64) (services.ConsumeResult, error) {
	args := m.Called(ctx, org, userID, feature, tokens)
	return args.Get(0).(services.ConsumeResult), args.Error(1)
}

type MockReranker struct {
	mock.Mock
}

func (m *MockReranker) Rerank(ctx context.Context, source *models.Exercise, candidates []services.AlternativeCandidate, availableEquipment []string) ([]services.AlternativeCandidate, int64, error) {
	args := m.Called(ctx, source, candidates, availableEquipment)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]services.AlternativeCandidate), args.Get(1).(int64), args.Error(2)
}
