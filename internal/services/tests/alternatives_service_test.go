package services_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	apperrors "gymstack_go_backend/internal/errors"
	"gymstack_go_backend/internal/models"
	"gymstack_go_backend/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

type pipelineFixture struct {
	catalog  *MockExerciseCatalogDB
	cache    *MockResultCache
	meter    *MockUsageMeter
	reranker *MockReranker
	service  *services.AlternativesService

	org    *models.Organization
	userID uuid.UUID
	source models.Exercise
	pool   []models.Exercise
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{
		catalog:  new(MockExerciseCatalogDB),
		cache:    new(MockResultCache),
		meter:    new(MockUsageMeter),
		reranker: new(MockReranker),
		userID:   uuid.New(),
	}
	f.service = services.NewAlternativesService(
		f.catalog,
		services.NewCandidateFilterService(25),
		services.NewRuleScorerService(),
		f.cache,
		f.meter,
		f.reranker,
		time.Hour,
		5,
		10,
	)

	f.org = &models.Organization{
		OrganizationID:           uuid.New(),
		Name:                     "Iron Temple",
		Plan:                     models.PlanStandard,
		AIEnabled:                true,
		MonthlyTokenLimit:        100000,
		MonthlyAlternativesLimit: 500,
		PerUserDailyLimit:        20,
	}

	f.source = models.Exercise{
		ExerciseID:      uuid.New(),
		Name:            "Barbell Bench Press",
		MuscleGroups:    []string{"chest", "triceps"},
		Equipment:       []string{"barbell", "bench"},
		MovementPattern: "push",
		Difficulty:      models.DifficultyIntermediate,
	}
	f.pool = []models.Exercise{
		{
			ExerciseID:      uuid.New(),
			Name:            "Dumbbell Bench Press",
			MuscleGroups:    []string{"chest", "triceps"},
			Equipment:       []string{"dumbbell"},
			MovementPattern: "push",
			Difficulty:      models.DifficultyIntermediate,
		},
		{
			ExerciseID:      uuid.New(),
			Name:            "Push-Up",
			MuscleGroups:    []string{"chest", "triceps", "shoulders"},
			MovementPattern: "push",
			Difficulty:      models.DifficultyBeginner,
		},
		{
			ExerciseID:      uuid.New(),
			Name:            "Barbell Incline Press",
			MuscleGroups:    []string{"chest", "shoulders"},
			Equipment:       []string{"barbell", "bench"},
			MovementPattern: "push",
			Difficulty:      models.DifficultyIntermediate,
		},
	}

	f.catalog.On("GetOrganization", mock.Anything, f.org.OrganizationID).Return(f.org, nil).Maybe()
	f.catalog.On("GetEquipmentInventory", mock.Anything, f.org.OrganizationID).Return(&models.EquipmentInventory{
		OrganizationID: f.org.OrganizationID,
		Available:      []string{"dumbbell"},
	}, nil).Maybe()

	return f
}

func (f *pipelineFixture) allowance() services.Allowance {
	return services.Allowance{
		Allowed:     true,
		OrgTokens:   services.TierUsage{Used: 100, Limit: f.org.MonthlyTokenLimit},
		OrgRequests: services.TierUsage{Used: 10, Limit: f.org.MonthlyAlternativesLimit},
		UserDaily:   services.TierUsage{Used: 2, Limit: f.org.PerUserDailyLimit},
	}
}

func (f *pipelineFixture) request() services.AlternativesRequest {
	return services.AlternativesRequest{ExerciseID: f.source.ExerciseID}
}

func TestGetAlternatives_NotFound(t *testing.T) {
	f := newPipelineFixture(t)
	f.catalog.On("GetExerciseByID", mock.Anything, f.source.ExerciseID).Return(nil, gorm.ErrRecordNotFound).Once()

	result, err := f.service.GetAlternatives(context.Background(), f.org.OrganizationID, f.userID, f.request())

	assert.Nil(t, result)
	customErr, ok := err.(*apperrors.CustomError)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, customErr.StatusCode)

	// No cache entry created, no quota consumed.
	f.cache.AssertNotCalled(t, "Lookup")
	f.cache.AssertNotCalled(t, "Store")
	f.meter.AssertNotCalled(t, "Consume")
	f.reranker.AssertNotCalled(t, "Rerank")
}

func TestGetAlternatives_PlanWithoutFeature(t *testing.T) {
	f := newPipelineFixture(t)
	f.org.Plan = models.PlanBasic
	f.catalog.On("GetExerciseByID", mock.Anything, f.source.ExerciseID).Return(&f.source, nil).Once()

	result, err := f.service.GetAlternatives(context.Background(), f.org.OrganizationID, f.userID, f.request())

	assert.Nil(t, result)
	customErr, ok := err.(*apperrors.CustomError)
	assert.True(t, ok)
	assert.Equal(t, http.StatusForbidden, customErr.StatusCode)

	f.cache.AssertNotCalled(t, "Lookup")
	f.catalog.AssertNotCalled(t, "ListCandidateExercises")
	f.meter.AssertNotCalled(t, "Consume")
}

func TestGetAlternatives_CacheHit(t *testing.T) {
	f := newPipelineFixture(t)
	stored := &services.CachedAlternatives{
		Source: services.Enhanced,
		Alternatives: []services.AlternativeCandidate{
			{ExerciseID: f.pool[0].ExerciseID, Name: "Dumbbell Bench Press", Score: 91, Reason: "stored reason"},
		},
		TokensUsed: 140,
		CreatedAt:  time.Now().UTC(),
	}

	f.catalog.On("GetExerciseByID", mock.Anything, f.source.ExerciseID).Return(&f.source, nil).Once()
	f.cache.On("Lookup", mock.Anything, mock.AnythingOfType("string")).Return(stored, true, nil).Once()
	f.meter.On("Check", mock.Anything, f.org, f.userID, models.FeatureAlternatives).Return(f.allowance(), nil).Once()

	result, err := f.service.GetAlternatives(context.Background(), f.org.OrganizationID, f.userID, f.request())

	assert.NoError(t, err)
	assert.True(t, result.WasCached)
	assert.Equal(t, services.Enhanced, result.Source)
	assert.Equal(t, stored.Alternatives, result.Alternatives)
	// A hit costs zero tokens and never re-runs the pipeline.
	assert.Zero(t, result.TokensUsed)
	f.catalog.AssertNotCalled(t, "ListCandidateExercises")
	f.reranker.AssertNotCalled(t, "Rerank")
	f.meter.AssertNotCalled(t, "Consume")
	f.cache.AssertNotCalled(t, "Store")
}

func TestGetAlternatives_RuleBasedWhenAIDisabled(t *testing.T) {
	f := newPipelineFixture(t)
	f.org.AIEnabled = false

	f.catalog.On("GetExerciseByID", mock.Anything, f.source.ExerciseID).Return(&f.source, nil).Once()
	f.cache.On("Lookup", mock.Anything, mock.AnythingOfType("string")).Return(nil, false, nil).Once()
	f.catalog.On("ListCandidateExercises", mock.Anything, f.org.OrganizationID, f.source.ExerciseID).Return(f.pool, nil).Once()
	f.meter.On("Check", mock.Anything, f.org, f.userID, models.FeatureAlternatives).Return(f.allowance(), nil).Once()
	f.cache.On("Store", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("*services.CachedAlternatives"), time.Hour).Return(nil).Once()

	result, err := f.service.GetAlternatives(context.Background(), f.org.OrganizationID, f.userID, f.request())

	assert.NoError(t, err)
	assert.Equal(t, services.RuleBased, result.Source)
	assert.Zero(t, result.TokensUsed)
	assert.False(t, result.WasCached)
	f.reranker.AssertNotCalled(t, "Rerank")
	f.meter.AssertNotCalled(t, "Consume")
	f.cache.AssertExpectations(t)
}

func TestGetAlternatives_QuotaDeniedDegrades(t *testing.T) {
	f := newPipelineFixture(t)
	denied := f.allowance()
	denied.Allowed = false
	denied.LimitingTier = services.TierOrgTokens
	denied.OrgTokens.Used = denied.OrgTokens.Limit

	f.catalog.On("GetExerciseByID", mock.Anything, f.source.ExerciseID).Return(&f.source, nil).Once()
	f.cache.On("Lookup", mock.Anything, mock.AnythingOfType("string")).Return(nil, false, nil).Once()
	f.catalog.On("ListCandidateExercises", mock.Anything, f.org.OrganizationID, f.source.ExerciseID).Return(f.pool, nil).Once()
	f.meter.On("Check", mock.Anything, f.org, f.userID, models.FeatureAlternatives).Return(denied, nil)
	f.cache.On("Store", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("*services.CachedAlternatives"), time.Hour).Return(nil).Once()

	result, err := f.service.GetAlternatives(context.Background(), f.org.OrganizationID, f.userID, f.request())

	// Exhausted budget is never a hard failure for the endpoint.
	assert.NoError(t, err)
	assert.Equal(t, services.RuleBased, result.Source)
	assert.Zero(t, result.TokensUsed)
	f.reranker.AssertNotCalled(t, "Rerank")
	f.meter.AssertNotCalled(t, "Consume")
}

func TestGetAlternatives_RerankFailureFallsBack(t *testing.T) {
	f := newPipelineFixture(t)

	f.catalog.On("GetExerciseByID", mock.Anything, f.source.ExerciseID).Return(&f.source, nil).Once()
	f.cache.On("Lookup", mock.Anything, mock.AnythingOfType("string")).Return(nil, false, nil).Once()
	f.catalog.On("ListCandidateExercises", mock.Anything, f.org.OrganizationID, f.source.ExerciseID).Return(f.pool, nil).Once()
	f.meter.On("Check", mock.Anything, f.org, f.userID, models.FeatureAlternatives).Return(f.allowance(), nil)
	f.reranker.On("Rerank", mock.Anything, &f.source, mock.Anything, mock.Anything).
		Return(nil, int64(0), fmt.Errorf("upstream timeout")).Once()
	f.cache.On("Store", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("*services.CachedAlternatives"), time.Hour).Return(nil).Once()

	result, err := f.service.GetAlternatives(context.Background(), f.org.OrganizationID, f.userID, f.request())

	assert.NoError(t, err)
	assert.Equal(t, services.RuleBased, result.Source)
	assert.Zero(t, result.TokensUsed)
	for _, alt := range result.Alternatives {
		assert.NotEmpty(t, alt.Reason)
	}
	// Nothing was consumed for work that never happened.
	f.meter.AssertNotCalled(t, "Consume")
	// The rule-based result is still cached for future identical requests.
	f.cache.AssertExpectations(t)
}

func TestGetAlternatives_EnhancedSuccess(t *testing.T) {
	f := newPipelineFixture(t)
	reranked := []services.AlternativeCandidate{
		{ExerciseID: f.pool[1].ExerciseID, Name: "Push-Up", Score: 93, Reason: "model reason"},
		{ExerciseID: f.pool[0].ExerciseID, Name: "Dumbbell Bench Press", Score: 88, Reason: "model reason"},
	}

	f.catalog.On("GetExerciseByID", mock.Anything, f.source.ExerciseID).Return(&f.source, nil).Once()
	f.cache.On("Lookup", mock.Anything, mock.AnythingOfType("string")).Return(nil, false, nil).Once()
	f.catalog.On("ListCandidateExercises", mock.Anything, f.org.OrganizationID, f.source.ExerciseID).Return(f.pool, nil).Once()
	f.meter.On("Check", mock.Anything, f.org, f.userID, models.FeatureAlternatives).Return(f.allowance(), nil).Once()
	f.reranker.On("Rerank", mock.Anything, &f.source, mock.Anything, mock.Anything).Return(reranked, int64(175), nil).Once()
	f.meter.On("Consume", mock.Anything, f.org, f.userID, models.FeatureAlternatives, int64(175)).Return(services.ConsumeResult{
		Allowed:              true,
		RemainingOrgTokens:   99825,
		RemainingOrgRequests: 489,
		RemainingUserDaily:   17,
	}, nil).Once()
	f.cache.On("Store", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("*services.CachedAlternatives"), time.Hour).Return(nil).Once()

	result, err := f.service.GetAlternatives(context.Background(), f.org.OrganizationID, f.userID, f.request())

	assert.NoError(t, err)
	assert.Equal(t, services.Enhanced, result.Source)
	assert.Equal(t, int64(175), result.TokensUsed)
	assert.Equal(t, int64(489), result.RemainingRequests)
	assert.Equal(t, "Push-Up", result.Alternatives[0].Name)
	f.meter.AssertExpectations(t)
	f.cache.AssertExpectations(t)
}

func TestGetAlternatives_ConcurrentConsumeDenied(t *testing.T) {
	f := newPipelineFixture(t)
	reranked := []services.AlternativeCandidate{
		{ExerciseID: f.pool[0].ExerciseID, Name: "Dumbbell Bench Press", Score: 90, Reason: "model reason"},
	}

	f.catalog.On("GetExerciseByID", mock.Anything, f.source.ExerciseID).Return(&f.source, nil).Once()
	f.cache.On("Lookup", mock.Anything, mock.AnythingOfType("string")).Return(nil, false, nil).Once()
	f.catalog.On("ListCandidateExercises", mock.Anything, f.org.OrganizationID, f.source.ExerciseID).Return(f.pool, nil).Once()
	f.meter.On("Check", mock.Anything, f.org, f.userID, models.FeatureAlternatives).Return(f.allowance(), nil)
	f.reranker.On("Rerank", mock.Anything, &f.source, mock.Anything, mock.Anything).Return(reranked, int64(60), nil).Once()
	f.meter.On("Consume", mock.Anything, f.org, f.userID, models.FeatureAlternatives, int64(60)).Return(services.ConsumeResult{
		Allowed:      false,
		LimitingTier: services.TierUserDaily,
	}, nil).Once()
	f.cache.On("Store", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("*services.CachedAlternatives"), time.Hour).Return(nil).Once()

	result, err := f.service.GetAlternatives(context.Background(), f.org.OrganizationID, f.userID, f.request())

	// Another request won the boundary race; the counters were untouched,
	// so this response degrades rather than overshooting the limit.
	assert.NoError(t, err)
	assert.Equal(t, services.RuleBased, result.Source)
	assert.Zero(t, result.TokensUsed)
}

func TestGetAlternatives_ConsumeErrorKeepsEnhancedResponse(t *testing.T) {
	f := newPipelineFixture(t)
	reranked := []services.AlternativeCandidate{
		{ExerciseID: f.pool[0].ExerciseID, Name: "Dumbbell Bench Press", Score: 90, Reason: "model reason"},
	}

	f.catalog.On("GetExerciseByID", mock.Anything, f.source.ExerciseID).Return(&f.source, nil).Once()
	f.cache.On("Lookup", mock.Anything, mock.AnythingOfType("string")).Return(nil, false, nil).Once()
	f.catalog.On("ListCandidateExercises", mock.Anything, f.org.OrganizationID, f.source.ExerciseID).Return(f.pool, nil).Once()
	f.meter.On("Check", mock.Anything, f.org, f.userID, models.FeatureAlternatives).Return(f.allowance(), nil)
	f.reranker.On("Rerank", mock.Anything, &f.source, mock.Anything, mock.Anything).Return(reranked, int64(60), nil).Once()
	f.meter.On("Consume", mock.Anything, f.org, f.userID, models.FeatureAlternatives, int64(60)).
		Return(services.ConsumeResult{}, fmt.Errorf("redis unreachable")).Once()
	f.cache.On("Store", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("*services.CachedAlternatives"), time.Hour).Return(nil).Once()

	result, err := f.service.GetAlternatives(context.Background(), f.org.OrganizationID, f.userID, f.request())

	// The computed response stands; accounting is best-effort on the write path.
	assert.NoError(t, err)
	assert.Equal(t, services.Enhanced, result.Source)
	assert.Equal(t, int64(60), result.TokensUsed)
}

func TestGetAlternatives_LimitAndOrdering(t *testing.T) {
	f := newPipelineFixture(t)
	f.org.AIEnabled = false

	f.catalog.On("GetExerciseByID", mock.Anything, f.source.ExerciseID).Return(&f.source, nil).Once()
	f.cache.On("Lookup", mock.Anything, mock.AnythingOfType("string")).Return(nil, false, nil).Once()
	f.catalog.On("ListCandidateExercises", mock.Anything, f.org.OrganizationID, f.source.ExerciseID).Return(f.pool, nil).Once()
	f.meter.On("Check", mock.Anything, f.org, f.userID, models.FeatureAlternatives).Return(f.allowance(), nil)
	f.cache.On("Store", mock.Anything, mock.AnythingOfType("string"), mock.Anything, time.Hour).Return(nil).Once()

	req := f.request()
	req.Limit = 1

	result, err := f.service.GetAlternatives(context.Background(), f.org.OrganizationID, f.userID, req)

	assert.NoError(t, err)
	assert.Len(t, result.Alternatives, 1)
	assert.Equal(t, "Dumbbell Bench Press", result.Alternatives[0].Name)
}

func TestGetAlternatives_EmptyCandidateSetIsCacheable(t *testing.T) {
	f := newPipelineFixture(t)
	f.org.AIEnabled = false

	f.catalog.On("GetExerciseByID", mock.Anything, f.source.ExerciseID).Return(&f.source, nil).Once()
	f.cache.On("Lookup", mock.Anything, mock.AnythingOfType("string")).Return(nil, false, nil).Once()
	f.catalog.On("ListCandidateExercises", mock.Anything, f.org.OrganizationID, f.source.ExerciseID).Return([]models.Exercise{}, nil).Once()
	f.meter.On("Check", mock.Anything, f.org, f.userID, models.FeatureAlternatives).Return(f.allowance(), nil)
	f.cache.On("Store", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("*services.CachedAlternatives"), time.Hour).Return(nil).Once()

	result, err := f.service.GetAlternatives(context.Background(), f.org.OrganizationID, f.userID, f.request())

	assert.NoError(t, err)
	assert.Empty(t, result.Alternatives)
	f.cache.AssertExpectations(t)
}

func TestGetAlternatives_CacheReadFailureIsTerminal(t *testing.T) {
	f := newPipelineFixture(t)

	f.catalog.On("GetExerciseByID", mock.Anything, f.source.ExerciseID).Return(&f.source, nil).Once()
	f.cache.On("Lookup", mock.Anything, mock.AnythingOfType("string")).Return(nil, false, fmt.Errorf("connection refused")).Once()

	result, err := f.service.GetAlternatives(context.Background(), f.org.OrganizationID, f.userID, f.request())

	assert.Nil(t, result)
	customErr, ok := err.(*apperrors.CustomError)
	assert.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, customErr.StatusCode)
}
