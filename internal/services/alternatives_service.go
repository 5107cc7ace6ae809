package services

import (
	"context"
	"errors"
	"time"

	apperrors "gymstack_go_backend/internal/errors"
	"gymstack_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AlternativesService runs the full pipeline: filter, cache check, rule
// scoring, optional AI rerank under quota, usage commit, cache store.
// A missing source exercise and a plan without the feature are terminal;
// every other failure degrades to the rule-based ranking.
type AlternativesService struct {
	catalog  ExerciseCatalogDB
	filter   CandidateSelector
	scorer   AlternativeScorer
	cache    ResultCacheManager
	meter    UsageMeterManager
	reranker RerankerManager // nil when no AI client is configured

	cacheTTL     time.Duration
	defaultLimit int
	maxLimit     int
}

func NewAlternativesService(
	catalog ExerciseCatalogDB,
	filter CandidateSelector,
	scorer AlternativeScorer,
	cache ResultCacheManager,
	meter UsageMeterManager,
	reranker RerankerManager,
	cacheTTL time.Duration,
	defaultLimit int,
	maxLimit int,
) *AlternativesService {
	return &AlternativesService{
		catalog:      catalog,
		filter:       filter,
		scorer:       scorer,
		cache:        cache,
		meter:        meter,
		reranker:     reranker,
		cacheTTL:     cacheTTL,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

type AlternativesRequest struct {
	ExerciseID       uuid.UUID
	DifficultyFilter string
	Limit            int
}

type AlternativesResult struct {
	Source            RankingSource
	Alternatives      []AlternativeCandidate
	WasCached         bool
	TokensUsed        int64
	RemainingRequests int64
}

func (s *AlternativesService) GetAlternatives(ctx context.Context, orgID, userID uuid.UUID, req AlternativesRequest) (*AlternativesResult, error) {
	source, err := s.catalog.GetExerciseByID(ctx, req.ExerciseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New404Error("exercise not found")
		}
		return nil, apperrors.New500Error(err)
	}

	org, err := s.catalog.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, apperrors.New500Error(err)
	}
	if !org.HasAlternativesFeature() {
		return nil, apperrors.New403Error("Plan does not include exercise alternatives")
	}

	inventory, err := s.catalog.GetEquipmentInventory(ctx, orgID)
	if err != nil {
		return nil, apperrors.New500Error(err)
	}
	equipment := inventory.EffectiveEquipment()

	limit := s.normalizeLimit(req.Limit)
	key := BuildAlternativesCacheKey(source.ExerciseID, equipment, req.DifficultyFilter, limit)

	// A connectivity failure on the read path is terminal; a plain miss
	// proceeds to full computation.
	entry, hit, err := s.cache.Lookup(ctx, key)
	if err != nil {
		return nil, apperrors.New500Error(err)
	}
	if hit {
		return &AlternativesResult{
			Source:            entry.Source,
			Alternatives:      entry.Alternatives,
			WasCached:         true,
			TokensUsed:        0, // hits never consume tokens
			RemainingRequests: s.remainingRequests(ctx, org, userID),
		}, nil
	}

	pool, err := s.catalog.ListCandidateExercises(ctx, orgID, source.ExerciseID)
	if err != nil {
		return nil, apperrors.New500Error(err)
	}

	candidates := s.filter.FilterCandidates(source, pool, equipment, req.DifficultyFilter)
	scored := s.scorer.ScoreCandidates(source, candidates, equipment)

	result := &AlternativesResult{
		Source:            RuleBased,
		Alternatives:      scored,
		RemainingRequests: -1,
	}

	if s.reranker != nil && org.AIEnabled {
		s.tryEnhance(ctx, org, userID, source, equipment, result)
	}
	if result.RemainingRequests == -1 {
		result.RemainingRequests = s.remainingRequests(ctx, org, userID)
	}

	if len(result.Alternatives) > limit {
		result.Alternatives = result.Alternatives[:limit]
	}

	// Store on every completed miss, enhanced or not, so future identical
	// requests benefit even after the AI budget runs out.
	cacheEntry := &CachedAlternatives{
		Source:       result.Source,
		Alternatives: result.Alternatives,
		TokensUsed:   result.TokensUsed,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.cache.Store(ctx, key, cacheEntry, s.cacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to store alternatives in cache")
	}

	return result, nil
}

// tryEnhance runs the quota-gated rerank stage. It mutates result only when
// the whole stage succeeds; on any failure the rule-based ranking stands.
func (s *AlternativesService) tryEnhance(ctx context.Context, org *models.Organization, userID uuid.UUID, source *models.Exercise, equipment []string, result *AlternativesResult) {
	allowance, err := s.meter.Check(ctx, org, userID, models.FeatureAlternatives)
	if err != nil {
		log.Warn().Err(err).Msg("usage check failed, skipping rerank")
		return
	}
	if !allowance.Allowed {
		log.Info().
			Str("org_id", org.OrganizationID.String()).
			Str("limiting_tier", allowance.LimitingTier).
			Msg("quota exhausted, serving rule-based alternatives")
		return
	}

	reranked, tokens, err := s.reranker.Rerank(ctx, source, result.Alternatives, equipment)
	if err != nil {
		log.Warn().Err(err).Str("exercise", source.Name).Msg("rerank failed, falling back to rule-based ranking")
		return
	}

	consume, err := s.meter.Consume(ctx, org, userID, models.FeatureAlternatives, tokens)
	if err != nil {
		// The work is done and the response stands; accounting is
		// best-effort on the write path and authoritative on the next check.
		log.Error().Err(err).Msg("usage consume failed after rerank")
		result.Source = Enhanced
		result.Alternatives = reranked
		result.TokensUsed = tokens
		return
	}
	if !consume.Allowed {
		// Lost the race to the limit boundary: the counters were not
		// incremented, so the enhanced output is not served either.
		log.Info().
			Str("org_id", org.OrganizationID.String()).
			Str("limiting_tier", consume.LimitingTier).
			Msg("concurrent consume denied, serving rule-based alternatives")
		return
	}

	result.Source = Enhanced
	result.Alternatives = reranked
	result.TokensUsed = tokens
	result.RemainingRequests = consume.RemainingOrgRequests
}

func (s *AlternativesService) remainingRequests(ctx context.Context, org *models.Organization, userID uuid.UUID) int64 {
	allowance, err := s.meter.Check(ctx, org, userID, models.FeatureAlternatives)
	if err != nil {
		log.Warn().Err(err).Msg("usage check failed while reporting remaining requests")
		return -1
	}
	return allowance.OrgRequests.Remaining()
}

func (s *AlternativesService) normalizeLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}
