package services

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// RankingSource tags which path produced a ranking. Callers must handle both.
type RankingSource string

const (
	RuleBased RankingSource = "rule_based"
	Enhanced  RankingSource = "enhanced"
)

// AlternativeCandidate is one proposed substitute with its score and reason.
// Produced transiently per request; persisted only inside a cache entry.
type AlternativeCandidate struct {
	ExerciseID   uuid.UUID `json:"exercise_id"`
	Name         string    `json:"name"`
	MuscleGroups []string  `json:"muscle_groups"`
	Score        int       `json:"score"`
	Reason       string    `json:"reason"`
}

// CachedAlternatives is the cache value for one request fingerprint.
type CachedAlternatives struct {
	Source       RankingSource          `json:"source"`
	Alternatives []AlternativeCandidate `json:"alternatives"`
	TokensUsed   int64                  `json:"tokens_used"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Quota tier identifiers, reported in allowances and 429 payloads.
// TierUserRate is the per-user request-rate window enforced at the HTTP
// layer, distinct from the three AI consumption tiers.
const (
	TierOrgTokens   = "org_tokens"
	TierOrgRequests = "org_requests"
	TierUserDaily   = "user_daily"
	TierUserRate    = "user_rate"
)

// TierUsage is one tier's consumption against its limit.
// Limit 0 means the tier is unlimited.
type TierUsage struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

// Remaining returns how much headroom the tier has, -1 when unlimited.
func (t TierUsage) Remaining() int64 {
	if t.Limit <= 0 {
		return -1
	}
	if t.Used >= t.Limit {
		return 0
	}
	return t.Limit - t.Used
}

// Allowance is the non-committing quota snapshot across all three tiers.
type Allowance struct {
	Allowed      bool      `json:"allowed"`
	LimitingTier string    `json:"limiting_tier,omitempty"`
	OrgTokens    TierUsage `json:"org_tokens"`
	OrgRequests  TierUsage `json:"org_requests"`
	UserDaily    TierUsage `json:"user_daily"`
}

// sortCandidatesByScore orders by score descending. The sort is stable so
// equal scores keep their existing (catalog) order, which makes responses
// deterministic for identical inputs.
func sortCandidatesByScore(candidates []AlternativeCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}

// ConsumeResult reports the outcome of an atomic consume.
type ConsumeResult struct {
	Allowed              bool
	LimitingTier         string
	RemainingOrgTokens   int64
	RemainingOrgRequests int64
	RemainingUserDaily   int64
}
