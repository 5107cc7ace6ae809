package services

import (
	"context"
	"fmt"
	"time"

	"gymstack_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Counter keys embed the period, so rollover happens by key expiry: a new
// month or day simply addresses a fresh key and the old one ages out.
const (
	monthlyCounterTTL = 40 * 24 * time.Hour
	dailyCounterTTL   = 48 * time.Hour
)

// consumeScript checks all three quota tiers and increments all counters or
// none, in one atomic EVAL. A limit of 0 marks the tier unlimited. This is
// the compare-and-increment primitive that keeps concurrent requests near a
// limit boundary from jointly overshooting it.
var consumeScript = redis.NewScript(`
local tokens = tonumber(redis.call('GET', KEYS[1]) or '0')
local requests = tonumber(redis.call('GET', KEYS[2]) or '0')
local userRequests = tonumber(redis.call('GET', KEYS[3]) or '0')

local tokenDelta = tonumber(ARGV[1])
local tokenLimit = tonumber(ARGV[2])
local requestLimit = tonumber(ARGV[3])
local userLimit = tonumber(ARGV[4])
local monthTTL = tonumber(ARGV[5])
local dayTTL = tonumber(ARGV[6])

if tokenLimit > 0 and tokens + tokenDelta > tokenLimit then
  return {0, 'org_tokens', tokens, requests, userRequests}
end
if requestLimit > 0 and requests + 1 > requestLimit then
  return {0, 'org_requests', tokens, requests, userRequests}
end
if userLimit > 0 and userRequests + 1 > userLimit then
  return {0, 'user_daily', tokens, requests, userRequests}
end

tokens = redis.call('INCRBY', KEYS[1], tokenDelta)
redis.call('EXPIRE', KEYS[1], monthTTL)
requests = redis.call('INCR', KEYS[2])
redis.call('EXPIRE', KEYS[2], monthTTL)
userRequests = redis.call('INCR', KEYS[3])
redis.call('EXPIRE', KEYS[3], dayTTL)
return {1, '', tokens, requests, userRequests}
`)

// RedisUsageMeter keeps the authoritative counters in Redis and mirrors
// committed usage into Postgres for the billing surfaces.
type RedisUsageMeter struct {
	client  *redis.Client
	usageDB UsageServiceDB
}

func NewRedisUsageMeter(client *redis.Client, usageDB UsageServiceDB) UsageMeterManager {
	return &RedisUsageMeter{client: client, usageDB: usageDB}
}

// MonthlyPeriod and DailyPeriod identify quota periods, always in UTC.
func MonthlyPeriod(t time.Time) string { return t.UTC().Format("2006-01") }
func DailyPeriod(t time.Time) string   { return t.UTC().Format("2006-01-02") }

func orgTokensKey(orgID uuid.UUID, period string) string {
	return fmt.Sprintf("aiquota:org:%s:tokens:%s", orgID, period)
}

func orgFeatureKey(orgID uuid.UUID, feature, period string) string {
	return fmt.Sprintf("aiquota:org:%s:%s:%s", orgID, feature, period)
}

func userDailyKey(userID uuid.UUID, period string) string {
	return fmt.Sprintf("aiquota:user:%s:%s", userID, period)
}

// Check reads the current counters without committing anything. Safe to call
// repeatedly; a passing check does not reserve capacity.
func (m *RedisUsageMeter) Check(ctx context.Context, org *models.Organization, userID uuid.UUID, feature string) (Allowance, error) {
	now := time.Now()
	keys := []string{
		orgTokensKey(org.OrganizationID, MonthlyPeriod(now)),
		orgFeatureKey(org.OrganizationID, feature, MonthlyPeriod(now)),
		userDailyKey(userID, DailyPeriod(now)),
	}

	values, err := m.client.MGet(ctx, keys...).Result()
	if err != nil {
		return Allowance{}, fmt.Errorf("usage check failed: %w", err)
	}

	allowance := Allowance{
		Allowed:     true,
		OrgTokens:   TierUsage{Used: counterValue(values[0]), Limit: org.MonthlyTokenLimit},
		OrgRequests: TierUsage{Used: counterValue(values[1]), Limit: org.MonthlyAlternativesLimit},
		UserDaily:   TierUsage{Used: counterValue(values[2]), Limit: org.PerUserDailyLimit},
	}

	// All three tiers must be under limit simultaneously.
	for _, tier := range []struct {
		name  string
		usage TierUsage
	}{
		{TierOrgTokens, allowance.OrgTokens},
		{TierOrgRequests, allowance.OrgRequests},
		{TierUserDaily, allowance.UserDaily},
	} {
		if tier.usage.Limit > models.UnlimitedQuota && tier.usage.Used >= tier.usage.Limit {
			allowance.Allowed = false
			allowance.LimitingTier = tier.name
			break
		}
	}
	return allowance, nil
}

// Consume atomically commits tokens and one request against all tiers.
// A denied result means another request won the race to the boundary; the
// counters are untouched in that case.
func (m *RedisUsageMeter) Consume(ctx context.Context, org *models.Organization, userID uuid.UUID, feature string, tokens int64) (ConsumeResult, error) {
	now := time.Now()
	keys := []string{
		orgTokensKey(org.OrganizationID, MonthlyPeriod(now)),
		orgFeatureKey(org.OrganizationID, feature, MonthlyPeriod(now)),
		userDailyKey(userID, DailyPeriod(now)),
	}
	args := []interface{}{
		tokens,
		org.MonthlyTokenLimit,
		org.MonthlyAlternativesLimit,
		org.PerUserDailyLimit,
		int64(monthlyCounterTTL.Seconds()),
		int64(dailyCounterTTL.Seconds()),
	}

	raw, err := consumeScript.Run(ctx, m.client, keys, args...).Result()
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("usage consume failed: %w", err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 5 {
		return ConsumeResult{}, fmt.Errorf("unexpected consume script reply: %v", raw)
	}

	result := ConsumeResult{
		Allowed:              replyInt(reply[0]) == 1,
		LimitingTier:         replyString(reply[1]),
		RemainingOrgTokens:   remaining(org.MonthlyTokenLimit, replyInt(reply[2])),
		RemainingOrgRequests: remaining(org.MonthlyAlternativesLimit, replyInt(reply[3])),
		RemainingUserDaily:   remaining(org.PerUserDailyLimit, replyInt(reply[4])),
	}

	if result.Allowed {
		m.mirrorUsage(org.OrganizationID, userID, feature, tokens, now)
	}
	return result, nil
}

// mirrorUsage updates the Postgres usage records after a committed consume.
// The mirrors are best-effort: a failure here is logged, never propagated,
// because the Redis counters remain authoritative for the next check.
func (m *RedisUsageMeter) mirrorUsage(orgID, userID uuid.UUID, feature string, tokens int64, now time.Time) {
	period := MonthlyPeriod(now)
	if err := m.usageDB.IncrementOrgUsageDB(orgID, period, tokens, feature); err != nil {
		log.Warn().Err(err).Str("org_id", orgID.String()).Msg("failed to mirror org usage")
	}
	if err := m.usageDB.IncrementUserUsageDB(userID, orgID, period, tokens); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to mirror user usage")
	}
}

func counterValue(v interface{}) int64 {
	if v == nil {
		return 0
	}
	s, ok := v.(string)
	if !ok {
		return 0
	}
	var n int64
	fmt.Sscanf(s, "%d", &n)
	return n
}

func replyInt(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		var parsed int64
		fmt.Sscanf(n, "%d", &parsed)
		return parsed
	default:
		return 0
	}
}

func replyString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func remaining(limit, used int64) int64 {
	if limit <= models.UnlimitedQuota {
		return -1
	}
	if used >= limit {
		return 0
	}
	return limit - used
}
