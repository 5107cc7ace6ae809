package api

import (
	"fmt"
	"time"

	apperrors "gymstack_go_backend/internal/errors"
	"gymstack_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateLimiter bounds how often a single member may hit the alternatives
// endpoint, independent of the AI quota tiers. It uses a Redis fixed-window
// counter, so the bound holds across instances sharing the same Redis.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}
}

// Limit must run after AuthMiddleware so the window is keyed by user, not IP.
// If Redis is unreachable the request is allowed; blocking all traffic on a
// counter outage would be worse than briefly losing the bound.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _, ok := requestIdentity(c)
		if !ok {
			c.Abort()
			return
		}

		bucket := time.Now().Unix() / int64(rl.window.Seconds())
		key := fmt.Sprintf("ratelimit:user:%s:%d", user.ID, bucket)

		ctx := c.Request.Context()
		count, err := rl.client.Incr(ctx, key).Result()
		if err != nil {
			log.Warn().Err(err).Msg("rate limit check failed, allowing request")
			c.Next()
			return
		}
		if count == 1 {
			rl.client.Expire(ctx, key, rl.window+time.Second)
		}

		if count > rl.limit {
			apperrors.HandleError(c, apperrors.New429Error(services.TierUserRate))
			c.Abort()
			return
		}

		c.Next()
	}
}
