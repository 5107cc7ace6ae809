package config

import "time"

type Config struct {
	ResultCacheTTL       time.Duration
	RerankTimeout        time.Duration
	DefaultResultLimit   int
	MaxResultLimit       int
	MaxCandidatesToScore int
	MaxReasonLength      int
	RateLimitPerUser     int
	RateLimitWindow      time.Duration
}

func NewConfig() *Config {
	return &Config{
		ResultCacheTTL:       1 * time.Hour,
		RerankTimeout:        8 * time.Second,
		DefaultResultLimit:   5,
		MaxResultLimit:       10,
		MaxCandidatesToScore: 25,
		MaxReasonLength:      280,
		RateLimitPerUser:     30,
		RateLimitWindow:      time.Minute,
	}
}
