package config

// RateLimitConfig holds per-IP rate limiting configuration for the
// login endpoints
type RateLimitConfig struct {
	Enabled    bool    `env:"FUZZBIN_RATE_LIMIT_ENABLED" env-default:"true"`
	Capacity   int     `env:"FUZZBIN_RATE_LIMIT_CAPACITY" env-default:"10"`
	RefillRate float64 `env:"FUZZBIN_RATE_LIMIT_REFILL_RATE" env-default:"0.167"`
}
