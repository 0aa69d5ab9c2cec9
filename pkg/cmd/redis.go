package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a universal client from a redis:// URL. Used by the
// delayed-dispatch store; an empty URL means delayed jobs are unsupported.
func NewRedisClient(redisURL string) redis.UniversalClient {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("invalid redis URL: %w", err))
	}

	return redis.NewClient(opts)
}
