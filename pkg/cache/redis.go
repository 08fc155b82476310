package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis client.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	CacheTTL  time.Duration
}

// RedisSource is a Fetcher that shares computed values between processes through Redis.
// On a Redis miss it computes the value with its fallback Fetcher and writes the
// result back with the configured TTL.
type RedisSource struct {
	redisClient *redis.Client
	logger      zerolog.Logger
	prefix      string
	ttl         time.Duration
	fallback    Fetcher
}

// NewRedisSource creates and connects a new RedisSource.
// It pings the Redis server to ensure connectivity before returning.
// A nil fallback computes DefaultValue.
func NewRedisSource(
	ctx context.Context,
	cfg *RedisConfig,
	logger zerolog.Logger,
	fallback Fetcher,
) (*RedisSource, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")

	if fallback == nil {
		fallback = StaticFetcher(DefaultValue)
	}
	return &RedisSource{
		redisClient: rdb,
		logger:      logger.With().Str("component", "RedisSource").Logger(),
		prefix:      cfg.KeyPrefix,
		ttl:         cfg.CacheTTL,
		fallback:    fallback,
	}, nil
}

// Fetch returns the value stored in Redis for key, computing and storing it on a miss.
func (s *RedisSource) Fetch(ctx context.Context, key string) (float64, error) {
	redisKey := s.prefix + key
	cached, err := s.redisClient.Get(ctx, redisKey).Result()
	if err == nil {
		value, parseErr := strconv.ParseFloat(cached, 64)
		if parseErr != nil {
			s.logger.Error().Err(parseErr).Str("key", redisKey).Msg("Failed to parse cached value.")
			return 0, fmt.Errorf("failed to parse cached value for %s: %w", redisKey, parseErr)
		}
		s.logger.Debug().Str("key", redisKey).Msg("Redis hit.")
		return value, nil
	}

	// A redis.Nil error is a normal miss. Any other error is a genuine problem.
	if !errors.Is(err, redis.Nil) {
		s.logger.Error().Err(err).Str("key", redisKey).Msg("Unexpected Redis error during fetch.")
		return 0, fmt.Errorf("redis get failed for key %s: %w", redisKey, err)
	}

	value, err := s.fallback.Fetch(ctx, key)
	if err != nil {
		return 0, err
	}

	// SetNX keeps the first writer's value if another process computed it concurrently.
	stored := strconv.FormatFloat(value, 'g', -1, 64)
	won, err := s.redisClient.SetNX(ctx, redisKey, stored, s.ttl).Result()
	if err != nil {
		s.logger.Error().Err(err).Str("key", redisKey).Msg("Failed to write value to Redis.")
		return 0, fmt.Errorf("failed to set in redis: %w", err)
	}
	if !won {
		s.logger.Debug().Str("key", redisKey).Msg("Lost write race, re-reading value.")
		return s.readWinner(ctx, redisKey, value)
	}
	s.logger.Debug().Str("key", redisKey).Msg("Stored computed value in Redis.")
	return value, nil
}

// readWinner reads the value stored by the writer that beat us to SetNX. It reads
// once; if the key is already gone the locally computed value is returned.
func (s *RedisSource) readWinner(ctx context.Context, redisKey string, local float64) (float64, error) {
	cached, err := s.redisClient.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		s.logger.Debug().Str("key", redisKey).Msg("Winning value already expired, using local value.")
		return local, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get failed for key %s: %w", redisKey, err)
	}
	value, err := strconv.ParseFloat(cached, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse cached value for %s: %w", redisKey, err)
	}
	return value, nil
}

// Close closes the Redis client connection and the fallback.
func (s *RedisSource) Close() error {
	if s.redisClient != nil {
		s.logger.Info().Msg("Closing Redis client connection...")
		if err := s.redisClient.Close(); err != nil {
			return err
		}
	}
	return s.fallback.Close()
}
