package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/rental-portal/internal/config"
)

const (
	magicLinkPrefix    = "magic:"
	refreshTokenPrefix = "refresh:"
	revokedTokenPrefix = "revoked:"

	// Expired magic links are retained for a grace window so redemption can
	// report EXPIRED_MAGIC_LINK instead of INVALID_MAGIC_LINK. After the
	// window the two collapse, which is acceptable.
	expiredLinkRetention = time.Hour
)

// redisStore keeps session state in Redis so multiple portal instances can
// share it. Redis key TTLs handle expiry; Cleanup is a no-op.
type redisStore struct {
	client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) SessionStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &redisStore{client: client}
}

func (s *redisStore) SaveMagicLink(ctx context.Context, token string, link MagicLink) error {
	payload, err := json.Marshal(link)
	if err != nil {
		return err
	}
	ttl := time.Until(link.ExpiresAt) + expiredLinkRetention
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, magicLinkPrefix+token, payload, ttl).Err()
}

func (s *redisStore) TakeMagicLink(ctx context.Context, token string) (MagicLink, bool, error) {
	payload, err := s.client.GetDel(ctx, magicLinkPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return MagicLink{}, false, nil
	}
	if err != nil {
		return MagicLink{}, false, err
	}

	var link MagicLink
	if err := json.Unmarshal(payload, &link); err != nil {
		return MagicLink{}, false, err
	}
	return link, true, nil
}

func (s *redisStore) SaveRefreshToken(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, refreshTokenPrefix+token, "1", ttl).Err()
}

func (s *redisStore) TakeRefreshToken(ctx context.Context, token string) (bool, error) {
	_, err := s.client.GetDel(ctx, refreshTokenPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *redisStore) RevokeAccessToken(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedTokenPrefix+token, "1", ttl).Err()
}

func (s *redisStore) IsAccessTokenRevoked(ctx context.Context, token string) (bool, error) {
	_, err := s.client.Get(ctx, revokedTokenPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Cleanup is a no-op for Redis; key TTLs expire entries server-side.
func (s *redisStore) Cleanup(_ context.Context) (int, error) {
	return 0, nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return errors.New("redis client not configured")
	}
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
