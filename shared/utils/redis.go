package utils

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/taskplane/taskplane/shared/models"
)

var (
	RedisClient *redis.Client
	ctx         = context.Background()
)

// InitRedis initializes the Redis client
func InitRedis() error {
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost"
	}

	redisPort := os.Getenv("REDIS_PORT")
	if redisPort == "" {
		redisPort = "6379"
	}

	addr := fmt.Sprintf("%s:%s", redisHost, redisPort)

	RedisClient = redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		RedisClient = nil
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return nil
}

// CloseRedis closes the Redis connection
func CloseRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}

// generateTokenHash creates a SHA256 hash of the credential for use as the
// Redis key, so the raw token is never stored.
func generateTokenHash(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func sessionKey(token string) string {
	return "credential:session:" + generateTokenHash(token)
}

// CreateTokenSession records an issued credential in Redis. Switching brands
// issues a new credential and a new session; the old session is revoked by
// the caller.
func CreateTokenSession(credential string, profile models.UserProfile, ttl time.Duration) (*models.TokenSession, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	now := time.Now()
	session := &models.TokenSession{
		UserProfile: profile,
		CreatedAt:   now,
		LastUsedAt:  now,
		ExpiresAt:   now.Add(ttl),
		SessionID:   uuid.New().String(),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := RedisClient.Set(ctx, sessionKey(credential), data, ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session in Redis: %w", err)
	}

	return session, nil
}

// GetTokenSession retrieves a credential session from Redis
func GetTokenSession(credential string) (*models.TokenSession, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	key := sessionKey(credential)
	data, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session models.TokenSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if session.IsExpired() {
		RedisClient.Del(ctx, key)
		return nil, fmt.Errorf("session expired")
	}

	return &session, nil
}

// RevokeTokenSession removes a credential session from Redis
func RevokeTokenSession(credential string) error {
	if RedisClient == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if err := RedisClient.Del(ctx, sessionKey(credential)).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeAllUserSessions removes every session belonging to userID, e.g. on
// password change
func RevokeAllUserSessions(userID uuid.UUID) error {
	if RedisClient == nil {
		return fmt.Errorf("redis client not initialized")
	}

	keys, err := RedisClient.Keys(ctx, "credential:session:*").Result()
	if err != nil {
		return fmt.Errorf("failed to scan session keys: %w", err)
	}

	for _, key := range keys {
		data, err := RedisClient.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		var session models.TokenSession
		if json.Unmarshal([]byte(data), &session) == nil {
			if session.UserProfile.UserID == userID {
				RedisClient.Del(ctx, key)
			}
		}
	}

	return nil
}
