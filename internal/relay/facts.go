package relay

import (
	"context"
	"fmt"
	"time"

	"livewire/backend/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// ParticipantCheckerFunc adapts a plain function to ParticipantChecker
type ParticipantCheckerFunc func(ctx context.Context, conversationID, userID uint) (bool, error)

// IsParticipant implements ParticipantChecker
func (f ParticipantCheckerFunc) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	return f(ctx, conversationID, userID)
}

// CachedParticipantChecker decorates a checker with a short-TTL redis cache.
// The gate re-checks membership on every inbound payload; without the cache
// that is one database hit per message. The TTL bounds how long a revoked
// membership keeps relaying. Redis failures degrade to the wrapped checker.
type CachedParticipantChecker struct {
	next ParticipantChecker
	rdb  *redis.Client
	ttl  time.Duration
	log  *logger.Logger
}

// NewCachedParticipantChecker wraps next with a redis cache
func NewCachedParticipantChecker(next ParticipantChecker, rdb *redis.Client, ttl time.Duration, log *logger.Logger) *CachedParticipantChecker {
	return &CachedParticipantChecker{next: next, rdb: rdb, ttl: ttl, log: log}
}

// IsParticipant implements ParticipantChecker
func (c *CachedParticipantChecker) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	key := participantKey(conversationID, userID)

	if cached, err := c.rdb.Get(ctx, key).Result(); err == nil {
		return cached == "1", nil
	}

	ok, err := c.next.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return false, err
	}

	value := "0"
	if ok {
		value = "1"
	}
	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.log.Debug("participant cache write failed", "error", err.Error())
	}

	return ok, nil
}

// Invalidate drops the cached fact for a (conversation, user) pair. Called by
// the membership CRUD path so revocations take effect without waiting out the
// TTL.
func (c *CachedParticipantChecker) Invalidate(ctx context.Context, conversationID, userID uint) {
	if err := c.rdb.Del(ctx, participantKey(conversationID, userID)).Err(); err != nil {
		c.log.Debug("participant cache invalidation failed", "error", err.Error())
	}
}

func participantKey(conversationID, userID uint) string {
	return fmt.Sprintf("relay:participant:%d:%d", conversationID, userID)
}
