package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/pantry/pkg/auth"
	"github.com/platinummonkey/pantry/pkg/observability"
)

const (
	redisTokenPrefix = "pantry:token:"
	redisUserPrefix  = "pantry:token-user:"
)

// cachedToken is the Redis representation of a token and its owner.
// auth.User hides the password hash from JSON, so it is not reused here.
type cachedToken struct {
	Key       string    `json:"key"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	User      struct {
		ID          int64     `json:"id"`
		Email       string    `json:"email"`
		Name        string    `json:"name"`
		IsActive    bool      `json:"is_active"`
		IsStaff     bool      `json:"is_staff"`
		IsSuperuser bool      `json:"is_superuser"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	} `json:"user"`
}

func toCached(t *auth.Token) cachedToken {
	c := cachedToken{Key: t.Key, UserID: t.UserID, CreatedAt: t.CreatedAt}
	if t.User != nil {
		c.User.ID = t.User.ID
		c.User.Email = t.User.Email
		c.User.Name = t.User.Name
		c.User.IsActive = t.User.IsActive
		c.User.IsStaff = t.User.IsStaff
		c.User.IsSuperuser = t.User.IsSuperuser
		c.User.CreatedAt = t.User.CreatedAt
		c.User.UpdatedAt = t.User.UpdatedAt
	}
	return c
}

func (c cachedToken) token() *auth.Token {
	return &auth.Token{
		Key:       c.Key,
		UserID:    c.UserID,
		CreatedAt: c.CreatedAt,
		User: &auth.User{
			ID:          c.User.ID,
			Email:       c.User.Email,
			Name:        c.User.Name,
			IsActive:    c.User.IsActive,
			IsStaff:     c.User.IsStaff,
			IsSuperuser: c.User.IsSuperuser,
			CreatedAt:   c.User.CreatedAt,
			UpdatedAt:   c.User.UpdatedAt,
		},
	}
}

// CachedTokenStore puts an in-process LRU and an optional Redis layer in
// front of LookupToken. Misses are never cached, so a freshly issued token
// is visible immediately. Entries are dropped on logout, user update and
// token reaping; the TTL bounds staleness across instances.
type CachedTokenStore struct {
	next  auth.TokenStore
	local *expirable.LRU[string, cachedToken]
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedTokenStore wraps next. redisClient may be nil.
func NewCachedTokenStore(next auth.TokenStore, size int, ttl time.Duration, redisClient *redis.Client) *CachedTokenStore {
	return &CachedTokenStore{
		next:  next,
		local: expirable.NewLRU[string, cachedToken](size, nil, ttl),
		redis: redisClient,
		ttl:   ttl,
	}
}

// NewTokenCache puts a CachedTokenStore in front of the store's tokens and
// invalidates it whenever a user is updated, so deactivation takes effect on
// the next request
func (s *Store) NewTokenCache(size int, ttl time.Duration, redisClient *redis.Client) *CachedTokenStore {
	c := NewCachedTokenStore(s, size, ttl, redisClient)
	s.OnUserChange(c)
	return c
}

// LookupToken implements auth.TokenStore
func (c *CachedTokenStore) LookupToken(ctx context.Context, key string) (*auth.Token, error) {
	if cached, ok := c.local.Get(key); ok {
		return cached.token(), nil
	}

	if c.redis != nil {
		if cached, ok := c.getRedis(ctx, key); ok {
			c.local.Add(key, cached)
			return cached.token(), nil
		}
	}

	token, err := c.next.LookupToken(ctx, key)
	if err != nil {
		return nil, err
	}

	cached := toCached(token)
	c.local.Add(key, cached)
	if c.redis != nil {
		c.setRedis(ctx, cached)
	}
	return token, nil
}

// GetOrCreateToken implements auth.TokenStore
func (c *CachedTokenStore) GetOrCreateToken(ctx context.Context, userID int64, key string) (*auth.Token, bool, error) {
	return c.next.GetOrCreateToken(ctx, userID, key)
}

// DeleteToken implements auth.TokenStore
func (c *CachedTokenStore) DeleteToken(ctx context.Context, key string) error {
	err := c.next.DeleteToken(ctx, key)
	c.invalidateKey(ctx, key)
	return err
}

// DeleteInactiveUserTokens implements auth.TokenStore
func (c *CachedTokenStore) DeleteInactiveUserTokens(ctx context.Context) ([]string, error) {
	keys, err := c.next.DeleteInactiveUserTokens(ctx)
	for _, key := range keys {
		c.invalidateKey(ctx, key)
	}
	return keys, err
}

// InvalidateUser drops cached entries owned by the user so changes to the
// account are seen by the next request
func (c *CachedTokenStore) InvalidateUser(ctx context.Context, userID int64) error {
	for _, key := range c.local.Keys() {
		if cached, ok := c.local.Peek(key); ok && cached.UserID == userID {
			c.local.Remove(key)
		}
	}

	if c.redis == nil {
		return nil
	}

	userKey := redisUserPrefix + strconv.FormatInt(userID, 10)
	tokenKey, err := c.redis.Get(ctx, userKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := c.redis.Del(ctx, redisTokenPrefix+tokenKey, userKey).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Len returns the number of entries in the in-process cache
func (c *CachedTokenStore) Len() int {
	return c.local.Len()
}

func (c *CachedTokenStore) invalidateKey(ctx context.Context, key string) {
	cached, ok := c.local.Peek(key)
	c.local.Remove(key)

	if c.redis == nil {
		return
	}
	keys := []string{redisTokenPrefix + key}
	if ok {
		keys = append(keys, redisUserPrefix+strconv.FormatInt(cached.UserID, 10))
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to drop revoked token from redis")
	}
}

func (c *CachedTokenStore) getRedis(ctx context.Context, key string) (cachedToken, bool) {
	var cached cachedToken

	data, err := c.redis.Get(ctx, redisTokenPrefix+key).Bytes()
	if err != nil {
		// Cache miss or Redis unavailable; fall through to the database
		return cached, false
	}
	if err := json.Unmarshal(data, &cached); err != nil {
		c.redis.Del(ctx, redisTokenPrefix+key)
		return cached, false
	}
	return cached, true
}

func (c *CachedTokenStore) setRedis(ctx context.Context, cached cachedToken) {
	data, err := json.Marshal(cached)
	if err != nil {
		return
	}
	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, redisTokenPrefix+cached.Key, data, c.ttl)
	pipe.Set(ctx, redisUserPrefix+strconv.FormatInt(cached.UserID, 10), cached.Key, c.ttl)
	pipe.Exec(ctx)
}
