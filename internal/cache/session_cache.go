package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"provsurvey/internal/model"
)

// SessionCache stores the Position of each browser session.
// Get returns nil, nil when the session is unknown or expired.
type SessionCache interface {
	Set(ctx context.Context, sid string, pos *model.Position) error
	Get(ctx context.Context, sid string) (*model.Position, error)
	Delete(ctx context.Context, sid string) error
}

type sessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionCache(client *redis.Client, ttl time.Duration) SessionCache {
	return &sessionCache{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(sid string) string {
	return "survey:session:" + sid
}

func (c *sessionCache) Set(ctx context.Context, sid string, pos *model.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	return model.NewStorageError("set session", c.client.Set(ctx, sessionKey(sid), data, c.ttl).Err())
}

func (c *sessionCache) Get(ctx context.Context, sid string) (*model.Position, error) {
	data, err := c.client.Get(ctx, sessionKey(sid)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, model.NewStorageError("get session", err)
	}
	var pos model.Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil, err
	}
	return &pos, nil
}

func (c *sessionCache) Delete(ctx context.Context, sid string) error {
	return model.NewStorageError("delete session", c.client.Del(ctx, sessionKey(sid)).Err())
}

type memoryEntry struct {
	pos     model.Position
	expires time.Time
}

type memorySessionCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemorySessionCache keeps sessions in process memory, for single-node
// deployments and tests
func NewMemorySessionCache(ttl time.Duration) SessionCache {
	return &memorySessionCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *memorySessionCache) Set(_ context.Context, sid string, pos *model.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}
	c.entries[sid] = memoryEntry{pos: pos.Clone(), expires: expires}
	return nil
}

func (c *memorySessionCache) Get(_ context.Context, sid string) (*model.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[sid]
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.entries, sid)
		return nil, nil
	}
	pos := e.pos.Clone()
	return &pos, nil
}

func (c *memorySessionCache) Delete(_ context.Context, sid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sid)
	return nil
}
