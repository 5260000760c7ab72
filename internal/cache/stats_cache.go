package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"provsurvey/internal/model"
)

// Counter names
const (
	CounterStarted   = "started"
	CounterFinished  = "finished"
	CounterRestarted = "restarted"
	answersPrefix    = "answers:"
)

// AnswerCounter is the counter of saves for one question
func AnswerCounter(questionID string) string {
	return answersPrefix + questionID
}

// StatsCache holds live survey counters per revision
type StatsCache interface {
	Increment(ctx context.Context, revision, counter string) error
	Get(ctx context.Context, revision string) (*model.SurveyStats, error)
}

type statsCache struct {
	client *redis.Client
}

// NewStatsCache keeps the counters of each revision in one Redis hash
func NewStatsCache(client *redis.Client) StatsCache {
	return &statsCache{client: client}
}

func statsKey(revision string) string {
	return "survey:stats:" + revision
}

func (c *statsCache) Increment(ctx context.Context, revision, counter string) error {
	return model.NewStorageError("increment stats", c.client.HIncrBy(ctx, statsKey(revision), counter, 1).Err())
}

func (c *statsCache) Get(ctx context.Context, revision string) (*model.SurveyStats, error) {
	raw, err := c.client.HGetAll(ctx, statsKey(revision)).Result()
	if err != nil {
		return nil, model.NewStorageError("get stats", err)
	}
	counters := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		counters[k] = n
	}
	return buildStats(revision, counters), nil
}

func buildStats(revision string, counters map[string]int64) *model.SurveyStats {
	stats := &model.SurveyStats{Revision: revision, Answers: make(map[string]int64)}
	for k, n := range counters {
		switch k {
		case CounterStarted:
			stats.Started = n
		case CounterFinished:
			stats.Finished = n
		case CounterRestarted:
			stats.Restarted = n
		default:
			if q, ok := strings.CutPrefix(k, answersPrefix); ok {
				stats.Answers[q] = n
			}
		}
	}
	return stats
}

type memoryStatsCache struct {
	mu       sync.Mutex
	counters map[string]map[string]int64
}

// NewMemoryStatsCache keeps counters in process memory
func NewMemoryStatsCache() StatsCache {
	return &memoryStatsCache{counters: make(map[string]map[string]int64)}
}

func (c *memoryStatsCache) Increment(_ context.Context, revision, counter string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.counters[revision]
	if !ok {
		m = make(map[string]int64)
		c.counters[revision] = m
	}
	m[counter]++
	return nil
}

func (c *memoryStatsCache) Get(_ context.Context, revision string) (*model.SurveyStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return buildStats(revision, c.counters[revision]), nil
}
