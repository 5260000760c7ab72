package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"provsurvey/internal/cache"
	"provsurvey/internal/model"
)

const statsTimeout = 2 * time.Second

// StatsService counts flow events per revision and forwards them to the
// next broadcaster. Counting failures are logged, never returned to the flow.
type StatsService struct {
	stats cache.StatsCache
	next  Broadcaster
	log   *zap.Logger
}

func NewStatsService(stats cache.StatsCache, next Broadcaster, log *zap.Logger) *StatsService {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsService{stats: stats, next: next, log: log}
}

func (s *StatsService) BroadcastToMonitors(msgType string, payload interface{}) {
	if ev, ok := payload.(ProgressEvent); ok {
		if counter := eventCounter(msgType, ev); counter != "" {
			s.record(ev.Revision, counter)
		}
	}
	if s.next != nil {
		s.next.BroadcastToMonitors(msgType, payload)
	}
}

func (s *StatsService) record(revision, counter string) {
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()
	if err := s.stats.Increment(ctx, revision, counter); err != nil {
		s.log.Warn("failed to record stats",
			zap.String("revision", revision),
			zap.String("counter", counter),
			zap.Error(err))
	}
}

// Stats returns the counters of revision
func (s *StatsService) Stats(ctx context.Context, revision string) (*model.SurveyStats, error) {
	return s.stats.Get(ctx, revision)
}

func eventCounter(msgType string, ev ProgressEvent) string {
	switch msgType {
	case EventRespondentStarted:
		return cache.CounterStarted
	case EventRespondentFinished:
		return cache.CounterFinished
	case EventRespondentRestarted:
		return cache.CounterRestarted
	case EventAnswerSaved:
		if ev.QuestionID != "" {
			return cache.AnswerCounter(ev.QuestionID)
		}
	}
	return ""
}
