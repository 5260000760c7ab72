// Package app wires configuration into stores, services and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"provsurvey/internal/cache"
	"provsurvey/internal/config"
	"provsurvey/internal/model"
	"provsurvey/internal/repository"
	"provsurvey/internal/service"
	"provsurvey/internal/survey"
	"provsurvey/internal/transport/rest"
	"provsurvey/internal/transport/ws"
)

const pingTimeout = 5 * time.Second

type closer func(context.Context) error

type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Registry *survey.Registry
	Answers  repository.AnswerRepository
	Sessions cache.SessionCache
	Stats    *service.StatsService
	Auth     *service.AuthService
	Flow     *service.FlowService
	Export   *service.ExportService
	Hub      *ws.Hub

	closers []closer
}

// LoadRegistry returns SURVEY_FILE when set, the embedded revision otherwise
func LoadRegistry(cfg *config.Config) (*survey.Registry, error) {
	if cfg.SurveyFile != "" {
		return survey.LoadFile(cfg.SurveyFile)
	}
	return survey.LoadRevision(cfg.SurveyRevision)
}

// Store is an opened answer store and its release function
type Store struct {
	Answers repository.AnswerRepository
	Close   func(context.Context) error
}

// OpenAnswers connects the configured answer store
func OpenAnswers(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Store, error) {
	switch cfg.AnswerDriver {
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, model.NewStorageError("connect mongo", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			client.Disconnect(ctx)
			return nil, model.NewStorageError("ping mongo", err)
		}
		log.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))
		return &Store{
			Answers: repository.NewMongoAnswerRepository(client.Database(cfg.MongoDatabase), log),
			Close:   client.Disconnect,
		}, nil

	case "sqlite", "postgres":
		db, err := repository.OpenSQL(ctx, repository.Driver(cfg.AnswerDriver), cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		log.Info("connected to SQL store", zap.String("driver", cfg.AnswerDriver))
		return &Store{
			Answers: repository.NewSQLAnswerRepository(db),
			Close:   func(context.Context) error { return db.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unsupported answer driver %q", cfg.AnswerDriver)
}

type caches struct {
	sessions cache.SessionCache
	stats    cache.StatsCache
}

// openCaches builds the session and stats caches on the session driver
func openCaches(ctx context.Context, cfg *config.Config, log *zap.Logger) (*caches, closer, error) {
	if cfg.SessionDriver == "memory" {
		log.Warn("using in-memory session store; sessions are lost on restart")
		return &caches{
			sessions: cache.NewMemorySessionCache(cfg.SessionTTL),
			stats:    cache.NewMemoryStatsCache(),
		}, nil, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, nil, model.NewStorageError("ping redis", err)
	}
	log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))
	c := &caches{
		sessions: cache.NewSessionCache(rdb, cfg.SessionTTL),
		stats:    cache.NewStatsCache(rdb),
	}
	return c, func(context.Context) error { return rdb.Close() }, nil
}

// New validates cfg and builds every component
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg, err := LoadRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("load survey: %w", err)
	}
	log.Info("survey loaded",
		zap.String("revision", reg.Revision()),
		zap.Int("questions", len(reg.OrderedIDs())))

	a := &App{Config: cfg, Log: log, Registry: reg}

	store, err := OpenAnswers(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.Answers = store.Answers
	a.closers = append(a.closers, store.Close)

	c, closeCaches, err := openCaches(ctx, cfg, log)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Sessions = c.sessions
	if closeCaches != nil {
		a.closers = append(a.closers, closeCaches)
	}

	if cfg.AdminPassHash == "" {
		log.Warn("ADMIN_PASS_HASH not set, admin login disabled")
	}
	if cfg.InsecureSecret() {
		log.Warn("SESSION_SECRET not set, session cookies are signed with the public default")
	}
	a.Auth = service.NewAuthService(cfg.AdminUser, cfg.AdminPassHash, cfg.SessionSecret, cfg.SessionTTL)

	a.Hub = ws.NewHub(log)
	a.closers = append(a.closers, func(context.Context) error {
		a.Hub.Close()
		return nil
	})

	a.Flow = service.NewFlowService(reg, a.Answers, log)
	a.Stats = service.NewStatsService(c.stats, a.Hub, log)
	a.Flow.SetBroadcaster(a.Stats)
	a.Export = service.NewExportService(reg, a.Answers, log)
	return a, nil
}

// Handler builds the HTTP router
func (a *App) Handler() http.Handler {
	return rest.NewRouter(&rest.Container{
		AuthService:             a.Auth,
		FlowService:             a.Flow,
		ExportService:           a.Export,
		StatsService:            a.Stats,
		Sessions:                a.Sessions,
		WSHub:                   a.Hub,
		Logger:                  a.Log,
		Locales:                 a.Config.Locales,
		DefaultLocale:           a.Config.DefaultLocale,
		CookieSecure:            a.Config.CookieSecure,
		ExportSeparator:         a.Config.ExportSeparator,
		ExportInternalSeparator: a.Config.ExportInternalSeparator,
	})
}

// Close releases everything New opened, in reverse order
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
