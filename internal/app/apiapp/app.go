package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/brokerreviews/internal/config"
	"github.com/ivankudzin/brokerreviews/internal/infra/telegram"
	"github.com/ivankudzin/brokerreviews/internal/jobs/reminder"
	"github.com/ivankudzin/brokerreviews/internal/repo/memory"
	pgrepo "github.com/ivankudzin/brokerreviews/internal/repo/postgres"
	redrepo "github.com/ivankudzin/brokerreviews/internal/repo/redis"
	authsvc "github.com/ivankudzin/brokerreviews/internal/services/auth"
	modsvc "github.com/ivankudzin/brokerreviews/internal/services/moderation"
	ratesvc "github.com/ivankudzin/brokerreviews/internal/services/rate"
	"github.com/ivankudzin/brokerreviews/internal/transport/http/handlers"
)

const memoryDedupCapacity = 10000

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	httpRouter http.Handler

	reminder        *reminder.Job
	pipelineEnabled bool
	background      context.Context
	stopBackground  context.CancelFunc
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, reviews are kept in memory", zap.Error(err))
	} else {
		pool = p
	}

	var (
		store     modsvc.StateStore
		storeName string
	)
	if pool != nil {
		store, storeName = pgrepo.NewReviewRepo(pool), "postgres"
	} else {
		store, storeName = memory.NewReviewStore(), "memory"
	}

	var (
		redisClient *goredis.Client
		dedup       handlers.UpdateDeduplicator
		limiter     handlers.CommandLimiter
		routerOpts  = []modsvc.RouterOption{modsvc.WithAllowedIssuers(cfg.Moderation.AllowedIssuers)}
	)
	client := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := redrepo.Ping(ctx, client); err != nil {
		log.Warn("redis init failed, using in-memory update dedup without command rate limit", zap.Error(err))
		_ = client.Close()
		dedup = memory.NewUpdateDedup(memoryDedupCapacity, cfg.Moderation.DedupTTL)
	} else {
		redisClient = client
		dedup = redrepo.NewUpdateDedupRepo(client, cfg.Moderation.DedupTTL)
		limiter = ratesvc.NewLimiter(redrepo.NewRateRepo(client), cfg.Moderation.CommandsPerMinute)
		if cfg.Moderation.PublishDecisions {
			routerOpts = append(routerOpts, modsvc.WithDecisionPublisher(redrepo.NewDecisionPublisher(client, cfg.Moderation.DecisionsChannel)))
		}
	}

	channel, err := newChannelClient(cfg.Telegram, log)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}
	pipelineEnabled := channel.Enabled()

	routerOpts = append(routerOpts, modsvc.WithBotUsername(channel.BotUsername))
	commandRouter := modsvc.NewRouter(store, channel, log, routerOpts...)
	notifier := modsvc.NewNotifier(store, channel, log, cfg.Moderation.NotifyMaxElapsed)
	reminderJob := reminder.New(store, notifier, cfg.Moderation.ReminderAfter, cfg.Moderation.ReminderBatch, log)

	RegisterRoutes(r, Dependencies{
		Router:          commandRouter,
		Dedup:           dedup,
		Limiter:         limiter,
		Submitter:       notifier,
		Lookup:          store,
		WebhookStatus:   channel,
		JWT:             authsvc.NewJWTManager(cfg.Auth.JWTSecret, 0),
		PipelineEnabled: pipelineEnabled,
		StoreName:       storeName,
		Logger:          log,
		Config:          cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	background, stop := context.WithCancel(ctx)

	return &App{
		cfg:             cfg,
		logger:          log,
		server:          server,
		postgres:        pool,
		redis:           redisClient,
		httpRouter:      r,
		reminder:        reminderJob,
		pipelineEnabled: pipelineEnabled,
		background:      background,
		stopBackground:  stop,
	}, nil
}

// newChannelClient builds the Telegram client without contacting the provider. Missing
// credentials leave the pipeline disabled; any other construction error is returned.
func newChannelClient(cfg config.TelegramConfig, log *zap.Logger) (*telegram.Client, error) {
	client, err := telegram.New(telegram.Config{
		Token:       cfg.Token,
		ChannelID:   cfg.ChannelID,
		APIEndpoint: cfg.APIEndpoint,
		Timeout:     cfg.RequestTimeout,
	})
	if err == nil {
		log.Info("telegram moderation channel configured", zap.String("channel", cfg.ChannelID))
		return client, nil
	}

	var cfgErr *telegram.ConfigurationError
	if errors.As(err, &cfgErr) {
		log.Warn("telegram is not configured, moderation pipeline disabled", zap.Strings("missing", cfgErr.Missing))
		return telegram.Disabled(cfgErr), nil
	}
	return nil, fmt.Errorf("create telegram client: %w", err)
}

func (a *App) Run() error {
	if a.pipelineEnabled && a.reminder != nil {
		go func() {
			_ = a.reminder.Loop(a.background, a.cfg.Moderation.ReminderInterval)
		}()
	}

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr), zap.Bool("pipeline_enabled", a.pipelineEnabled))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if a.stopBackground != nil {
		a.stopBackground()
	}
	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
