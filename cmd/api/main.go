package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"blog-backend/internal/adapters/api"
	"blog-backend/internal/adapters/repo"
	"blog-backend/internal/adapters/ws"
	"blog-backend/internal/domain"
	"blog-backend/internal/infra/auth"
	"blog-backend/internal/infra/cache"
	"blog-backend/internal/infra/config"
	"blog-backend/internal/infra/db"
	httpinfra "blog-backend/internal/infra/http"
	applog "blog-backend/internal/infra/log"
	"blog-backend/internal/infra/metrics"
	"blog-backend/internal/infra/queue"
	"blog-backend/internal/usecase/accounts"
	"blog-backend/internal/usecase/analytics"
	"blog-backend/internal/usecase/comments"
	"blog-backend/internal/usecase/notify"
	"blog-backend/internal/usecase/posts"
)

const memoryCacheBytes = 64 << 20

type store interface {
	domain.UserRepo
	domain.PostRepo
	domain.CommentRepo
	domain.NotificationRepo
	domain.PreferenceRepo
	domain.AnalyticsRepo
}

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	var st store
	if cfg.PGDSN != "" {
		pool, err := db.Connect(cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: нет подключения к БД")
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось применить схему")
		}
		st = repo.NewPostgres(pool)
	} else {
		logger.Warn().Msg("api: PG_DSN не задан, данные хранятся в памяти процесса")
		st = repo.NewMemory()
	}

	var (
		redisClient *redis.Client
		postCache   domain.Cache
	)
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(cfg.RedisAddr)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: нет подключения к Redis")
		}
		defer client.Close()
		redisClient = client
		postCache = cache.NewRedis(client)
	} else {
		mem, err := cache.NewMemory(memoryCacheBytes)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось создать кэш")
		}
		defer mem.Close()
		postCache = mem
	}

	hub := ws.NewHub(applog.Component(logger, "hub"))
	notifyOpts := []notify.Option{}
	mailQueue, closeQueue, err := queue.Open(queue.Options{
		Backend:   cfg.Mail.Backend,
		Key:       cfg.Mail.QueueKey,
		RabbitURL: cfg.Mail.RabbitURL,
		Redis:     redisClient,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("api: очередь писем недоступна, email-уведомления отключены")
	} else {
		defer func() { _ = closeQueue() }()
		notifyOpts = append(notifyOpts, notify.WithMail(mailQueue, st))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, auth.WithRevocations(postCache))
	notifier := notify.NewService(st, st, hub, applog.Component(logger, "notify"), notifyOpts...)
	postsCache := posts.NewCache(st, postCache, cfg.Cache.PostTTL, applog.Component(logger, "post_cache"))

	live := ws.NewHandler(hub, tokens, ws.Config{
		SendBuffer:   cfg.WS.SendBuffer,
		WriteTimeout: cfg.WS.WriteTimeout,
		PongTimeout:  cfg.WS.PongTimeout,
	}, applog.Component(logger, "ws"))

	srv := httpinfra.NewServer(applog.Component(logger, "http"))
	api.NewHandler(api.Deps{
		Accounts:      accounts.NewService(st, tokens),
		Posts:         posts.NewService(st, postsCache, notifier, applog.Component(logger, "posts")),
		Comments:      comments.NewService(st, st, notifier, applog.Component(logger, "comments")),
		Notifications: notifier,
		Analytics:     analytics.NewService(st),
		Resolver:      tokens,
		Live:          live,
	}, applog.Component(logger, "api")).Mount(srv.Router)

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdown(logger, srv, hub, cfg.ShutdownTimeout)
}

func shutdown(logger zerolog.Logger, srv *httpinfra.Server, hub *ws.Hub, timeout time.Duration) {
	hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("api: graceful shutdown не завершён")
	}
}
