package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"blog-backend/internal/adapters/mailer"
	"blog-backend/internal/domain"
	"blog-backend/internal/infra/cache"
	"blog-backend/internal/infra/config"
	applog "blog-backend/internal/infra/log"
	"blog-backend/internal/infra/metrics"
	"blog-backend/internal/infra/queue"
	"blog-backend/internal/usecase/mail"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	var (
		redisClient *redis.Client
		dedup       domain.Cache
	)
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(cfg.RedisAddr)
		if err != nil {
			logger.Fatal().Err(err).Msg("mailer: нет подключения к Redis")
		}
		defer client.Close()
		redisClient = client
		dedup = cache.NewRedis(client)
	} else {
		mem, err := cache.NewMemory(8 << 20)
		if err != nil {
			logger.Fatal().Err(err).Msg("mailer: не удалось создать кэш")
		}
		defer mem.Close()
		dedup = mem
	}

	jobs, closeQueue, err := queue.Open(queue.Options{
		Backend:   cfg.Mail.Backend,
		Key:       cfg.Mail.QueueKey,
		RabbitURL: cfg.Mail.RabbitURL,
		Redis:     redisClient,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("mailer: не удалось инициализировать очередь")
	}
	defer func() { _ = closeQueue() }()

	worker := mail.NewWorker(jobs, mailer.NewLogMailer(applog.Component(logger, "smtp")), dedup, applog.Component(logger, "mailer"))

	logger.Info().Str("backend", cfg.Mail.Backend).Msg("mailer: запуск обработки очереди")
	worker.Run(ctx)
	logger.Info().Msg("mailer: остановлен")
}
