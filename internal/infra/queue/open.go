package queue

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"blog-backend/internal/domain"
)

const (
	BackendRedis    = "redis"
	BackendRabbitMQ = "rabbitmq"
)

// Options выбирают бэкенд очереди писем.
type Options struct {
	Backend   string
	Key       string
	RabbitURL string
	Redis     *redis.Client
}

// Open создаёт очередь писем по настройкам. Второй результат закрывает соединение брокера.
func Open(opts Options) (domain.MailQueue, func() error, error) {
	switch opts.Backend {
	case BackendRedis, "":
		if opts.Redis == nil {
			return nil, nil, fmt.Errorf("очередь %q: не задан REDIS_ADDR", BackendRedis)
		}
		return NewRedisMailQueue(opts.Redis, opts.Key), func() error { return nil }, nil
	case BackendRabbitMQ:
		if opts.RabbitURL == "" {
			return nil, nil, fmt.Errorf("очередь %q: не задан RABBITMQ_URL", BackendRabbitMQ)
		}
		q, err := NewRabbitMailQueue(opts.RabbitURL, opts.Key)
		if err != nil {
			return nil, nil, err
		}
		return q, q.Close, nil
	default:
		return nil, nil, fmt.Errorf("неизвестный бэкенд очереди %q", opts.Backend)
	}
}
