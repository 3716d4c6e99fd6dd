// Package queue содержит очереди писем на Redis lists и RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"blog-backend/internal/domain"
	"blog-backend/internal/infra/metrics"
)

// RedisMailQueue реализует очередь писем на базе Redis lists: LPUSH на запись, BRPOP на чтение.
type RedisMailQueue struct {
	client *redis.Client
	key    string
}

var _ domain.MailQueue = (*RedisMailQueue)(nil)

// NewRedisMailQueue создаёт очередь по указанному ключу.
func NewRedisMailQueue(client *redis.Client, key string) *RedisMailQueue {
	return &RedisMailQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisMailQueue) Enqueue(ctx context.Context, job domain.MailJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "mail_enqueue", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу. Неуспешный ack возвращает задачу в конец очереди,
// пока не исчерпаны попытки.
func (q *RedisMailQueue) Receive(ctx context.Context) (domain.MailJob, domain.MailAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.MailJob{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.MailJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.MailJob{}, nil, err
		}
		if len(res) != 2 {
			return domain.MailJob{}, nil, errors.New("redis queue: unexpected response")
		}
		job, err := decodeJob([]byte(res[1]))
		if err != nil {
			return domain.MailJob{}, nil, err
		}
		return job, q.ack(job), nil
	}
}

func (q *RedisMailQueue) ack(job domain.MailJob) domain.MailAckFunc {
	return func(success bool) error {
		if success {
			return nil
		}
		job.Attempts++
		if job.Attempts >= domain.MaxMailAttempts {
			return ErrAttemptsExhausted
		}
		return q.Enqueue(context.Background(), job)
	}
}

// ErrAttemptsExhausted — задача больше не возвращается в очередь.
var ErrAttemptsExhausted = errors.New("mail job attempts exhausted")

func decodeJob(raw []byte) (domain.MailJob, error) {
	var job domain.MailJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return domain.MailJob{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}
