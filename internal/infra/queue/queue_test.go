package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"blog-backend/internal/domain"
)

func newRedisQueue(t *testing.T) *RedisMailQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisMailQueue(client, "mail_jobs")
}

func TestRedisQueueIsFIFO(t *testing.T) {
	q := newRedisQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, domain.MailJob{ID: "a", Email: "a@example.com"}))
	require.NoError(t, q.Enqueue(ctx, domain.MailJob{ID: "b", Email: "b@example.com"}))

	first, ack, err := q.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", first.ID)
	require.NoError(t, ack(true))

	second, _, err := q.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, "b", second.ID)
}

func TestRedisQueueRequeuesUntilAttemptsExhausted(t *testing.T) {
	q := newRedisQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, domain.MailJob{ID: "retry"}))

	for attempt := 1; attempt < domain.MaxMailAttempts; attempt++ {
		job, ack, err := q.Receive(ctx)
		require.NoError(t, err)
		require.Equal(t, attempt-1, job.Attempts)
		require.NoError(t, ack(false))
	}
	job, ack, err := q.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.MaxMailAttempts-1, job.Attempts)
	require.ErrorIs(t, ack(false), ErrAttemptsExhausted)
}

func TestRedisQueueReceiveStopsOnCancel(t *testing.T) {
	q := newRedisQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := q.Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeDelivery struct {
	acked, nacked, requeued bool
}

func (f *fakeDelivery) Ack(bool) error {
	f.acked = true
	return nil
}

func (f *fakeDelivery) Nack(_ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func TestDeliveryAck(t *testing.T) {
	ok := &fakeDelivery{}
	require.NoError(t, deliveryAck(ok)(true))
	require.True(t, ok.acked)

	failed := &fakeDelivery{}
	require.NoError(t, deliveryAck(failed)(false))
	require.True(t, failed.nacked)
	require.True(t, failed.requeued)
}

func TestPublishingIsPersistentJSON(t *testing.T) {
	job := domain.MailJob{ID: "job-1", Email: "a@example.com", RequestedAt: time.Unix(100, 0).UTC()}
	msg, err := publishing(job)
	require.NoError(t, err)
	require.Equal(t, amqp.Persistent, msg.DeliveryMode)
	require.Equal(t, "job-1", msg.MessageId)

	var decoded domain.MailJob
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	require.Equal(t, job, decoded)
}

func TestOpenSelectsBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q, closeFn, err := Open(Options{Backend: BackendRedis, Key: "mail_jobs", Redis: client})
	require.NoError(t, err)
	require.IsType(t, &RedisMailQueue{}, q)
	require.NoError(t, closeFn())

	_, _, err = Open(Options{Backend: BackendRedis})
	require.Error(t, err)

	_, _, err = Open(Options{Backend: BackendRabbitMQ})
	require.Error(t, err)

	_, _, err = Open(Options{Backend: "kafka"})
	require.Error(t, err)
}
