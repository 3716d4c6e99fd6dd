package mail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"blog-backend/internal/domain"
	"blog-backend/internal/infra/cache"
	"blog-backend/internal/infra/queue"
)

type countingMailer struct {
	mu   sync.Mutex
	sent []string
	fail error
}

func (m *countingMailer) Send(_ context.Context, job domain.MailJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, job.ID)
	return nil
}

func (m *countingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestHandleDeduplicatesByJobID(t *testing.T) {
	client := newRedis(t)
	mailer := &countingMailer{}
	w := NewWorker(nil, mailer, cache.NewRedis(client), zerolog.Nop())

	var acks []bool
	ack := func(ok bool) error {
		acks = append(acks, ok)
		return nil
	}
	job := domain.MailJob{ID: "job-1", Email: "a@example.com"}
	w.Handle(context.Background(), job, ack)
	w.Handle(context.Background(), job, ack)

	require.Equal(t, 1, mailer.count())
	require.Equal(t, []bool{true, true}, acks)
}

func TestHandleFailureRequeues(t *testing.T) {
	client := newRedis(t)
	mailer := &countingMailer{fail: errors.New("smtp down")}
	w := NewWorker(nil, mailer, cache.NewRedis(client), zerolog.Nop())

	var acks []bool
	ack := func(ok bool) error {
		acks = append(acks, ok)
		return nil
	}
	w.Handle(context.Background(), domain.MailJob{ID: "job-2", Email: "a@example.com"}, ack)
	require.Equal(t, []bool{false}, acks)

	mailer.fail = nil
	w.Handle(context.Background(), domain.MailJob{ID: "job-2", Email: "a@example.com"}, ack)
	require.Equal(t, []bool{false, true}, acks)
	require.Equal(t, 1, mailer.count())
}

func TestHandleSkipsInvalidJob(t *testing.T) {
	mailer := &countingMailer{}
	w := NewWorker(nil, mailer, cache.NewRedis(newRedis(t)), zerolog.Nop())

	acked := false
	w.Handle(context.Background(), domain.MailJob{ID: "job-3"}, func(ok bool) error {
		acked = ok
		return nil
	})
	require.True(t, acked)
	require.Equal(t, 0, mailer.count())
}

func TestRunDrainsQueue(t *testing.T) {
	client := newRedis(t)
	q := queue.NewRedisMailQueue(client, "mail_jobs")
	mailer := &countingMailer{}
	w := NewWorker(q, mailer, cache.NewRedis(client), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, id := range []string{"a", "b", "a"} {
		require.NoError(t, q.Enqueue(ctx, domain.MailJob{ID: id, Email: id + "@example.com"}))
	}

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return mailer.count() == 2 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker не остановился")
	}
}
