// Package mail разбирает очередь писем и доставляет их через domain.Mailer.
package mail

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"blog-backend/internal/domain"
	"blog-backend/internal/infra/metrics"
)

// dedupTTL — сколько помним отправленный job id.
const dedupTTL = 24 * time.Hour

// Worker читает задачи и отправляет письма не более одного раза на job id.
type Worker struct {
	log     zerolog.Logger
	queue   domain.MailQueue
	mailer  domain.Mailer
	cache   domain.Cache
	backoff time.Duration
}

// NewWorker создаёт обработчик очереди.
func NewWorker(queue domain.MailQueue, mailer domain.Mailer, cache domain.Cache, logger zerolog.Logger) *Worker {
	return &Worker{log: logger, queue: queue, mailer: mailer, cache: cache, backoff: time.Second}
}

// Run обрабатывает очередь до отмены контекста.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("mailer: ошибка чтения очереди")
			if !sleep(ctx, w.backoff) {
				return
			}
			continue
		}
		w.Handle(ctx, job, ack)
	}
}

// Handle обрабатывает одну задачу и подтверждает её.
func (w *Worker) Handle(ctx context.Context, job domain.MailJob, ack domain.MailAckFunc) {
	jobLog := w.log.With().
		Str("job_id", job.ID).
		Int64("user_id", job.UserID).
		Int("attempt", job.Attempts+1).
		Logger()

	if job.ID == "" || job.Email == "" {
		jobLog.Error().Msg("mailer: задача без идентификатора или адреса, пропускаем")
		metrics.MailJobs.WithLabelValues("skipped").Inc()
		w.ack(jobLog, ack, true)
		return
	}

	err := w.cache.Once(ctx, "mail:"+job.ID, dedupTTL, func() error {
		return w.mailer.Send(ctx, job)
	})
	if err != nil {
		jobLog.Warn().Err(err).Msg("mailer: письмо не отправлено")
		metrics.MailJobs.WithLabelValues("failed").Inc()
		w.ack(jobLog, ack, false)
		return
	}
	metrics.MailJobs.WithLabelValues("sent").Inc()
	w.ack(jobLog, ack, true)
}

func (w *Worker) ack(jobLog zerolog.Logger, ack domain.MailAckFunc, success bool) {
	if ack == nil {
		return
	}
	if err := ack(success); err != nil {
		jobLog.Error().Err(err).Bool("success", success).Msg("mailer: не удалось подтвердить задачу")
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
