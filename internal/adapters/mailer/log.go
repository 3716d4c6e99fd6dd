// Package mailer доставляет письма. SMTP-шлюз внешний, здесь письма пишутся в лог.
package mailer

import (
	"context"

	"github.com/rs/zerolog"

	"blog-backend/internal/domain"
)

// LogMailer пишет письмо в структурный лог вместо отправки.
type LogMailer struct {
	log zerolog.Logger
}

var _ domain.Mailer = (*LogMailer)(nil)

// NewLogMailer создаёт mailer.
func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{log: logger}
}

// Send реализует domain.Mailer.
func (m *LogMailer) Send(ctx context.Context, job domain.MailJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.log.Info().
		Str("job_id", job.ID).
		Str("to", job.Email).
		Str("subject", job.Subject).
		Str("body", job.Body).
		Int64("notification_id", job.NotificationID).
		Msg("mailer: письмо отправлено")
	return nil
}
