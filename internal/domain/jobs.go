package domain

import (
	"context"
	"time"
)

// MailJob содержит письмо, которое нужно отправить пользователю.
type MailJob struct {
	ID             string    `json:"job_id"`
	UserID         int64     `json:"user_id"`
	Email          string    `json:"email"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	NotificationID int64     `json:"notification_id,omitempty"`
	RequestedAt    time.Time `json:"requested_at"`
	Attempts       int       `json:"attempts,omitempty"`
}

// MaxMailAttempts — сколько раз письмо возвращается в очередь после неудачи.
const MaxMailAttempts = 3

// MailQueue описывает очередь писем.
type MailQueue interface {
	Enqueue(ctx context.Context, job MailJob) error
	Receive(ctx context.Context) (MailJob, MailAckFunc, error)
}

// MailAckFunc подтверждает обработку письма или возвращает его в очередь.
type MailAckFunc func(success bool) error

// Mailer доставляет письмо.
type Mailer interface {
	Send(ctx context.Context, job MailJob) error
}
