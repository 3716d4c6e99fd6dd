package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"blog-backend/internal/domain"
	"blog-backend/internal/infra/metrics"
)

// ErrQueueClosed — брокер закрыл канал доставки.
var ErrQueueClosed = errors.New("rabbitmq: delivery channel closed")

// RabbitMailQueue реализует очередь писем поверх AMQP.
type RabbitMailQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	publishMu sync.Mutex

	consumeOnce sync.Once
	deliveries  <-chan amqp.Delivery
	consumeErr  error
}

var _ domain.MailQueue = (*RabbitMailQueue)(nil)

// NewRabbitMailQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitMailQueue(url, queue string) (*RabbitMailQueue, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &RabbitMailQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задачу как persistent-сообщение.
func (q *RabbitMailQueue) Enqueue(ctx context.Context, job domain.MailJob) error {
	msg, err := publishing(job)
	if err != nil {
		return err
	}
	q.publishMu.Lock()
	defer q.publishMu.Unlock()

	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, msg)
	metrics.ObserveNetworkRequest("rabbitmq", "mail_enqueue", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive ждёт следующую доставку. Неуспешный ack возвращает сообщение брокеру.
// Сообщения, которые не удалось разобрать, отбрасываются.
func (q *RabbitMailQueue) Receive(ctx context.Context) (domain.MailJob, domain.MailAckFunc, error) {
	q.consumeOnce.Do(func() {
		q.deliveries, q.consumeErr = q.ch.Consume(q.queue, "", false, false, false, false, nil)
	})
	if q.consumeErr != nil {
		return domain.MailJob{}, nil, fmt.Errorf("consume: %w", q.consumeErr)
	}
	for {
		select {
		case <-ctx.Done():
			return domain.MailJob{}, nil, ctx.Err()
		case d, ok := <-q.deliveries:
			if !ok {
				return domain.MailJob{}, nil, ErrQueueClosed
			}
			job, err := decodeJob(d.Body)
			if err != nil {
				_ = d.Nack(false, false)
				continue
			}
			return job, deliveryAck(d), nil
		}
	}
}

// Close закрывает канал и соединение.
func (q *RabbitMailQueue) Close() error {
	return errors.Join(q.ch.Close(), q.conn.Close())
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func deliveryAck(d acknowledger) domain.MailAckFunc {
	return func(success bool) error {
		if success {
			return d.Ack(false)
		}
		return d.Nack(false, true)
	}
}

func publishing(job domain.MailJob) (amqp.Publishing, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal job: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.RequestedAt,
		Body:         body,
	}, nil
}
