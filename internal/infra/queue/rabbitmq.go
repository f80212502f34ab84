package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"teetime-monitor/internal/domain"
	"teetime-monitor/internal/infra/metrics"
)

// RabbitScrapeQueue передаёт пачки скрейпа через RabbitMQ.
type RabbitScrapeQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewRabbitScrapeQueue подключается и объявляет устойчивую очередь.
func NewRabbitScrapeQueue(url, queue string) (*RabbitScrapeQueue, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("подключение к RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("открытие канала: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("объявление очереди %s: %w", queue, err)
	}
	return &RabbitScrapeQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Publish публикует пачку в очередь.
func (q *RabbitScrapeQueue) Publish(ctx context.Context, batch domain.ScrapeBatch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    batch.ID,
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish batch: %w", err)
	}
	return nil
}

// Poll неблокирующе забирает одну пачку; ok=false — очередь пуста.
func (q *RabbitScrapeQueue) Poll(ctx context.Context) (domain.ScrapeBatch, domain.AckFunc, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScrapeBatch{}, nil, false, err
	}
	start := time.Now()
	msg, ok, err := q.ch.Get(q.queue, false)
	metrics.ObserveNetworkRequest("rabbitmq", "get", q.queue, start, err)
	if err != nil {
		return domain.ScrapeBatch{}, nil, false, fmt.Errorf("чтение очереди: %w", err)
	}
	if !ok {
		return domain.ScrapeBatch{}, nil, false, nil
	}
	var batch domain.ScrapeBatch
	if err := json.Unmarshal(msg.Body, &batch); err != nil {
		// Нечитаемое сообщение подтверждаем, иначе оно будет крутиться вечно.
		_ = msg.Ack(false)
		return domain.ScrapeBatch{}, nil, false, fmt.Errorf("decode batch: %w", err)
	}
	ack := func(success bool) error {
		if success {
			return msg.Ack(false)
		}
		return msg.Nack(false, true)
	}
	return batch, ack, true, nil
}

// Close закрывает канал и соединение.
func (q *RabbitScrapeQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
