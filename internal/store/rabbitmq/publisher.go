package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/relaychat/internal/chat"
)

const (
	// RetryHeader counts how many times a delivery has been requeued.
	RetryHeader = "x-retry-count"
	retryDelay  = 5 * time.Second
)

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// DeclareTopology declares the main queue plus its ".retry" and ".dlq"
// companions. Rejected deliveries dead-letter into the DLQ and expired retry
// messages dead-letter back into the main queue. Publisher and worker both
// call it so the queue arguments always agree.
func DeclareTopology(ch *amqp.Channel, queue string) error {
	retryQ := queue + ".retry"
	dlqQ := queue + ".dlq"

	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", dlqQ, err)
	}
	if _, err := ch.QueueDeclare(retryQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", retryQ, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQ,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	return nil
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) EnqueueTitle(ctx context.Context, job chat.TitleJob) error {
	msg, err := TitlePublishing(job, 0)
	if err != nil {
		return err
	}
	return publish(ctx, p.ch, p.queue, msg)
}

// Retry republishes a failed job to the retry queue, where it waits out
// retryDelay before dead-lettering back to the main queue.
func Retry(ctx context.Context, ch *amqp.Channel, queue string, job chat.TitleJob, attempt int) error {
	msg, err := TitlePublishing(job, attempt)
	if err != nil {
		return err
	}
	msg.Expiration = strconv.FormatInt(retryDelay.Milliseconds(), 10)
	return publish(ctx, ch, queue+".retry", msg)
}

// TitlePublishing encodes job as a persistent JSON message.
func TitlePublishing(job chat.TitleJob, attempt int) (amqp.Publishing, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.JobID,
		Headers:      amqp.Table{RetryHeader: int32(attempt)},
		Body:         body,
		Timestamp:    time.Now(),
	}, nil
}

// DecodeTitleJob reads a delivery body and its retry count.
func DecodeTitleJob(d amqp.Delivery) (chat.TitleJob, int, error) {
	var job chat.TitleJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		return job, 0, err
	}
	if job.ChatID == "" || job.UserID == 0 {
		return job, 0, fmt.Errorf("title job %q: missing chat or user", job.JobID)
	}
	attempt := 0
	switch v := d.Headers[RetryHeader].(type) {
	case int32:
		attempt = int(v)
	case int64:
		attempt = int(v)
	case int:
		attempt = v
	}
	return job, attempt, nil
}

func publish(ctx context.Context, ch *amqp.Channel, routingKey string, msg amqp.Publishing) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ch.PublishWithContext(cctx,
		"",         // default exchange
		routingKey, // routing key = queue
		false,
		false,
		msg,
	)
}
