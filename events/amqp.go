package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wfunc/gamecenter/logger"
)

// AMQPPublisher publishes persistent JSON messages to a durable queue on the default
// exchange. The connection is opened lazily and reopened after it breaks.
type AMQPPublisher struct {
	url   string
	queue string
	dial  func(url string) (*amqp.Connection, error)

	mutex sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
}

func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	if queue == "" {
		queue = BookingConfirmedQueue
	}
	return &AMQPPublisher{url: url, queue: queue, dial: amqp.Dial}
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()

	conn, err := p.dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	// durable, not auto-deleted, not exclusive
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) PublishBookingConfirmed(ctx context.Context, event BookingConfirmed) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    event.BookingID,
		Body:         body,
	})
	if err != nil {
		p.closeLocked()
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	logger.Log.Debugw("booking event published", "queue", p.queue, "booking", event.BookingID)
	return nil
}

func (p *AMQPPublisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *AMQPPublisher) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.closeLocked()
	return nil
}
