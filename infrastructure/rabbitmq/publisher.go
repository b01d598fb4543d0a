package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/AzielCF/az-flow/pkg/botmonitor"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher forwards monitor events to a durable queue as JSON.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	queue    string
	declared bool
}

// Dial connects to the broker and opens a channel.
func Dial(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("could not connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not open rabbitmq channel: %w", err)
	}
	logrus.WithField("queue", queue).Info("[AMQP] connection established")
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func newWithChannel(ch channel, queue string) *Publisher {
	return &Publisher{ch: ch, queue: queue}
}

// Publish declares the queue once (idempotent) and sends body on the default exchange.
func (p *Publisher) Publish(ctx context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared {
		if _, err := p.ch.QueueDeclare(
			p.queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", p.queue, err)
		}
		p.declared = true
	}

	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Write implements botmonitor.Sink.
func (p *Publisher) Write(ctx context.Context, e botmonitor.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.Publish(ctx, body)
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
