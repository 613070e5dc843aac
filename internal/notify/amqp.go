package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/timmy/coursegen/internal/domain"
	"github.com/timmy/coursegen/internal/logger"
)

// AMQPConfig configures the RabbitMQ notifier.
type AMQPConfig struct {
	URL      string
	Exchange string // fanout exchange shared by producers and workers
	Queue    string // worker queue; only used when Consume is set
	Consume  bool
}

// AMQPNotifier publishes hints to a fanout exchange and, for workers,
// consumes them from a bound queue.
type AMQPNotifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	wake     chan struct{}

	mu sync.Mutex
}

// NewAMQPNotifier dials RabbitMQ and declares the exchange (and queue when
// consuming). The consumer goroutine stops when ctx is cancelled.
func NewAMQPNotifier(ctx context.Context, cfg *AMQPConfig) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	n := &AMQPNotifier{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		wake:     make(chan struct{}, 1),
	}

	if cfg.Consume {
		if err := n.consume(ctx, cfg.Queue); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return n, nil
}

func (n *AMQPNotifier) consume(ctx context.Context, queue string) error {
	if _, err := n.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	if err := n.channel.QueueBind(queue, "", n.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", queue, err)
	}
	msgs, err := n.channel.Consume(queue, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", queue, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.CtxWarn(ctx, "[notify] rabbitmq delivery channel closed, falling back to polling")
					return
				}
				logger.CtxDebug(ctx, "[notify] wake-up hint for %s", string(msg.Body))
				select {
				case n.wake <- struct{}{}:
				default:
				}
			}
		}
	}()
	return nil
}

// Publish sends the job type as a transient message.
func (n *AMQPNotifier) Publish(ctx context.Context, t domain.JobType) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	err := n.channel.PublishWithContext(ctx, n.exchange, "", false, false, amqp.Publishing{
		ContentType: "text/plain",
		Body:        []byte(t),
		Timestamp:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish wake-up hint: %w", err)
	}
	return nil
}

func (n *AMQPNotifier) Wakeups() <-chan struct{} { return n.wake }

func (n *AMQPNotifier) Close() error {
	n.channel.Close()
	return n.conn.Close()
}
