package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	amqplib "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/usecase"
)

const (
	triggerExchange = "cascade.maintenance"
	triggerQueue    = "cascade.maintenance.triggers"
	deadLetterEx    = "cascade.maintenance.dlx"
	deadLetterQueue = "cascade.maintenance.dead"
	consumerTag     = "cascade-maintenance"

	maxReconnectDelay  = 30 * time.Second
	baseReconnectDelay = 1 * time.Second
)

// backoff returns the wait before reconnect attempt n, doubling up to the cap.
func backoff(n int) time.Duration {
	return time.Duration(math.Min(
		float64(baseReconnectDelay)*math.Pow(2, float64(n)),
		float64(maxReconnectDelay),
	))
}

// Enqueuer queues maintenance jobs.
type Enqueuer interface {
	Execute(ctx context.Context, t domain.JobType, req *usecase.MaintenanceRequest, actor domain.Actor) (*domain.Job, error)
}

// Trigger is the body of a maintenance message, for example
// {"type":"orphanedReferenceCleanup","priority":"low","dryRun":true}.
type Trigger struct {
	Type     domain.JobType `json:"type"`
	Priority string         `json:"priority"`
	DryRun   bool           `json:"dryRun"`
}

// Consumer turns messages on the maintenance queue into scheduled jobs,
// acting as the system user. Malformed or rejected triggers go to the DLQ.
type Consumer struct {
	url      string
	enqueuer Enqueuer
	logger   *zap.Logger

	mu      sync.Mutex
	conn    *amqplib.Connection
	channel *amqplib.Channel
	closed  bool
	closeCh chan struct{}
}

// NewConsumer creates a consumer and opens its connection.
func NewConsumer(url string, enqueuer Enqueuer, logger *zap.Logger) (*Consumer, error) {
	c := &Consumer{
		url:      url,
		enqueuer: enqueuer,
		logger:   logger,
		closeCh:  make(chan struct{}),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Consumer) connect() error {
	conn, err := amqplib.Dial(c.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()
	return nil
}

// declareTopology sets up the trigger exchange, its queue and the dead-letter
// pair that receives rejected triggers. Any routing key on the exchange
// reaches the queue.
func declareTopology(ch *amqplib.Channel) error {
	if err := ch.ExchangeDeclare(deadLetterEx, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp declare %s: %w", deadLetterEx, err)
	}
	if _, err := ch.QueueDeclare(deadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp declare %s: %w", deadLetterQueue, err)
	}
	if err := ch.QueueBind(deadLetterQueue, "", deadLetterEx, false, nil); err != nil {
		return fmt.Errorf("amqp bind %s: %w", deadLetterQueue, err)
	}

	if err := ch.ExchangeDeclare(triggerExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp declare %s: %w", triggerExchange, err)
	}
	_, err := ch.QueueDeclare(triggerQueue, true, false, false, false, amqplib.Table{
		"x-queue-type":           "quorum",
		"x-dead-letter-exchange": deadLetterEx,
	})
	if err != nil {
		return fmt.Errorf("amqp declare %s: %w", triggerQueue, err)
	}
	if err := ch.QueueBind(triggerQueue, "#", triggerExchange, false, nil); err != nil {
		return fmt.Errorf("amqp bind %s: %w", triggerQueue, err)
	}
	// Triggers only enqueue, so one in flight is plenty.
	return ch.Qos(1, 0, false)
}

// Start consumes until ctx is cancelled or Close is called, redialing with
// exponential backoff whenever the broker drops the connection.
func (c *Consumer) Start(ctx context.Context) error {
	for attempt := 0; ; {
		err := c.consume(ctx)
		if err == nil || c.stopped(ctx) {
			return nil
		}
		c.logger.Warn("Maintenance consumer disconnected", zap.Error(err))

		select {
		case <-c.closeCh:
			return nil
		case <-ctx.Done():
			return nil
		case <-time.After(backoff(attempt)):
		}
		if err := c.connect(); err != nil {
			attempt++
			c.logger.Error("Maintenance consumer reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		attempt = 0
		c.logger.Info("Maintenance consumer reconnected")
	}
}

func (c *Consumer) stopped(ctx context.Context) bool {
	select {
	case <-c.closeCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		return errors.New("amqp: no channel")
	}

	deliveries, err := ch.ConsumeWithContext(ctx, triggerQueue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}
	c.logger.Info("Maintenance consumer started", zap.String("queue", triggerQueue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp: delivery channel closed")
			}
			c.settle(d, c.Handle(ctx, d.Body))
		}
	}
}

// settle acks accepted triggers and dead-letters the rest.
func (c *Consumer) settle(d amqplib.Delivery, accepted bool) {
	var err error
	if accepted {
		err = d.Ack(false)
	} else {
		err = d.Reject(false)
	}
	if err != nil {
		c.logger.Warn("Failed to settle maintenance trigger", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
	}
}

// Handle enqueues the job described by body and reports whether the
// message should be acknowledged.
func (c *Consumer) Handle(ctx context.Context, body []byte) bool {
	var t Trigger
	if err := json.Unmarshal(body, &t); err != nil {
		c.logger.Error("Failed to unmarshal maintenance trigger",
			zap.Error(err),
			zap.String("body", string(body)),
		)
		return false
	}

	job, err := c.enqueuer.Execute(ctx, t.Type, &usecase.MaintenanceRequest{
		Priority: t.Priority,
		DryRun:   t.DryRun,
	}, domain.SystemActor)
	if err != nil {
		c.logger.Error("Maintenance trigger rejected",
			zap.String("type", string(t.Type)),
			zap.Error(err),
		)
		return false
	}

	c.logger.Info("Maintenance job queued from broker",
		zap.String("job_id", job.ID.String()),
		zap.String("type", string(job.Type)),
	)
	return true
}

// Close stops Start and closes the channel and connection.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)

	var errs []error
	if c.channel != nil {
		errs = append(errs, c.channel.Close())
	}
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}
