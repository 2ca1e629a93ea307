package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
)

const (
	eventsExchange = "cascade.events"

	// redialInterval is the minimum gap between dial attempts after the
	// broker connection drops.
	redialInterval = 2 * time.Second
)

var (
	_ Transport = (*RabbitMQTransport)(nil)

	errTransportClosed = errors.New("rabbitmq: transport closed")
)

// RabbitMQTransport publishes events to a topic exchange keyed by event type
// and waits for publisher confirms. A dropped connection is redialed lazily on
// the next Send.
type RabbitMQTransport struct {
	url    string
	logger *zap.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	lastDial time.Time
	closed   bool
}

// NewRabbitMQTransport dials the broker and declares the events exchange.
func NewRabbitMQTransport(url string, logger *zap.Logger) (*RabbitMQTransport, error) {
	t := &RabbitMQTransport{
		url:    url,
		logger: logger,
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.channelLocked(); err != nil {
		return nil, err
	}
	logger.Info("RabbitMQ event transport initialized", zap.String("exchange", eventsExchange))
	return t, nil
}

func (t *RabbitMQTransport) Name() string { return "rabbitmq" }

// channelLocked returns a usable channel, dialing when the previous one is
// gone. Caller holds mu.
func (t *RabbitMQTransport) channelLocked() (*amqp.Channel, error) {
	if t.closed {
		return nil, errTransportClosed
	}
	if t.channel != nil && !t.channel.IsClosed() {
		return t.channel, nil
	}
	if now := time.Now(); !t.lastDial.IsZero() && now.Sub(t.lastDial) < redialInterval {
		return nil, fmt.Errorf("rabbitmq: reconnect throttled, last attempt %s ago", now.Sub(t.lastDial).Round(time.Millisecond))
	}
	t.lastDial = time.Now()
	t.dropLocked()

	conn, err := amqp.Dial(t.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err == nil {
		err = ch.Confirm(false)
	}
	if err == nil {
		err = ch.ExchangeDeclare(eventsExchange, "topic", true, false, false, false, nil)
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: setup channel: %w", err)
	}
	t.conn, t.channel = conn, ch
	return ch, nil
}

// dropLocked closes any half-open connection. Caller holds mu.
func (t *RabbitMQTransport) dropLocked() {
	if t.conn != nil {
		_ = t.conn.Close()
	}
	t.conn, t.channel = nil, nil
}

// Send publishes one event and waits for the broker confirm.
func (t *RabbitMQTransport) Send(ctx context.Context, ev domain.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	t.mu.Lock()
	ch, err := t.channelLocked()
	t.mu.Unlock()
	if err != nil {
		return err
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, eventsExchange, string(ev.Type), false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.Timestamp,
			Type:         string(ev.Type),
			Body:         body,
		},
	)
	if err != nil {
		t.logger.Warn("RabbitMQ publish failed, connection will be redialed", zap.Error(err))
		return fmt.Errorf("rabbitmq: publish %s: %w", ev.Type, err)
	}

	acked, err := confirm.WaitContext(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("rabbitmq: confirm %s: %w", ev.Type, err)
	case !acked:
		return fmt.Errorf("rabbitmq: broker nacked %s", ev.Type)
	}
	return nil
}

// Close closes the connection; later sends fail.
func (t *RabbitMQTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn, t.channel = nil, nil
	return err
}
