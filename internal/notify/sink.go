package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/metrics"
)

const sendTimeout = 5 * time.Second

// Publisher is the only capability the core needs from the notification layer.
// Publish must never block; it reports whether the event was accepted.
type Publisher interface {
	Publish(event domain.EventType, payload any) bool
}

// Transport delivers drained events to subscribers.
type Transport interface {
	Name() string
	Send(ctx context.Context, ev domain.Event) error
}

// Status describes the sink for the queue status and metrics endpoints.
type Status struct {
	Buffered   int      `json:"buffered"`
	Capacity   int      `json:"capacity"`
	Published  int64    `json:"published"`
	Delivered  int64    `json:"delivered"`
	Dropped    int64    `json:"dropped"`
	Failed     int64    `json:"failed"`
	Transports []string `json:"transports"`
}

var _ Publisher = (*Sink)(nil)

// Sink is a bounded outbound event channel drained by transports.
// When the buffer is full new events are dropped and counted.
type Sink struct {
	events  chan domain.Event
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu         sync.RWMutex
	transports []Transport

	published atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// NewSink creates a sink holding at most size undelivered events.
func NewSink(size int, m *metrics.Metrics, logger *zap.Logger) *Sink {
	if size <= 0 {
		size = 1
	}
	return &Sink{
		events:  make(chan domain.Event, size),
		metrics: m,
		logger:  logger,
	}
}

// AddTransport registers a transport. Every drained event is sent to all of them.
func (s *Sink) AddTransport(t Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transports = append(s.transports, t)
}

// Publish enqueues an event without blocking.
func (s *Sink) Publish(event domain.EventType, payload any) bool {
	ev := domain.Event{Type: event, Payload: payload, Timestamp: time.Now().UTC()}
	select {
	case s.events <- ev:
		s.published.Add(1)
		return true
	default:
		s.dropped.Add(1)
		s.metrics.NotificationsDropped.Inc()
		s.logger.Debug("Notification dropped, buffer full", zap.String("event", string(event)))
		return false
	}
}

// Run drains the channel until ctx is cancelled.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.deliver(ctx, ev)
		}
	}
}

func (s *Sink) deliver(ctx context.Context, ev domain.Event) {
	s.mu.RLock()
	transports := s.transports
	s.mu.RUnlock()

	for _, t := range transports {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := t.Send(sendCtx, ev)
		cancel()
		if err != nil {
			s.failed.Add(1)
			s.logger.Warn("Notification transport failed",
				zap.String("transport", t.Name()),
				zap.String("event", string(ev.Type)),
				zap.Error(err),
			)
			continue
		}
		s.delivered.Add(1)
		s.metrics.NotificationsDelivered.WithLabelValues(t.Name()).Inc()
	}
}

// Status returns a point-in-time view of the sink.
func (s *Sink) Status() Status {
	s.mu.RLock()
	names := make([]string, 0, len(s.transports))
	for _, t := range s.transports {
		names = append(names, t.Name())
	}
	s.mu.RUnlock()

	return Status{
		Buffered:   len(s.events),
		Capacity:   cap(s.events),
		Published:  s.published.Load(),
		Delivered:  s.delivered.Load(),
		Dropped:    s.dropped.Load(),
		Failed:     s.failed.Load(),
		Transports: names,
	}
}
