package mock

import (
	"sync"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	Events []domain.Event

	PublishFunc func(event domain.EventType, payload any) bool
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(event domain.EventType, payload any) bool {
	m.mu.Lock()
	m.Events = append(m.Events, domain.Event{Type: event, Payload: payload})
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(event, payload)
	}
	return true
}

// OfType returns the recorded events with the given type.
func (m *MockPublisher) OfType(event domain.EventType) []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, e := range m.Events {
		if e.Type == event {
			out = append(out, e)
		}
	}
	return out
}
