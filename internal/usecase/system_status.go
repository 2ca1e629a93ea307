package usecase

import (
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/notify"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/scheduler"
)

// StoreStats reports storage backend figures for the metrics endpoint.
type StoreStats func() map[string]any

// NotificationStatus reports the notification sink state.
type NotificationStatus interface {
	Status() notify.Status
}

// SystemStatus is the queue status payload and the system-status event.
type SystemStatus struct {
	Queue         scheduler.QueueStatus `json:"queue"`
	Notifications notify.Status         `json:"notifications"`
}

// MetricsReport is the payload of the metrics endpoint.
type MetricsReport struct {
	Processing    scheduler.Stats `json:"processing"`
	Store         map[string]any  `json:"store"`
	Notifications notify.Status   `json:"notifications"`
}

// SystemStatusUsecase assembles queue, store and notification figures.
type SystemStatusUsecase struct {
	scheduler JobScheduler
	sink      NotificationStatus
	store     StoreStats
}

// NewSystemStatusUsecase creates a new SystemStatusUsecase.
func NewSystemStatusUsecase(sched JobScheduler, sink NotificationStatus, store StoreStats) *SystemStatusUsecase {
	return &SystemStatusUsecase{scheduler: sched, sink: sink, store: store}
}

// Status returns the queue and notification sink state.
func (uc *SystemStatusUsecase) Status() SystemStatus {
	return SystemStatus{
		Queue:         uc.scheduler.QueueStatus(),
		Notifications: uc.sink.Status(),
	}
}

// Metrics returns processing, store and notification metrics.
func (uc *SystemStatusUsecase) Metrics() MetricsReport {
	store := map[string]any{}
	if uc.store != nil {
		store = uc.store()
	}
	return MetricsReport{
		Processing:    uc.scheduler.QueueStatus().Metrics,
		Store:         store,
		Notifications: uc.sink.Status(),
	}
}
