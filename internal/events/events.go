package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roombook/internal/models"
)

// Reservation lifecycle event types.
const (
	ReservationCreated   = "reservation.created"
	ReservationUpdated   = "reservation.updated"
	ReservationConfirmed = "reservation.confirmed"
	ReservationCancelled = "reservation.cancelled"
	ReservationDeleted   = "reservation.deleted"
	RoomsSynced          = "rooms.synced"
)

// Event represents a lightweight domain event.
type Event struct {
	Type        string
	Reservation models.Reservation
	// Previous holds the reservation before an update, zero otherwise.
	Previous   models.Reservation
	OccurredAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged to logger when set.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every reservation event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	for _, t := range []string{ReservationCreated, ReservationUpdated, ReservationConfirmed, ReservationCancelled, ReservationDeleted} {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && b.logger != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Int64("reservation_id", event.Reservation.ID).Msg("event handler failed")
		}
	}
}
