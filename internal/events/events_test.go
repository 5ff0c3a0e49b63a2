package events

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"roombook/internal/models"
)

func TestEventBus_PublishToSubscribers(t *testing.T) {
	logger := zerolog.New(io.Discard)
	bus := NewEventBus(&logger)

	var got []Event
	bus.Subscribe(ReservationCreated, func(e Event) error {
		got = append(got, e)
		return nil
	})
	bus.Subscribe(ReservationCreated, func(e Event) error {
		return errors.New("handler failed")
	})

	bus.Publish(Event{Type: ReservationCreated, Reservation: models.Reservation{ID: 7}})
	bus.Publish(Event{Type: ReservationCancelled, Reservation: models.Reservation{ID: 8}})

	assert.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].Reservation.ID)
	assert.False(t, got[0].OccurredAt.IsZero())
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(nil)
	count := 0
	bus.SubscribeAll(func(Event) error {
		count++
		return nil
	})

	for _, typ := range []string{ReservationCreated, ReservationUpdated, ReservationConfirmed, ReservationCancelled, ReservationDeleted, RoomsSynced} {
		bus.Publish(Event{Type: typ})
	}
	assert.Equal(t, 5, count)
}

func TestEventBus_NilIsNoop(t *testing.T) {
	var bus *EventBus
	assert.NotPanics(t, func() { bus.Publish(Event{Type: ReservationCreated}) })
}
