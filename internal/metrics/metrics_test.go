package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(reservationCreated.WithLabelValues("confirmed"))
	IncReservationCreated("confirmed")
	assert.Equal(t, before+1, testutil.ToFloat64(reservationCreated.WithLabelValues("confirmed")))

	before = testutil.ToFloat64(reservationConflicts)
	IncReservationConflict()
	assert.Equal(t, before+1, testutil.ToFloat64(reservationConflicts))

	before = testutil.ToFloat64(httpRequests.WithLabelValues("/api/reservations", "409"))
	IncHTTP("/api/reservations", 409)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("/api/reservations", "409")))

	assert.NotPanics(t, func() { ObserveLockWait(3 * time.Millisecond) })
}
