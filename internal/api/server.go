// Package api exposes the room catalog and reservations over HTTP JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"roombook/internal/catalog"
	"roombook/internal/clock"
	"roombook/internal/metrics"
	"roombook/internal/models"
	"roombook/internal/reservation"
	"roombook/internal/slots"
)

// Options configures the HTTP server.
type Options struct {
	Port           int
	APIKeys        []string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
	// Window and SlotDuration are the defaults of /api/time-slots.
	Window       slots.Window
	SlotDuration time.Duration
}

// HTTPServer serves the public API.
type HTTPServer struct {
	reservations *reservation.Service
	rooms        *catalog.Service
	slots        *slots.Generator
	clock        clock.Clock
	logger       *zerolog.Logger
	opts         Options
	server       *http.Server
}

// NewHTTPServer wires handlers and middleware around the services.
func NewHTTPServer(opts Options, reservations *reservation.Service, rooms *catalog.Service, clk clock.Clock, logger *zerolog.Logger) *HTTPServer {
	if clk == nil {
		clk = clock.NewSystem(reservations.Location())
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.SlotDuration <= 0 {
		opts.SlotDuration = 30 * time.Minute
	}

	s := &HTTPServer{
		reservations: reservations,
		rooms:        rooms,
		slots:        slots.NewGenerator(reservations.Detector(), clk),
		clock:        clk,
		logger:       logger,
		opts:         opts,
	}

	mux := http.NewServeMux()
	s.handle(mux, "GET /api/rooms", "rooms_list", s.handleListRooms)
	s.handle(mux, "POST /api/rooms", "rooms_create", s.handleCreateRoom)
	s.handle(mux, "GET /api/rooms/{id}", "rooms_get", s.handleGetRoom)
	s.handle(mux, "PUT /api/rooms/{id}", "rooms_update", s.handleUpdateRoom)
	s.handle(mux, "DELETE /api/rooms/{id}", "rooms_deactivate", s.handleDeactivateRoom)
	s.handle(mux, "GET /api/rooms/{id}/reservations", "room_reservations", s.handleRoomReservations)
	s.handle(mux, "GET /api/rooms/{id}/slots", "room_slots", s.handleRoomSlots)

	s.handle(mux, "POST /api/reservations", "reservations_create", s.handleCreateReservation)
	s.handle(mux, "GET /api/reservations/{id}", "reservations_get", s.handleGetReservation)
	s.handle(mux, "PATCH /api/reservations/{id}", "reservations_update", s.handleUpdateReservation)
	s.handle(mux, "POST /api/reservations/{id}/confirm", "reservations_confirm", s.handleConfirmReservation)
	s.handle(mux, "POST /api/reservations/{id}/cancel", "reservations_cancel", s.handleCancelReservation)
	s.handle(mux, "DELETE /api/reservations/{id}", "reservations_delete", s.handleDeleteReservation)

	s.handle(mux, "GET /api/calendar", "calendar", s.handleCalendar)
	s.handle(mux, "GET /api/calendar/export", "calendar_export", s.handleCalendarExport)
	s.handle(mux, "GET /api/time-slots", "time_slots", s.handleTimeSlots)

	var handler http.Handler = mux
	handler = withTimeout(handler, opts.RequestTimeout)
	handler = withRateLimit(handler, newClientLimiter(opts.RateLimitRPS, opts.RateLimitBurst))
	handler = withAPIKey(handler, opts.APIKeys)
	handler = withRequestLog(handler, logger)
	handler = withRequestID(handler)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handle registers h and counts its responses by endpoint and status code.
func (s *HTTPServer) handle(mux *http.ServeMux, pattern, endpoint string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		metrics.IncHTTP(endpoint, rec.status)
	})
}

const (
	codeValidation        = "validation_error"
	codeConflict          = "conflict"
	codeNotFound          = "not_found"
	codeInvalidTransition = "invalid_transition"
	codeInvalidBody       = "invalid_request_body"
	codeUnauthorized      = "unauthorized"
	codeRateLimited       = "rate_limited"
	codeInternal          = "internal_error"
)

type errorResponse struct {
	Error    string        `json:"error"`
	Code     string        `json:"code"`
	Conflict *conflictInfo `json:"conflict,omitempty"`
}

type conflictInfo struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeServiceError maps domain errors onto status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var conflictErr *models.ConflictError
	switch {
	case errors.As(err, &conflictErr):
		existing := conflictErr.Existing
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: err.Error(),
			Code:  codeConflict,
			Conflict: &conflictInfo{
				ID:        existing.ID,
				RoomID:    existing.RoomID,
				Title:     existing.Title,
				StartTime: existing.StartTime,
				EndTime:   existing.EndTime,
			},
		})
	case errors.Is(err, models.ErrValidation):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	default:
		s.logger.Error().Err(err).
			Str("request_id", requestIDFrom(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

// parseTimeParam accepts RFC3339 or a bare YYYY-MM-DD date in loc.
func parseTimeParam(name, value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, models.NewValidationError(name, "is required")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateLayout, value, loc); err == nil {
		return t, nil
	}
	return time.Time{}, models.NewValidationError(name, "must be RFC3339 or YYYY-MM-DD")
}

const dateLayout = "2006-01-02"
