package api

import (
	"context"
	"net/http"
	"time"

	"roombook/internal/models"
	"roombook/internal/reservation"
)

// CreateReservationRequest is the body of POST /api/reservations.
type CreateReservationRequest struct {
	RoomID      int64         `json:"room_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Organizer   string        `json:"organizer"`
	Attendees   []string      `json:"attendees,omitempty"`
	Status      models.Status `json:"status,omitempty"`
}

// UpdateReservationRequest is the body of PATCH /api/reservations/{id}.
// Omitted fields keep their value.
type UpdateReservationRequest struct {
	RoomID      *int64         `json:"room_id,omitempty"`
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	StartTime   *time.Time     `json:"start_time,omitempty"`
	EndTime     *time.Time     `json:"end_time,omitempty"`
	Organizer   *string        `json:"organizer,omitempty"`
	Attendees   *[]string      `json:"attendees,omitempty"`
	Status      *models.Status `json:"status,omitempty"`
}

// POST /api/reservations
func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var req CreateReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidBody, err.Error())
		return
	}

	created, err := s.reservations.Create(r.Context(), reservation.CreateInput{
		RoomID:      req.RoomID,
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Organizer:   req.Organizer,
		Attendees:   req.Attendees,
		Status:      req.Status,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GET /api/reservations/{id}
func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.reservations.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PATCH /api/reservations/{id}
func (s *HTTPServer) handleUpdateReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req UpdateReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidBody, err.Error())
		return
	}

	updated, err := s.reservations.Update(r.Context(), id, reservation.Changes{
		RoomID:      req.RoomID,
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Organizer:   req.Organizer,
		Attendees:   req.Attendees,
		Status:      req.Status,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// POST /api/reservations/{id}/confirm
func (s *HTTPServer) handleConfirmReservation(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.reservations.Confirm)
}

// POST /api/reservations/{id}/cancel
func (s *HTTPServer) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.reservations.Cancel)
}

func (s *HTTPServer) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64) (models.Reservation, error)) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := apply(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleDeleteReservation removes a reservation permanently.
// DELETE /api/reservations/{id}
func (s *HTTPServer) handleDeleteReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.reservations.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
