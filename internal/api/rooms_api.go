package api

import (
	"net/http"
	"time"

	"roombook/internal/catalog"
	"roombook/internal/models"
	"roombook/internal/slots"
)

// RoomRequest is the body of POST /api/rooms and PUT /api/rooms/{id}.
type RoomRequest struct {
	Name        string          `json:"name"`
	Type        models.RoomType `json:"type"`
	Capacity    int             `json:"capacity"`
	Description string          `json:"description"`
	Amenities   []string        `json:"amenities"`
	Location    string          `json:"location"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

func (req RoomRequest) input() catalog.RoomInput {
	return catalog.RoomInput{
		Name:        req.Name,
		Type:        req.Type,
		Capacity:    req.Capacity,
		Description: req.Description,
		Amenities:   req.Amenities,
		Location:    req.Location,
		IsActive:    req.IsActive,
	}
}

// SlotsResponse is the response of GET /api/rooms/{id}/slots.
type SlotsResponse struct {
	RoomID int64            `json:"room_id"`
	Date   string           `json:"date"`
	Closed bool             `json:"closed"`
	Slots  []slots.SlotInfo `json:"slots"`
}

// handleListRooms returns the catalog.
// GET /api/rooms?active=true
func (s *HTTPServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	rooms, err := s.rooms.List(r.Context(), activeOnly)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// POST /api/rooms
func (s *HTTPServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req RoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidBody, err.Error())
		return
	}
	room, err := s.rooms.Create(r.Context(), req.input())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// GET /api/rooms/{id}
func (s *HTTPServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	room, err := s.rooms.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// PUT /api/rooms/{id}
func (s *HTTPServer) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req RoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidBody, err.Error())
		return
	}
	room, err := s.rooms.Update(r.Context(), id, req.input())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// handleDeactivateRoom hides a room from booking; its reservations are kept.
// DELETE /api/rooms/{id}
func (s *HTTPServer) handleDeactivateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	room, err := s.rooms.Deactivate(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// handleRoomReservations lists reservations of a room starting in [from, to).
// GET /api/rooms/{id}/reservations?from=...&to=...
func (s *HTTPServer) handleRoomReservations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	loc := s.reservations.Location()
	q := r.URL.Query()
	from, err := parseTimeParam("from", q.Get("from"), loc)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	to, err := parseTimeParam("to", q.Get("to"), loc)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	list, err := s.reservations.ListByRoomAndRange(r.Context(), id, from, to)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

// handleRoomSlots returns the bookable slots of a room on one day.
// GET /api/rooms/{id}/slots?date=YYYY-MM-DD
func (s *HTTPServer) handleRoomSlots(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	loc := s.reservations.Location()
	date := s.clock.Now().In(loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err = time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			s.writeServiceError(w, r, models.NewValidationError("date", "must be YYYY-MM-DD"))
			return
		}
	}
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)

	if _, err := s.rooms.Get(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	schedule := s.rooms.Schedule(id, date)
	daySlots, err := s.slots.DaySlots(r.Context(), id, date, schedule)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SlotsResponse{
		RoomID: id,
		Date:   date.Format(dateLayout),
		Closed: schedule.IsClosed,
		Slots:  slots.ToSlotInfo(daySlots),
	})
}
