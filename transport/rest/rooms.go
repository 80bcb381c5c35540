package rest

import (
	"encoding/json"
	"net/http"

	"github.com/rocketscienceinc/tictactoe-hub/internal/entity"
)

type roomLister interface {
	List() []entity.RoomSummary
}

type roomsResponse struct {
	Rooms []entity.RoomSummary `json:"rooms"`
}

// RoomsHandler lists live rooms. ?mode=player keeps only rooms with a free seat.
func (that *Server) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	rooms, err := entity.FilterRooms(that.rooms.List(), entity.ListMode(r.URL.Query().Get("mode")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(roomsResponse{Rooms: rooms}); err != nil {
		that.logger.Error("failed to encode rooms", "error", err)
	}
}
