package handler

import (
	"context"
	"net/http"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"github.com/mcoot/hotpotato/internal/api/response"
	"github.com/mcoot/hotpotato/internal/model"
	"github.com/mcoot/hotpotato/internal/protocol"
	"github.com/mcoot/hotpotato/internal/services/room"
	"github.com/mcoot/hotpotato/internal/session"
	"github.com/mcoot/hotpotato/internal/share"
)

// RoomReader reads room state through the session engine
type RoomReader interface {
	Room(ctx context.Context, code model.RoomCode) (*protocol.RoomSnapshot, error)
	Rooms(ctx context.Context) ([]protocol.RoomSnapshot, error)
	SuggestCode(ctx context.Context) (model.RoomCode, error)
	Stats(ctx context.Context) (session.Stats, error)
}

// RoomHandler handles read-only room endpoints
type RoomHandler struct {
	rooms   RoomReader
	baseURL string
}

// NewRoomHandler creates a new room handler. An empty baseURL means join
// links are derived from each request.
func NewRoomHandler(rooms RoomReader, baseURL string) *RoomHandler {
	return &RoomHandler{
		rooms:   rooms,
		baseURL: baseURL,
	}
}

// List handles GET /api/v1/rooms
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.rooms.Rooms(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := response.RoomList{Rooms: make([]response.RoomSummary, len(snaps))}
	for i, s := range snaps {
		resp.Rooms[i] = response.RoomSummaryFromSnapshot(s)
	}

	response.JSON(w, http.StatusOK, resp)
}

// SuggestCode handles GET /api/v1/room-code
func (h *RoomHandler) SuggestCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.rooms.SuggestCode(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoomCode{
		Code:    string(code),
		JoinURL: share.JoinURL(h.base(r), code),
	})
}

// Get handles GET /api/v1/rooms/{code}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	code, err := roomCode(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	snap, err := h.rooms.Room(r.Context(), code)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Room{
		RoomSnapshot: *snap,
		JoinURL:      share.JoinURL(h.base(r), code),
	})
}

// QR handles GET /api/v1/rooms/{code}/qr
func (h *RoomHandler) QR(w http.ResponseWriter, r *http.Request) {
	code, err := roomCode(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	// Only live rooms get a code
	if _, err := h.rooms.Room(r.Context(), code); err != nil {
		WriteError(w, err)
		return
	}

	png, err := share.PNG(share.JoinURL(h.base(r), code), share.PNGSize)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.PNG(w, png)
}

func (h *RoomHandler) base(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	return share.BaseURL(r)
}

func roomCode(r *http.Request) (model.RoomCode, error) {
	code := mux.Vars(r)["code"]
	if code == "" || utf8.RuneCountInString(code) > room.MaxRoomCodeLength {
		return "", NewInvalidRequestError("Invalid room code")
	}
	return model.RoomCode(code), nil
}
