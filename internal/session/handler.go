package session

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"codepair/internal/archive"
	myMiddleware "codepair/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// ArchiveLister is the read side of the archive; nil when archiving is off.
type ArchiveLister interface {
	Recent(ctx context.Context, limit int) ([]archive.Record, error)
}

type Handler struct {
	hub        *Hub
	archive    ArchiveLister
	sendBuffer int
}

func NewHandler(hub *Hub, archive ArchiveLister, sendBuffer int) *Handler {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Handler{hub: hub, archive: archive, sendBuffer: sendBuffer}
}

// Routes builds the full HTTP surface. auth guards the websocket endpoint.
func (h *Handler) Routes(auth *myMiddleware.AuthMiddleware) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/rooms", h.CreateRoom)
		r.Get("/rooms", h.ListRooms)
		r.Get("/rooms/{roomID}", h.GetRoom)
		r.Get("/ice", h.GetIceServers)
		r.Get("/archive", h.ListArchive)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Handle)
		r.Get("/ws", h.ServeWs)
	})
	return r
}

func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, h.sendBuffer),
		ID:   uuid.NewString(),
	}
	if id, ok := myMiddleware.IdentityFrom(r.Context()); ok {
		client.AuthUser = id.Display
	}

	select {
	case h.hub.Register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// CreateRoom hands out a fresh room id. The room itself only exists once
// someone joins it.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"roomId": uuid.NewString()})
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.hub.Rooms(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	state, found, err := h.hub.Snapshot(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if !found {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) GetIceServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"iceServers": h.hub.IceServers()})
}

func (h *Handler) ListArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		http.Error(w, "Archive disabled", http.StatusNotFound)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			http.Error(w, "limit must be between 1 and 200", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.archive.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("❌ archive list: %v", err)
		http.Error(w, "archive unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
