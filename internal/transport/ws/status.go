package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"quizer-server/internal/game"

	"golang.org/x/sync/singleflight"
)

// StatusHandler serves the small JSON ops surface (/ and /status). The
// snapshot walks every room under its mutex, so concurrent polls are
// coalesced through singleflight.
type StatusHandler struct {
	engine  *game.Engine
	version string
	started time.Time
	sf      singleflight.Group
}

func NewStatusHandler(engine *game.Engine, version string) *StatusHandler {
	return &StatusHandler{
		engine:  engine,
		version: version,
		started: time.Now(),
	}
}

type statusResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	ActiveRooms  int    `json:"activeRooms"`
	TotalPlayers int    `json:"totalPlayers"`
	Timestamp    string `json:"timestamp"`
}

type rootResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	Version      string `json:"version"`
	Timestamp    string `json:"timestamp"`
	ActiveRooms  int    `json:"activeRooms"`
	TotalPlayers int    `json:"totalPlayers"`
}

func (h *StatusHandler) stats() game.Stats {
	v, _, _ := h.sf.Do("stats", func() (interface{}, error) {
		return h.engine.Stats(), nil
	})
	return v.(game.Stats)
}

// ServeStatus handles GET /status.
func (h *StatusHandler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.stats()
	uptime := time.Since(h.started)
	writeJSON(w, statusResponse{
		Status:  "OK",
		Version: h.version,
		Uptime: fmt.Sprintf("%dh %dm %ds",
			int(uptime.Hours()),
			int(uptime.Minutes())%60,
			int(uptime.Seconds())%60),
		ActiveRooms:  stats.ActiveRooms,
		TotalPlayers: stats.TotalPlayers,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}

// ServeRoot handles GET /.
func (h *StatusHandler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	stats := h.stats()
	writeJSON(w, rootResponse{
		Status:       "online",
		Message:      "Quizer Backend Server",
		Version:      h.version,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		ActiveRooms:  stats.ActiveRooms,
		TotalPlayers: stats.TotalPlayers,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
